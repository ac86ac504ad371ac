package orchestrator

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Policy is the tier escalation policy. Thresholds and retry pacing are
// tunable values, kept out of the orchestration logic.
type Policy struct {
	Defaults DefaultPolicy         `yaml:"defaults"`
	Tiers    map[string]TierPolicy `yaml:"tiers"`
}

// DefaultPolicy holds global defaults applied to tiers missing a setting.
type DefaultPolicy struct {
	AcceptThreshold float64     `yaml:"accept_threshold"`
	Retry           RetryPolicy `yaml:"retry"`
}

// RetryPolicy holds within-tier retry pacing. Only transient failures and
// timeouts are retried, never permanent errors.
type RetryPolicy struct {
	MaxAttempts      int     `yaml:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction"`
}

// TierPolicy configures acceptance for one tier, keyed by adapter name.
type TierPolicy struct {
	AcceptThreshold float64      `yaml:"accept_threshold"`
	Retry           *RetryPolicy `yaml:"retry,omitempty"`
}

// defaultPolicy is used when no policy file is configured. Thresholds
// decrease strictly by tier: lower tiers are noisier but still useful.
func defaultPolicy() *Policy {
	return &Policy{
		Defaults: DefaultPolicy{
			AcceptThreshold: 50,
			Retry: RetryPolicy{
				MaxAttempts:      3,
				InitialBackoffMs: 1000,
				MaxBackoffMs:     8000,
				Multiplier:       2.0,
				JitterFraction:   0.25,
			},
		},
		Tiers: map[string]TierPolicy{
			"docai":  {AcceptThreshold: 80},
			"vision": {AcceptThreshold: 60},
			"claude": {AcceptThreshold: 45},
			"manual": {AcceptThreshold: 101}, // terminal stub never accepts
		},
	}
}

// LoadPolicy reads the tier policy from a YAML file. An empty path returns
// the built-in defaults.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return defaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: read policy %s", path)
	}

	// The YAML has a top-level "orchestrator" key
	var wrapper struct {
		Orchestrator Policy `yaml:"orchestrator"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "orchestrator: parse policy")
	}

	p := &wrapper.Orchestrator
	if p.Defaults.AcceptThreshold == 0 {
		p.Defaults.AcceptThreshold = 50
	}
	if p.Defaults.Retry.MaxAttempts == 0 {
		p.Defaults.Retry = defaultPolicy().Defaults.Retry
	}
	if p.Tiers == nil {
		p.Tiers = defaultPolicy().Tiers
	}
	for name, tp := range p.Tiers {
		if tp.Retry == nil {
			r := p.Defaults.Retry
			tp.Retry = &r
		}
		if tp.AcceptThreshold == 0 {
			tp.AcceptThreshold = p.Defaults.AcceptThreshold
		}
		p.Tiers[name] = tp
	}

	return p, nil
}

// TierFor returns the policy for an adapter, falling back to defaults.
func (p *Policy) TierFor(name string) TierPolicy {
	if tp, ok := p.Tiers[name]; ok {
		if tp.Retry == nil {
			r := p.Defaults.Retry
			tp.Retry = &r
		}
		return tp
	}
	r := p.Defaults.Retry
	return TierPolicy{AcceptThreshold: p.Defaults.AcceptThreshold, Retry: &r}
}
