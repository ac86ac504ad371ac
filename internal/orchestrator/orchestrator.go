// Package orchestrator drives the prioritized adapter cascade for one run.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/creditparse-cli/internal/adapter"
	"github.com/sells-group/creditparse-cli/internal/model"
	"github.com/sells-group/creditparse-cli/internal/resilience"
)

// State is the run-level escalation state.
type State string

const (
	StateNotStarted State = "not_started"
	StateTrying     State = "trying_tier"
	StateAccepted   State = "accepted"
	StateExhausted  State = "exhausted"
)

// Outcome is the orchestrator's result for one run. The attempt history is
// append-only and ordered by attempt time; it is never reordered or pruned.
type Outcome struct {
	State    State
	Attempts []model.ExtractionAttempt
	// Accepted is the attempt that stopped escalation, nil when exhausted.
	Accepted *model.ExtractionAttempt
	// AcceptedTier labels the accepting tier ("tier1".."tierN"), empty when
	// exhausted.
	AcceptedTier string
}

// Orchestrator escalates through adapters ordered by expected reliability.
type Orchestrator struct {
	adapters []adapter.Adapter // ascending tier order
	policy   *Policy
	breakers *resilience.ProviderBreakers
	race     bool

	mu       sync.Mutex
	disabled map[string]bool // providers hit by a permanent error this run
	attempts []model.ExtractionAttempt
}

// New creates an orchestrator over the given adapters, which must be ordered
// by ascending tier. The breaker registry may be shared across runs; the
// orchestrator itself is single-run state.
func New(adapters []adapter.Adapter, policy *Policy, breakers *resilience.ProviderBreakers, race bool) *Orchestrator {
	return &Orchestrator{
		adapters: adapters,
		policy:   policy,
		breakers: breakers,
		race:     race,
		disabled: make(map[string]bool),
	}
}

// Run walks the tiers until an attempt is accepted or every tier is
// exhausted. It never fails: an exhausted run still returns every recorded
// attempt so fusion can work with whatever exists.
func (o *Orchestrator) Run(ctx context.Context, doc model.RawDocument) Outcome {
	for i := 0; i < len(o.adapters); i++ {
		if ctx.Err() != nil {
			// Run deadline elapsed; proceed immediately to fusion.
			zap.L().Warn("run budget exhausted before tier",
				zap.String("doc", doc.ID),
				zap.Int("tier", o.adapters[i].Tier()),
			)
			break
		}

		if o.race && i+1 < len(o.adapters) {
			if accepted := o.raceTierPair(ctx, doc, o.adapters[i], o.adapters[i+1]); accepted != nil {
				return o.accepted(accepted)
			}
			i++ // both tiers consumed
			continue
		}

		if accepted := o.tryTier(ctx, doc, o.adapters[i]); accepted != nil {
			return o.accepted(accepted)
		}
	}

	zap.L().Warn("all tiers exhausted, degrading to fusion over partial attempts",
		zap.String("doc", doc.ID),
		zap.Int("attempts", len(o.attempts)),
	)
	return Outcome{State: StateExhausted, Attempts: o.attempts}
}

func (o *Orchestrator) accepted(att *model.ExtractionAttempt) Outcome {
	return Outcome{
		State:        StateAccepted,
		Attempts:     o.attempts,
		Accepted:     att,
		AcceptedTier: fmt.Sprintf("tier%d", att.Tier),
	}
}

// tryTier invokes one adapter with bounded retry and returns the accepted
// attempt, or nil to escalate.
func (o *Orchestrator) tryTier(ctx context.Context, doc model.RawDocument, a adapter.Adapter) *model.ExtractionAttempt {
	if o.isDisabled(a.Name()) {
		return nil
	}

	tp := o.policy.TierFor(a.Name())
	retryCfg := resilience.FromRetryConfig(
		tp.Retry.MaxAttempts, tp.Retry.InitialBackoffMs, tp.Retry.MaxBackoffMs,
		tp.Retry.Multiplier, tp.Retry.JitterFraction,
	)
	retryCfg.OnRetry = resilience.RetryLogger(a.Name(), a.Tier())

	breaker := o.breakers.Get(a.Name())

	att, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (model.ExtractionAttempt, error) {
		attempt, extractErr := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (model.ExtractionAttempt, error) {
			return a.Extract(ctx, doc)
		})
		if attempt.Provider == "" {
			// Circuit rejected the call before the adapter ran.
			attempt = rejectedAttempt(a, extractErr)
		}
		o.record(attempt)
		return attempt, extractErr
	})

	if err != nil {
		if resilience.IsPermanent(err) {
			o.disable(a.Name())
			zap.L().Warn("tier disabled for remainder of run",
				zap.String("provider", a.Name()),
				zap.Int("tier", a.Tier()),
				zap.Error(err),
			)
		}
		return nil
	}

	return o.evaluate(att, tp)
}

// evaluate applies the tier acceptance rule.
func (o *Orchestrator) evaluate(att model.ExtractionAttempt, tp TierPolicy) *model.ExtractionAttempt {
	if att.Status == model.StatusOK && att.Confidence >= tp.AcceptThreshold {
		zap.L().Info("attempt accepted",
			zap.String("provider", att.Provider),
			zap.Int("tier", att.Tier),
			zap.Float64("confidence", att.Confidence),
			zap.Float64("threshold", tp.AcceptThreshold),
		)
		return &att
	}

	if att.Status == model.StatusOK {
		// Below threshold is a normal low-confidence outcome, not an error.
		att.Status = model.StatusLowConfidence
		o.amendLast(att)
	}

	zap.L().Info("attempt below acceptance, escalating",
		zap.String("provider", att.Provider),
		zap.Int("tier", att.Tier),
		zap.String("status", string(att.Status)),
		zap.Float64("confidence", att.Confidence),
	)
	return nil
}

// raceTierPair runs two adjacent tiers concurrently and accepts the first
// result meeting its own tier threshold, cancelling the other. Adapters must
// be cancellable without side effects for this mode to be safe.
func (o *Orchestrator) raceTierPair(ctx context.Context, doc model.RawDocument, a, b adapter.Adapter) *model.ExtractionAttempt {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type tierResult struct {
		att  *model.ExtractionAttempt
		tier int
	}
	results := make(chan tierResult, 2)

	g, gCtx := errgroup.WithContext(raceCtx)
	for _, ad := range []adapter.Adapter{a, b} {
		g.Go(func() error {
			results <- tierResult{att: o.tryTier(gCtx, doc, ad), tier: ad.Tier()}
			return nil
		})
	}

	var winner *model.ExtractionAttempt
	for range 2 {
		r := <-results
		if r.att != nil {
			// Prefer the higher-reliability tier if both somehow finish
			// before cancellation lands.
			if winner == nil || r.att.Tier < winner.Tier {
				winner = r.att
			}
			cancel()
		}
	}
	_ = g.Wait()

	return winner
}

func (o *Orchestrator) record(att model.ExtractionAttempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	att.Seq = len(o.attempts)
	o.attempts = append(o.attempts, att)
}

// amendLast rewrites the status of the most recent record for the given
// attempt ID (ok downgraded to low_confidence during evaluation).
func (o *Orchestrator) amendLast(att model.ExtractionAttempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.attempts) - 1; i >= 0; i-- {
		if o.attempts[i].ID == att.ID {
			o.attempts[i].Status = att.Status
			return
		}
	}
}

func (o *Orchestrator) isDisabled(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disabled[name]
}

func (o *Orchestrator) disable(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disabled[name] = true
}

// rejectedAttempt records a circuit-breaker rejection so the audit trail
// shows the tier was consulted.
func rejectedAttempt(a adapter.Adapter, err error) model.ExtractionAttempt {
	att := model.ExtractionAttempt{
		ID:        uuid.NewString(),
		Provider:  a.Name(),
		Tier:      a.Tier(),
		Status:    model.StatusTransientError,
		StartedAt: time.Now(),
	}
	if err != nil {
		att.Error = err.Error()
	}
	return att
}
