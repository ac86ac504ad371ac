package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/creditparse-cli/internal/adapter"
	"github.com/sells-group/creditparse-cli/internal/model"
	"github.com/sells-group/creditparse-cli/internal/resilience"
)

// mockAdapter scripts one tier's behavior per invocation.
type mockAdapter struct {
	name string
	tier int
	fn   func(call int) (model.ExtractionAttempt, error)

	mu    sync.Mutex
	calls int
}

func (m *mockAdapter) Name() string                      { return m.name }
func (m *mockAdapter) Tier() int                         { return m.tier }
func (m *mockAdapter) Capabilities() []adapter.Capability { return nil }

func (m *mockAdapter) Extract(ctx context.Context, _ model.RawDocument) (model.ExtractionAttempt, error) {
	if err := ctx.Err(); err != nil {
		return model.ExtractionAttempt{}, err
	}
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()
	return m.fn(call)
}

func (m *mockAdapter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func okAttempt(provider string, tier int, conf float64) model.ExtractionAttempt {
	return model.ExtractionAttempt{
		ID:         fmt.Sprintf("%s-att", provider),
		Provider:   provider,
		Tier:       tier,
		Status:     model.StatusOK,
		Text:       "Name: Jane Doe",
		Confidence: conf,
		StartedAt:  time.Now(),
	}
}

func errAttempt(provider string, tier int, status model.AttemptStatus) model.ExtractionAttempt {
	return model.ExtractionAttempt{
		ID:        fmt.Sprintf("%s-err", provider),
		Provider:  provider,
		Tier:      tier,
		Status:    status,
		StartedAt: time.Now(),
	}
}

// fastPolicy keeps retry pacing out of test wall time.
func fastPolicy() *Policy {
	return &Policy{
		Defaults: DefaultPolicy{
			AcceptThreshold: 50,
			Retry: RetryPolicy{
				MaxAttempts:      3,
				InitialBackoffMs: 1,
				MaxBackoffMs:     2,
				Multiplier:       2.0,
			},
		},
		Tiers: map[string]TierPolicy{
			"docai":  {AcceptThreshold: 80},
			"vision": {AcceptThreshold: 60},
			"claude": {AcceptThreshold: 45},
		},
	}
}

func newTestOrchestrator(adapters []adapter.Adapter, race bool) *Orchestrator {
	return New(adapters, fastPolicy(), resilience.NewProviderBreakers(resilience.DefaultCircuitBreakerConfig()), race)
}

func doc() model.RawDocument {
	return model.RawDocument{ID: "doc-1", SHA256: "abc"}
}

func TestRun_FirstTierAccepts(t *testing.T) {
	tier1 := &mockAdapter{name: "docai", tier: 1, fn: func(int) (model.ExtractionAttempt, error) {
		return okAttempt("docai", 1, 92), nil
	}}
	tier2 := &mockAdapter{name: "vision", tier: 2, fn: func(int) (model.ExtractionAttempt, error) {
		t.Fatal("tier 2 must not run when tier 1 accepts")
		return model.ExtractionAttempt{}, nil
	}}

	out := newTestOrchestrator([]adapter.Adapter{tier1, tier2}, false).Run(context.Background(), doc())

	assert.Equal(t, StateAccepted, out.State)
	assert.Equal(t, "tier1", out.AcceptedTier)
	require.NotNil(t, out.Accepted)
	assert.InDelta(t, 92, out.Accepted.Confidence, 0.001)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, 0, out.Attempts[0].Seq)
	assert.Equal(t, 0, tier2.callCount())
}

func TestRun_LowConfidenceEscalates(t *testing.T) {
	tier1 := &mockAdapter{name: "docai", tier: 1, fn: func(int) (model.ExtractionAttempt, error) {
		return okAttempt("docai", 1, 55), nil // below docai's 80
	}}
	tier2 := &mockAdapter{name: "vision", tier: 2, fn: func(int) (model.ExtractionAttempt, error) {
		return okAttempt("vision", 2, 75), nil
	}}

	out := newTestOrchestrator([]adapter.Adapter{tier1, tier2}, false).Run(context.Background(), doc())

	assert.Equal(t, StateAccepted, out.State)
	assert.Equal(t, "tier2", out.AcceptedTier)
	require.Len(t, out.Attempts, 2)
	// The rejected tier-1 attempt stays in the history, downgraded.
	assert.Equal(t, model.StatusLowConfidence, out.Attempts[0].Status)
	assert.Equal(t, model.StatusOK, out.Attempts[1].Status)
}

func TestRun_TransientErrorRetriedWithinTier(t *testing.T) {
	tier1 := &mockAdapter{name: "docai", tier: 1, fn: func(call int) (model.ExtractionAttempt, error) {
		if call < 3 {
			return errAttempt("docai", 1, model.StatusTransientError),
				resilience.NewTransientError(errors.New("overloaded"), 503)
		}
		return okAttempt("docai", 1, 90), nil
	}}

	out := newTestOrchestrator([]adapter.Adapter{tier1}, false).Run(context.Background(), doc())

	assert.Equal(t, StateAccepted, out.State)
	assert.Equal(t, 3, tier1.callCount())
	// Every retry is its own history entry with a monotonic Seq.
	require.Len(t, out.Attempts, 3)
	for i, att := range out.Attempts {
		assert.Equal(t, i, att.Seq)
	}
}

func TestRun_PermanentErrorSkipsRetryAndEscalates(t *testing.T) {
	tier1 := &mockAdapter{name: "docai", tier: 1, fn: func(int) (model.ExtractionAttempt, error) {
		return errAttempt("docai", 1, model.StatusPermanentError),
			resilience.NewPermanentError(errors.New("bad credentials"), 401)
	}}
	tier2 := &mockAdapter{name: "vision", tier: 2, fn: func(int) (model.ExtractionAttempt, error) {
		return okAttempt("vision", 2, 70), nil
	}}

	out := newTestOrchestrator([]adapter.Adapter{tier1, tier2}, false).Run(context.Background(), doc())

	assert.Equal(t, StateAccepted, out.State)
	assert.Equal(t, "tier2", out.AcceptedTier)
	// Permanent failures are not retried.
	assert.Equal(t, 1, tier1.callCount())
}

func TestRun_AllTiersExhausted(t *testing.T) {
	tier1 := &mockAdapter{name: "docai", tier: 1, fn: func(int) (model.ExtractionAttempt, error) {
		return okAttempt("docai", 1, 30), nil
	}}
	tier2 := &mockAdapter{name: "vision", tier: 2, fn: func(int) (model.ExtractionAttempt, error) {
		return okAttempt("vision", 2, 20), nil
	}}

	out := newTestOrchestrator([]adapter.Adapter{tier1, tier2}, false).Run(context.Background(), doc())

	assert.Equal(t, StateExhausted, out.State)
	assert.Nil(t, out.Accepted)
	assert.Empty(t, out.AcceptedTier)
	// Partial attempts survive for fusion.
	require.Len(t, out.Attempts, 2)
}

func TestRun_DeadlineStopsEscalation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tier1 := &mockAdapter{name: "docai", tier: 1, fn: func(int) (model.ExtractionAttempt, error) {
		return okAttempt("docai", 1, 92), nil
	}}

	out := newTestOrchestrator([]adapter.Adapter{tier1}, false).Run(ctx, doc())

	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, 0, tier1.callCount())
}

func TestRun_RaceModePrefersLowerTier(t *testing.T) {
	tier1 := &mockAdapter{name: "docai", tier: 1, fn: func(int) (model.ExtractionAttempt, error) {
		return okAttempt("docai", 1, 85), nil
	}}
	tier2 := &mockAdapter{name: "vision", tier: 2, fn: func(int) (model.ExtractionAttempt, error) {
		time.Sleep(100 * time.Millisecond)
		return okAttempt("vision", 2, 95), nil
	}}

	out := newTestOrchestrator([]adapter.Adapter{tier1, tier2}, true).Run(context.Background(), doc())

	assert.Equal(t, StateAccepted, out.State)
	assert.Equal(t, "tier1", out.AcceptedTier)
}

func TestRun_RaceModeWinnerFromSecondTier(t *testing.T) {
	tier1 := &mockAdapter{name: "docai", tier: 1, fn: func(int) (model.ExtractionAttempt, error) {
		return okAttempt("docai", 1, 10), nil // never meets threshold
	}}
	tier2 := &mockAdapter{name: "vision", tier: 2, fn: func(int) (model.ExtractionAttempt, error) {
		return okAttempt("vision", 2, 95), nil
	}}

	out := newTestOrchestrator([]adapter.Adapter{tier1, tier2}, true).Run(context.Background(), doc())

	assert.Equal(t, StateAccepted, out.State)
	assert.Equal(t, "tier2", out.AcceptedTier)
}
