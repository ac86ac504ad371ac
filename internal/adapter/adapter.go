// Package adapter wraps heterogeneous extraction providers behind one
// uniform contract. Adapters are the only pipeline components that perform
// network I/O.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sells-group/creditparse-cli/internal/model"
	"github.com/sells-group/creditparse-cli/internal/resilience"
)

// Capability tags what an adapter can produce. Absent capabilities default to
// empty output, not errors.
type Capability string

const (
	CapText             Capability = "extractText"
	CapEntities         Capability = "extractEntities"
	CapNativeConfidence Capability = "nativeConfidence"
)

// Adapter is the uniform extraction contract. Extract must honor the context
// deadline: the returned attempt carries a timeout status rather than the
// call hanging past its budget. Every returned attempt has Status set, even
// when err is non-nil.
type Adapter interface {
	Name() string
	Tier() int
	Capabilities() []Capability
	Extract(ctx context.Context, doc model.RawDocument) (model.ExtractionAttempt, error)
}

// HasCapability reports whether the adapter declares the given capability.
func HasCapability(a Adapter, c Capability) bool {
	for _, have := range a.Capabilities() {
		if have == c {
			return true
		}
	}
	return false
}

// newAttempt seeds an attempt record for one provider invocation.
func newAttempt(provider string, tier int) model.ExtractionAttempt {
	return model.ExtractionAttempt{
		ID:        uuid.NewString(),
		Provider:  provider,
		Tier:      tier,
		StartedAt: time.Now(),
	}
}

// finish stamps latency and classifies the outcome onto the attempt.
func finish(attempt model.ExtractionAttempt, err error) (model.ExtractionAttempt, error) {
	attempt.Latency = time.Since(attempt.StartedAt)
	if err == nil {
		if attempt.Status == "" {
			attempt.Status = model.StatusOK
		}
		return attempt, nil
	}

	attempt.Error = err.Error()
	attempt.Status = classify(err)
	return attempt, err
}

// classify maps an adapter error onto the closed attempt status set.
func classify(err error) model.AttemptStatus {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return model.StatusTimeout
	case resilience.IsPermanent(err):
		return model.StatusPermanentError
	default:
		return model.StatusTransientError
	}
}

// newLimiter builds a per-provider rate limiter. Zero or negative rates mean
// no limiting.
func newLimiter(perSec int) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSec), perSec)
}

// clamp bounds a confidence to [0,100].
func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
