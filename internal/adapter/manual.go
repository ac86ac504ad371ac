package adapter

import (
	"context"

	"github.com/sells-group/creditparse-cli/internal/model"
)

// Manual is the terminal tier. It performs no extraction; its attempt exists
// so exhausted runs carry an explicit marker that a human has to look at the
// document.
type Manual struct{}

// NewManual creates the terminal review stub.
func NewManual() *Manual { return &Manual{} }

func (m *Manual) Name() string { return "manual" }

func (m *Manual) Tier() int { return 4 }

func (m *Manual) Capabilities() []Capability { return nil }

func (m *Manual) Extract(_ context.Context, _ model.RawDocument) (model.ExtractionAttempt, error) {
	attempt := newAttempt(m.Name(), m.Tier())
	attempt.Status = model.StatusLowConfidence
	attempt.Confidence = 0
	attempt.Latency = 0
	return attempt, nil
}
