package adapter

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/creditparse-cli/internal/config"
	"github.com/sells-group/creditparse-cli/internal/model"
	"github.com/sells-group/creditparse-cli/internal/resilience"
	"github.com/sells-group/creditparse-cli/pkg/vision"
)

// Vision is the tier-2 generic OCR provider: plain text with page-level
// confidence, no entities.
type Vision struct {
	client  vision.Client
	limiter *rate.Limiter
}

// NewVision creates the tier-2 adapter from validated configuration.
func NewVision(cfg config.VisionConfig) *Vision {
	return &Vision{
		client:  vision.NewClient(cfg.Key, vision.WithBaseURL(cfg.BaseURL)),
		limiter: newLimiter(cfg.RatePerSec),
	}
}

// NewVisionWithClient creates the adapter with an injected client, for tests.
func NewVisionWithClient(c vision.Client) *Vision {
	return &Vision{client: c, limiter: newLimiter(0)}
}

func (v *Vision) Name() string { return "vision" }

func (v *Vision) Tier() int { return 2 }

func (v *Vision) Capabilities() []Capability {
	return []Capability{CapText, CapNativeConfidence}
}

func (v *Vision) Extract(ctx context.Context, doc model.RawDocument) (model.ExtractionAttempt, error) {
	attempt := newAttempt(v.Name(), v.Tier())

	if err := v.limiter.Wait(ctx); err != nil {
		return finish(attempt, err)
	}

	resp, err := v.client.Annotate(ctx, vision.AnnotateRequest{
		Content:  doc.Content,
		MimeType: doc.DeclaredType,
	})
	if err != nil {
		return finish(attempt, classifyVisionError(err))
	}

	if len(resp.Responses) == 0 {
		return finish(attempt, resilience.NewTransientError(
			eris.New("vision: empty annotation response"), 0))
	}

	result := resp.Responses[0]
	if result.Error != nil {
		return finish(attempt, resilience.ClassifyHTTPStatus(
			eris.Errorf("vision: annotation error %d: %s", result.Error.Code, result.Error.Message),
			grpcToHTTPStatus(result.Error.Code)))
	}

	if result.FullTextAnnotation == nil {
		// Scanned but unreadable: a usable call with nothing in it.
		attempt.Confidence = 0
		return finish(attempt, nil)
	}

	attempt.Text = result.FullTextAnnotation.Text
	attempt.Confidence = visionConfidence(result.FullTextAnnotation)

	return finish(attempt, nil)
}

func classifyVisionError(err error) error {
	var apiErr *vision.APIError
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTPStatus(err, apiErr.StatusCode)
	}
	return err
}

// grpcToHTTPStatus maps the embedded status codes the annotation API uses
// onto HTTP codes so one classification path serves both error shapes.
func grpcToHTTPStatus(code int) int {
	switch code {
	case 3, 9: // INVALID_ARGUMENT, FAILED_PRECONDITION
		return 400
	case 7, 16: // PERMISSION_DENIED, UNAUTHENTICATED
		return 403
	case 8: // RESOURCE_EXHAUSTED
		return 429
	case 4: // DEADLINE_EXCEEDED
		return 504
	case 14: // UNAVAILABLE
		return 503
	default:
		return 500
	}
}

func visionConfidence(fta *vision.FullTextAnnotation) float64 {
	if len(fta.Pages) == 0 {
		if fta.Text == "" {
			return 0
		}
		return 50
	}
	var sum float64
	for _, p := range fta.Pages {
		sum += p.Confidence
	}
	return clamp(sum / float64(len(fta.Pages)) * 100)
}
