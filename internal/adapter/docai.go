package adapter

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/sells-group/creditparse-cli/internal/config"
	"github.com/sells-group/creditparse-cli/internal/model"
	"github.com/sells-group/creditparse-cli/internal/resilience"
	"github.com/sells-group/creditparse-cli/pkg/docai"
)

// DocAI is the tier-1 structured document extractor. It is the highest
// fidelity provider: full text plus typed entities with native confidence.
type DocAI struct {
	client  docai.Client
	limiter *rate.Limiter
}

// NewDocAI creates the tier-1 adapter from validated configuration.
func NewDocAI(cfg config.DocAIConfig) *DocAI {
	return &DocAI{
		client: docai.NewClient(cfg.Key, cfg.ProjectID, cfg.ProcessorID,
			docai.WithBaseURL(cfg.BaseURL)),
		limiter: newLimiter(cfg.RatePerSec),
	}
}

// NewDocAIWithClient creates the adapter with an injected client, for tests.
func NewDocAIWithClient(c docai.Client) *DocAI {
	return &DocAI{client: c, limiter: newLimiter(0)}
}

func (d *DocAI) Name() string { return "docai" }

func (d *DocAI) Tier() int { return 1 }

func (d *DocAI) Capabilities() []Capability {
	return []Capability{CapText, CapEntities, CapNativeConfidence}
}

func (d *DocAI) Extract(ctx context.Context, doc model.RawDocument) (model.ExtractionAttempt, error) {
	attempt := newAttempt(d.Name(), d.Tier())

	if err := d.limiter.Wait(ctx); err != nil {
		return finish(attempt, err)
	}

	resp, err := d.client.Process(ctx, docai.ProcessRequest{
		Content:  doc.Content,
		MimeType: doc.DeclaredType,
	})
	if err != nil {
		return finish(attempt, classifyDocAIError(err))
	}

	attempt.Text = resp.Document.Text
	attempt.Entities = toEntityHints(resp.Document.Entities)
	attempt.Confidence = docaiConfidence(resp.Document)

	return finish(attempt, nil)
}

func classifyDocAIError(err error) error {
	var apiErr *docai.APIError
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTPStatus(err, apiErr.StatusCode)
	}
	return err
}

func toEntityHints(entities []docai.Entity) []model.EntityHint {
	if len(entities) == 0 {
		return nil
	}
	hints := make([]model.EntityHint, 0, len(entities))
	for _, e := range entities {
		hints = append(hints, model.EntityHint{
			Type:       e.Type,
			Value:      e.MentionText,
			Confidence: clamp(e.Confidence * 100),
		})
	}
	return hints
}

// docaiConfidence normalizes the processor's native quality signals to the
// 0–100 attempt scale. Page confidence dominates; entity coverage nudges it.
func docaiConfidence(d docai.Document) float64 {
	if len(d.Pages) == 0 && len(d.Entities) == 0 {
		if d.Text == "" {
			return 0
		}
		// Text with no quality signal: treat as decent but not native-scored.
		return 70
	}

	var pageSum float64
	for _, p := range d.Pages {
		pageSum += p.Confidence
	}
	conf := 0.0
	if len(d.Pages) > 0 {
		conf = pageSum / float64(len(d.Pages)) * 100
	}

	if len(d.Entities) > 0 {
		var entSum float64
		for _, e := range d.Entities {
			entSum += e.Confidence
		}
		entConf := entSum / float64(len(d.Entities)) * 100
		if conf == 0 {
			conf = entConf
		} else {
			conf = 0.7*conf + 0.3*entConf
		}
	}

	return clamp(conf)
}
