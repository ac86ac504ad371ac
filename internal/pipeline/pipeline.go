// Package pipeline wires intake, tiered extraction, fusion, validation, and
// compliance checks into a single run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/creditparse-cli/internal/adapter"
	"github.com/sells-group/creditparse-cli/internal/config"
	"github.com/sells-group/creditparse-cli/internal/extract"
	"github.com/sells-group/creditparse-cli/internal/fusion"
	"github.com/sells-group/creditparse-cli/internal/intake"
	"github.com/sells-group/creditparse-cli/internal/model"
	"github.com/sells-group/creditparse-cli/internal/orchestrator"
	"github.com/sells-group/creditparse-cli/internal/resilience"
	"github.com/sells-group/creditparse-cli/internal/schema"
	"github.com/sells-group/creditparse-cli/internal/violation"
)

// recordValidator is the shape-and-scoring contract applied to the fused
// record.
type recordValidator interface {
	Validate(rec model.CreditReportRecord, fieldConf map[string]float64, winnerTiers map[string]int) (schema.Report, error)
}

// Pipeline is the long-lived run coordinator. Adapters and circuit breakers
// are shared across runs so breaker state survives between documents.
type Pipeline struct {
	cfg      *config.Config
	policy   *orchestrator.Policy
	adapters []adapter.Adapter
	breakers *resilience.ProviderBreakers
	schema   recordValidator
	detector *violation.Detector

	// inflight collapses concurrent submissions of the same document so a
	// given document is only ever processed once at a time; duplicates share
	// the first run's result.
	inflight singleflight.Group
}

// New builds the pipeline from configuration. Disabled providers are simply
// absent from the tier chain; manual review is always the terminal tier.
func New(cfg *config.Config) (*Pipeline, error) {
	policy, err := orchestrator.LoadPolicy(cfg.Pipeline.PolicyPath)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load policy")
	}

	var adapters []adapter.Adapter
	if cfg.DocAI.Enabled {
		adapters = append(adapters, adapter.NewDocAI(cfg.DocAI))
	}
	if cfg.Vision.Enabled {
		adapters = append(adapters, adapter.NewVision(cfg.Vision))
	}
	if cfg.Anthropic.Enabled {
		adapters = append(adapters, adapter.NewClaude(cfg.Anthropic))
	}
	adapters = append(adapters, adapter.NewManual())

	return NewWithAdapters(cfg, policy, adapters)
}

// NewWithAdapters builds the pipeline around an explicit tier chain, in
// ascending tier order.
func NewWithAdapters(cfg *config.Config, policy *orchestrator.Policy, adapters []adapter.Adapter) (*Pipeline, error) {
	validator, err := schema.New(cfg.Pipeline.SectionWeights, cfg.Pipeline.LowConfidenceFloor)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build validator")
	}
	return &Pipeline{
		cfg:      cfg,
		policy:   policy,
		adapters: adapters,
		breakers: resilience.NewProviderBreakers(resilience.DefaultCircuitBreakerConfig()),
		schema:   validator,
		detector: violation.NewDetector(),
	}, nil
}

// Process validates the raw bytes and runs the full pipeline. Concurrent
// submissions of byte-identical content are coalesced on the content hash;
// the second caller receives the first run's result.
func (p *Pipeline) Process(ctx context.Context, data []byte, declaredType, filename string) (*model.ExtractionResult, error) {
	doc, err := intake.Validate(data, declaredType, filename, intake.Limits{
		MaxSizeBytes: p.cfg.Intake.MaxSizeBytes,
		AllowedTypes: p.cfg.Intake.AllowedTypes,
	})
	if err != nil {
		return nil, err
	}

	v, err, shared := p.inflight.Do(doc.SHA256, func() (any, error) {
		return p.run(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		zap.L().Info("duplicate submission coalesced",
			zap.String("sha256", doc.SHA256),
			zap.String("filename", filename))
	}
	return v.(*model.ExtractionResult), nil
}

// run executes one pipeline pass under the run deadline. Total extraction
// failure degrades to an empty low-confidence record flagged for manual
// review; the only error path is a structurally malformed fused record,
// which is a pipeline defect rather than a document problem.
func (p *Pipeline) run(ctx context.Context, doc model.RawDocument) (*model.ExtractionResult, error) {
	deadline := time.Duration(p.cfg.Pipeline.DeadlineSecs) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	runID := uuid.NewString()
	start := time.Now()
	zap.L().Info("run started",
		zap.String("run_id", runID),
		zap.String("doc", doc.ID),
		zap.String("type", doc.DetectedType),
		zap.Int64("size", doc.Size))

	orch := orchestrator.New(p.adapters, p.policy, p.breakers, p.cfg.Pipeline.RaceAdjacentTiers)
	outcome := orch.Run(runCtx, doc)

	var candidates []model.CandidateField
	for _, att := range outcome.Attempts {
		if !att.Usable() {
			continue
		}
		candidates = append(candidates, extract.Fields(att)...)
	}

	if len(candidates) == 0 {
		return p.totalFailure(runID, outcome), nil
	}

	fused := fusion.Fuse(candidates)

	report, err := p.schema.Validate(fused.Record, fused.FieldConfidence, fused.WinnerTiers)
	if err != nil {
		// A malformed fused record is a fusion bug, not a document problem.
		// Fatal: callers must be able to tell it apart from low-confidence
		// degradation.
		zap.L().Error("fused record failed shape validation",
			zap.String("run_id", runID), zap.Error(err))
		return nil, eris.Wrapf(err, "pipeline: run %s", runID)
	}

	result := &model.ExtractionResult{
		RunID:             runID,
		Record:            report.Record,
		FieldConfidence:   fused.FieldConfidence,
		OverallConfidence: report.OverallConfidence,
		Completeness:      report.Completeness,
		ProcessingMethod:  processingMethod(fused.WinnerTiers, outcome),
		Warnings:          report.Warnings,
		Violations:        p.detector.Detect(report.Record),
		Attempts:          outcome.Attempts,
	}
	if outcome.State == orchestrator.StateExhausted {
		result.Warnings = append(result.Warnings,
			"no tier met its acceptance threshold; record fused from partial attempts")
	}

	zap.L().Info("run finished",
		zap.String("run_id", runID),
		zap.String("method", result.ProcessingMethod),
		zap.Float64("overall_confidence", result.OverallConfidence),
		zap.Int("attempts", len(result.Attempts)),
		zap.Int("violations", len(result.Violations)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// totalFailure is the graceful degradation path: an empty record, zero
// confidence, and an explicit manual-review warning. Never an error.
func (p *Pipeline) totalFailure(runID string, outcome orchestrator.Outcome) *model.ExtractionResult {
	zap.L().Warn("extraction produced no usable material",
		zap.String("run_id", runID),
		zap.Int("attempts", len(outcome.Attempts)))
	return &model.ExtractionResult{
		RunID:             runID,
		Record:            model.CreditReportRecord{},
		FieldConfidence:   map[string]float64{},
		OverallConfidence: 0,
		Completeness:      model.Completeness{Sections: map[string]float64{}},
		ProcessingMethod:  "none",
		Warnings:          []string{"extraction failed at every tier; manual review required"},
		Attempts:          outcome.Attempts,
	}
}

// processingMethod labels the run by the tier that supplied most of the fused
// fields, falling back to the accepted tier when fusion has no winners.
func processingMethod(winnerTiers map[string]int, outcome orchestrator.Outcome) string {
	if len(winnerTiers) == 0 {
		if outcome.AcceptedTier != "" {
			return outcome.AcceptedTier
		}
		return "none"
	}
	counts := map[int]int{}
	for _, tier := range winnerTiers {
		counts[tier]++
	}
	tiers := make([]int, 0, len(counts))
	for t := range counts {
		tiers = append(tiers, t)
	}
	// Ties go to the lower, more trusted tier.
	sort.Ints(tiers)
	best := tiers[0]
	for _, t := range tiers {
		if counts[t] > counts[best] {
			best = t
		}
	}
	return fmt.Sprintf("tier%d", best)
}
