package adapter

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/time/rate"

	"github.com/sells-group/creditparse-cli/internal/config"
	"github.com/sells-group/creditparse-cli/internal/model"
	"github.com/sells-group/creditparse-cli/pkg/anthropic"
)

// extractionSystemPrompt is shared by every document, so it carries a cache
// breakpoint (see anthropic.BuildCachedSystemBlocks).
const extractionSystemPrompt = `You are a credit report extraction engine. You receive a consumer credit report (as an attached document, raw text, or both) and return ONLY a JSON object, no prose, with this shape:

{
  "personal_info": {"name": "", "ssn": "XXX-XX-XXXX", "address": "", "date_of_birth": "MM/DD/YYYY"},
  "credit_scores": [{"bureau": "experian|equifax|transunion", "score": 0, "date": "MM/DD/YYYY", "range_min": 300, "range_max": 850}],
  "accounts": [{"creditor_name": "", "account_number": "****1234", "account_type": "revolving|installment|mortgage|open|other", "balance": 0.0, "credit_limit": 0.0, "status": "current|30_days_late|60_days_late|90_days_late|120_days_late|charge_off|collection|closed|paid", "date_opened": "MM/DD/YYYY", "last_activity": "MM/DD/YYYY"}],
  "negative_items": [{"item_type": "", "creditor_name": "", "description": "", "date": "MM/DD/YYYY", "amount": 0.0}],
  "inquiries": [{"company": "", "date": "MM/DD/YYYY", "type": "hard|soft"}],
  "public_records": [{"record_type": "", "court": "", "date": "MM/DD/YYYY", "status": "", "amount": 0.0}]
}

Omit any field you cannot read. Never invent values. Keep account numbers masked as they appear. All dates MM/DD/YYYY.`

// Claude is the tier-3 generative interpreter: a best-effort reading of
// documents the structured extractor and OCR could not handle.
type Claude struct {
	client  anthropic.Client
	model   string
	maxTok  int64
	limiter *rate.Limiter
}

// NewClaude creates the tier-3 adapter from validated configuration.
func NewClaude(cfg config.AnthropicConfig) *Claude {
	return &Claude{
		client:  anthropic.NewClient(cfg.Key),
		model:   cfg.Model,
		maxTok:  cfg.MaxTokens,
		limiter: newLimiter(cfg.RatePerSec),
	}
}

// NewClaudeWithClient creates the adapter with an injected client, for tests.
func NewClaudeWithClient(c anthropic.Client, modelID string) *Claude {
	return &Claude{client: c, model: modelID, maxTok: 4096, limiter: newLimiter(0)}
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) Tier() int { return 3 }

func (c *Claude) Capabilities() []Capability {
	return []Capability{CapText, CapEntities}
}

func (c *Claude) Extract(ctx context.Context, doc model.RawDocument) (model.ExtractionAttempt, error) {
	attempt := newAttempt(c.Name(), c.Tier())

	if err := c.limiter.Wait(ctx); err != nil {
		return finish(attempt, err)
	}

	temp := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTok,
		System:      anthropic.BuildCachedSystemBlocks(extractionSystemPrompt),
		Temperature: &temp,
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: "Extract the structured credit report data from the attached document.",
				Document: &anthropic.DocumentAttachment{
					MediaType: doc.DeclaredType,
					Data:      doc.Content,
				},
			},
		},
	})
	if err != nil {
		return finish(attempt, err)
	}

	resp.Usage.LogCost(c.model, "tier3-extract")

	raw := stripFences(resp.Text())
	hints, ok := parseExtractionJSON(raw)
	if !ok {
		// The model answered but not in shape; keep its text for the regex
		// recognizers and let the orchestrator escalate.
		attempt.Text = raw
		attempt.Confidence = 10
		attempt.Status = model.StatusLowConfidence
		return finish(attempt, nil)
	}

	attempt.Entities = hints
	attempt.Confidence = 55
	return finish(attempt, nil)
}

// stripFences removes a Markdown code fence wrapper if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") && strings.HasSuffix(s, "```") {
		return strings.TrimSpace(s[7 : len(s)-3])
	}
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		return strings.TrimSpace(s[3 : len(s)-3])
	}
	return s
}

// extractionPayload mirrors the JSON shape requested in the system prompt.
type extractionPayload struct {
	PersonalInfo struct {
		Name        string `json:"name"`
		SSN         string `json:"ssn"`
		Address     string `json:"address"`
		DateOfBirth string `json:"date_of_birth"`
	} `json:"personal_info"`
	CreditScores []struct {
		Bureau   string `json:"bureau"`
		Score    int    `json:"score"`
		Date     string `json:"date"`
		RangeMin int    `json:"range_min"`
		RangeMax int    `json:"range_max"`
	} `json:"credit_scores"`
	Accounts      []json.RawMessage `json:"accounts"`
	NegativeItems []json.RawMessage `json:"negative_items"`
	Inquiries     []json.RawMessage `json:"inquiries"`
	PublicRecords []json.RawMessage `json:"public_records"`
}

// parseExtractionJSON converts the model's JSON into the pipeline's entity
// hint vocabulary. Compound entries stay JSON-encoded in the hint value; the
// field extractor decodes them.
func parseExtractionJSON(raw string) ([]model.EntityHint, bool) {
	var payload extractionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false
	}

	const hintConf = 55.0
	var hints []model.EntityHint

	addSimple := func(typ, val string) {
		if strings.TrimSpace(val) != "" {
			hints = append(hints, model.EntityHint{Type: typ, Value: val, Confidence: hintConf})
		}
	}
	addSimple("name", payload.PersonalInfo.Name)
	addSimple("ssn", payload.PersonalInfo.SSN)
	addSimple("address", payload.PersonalInfo.Address)
	addSimple("date_of_birth", payload.PersonalInfo.DateOfBirth)

	for _, s := range payload.CreditScores {
		if s.Bureau == "" || s.Score == 0 {
			continue
		}
		encoded, err := json.Marshal(s)
		if err != nil {
			continue
		}
		hints = append(hints, model.EntityHint{Type: "credit_score", Value: string(encoded), Confidence: hintConf})
	}

	addCompound := func(typ string, entries []json.RawMessage) {
		for _, e := range entries {
			hints = append(hints, model.EntityHint{Type: typ, Value: string(e), Confidence: hintConf})
		}
	}
	addCompound("account", payload.Accounts)
	addCompound("negative_item", payload.NegativeItems)
	addCompound("inquiry", payload.Inquiries)
	addCompound("public_record", payload.PublicRecords)

	return hints, len(hints) > 0
}
