package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/creditparse-cli/internal/model"
)

func attempt(conf float64) model.ExtractionAttempt {
	return model.ExtractionAttempt{
		ID:         "att-1",
		Provider:   "docai",
		Tier:       1,
		Seq:        0,
		Status:     model.StatusOK,
		Confidence: conf,
	}
}

func candidatesByKey(cands []model.CandidateField, key string) []model.CandidateField {
	var out []model.CandidateField
	for _, c := range cands {
		if c.FieldKey == key {
			out = append(out, c)
		}
	}
	return out
}

func TestFields_TextRecognition(t *testing.T) {
	att := attempt(92)
	att.Text = "Name: Jane Doe\nSSN: 123-45-6789\nExperian: 745"

	cands := Fields(att)

	names := candidatesByKey(cands, "personal_info.name")
	require.Len(t, names, 1)
	assert.Equal(t, "Jane Doe", names[0].Value)
	assert.Equal(t, "docai", names[0].Provider)
	assert.Equal(t, 1, names[0].Tier)
	assert.Equal(t, "att-1", names[0].AttemptID)

	scores := candidatesByKey(cands, "credit_scores.experian")
	require.Len(t, scores, 1)
}

func TestFields_ConfidenceNeverExceedsAttempt(t *testing.T) {
	// Labeled matches score 88 in isolation; a weak attempt caps them.
	att := attempt(50)
	att.Text = "Name: Jane Doe\nSSN: 123-45-6789"

	for _, c := range Fields(att) {
		assert.LessOrEqual(t, c.Confidence, 50.0, "field %s", c.FieldKey)
	}
}

func TestFields_EmptyAttempt(t *testing.T) {
	assert.Empty(t, Fields(attempt(80)))
}

func TestFields_SimpleHints(t *testing.T) {
	att := attempt(90)
	att.Entities = []model.EntityHint{
		{Type: "person_name", Value: "Jane Doe", Confidence: 85},
		{Type: "ssn", Value: "123-45-6789", Confidence: 95},
		{Type: "unknown_entity", Value: "whatever", Confidence: 80},
	}

	cands := Fields(att)
	require.Len(t, cands, 2)

	names := candidatesByKey(cands, "personal_info.name")
	require.Len(t, names, 1)
	assert.InDelta(t, 85, names[0].Confidence, 0.001)

	// Hint confidence above the attempt's is capped.
	ssns := candidatesByKey(cands, "personal_info.ssn")
	require.Len(t, ssns, 1)
	assert.InDelta(t, 90, ssns[0].Confidence, 0.001)
}

func TestFields_CompoundScoreHint(t *testing.T) {
	att := attempt(70)
	att.Entities = []model.EntityHint{
		{Type: "credit_score", Value: `{"bureau":"Equifax","score":712,"date":"02/01/2024"}`, Confidence: 60},
	}

	cands := Fields(att)
	scores := candidatesByKey(cands, "credit_scores.equifax")
	require.Len(t, scores, 1)

	bs := scores[0].Value.(model.BureauScore)
	assert.Equal(t, 712, bs.Score)
	assert.Equal(t, "02/01/2024", bs.Date)
	assert.Equal(t, 300, bs.RangeMin)
	assert.Equal(t, 850, bs.RangeMax)
}

func TestFields_CompoundAccountHint(t *testing.T) {
	att := attempt(70)
	att.Entities = []model.EntityHint{
		{Type: "account", Value: `{"creditor_name":"Chase Bank","account_number":"****1234","status":"charged off"}`, Confidence: 55},
	}

	cands := Fields(att)
	accts := candidatesByKey(cands, "accounts")
	require.Len(t, accts, 1)

	acct := accts[0].Value.(model.Account)
	assert.Equal(t, "Chase Bank", acct.CreditorName)
	assert.Equal(t, model.AccountChargeOff, acct.Status)
}

func TestFields_MalformedHintSkipped(t *testing.T) {
	att := attempt(70)
	att.Entities = []model.EntityHint{
		{Type: "account", Value: `{not json`, Confidence: 55},
		{Type: "credit_score", Value: `{"bureau":"equifax","score":9999}`, Confidence: 55},
	}

	// Parse failures are field-local: no candidates, no panic.
	assert.Empty(t, Fields(att))
}

func TestFields_TextAndHintsCombine(t *testing.T) {
	att := attempt(90)
	att.Text = "Name: Jane Doe"
	att.Entities = []model.EntityHint{
		{Type: "ssn", Value: "123-45-6789", Confidence: 80},
	}

	cands := Fields(att)
	assert.Len(t, candidatesByKey(cands, "personal_info.name"), 1)
	assert.Len(t, candidatesByKey(cands, "personal_info.ssn"), 1)
}
