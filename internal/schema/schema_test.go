package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/creditparse-cli/internal/model"
)

var testWeights = map[string]float64{
	"personal_info":  3,
	"credit_scores":  3,
	"accounts":       2,
	"negative_items": 2,
	"inquiries":      1,
	"public_records": 1,
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New(testWeights, 40)
	require.NoError(t, err)
	return v
}

func fullRecord() model.CreditReportRecord {
	bal := 1200.0
	return model.CreditReportRecord{
		PersonalInfo: model.PersonalInfo{
			Name:        "Jane Doe",
			Address:     "123 Main St",
			SSN:         "123-45-6789",
			DateOfBirth: "03/15/1985",
		},
		CreditScores: map[string]model.BureauScore{
			"experian": {Score: 745, Date: "01/15/2024", RangeMin: 300, RangeMax: 850},
		},
		Accounts: []model.Account{{
			CreditorName:  "Chase Bank",
			AccountNumber: "****1234",
			AccountType:   "revolving",
			Balance:       &bal,
			CreditLimit:   &bal,
			Status:        model.AccountCurrent,
			DateOpened:    "06/01/2015",
			LastActivity:  "01/01/2024",
		}},
	}
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestValidate_CompleteRecord(t *testing.T) {
	v := newValidator(t)
	report, err := v.Validate(fullRecord(), map[string]float64{
		"personal_info.name": 88,
		"credit_scores.experian": 84,
		"accounts":           80,
	}, map[string]int{"personal_info.name": 1, "credit_scores.experian": 1, "accounts": 1})
	require.NoError(t, err)

	assert.InDelta(t, 100, report.Completeness.Sections["personal_info"], 0.001)
	assert.InDelta(t, 100, report.Completeness.Sections["credit_scores"], 0.001)
	assert.InDelta(t, 100, report.Completeness.Sections["accounts"], 0.001)
	assert.InDelta(t, 100, report.Completeness.Overall, 0.001)
	assert.Greater(t, report.OverallConfidence, 80.0)
	assert.False(t, hasWarning(report.Warnings, "unrecognized"))
}

func TestValidate_OptionalSectionsAreVacuouslyComplete(t *testing.T) {
	v := newValidator(t)
	report, err := v.Validate(fullRecord(), nil, nil)
	require.NoError(t, err)

	// No negative items, inquiries, or public records on a clean report is
	// not an incompleteness.
	_, present := report.Completeness.Sections["negative_items"]
	assert.False(t, present)
	assert.InDelta(t, 100, report.Completeness.Overall, 0.001)
	assert.False(t, hasWarning(report.Warnings, "negative_items"))
}

func TestValidate_EmptyExpectedSectionWarns(t *testing.T) {
	v := newValidator(t)
	rec := fullRecord()
	rec.CreditScores = nil

	report, err := v.Validate(rec, nil, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0, report.Completeness.Sections["credit_scores"], 0.001)
	assert.Less(t, report.Completeness.Overall, 100.0)
	assert.True(t, hasWarning(report.Warnings, "credit_scores is entirely empty"))
}

func TestValidate_UnknownBureauRetainedAndFlagged(t *testing.T) {
	v := newValidator(t)
	rec := fullRecord()
	rec.CreditScores["innovis"] = model.BureauScore{Score: 700, RangeMin: 300, RangeMax: 850}

	report, err := v.Validate(rec, nil, nil)
	require.NoError(t, err)

	assert.Contains(t, report.Record.CreditScores, "innovis")
	assert.True(t, hasWarning(report.Warnings, `unrecognized credit bureau "innovis"`))
}

func TestValidate_UnknownAccountVocabularyFlagged(t *testing.T) {
	v := newValidator(t)
	rec := fullRecord()
	rec.Accounts[0].AccountType = "crypto margin"
	rec.Accounts[0].Status = "disputed by consumer"

	report, err := v.Validate(rec, nil, nil)
	require.NoError(t, err)

	assert.True(t, hasWarning(report.Warnings, `unrecognized account type "crypto margin"`))
	assert.True(t, hasWarning(report.Warnings, `unrecognized status "disputed by consumer"`))
	// Values survive untouched.
	assert.Equal(t, "crypto margin", report.Record.Accounts[0].AccountType)
}

func TestValidate_LowConfidenceFieldWarns(t *testing.T) {
	v := newValidator(t)
	report, err := v.Validate(fullRecord(), map[string]float64{
		"personal_info.name": 25,
	}, nil)
	require.NoError(t, err)

	assert.True(t, hasWarning(report.Warnings, "personal_info.name below confidence floor"))
}

func TestValidate_HighImportanceFieldFromDeepTierWarns(t *testing.T) {
	v := newValidator(t)
	report, err := v.Validate(fullRecord(), map[string]float64{
		"personal_info.ssn": 60,
		"accounts":          60,
	}, map[string]int{
		"personal_info.ssn": 3,
		"accounts":          3, // weight 2, not high importance
	})
	require.NoError(t, err)

	assert.True(t, hasWarning(report.Warnings, "high-importance field personal_info.ssn sourced from tier 3"))
	assert.False(t, hasWarning(report.Warnings, "high-importance field accounts"))
}

func TestValidate_OverallConfidenceScaledByCompleteness(t *testing.T) {
	v := newValidator(t)

	sparse := model.CreditReportRecord{
		PersonalInfo: model.PersonalInfo{Name: "Jane Doe"},
	}
	conf := map[string]float64{"personal_info.name": 90}

	report, err := v.Validate(sparse, conf, nil)
	require.NoError(t, err)

	// A confident but mostly-empty extraction must score well below its
	// per-field confidence.
	assert.Less(t, report.OverallConfidence, 45.0)
	assert.Greater(t, report.OverallConfidence, 0.0)
}

func TestValidate_NoPopulatedFields(t *testing.T) {
	v := newValidator(t)
	report, err := v.Validate(model.CreditReportRecord{}, map[string]float64{}, nil)
	require.NoError(t, err)
	assert.Zero(t, report.OverallConfidence)
}

func TestScoreCompleteness_PartialPersonalInfo(t *testing.T) {
	v := newValidator(t)
	rec := model.CreditReportRecord{
		PersonalInfo: model.PersonalInfo{Name: "Jane Doe", SSN: "123-45-6789"},
	}
	c := v.scoreCompleteness(rec)
	assert.InDelta(t, 50, c.Sections["personal_info"], 0.001)
}

func TestNew_BadWeightsStillWork(t *testing.T) {
	v, err := New(nil, 40)
	require.NoError(t, err)
	_, err = v.Validate(fullRecord(), nil, nil)
	assert.NoError(t, err)
}
