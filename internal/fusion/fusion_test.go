package fusion

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/creditparse-cli/internal/model"
)

func cand(key string, value any, conf float64, tier, seq int) model.CandidateField {
	return model.CandidateField{
		FieldKey:   key,
		Value:      value,
		Confidence: conf,
		Provider:   "test",
		Tier:       tier,
		Seq:        seq,
	}
}

func TestFuse_HighestConfidenceWins(t *testing.T) {
	res := Fuse([]model.CandidateField{
		cand("personal_info.name", "JANE DOE", 65, 2, 1),
		cand("personal_info.name", "Jane A. Doe", 88, 1, 0),
	})

	assert.Equal(t, "Jane A. Doe", res.Record.PersonalInfo.Name)
	assert.InDelta(t, 88, res.FieldConfidence["personal_info.name"], 0.001)
	assert.Equal(t, 1, res.WinnerTiers["personal_info.name"])
}

func TestFuse_TieBreaksOnTierThenRecency(t *testing.T) {
	// Equal confidence: lower tier wins.
	res := Fuse([]model.CandidateField{
		cand("personal_info.name", "From Tier 3", 70, 3, 5),
		cand("personal_info.name", "From Tier 1", 70, 1, 0),
	})
	assert.Equal(t, "From Tier 1", res.Record.PersonalInfo.Name)

	// Equal confidence and tier: later attempt wins.
	res = Fuse([]model.CandidateField{
		cand("personal_info.name", "Earlier", 70, 1, 0),
		cand("personal_info.name", "Later", 70, 1, 3),
	})
	assert.Equal(t, "Later", res.Record.PersonalInfo.Name)
}

func TestFuse_Deterministic(t *testing.T) {
	base := []model.CandidateField{
		cand("personal_info.name", "Jane Doe", 88, 1, 0),
		cand("personal_info.ssn", "123-45-6789", 88, 1, 0),
		cand("personal_info.name", "JANE DOE", 65, 2, 1),
		cand("credit_scores.experian", model.BureauScore{Score: 745, RangeMin: 300, RangeMax: 850}, 84, 1, 0),
		cand("credit_scores.experian", model.BureauScore{Score: 740, RangeMin: 300, RangeMax: 850}, 60, 2, 1),
		cand("accounts", model.Account{CreditorName: "Chase Bank", AccountNumber: "****1234"}, 72, 1, 0),
		cand("accounts", model.Account{CreditorName: "CHASE BANK NA", AccountNumber: "****1234", Status: model.AccountCurrent}, 55, 3, 2),
	}

	first := Fuse(base)

	rng := rand.New(rand.NewSource(42))
	for range 10 {
		shuffled := make([]model.CandidateField, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		again := Fuse(shuffled)
		require.True(t, reflect.DeepEqual(first.Record, again.Record), "fused record must not depend on input order")
		require.True(t, reflect.DeepEqual(first.FieldConfidence, again.FieldConfidence))
	}
}

func TestFuse_Idempotent(t *testing.T) {
	base := []model.CandidateField{
		cand("personal_info.name", "Jane Doe", 88, 1, 0),
		cand("credit_scores.equifax", model.BureauScore{Score: 712, RangeMin: 300, RangeMax: 850}, 80, 1, 0),
	}

	first := Fuse(base)
	second := Fuse(base)
	assert.Equal(t, first, second)
}

func TestFuse_AbsenceProducesNoEntry(t *testing.T) {
	res := Fuse([]model.CandidateField{
		cand("personal_info.name", "Jane Doe", 88, 1, 0),
	})

	assert.Empty(t, res.Record.PersonalInfo.SSN)
	_, present := res.FieldConfidence["personal_info.ssn"]
	assert.False(t, present, "absent fields must not appear in the confidence map")
}

func TestFuse_InconsistentCandidateDemoted(t *testing.T) {
	res := Fuse([]model.CandidateField{
		// Invalid SSN area number at high confidence.
		cand("personal_info.ssn", "000-12-3456", 90, 1, 0),
		cand("personal_info.ssn", "123-45-6789", 60, 2, 1),
	})

	assert.Equal(t, "123-45-6789", res.Record.PersonalInfo.SSN)
	assert.InDelta(t, 60, res.FieldConfidence["personal_info.ssn"], 0.001)
}

func TestFuse_AllCandidatesInconsistent(t *testing.T) {
	res := Fuse([]model.CandidateField{
		cand("personal_info.ssn", "000-12-3456", 90, 1, 0),
		cand("personal_info.ssn", "666-45-6789", 80, 2, 1),
	})

	assert.Empty(t, res.Record.PersonalInfo.SSN)
}

func TestFuse_ScoreOutsideRangeDemoted(t *testing.T) {
	res := Fuse([]model.CandidateField{
		cand("credit_scores.experian", model.BureauScore{Score: 245, RangeMin: 300, RangeMax: 850}, 90, 1, 0),
		cand("credit_scores.experian", model.BureauScore{Score: 745, RangeMin: 300, RangeMax: 850}, 70, 2, 1),
	})

	require.Contains(t, res.Record.CreditScores, "experian")
	assert.Equal(t, 745, res.Record.CreditScores["experian"].Score)
}

func TestFuse_OutOfBoundsConfidenceSkipped(t *testing.T) {
	res := Fuse([]model.CandidateField{
		cand("personal_info.name", "Bad", 140, 1, 0),
		cand("personal_info.name", "Good", 80, 1, 1),
	})

	assert.Equal(t, "Good", res.Record.PersonalInfo.Name)
}

func TestFuse_CollectionDedup(t *testing.T) {
	bal := 4521.33
	res := Fuse([]model.CandidateField{
		// The same Chase account seen by two tiers under different spellings.
		cand("accounts", model.Account{CreditorName: "CHASE BANK", AccountNumber: "****1234", Balance: &bal}, 72, 1, 0),
		cand("accounts", model.Account{CreditorName: "Chase Bank, N.A.", AccountNumber: "xxxx1234", Status: model.AccountChargeOff, DateOpened: "06/01/2015"}, 55, 3, 2),
		// A genuinely distinct account.
		cand("accounts", model.Account{CreditorName: "Wells Fargo", AccountNumber: "****5678"}, 60, 1, 0),
	})

	require.Len(t, res.Record.Accounts, 2)

	chase := res.Record.Accounts[0]
	assert.Equal(t, "CHASE BANK", chase.CreditorName)
	assert.Equal(t, "****1234", chase.AccountNumber)
	require.NotNil(t, chase.Balance)
	// The lower-confidence member still contributes attributes the winner lacks.
	assert.Equal(t, model.AccountChargeOff, chase.Status)
	assert.Equal(t, "06/01/2015", chase.DateOpened)

	assert.Equal(t, "Wells Fargo", res.Record.Accounts[1].CreditorName)
	assert.Equal(t, 1, res.WinnerTiers["accounts"])
}

func TestFuse_CollectionConfidenceIsGroupMean(t *testing.T) {
	res := Fuse([]model.CandidateField{
		cand("accounts", model.Account{CreditorName: "Chase", AccountNumber: "****1234"}, 80, 1, 0),
		cand("accounts", model.Account{CreditorName: "Wells Fargo", AccountNumber: "****5678"}, 60, 1, 0),
	})

	assert.InDelta(t, 70, res.FieldConfidence["accounts"], 0.001)
}

func TestFuse_InquiryDedup(t *testing.T) {
	res := Fuse([]model.CandidateField{
		cand("inquiries", model.Inquiry{Company: "Capital One", Date: "01/15/2024"}, 65, 1, 0),
		cand("inquiries", model.Inquiry{Company: "CAPITAL ONE", Date: "01/15/2024", Type: "hard"}, 55, 3, 1),
		cand("inquiries", model.Inquiry{Company: "Capital One", Date: "09/01/2023"}, 65, 1, 0),
	})

	// Same company on different dates stays distinct.
	require.Len(t, res.Record.Inquiries, 2)
	assert.Equal(t, "hard", res.Record.Inquiries[0].Type)
}

func TestFuse_Empty(t *testing.T) {
	res := Fuse(nil)
	assert.Empty(t, res.FieldConfidence)
	assert.Equal(t, model.CreditReportRecord{}, res.Record)
}

func TestIdentityKey_NormalizesCreditor(t *testing.T) {
	a := identityKey("accounts", model.Account{CreditorName: "CHASE BANK", AccountNumber: "****1234"})
	b := identityKey("accounts", model.Account{CreditorName: "Chase Bank, N.A.", AccountNumber: "xxxx-1234"})
	assert.Equal(t, a, b)

	c := identityKey("accounts", model.Account{CreditorName: "Chase Bank", AccountNumber: "****9999"})
	assert.NotEqual(t, a, c)
}

func TestPlausibleSSN(t *testing.T) {
	assert.True(t, plausibleSSN("123-45-6789"))
	assert.False(t, plausibleSSN("000-45-6789"))
	assert.False(t, plausibleSSN("666-45-6789"))
	assert.False(t, plausibleSSN("900-45-6789"))
	assert.False(t, plausibleSSN("123-00-6789"))
	assert.False(t, plausibleSSN("123-45-0000"))
	assert.False(t, plausibleSSN("12345-6789"))
}

func TestValidPastDate(t *testing.T) {
	assert.True(t, validPastDate("06/01/2015"))
	assert.False(t, validPastDate("06/01/2150"))
	assert.False(t, validPastDate(""))
	assert.False(t, validPastDate("13/45/2015"))
}
