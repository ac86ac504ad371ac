package schema

import (
	"github.com/sells-group/creditparse-cli/internal/model"
)

// expectedSections are always scored; an empty one drags completeness down.
// The optional sections (negative items, inquiries, public records) are
// complete by vacuity when absent: many clean reports simply have none.
var expectedSections = []string{"personal_info", "credit_scores", "accounts"}

var optionalSections = []string{"negative_items", "inquiries", "public_records"}

// scoreCompleteness computes per-section population fractions (0-100) and a
// weight-averaged overall fraction. Optional sections enter the aggregate
// only when populated.
func (v *Validator) scoreCompleteness(rec model.CreditReportRecord) model.Completeness {
	sections := map[string]float64{
		"personal_info": personalInfoCompleteness(rec.PersonalInfo),
		"credit_scores": scoresCompleteness(rec.CreditScores),
		"accounts":      accountsCompleteness(rec.Accounts),
	}
	if len(rec.NegativeItems) > 0 {
		sections["negative_items"] = negativeItemsCompleteness(rec.NegativeItems)
	}
	if len(rec.Inquiries) > 0 {
		sections["inquiries"] = inquiriesCompleteness(rec.Inquiries)
	}
	if len(rec.PublicRecords) > 0 {
		sections["public_records"] = publicRecordsCompleteness(rec.PublicRecords)
	}

	var weighted, weightSum float64
	for name, frac := range sections {
		w := v.sectionWeights[name]
		if w <= 0 {
			w = 1
		}
		weighted += frac * w
		weightSum += w
	}
	overall := 0.0
	if weightSum > 0 {
		overall = weighted / weightSum
	}
	return model.Completeness{Sections: sections, Overall: overall}
}

func personalInfoCompleteness(pi model.PersonalInfo) float64 {
	return fraction(4,
		pi.Name != "", pi.SSN != "", pi.Address != "", pi.DateOfBirth != "")
}

func scoresCompleteness(scores map[string]model.BureauScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += fraction(2, s.Score > 0, s.Date != "")
	}
	return sum / float64(len(scores))
}

func accountsCompleteness(accounts []model.Account) float64 {
	if len(accounts) == 0 {
		return 0
	}
	var sum float64
	for _, a := range accounts {
		sum += fraction(8,
			a.CreditorName != "", a.AccountNumber != "", a.AccountType != "",
			a.Balance != nil, a.CreditLimit != nil, a.Status != "",
			a.DateOpened != "", a.LastActivity != "")
	}
	return sum / float64(len(accounts))
}

func negativeItemsCompleteness(items []model.NegativeItem) float64 {
	var sum float64
	for _, it := range items {
		sum += fraction(5,
			it.ItemType != "", it.CreditorName != "", it.Description != "",
			it.Date != "", it.Amount != nil)
	}
	return sum / float64(len(items))
}

func inquiriesCompleteness(inqs []model.Inquiry) float64 {
	var sum float64
	for _, q := range inqs {
		sum += fraction(3, q.Company != "", q.Date != "", q.Type != "")
	}
	return sum / float64(len(inqs))
}

func publicRecordsCompleteness(recs []model.PublicRecord) float64 {
	var sum float64
	for _, r := range recs {
		sum += fraction(4,
			r.RecordType != "", r.Date != "", r.Amount != nil, r.Status != "")
	}
	return sum / float64(len(recs))
}

// fraction returns the populated share of n attributes, scaled to 0-100.
func fraction(n int, populated ...bool) float64 {
	count := 0
	for _, p := range populated {
		if p {
			count++
		}
	}
	return float64(count) / float64(n) * 100
}
