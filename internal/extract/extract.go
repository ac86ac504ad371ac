package extract

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/creditparse-cli/internal/model"
)

// Fields converts one attempt into candidate field values. A recognizer that
// finds nothing emits no candidate for its field: absence, not a
// zero-confidence placeholder. Parse failures are field-local and never abort
// the run.
func Fields(att model.ExtractionAttempt) []model.CandidateField {
	var out []model.CandidateField

	if att.Text != "" {
		text := Normalize(att.Text)
		var recs []recognized
		recs = append(recs, recognizePersonalInfo(text)...)
		recs = append(recs, recognizeScores(text)...)
		recs = append(recs, recognizeAccounts(text)...)
		recs = append(recs, recognizeNegativeItems(text)...)
		recs = append(recs, recognizeInquiries(text)...)
		recs = append(recs, recognizePublicRecords(text)...)

		for _, r := range recs {
			out = append(out, toCandidate(r, att))
		}
	}

	for _, hint := range att.Entities {
		if r, ok := interpretHint(hint); ok {
			c := toCandidate(r, att)
			// The hint carries its own provider-native confidence.
			c.Confidence = capConf(min(hint.Confidence, r.confidence), att)
			out = append(out, c)
		}
	}

	return out
}

func toCandidate(r recognized, att model.ExtractionAttempt) model.CandidateField {
	return model.CandidateField{
		FieldKey:   r.fieldKey,
		Value:      r.value,
		Confidence: capConf(r.confidence, att),
		AttemptID:  att.ID,
		Provider:   att.Provider,
		Tier:       att.Tier,
		Seq:        att.Seq,
	}
}

// capConf enforces that a candidate never exceeds its source attempt's
// confidence.
func capConf(c float64, att model.ExtractionAttempt) float64 {
	if c > att.Confidence {
		return att.Confidence
	}
	if c < 0 {
		return 0
	}
	return c
}

// hintAliases maps provider-native entity types onto field keys for the
// simple (string-valued) fields.
var hintAliases = map[string]string{
	"name":                   "personal_info.name",
	"person_name":            "personal_info.name",
	"consumer_name":          "personal_info.name",
	"ssn":                    "personal_info.ssn",
	"social_security_number": "personal_info.ssn",
	"address":                "personal_info.address",
	"person_address":         "personal_info.address",
	"date_of_birth":          "personal_info.date_of_birth",
	"dob":                    "personal_info.date_of_birth",
	"birth_date":             "personal_info.date_of_birth",
}

// interpretHint converts a provider entity hint into a recognized value.
// Compound hints carry JSON in their value.
func interpretHint(hint model.EntityHint) (recognized, bool) {
	typ := strings.ToLower(strings.TrimSpace(hint.Type))

	if key, ok := hintAliases[typ]; ok {
		val := strings.TrimSpace(hint.Value)
		if val == "" {
			return recognized{}, false
		}
		return recognized{fieldKey: key, value: val, confidence: hint.Confidence}, true
	}

	switch typ {
	case "credit_score":
		var s struct {
			Bureau   string `json:"bureau"`
			Score    int    `json:"score"`
			Date     string `json:"date"`
			RangeMin int    `json:"range_min"`
			RangeMax int    `json:"range_max"`
		}
		if err := json.Unmarshal([]byte(hint.Value), &s); err != nil {
			logHintParseError(typ, err)
			return recognized{}, false
		}
		bureau := strings.ToLower(s.Bureau)
		if bureau == "" || s.Score < scoreRange.min || s.Score > scoreRange.max {
			return recognized{}, false
		}
		rmin, rmax := s.RangeMin, s.RangeMax
		if rmin == 0 {
			rmin = scoreRange.min
		}
		if rmax == 0 {
			rmax = scoreRange.max
		}
		return recognized{
			fieldKey:   "credit_scores." + bureau,
			value:      model.BureauScore{Score: s.Score, Date: s.Date, RangeMin: rmin, RangeMax: rmax},
			confidence: hint.Confidence,
		}, true

	case "account":
		var acct model.Account
		if err := json.Unmarshal([]byte(hint.Value), &acct); err != nil {
			logHintParseError(typ, err)
			return recognized{}, false
		}
		if acct.CreditorName == "" && acct.AccountNumber == "" {
			return recognized{}, false
		}
		acct.Status = NormalizeAccountStatus(string(acct.Status))
		return recognized{fieldKey: "accounts", value: acct, confidence: hint.Confidence}, true

	case "negative_item":
		var item model.NegativeItem
		if err := json.Unmarshal([]byte(hint.Value), &item); err != nil {
			logHintParseError(typ, err)
			return recognized{}, false
		}
		if item.ItemType == "" && item.Description == "" {
			return recognized{}, false
		}
		return recognized{fieldKey: "negative_items", value: item, confidence: hint.Confidence}, true

	case "inquiry":
		var inq model.Inquiry
		if err := json.Unmarshal([]byte(hint.Value), &inq); err != nil {
			logHintParseError(typ, err)
			return recognized{}, false
		}
		if inq.Company == "" {
			return recognized{}, false
		}
		return recognized{fieldKey: "inquiries", value: inq, confidence: hint.Confidence}, true

	case "public_record":
		var rec model.PublicRecord
		if err := json.Unmarshal([]byte(hint.Value), &rec); err != nil {
			logHintParseError(typ, err)
			return recognized{}, false
		}
		if rec.RecordType == "" {
			return recognized{}, false
		}
		return recognized{fieldKey: "public_records", value: rec, confidence: hint.Confidence}, true
	}

	zap.L().Debug("extract: unmapped entity hint", zap.String("type", typ))
	return recognized{}, false
}

func logHintParseError(typ string, err error) {
	zap.L().Debug("extract: entity hint parse error",
		zap.String("type", typ),
		zap.Error(err),
	)
}
