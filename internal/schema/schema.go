// Package schema checks the fused record's shape and scores its
// completeness and overall confidence.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/creditparse-cli/internal/model"
)

// ErrMalformedRecord signals a structurally broken fused record. This is a
// programming defect, surfaced as a fatal run error, unlike ordinary
// low-confidence degradation which flags and continues.
var ErrMalformedRecord = eris.New("schema: fused record is structurally malformed")

// recordSchema is the canonical shape. It constrains structure and types
// only; vocabulary checks (bureau names, account types) are flag-and-warn in
// Go because unrecognized formats are expected input, not bugs.
const recordSchema = `{
  "type": "object",
  "properties": {
    "personal_info": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "address": {"type": "string"},
        "ssn": {"type": "string"},
        "date_of_birth": {"type": "string"}
      }
    },
    "credit_scores": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "score": {"type": "integer", "minimum": 0},
          "date": {"type": "string"},
          "range_min": {"type": "integer"},
          "range_max": {"type": "integer"}
        },
        "required": ["score"]
      }
    },
    "accounts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "creditor_name": {"type": "string"},
          "account_number": {"type": "string"},
          "account_type": {"type": "string"},
          "balance": {"type": "number"},
          "credit_limit": {"type": "number"},
          "status": {"type": "string"},
          "date_opened": {"type": "string"},
          "last_activity": {"type": "string"}
        }
      }
    },
    "negative_items": {"type": "array", "items": {"type": "object"}},
    "inquiries": {"type": "array", "items": {"type": "object"}},
    "public_records": {"type": "array", "items": {"type": "object"}}
  },
  "required": ["personal_info"]
}`

// knownAccountTypes is the enumerated tradeline vocabulary.
var knownAccountTypes = map[string]bool{
	"revolving": true, "installment": true, "mortgage": true,
	"open": true, "auto loan": true, "student loan": true, "other": true,
}

// Validator checks fused records and scores them.
type Validator struct {
	compiled       *jsonschema.Schema
	sectionWeights map[string]float64
	lowConfFloor   float64
}

// New compiles the canonical schema. Section weights and the low-confidence
// warning floor are policy values from configuration.
func New(sectionWeights map[string]float64, lowConfFloor float64) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("record.json", bytes.NewReader([]byte(recordSchema))); err != nil {
		return nil, eris.Wrap(err, "schema: add resource")
	}
	compiled, err := compiler.Compile("record.json")
	if err != nil {
		return nil, eris.Wrap(err, "schema: compile")
	}

	if sectionWeights == nil {
		sectionWeights = map[string]float64{}
	}
	return &Validator{
		compiled:       compiled,
		sectionWeights: sectionWeights,
		lowConfFloor:   lowConfFloor,
	}, nil
}

// Report is the validator's output.
type Report struct {
	Record            model.CreditReportRecord
	Completeness      model.Completeness
	OverallConfidence float64
	Warnings          []string
}

// Validate checks the record shape, computes completeness and the overall
// confidence, and emits warnings. Only a structurally malformed record is an
// error; everything else degrades to warnings.
func (v *Validator) Validate(rec model.CreditReportRecord, fieldConf map[string]float64, winnerTiers map[string]int) (Report, error) {
	if err := v.checkShape(rec); err != nil {
		return Report{}, err
	}

	var warnings []string

	// Vocabulary checks: keep unknown values, flag them.
	for _, bureau := range sortedKeys(rec.CreditScores) {
		if !knownBureau(bureau) {
			warnings = append(warnings, fmt.Sprintf("unrecognized credit bureau %q retained", bureau))
		}
	}
	for i, acct := range rec.Accounts {
		if acct.AccountType != "" && !knownAccountTypes[acct.AccountType] {
			warnings = append(warnings, fmt.Sprintf("account %d: unrecognized account type %q retained", i, acct.AccountType))
		}
		if acct.Status != "" && !knownStatus(acct.Status) {
			warnings = append(warnings, fmt.Sprintf("account %d: unrecognized status %q retained", i, acct.Status))
		}
	}

	completeness := v.scoreCompleteness(rec)
	for _, section := range expectedSections {
		if completeness.Sections[section] == 0 {
			warnings = append(warnings, fmt.Sprintf("section %s is entirely empty", section))
		}
	}

	for _, key := range sortedKeys(fieldConf) {
		if fieldConf[key] < v.lowConfFloor {
			warnings = append(warnings, fmt.Sprintf("field %s below confidence floor (%.0f)", key, fieldConf[key]))
		}
		if winnerTiers[key] > 1 && v.isHighImportance(key) {
			warnings = append(warnings, fmt.Sprintf("high-importance field %s sourced from tier %d", key, winnerTiers[key]))
		}
	}

	overall := v.overallConfidence(fieldConf, completeness.Overall)

	return Report{
		Record:            rec,
		Completeness:      completeness,
		OverallConfidence: overall,
		Warnings:          warnings,
	}, nil
}

func (v *Validator) checkShape(rec model.CreditReportRecord) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(ErrMalformedRecord, err.Error())
	}
	var loose any
	if err := json.Unmarshal(encoded, &loose); err != nil {
		return eris.Wrap(ErrMalformedRecord, err.Error())
	}
	if err := v.compiled.Validate(loose); err != nil {
		return eris.Wrap(ErrMalformedRecord, err.Error())
	}
	return nil
}

// overallConfidence is the importance-weighted average of populated fields'
// confidences, scaled by the completeness fraction: a highly confident but
// mostly-empty extraction scores lower than a less-confident comprehensive one.
func (v *Validator) overallConfidence(fieldConf map[string]float64, overallCompleteness float64) float64 {
	var weighted, weightSum float64
	for key, conf := range fieldConf {
		w := v.weightFor(key)
		weighted += conf * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return (weighted / weightSum) * (overallCompleteness / 100)
}

func (v *Validator) weightFor(fieldKey string) float64 {
	section := fieldKey
	if i := strings.IndexByte(fieldKey, '.'); i > 0 {
		section = fieldKey[:i]
	}
	if w, ok := v.sectionWeights[section]; ok && w > 0 {
		return w
	}
	return 1
}

func (v *Validator) isHighImportance(fieldKey string) bool {
	return v.weightFor(fieldKey) >= 3
}

func knownBureau(name string) bool {
	for _, b := range model.KnownBureaus {
		if b == name {
			return true
		}
	}
	return false
}

func knownStatus(s model.AccountStatus) bool {
	for _, k := range model.KnownAccountStatuses {
		if k == s {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
