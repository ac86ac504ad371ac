// Package fusion deterministically merges candidate fields from every
// attempt in a run into one canonical record.
package fusion

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/creditparse-cli/internal/model"
)

// Result is the fused record with its parallel per-field confidence map.
type Result struct {
	Record          model.CreditReportRecord
	FieldConfidence map[string]float64
	// WinnerTiers records which tier supplied each fused field, for
	// processing-method attribution.
	WinnerTiers map[string]int
}

// collectionKeys are fused by identity-grouped per-attribute merge rather
// than whole-value selection.
var collectionKeys = map[string]bool{
	"accounts":       true,
	"negative_items": true,
	"inquiries":      true,
	"public_records": true,
}

// Fuse selects one authoritative value per field. Selection is strictly
// deterministic: confidence descending, then higher-reliability (lower)
// tier, then the most recent attempt. Fusing the same candidate set twice
// yields identical output.
func Fuse(candidates []model.CandidateField) Result {
	res := Result{
		FieldConfidence: make(map[string]float64),
		WinnerTiers:     make(map[string]int),
	}

	byKey := make(map[string][]model.CandidateField)
	for _, c := range candidates {
		if c.Confidence < 0 || c.Confidence > 100 {
			// Bounded by construction; anything else is a bug upstream.
			zap.L().Error("fusion: candidate confidence out of bounds",
				zap.String("field", c.FieldKey),
				zap.Float64("confidence", c.Confidence),
			)
			continue
		}
		byKey[c.FieldKey] = append(byKey[c.FieldKey], c)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := byKey[key]
		if collectionKeys[key] {
			fuseCollection(&res, key, group)
			continue
		}

		sortCandidates(group)
		winner, ok := selectConsistent(group)
		if !ok {
			// Every candidate failed a consistency rule: explicit absence.
			continue
		}
		applyField(&res.Record, key, winner.Value)
		res.FieldConfidence[key] = winner.Confidence
		res.WinnerTiers[key] = winner.Tier
	}

	return res
}

// sortCandidates orders a candidate group by the deterministic tie-break
// chain: confidence desc, tier asc, attempt recency desc.
func sortCandidates(group []model.CandidateField) {
	sort.SliceStable(group, func(i, j int) bool {
		if group[i].Confidence != group[j].Confidence {
			return group[i].Confidence > group[j].Confidence
		}
		if group[i].Tier != group[j].Tier {
			return group[i].Tier < group[j].Tier
		}
		return group[i].Seq > group[j].Seq
	})
}

// selectConsistent walks the ordered group and returns the first candidate
// passing every cross-field consistency rule; rule violations demote the
// candidate and selection reruns over the remainder.
func selectConsistent(group []model.CandidateField) (model.CandidateField, bool) {
	for _, c := range group {
		if err := checkConsistency(c); err != nil {
			zap.L().Debug("fusion: candidate demoted by consistency rule",
				zap.String("field", c.FieldKey),
				zap.String("provider", c.Provider),
				zap.Error(err),
			)
			continue
		}
		return c, true
	}
	return model.CandidateField{}, false
}

// applyField writes a fused winner into its slot on the record.
func applyField(r *model.CreditReportRecord, key string, value any) {
	if bureau, ok := strings.CutPrefix(key, "credit_scores."); ok {
		score, good := value.(model.BureauScore)
		if !good {
			return
		}
		if r.CreditScores == nil {
			r.CreditScores = make(map[string]model.BureauScore)
		}
		r.CreditScores[bureau] = score
		return
	}

	s, _ := value.(string)
	switch key {
	case "personal_info.name":
		r.PersonalInfo.Name = s
	case "personal_info.address":
		r.PersonalInfo.Address = s
	case "personal_info.ssn":
		r.PersonalInfo.SSN = s
	case "personal_info.date_of_birth":
		r.PersonalInfo.DateOfBirth = s
	default:
		zap.L().Debug("fusion: unmapped field key", zap.String("key", key))
	}
}
