package fusion

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/creditparse-cli/internal/model"
)

const dateLayout = "1/2/2006"

// checkConsistency applies the cross-field validity rules known for a
// candidate. A violation demotes the candidate; it does not fail the run.
func checkConsistency(c model.CandidateField) error {
	if strings.HasPrefix(c.FieldKey, "credit_scores.") {
		score, ok := c.Value.(model.BureauScore)
		if !ok {
			return eris.New("fusion: score candidate has wrong type")
		}
		if score.Score < score.RangeMin || score.Score > score.RangeMax {
			return eris.Errorf("fusion: score %d outside range %d-%d",
				score.Score, score.RangeMin, score.RangeMax)
		}
		if score.Date != "" && !validPastDate(score.Date) {
			return eris.Errorf("fusion: score date %q implausible", score.Date)
		}
		return nil
	}

	switch c.FieldKey {
	case "personal_info.date_of_birth":
		s, ok := c.Value.(string)
		if !ok || !validPastDate(s) {
			return eris.Errorf("fusion: birth date %v implausible", c.Value)
		}
	case "personal_info.ssn":
		s, ok := c.Value.(string)
		if !ok || !plausibleSSN(s) {
			return eris.Errorf("fusion: ssn candidate malformed")
		}
	}
	return nil
}

// validPastDate accepts MM/DD/YYYY dates that parse and are not in the
// future. Empty strings are not valid dates.
func validPastDate(s string) bool {
	if s == "" {
		return false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return false
	}
	return !t.After(time.Now())
}

// plausibleSSN rejects well-known invalid area/group/serial values.
func plausibleSSN(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[0]) != 3 || len(parts[1]) != 2 || len(parts[2]) != 4 {
		return false
	}
	if parts[0] == "000" || parts[0] == "666" || parts[0] >= "900" {
		return false
	}
	return parts[1] != "00" && parts[2] != "0000"
}
