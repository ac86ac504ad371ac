// Package violation runs rule-based FCRA and Metro 2 compliance checks over
// a fused credit report record.
package violation

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/creditparse-cli/internal/model"
)

// reportingLimit is the FCRA §605 window for most derogatory information.
const reportingLimit = 7 * 365 * 24 * time.Hour

// bankruptcyLimit is the longer §605 window for bankruptcies.
const bankruptcyLimit = 10 * 365 * 24 * time.Hour

// Detector evaluates compliance rules. The clock is injectable for tests.
type Detector struct {
	now func() time.Time
}

func NewDetector() *Detector {
	return &Detector{now: time.Now}
}

// Detect runs every rule and returns the findings in rule order. An empty
// slice means no violations were found, not that the report is compliant;
// rules only see what extraction recovered.
func (d *Detector) Detect(rec model.CreditReportRecord) []model.Violation {
	var out []model.Violation
	out = append(out, d.obsoleteItems(rec)...)
	out = append(out, d.obsoletePublicRecords(rec)...)
	out = append(out, d.balanceStatusConflicts(rec)...)
	out = append(out, d.incompleteAccounts(rec)...)
	out = append(out, d.duplicateAccounts(rec)...)
	out = append(out, d.futureDates(rec)...)
	return out
}

// obsoleteItems flags negative items past the seven year reporting window.
func (d *Detector) obsoleteItems(rec model.CreditReportRecord) []model.Violation {
	var out []model.Violation
	for _, item := range rec.NegativeItems {
		when, ok := parseReportDate(item.Date)
		if !ok {
			continue
		}
		if d.now().Sub(when) > reportingLimit {
			out = append(out, model.Violation{
				Type:            model.ViolationObsoleteInfo,
				Severity:        model.SeverityHigh,
				Title:           "Obsolete negative item",
				Description:     fmt.Sprintf("%s from %s exceeds the 7-year reporting limit", describeItem(item), item.Date),
				AffectedAccount: item.CreditorName,
				LegalBasis:      "FCRA §605(a)(4), 15 U.S.C. §1681c",
				DisputeReason:   "Information older than 7 years must be removed from the report.",
			})
		}
	}
	return out
}

// obsoletePublicRecords applies the 10-year bankruptcy window and the 7-year
// window to every other public record.
func (d *Detector) obsoletePublicRecords(rec model.CreditReportRecord) []model.Violation {
	var out []model.Violation
	for _, pr := range rec.PublicRecords {
		when, ok := parseReportDate(pr.Date)
		if !ok {
			continue
		}
		limit := reportingLimit
		basis := "FCRA §605(a)(4), 15 U.S.C. §1681c"
		if strings.Contains(strings.ToLower(pr.RecordType), "bankruptcy") {
			limit = bankruptcyLimit
			basis = "FCRA §605(a)(1), 15 U.S.C. §1681c"
		}
		if d.now().Sub(when) > limit {
			out = append(out, model.Violation{
				Type:        model.ViolationObsoleteInfo,
				Severity:    model.SeverityHigh,
				Title:       "Obsolete public record",
				Description: fmt.Sprintf("%s from %s exceeds the reporting limit", pr.RecordType, pr.Date),
				LegalBasis:  basis,
				DisputeReason: "Public records past the statutory reporting window must be removed.",
			})
		}
	}
	return out
}

// balanceStatusConflicts flags a reported zero balance on an account still
// carrying a delinquent or charged-off status.
func (d *Detector) balanceStatusConflicts(rec model.CreditReportRecord) []model.Violation {
	var out []model.Violation
	for _, acct := range rec.Accounts {
		if acct.Balance == nil || *acct.Balance != 0 {
			continue
		}
		if !derogatoryStatus(acct.Status) {
			continue
		}
		out = append(out, model.Violation{
			Type:            model.ViolationBalance,
			Severity:        model.SeverityMedium,
			Title:           "Balance and status conflict",
			Description:     fmt.Sprintf("%s reports a zero balance but status %q", acct.CreditorName, acct.Status),
			AffectedAccount: accountLabel(acct),
			LegalBasis:      "FCRA §623(a)(2), 15 U.S.C. §1681s-2",
			DisputeReason:   "A paid account may not continue to report as delinquent or charged off.",
		})
	}
	return out
}

// incompleteAccounts flags tradelines missing the attributes Metro 2 requires
// a furnisher to report.
func (d *Detector) incompleteAccounts(rec model.CreditReportRecord) []model.Violation {
	var out []model.Violation
	for _, acct := range rec.Accounts {
		var missing []string
		if acct.CreditorName == "" {
			missing = append(missing, "creditor name")
		}
		if acct.AccountNumber == "" {
			missing = append(missing, "account number")
		}
		if acct.Status == "" {
			missing = append(missing, "status")
		}
		if len(missing) == 0 {
			continue
		}
		out = append(out, model.Violation{
			Type:            model.ViolationIncompleteInfo,
			Severity:        model.SeverityLow,
			Title:           "Incomplete account data",
			Description:     fmt.Sprintf("account is missing %s", strings.Join(missing, ", ")),
			AffectedAccount: accountLabel(acct),
			LegalBasis:      "Metro 2 Format, CDIA reporting standard",
			DisputeReason:   "Incomplete tradelines cannot be verified and should be corrected or deleted.",
		})
	}
	return out
}

// duplicateAccounts flags tradelines that survived fusion with the same
// creditor and masked number. Fusion dedupes same-document duplicates, so a
// surviving pair means the bureaus themselves report the debt twice.
func (d *Detector) duplicateAccounts(rec model.CreditReportRecord) []model.Violation {
	seen := map[string]bool{}
	var out []model.Violation
	for _, acct := range rec.Accounts {
		if acct.CreditorName == "" || acct.AccountNumber == "" {
			continue
		}
		key := strings.ToLower(acct.CreditorName) + "|" + acct.AccountNumber
		if seen[key] {
			out = append(out, model.Violation{
				Type:            model.ViolationDuplicateAccount,
				Severity:        model.SeverityHigh,
				Title:           "Duplicate account",
				Description:     fmt.Sprintf("%s %s appears more than once", acct.CreditorName, acct.AccountNumber),
				AffectedAccount: accountLabel(acct),
				LegalBasis:      "FCRA §607(b), 15 U.S.C. §1681e(b)",
				DisputeReason:   "The same debt reported twice overstates total liability.",
			})
			continue
		}
		seen[key] = true
	}
	return out
}

// futureDates flags activity dated after today, a Metro 2 format error.
func (d *Detector) futureDates(rec model.CreditReportRecord) []model.Violation {
	var out []model.Violation
	for _, acct := range rec.Accounts {
		for _, probe := range []struct{ label, value string }{
			{"date opened", acct.DateOpened},
			{"last activity", acct.LastActivity},
		} {
			when, ok := parseReportDate(probe.value)
			if !ok || !when.After(d.now()) {
				continue
			}
			out = append(out, model.Violation{
				Type:            model.ViolationMetro2Format,
				Severity:        model.SeverityMedium,
				Title:           "Future-dated activity",
				Description:     fmt.Sprintf("%s of %s is in the future", probe.label, probe.value),
				AffectedAccount: accountLabel(acct),
				LegalBasis:      "Metro 2 Format, CDIA reporting standard",
				DisputeReason:   "Activity cannot postdate the report; the furnisher's data is in error.",
			})
		}
	}
	return out
}

func derogatoryStatus(s model.AccountStatus) bool {
	switch s {
	case model.AccountThirtyLate, model.AccountSixtyLate, model.AccountNinetyLate,
		model.AccountOneTwentyLate, model.AccountChargeOff, model.AccountCollection:
		return true
	}
	return false
}

func accountLabel(acct model.Account) string {
	switch {
	case acct.CreditorName != "" && acct.AccountNumber != "":
		return acct.CreditorName + " " + acct.AccountNumber
	case acct.CreditorName != "":
		return acct.CreditorName
	default:
		return acct.AccountNumber
	}
}

func describeItem(item model.NegativeItem) string {
	if item.ItemType != "" {
		return item.ItemType
	}
	if item.Description != "" {
		return item.Description
	}
	return "negative item"
}

// parseReportDate accepts the date shapes the recognizers emit.
func parseReportDate(s string) (time.Time, bool) {
	for _, layout := range []string{"1/2/2006", "01/02/2006", "2006-01-02", "1/2006", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
