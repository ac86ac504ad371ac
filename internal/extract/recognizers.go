package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/creditparse-cli/internal/model"
)

// recognized is one pattern match before provenance is attached.
type recognized struct {
	fieldKey   string
	value      any
	confidence float64
}

const (
	confLabeled  = 88.0 // exact labeled field
	confScore    = 92.0 // bureau name + in-range score, the most specific pattern
	confInferred = 65.0 // inferred from surrounding context
	confWeak     = 42.0 // heuristic guess
)

// ambiguityPenalty is applied multiplicatively when a singleton field has
// several distinct matches in the same document.
const ambiguityPenalty = 0.8

var (
	reSSNLabeled = regexp.MustCompile(`(?im)(?:ssn|social security(?: number)?)[:#\s]*(\d{3}-\d{2}-\d{4})`)
	reSSNBare    = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	reDate = regexp.MustCompile(`\b(0?[1-9]|1[0-2])/(0?[1-9]|[12]\d|3[01])/((?:19|20)\d{2})\b`)

	reDOBLabeled = regexp.MustCompile(`(?im)(?:dob|date of birth|birth ?date)[:\s]*((?:0?[1-9]|1[0-2])/(?:0?[1-9]|[12]\d|3[01])/(?:19|20)\d{2})`)

	reNameLabeled    = regexp.MustCompile(`(?im)^(?:consumer )?name[:\s]+([A-Za-z][A-Za-z .,'-]{1,60})$`)
	reAddressLabeled = regexp.MustCompile(`(?im)^(?:current |mailing )?address[:\s]+(.{5,100})$`)

	reScore = regexp.MustCompile(`(?i)\b(experian|equifax|transunion)\b[^\n\d]{0,40}?(\d{3})\b`)

	reAcctNumber = regexp.MustCompile(`(?i)(?:acc(?:oun)?t\.?\s*(?:number|no\.?|#)?[:\s]*)?([*xX•]{2,}\d{4})`)
	reAcctField  = regexp.MustCompile(`(?im)^\s*([A-Za-z][A-Za-z ]{2,24})[:\s]+(.+)$`)
	reMoney      = regexp.MustCompile(`\$?\s*([\d,]+(?:\.\d{2})?)`)

	reNegative = regexp.MustCompile(`(?i)\b(charge[- ]?off|collection|late payment|delinquen\w*|repossession|settled for less)\b`)

	rePublicRecord = regexp.MustCompile(`(?i)\b(bankruptcy|tax lien|judgment|civil claim|foreclosure)\b`)

	reInquiryLine = regexp.MustCompile(`(?m)^([A-Za-z][A-Za-z0-9 &.,'/-]{1,40}?)\s{1,8}((?:0?[1-9]|1[0-2])/(?:0?[1-9]|[12]\d|3[01])/(?:19|20)\d{2})\s*$`)

	reSectionHeader = regexp.MustCompile(`(?im)^\s*(inquiries|credit inquiries|hard inquiries|public records|accounts|tradelines|negative items)\s*:?\s*$`)
)

// accountStatusAliases normalizes free-text statuses onto the enumerated set.
var accountStatusAliases = map[string]model.AccountStatus{
	"current":            model.AccountCurrent,
	"pays as agreed":     model.AccountCurrent,
	"ok":                 model.AccountCurrent,
	"30 days late":       model.AccountThirtyLate,
	"30 days past due":   model.AccountThirtyLate,
	"60 days late":       model.AccountSixtyLate,
	"60 days past due":   model.AccountSixtyLate,
	"90 days late":       model.AccountNinetyLate,
	"90 days past due":   model.AccountNinetyLate,
	"120 days late":      model.AccountOneTwentyLate,
	"120 days past due":  model.AccountOneTwentyLate,
	"charge off":         model.AccountChargeOff,
	"charge-off":         model.AccountChargeOff,
	"charged off":        model.AccountChargeOff,
	"collection":         model.AccountCollection,
	"in collection":      model.AccountCollection,
	"closed":             model.AccountClosed,
	"paid":               model.AccountPaid,
	"paid as agreed":     model.AccountPaid,
	"paid, closed":       model.AccountPaid,
}

// NormalizeAccountStatus maps free text onto the status vocabulary; unknown
// text is kept verbatim so the validator can flag it instead of losing it.
func NormalizeAccountStatus(s string) model.AccountStatus {
	key := strings.ToLower(strings.TrimSpace(s))
	if st, ok := accountStatusAliases[key]; ok {
		return st
	}
	return model.AccountStatus(key)
}

// scoreRanges holds the plausible score range per bureau model in use.
var scoreRange = struct{ min, max int }{300, 850}

func recognizePersonalInfo(text string) []recognized {
	var out []recognized

	out = append(out, recognizeSingleton(text, "personal_info.ssn", reSSNLabeled, reSSNBare)...)

	if dob := recognizeDOB(text); dob != nil {
		out = append(out, *dob)
	}

	names := dedupeStrings(captureAll(reNameLabeled, text))
	conf := confLabeled
	if len(names) > 1 {
		conf *= ambiguityPenalty
	}
	for _, n := range names {
		out = append(out, recognized{"personal_info.name", strings.TrimSpace(n), conf})
	}

	addrs := dedupeStrings(captureAll(reAddressLabeled, text))
	conf = confLabeled - 10
	if len(addrs) > 1 {
		conf *= ambiguityPenalty
	}
	for _, a := range addrs {
		out = append(out, recognized{"personal_info.address", strings.TrimSpace(a), conf})
	}

	return out
}

// recognizeSingleton prefers labeled matches; bare pattern hits are emitted
// at inferred confidence only when no labeled match exists.
func recognizeSingleton(text, fieldKey string, labeled, bare *regexp.Regexp) []recognized {
	vals := dedupeStrings(captureAll(labeled, text))
	conf := confLabeled
	if len(vals) == 0 {
		vals = dedupeStrings(bare.FindAllString(text, -1))
		conf = confInferred
	}
	if len(vals) > 1 {
		conf *= ambiguityPenalty
	}

	out := make([]recognized, 0, len(vals))
	for _, v := range vals {
		out = append(out, recognized{fieldKey, v, conf})
	}
	return out
}

func recognizeDOB(text string) *recognized {
	m := reDOBLabeled.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	d := m[1]
	if !plausibleBirthDate(d) {
		return nil
	}
	return &recognized{"personal_info.date_of_birth", d, confLabeled}
}

func recognizeScores(text string) []recognized {
	var out []recognized
	seen := map[string]int{}

	for _, m := range reScore.FindAllStringSubmatch(text, -1) {
		bureau := strings.ToLower(m[1])
		score, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		// Out-of-range matches are parse errors, not approximate values.
		if score < scoreRange.min || score > scoreRange.max {
			continue
		}
		seen[bureau]++
		conf := confScore
		if seen[bureau] > 1 {
			conf *= ambiguityPenalty
		}

		bs := model.BureauScore{
			Score:    score,
			RangeMin: scoreRange.min,
			RangeMax: scoreRange.max,
		}
		// A date on the same line belongs to the score.
		if line := lineContaining(text, m[0]); line != "" {
			if d := reDate.FindString(line); d != "" {
				bs.Date = d
			}
		}
		out = append(out, recognized{"credit_scores." + bureau, bs, conf})
	}
	return out
}

func recognizeAccounts(text string) []recognized {
	var out []recognized
	for _, block := range strings.Split(text, "\n\n") {
		acct, populated := parseAccountBlock(block)
		if populated < 2 {
			continue
		}
		conf := 40 + float64(populated)*8
		if conf > 90 {
			conf = 90
		}
		out = append(out, recognized{"accounts", acct, conf})
	}
	return out
}

// parseAccountBlock reads one blank-line-delimited block as a tradeline.
// Returns the account and how many attributes were populated.
func parseAccountBlock(block string) (model.Account, int) {
	var acct model.Account
	populated := 0

	if m := reAcctNumber.FindStringSubmatch(block); m != nil {
		acct.AccountNumber = normalizeMask(m[1])
		populated++
	}

	for _, m := range reAcctField.FindAllStringSubmatch(block, -1) {
		label := strings.ToLower(strings.TrimSpace(m[1]))
		val := strings.TrimSpace(m[2])
		switch {
		case label == "creditor" || label == "creditor name" || label == "company" || label == "lender":
			acct.CreditorName = val
			populated++
		case label == "balance" || label == "current balance":
			if f, ok := parseMoney(val); ok {
				acct.Balance = &f
				populated++
			}
		case label == "credit limit" || label == "limit" || label == "high credit":
			if f, ok := parseMoney(val); ok {
				acct.CreditLimit = &f
				populated++
			}
		case label == "status" || label == "account status" || label == "payment status":
			acct.Status = NormalizeAccountStatus(val)
			populated++
		case label == "account type" || label == "type":
			acct.AccountType = strings.ToLower(val)
			populated++
		case label == "date opened" || label == "opened":
			if d := reDate.FindString(val); d != "" {
				acct.DateOpened = d
				populated++
			}
		case label == "last activity" || label == "last active" || label == "last reported":
			if d := reDate.FindString(val); d != "" {
				acct.LastActivity = d
				populated++
			}
		}
	}

	// A bare title line often names the creditor.
	if acct.CreditorName == "" && populated > 0 {
		first := strings.TrimSpace(strings.SplitN(block, "\n", 2)[0])
		if first != "" && !strings.Contains(first, ":") && len(first) <= 40 {
			acct.CreditorName = first
			populated++
		}
	}

	return acct, populated
}

func recognizeNegativeItems(text string) []recognized {
	var out []recognized
	for _, line := range strings.Split(text, "\n") {
		m := reNegative.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := model.NegativeItem{
			ItemType:    strings.ToLower(strings.ReplaceAll(m[1], " ", "_")),
			Description: strings.TrimSpace(line),
		}
		if d := reDate.FindString(line); d != "" {
			item.Date = d
		}
		if f, ok := moneyOnLine(line); ok {
			item.Amount = &f
		}
		out = append(out, recognized{"negative_items", item, confInferred})
	}
	return out
}

func recognizeInquiries(text string) []recognized {
	section := sectionSlice(text, "inquiries")
	if section == "" {
		return nil
	}

	var out []recognized
	for _, m := range reInquiryLine.FindAllStringSubmatch(section, -1) {
		company := strings.TrimSpace(m[1])
		if strings.EqualFold(company, "inquiries") {
			continue
		}
		out = append(out, recognized{"inquiries", model.Inquiry{
			Company: company,
			Date:    m[2],
		}, confInferred})
	}
	return out
}

func recognizePublicRecords(text string) []recognized {
	var out []recognized
	for _, line := range strings.Split(text, "\n") {
		m := rePublicRecord.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rec := model.PublicRecord{
			RecordType: strings.ToLower(strings.ReplaceAll(m[1], " ", "_")),
		}
		if d := reDate.FindString(line); d != "" {
			rec.Date = d
		}
		if f, ok := moneyOnLine(line); ok {
			rec.Amount = &f
		}
		out = append(out, recognized{"public_records", rec, confInferred})
	}
	return out
}

// --- helpers ---

func captureAll(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func lineContaining(text, substr string) string {
	idx := strings.Index(text, substr)
	if idx < 0 {
		return ""
	}
	start := strings.LastIndexByte(text[:idx], '\n') + 1
	end := strings.IndexByte(text[idx:], '\n')
	if end < 0 {
		return text[start:]
	}
	return text[start : idx+end]
}

// sectionSlice returns the text between the named section header and the
// next recognized header.
func sectionSlice(text, name string) string {
	locs := reSectionHeader.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		header := strings.ToLower(text[loc[2]:loc[3]])
		if !strings.Contains(header, name) {
			continue
		}
		start := loc[1]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		return text[start:end]
	}
	return ""
}

func normalizeMask(s string) string {
	// Collapse mask characters to the conventional four stars.
	digits := s[len(s)-4:]
	return "****" + digits
}

// parseMoney accepts $1,234.56 style values; negatives and absurd magnitudes
// are parse errors.
func parseMoney(s string) (float64, bool) {
	m := reMoney.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || f < 0 || f > 1e8 {
		return 0, false
	}
	return f, true
}

func moneyOnLine(line string) (float64, bool) {
	if !strings.Contains(line, "$") {
		return 0, false
	}
	return parseMoney(line[strings.Index(line, "$"):])
}

func plausibleBirthDate(d string) bool {
	t, err := time.Parse("1/2/2006", d)
	if err != nil {
		return false
	}
	now := time.Now()
	return t.Before(now) && now.Year()-t.Year() <= 120
}
