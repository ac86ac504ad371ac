package fusion

import (
	"strings"

	"github.com/sells-group/creditparse-cli/internal/model"
)

// identityKey derives the normalized key that decides whether two collection
// candidates refer to the same underlying entity.
func identityKey(fieldKey string, value any) string {
	switch fieldKey {
	case "accounts":
		acct, ok := value.(model.Account)
		if !ok {
			return ""
		}
		return normalizeIdent(acct.CreditorName) + "|" + lastFour(acct.AccountNumber)

	case "negative_items":
		item, ok := value.(model.NegativeItem)
		if !ok {
			return ""
		}
		base := normalizeIdent(item.ItemType) + "|" + normalizeIdent(item.CreditorName) + "|" + item.Date
		if base == "||" {
			base = normalizeIdent(item.Description)
		}
		return base

	case "inquiries":
		inq, ok := value.(model.Inquiry)
		if !ok {
			return ""
		}
		return normalizeIdent(inq.Company) + "|" + inq.Date

	case "public_records":
		rec, ok := value.(model.PublicRecord)
		if !ok {
			return ""
		}
		return normalizeIdent(rec.RecordType) + "|" + rec.Date

	default:
		return ""
	}
}

// normalizeIdent lowercases and strips everything but letters and digits so
// "CHASE BANK" and "Chase Bank, N.A." collide.
func normalizeIdent(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	// Trailing corporate suffixes defeat matching across providers.
	for _, suffix := range []string{"na", "inc", "llc", "corp"} {
		out = strings.TrimSuffix(out, suffix)
	}
	return out
}

func lastFour(accountNumber string) string {
	digits := make([]rune, 0, len(accountNumber))
	for _, r := range accountNumber {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return string(digits)
	}
	return string(digits[len(digits)-4:])
}
