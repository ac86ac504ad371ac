package fusion

import (
	"github.com/sells-group/creditparse-cli/internal/model"
)

// fuseCollection merges collection candidates: entries referring to the same
// underlying entity are grouped by identity key, and each attribute of the
// merged entry is taken from the highest-confidence member that has it.
// Output order is extraction order of each group's first appearance.
func fuseCollection(res *Result, key string, group []model.CandidateField) {
	type entityGroup struct {
		members  []model.CandidateField
		firstIdx int
	}

	groups := make(map[string]*entityGroup)
	var order []string

	for idx, c := range group {
		id := identityKey(key, c.Value)
		if id == "" {
			continue
		}
		g, ok := groups[id]
		if !ok {
			g = &entityGroup{firstIdx: idx}
			groups[id] = g
			order = append(order, id)
		}
		g.members = append(g.members, c)
	}

	var total float64
	for _, id := range order {
		g := groups[id]
		sortCandidates(g.members)

		merged, conf, tier := mergeEntity(key, g.members)
		appendEntity(&res.Record, key, merged)
		total += conf
		if existing, ok := res.WinnerTiers[key]; !ok || tier < existing {
			res.WinnerTiers[key] = tier
		}
	}

	if len(order) > 0 {
		res.FieldConfidence[key] = total / float64(len(order))
	}
}

// mergeEntity builds one merged entry per duplicate group, attribute by
// attribute in confidence order. Returns the merged value, the group's
// representative confidence, and the winning tier.
func mergeEntity(key string, members []model.CandidateField) (any, float64, int) {
	conf := members[0].Confidence
	tier := members[0].Tier

	switch key {
	case "accounts":
		var merged model.Account
		for _, m := range members {
			acct, ok := m.Value.(model.Account)
			if !ok {
				continue
			}
			fillAccount(&merged, acct)
		}
		return merged, conf, tier

	case "negative_items":
		var merged model.NegativeItem
		for _, m := range members {
			item, ok := m.Value.(model.NegativeItem)
			if !ok {
				continue
			}
			fillNegativeItem(&merged, item)
		}
		return merged, conf, tier

	case "inquiries":
		var merged model.Inquiry
		for _, m := range members {
			inq, ok := m.Value.(model.Inquiry)
			if !ok {
				continue
			}
			fillInquiry(&merged, inq)
		}
		return merged, conf, tier

	default: // public_records
		var merged model.PublicRecord
		for _, m := range members {
			rec, ok := m.Value.(model.PublicRecord)
			if !ok {
				continue
			}
			fillPublicRecord(&merged, rec)
		}
		return merged, conf, tier
	}
}

// fillAccount copies attributes the merged account is still missing. Members
// arrive in confidence order, so the first value for any attribute wins.
func fillAccount(dst *model.Account, src model.Account) {
	if dst.CreditorName == "" {
		dst.CreditorName = src.CreditorName
	}
	if dst.AccountNumber == "" {
		dst.AccountNumber = src.AccountNumber
	}
	if dst.AccountType == "" {
		dst.AccountType = src.AccountType
	}
	if dst.Balance == nil && src.Balance != nil {
		dst.Balance = src.Balance
	}
	if dst.CreditLimit == nil && src.CreditLimit != nil {
		dst.CreditLimit = src.CreditLimit
	}
	if dst.Status == "" {
		dst.Status = src.Status
	}
	if dst.DateOpened == "" && validPastDate(src.DateOpened) {
		dst.DateOpened = src.DateOpened
	}
	if dst.LastActivity == "" && validPastDate(src.LastActivity) {
		dst.LastActivity = src.LastActivity
	}
}

func fillNegativeItem(dst *model.NegativeItem, src model.NegativeItem) {
	if dst.ItemType == "" {
		dst.ItemType = src.ItemType
	}
	if dst.CreditorName == "" {
		dst.CreditorName = src.CreditorName
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Date == "" && validPastDate(src.Date) {
		dst.Date = src.Date
	}
	if dst.Amount == nil && src.Amount != nil {
		dst.Amount = src.Amount
	}
}

func fillInquiry(dst *model.Inquiry, src model.Inquiry) {
	if dst.Company == "" {
		dst.Company = src.Company
	}
	if dst.Date == "" && validPastDate(src.Date) {
		dst.Date = src.Date
	}
	if dst.Type == "" {
		dst.Type = src.Type
	}
}

func fillPublicRecord(dst *model.PublicRecord, src model.PublicRecord) {
	if dst.RecordType == "" {
		dst.RecordType = src.RecordType
	}
	if dst.Court == "" {
		dst.Court = src.Court
	}
	if dst.Date == "" && validPastDate(src.Date) {
		dst.Date = src.Date
	}
	if dst.Status == "" {
		dst.Status = src.Status
	}
	if dst.Amount == nil && src.Amount != nil {
		dst.Amount = src.Amount
	}
}

func appendEntity(r *model.CreditReportRecord, key string, value any) {
	switch key {
	case "accounts":
		if v, ok := value.(model.Account); ok {
			r.Accounts = append(r.Accounts, v)
		}
	case "negative_items":
		if v, ok := value.(model.NegativeItem); ok {
			r.NegativeItems = append(r.NegativeItems, v)
		}
	case "inquiries":
		if v, ok := value.(model.Inquiry); ok {
			r.Inquiries = append(r.Inquiries, v)
		}
	case "public_records":
		if v, ok := value.(model.PublicRecord); ok {
			r.PublicRecords = append(r.PublicRecords, v)
		}
	}
}
