package enrich

import (
	"slices"
	"strings"

	"github.com/sells-group/lead-qualify/internal/leadfile"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
)

// ImportPhone turns the phone a lead was imported with into its first
// candidate. ok is false when the value has no digits.
func ImportPhone(raw string) (model.EnrichedPhone, bool) {
	number := leadfile.CleanPhone(raw)
	if number == "" {
		return model.EnrichedPhone{}, false
	}
	return model.EnrichedPhone{
		Number:    number,
		Type:      model.PhoneUnknown,
		IsPrimary: true,
		Source:    model.PhoneSourceImport,
	}, true
}

// VendorPhones converts skip-trace phones into candidates. Every phone is
// vendor-sourced and verified. With preferMobile the list is reordered
// mobile-first (stable); otherwise vendor order is kept. Index 0 is primary.
func VendorPhones(phones []tracerfy.Phone, preferMobile bool) []model.EnrichedPhone {
	out := make([]model.EnrichedPhone, 0, len(phones))
	seen := make(map[string]bool, len(phones))
	for _, p := range phones {
		d := leadfile.Digits(p.Number)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, model.EnrichedPhone{
			Number:   leadfile.CleanPhone(p.Number),
			Type:     model.ParsePhoneType(p.Type),
			Source:   model.PhoneSourceVendor,
			Verified: true,
		})
	}
	if preferMobile {
		slices.SortStableFunc(out, func(a, b model.EnrichedPhone) int {
			return mobileRank(a) - mobileRank(b)
		})
	}
	if len(out) > 0 {
		model.SetPrimary(out, 0)
	}
	return out
}

func mobileRank(p model.EnrichedPhone) int {
	if p.Type == model.PhoneMobile {
		return 0
	}
	return 1
}

// MergeEmails appends found emails not already present, case-insensitively.
func MergeEmails(existing, found []string) []string {
	seen := make(map[string]bool, len(existing)+len(found))
	out := make([]string, 0, len(existing)+len(found))
	for _, list := range [][]string{existing, found} {
		for _, e := range list {
			e = strings.TrimSpace(e)
			key := strings.ToLower(e)
			if e == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, e)
		}
	}
	return out
}

// SelectPhone picks the phone to validate: the primary, else the first
// mobile, else the first phone. It returns -1 for an empty list.
func SelectPhone(phones []model.EnrichedPhone) int {
	for i, p := range phones {
		if p.IsPrimary {
			return i
		}
	}
	for i, p := range phones {
		if p.Type == model.PhoneMobile {
			return i
		}
	}
	if len(phones) > 0 {
		return 0
	}
	return -1
}

// SplitOwnerName splits a researched owner name on whitespace. Names with
// fewer than two tokens are rejected.
func SplitOwnerName(name string) (first, last string, ok bool) {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], strings.Join(fields[1:], " "), true
}
