package tracerfy

import (
	"strings"
)

// Phone is a phone number with the vendor's line label.
type Phone struct {
	Number string
	Type   string
}

// ExtractPhones lists the phones of a result: primary first (typed by the
// vendor, "Unknown" when unlabelled), then mobiles, then landlines.
// Duplicates by digits are dropped, keeping the first occurrence.
func ExtractPhones(r TraceResult) []Phone {
	var phones []Phone
	if strings.TrimSpace(r.PrimaryPhone) != "" {
		typ := r.PrimaryPhoneType
		if typ == "" {
			typ = "Unknown"
		}
		phones = append(phones, Phone{Number: r.PrimaryPhone, Type: typ})
	}
	for _, m := range []string{r.Mobile1, r.Mobile2, r.Mobile3, r.Mobile4, r.Mobile5} {
		if strings.TrimSpace(m) != "" {
			phones = append(phones, Phone{Number: m, Type: "Mobile"})
		}
	}
	for _, l := range []string{r.Landline1, r.Landline2, r.Landline3} {
		if strings.TrimSpace(l) != "" {
			phones = append(phones, Phone{Number: l, Type: "Landline"})
		}
	}

	seen := make(map[string]bool, len(phones))
	out := phones[:0]
	for _, p := range phones {
		d := digits(p.Number)
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, p)
	}
	return out
}

// ExtractEmails lists the distinct non-blank emails of a result in order.
func ExtractEmails(r TraceResult) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range []string{r.Email1, r.Email2, r.Email3, r.Email4, r.Email5} {
		if strings.TrimSpace(e) == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// CreditsNeeded returns the credits a job of n records consumes.
func CreditsNeeded(n int, traceType TraceType) int {
	if traceType == TraceEnhanced {
		return n * 15
	}
	return n
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
