package model

import "strings"

// PhoneType is the normalized line classification of a phone number.
type PhoneType string

const (
	PhoneMobile   PhoneType = "Mobile"
	PhoneLandline PhoneType = "Landline"
	PhoneUnknown  PhoneType = "Unknown"
)

// PhoneSource records who supplied a phone number.
type PhoneSource string

const (
	PhoneSourceVendor PhoneSource = "vendor"
	PhoneSourceImport PhoneSource = "import"
	PhoneSourceManual PhoneSource = "manual"
)

// EnrichedPhone is one candidate phone number for a lead.
type EnrichedPhone struct {
	Number    string      `json:"number"`
	Type      PhoneType   `json:"type"`
	IsPrimary bool        `json:"is_primary"`
	Source    PhoneSource `json:"source"`
	Verified  bool        `json:"verified"`
}

// ParsePhoneType maps a free-form vendor label to a PhoneType.
func ParsePhoneType(label string) PhoneType {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case l == "":
		return PhoneUnknown
	case strings.Contains(l, "mobile"), strings.Contains(l, "wireless"), strings.Contains(l, "cell"):
		return PhoneMobile
	case strings.Contains(l, "landline"), strings.Contains(l, "voip"), strings.Contains(l, "fixed"):
		return PhoneLandline
	default:
		return PhoneUnknown
	}
}

// SetPrimary clears every primary flag and marks index i primary.
func SetPrimary(phones []EnrichedPhone, i int) {
	for j := range phones {
		phones[j].IsPrimary = j == i
	}
}

// CountByType returns mobile and landline counts.
func CountByType(phones []EnrichedPhone) (mobile, landline int) {
	for _, p := range phones {
		switch p.Type {
		case PhoneMobile:
			mobile++
		case PhoneLandline:
			landline++
		}
	}
	return mobile, landline
}
