package leadfile

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/lead-qualify/internal/model"
)

// field aliases, keyed by the normalized header (lowercase, letters and
// digits only).
var fieldAliases = map[string]string{
	"firstname": "first_name", "first": "first_name", "fname": "first_name", "ownerfirstname": "first_name",
	"lastname": "last_name", "last": "last_name", "lname": "last_name", "ownerlastname": "last_name",
	"phone": "phone", "mobile": "phone", "phonenumber": "phone", "cell": "phone", "cellphone": "phone", "mobilephone": "phone",
	"email": "email", "emailaddress": "email",
	"company": "company", "business": "company", "companyname": "company", "businessname": "company",
	"title": "title", "jobtitle": "title",
	"address": "address", "street": "address", "address1": "address", "streetaddress": "address",
	"city": "city",
	"state": "state", "statecode": "state",
	"zip": "zip", "zipcode": "zip", "postalcode": "zip",
	"name": "full_name", "fullname": "full_name", "contactname": "full_name",
}

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ToRawLead maps a row onto a raw lead. The first non-empty value wins when
// several columns alias the same field. Unrecognized columns are carried in
// Extra.
func ToRawLead(row Row, source model.LeadSource) model.RawLead {
	fields := make(map[string]string)
	extra := make(map[string]any)

	for header, value := range row {
		field, ok := fieldAliases[normalizeHeader(header)]
		if !ok {
			if value != "" {
				extra[header] = value
			}
			continue
		}
		if value == "" || fields[field] != "" {
			continue
		}
		fields[field] = value
	}

	first, last := fields["first_name"], fields["last_name"]
	if first == "" && last == "" && fields["full_name"] != "" {
		first, last = SplitName(fields["full_name"])
	}

	lead := model.RawLead{
		FirstName: NormalizeName(first),
		LastName:  NormalizeName(last),
		Phone:     CleanPhone(fields["phone"]),
		Email:     strings.ToLower(fields["email"]),
		Company:   fields["company"],
		Title:     fields["title"],
		Address:   fields["address"],
		City:      fields["city"],
		State:     strings.ToUpper(fields["state"]),
		Zip:       fields["zip"],
		Source:    source,
	}
	if len(extra) > 0 {
		lead.Extra = extra
	}
	return lead
}

// SplitName splits on whitespace: the first token is the first name and the
// remainder is the last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

var titleCaser = cases.Title(language.English)

// NormalizeName title-cases names that arrive in a single case ("ANN",
// "ann"). Mixed-case input such as "McDonald" is kept as is.
func NormalizeName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	if s == strings.ToUpper(s) || s == strings.ToLower(s) {
		return titleCaser.String(s)
	}
	return s
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

// Digits returns only the decimal digits of s.
func Digits(s string) string { return digits(s) }

// CleanPhone converts a phone number to E.164. Ten digits get a +1 prefix,
// eleven digits starting with 1 get a +, anything else is prefixed as is.
// Input without digits yields "".
func CleanPhone(phone string) string {
	d := digits(phone)
	switch {
	case d == "":
		return ""
	case len(d) == 10:
		return "+1" + d
	default:
		return "+" + d
	}
}

// PhoneCheck is the result of a format-only phone check.
type PhoneCheck struct {
	IsValid    bool            `json:"is_valid"`
	Formatted  string          `json:"formatted"`
	LikelyType model.PhoneType `json:"likely_type"`
}

// QuickValidatePhone checks a number's shape without calling any vendor.
// Line type cannot be inferred from the digits, so LikelyType is always
// Unknown. Reserved fictional numbers (555-0100 through 555-0199) are
// rejected.
func QuickValidatePhone(phone string) PhoneCheck {
	d := digits(phone)
	if len(d) < 10 || len(d) > 11 || (len(d) == 11 && d[0] != '1') {
		return PhoneCheck{Formatted: phone, LikelyType: model.PhoneUnknown}
	}

	national := d[len(d)-10:]
	if national[3:6] == "555" && national[6:8] == "01" {
		return PhoneCheck{Formatted: phone, LikelyType: model.PhoneUnknown}
	}

	return PhoneCheck{
		IsValid:    true,
		Formatted:  "+1" + national,
		LikelyType: model.PhoneUnknown,
	}
}
