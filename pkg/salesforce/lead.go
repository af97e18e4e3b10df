package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lead is the subset of the Salesforce Lead SObject that sync reads back.
type Lead struct {
	ID          string `json:"Id" salesforce:"Id"`
	FirstName   string `json:"FirstName" salesforce:"FirstName"`
	LastName    string `json:"LastName" salesforce:"LastName"`
	Company     string `json:"Company" salesforce:"Company"`
	Phone       string `json:"Phone" salesforce:"Phone"`
	MobilePhone string `json:"MobilePhone" salesforce:"MobilePhone"`
	Email       string `json:"Email" salesforce:"Email"`
	Status      string `json:"Status" salesforce:"Status"`
}

var leadFields = "Id, FirstName, LastName, Company, Phone, MobilePhone, Email, Status"

// FindLeadsByPhone returns the Lead IDs matching the given numbers, keyed by
// number. Numbers with no match are absent from the map.
func FindLeadsByPhone(ctx context.Context, c Client, phones []string) (map[string]string, error) {
	found := make(map[string]string, len(phones))
	for start := 0; start < len(phones); start += maxBatchSize {
		chunk := phones[start:min(start+maxBatchSize, len(phones))]
		quoted := make([]string, len(chunk))
		for i, p := range chunk {
			quoted[i] = "'" + escapeSoql(p) + "'"
		}
		in := strings.Join(quoted, ", ")
		soql := fmt.Sprintf(
			"SELECT %s FROM Lead WHERE IsConverted = false AND (Phone IN (%s) OR MobilePhone IN (%s))",
			leadFields, in, in,
		)

		var leads []Lead
		if err := c.Query(ctx, soql, &leads); err != nil {
			return nil, eris.Wrapf(err, "sf: find leads by phone %d-%d", start, start+len(chunk))
		}
		for _, l := range leads {
			for _, p := range []string{l.Phone, l.MobilePhone} {
				if _, ok := found[p]; p != "" && !ok {
					found[p] = l.ID
				}
			}
		}
	}
	return found, nil
}

// FindLeadByPhone returns the open Lead with the given number, or nil.
func FindLeadByPhone(ctx context.Context, c Client, phone string) (*Lead, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE IsConverted = false AND (Phone = '%s' OR MobilePhone = '%s') LIMIT 1",
		leadFields, escapeSoql(phone), escapeSoql(phone),
	)
	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrapf(err, "sf: find lead by phone %s", phone)
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// escapeSoql escapes a value for a single-quoted SOQL literal.
func escapeSoql(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
