// Package crm mirrors qualified leads and their SMS activity into the
// customer's CRM. Salesforce is the only backend.
package crm

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/pkg/salesforce"
)

const (
	leadObject = "Lead"
	// placeholderCompany fills the Company field Salesforce requires on Lead.
	placeholderCompany = "[not provided]"
)

// Salesforce lead statuses from the default picklist.
const (
	StatusOpen      = "Open - Not Contacted"
	StatusWorking   = "Working - Contacted"
	StatusConverted = "Closed - Converted"
)

// FieldMapping names the CRM field each lead attribute is written to. An
// empty name skips the attribute.
type FieldMapping struct {
	Phone       string `yaml:"phone" mapstructure:"phone"`
	MobilePhone string `yaml:"mobile_phone" mapstructure:"mobile_phone"`
	Email       string `yaml:"email" mapstructure:"email"`
	FirstName   string `yaml:"first_name" mapstructure:"first_name"`
	LastName    string `yaml:"last_name" mapstructure:"last_name"`
	Company     string `yaml:"company" mapstructure:"company"`
	Status      string `yaml:"status" mapstructure:"status"`
	Source      string `yaml:"source" mapstructure:"source"`
	Notes       string `yaml:"notes" mapstructure:"notes"`
	SMSOptIn    string `yaml:"sms_opt_in" mapstructure:"sms_opt_in"`
}

// SalesforceMapping is the mapping for a stock Salesforce org. SMSOptIn is a
// custom field and stays unset.
func SalesforceMapping() FieldMapping {
	return FieldMapping{
		Phone:       "Phone",
		MobilePhone: "MobilePhone",
		Email:       "Email",
		FirstName:   "FirstName",
		LastName:    "LastName",
		Company:     "Company",
		Status:      "Status",
		Source:      "LeadSource",
		Notes:       "Description",
	}
}

// Result is the outcome of syncing one lead.
type Result struct {
	LeadID   string `json:"lead_id"`
	RecordID string `json:"record_id,omitempty"`
	Created  bool   `json:"created"`
	Error    string `json:"error,omitempty"`
}

// Direction of an SMS activity.
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// Activity is an SMS exchanged with a synced lead.
type Activity struct {
	RecordID  string
	Direction Direction
	Message   string
	Persona   string
	At        time.Time
}

// Syncer pushes leads into Salesforce.
type Syncer struct {
	client  salesforce.Client
	mapping FieldMapping
	source  string
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithMapping overrides SalesforceMapping.
func WithMapping(m FieldMapping) Option { return func(s *Syncer) { s.mapping = m } }

// WithSource sets the LeadSource written on new records.
func WithSource(src string) Option { return func(s *Syncer) { s.source = src } }

// New creates a Syncer.
func New(c salesforce.Client, opts ...Option) *Syncer {
	s := &Syncer{client: c, mapping: SalesforceMapping(), source: "leadq"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SyncLead upserts one lead, matching an existing record by its stored
// record ID first and its phone second.
func (s *Syncer) SyncLead(ctx context.Context, l *model.EnrichedLead) (Result, error) {
	res := Result{LeadID: l.ID, RecordID: l.Meta.CRMRecordID}
	if res.RecordID == "" {
		if phone := primaryPhone(l); phone != "" {
			found, err := salesforce.FindLeadByPhone(ctx, s.client, phone)
			if err != nil {
				return res, eris.Wrapf(err, "crm: match lead %s", l.ID)
			}
			if found != nil {
				res.RecordID = found.ID
			}
		}
	}

	fields := s.fields(l)
	if res.RecordID != "" {
		if err := s.client.UpdateOne(ctx, leadObject, res.RecordID, fields); err != nil {
			return res, eris.Wrapf(err, "crm: update lead %s", l.ID)
		}
		return res, nil
	}

	s.setIf(fields, s.mapping.Source, s.source)
	id, err := s.client.InsertOne(ctx, leadObject, fields)
	if err != nil {
		return res, eris.Wrapf(err, "crm: create lead %s", l.ID)
	}
	res.RecordID, res.Created = id, true
	return res, nil
}

// SyncLeads upserts leads with one phone lookup and at most one insert and
// one update collection call. Results are in input order; per-record
// failures land in Result.Error. The returned error is reserved for calls
// that fail as a whole.
func (s *Syncer) SyncLeads(ctx context.Context, leads []*model.EnrichedLead) ([]Result, error) {
	results := make([]Result, len(leads))
	var lookup []string
	for i, l := range leads {
		results[i] = Result{LeadID: l.ID, RecordID: l.Meta.CRMRecordID}
		if l.Meta.CRMRecordID == "" {
			if p := primaryPhone(l); p != "" {
				lookup = append(lookup, p)
			}
		}
	}
	if len(lookup) > 0 {
		ids, err := salesforce.FindLeadsByPhone(ctx, s.client, lookup)
		if err != nil {
			return nil, eris.Wrap(err, "crm: match leads")
		}
		for i, l := range leads {
			if results[i].RecordID == "" {
				results[i].RecordID = ids[primaryPhone(l)]
			}
		}
	}

	var (
		updates   []salesforce.CollectionRecord
		updateIdx []int
		inserts   []map[string]any
		insertIdx []int
	)
	for i, l := range leads {
		fields := s.fields(l)
		if results[i].RecordID != "" {
			updates = append(updates, salesforce.CollectionRecord{ID: results[i].RecordID, Fields: fields})
			updateIdx = append(updateIdx, i)
			continue
		}
		s.setIf(fields, s.mapping.Source, s.source)
		inserts = append(inserts, fields)
		insertIdx = append(insertIdx, i)
	}

	if len(updates) > 0 {
		out, err := s.client.UpdateCollection(ctx, leadObject, updates)
		if err != nil {
			return nil, eris.Wrap(err, "crm: update leads")
		}
		apply(results, updateIdx, out, false)
	}
	if len(inserts) > 0 {
		out, err := s.client.InsertCollection(ctx, leadObject, inserts)
		if err != nil {
			return nil, eris.Wrap(err, "crm: create leads")
		}
		apply(results, insertIdx, out, true)
	}

	zap.L().Info("crm: leads synced",
		zap.Int("leads", len(leads)),
		zap.Int("updated", len(updates)),
		zap.Int("created", len(inserts)),
	)
	return results, nil
}

// LogSMS records a completed SMS task on a synced lead.
func (s *Syncer) LogSMS(ctx context.Context, a Activity) (string, error) {
	subject := "SMS Sent"
	if a.Direction == Inbound {
		subject = "SMS Received"
	}
	if a.Persona != "" {
		subject += " by " + a.Persona
	}
	id, err := salesforce.LogTask(ctx, s.client, salesforce.Task{
		WhoID:       a.RecordID,
		Subject:     subject,
		Description: a.Message,
		Type:        "SMS",
		Date:        a.At,
	})
	return id, eris.Wrap(err, "crm: log sms")
}

func apply(results []Result, idx []int, out []salesforce.CollectionResult, created bool) {
	for j, i := range idx {
		if j >= len(out) {
			results[i].Error = "no result returned"
			continue
		}
		r := out[j]
		if !r.Success {
			results[i].Error = strings.Join(r.Errors, "; ")
			if created {
				results[i].RecordID = ""
			}
			continue
		}
		if created {
			results[i].RecordID, results[i].Created = r.ID, true
		}
	}
}

func (s *Syncer) fields(l *model.EnrichedLead) map[string]any {
	m := s.mapping
	f := make(map[string]any)

	last := strings.TrimSpace(l.LastName)
	if last == "" {
		last = l.FullName()
	}
	if last == "" {
		last = "Unknown"
	}
	company := strings.TrimSpace(l.Company)
	if company == "" {
		company = placeholderCompany
	}

	s.setIf(f, m.FirstName, l.FirstName)
	s.setIf(f, m.LastName, last)
	s.setIf(f, m.Company, company)
	s.setIf(f, m.Phone, primaryPhone(l))
	if p := l.PrimaryPhone(); p != nil && p.Type == model.PhoneMobile {
		s.setIf(f, m.MobilePhone, p.Number)
	}
	email := l.Email
	if email == "" && len(l.Emails) > 0 {
		email = l.Emails[0]
	}
	s.setIf(f, m.Email, email)
	s.setIf(f, m.Status, Status(l.LeadStage))
	s.setIf(f, m.Notes, notes(l))
	if m.SMSOptIn != "" && l.Meta.PermissionGranted != nil {
		f[m.SMSOptIn] = *l.Meta.PermissionGranted
	}
	return f
}

func (s *Syncer) setIf(f map[string]any, field, v string) {
	if field != "" && v != "" {
		f[field] = v
	}
}

// Status maps a lead stage onto the Salesforce lead status picklist.
func Status(st model.LeadStage) string {
	switch st {
	case model.LeadStageContacted, model.LeadStageEngaged, model.LeadStageQualified:
		return StatusWorking
	case model.LeadStageConverted:
		return StatusConverted
	default:
		return StatusOpen
	}
}

func notes(l *model.EnrichedLead) string {
	var parts []string
	if q := l.Qualification; q != nil {
		parts = append(parts, "Contactability "+string(q.Profile.RiskTier)+", route "+string(q.Route.Route))
	}
	if l.Meta.CampaignID != "" {
		parts = append(parts, "Campaign "+l.Meta.CampaignID)
	}
	if l.Meta.PersonaID != "" {
		parts = append(parts, "Persona "+l.Meta.PersonaID)
	}
	return strings.Join(parts, ". ")
}

func primaryPhone(l *model.EnrichedLead) string {
	if p := l.PrimaryPhone(); p != nil && p.Number != "" {
		return p.Number
	}
	return l.Phone
}
