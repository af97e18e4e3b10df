package model

import (
	"time"
)

// LeadSource tags where a raw lead came from (csv upload, api, watch inbox).
type LeadSource string

// RawLead is an imported contact record before any enrichment.
type RawLead struct {
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Phone     string         `json:"phone"`
	Email     string         `json:"email,omitempty"`
	Company   string         `json:"company,omitempty"`
	Title     string         `json:"title,omitempty"`
	Address   string         `json:"address,omitempty"`
	City      string         `json:"city,omitempty"`
	State     string         `json:"state,omitempty"`
	Zip       string         `json:"zip,omitempty"`
	Source    LeadSource     `json:"source"`
	Extra     map[string]any `json:"extra,omitempty"` // vendor passthrough only
}

// FullName joins first and last name.
func (r RawLead) FullName() string {
	switch {
	case r.FirstName == "":
		return r.LastName
	case r.LastName == "":
		return r.FirstName
	default:
		return r.FirstName + " " + r.LastName
	}
}

// EnrichmentStatus is the coarse outcome of the enrichment pipeline for a lead.
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentVerified EnrichmentStatus = "verified"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// LeadStage is the campaign-facing stage of a lead.
type LeadStage string

const (
	LeadStageNew           LeadStage = "new"
	LeadStageDataPrep      LeadStage = "data_prep"
	LeadStageCampaignReady LeadStage = "campaign_ready"
	LeadStageContacted     LeadStage = "contacted"
	LeadStageEngaged       LeadStage = "engaged"
	LeadStageQualified     LeadStage = "qualified"
	LeadStageConverted     LeadStage = "converted"
)

// BusinessVerification records the outcome of the business-active check.
type BusinessVerification struct {
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
	OwnerName  string    `json:"owner_name,omitempty"`
	OwnerTitle string    `json:"owner_title,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// MailingAddress is the skip-traced mailing address of the lead.
type MailingAddress struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// LeadMeta holds the well-known per-lead fields written by the execution chain.
// Every field is owned by exactly one stage; stages patch their own fields only.
type LeadMeta struct {
	BatchID           string         `json:"batch_id,omitempty"`
	BlockNumber       int            `json:"block_number,omitempty"`
	IndustryID        string         `json:"industry_id,omitempty"`
	Industry          string         `json:"industry,omitempty"`
	CampaignID        string         `json:"campaign_id,omitempty"`
	ImportedAt        *time.Time     `json:"imported_at,omitempty"`
	ExecutionStage    ExecutionStage `json:"execution_stage,omitempty"`
	LineType          string         `json:"line_type,omitempty"`
	Contactable       *bool          `json:"contactable,omitempty"`
	PersonaID         string         `json:"persona_id,omitempty"`
	TemplateID        string         `json:"template_id,omitempty"`
	MessageID         string         `json:"message_id,omitempty"`
	LastSMSAt         *time.Time     `json:"last_sms_at,omitempty"`
	MobileConfirmed   *bool          `json:"mobile_confirmed,omitempty"`
	PermissionGranted *bool          `json:"permission_granted,omitempty"`
	SkipTraceQueueID  string         `json:"skip_trace_queue_id,omitempty"`
	CRMRecordID       string         `json:"crm_record_id,omitempty"`
}

// Qualification is the derived contactability outcome for a lead.
type Qualification struct {
	Profile       ContactabilityProfile `json:"profile"`
	Route         RouteDecision         `json:"route"`
	IsContactable bool                  `json:"is_contactable"`
	QualifiedAt   time.Time             `json:"qualified_at"`
}

// EnrichedLead is a RawLead plus everything the pipeline learned about it.
type EnrichedLead struct {
	ID      string `json:"id"`
	BatchID string `json:"batch_id,omitempty"`
	RawLead

	Phones         []EnrichedPhone `json:"phones"`
	Emails         []string        `json:"emails,omitempty"`
	MailingAddress *MailingAddress `json:"mailing_address,omitempty"`

	IsBusinessActive     *bool                     `json:"is_business_active,omitempty"`
	BusinessVerification *BusinessVerification     `json:"business_verification,omitempty"`
	Validation           *ContactabilityValidation `json:"validation,omitempty"`
	Qualification        *Qualification            `json:"qualification,omitempty"`

	EnrichmentStatus EnrichmentStatus `json:"enrichment_status"`
	PipelineStage    PipelineStage    `json:"pipeline_stage"`
	LeadStage        LeadStage        `json:"lead_stage"`
	CostToEnrich     float64          `json:"cost_to_enrich"`

	Meta  LeadMeta     `json:"meta"`
	Steps []StepResult `json:"steps,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEnrichedLead wraps a raw lead at the pending/import starting point.
func NewEnrichedLead(id string, raw RawLead) *EnrichedLead {
	now := time.Now().UTC()
	return &EnrichedLead{
		ID:               id,
		RawLead:          raw,
		EnrichmentStatus: EnrichmentPending,
		PipelineStage:    PipelineStageImport,
		LeadStage:        LeadStageNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// PrimaryPhone returns the phone flagged primary, or nil.
func (l *EnrichedLead) PrimaryPhone() *EnrichedPhone {
	for i := range l.Phones {
		if l.Phones[i].IsPrimary {
			return &l.Phones[i]
		}
	}
	return nil
}

// HasContactData reports whether the lead has any phone or email.
func (l *EnrichedLead) HasContactData() bool {
	return len(l.Phones) > 0 || len(l.Emails) > 0 || l.Email != ""
}

// BestEmail returns the first known email, preferring the imported one.
func (l *EnrichedLead) BestEmail() string {
	if l.Email != "" {
		return l.Email
	}
	if len(l.Emails) > 0 {
		return l.Emails[0]
	}
	return ""
}

// AddCost accumulates enrichment spend on the lead.
func (l *EnrichedLead) AddCost(amount float64) {
	l.CostToEnrich += amount
}
