package store

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/model"
)

// LeadPatch is a partial update of a lead. Nil fields are left untouched;
// set fields replace the stored value. JSON tags match model.EnrichedLead
// so the encoded patch can be merged into the stored document directly.
type LeadPatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`

	Phones         []model.EnrichedPhone `json:"phones,omitempty"`
	Emails         []string              `json:"emails,omitempty"`
	MailingAddress *model.MailingAddress `json:"mailing_address,omitempty"`

	IsBusinessActive     *bool                           `json:"is_business_active,omitempty"`
	BusinessVerification *model.BusinessVerification     `json:"business_verification,omitempty"`
	Validation           *model.ContactabilityValidation `json:"validation,omitempty"`
	Qualification        *model.Qualification            `json:"qualification,omitempty"`

	EnrichmentStatus *model.EnrichmentStatus `json:"enrichment_status,omitempty"`
	PipelineStage    *model.PipelineStage    `json:"pipeline_stage,omitempty"`
	LeadStage        *model.LeadStage        `json:"lead_stage,omitempty"`
	CostToEnrich     *float64                `json:"cost_to_enrich,omitempty"`
	Steps            []model.StepResult      `json:"steps,omitempty"`

	Meta *MetaPatch `json:"-"`
}

// MetaPatch is a partial update of model.LeadMeta.
type MetaPatch struct {
	BatchID           *string               `json:"batch_id,omitempty"`
	BlockNumber       *int                  `json:"block_number,omitempty"`
	IndustryID        *string               `json:"industry_id,omitempty"`
	Industry          *string               `json:"industry,omitempty"`
	CampaignID        *string               `json:"campaign_id,omitempty"`
	ImportedAt        *time.Time            `json:"imported_at,omitempty"`
	ExecutionStage    *model.ExecutionStage `json:"execution_stage,omitempty"`
	LineType          *string               `json:"line_type,omitempty"`
	Contactable       *bool                 `json:"contactable,omitempty"`
	PersonaID         *string               `json:"persona_id,omitempty"`
	TemplateID        *string               `json:"template_id,omitempty"`
	MessageID         *string               `json:"message_id,omitempty"`
	LastSMSAt         *time.Time            `json:"last_sms_at,omitempty"`
	MobileConfirmed   *bool                 `json:"mobile_confirmed,omitempty"`
	PermissionGranted *bool                 `json:"permission_granted,omitempty"`
	SkipTraceQueueID  *string               `json:"skip_trace_queue_id,omitempty"`
	CRMRecordID       *string               `json:"crm_record_id,omitempty"`
}

// Ptr returns a pointer to v. Handy when building patches.
func Ptr[T any](v T) *T { return &v }

// Apply merges the patch into l in place.
func (p LeadPatch) Apply(l *model.EnrichedLead) {
	setIf(&l.FirstName, p.FirstName)
	setIf(&l.LastName, p.LastName)
	setIf(&l.Email, p.Email)
	if p.Phones != nil {
		l.Phones = p.Phones
	}
	if p.Emails != nil {
		l.Emails = p.Emails
	}
	if p.MailingAddress != nil {
		l.MailingAddress = p.MailingAddress
	}
	if p.IsBusinessActive != nil {
		l.IsBusinessActive = p.IsBusinessActive
	}
	if p.BusinessVerification != nil {
		l.BusinessVerification = p.BusinessVerification
	}
	if p.Validation != nil {
		l.Validation = p.Validation
	}
	if p.Qualification != nil {
		l.Qualification = p.Qualification
	}
	setIf(&l.EnrichmentStatus, p.EnrichmentStatus)
	setIf(&l.PipelineStage, p.PipelineStage)
	setIf(&l.LeadStage, p.LeadStage)
	setIf(&l.CostToEnrich, p.CostToEnrich)
	if p.Steps != nil {
		l.Steps = p.Steps
	}
	if p.Meta != nil {
		p.Meta.Apply(&l.Meta)
		if p.Meta.BatchID != nil {
			l.BatchID = *p.Meta.BatchID
		}
	}
}

// Apply merges the meta patch into m in place.
func (p MetaPatch) Apply(m *model.LeadMeta) {
	setIf(&m.BatchID, p.BatchID)
	setIf(&m.BlockNumber, p.BlockNumber)
	setIf(&m.IndustryID, p.IndustryID)
	setIf(&m.Industry, p.Industry)
	setIf(&m.CampaignID, p.CampaignID)
	if p.ImportedAt != nil {
		m.ImportedAt = p.ImportedAt
	}
	setIf(&m.ExecutionStage, p.ExecutionStage)
	setIf(&m.LineType, p.LineType)
	if p.Contactable != nil {
		m.Contactable = p.Contactable
	}
	setIf(&m.PersonaID, p.PersonaID)
	setIf(&m.TemplateID, p.TemplateID)
	setIf(&m.MessageID, p.MessageID)
	if p.LastSMSAt != nil {
		m.LastSMSAt = p.LastSMSAt
	}
	if p.MobileConfirmed != nil {
		m.MobileConfirmed = p.MobileConfirmed
	}
	if p.PermissionGranted != nil {
		m.PermissionGranted = p.PermissionGranted
	}
	setIf(&m.SkipTraceQueueID, p.SkipTraceQueueID)
	setIf(&m.CRMRecordID, p.CRMRecordID)
}

// Empty reports whether the patch sets nothing.
func (p LeadPatch) Empty() bool {
	top, meta, err := p.documents()
	return err == nil && string(top) == "{}" && string(meta) == "{}"
}

// documents encodes the top-level and meta halves of the patch as JSON
// objects. Both are "{}" when nothing is set.
func (p LeadPatch) documents() (top, meta []byte, err error) {
	top, err = json.Marshal(p)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal lead patch")
	}
	mp := MetaPatch{}
	if p.Meta != nil {
		mp = *p.Meta
	}
	meta, err = json.Marshal(mp)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal meta patch")
	}
	return top, meta, nil
}

// mergeDocument nests meta under "meta" so a single RFC 7396 merge patch
// covers both halves.
func (p LeadPatch) mergeDocument() ([]byte, error) {
	top, meta, err := p.documents()
	if err != nil {
		return nil, err
	}
	if string(meta) == "{}" {
		return top, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(top, &doc); err != nil {
		return nil, eris.Wrap(err, "store: decode lead patch")
	}
	doc["meta"] = meta
	if p.Meta.BatchID != nil {
		doc["batch_id"], _ = json.Marshal(*p.Meta.BatchID)
	}
	out, err := json.Marshal(doc)
	return out, eris.Wrap(err, "store: encode lead patch")
}

// replacedKeys lists the set top-level objects that must replace the stored
// value whole. A merge patch would otherwise keep stale nested fields the
// new value omits.
func (p LeadPatch) replacedKeys() []string {
	var keys []string
	if p.MailingAddress != nil {
		keys = append(keys, "mailing_address")
	}
	if p.BusinessVerification != nil {
		keys = append(keys, "business_verification")
	}
	if p.Validation != nil {
		keys = append(keys, "validation")
	}
	if p.Qualification != nil {
		keys = append(keys, "qualification")
	}
	return keys
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
