package model

import "time"

// Blueprint is the outreach cadence family a batch belongs to.
type Blueprint string

const (
	BlueprintCold      Blueprint = "COLD"
	BlueprintWarm      Blueprint = "WARM"
	BlueprintRetention Blueprint = "RETENTION"
)

// BatchStatus is the lifecycle state of an execution batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// BatchMetadata carries campaign-level settings of a batch.
type BatchMetadata struct {
	Source         string  `json:"source,omitempty"`
	CampaignID     string  `json:"campaign_id,omitempty"`
	IndustryID     string  `json:"industry_id,omitempty"`
	PersonaID      string  `json:"persona_id,omitempty"`
	TemplateID     string  `json:"template_id,omitempty"`
	EnrichmentCost float64 `json:"enrichment_cost,omitempty"`
}

// ExecutionBatch is a named group of leads moving through the chain together.
type ExecutionBatch struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Stage          ExecutionStage `json:"stage"`
	Blueprint      Blueprint      `json:"blueprint"`
	TotalLeads     int            `json:"total_leads"`
	ProcessedLeads int            `json:"processed_leads"`
	SuccessCount   int            `json:"success_count"`
	FailCount      int            `json:"fail_count"`
	Status         BatchStatus    `json:"status"`
	Metadata       BatchMetadata  `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ExecutionResult is the structured outcome of running one stage on a batch.
type ExecutionResult struct {
	Success   bool           `json:"success"`
	Stage     ExecutionStage `json:"stage"`
	BatchID   string         `json:"batch_id"`
	Processed int            `json:"processed"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Errors    []string       `json:"errors"`
	NextStage ExecutionStage `json:"next_stage,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// TemplateSummary describes the template a preview will send.
type TemplateSummary struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	CharCount int    `json:"char_count"`
	Compliant bool   `json:"compliant"`
}

// CostEstimate is the projected spend of a deployment.
type CostEstimate struct {
	SMS        float64 `json:"sms"`
	Enrichment float64 `json:"enrichment"`
	Total      float64 `json:"total"`
}

// SampleMessage is one rendered example message.
type SampleMessage struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	FirstName string `json:"first_name"`
}

// DeploymentPreview is the read-only projection shown before deploy.
type DeploymentPreview struct {
	BatchID          string          `json:"batch_id"`
	TotalLeads       int             `json:"total_leads"`
	ContactableLeads int             `json:"contactable_leads"`
	MobileLeads      int             `json:"mobile_leads"`
	Template         TemplateSummary `json:"template"`
	EstimatedCost    CostEstimate    `json:"estimated_cost"`
	SampleMessages   []SampleMessage `json:"sample_messages"`
	ReadyToDeploy    bool            `json:"ready_to_deploy"`
	Warnings         []string        `json:"warnings"`
}

// CapturedData is what an inbound reply confirmed about a lead.
type CapturedData struct {
	Email             string    `json:"email,omitempty"`
	MobileConfirmed   bool      `json:"mobile_confirmed"`
	PermissionGranted bool      `json:"permission_granted"`
	ConfirmationType  string    `json:"confirmation_type,omitempty"`
	CapturedAt        time.Time `json:"captured_at"`
}
