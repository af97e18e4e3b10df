package model

import "time"

// StepStatus is the outcome of a single per-lead pipeline step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Step names used in enrichment reports.
const (
	StepVerifyBusiness = "business_verification"
	StepOwnerResearch  = "owner_research"
	StepSkipTrace      = "skip_trace"
	StepValidate       = "contact_validation"
	StepQualify        = "qualification"
)

// StepResult records what one step did for one lead.
type StepResult struct {
	Step     string         `json:"step"`
	Status   StepStatus     `json:"status"`
	Duration int64          `json:"duration_ms"`
	Cost     float64        `json:"cost,omitempty"`
	Error    string         `json:"error,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// EnrichmentReport collects step results for a lead.
type EnrichmentReport struct {
	LeadID    string       `json:"lead_id"`
	Steps     []StepResult `json:"steps"`
	TotalCost float64      `json:"total_cost"`
	Duration  int64        `json:"duration_ms"`
}

// Add appends a step and accumulates its cost.
func (r *EnrichmentReport) Add(s StepResult) {
	r.Steps = append(r.Steps, s)
	r.TotalCost += s.Cost
}

// Failed returns the steps that failed.
func (r *EnrichmentReport) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			out = append(out, s)
		}
	}
	return out
}

// Skipped builds a skipped step result.
func Skipped(step, reason string) StepResult {
	return StepResult{Step: step, Status: StepSkipped, Details: map[string]any{"reason": reason}}
}

// Since returns the elapsed milliseconds since start.
func Since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
