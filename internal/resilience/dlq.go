package resilience

import (
	"time"
)

// Error classes recorded on dead-letter entries.
const (
	ErrorTypeTransient = "transient"
	ErrorTypePermanent = "permanent"
)

// DLQEntry represents a lead whose enrichment failed and can be
// re-submitted later.
type DLQEntry struct {
	ID           string    `json:"id"`
	LeadID       string    `json:"lead_id"`
	BatchID      string    `json:"batch_id,omitempty"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	FailedStep   string    `json:"failed_step,omitempty"`
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	BatchID   string `json:"batch_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// NewDLQEntry builds an entry for a failed lead step, classifying err.
// Transient failures become eligible for retry after backoff.
func NewDLQEntry(leadID, batchID, step string, err error, maxRetries int, backoff time.Duration) DLQEntry {
	now := time.Now().UTC()
	e := DLQEntry{
		LeadID:       leadID,
		BatchID:      batchID,
		Error:        err.Error(),
		ErrorType:    ClassifyError(err),
		FailedStep:   step,
		MaxRetries:   maxRetries,
		NextRetryAt:  now.Add(backoff),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if e.ErrorType == ErrorTypePermanent {
		e.MaxRetries = 0
	}
	return e
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTypeTransient
	}
	return ErrorTypePermanent
}
