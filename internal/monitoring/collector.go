package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/model"
)

// maxBatches bounds how many recent batches one snapshot reads.
const maxBatches = 1000

// Snapshot is a point-in-time view of chain health.
type Snapshot struct {
	Batches        int                          `json:"batches"`
	BatchesByStage map[model.ExecutionStage]int `json:"batches_by_stage"`
	Processing     int                          `json:"processing"`
	Stalled        []string                     `json:"stalled,omitempty"`

	LeadsProcessed int     `json:"leads_processed"`
	LeadsFailed    int     `json:"leads_failed"`
	FailRate       float64 `json:"fail_rate"`
	EnrichmentCost float64 `json:"enrichment_cost_usd"`

	DLQDepth int `json:"dlq_depth"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Source is the part of the store the collector reads.
type Source interface {
	ListBatches(ctx context.Context, limit int) ([]model.ExecutionBatch, error)
	CountDLQ(ctx context.Context) (int, error)
}

// Collector builds snapshots from the store.
type Collector struct {
	src        Source
	stallAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a collector. Batches still processing with no
// update for stallAfter are reported as stalled; zero disables the check.
func NewCollector(src Source, stallAfter time.Duration) *Collector {
	return &Collector{src: src, stallAfter: stallAfter, now: func() time.Time { return time.Now().UTC() }}
}

// Collect summarizes batches updated within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now()
	snap := &Snapshot{
		BatchesByStage: map[model.ExecutionStage]int{},
		LookbackHours:  lookbackHours,
		CollectedAt:    now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	batches, err := c.src.ListBatches(ctx, maxBatches)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list batches")
	}
	for _, b := range batches {
		if lookbackHours > 0 && b.UpdatedAt.Before(cutoff) {
			continue
		}
		snap.Batches++
		snap.BatchesByStage[b.Stage]++
		snap.LeadsProcessed += b.ProcessedLeads
		snap.LeadsFailed += b.FailCount
		snap.EnrichmentCost += b.Metadata.EnrichmentCost
		if b.Status == model.BatchProcessing {
			snap.Processing++
			if c.stallAfter > 0 && now.Sub(b.UpdatedAt) > c.stallAfter {
				snap.Stalled = append(snap.Stalled, b.ID)
			}
		}
	}
	if snap.LeadsProcessed > 0 {
		snap.FailRate = float64(snap.LeadsFailed) / float64(snap.LeadsProcessed)
	}

	snap.DLQDepth, err = c.src.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dlq")
	}
	return snap, nil
}
