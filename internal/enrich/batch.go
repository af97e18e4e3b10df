package enrich

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/internal/store"
)

// BatchOptions tunes EnrichBatch and RetryDLQ.
type BatchOptions struct {
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultBatchOptions returns the production batch settings.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Concurrency: 10, MaxRetries: 3, RetryBackoff: 5 * time.Minute}
}

func (o BatchOptions) withDefaults() BatchOptions {
	d := DefaultBatchOptions()
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = d.RetryBackoff
	}
	return o
}

// BatchResult summarizes a concurrent enrichment run.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int
	// DeadLettered counts step failures written to the dead-letter queue.
	DeadLettered int
	Cost         float64
	Results      []*Result
}

// PatchFor builds the store patch covering every field the pipeline writes.
// Meta.Contactable is owned by the CONTACTABILITY stage and never set here.
func PatchFor(lead *model.EnrichedLead) store.LeadPatch {
	p := store.LeadPatch{
		FirstName:            store.Ptr(lead.FirstName),
		LastName:             store.Ptr(lead.LastName),
		Phones:               lead.Phones,
		Emails:               lead.Emails,
		MailingAddress:       lead.MailingAddress,
		IsBusinessActive:     lead.IsBusinessActive,
		BusinessVerification: lead.BusinessVerification,
		Validation:           lead.Validation,
		Qualification:        lead.Qualification,
		EnrichmentStatus:     store.Ptr(lead.EnrichmentStatus),
		PipelineStage:        store.Ptr(lead.PipelineStage),
		CostToEnrich:         store.Ptr(lead.CostToEnrich),
		Steps:                lead.Steps,
	}
	meta := &store.MetaPatch{}
	if lead.Meta.LineType != "" {
		meta.LineType = store.Ptr(lead.Meta.LineType)
	}
	if lead.Meta.SkipTraceQueueID != "" {
		meta.SkipTraceQueueID = store.Ptr(lead.Meta.SkipTraceQueueID)
	}
	p.Meta = meta
	return p
}

// EnrichBatch enriches leads concurrently and persists each one as it
// finishes. A lead failure never aborts the batch; failed steps are
// dead-lettered. The returned error is non-nil only when ctx ends.
func (p *Pipeline) EnrichBatch(ctx context.Context, st store.Store, leads []*model.EnrichedLead, opts BatchOptions) (*BatchResult, error) {
	opts = opts.withDefaults()
	out := &BatchResult{Total: len(leads), Results: make([]*Result, len(leads))}
	if len(leads) == 0 {
		zap.L().Info("enrich: no leads to process")
		return out, nil
	}

	zap.L().Info("enrich: processing batch",
		zap.Int("leads", len(leads)),
		zap.Int("concurrency", opts.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	var succeeded, failedN, dead atomic.Int64
	for i, lead := range leads {
		g.Go(func() error {
			log := zap.L().With(zap.String("lead_id", lead.ID))

			res := p.Enrich(gctx, lead)
			out.Results[i] = res

			if err := st.PatchLead(gctx, lead.ID, PatchFor(lead)); err != nil {
				failedN.Add(1)
				log.Error("enrich: persist lead failed", zap.Error(err))
				return nil
			}
			n := p.deadLetter(gctx, st, lead, res, opts)
			dead.Add(int64(n))

			if res.Success() {
				succeeded.Add(1)
			} else {
				failedN.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	out.Succeeded = int(succeeded.Load())
	out.Failed = int(failedN.Load())
	out.DeadLettered = int(dead.Load())
	for _, r := range out.Results {
		if r != nil {
			out.Cost += r.Report.TotalCost
		}
	}

	zap.L().Info("enrich: batch complete",
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed),
		zap.Int("dead_lettered", out.DeadLettered),
		zap.Float64("cost", out.Cost),
	)
	if err := ctx.Err(); err != nil {
		return out, eris.Wrap(err, "enrich: batch interrupted")
	}
	return out, nil
}

func (p *Pipeline) deadLetter(ctx context.Context, st store.Store, lead *model.EnrichedLead, res *Result, opts BatchOptions) int {
	n := 0
	for step, err := range res.Errors {
		entry := resilience.NewDLQEntry(lead.ID, lead.BatchID, step, err, opts.MaxRetries, opts.RetryBackoff)
		if qerr := st.EnqueueDLQ(ctx, entry); qerr != nil {
			zap.L().Error("enrich: dead-letter enqueue failed",
				zap.String("lead_id", lead.ID),
				zap.String("step", step),
				zap.Error(qerr),
			)
			continue
		}
		n++
	}
	return n
}

// RetryStats summarizes a dead-letter retry pass.
type RetryStats struct {
	Attempted int
	Recovered int
	Requeued  int
	// Exhausted counts entries that failed their last allowed attempt.
	Exhausted int
	Skipped   int
}

// step returns the pipeline step registered under name.
func (p *Pipeline) step(name string) (func(context.Context, *model.EnrichedLead) (model.StepResult, error), bool) {
	switch name {
	case model.StepVerifyBusiness:
		return p.verifyBusiness, true
	case model.StepOwnerResearch:
		return p.researchOwner, true
	case model.StepSkipTrace:
		return p.skipTrace, true
	case model.StepValidate:
		return p.validate, true
	}
	return nil, false
}

// RetryDLQ re-runs the failed step of every due, retryable dead-letter
// entry. Recovered entries are removed; failures are re-queued with
// exponential backoff until MaxRetries is reached. Entries that cannot be
// retried stay in the queue for inspection.
func (p *Pipeline) RetryDLQ(ctx context.Context, st store.Store, filter resilience.DLQFilter, opts BatchOptions) (*RetryStats, error) {
	opts = opts.withDefaults()
	entries, err := st.ListDLQ(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: list dead letters")
	}

	stats := &RetryStats{}
	now := time.Now().UTC()
	for _, e := range entries {
		if ctx.Err() != nil {
			return stats, eris.Wrap(ctx.Err(), "enrich: retry interrupted")
		}
		if !e.CanRetry() || e.NextRetryAt.After(now) {
			stats.Skipped++
			continue
		}
		run, ok := p.step(e.FailedStep)
		if !ok {
			stats.Skipped++
			continue
		}
		lead, err := st.GetLead(ctx, e.LeadID)
		if err != nil {
			zap.L().Warn("enrich: dead-letter lead missing", zap.String("lead_id", e.LeadID), zap.Error(err))
			stats.Skipped++
			continue
		}

		stats.Attempted++
		seed(lead)
		s, stepErr := run(ctx, lead)
		lead.Steps = append(lead.Steps, s)
		p.finalize(lead)
		lead.UpdatedAt = time.Now().UTC()
		if err := st.PatchLead(ctx, lead.ID, PatchFor(lead)); err != nil {
			return stats, err
		}

		if stepErr == nil {
			if err := st.RemoveDLQ(ctx, e.ID); err != nil {
				return stats, err
			}
			stats.Recovered++
			continue
		}

		e.RetryCount++
		e.Error = stepErr.Error()
		e.ErrorType = resilience.ClassifyError(stepErr)
		e.LastFailedAt = time.Now().UTC()
		e.NextRetryAt = e.LastFailedAt.Add(opts.RetryBackoff << min(e.RetryCount, 6))
		if e.ErrorType == resilience.ErrorTypePermanent {
			e.MaxRetries = e.RetryCount
		}
		if err := st.EnqueueDLQ(ctx, e); err != nil {
			return stats, err
		}
		if e.CanRetry() {
			stats.Requeued++
		} else {
			stats.Exhausted++
		}
	}

	zap.L().Info("enrich: dead-letter retry complete",
		zap.Int("attempted", stats.Attempted),
		zap.Int("recovered", stats.Recovered),
		zap.Int("requeued", stats.Requeued),
		zap.Int("exhausted", stats.Exhausted),
	)
	return stats, nil
}
