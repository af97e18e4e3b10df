package chain

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/enrich"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/internal/store"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
)

// EnrichOptions selects what the ENRICH stage does.
type EnrichOptions struct {
	// SkipTrace submits the batch as one bulk skip-trace job.
	SkipTrace bool `json:"skip_trace"`
	// VerifyBusiness runs business and owner research per lead.
	VerifyBusiness bool `json:"verify_business"`
	// Resolve runs the full per-lead pipeline synchronously instead of
	// queueing a bulk job.
	Resolve bool `json:"resolve"`
	// Await blocks on a queued skip-trace job and applies its results
	// before the stage returns.
	Await bool `json:"await"`
	// Poll tunes the wait used by Await.
	Poll []tracerfy.PollOption `json:"-"`
}

// Enrich runs the ENRICH stage. A bulk skip-trace completes as "queued":
// leads keep empty enrichment fields until AwaitTrace applies the results,
// and CONTACTABILITY tolerates that. Business verification runs inline
// before the trace is queued.
func (e *Executor) Enrich(ctx context.Context, batchID string, opts EnrichOptions) (*model.ExecutionResult, error) {
	leads, err := e.batchLeads(ctx, batchID, "")
	if err != nil {
		return nil, err
	}
	res := newResult(model.StageEnrich, batchID)
	res.Processed = len(leads)
	log := e.logger(model.StageEnrich, batchID)
	log.Info("chain: enrich started", zap.Int("leads", len(leads)), zap.Bool("resolve", opts.Resolve))

	switch {
	case opts.Resolve || (opts.VerifyBusiness && !opts.SkipTrace):
		if e.pipeline == nil {
			return nil, eris.Wrap(ErrNotConfigured, "chain: enrichment pipeline")
		}
		cfg := e.pipeline.Config()
		cfg.VerifyBusiness = opts.VerifyBusiness
		cfg.ResearchOwner = opts.VerifyBusiness
		cfg.SkipTrace = opts.SkipTrace && opts.Resolve
		cfg.Validate = cfg.Validate && opts.Resolve
		if err := e.runPipeline(ctx, cfg, leads, res); err != nil {
			return res, err
		}
	case opts.SkipTrace:
		if e.tracer == nil {
			return nil, eris.Wrap(ErrNotConfigured, "chain: skip-trace client")
		}
		var verifyCost float64
		if opts.VerifyBusiness {
			if e.pipeline == nil {
				return nil, eris.Wrap(ErrNotConfigured, "chain: enrichment pipeline")
			}
			cfg := e.pipeline.Config()
			cfg.VerifyBusiness = true
			cfg.ResearchOwner = true
			cfg.SkipTrace = false
			cfg.Validate = false
			vres := newResult(model.StageEnrich, batchID)
			if err := e.runPipeline(ctx, cfg, leads, vres); err != nil {
				return vres, err
			}
			res.Errors = append(res.Errors, vres.Errors...)
			verifyCost, _ = vres.Data["enrichment_cost"].(float64)
		}
		e.queueTrace(ctx, leads, res)
		if _, queued := res.Data["queue_id"]; queued && opts.Await {
			if err := e.await(ctx, batchID, opts.Poll, res); err != nil {
				return res, err
			}
		}
		if verifyCost > 0 {
			traced, _ := res.Data["enrichment_cost"].(float64)
			res.Data["enrichment_cost"] = traced + verifyCost
		}
	default:
		res.Succeeded = len(leads)
		res.Data["enrichment_cost"] = 0.0
	}

	res.Data["skip_trace_queued"] = opts.SkipTrace && !opts.Resolve
	res.Data["business_verified"] = opts.VerifyBusiness
	e.stamp(ctx, leads, model.StageEnrich, res)
	finish(res)
	log.Info("chain: enrich complete", zap.Int("succeeded", res.Succeeded), zap.Int("failed", res.Failed))
	return res, nil
}

// await folds AwaitTrace into a queued ENRICH result.
func (e *Executor) await(ctx context.Context, batchID string, poll []tracerfy.PollOption, res *model.ExecutionResult) error {
	aw, err := e.AwaitTrace(ctx, batchID, poll...)
	if err != nil {
		return err
	}
	skipped, _ := res.Data["skipped"].(int)
	res.Succeeded = skipped + aw.Succeeded
	res.Failed += aw.Failed
	res.Errors = append(res.Errors, aw.Errors...)
	res.Data["status"] = "resolved"
	res.Data["enrichment_cost"] = aw.Data["enrichment_cost"]
	return nil
}

func (e *Executor) runPipeline(ctx context.Context, cfg enrich.Config, leads []*model.EnrichedLead, res *model.ExecutionResult) error {
	out, err := e.pipeline.With(cfg).EnrichBatch(ctx, e.store, leads, enrich.BatchOptions{
		Concurrency: e.cfg.Concurrency,
		MaxRetries:  e.cfg.MaxRetries,
	})
	if out != nil {
		res.Succeeded = out.Succeeded
		res.Failed = out.Failed
		res.Data["enrichment_cost"] = out.Cost
		res.Data["dead_lettered"] = out.DeadLettered
		rec := &recorder{res: res}
		for _, r := range out.Results {
			if r == nil {
				continue
			}
			for step, stepErr := range r.Errors {
				rec.errorf("lead %s: %s: %v", r.Lead.ID, step, stepErr)
			}
		}
	}
	return err
}

func (e *Executor) queueTrace(ctx context.Context, leads []*model.EnrichedLead, res *model.ExecutionResult) {
	rec := &recorder{res: res}
	var traceable []*model.EnrichedLead
	records := make([]tracerfy.TraceRecord, 0, len(leads))
	for _, l := range leads {
		if !enrich.CanSkipTrace(l) {
			continue
		}
		traceable = append(traceable, l)
		records = append(records, enrich.TraceRecord(l))
	}
	res.Data["skipped"] = len(leads) - len(traceable)
	res.Succeeded = len(leads) - len(traceable)
	if len(records) == 0 {
		res.Data["enrichment_cost"] = 0.0
		return
	}

	job, err := resilience.Call(ctx, e.guard, "tracerfy", "begin_trace",
		func(ctx context.Context) (*tracerfy.TraceJobResponse, error) {
			return e.tracer.BeginTrace(ctx, records, e.cfg.TraceType)
		})
	if err != nil {
		res.Failed += len(records)
		rec.errorf("skip trace failed: %v", err)
		res.Data["enrichment_cost"] = 0.0
		return
	}

	queueID := strconv.Itoa(job.QueueID)
	for _, l := range traceable {
		if err := e.store.PatchLead(ctx, l.ID, store.LeadPatch{
			Meta: &store.MetaPatch{SkipTraceQueueID: &queueID},
		}); err != nil {
			rec.fail("lead %s: %v", l.ID, err)
			continue
		}
		rec.ok()
	}
	res.Data["queue_id"] = job.QueueID
	res.Data["status"] = "queued"
	res.Data["enrichment_cost"] = float64(len(records)) * e.costs.SkipTrace(string(e.cfg.TraceType))
}

// stamp records the stage on every lead the stage touched.
func (e *Executor) stamp(ctx context.Context, leads []*model.EnrichedLead, stage model.ExecutionStage, res *model.ExecutionResult) {
	rec := &recorder{res: res}
	for _, l := range leads {
		if err := e.store.PatchLead(ctx, l.ID, store.LeadPatch{
			Meta: &store.MetaPatch{ExecutionStage: &stage},
		}); err != nil {
			rec.errorf("lead %s: stamp %s: %v", l.ID, stage, err)
		}
	}
}

// traceKey matches a skip-trace row back to the lead it was built from.
func traceKey(first, last, address string) string {
	norm := func(s string) string { return strings.Join(strings.Fields(strings.ToLower(s)), " ") }
	return norm(first) + "|" + norm(last) + "|" + norm(address)
}

// AwaitTrace waits for the batch's queued skip-trace jobs and applies the
// returned phones, emails and mailing addresses to the matching leads. Every
// queued lead is billed once; leads the vendor returned no match for are
// counted as failed. A lead's queue id is cleared once settled, so awaiting
// again leaves it alone.
func (e *Executor) AwaitTrace(ctx context.Context, batchID string, opts ...tracerfy.PollOption) (*model.ExecutionResult, error) {
	if e.tracer == nil {
		return nil, eris.Wrap(ErrNotConfigured, "chain: skip-trace client")
	}
	leads, err := e.batchLeads(ctx, batchID, "")
	if err != nil {
		return nil, err
	}

	res := newResult(model.StageEnrich, batchID)
	rec := &recorder{res: res}
	byQueue := make(map[string][]*model.EnrichedLead)
	for _, l := range leads {
		if l.Meta.SkipTraceQueueID != "" {
			byQueue[l.Meta.SkipTraceQueueID] = append(byQueue[l.Meta.SkipTraceQueueID], l)
		}
	}

	var spent float64
	for qid, queued := range byQueue {
		res.Processed += len(queued)
		id, err := strconv.Atoi(qid)
		if err != nil {
			for _, l := range queued {
				rec.fail("lead %s: bad queue id %q", l.ID, qid)
			}
			continue
		}
		rows, err := e.traceRows(ctx, id, opts)
		if err != nil {
			for _, l := range queued {
				rec.fail("lead %s: %v", l.ID, err)
			}
			continue
		}

		found := make(map[string]tracerfy.TraceResult, len(rows))
		for _, r := range rows {
			found[traceKey(r.FirstName, r.LastName, r.Address)] = r
		}
		for _, l := range queued {
			perRecord := e.costs.SkipTrace(string(e.cfg.TraceType))
			r, ok := found[traceKey(l.FirstName, l.LastName, l.Address)]
			if !ok {
				if err := e.store.PatchLead(ctx, l.ID, noMatchPatch(l, perRecord)); err != nil {
					rec.fail("lead %s: %v", l.ID, err)
					continue
				}
				spent += perRecord
				rec.fail("lead %s: no skip-trace match", l.ID)
				continue
			}
			if err := e.store.PatchLead(ctx, l.ID, tracePatch(l, r, perRecord, e.preferMobile())); err != nil {
				rec.fail("lead %s: %v", l.ID, err)
				continue
			}
			spent += perRecord
			rec.ok()
		}
	}

	res.Data["queues"] = len(byQueue)
	res.Data["enrichment_cost"] = spent
	return finish(res), nil
}

func (e *Executor) traceRows(ctx context.Context, queueID int, opts []tracerfy.PollOption) ([]tracerfy.TraceResult, error) {
	if _, err := tracerfy.PollQueue(ctx, e.tracer, queueID, opts...); err != nil {
		return nil, err
	}
	return resilience.Call(ctx, e.guard, "tracerfy", "get_queue_results",
		func(ctx context.Context) ([]tracerfy.TraceResult, error) {
			return e.tracer.GetQueueResults(ctx, queueID)
		})
}

// preferMobile follows the enrichment pipeline's phone ordering, mobile-first
// when no pipeline is wired.
func (e *Executor) preferMobile() bool {
	if e.pipeline == nil {
		return true
	}
	return e.pipeline.Config().PreferMobile
}

// noMatchPatch bills an unmatched lead and settles its queue id.
func noMatchPatch(l *model.EnrichedLead, spent float64) store.LeadPatch {
	return store.LeadPatch{
		CostToEnrich: store.Ptr(l.CostToEnrich + spent),
		Steps: append(slices.Clone(l.Steps), model.StepResult{
			Step:   model.StepSkipTrace,
			Status: model.StepFailed,
			Cost:   spent,
			Error:  "no match",
		}),
		Meta: &store.MetaPatch{SkipTraceQueueID: store.Ptr("")},
	}
}

func tracePatch(l *model.EnrichedLead, r tracerfy.TraceResult, spent float64, preferMobile bool) store.LeadPatch {
	p := store.LeadPatch{
		Emails:           enrich.MergeEmails(l.Emails, tracerfy.ExtractEmails(r)),
		EnrichmentStatus: store.Ptr(model.MergeEnrichmentStatus(l.EnrichmentStatus, model.EnrichmentEnriched)),
		CostToEnrich:     store.Ptr(l.CostToEnrich + spent),
		Steps: append(slices.Clone(l.Steps), model.StepResult{
			Step:   model.StepSkipTrace,
			Status: model.StepSuccess,
			Cost:   spent,
		}),
		Meta: &store.MetaPatch{SkipTraceQueueID: store.Ptr("")},
	}
	if phones := enrich.VendorPhones(tracerfy.ExtractPhones(r), preferMobile); len(phones) > 0 {
		p.Phones = phones
		p.Meta.LineType = store.Ptr(string(phones[0].Type))
	}
	if r.MailAddress != "" {
		p.MailingAddress = &model.MailingAddress{Address: r.MailAddress, City: r.MailCity, State: r.MailState}
	}
	if next, err := model.AdvancePipelineStage(l.PipelineStage, model.PipelineStageEnrich); err == nil {
		p.PipelineStage = &next
	}
	return p
}
