package enrich

import (
	"context"
	"time"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
)

// guardedTracer routes every Tracerfy call through the resilience guard.
type guardedTracer struct {
	client tracerfy.Client
	guard  *resilience.Guard
}

func (g guardedTracer) BeginTrace(ctx context.Context, records []tracerfy.TraceRecord, traceType tracerfy.TraceType) (*tracerfy.TraceJobResponse, error) {
	return resilience.Call(ctx, g.guard, "tracerfy", "begin_trace", func(ctx context.Context) (*tracerfy.TraceJobResponse, error) {
		return g.client.BeginTrace(ctx, records, traceType)
	})
}

func (g guardedTracer) GetQueues(ctx context.Context) ([]tracerfy.Queue, error) {
	return resilience.Call(ctx, g.guard, "tracerfy", "get_queues", g.client.GetQueues)
}

func (g guardedTracer) GetQueueResults(ctx context.Context, queueID int) ([]tracerfy.TraceResult, error) {
	return resilience.Call(ctx, g.guard, "tracerfy", "get_queue_results", func(ctx context.Context) ([]tracerfy.TraceResult, error) {
		return g.client.GetQueueResults(ctx, queueID)
	})
}

// TraceRecord builds the skip-trace input for a lead. The property address
// doubles as the mailing address.
func TraceRecord(lead *model.EnrichedLead) tracerfy.TraceRecord {
	return tracerfy.TraceRecord{
		Address:     lead.Address,
		City:        lead.City,
		State:       lead.State,
		Zip:         lead.Zip,
		FirstName:   lead.FirstName,
		LastName:    lead.LastName,
		MailAddress: lead.Address,
		MailCity:    lead.City,
		MailState:   lead.State,
		MailingZip:  lead.Zip,
	}
}

// CanSkipTrace reports whether the lead has the fields a trace needs.
func CanSkipTrace(lead *model.EnrichedLead) bool {
	return lead.Address != "" && lead.FirstName != "" && lead.LastName != ""
}

func (p *Pipeline) skipTrace(ctx context.Context, lead *model.EnrichedLead) (model.StepResult, error) {
	switch {
	case !p.cfg.SkipTrace || p.tracer == nil:
		return model.Skipped(model.StepSkipTrace, "disabled"), nil
	case !CanSkipTrace(lead):
		return model.Skipped(model.StepSkipTrace, "missing address, first name or last name"), nil
	}

	start := time.Now()
	advance(lead, model.PipelineStageEnrich)

	var opts []tracerfy.PollOption
	if p.cfg.PollInterval > 0 {
		opts = append(opts, tracerfy.WithPollInterval(p.cfg.PollInterval))
	}
	if p.cfg.PollCap > 0 {
		opts = append(opts, tracerfy.WithPollCap(p.cfg.PollCap))
	}
	if p.cfg.PollTimeout > 0 {
		opts = append(opts, tracerfy.WithPollTimeout(p.cfg.PollTimeout))
	}

	client := guardedTracer{client: p.tracer, guard: p.guard}
	job, results, err := tracerfy.TraceAndWait(ctx, client, []tracerfy.TraceRecord{TraceRecord(lead)}, p.cfg.TraceType, opts...)
	if err != nil {
		return failed(model.StepSkipTrace, start, err), err
	}
	// The vendor bills every submitted record, matched or not.
	step := model.StepResult{
		Step:     model.StepSkipTrace,
		Status:   model.StepSuccess,
		Duration: model.Since(start),
		Cost:     p.costs.SkipTrace(string(p.cfg.TraceType)),
	}
	lead.AddCost(step.Cost)
	if len(results) == 0 {
		step.Status = model.StepFailed
		step.Error = "no match"
		step.Details = map[string]any{"phones": 0, "emails": 0, "queue_id": queueID(job)}
		return step, nil
	}

	r := results[0]
	if phones := VendorPhones(tracerfy.ExtractPhones(r), p.cfg.PreferMobile); len(phones) > 0 {
		lead.Phones = phones
		lead.Meta.LineType = string(phones[0].Type)
	}
	lead.Emails = MergeEmails(lead.Emails, tracerfy.ExtractEmails(r))
	if r.MailAddress != "" {
		lead.MailingAddress = &model.MailingAddress{
			Address: r.MailAddress,
			City:    r.MailCity,
			State:   r.MailState,
		}
	}

	mobile, landline := model.CountByType(lead.Phones)
	step.Details = map[string]any{
		"phones":   len(lead.Phones),
		"mobile":   mobile,
		"landline": landline,
		"emails":   len(lead.Emails),
		"queue_id": queueID(job),
	}
	return step, nil
}

// queueID is recorded on the step only. The results are applied inline, so
// the lead is never left waiting on the queue.
func queueID(job *tracerfy.TraceJobResponse) string {
	if job == nil {
		return ""
	}
	return itoa(job.QueueID)
}
