package chain

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/crm"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/quota"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/internal/store"
	"github.com/sells-group/lead-qualify/internal/template"
	"github.com/sells-group/lead-qualify/pkg/signalhouse"
)

// DeployOptions controls a deployment run.
type DeployOptions struct {
	DryRun bool `json:"dry_run"`
	Limit  int  `json:"limit,omitempty"`
}

// Deploy texts every campaign-ready lead of the batch, one send per
// configured interval and within the sending number's daily quota. Blocked
// leads are never texted and count as failed. A dry run walks the same leads
// and reports the same counts, quota included, without sending or writing
// anything.
func (e *Executor) Deploy(ctx context.Context, batchID string, opts DeployOptions) (*model.ExecutionResult, error) {
	if !opts.DryRun {
		if e.sms == nil {
			return nil, eris.Wrap(ErrNotConfigured, "chain: sms client")
		}
		if e.cfg.FromNumber == "" {
			return nil, eris.Wrap(ErrNotConfigured, "chain: sending number")
		}
	}

	leads, err := e.batchLeads(ctx, batchID, model.LeadStageCampaignReady)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(leads) > opts.Limit {
		leads = leads[:opts.Limit]
	}

	res := newResult(model.StageDeploy, batchID)
	rec := &recorder{res: res}
	res.Processed = len(leads)
	log := e.logger(model.StageDeploy, batchID)
	log.Info("chain: deploy started", zap.Int("leads", len(leads)), zap.Bool("dry_run", opts.DryRun))

	// A dry run consumes nothing, so it counts down a copy of what is left.
	dryLeft := 0
	if opts.DryRun {
		if dryLeft, err = e.quota.Remaining(ctx, e.cfg.FromNumber); err != nil {
			return nil, eris.Wrap(err, "chain: check quota")
		}
	}

	templates := make(map[string]template.Template)
	var spent float64
	for _, l := range leads {
		if reason, ok := blocked(l); ok {
			rec.fail("lead %s blocked: %s", l.ID, reason)
			continue
		}
		tmpl, ok := templates[l.Meta.TemplateID]
		if !ok {
			tmpl, ok = e.catalog.Get(l.Meta.TemplateID)
			if !ok {
				rec.fail("no template for lead %s", l.ID)
				continue
			}
			templates[tmpl.ID] = tmpl
		}
		to := recipient(l)
		if to == "" {
			rec.fail("no phone for lead %s", l.ID)
			continue
		}
		msg := tmpl.Render(e.vars(l))

		if opts.DryRun {
			if dryLeft <= 0 {
				rec.fail("sms failed for %s: %v", to, eris.Wrapf(quota.ErrExceeded, "number %s", e.cfg.FromNumber))
				continue
			}
			dryLeft--
			log.Debug("chain: dry run send", zap.String("lead_id", l.ID), zap.String("to", to))
			rec.ok()
			continue
		}

		sent, err := e.send(ctx, l, to, msg)
		if err != nil {
			if ctx.Err() != nil {
				rec.fail("error sending to %s: %v", to, err)
				res.Data["interrupted"] = true
				break
			}
			rec.fail("sms failed for %s: %v", to, err)
			continue
		}
		spent += e.costs.SMS(max(sent.Segments, 1))
		rec.ok()
	}

	res.Data["dry_run"] = opts.DryRun
	res.Data["from_number"] = e.cfg.FromNumber
	res.Data["send_interval_ms"] = e.cfg.SendInterval.Milliseconds()
	res.Data["sms_cost"] = spent
	finish(res)

	log.Info("chain: deploy complete",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Float64("cost", spent),
	)
	return res, nil
}

// send reserves quota, waits for the send interval, texts the lead and
// records the contact on it.
func (e *Executor) send(ctx context.Context, l *model.EnrichedLead, to, msg string) (*signalhouse.MessageResult, error) {
	if err := e.sendRate.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "chain: send interval")
	}
	if _, err := e.quota.Reserve(ctx, e.cfg.FromNumber); err != nil {
		if errors.Is(err, quota.ErrExceeded) {
			return nil, err
		}
		return nil, eris.Wrap(err, "chain: reserve quota")
	}

	out, err := resilience.Call(ctx, e.guard, "signalhouse", "send_sms",
		func(ctx context.Context) (*signalhouse.MessageResult, error) {
			return e.sms.SendSMS(ctx, signalhouse.SendRequest{
				To:            to,
				From:          e.cfg.FromNumber,
				Message:       msg,
				CorrelationID: "leadq_" + l.ID,
			})
		})
	if err != nil {
		return nil, err
	}

	at := e.now()
	stage := model.StageDeploy
	if err := e.store.PatchLead(ctx, l.ID, store.LeadPatch{
		LeadStage: store.Ptr(model.LeadStageContacted),
		Meta: &store.MetaPatch{
			MessageID:      &out.MessageID,
			LastSMSAt:      &at,
			ExecutionStage: &stage,
		},
	}); err != nil {
		zap.L().Error("chain: message sent but lead not updated",
			zap.String("lead_id", l.ID),
			zap.String("message_id", out.MessageID),
			zap.Error(err),
		)
	}

	if e.crm != nil && l.Meta.CRMRecordID != "" {
		if _, err := e.crm.LogSMS(ctx, crm.Activity{
			RecordID:  l.Meta.CRMRecordID,
			Direction: crm.Outbound,
			Message:   msg,
			Persona:   l.Meta.PersonaID,
			At:        at,
		}); err != nil {
			zap.L().Warn("chain: crm activity not logged", zap.String("lead_id", l.ID), zap.Error(err))
		}
	}
	return out, nil
}
