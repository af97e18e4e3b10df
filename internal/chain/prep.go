package chain

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/store"
	"github.com/sells-group/lead-qualify/internal/template"
)

// PrepOptions selects the persona and template for a campaign.
type PrepOptions struct {
	PersonaID     string         `json:"persona_id"`
	TemplateStage template.Stage `json:"template_stage"`
	CampaignID    string         `json:"campaign_id,omitempty"`
}

// contactable reports the coarse CONTACTABILITY flag.
func contactable(l *model.EnrichedLead) bool {
	return l.Meta.Contactable != nil && *l.Meta.Contactable
}

// blocked reports why a lead must never be texted: a BLOCK risk tier, a
// do-not-contact route or a litigator flag on its validation.
func blocked(l *model.EnrichedLead) (string, bool) {
	if q := l.Qualification; q != nil {
		if q.Profile.RiskTier == model.RiskBlock {
			return "risk tier BLOCK", true
		}
		if q.Route.Route == model.RouteDoNotContact {
			return "route do_not_contact", true
		}
	}
	if l.Validation != nil && l.Validation.IsLitigatorRisk {
		return "litigator risk", true
	}
	return "", false
}

// CampaignPrep assigns a persona and template to every contactable lead and
// marks it campaign ready. Blocked leads are left out even when their line
// is mobile. A template over one SMS segment is a warning; the leads are
// still assigned.
func (e *Executor) CampaignPrep(ctx context.Context, batchID string, opts PrepOptions) (*model.ExecutionResult, error) {
	all, err := e.batchLeads(ctx, batchID, "")
	if err != nil {
		return nil, err
	}
	res := newResult(model.StageCampaignPrep, batchID)
	rec := &recorder{res: res}
	log := e.logger(model.StageCampaignPrep, batchID)

	var leads []*model.EnrichedLead
	var excluded int
	for _, l := range all {
		if !contactable(l) {
			continue
		}
		if reason, ok := blocked(l); ok {
			excluded++
			log.Info("chain: lead blocked from campaign", zap.String("lead_id", l.ID), zap.String("reason", reason))
			continue
		}
		leads = append(leads, l)
	}
	res.Data["blocked"] = excluded

	if opts.TemplateStage == "" {
		opts.TemplateStage = template.StageOpener
	}
	tmpl, ok := e.catalog.Find(opts.PersonaID, opts.TemplateStage)
	if !ok {
		res.Failed = len(leads)
		res.NextStage = ""
		rec.errorf("template not found for persona %s stage %s", opts.PersonaID, opts.TemplateStage)
		log.Warn("chain: no template", zap.String("persona_id", opts.PersonaID), zap.String("template_stage", string(opts.TemplateStage)))
		return res, nil
	}

	var warnings []string
	check := template.ValidateCharCount(tmpl.Message)
	if !check.Valid {
		warnings = append(warnings, fmt.Sprintf("template exceeds %d chars: %d", template.SegmentSize, check.Count))
	}

	res.Processed = len(leads)
	stage := model.StageCampaignPrep
	for _, l := range leads {
		patch := store.LeadPatch{
			LeadStage: store.Ptr(model.LeadStageCampaignReady),
			Meta: &store.MetaPatch{
				PersonaID:      &opts.PersonaID,
				TemplateID:     &tmpl.ID,
				ExecutionStage: &stage,
			},
		}
		if opts.CampaignID != "" {
			patch.Meta.CampaignID = &opts.CampaignID
		}
		if err := e.store.PatchLead(ctx, l.ID, patch); err != nil {
			rec.fail("lead %s: %v", l.ID, err)
			continue
		}
		rec.ok()
	}

	res.Success = len(res.Errors) == 0
	res.Data["persona_id"] = opts.PersonaID
	res.Data["template_id"] = tmpl.ID
	res.Data["template_message"] = tmpl.Message
	res.Data["char_count"] = check.Count
	res.Data["segments"] = check.Segments
	res.Data["warnings"] = warnings
	if opts.CampaignID != "" {
		res.Data["campaign_id"] = opts.CampaignID
	}

	log.Info("chain: campaign prep complete",
		zap.Int("assigned", res.Succeeded),
		zap.String("template_id", tmpl.ID),
		zap.Int("warnings", len(warnings)),
	)
	return res, nil
}
