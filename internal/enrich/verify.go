package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/research"
	"github.com/sells-group/lead-qualify/internal/resilience"
)

func researchQuery(lead *model.EnrichedLead) research.Query {
	return research.Query{
		Company:   lead.Company,
		Address:   lead.Address,
		City:      lead.City,
		State:     lead.State,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
	}
}

func (p *Pipeline) verifyBusiness(ctx context.Context, lead *model.EnrichedLead) (model.StepResult, error) {
	switch {
	case !p.cfg.VerifyBusiness || p.researcher == nil:
		return model.Skipped(model.StepVerifyBusiness, "disabled"), nil
	case lead.Company == "":
		return model.Skipped(model.StepVerifyBusiness, "no company name"), nil
	}

	start := time.Now()
	advance(lead, model.PipelineStageVerify)
	if err := p.researchLimit.Wait(ctx); err != nil {
		return failed(model.StepVerifyBusiness, start, err), eris.Wrap(err, "enrich: research rate limit")
	}

	q := researchQuery(lead)
	r, err := resilience.Call(ctx, p.guard, "research", "verify_business",
		func(ctx context.Context) (*research.BusinessResult, error) {
			return p.researcher.VerifyBusiness(ctx, q)
		})
	if err != nil {
		return failed(model.StepVerifyBusiness, start, err), err
	}

	active := r.IsActive
	lead.IsBusinessActive = &active
	lead.BusinessVerification = &model.BusinessVerification{
		Confidence: r.Confidence,
		Reasoning:  r.Reasoning,
		OwnerName:  r.OwnerName,
		CheckedAt:  time.Now().UTC(),
	}
	lead.AddCost(r.Cost)

	return model.StepResult{
		Step:     model.StepVerifyBusiness,
		Status:   model.StepSuccess,
		Duration: model.Since(start),
		Cost:     r.Cost,
		Details: map[string]any{
			"active":     r.IsActive,
			"confidence": r.Confidence,
		},
	}, nil
}

func (p *Pipeline) researchOwner(ctx context.Context, lead *model.EnrichedLead) (model.StepResult, error) {
	switch {
	case !p.cfg.ResearchOwner || p.researcher == nil:
		return model.Skipped(model.StepOwnerResearch, "disabled"), nil
	case lead.Company == "":
		return model.Skipped(model.StepOwnerResearch, "no company name"), nil
	}

	start := time.Now()
	if err := p.researchLimit.Wait(ctx); err != nil {
		return failed(model.StepOwnerResearch, start, err), eris.Wrap(err, "enrich: research rate limit")
	}

	q := researchQuery(lead)
	r, err := resilience.Call(ctx, p.guard, "research", "research_owner",
		func(ctx context.Context) (*research.OwnerResult, error) {
			return p.researcher.ResearchOwner(ctx, q)
		})
	if err != nil {
		return failed(model.StepOwnerResearch, start, err), err
	}
	lead.AddCost(r.Cost)

	step := model.StepResult{
		Step:     model.StepOwnerResearch,
		Status:   model.StepSuccess,
		Duration: model.Since(start),
		Cost:     r.Cost,
		Details: map[string]any{
			"found":      r.Found,
			"confidence": r.Confidence,
		},
	}
	if !r.Found {
		return step, nil
	}

	if lead.BusinessVerification == nil {
		lead.BusinessVerification = &model.BusinessVerification{CheckedAt: time.Now().UTC()}
	}
	lead.BusinessVerification.OwnerName = r.OwnerName
	lead.BusinessVerification.OwnerTitle = r.OwnerTitle

	if r.Confidence > p.cfg.ImportedNameConfidence {
		if first, last, ok := SplitOwnerName(r.OwnerName); ok {
			if first != lead.FirstName || last != lead.LastName {
				zap.L().Debug("enrich: owner name replaces imported name",
					zap.String("lead_id", lead.ID),
					zap.Float64("confidence", r.Confidence),
				)
			}
			lead.FirstName, lead.LastName = first, last
			step.Details["name_updated"] = true
		}
	}
	return step, nil
}
