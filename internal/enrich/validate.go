package enrich

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/qualify"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/pkg/trestle"
)

// ValidationFromResponse maps a real-contact response onto the lead's
// validation record for phone.
func ValidationFromResponse(phone string, r *trestle.RealContactResponse) *model.ContactabilityValidation {
	v := &model.ContactabilityValidation{
		PhoneNumber:        phone,
		PhoneIsValid:       deref(r.PhoneIsValid),
		PhoneActivityScore: deref(r.PhoneActivityScore),
		PhoneNameMatch:     deref(r.PhoneNameMatch),
		PhoneContactGrade:  model.ParseGrade(deref(r.PhoneContactGrade)),
		PhoneLineType:      deref(r.PhoneLineType),
		EmailIsValid:       deref(r.EmailIsValid),
		EmailIsDeliverable: r.EmailDeliverable(),
		IsLitigatorRisk:    r.IsLitigatorRisk(),
		ResponseID:         r.ID,
		ValidatedAt:        time.Now().UTC(),
	}
	if r.EmailContactGrade != nil {
		v.EmailContactGrade = model.ParseGrade(*r.EmailContactGrade)
	}
	return v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func contactRequest(lead *model.EnrichedLead, phone string, addOns []string) trestle.RealContactRequest {
	req := trestle.RealContactRequest{
		Name:         lead.FullName(),
		Phone:        phone,
		Email:        lead.BestEmail(),
		BusinessName: lead.Company,
		AddOns:       addOns,
	}
	if lead.Address != "" || lead.City != "" || lead.State != "" || lead.Zip != "" {
		req.Address = &trestle.Address{
			StreetLine1: lead.Address,
			City:        lead.City,
			StateCode:   lead.State,
			PostalCode:  lead.Zip,
		}
	}
	return req
}

func (p *Pipeline) validate(ctx context.Context, lead *model.EnrichedLead) (model.StepResult, error) {
	if !p.cfg.Validate || p.validator == nil {
		return model.Skipped(model.StepValidate, "disabled"), nil
	}
	idx := SelectPhone(lead.Phones)
	if idx < 0 {
		return model.Skipped(model.StepValidate, "no phone candidate"), nil
	}

	start := time.Now()
	advance(lead, model.PipelineStageValidate)
	if err := p.validateLimit.Wait(ctx); err != nil {
		return failed(model.StepValidate, start, err), eris.Wrap(err, "enrich: validation rate limit")
	}

	phone := lead.Phones[idx].Number
	req := contactRequest(lead, phone, p.cfg.AddOns)
	resp, err := resilience.Call(ctx, p.guard, "trestle", "real_contact",
		func(ctx context.Context) (*trestle.RealContactResponse, error) {
			return p.validator.RealContact(ctx, req)
		})
	if err != nil {
		return failed(model.StepValidate, start, err), err
	}

	v := ValidationFromResponse(phone, resp)
	lead.Validation = v
	lead.Phones[idx].Type = model.PhoneType(trestle.MapLineType(v.PhoneLineType))
	lead.Phones[idx].Verified = v.PhoneIsValid
	if lead.Phones[idx].IsPrimary {
		lead.Meta.LineType = string(lead.Phones[idx].Type)
	}

	q := qualify.Qualify(v, p.cfg.Thresholds)
	lead.Qualification = &q

	spent := p.costs.Validation()
	lead.AddCost(spent)

	return model.StepResult{
		Step:     model.StepValidate,
		Status:   model.StepSuccess,
		Duration: model.Since(start),
		Cost:     spent,
		Details: map[string]any{
			"activity_score": v.PhoneActivityScore,
			"grade":          string(v.PhoneContactGrade),
			"litigator":      v.IsLitigatorRisk,
			"score":          q.Profile.OverallContactabilityScore,
			"tier":           string(q.Profile.RiskTier),
			"route":          string(q.Route.Route),
		},
	}, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
