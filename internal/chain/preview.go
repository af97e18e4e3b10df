package chain

import (
	"context"
	"strings"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/template"
)

const (
	warnNoTemplate = "template not found - needs reconfiguration"
	warnTooLong    = "template exceeds 160 characters - will send as multiple segments"
)

// vars builds the template variables for a lead.
func (e *Executor) vars(l *model.EnrichedLead) map[string]string {
	first := l.FirstName
	if first == "" {
		first = "there"
	}
	industry := l.Meta.Industry
	if industry == "" {
		industry = "business"
	}
	company := l.Company
	if company == "" {
		company = "your business"
	}
	return map[string]string{
		"firstName": first,
		"industry":  industry,
		"company":   company,
		"link":      e.cfg.Link,
	}
}

// recipient is the number a lead is texted at: its primary phone, else the
// imported one.
func recipient(l *model.EnrichedLead) string {
	if p := l.PrimaryPhone(); p != nil && p.Number != "" {
		return p.Number
	}
	return l.Phone
}

// Preview projects what DEPLOY would do for the batch's campaign-ready
// leads. It only reads.
func (e *Executor) Preview(ctx context.Context, batchID string) (*model.DeploymentPreview, error) {
	leads, err := e.batchLeads(ctx, batchID, model.LeadStageCampaignReady)
	if err != nil {
		return nil, err
	}

	p := &model.DeploymentPreview{
		BatchID:        batchID,
		TotalLeads:     len(leads),
		SampleMessages: []model.SampleMessage{},
		Warnings:       []string{},
	}
	for _, l := range leads {
		if contactable(l) {
			p.ContactableLeads++
		}
		if strings.Contains(LineType(l), "mobile") {
			p.MobileLeads++
		}
	}

	var (
		tmpl  template.Template
		found bool
	)
	if len(leads) > 0 {
		tmpl, found = e.catalog.Get(leads[0].Meta.TemplateID)
	}

	segments := 1
	if !found {
		p.Warnings = append(p.Warnings, warnNoTemplate)
	} else {
		check := template.ValidateCharCount(tmpl.Message)
		p.Template = model.TemplateSummary{
			ID:        tmpl.ID,
			Message:   tmpl.Message,
			CharCount: check.Count,
			Compliant: check.Valid,
		}
		if !check.Valid {
			p.Warnings = append(p.Warnings, warnTooLong)
		}
		segments = max(check.Segments, 1)

		for _, l := range leads[:min(PreviewSamples, len(leads))] {
			p.SampleMessages = append(p.SampleMessages, model.SampleMessage{
				To:        recipient(l),
				Message:   tmpl.Render(e.vars(l)),
				FirstName: l.FirstName,
			})
		}
	}

	n := len(leads)
	p.EstimatedCost = model.CostEstimate{
		SMS:        float64(n) * e.costs.SMS(segments),
		Enrichment: float64(n) * e.costs.SkipTrace(string(e.cfg.TraceType)),
	}
	p.EstimatedCost.Total = p.EstimatedCost.SMS + p.EstimatedCost.Enrichment
	p.ReadyToDeploy = len(p.Warnings) == 0 && n > 0
	return p, nil
}
