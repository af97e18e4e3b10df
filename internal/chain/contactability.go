package chain

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/store"
)

// ContactType is the best channel a lead's known contact data allows.
type ContactType string

const (
	ContactMobile    ContactType = "mobile"
	ContactLandline  ContactType = "landline"
	ContactEmailOnly ContactType = "email_only"
	ContactNone      ContactType = "none"
)

// ClassifyContact ranks a lead's contact data: any mobile phone wins, then
// any landline, then email.
func ClassifyContact(l *model.EnrichedLead) ContactType {
	mobile, landline := model.CountByType(l.Phones)
	switch {
	case mobile > 0:
		return ContactMobile
	case landline > 0:
		return ContactLandline
	case len(l.Emails) > 0 || l.Email != "":
		return ContactEmailOnly
	default:
		return ContactNone
	}
}

// LineType returns the cached line type of a lead, "unknown" when nothing
// is known yet.
func LineType(l *model.EnrichedLead) string {
	if l.Meta.LineType == "" {
		return "unknown"
	}
	return strings.ToLower(l.Meta.LineType)
}

// Contactability runs the coarse CONTACTABILITY filter: a lead is
// contactable when its cached line type mentions "mobile". No vendor is
// called and leads still awaiting enrichment count as unknown. This flag
// gates CAMPAIGN_PREP only; the risk-scored verdict lives on the lead's
// Qualification.
func (e *Executor) Contactability(ctx context.Context, batchID string) (*model.ExecutionResult, error) {
	leads, err := e.batchLeads(ctx, batchID, "")
	if err != nil {
		return nil, err
	}
	res := newResult(model.StageContactability, batchID)
	rec := &recorder{res: res}
	res.Processed = len(leads)

	var mobile, landline, unknown int
	types := make(map[ContactType]int)
	stage := model.StageContactability
	for _, l := range leads {
		lt := LineType(l)
		contactable := strings.Contains(lt, "mobile")
		switch {
		case contactable:
			mobile++
		case strings.Contains(lt, "landline"):
			landline++
		default:
			unknown++
		}
		types[ClassifyContact(l)]++

		if err := e.store.PatchLead(ctx, l.ID, store.LeadPatch{
			Meta: &store.MetaPatch{Contactable: &contactable, ExecutionStage: &stage},
		}); err != nil {
			rec.errorf("lead %s: %v", l.ID, err)
		}
	}

	res.Succeeded = mobile
	res.Failed = landline + unknown
	// Filtering leads out is the point of this stage, so only persistence
	// errors make it unsuccessful.
	res.Success = len(res.Errors) == 0
	res.Data["mobile"] = mobile
	res.Data["landline"] = landline
	res.Data["unknown"] = unknown
	res.Data["contact_types"] = types
	rate := 0.0
	if len(leads) > 0 {
		rate = math.Round(float64(mobile)/float64(len(leads))*1000) / 10
	}
	res.Data["contactable_rate"] = rate

	e.logger(model.StageContactability, batchID).Info("chain: contactability complete",
		zap.Int("mobile", mobile),
		zap.Int("landline", landline),
		zap.Int("unknown", unknown),
	)
	return res, nil
}
