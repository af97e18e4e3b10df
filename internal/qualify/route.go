package qualify

import (
	"fmt"
	"time"

	"github.com/sells-group/lead-qualify/internal/model"
)

// Route maps a profile to an outreach decision. Every tier, including
// unknown ones, has a defined route.
func Route(p model.ContactabilityProfile) model.RouteDecision {
	score := p.OverallContactabilityScore

	switch p.RiskTier {
	case model.RiskBlock:
		return model.RouteDecision{
			Route:       model.RouteDoNotContact,
			Priority:    0,
			Description: "Phone is flagged as a TCPA litigator risk; do not contact on any channel.",
		}
	case model.RiskSafe:
		if score >= 80 {
			return model.RouteDecision{
				Route:       model.RouteFullOutreach,
				Priority:    1,
				Description: fmt.Sprintf("High-confidence reachable contact (score %d); SMS, call and email.", score),
			}
		}
		return model.RouteDecision{
			Route:       model.RouteFullOutreach,
			Priority:    2,
			Description: fmt.Sprintf("Reachable contact (score %d); SMS, call and email.", score),
		}
	case model.RiskElevated:
		if score >= 50 {
			return model.RouteDecision{
				Route:       model.RouteEmailOnly,
				Priority:    3,
				Description: fmt.Sprintf("Phone below SMS threshold (score %d); reach out by email.", score),
			}
		}
		return model.RouteDecision{
			Route:       model.RouteManualReview,
			Priority:    3,
			Description: fmt.Sprintf("Weak contact signals (score %d); review before outreach.", score),
		}
	case model.RiskHigh:
		return model.RouteDecision{
			Route:       model.RouteManualReview,
			Priority:    4,
			Description: fmt.Sprintf("Phone invalid or inactive (score %d); needs manual review.", score),
		}
	default:
		return model.RouteDecision{
			Route:       model.RouteManualReview,
			Priority:    4,
			Description: fmt.Sprintf("Unrecognized risk tier %q; needs manual review.", p.RiskTier),
		}
	}
}

// Qualify derives the full qualification for a validation.
func Qualify(v *model.ContactabilityValidation, th Thresholds) model.Qualification {
	p := Profile(v, th)
	return model.Qualification{
		Profile:       p,
		Route:         Route(p),
		IsContactable: IsContactable(v, th),
		QualifiedAt:   time.Now().UTC(),
	}
}
