package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/pkg/google"
)

// placesConfidence is the confidence assigned when Google Places alone
// decides the business is closed.
const placesConfidence = 0.9

// placesCheck short-circuits VerifyBusiness when Google Places already lists
// the business as permanently closed. Everything else goes to next.
type placesCheck struct {
	next   Researcher
	places google.Client
}

// WithPlaces layers a Google Places closure check in front of r.
func WithPlaces(r Researcher, places google.Client) Researcher {
	if places == nil {
		return r
	}
	return &placesCheck{next: r, places: places}
}

func (p *placesCheck) VerifyBusiness(ctx context.Context, q Query) (*BusinessResult, error) {
	place, err := p.places.FindBusiness(ctx, q.Company, q.Location())
	if err != nil {
		zap.L().Warn("places lookup failed, falling back",
			zap.String("company", q.Company), zap.Error(err))
		return p.next.VerifyBusiness(ctx, q)
	}
	if place.Closed() {
		return &BusinessResult{
			IsActive:   false,
			Confidence: placesConfidence,
			Reasoning:  "Google Places lists " + place.DisplayName.Text + " as permanently closed",
		}, nil
	}
	return p.next.VerifyBusiness(ctx, q)
}

func (p *placesCheck) ResearchOwner(ctx context.Context, q Query) (*OwnerResult, error) {
	return p.next.ResearchOwner(ctx, q)
}
