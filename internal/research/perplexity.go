package research

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/pkg/perplexity"
)

// Perplexity researches through Perplexity's search-grounded chat API.
type Perplexity struct {
	client   perplexity.Client
	perQuery float64
}

// NewPerplexity wraps a Perplexity client. perQuery is the flat cost
// charged to each result.
func NewPerplexity(client perplexity.Client, perQuery float64) *Perplexity {
	return &Perplexity{client: client, perQuery: perQuery}
}

func (p *Perplexity) ask(ctx context.Context, prompt string, schema map[string]any) (*perplexity.Answer, error) {
	return p.client.Ask(ctx, perplexity.Question{
		System: systemPrompt,
		Prompt: prompt,
		Schema: schema,
	})
}

// VerifyBusiness implements Researcher.
func (p *Perplexity) VerifyBusiness(ctx context.Context, q Query) (*BusinessResult, error) {
	resp, err := p.ask(ctx, businessPrompt(q), businessSchema)
	if err != nil {
		return nil, eris.Wrap(err, "research: perplexity verify business")
	}
	r, err := parseBusiness(resp.Content)
	if err != nil {
		return nil, err
	}
	r.Sources = resp.Citations
	r.Cost = p.perQuery
	return r, nil
}

// ResearchOwner implements Researcher.
func (p *Perplexity) ResearchOwner(ctx context.Context, q Query) (*OwnerResult, error) {
	resp, err := p.ask(ctx, ownerPrompt(q), ownerSchema)
	if err != nil {
		return nil, eris.Wrap(err, "research: perplexity owner")
	}
	r, err := parseOwner(resp.Content)
	if err != nil {
		return nil, err
	}
	r.Sources = resp.Citations
	r.Cost = p.perQuery
	return r, nil
}
