package research

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/cost"
	"github.com/sells-group/lead-qualify/pkg/anthropic"
)

// Anthropic researches with a Claude model. It has no live search, so it is
// the fallback when neither Perplexity nor Gemini is configured.
type Anthropic struct {
	client anthropic.Client
	model  string
	calc   *cost.Calculator
}

// NewAnthropic wraps a Claude client. calc prices token usage and may be nil.
func NewAnthropic(client anthropic.Client, model string, calc *cost.Calculator) *Anthropic {
	return &Anthropic{client: client, model: model, calc: calc}
}

func (a *Anthropic) ask(ctx context.Context, prompt string) (string, float64, error) {
	reply, err := a.client.Ask(ctx, anthropic.Prompt{
		Model:  a.model,
		System: systemPrompt,
		User:   prompt,
	})
	if err != nil {
		return "", 0, err
	}
	var spent float64
	if a.calc != nil {
		u := reply.Usage
		spent = a.calc.Claude(a.model, false, int(u.InputTokens), int(u.OutputTokens),
			int(u.CacheWriteTokens), int(u.CacheReadTokens))
	}
	return reply.Text, spent, nil
}

// VerifyBusiness implements Researcher.
func (a *Anthropic) VerifyBusiness(ctx context.Context, q Query) (*BusinessResult, error) {
	text, spent, err := a.ask(ctx, businessPrompt(q))
	if err != nil {
		return nil, eris.Wrap(err, "research: anthropic verify business")
	}
	r, err := parseBusiness(text)
	if err != nil {
		return nil, err
	}
	r.Cost = spent
	return r, nil
}

// ResearchOwner implements Researcher.
func (a *Anthropic) ResearchOwner(ctx context.Context, q Query) (*OwnerResult, error) {
	text, spent, err := a.ask(ctx, ownerPrompt(q))
	if err != nil {
		return nil, eris.Wrap(err, "research: anthropic owner")
	}
	r, err := parseOwner(text)
	if err != nil {
		return nil, err
	}
	r.Cost = spent
	return r, nil
}
