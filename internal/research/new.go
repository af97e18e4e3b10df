package research

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/cost"
	"github.com/sells-group/lead-qualify/pkg/anthropic"
	"github.com/sells-group/lead-qualify/pkg/google"
	"github.com/sells-group/lead-qualify/pkg/perplexity"
)

// ErrNoCredentials is returned when the chosen provider has no API key.
var ErrNoCredentials = eris.New("research: provider credentials not configured")

// Config selects and configures a research backend.
type Config struct {
	Provider        string
	PerplexityKey   string
	PerplexityModel string
	GeminiKey       string
	GeminiModel     string
	AnthropicKey    string
	AnthropicModel  string
	GooglePlacesKey string
}

// New builds the configured Researcher. A Google Places key adds the
// closure pre-check regardless of provider.
func New(ctx context.Context, cfg Config, calc *cost.Calculator) (Researcher, error) {
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}
	var r Researcher
	switch cfg.Provider {
	case ProviderPerplexity, "":
		if cfg.PerplexityKey == "" {
			return nil, eris.Wrap(ErrNoCredentials, ProviderPerplexity)
		}
		var opts []perplexity.Option
		if cfg.PerplexityModel != "" {
			opts = append(opts, perplexity.WithModel(cfg.PerplexityModel))
		}
		r = NewPerplexity(perplexity.NewClient(cfg.PerplexityKey, opts...), calc.PerplexityQuery())
	case ProviderGemini:
		if cfg.GeminiKey == "" {
			return nil, eris.Wrap(ErrNoCredentials, ProviderGemini)
		}
		g, err := NewGemini(ctx, GeminiConfig{APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, PerQuery: calc.GeminiQuery()})
		if err != nil {
			return nil, err
		}
		r = g
	case ProviderAnthropic:
		if cfg.AnthropicKey == "" {
			return nil, eris.Wrap(ErrNoCredentials, ProviderAnthropic)
		}
		r = NewAnthropic(anthropic.NewClient(cfg.AnthropicKey), cfg.AnthropicModel, calc)
	default:
		return nil, eris.Errorf("research: unknown provider %q", cfg.Provider)
	}
	if cfg.GooglePlacesKey != "" {
		r = WithPlaces(r, google.NewClient(cfg.GooglePlacesKey))
	}
	return r, nil
}
