package cost

import "math"

// Skip-trace tiers accepted by SkipTrace and EstimateEnrichment.
const (
	TierNormal   = "normal"
	TierEnhanced = "enhanced"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
	Gemini     GeminiRate           `yaml:"gemini" mapstructure:"gemini"`
	Tracerfy   TracerfyRate         `yaml:"tracerfy" mapstructure:"tracerfy"`
	Trestle    TrestleRate          `yaml:"trestle" mapstructure:"trestle"`
	SMS        SMSRate              `yaml:"sms" mapstructure:"sms"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// PerplexityRate holds Perplexity pricing.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// GeminiRate holds Gemini pricing for short grounded prompts.
type GeminiRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// TracerfyRate holds skip-trace pricing per record and the credits each
// tier consumes.
type TracerfyRate struct {
	Normal          float64 `yaml:"normal" mapstructure:"normal"`
	Enhanced        float64 `yaml:"enhanced" mapstructure:"enhanced"`
	NormalCredits   int     `yaml:"normal_credits" mapstructure:"normal_credits"`
	EnhancedCredits int     `yaml:"enhanced_credits" mapstructure:"enhanced_credits"`
}

// TrestleRate holds real-contact validation pricing.
type TrestleRate struct {
	PerContact float64 `yaml:"per_contact" mapstructure:"per_contact"`
}

// SMSRate holds outbound SMS pricing.
type SMSRate struct {
	PerSegment float64 `yaml:"per_segment" mapstructure:"per_segment"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Rates returns the configured rates.
func (c *Calculator) Rates() Rates { return c.rates }

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, isBatch bool, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	batchMul := 1.0
	if isBatch {
		batchMul = rate.BatchDiscount
	}

	inCost := (float64(input) / 1e6) * rate.Input * batchMul
	outCost := (float64(output) / 1e6) * rate.Output * batchMul
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul * batchMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul * batchMul

	return inCost + outCost + cwCost + crCost
}

// PerplexityQuery returns the flat cost per Perplexity query.
func (c *Calculator) PerplexityQuery() float64 {
	return c.rates.Perplexity.PerQuery
}

// GeminiQuery returns the flat cost per Gemini query.
func (c *Calculator) GeminiQuery() float64 {
	return c.rates.Gemini.PerQuery
}

// SkipTrace returns the per-record cost for the given tier. Unknown tiers
// are priced as normal.
func (c *Calculator) SkipTrace(tier string) float64 {
	if tier == TierEnhanced {
		return c.rates.Tracerfy.Enhanced
	}
	return c.rates.Tracerfy.Normal
}

// SkipTraceCredits returns the vendor credits consumed per record.
func (c *Calculator) SkipTraceCredits(tier string) int {
	if tier == TierEnhanced {
		return c.rates.Tracerfy.EnhancedCredits
	}
	return c.rates.Tracerfy.NormalCredits
}

// Validation returns the cost of one real-contact lookup.
func (c *Calculator) Validation() float64 {
	return c.rates.Trestle.PerContact
}

// SMS returns the cost of sending n segments.
func (c *Calculator) SMS(segments int) float64 {
	return float64(segments) * c.rates.SMS.PerSegment
}

// Estimate is a projected enrichment spend.
type Estimate struct {
	Leads      int     `json:"leads"`
	SkipTrace  float64 `json:"skip_trace"`
	Validation float64 `json:"validation"`
	Research   float64 `json:"research"`
	Total      float64 `json:"total"`
	PerLead    float64 `json:"per_lead"`
	Credits    int     `json:"credits"`
}

// EstimateEnrichment projects the cost of enriching n leads. Research is
// priced as two queries per lead (business check and owner lookup).
func (c *Calculator) EstimateEnrichment(n int, tier string, withValidation, withResearch bool) Estimate {
	if n < 0 {
		n = 0
	}
	e := Estimate{
		Leads:     n,
		SkipTrace: float64(n) * c.SkipTrace(tier),
		Credits:   n * c.SkipTraceCredits(tier),
	}
	if withValidation {
		e.Validation = float64(n) * c.Validation()
	}
	if withResearch {
		e.Research = float64(n) * 2 * c.PerplexityQuery()
	}
	e.Total = round2(e.SkipTrace + e.Validation + e.Research)
	if n > 0 {
		e.PerLead = e.Total / float64(n)
	}
	return e
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Perplexity: PerplexityRate{PerQuery: 0.005},
		Gemini:     GeminiRate{PerQuery: 0.002},
		Tracerfy: TracerfyRate{
			Normal: 0.02, Enhanced: 0.15,
			NormalCredits: 1, EnhancedCredits: 15,
		},
		Trestle: TrestleRate{PerContact: 0.03},
		SMS:     SMSRate{PerSegment: 0.008},
	}
}
