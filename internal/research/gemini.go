package research

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/lead-qualify/internal/resilience"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey   string
	Model    string
	BaseURL  string
	PerQuery float64
}

// Gemini researches with Google Search grounding through the genai SDK.
type Gemini struct {
	models   generator
	model    string
	perQuery float64
}

// generator is the slice of genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGemini creates a Gemini researcher.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("research: gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, eris.New("research: gemini model is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "research: gemini client")
	}
	return &Gemini{models: client.Models, model: cfg.Model, perQuery: cfg.PerQuery}, nil
}

var geminiBusinessSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"is_active":  {Type: genai.TypeBoolean},
		"confidence": {Type: genai.TypeNumber},
		"reasoning":  {Type: genai.TypeString},
		"owner_name": {Type: genai.TypeString},
	},
	Required: []string{"is_active", "confidence", "reasoning"},
}

var geminiOwnerSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"found":       {Type: genai.TypeBoolean},
		"owner_name":  {Type: genai.TypeString},
		"owner_title": {Type: genai.TypeString},
		"confidence":  {Type: genai.TypeNumber},
	},
	Required: []string{"found", "owner_name", "confidence"},
}

func (g *Gemini) generate(ctx context.Context, prompt string, schema *genai.Schema) (string, []string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		CandidateCount:    1,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	})
	if err != nil {
		return "", nil, classifyGenAI(err)
	}
	return resp.Text(), groundingSources(resp), nil
}

// VerifyBusiness implements Researcher.
func (g *Gemini) VerifyBusiness(ctx context.Context, q Query) (*BusinessResult, error) {
	text, sources, err := g.generate(ctx, businessPrompt(q), geminiBusinessSchema)
	if err != nil {
		return nil, eris.Wrap(err, "research: gemini verify business")
	}
	r, err := parseBusiness(text)
	if err != nil {
		return nil, err
	}
	r.Sources = sources
	r.Cost = g.perQuery
	return r, nil
}

// ResearchOwner implements Researcher.
func (g *Gemini) ResearchOwner(ctx context.Context, q Query) (*OwnerResult, error) {
	text, sources, err := g.generate(ctx, ownerPrompt(q), geminiOwnerSchema)
	if err != nil {
		return nil, eris.Wrap(err, "research: gemini owner")
	}
	r, err := parseOwner(text)
	if err != nil {
		return nil, err
	}
	r.Sources = sources
	r.Cost = g.perQuery
	return r, nil
}

func classifyGenAI(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if resilience.IsTransientHTTPStatus(apiErr.Code) {
			return resilience.NewTransientError(err, apiErr.Code)
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return resilience.NewTransientError(err, 0)
	}
	return err
}

func groundingSources(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		uri := strings.TrimSpace(chunk.Web.URI)
		if uri == "" {
			continue
		}
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}
	return out
}
