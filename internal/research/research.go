// Package research answers two questions about a lead's business with an
// LLM backend: is the business still operating, and who owns it.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Providers accepted by New.
const (
	ProviderPerplexity = "perplexity"
	ProviderGemini     = "gemini"
	ProviderAnthropic  = "anthropic"
)

// Query identifies the business being researched.
type Query struct {
	Company   string
	Address   string
	City      string
	State     string
	FirstName string
	LastName  string
}

// Location joins the known address parts.
func (q Query) Location() string {
	var parts []string
	for _, p := range []string{q.Address, q.City, q.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// KnownName is the imported contact name, if any.
func (q Query) KnownName() string {
	return strings.TrimSpace(q.FirstName + " " + q.LastName)
}

// BusinessResult is the outcome of a business-active check.
type BusinessResult struct {
	IsActive   bool     `json:"is_active"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	OwnerName  string   `json:"owner_name,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	Cost       float64  `json:"-"`
}

// OwnerResult is the outcome of an owner lookup.
type OwnerResult struct {
	Found      bool     `json:"found"`
	OwnerName  string   `json:"owner_name"`
	OwnerTitle string   `json:"owner_title"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
	Cost       float64  `json:"-"`
}

// Researcher verifies businesses and finds their owners.
type Researcher interface {
	VerifyBusiness(ctx context.Context, q Query) (*BusinessResult, error)
	ResearchOwner(ctx context.Context, q Query) (*OwnerResult, error)
}

const systemPrompt = `You research small US businesses for a sales team. Use current public web sources.
Answer only with a single JSON object matching the requested keys. Use an empty string for unknown text
and a confidence between 0 and 1.`

func businessPrompt(q Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Is the business %q currently operating?", q.Company)
	if loc := q.Location(); loc != "" {
		fmt.Fprintf(&b, " It is located at %s.", loc)
	}
	b.WriteString(`
Return JSON with keys:
- is_active (boolean)
- confidence (number 0..1)
- reasoning (string, one sentence)
- owner_name (string, the owner if a source names one)`)
	return b.String()
}

func ownerPrompt(q Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Who owns the business %q?", q.Company)
	if loc := q.Location(); loc != "" {
		fmt.Fprintf(&b, " It is located at %s.", loc)
	}
	if name := q.KnownName(); name != "" {
		fmt.Fprintf(&b, " Our records list %s as the contact; confirm or correct.", name)
	}
	b.WriteString(`
Return JSON with keys:
- found (boolean)
- owner_name (string, full name)
- owner_title (string)
- confidence (number 0..1)`)
	return b.String()
}

var businessSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"is_active":  map[string]any{"type": "boolean"},
		"confidence": map[string]any{"type": "number"},
		"reasoning":  map[string]any{"type": "string"},
		"owner_name": map[string]any{"type": "string"},
	},
	"required": []string{"is_active", "confidence", "reasoning"},
}

var ownerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"found":       map[string]any{"type": "boolean"},
		"owner_name":  map[string]any{"type": "string"},
		"owner_title": map[string]any{"type": "string"},
		"confidence":  map[string]any{"type": "number"},
	},
	"required": []string{"found", "owner_name", "confidence"},
}

// decodeJSON parses the first JSON object in an LLM reply. Models sometimes
// wrap the object in prose or a fenced block.
func decodeJSON(text string, out any) error {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return eris.Errorf("research: no JSON object in reply %q", truncate(text, 120))
	}
	return eris.Wrap(json.Unmarshal([]byte(text[start:end+1]), out), "research: decode reply")
}

func parseBusiness(text string) (*BusinessResult, error) {
	var r BusinessResult
	if err := decodeJSON(text, &r); err != nil {
		return nil, err
	}
	r.Confidence = clamp01(r.Confidence)
	r.OwnerName = strings.TrimSpace(r.OwnerName)
	return &r, nil
}

func parseOwner(text string) (*OwnerResult, error) {
	var r OwnerResult
	if err := decodeJSON(text, &r); err != nil {
		return nil, err
	}
	r.OwnerName = strings.TrimSpace(r.OwnerName)
	r.OwnerTitle = strings.TrimSpace(r.OwnerTitle)
	r.Confidence = clamp01(r.Confidence)
	if r.OwnerName == "" {
		r.Found = false
	}
	return &r, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
