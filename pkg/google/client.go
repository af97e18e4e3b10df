// Package google looks up small businesses in Google Places so leads for
// shuttered companies can be dropped before any paid research runs.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/resilience"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"
	fieldMask      = "places.displayName,places.formattedAddress,places.businessStatus,places.nationalPhoneNumber"
	maxCandidates  = 5
)

// Client finds a lead's business in Google Places.
type Client interface {
	// FindBusiness returns the listing whose name contains company, or nil
	// when none of the top results match.
	FindBusiness(ctx context.Context, company, location string) (*Place, error)
}

// Business statuses reported by Places.
const (
	StatusOperational       = "OPERATIONAL"
	StatusClosedTemporarily = "CLOSED_TEMPORARILY"
	StatusClosedPermanently = "CLOSED_PERMANENTLY"
)

// Place is one Places listing.
type Place struct {
	DisplayName         DisplayName `json:"displayName"`
	FormattedAddress    string      `json:"formattedAddress,omitempty"`
	BusinessStatus      string      `json:"businessStatus,omitempty"`
	NationalPhoneNumber string      `json:"nationalPhoneNumber,omitempty"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// Closed reports whether Places lists the business as permanently closed.
func (p *Place) Closed() bool {
	return p != nil && p.BusinessStatus == StatusClosedPermanently
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Places client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	TextQuery string `json:"textQuery"`
	PageSize  int    `json:"pageSize"`
}

type searchResponse struct {
	Places []Place `json:"places"`
}

func (c *httpClient) FindBusiness(ctx context.Context, company, location string) (*Place, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, nil
	}
	body, err := json.Marshal(searchRequest{
		TextQuery: strings.TrimSpace(company + " " + location),
		PageSize:  maxCandidates,
	})
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("google", resp, raw)
	}

	var out searchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}
	return match(out.Places, company), nil
}

// match returns the first place whose display name contains company,
// ignoring case.
func match(places []Place, company string) *Place {
	want := strings.ToLower(company)
	for i := range places {
		if strings.Contains(strings.ToLower(places[i].DisplayName.Text), want) {
			return &places[i]
		}
	}
	return nil
}
