// Package signalhouse sends outbound SMS through the SignalHouse API.
package signalhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/resilience"
)

const defaultBaseURL = "https://api.signalhouse.io"

// Client defines the SignalHouse operations used by deployment.
type Client interface {
	SendSMS(ctx context.Context, req SendRequest) (*MessageResult, error)
}

// SendRequest is one outbound text.
type SendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
	// CorrelationID is sent as x-correlation-id; one is generated when empty.
	CorrelationID string `json:"-"`
}

// MessageResult is the vendor acknowledgement of a send.
type MessageResult struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	To        string `json:"to"`
	From      string `json:"from"`
	Segments  int    `json:"segments,omitempty"`
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey    string
	authToken string
	baseURL   string
	http      *http.Client
}

// NewClient creates a SignalHouse client. Either credential may be empty
// but not both; callers check that before constructing.
func NewClient(apiKey, authToken string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		authToken: authToken,
		baseURL:   defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SendSMS(ctx context.Context, req SendRequest) (*MessageResult, error) {
	if req.To == "" || req.From == "" {
		return nil, eris.New("signalhouse: to and from are required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "signalhouse: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message/sendSMS", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "signalhouse: create request")
	}
	corrID := req.CorrelationID
	if corrID == "" {
		corrID = "leadq_" + uuid.NewString()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-correlation-id", corrID)
	if c.apiKey != "" {
		httpReq.Header.Set("apiKey", c.apiKey)
	}
	if c.authToken != "" {
		httpReq.Header.Set("authToken", c.authToken)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "signalhouse: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "signalhouse: read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Wrapf(resilience.StatusError("signalhouse", resp, data), "signalhouse: send sms [%s]", corrID)
	}

	var out MessageResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "signalhouse: decode response")
	}
	return &out, nil
}
