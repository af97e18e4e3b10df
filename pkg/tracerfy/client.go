// Package tracerfy is a thin client for the Tracerfy skip-trace API.
package tracerfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/resilience"
)

const defaultBaseURL = "https://tracerfy.com/v1/api"

// TraceType selects the depth of a trace.
type TraceType string

const (
	TraceNormal   TraceType = "normal"
	TraceEnhanced TraceType = "enhanced"
)

// Client defines the Tracerfy API operations.
type Client interface {
	BeginTrace(ctx context.Context, records []TraceRecord, traceType TraceType) (*TraceJobResponse, error)
	GetQueues(ctx context.Context) ([]Queue, error)
	GetQueueResults(ctx context.Context, queueID int) ([]TraceResult, error)
}

// TraceRecord is one input row of a trace job. Mailing fields default to
// the property address when the caller has nothing better.
type TraceRecord struct {
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip,omitempty"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	MailAddress string `json:"mail_address"`
	MailCity    string `json:"mail_city"`
	MailState   string `json:"mail_state"`
	MailingZip  string `json:"mailing_zip,omitempty"`
}

// traceRequest is the body for POST /trace/. Records travel as a JSON string
// and the column fields tell the vendor which keys hold what.
type traceRequest struct {
	JSONData          string    `json:"json_data"`
	AddressColumn     string    `json:"address_column"`
	CityColumn        string    `json:"city_column"`
	StateColumn       string    `json:"state_column"`
	ZipColumn         string    `json:"zip_column"`
	FirstNameColumn   string    `json:"first_name_column"`
	LastNameColumn    string    `json:"last_name_column"`
	MailAddressColumn string    `json:"mail_address_column"`
	MailCityColumn    string    `json:"mail_city_column"`
	MailStateColumn   string    `json:"mail_state_column"`
	MailingZipColumn  string    `json:"mailing_zip_column"`
	TraceType         TraceType `json:"trace_type"`
}

// TraceJobResponse is the response from POST /trace/.
type TraceJobResponse struct {
	Message        string    `json:"message"`
	QueueID        int       `json:"queue_id"`
	Status         string    `json:"status"`
	CreatedAt      string    `json:"created_at"`
	RowsUploaded   int       `json:"rows_uploaded"`
	TraceType      TraceType `json:"trace_type"`
	CreditsPerLead int       `json:"credits_per_lead"`
}

// Queue is one entry of GET /queues/.
type Queue struct {
	ID              int       `json:"id"`
	CreatedAt       string    `json:"created_at"`
	Pending         bool      `json:"pending"`
	DownloadURL     string    `json:"download_url"`
	RowsUploaded    int       `json:"rows_uploaded"`
	CreditsDeducted int       `json:"credits_deducted"`
	TraceType       TraceType `json:"trace_type"`
}

// Done reports whether results are ready to fetch.
func (q Queue) Done() bool { return !q.Pending && q.DownloadURL != "" }

// TraceResult is one row of GET /queue/:id for a normal trace.
type TraceResult struct {
	Address          string `json:"address"`
	City             string `json:"city"`
	State            string `json:"state"`
	MailAddress      string `json:"mail_address"`
	MailCity         string `json:"mail_city"`
	MailState        string `json:"mail_state"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	PrimaryPhone     string `json:"primary_phone"`
	PrimaryPhoneType string `json:"primary_phone_type"`
	Email1           string `json:"email_1"`
	Email2           string `json:"email_2"`
	Email3           string `json:"email_3"`
	Email4           string `json:"email_4"`
	Email5           string `json:"email_5"`
	Mobile1          string `json:"mobile_1"`
	Mobile2          string `json:"mobile_2"`
	Mobile3          string `json:"mobile_3"`
	Mobile4          string `json:"mobile_4"`
	Mobile5          string `json:"mobile_5"`
	Landline1        string `json:"landline_1"`
	Landline2        string `json:"landline_2"`
	Landline3        string `json:"landline_3"`
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

// httpClient implements Client using net/http.
type httpClient struct {
	apiToken string
	baseURL  string
	http     *http.Client
}

// NewClient creates a new Tracerfy client authenticated with a bearer token.
func NewClient(apiToken string, opts ...Option) Client {
	c := &httpClient{
		apiToken: apiToken,
		baseURL:  defaultBaseURL,
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

func (c *httpClient) BeginTrace(ctx context.Context, records []TraceRecord, traceType TraceType) (*TraceJobResponse, error) {
	if len(records) == 0 {
		return nil, eris.New("tracerfy: no records to trace")
	}
	if traceType == "" {
		traceType = TraceNormal
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, eris.Wrap(err, "tracerfy: marshal records")
	}

	body := traceRequest{
		JSONData:          string(data),
		AddressColumn:     "address",
		CityColumn:        "city",
		StateColumn:       "state",
		ZipColumn:         "zip",
		FirstNameColumn:   "first_name",
		LastNameColumn:    "last_name",
		MailAddressColumn: "mail_address",
		MailCityColumn:    "mail_city",
		MailStateColumn:   "mail_state",
		MailingZipColumn:  "mailing_zip",
		TraceType:         traceType,
	}

	var resp TraceJobResponse
	if err := c.post(ctx, "/trace/", body, &resp); err != nil {
		return nil, eris.Wrap(err, "tracerfy: begin trace")
	}
	return &resp, nil
}

func (c *httpClient) GetQueues(ctx context.Context) ([]Queue, error) {
	var resp []Queue
	if err := c.get(ctx, "/queues/", &resp); err != nil {
		return nil, eris.Wrap(err, "tracerfy: list queues")
	}
	return resp, nil
}

func (c *httpClient) GetQueueResults(ctx context.Context, queueID int) ([]TraceResult, error) {
	var resp []TraceResult
	if err := c.get(ctx, fmt.Sprintf("/queue/%d", queueID), &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("tracerfy: queue results %d", queueID))
	}
	return resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resilience.StatusError("tracerfy", resp, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
