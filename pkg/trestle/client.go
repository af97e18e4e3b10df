// Package trestle is a thin client for the Trestle Real Contact API.
package trestle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/resilience"
)

const defaultBaseURL = "https://api.trestleiq.com"

// Add-ons accepted by the real_contact endpoint.
const (
	AddOnLitigatorChecks  = "litigator_checks"
	AddOnEmailDeliverable = "email_checks_deliverability"
	AddOnEmailAge         = "email_checks_age"
)

// DefaultAddOns are requested when the caller names none.
var DefaultAddOns = []string{AddOnLitigatorChecks, AddOnEmailDeliverable}

// Client defines the Trestle API operations.
type Client interface {
	RealContact(ctx context.Context, req RealContactRequest) (*RealContactResponse, error)
	SendFeedback(ctx context.Context, req FeedbackRequest) error
}

// Address is the optional address part of a real-contact lookup.
type Address struct {
	StreetLine1 string
	City        string
	StateCode   string
	PostalCode  string
}

// RealContactRequest describes one contact to validate.
type RealContactRequest struct {
	Name         string
	Phone        string
	Email        string
	BusinessName string
	Address      *Address
	AddOns       []string
}

// RealContactResponse is the decoded dot-notation response. Nullable vendor
// fields stay pointers so absence is distinguishable from false or zero.
type RealContactResponse struct {
	ID                 string   `json:"id"`
	PhoneIsValid       *bool    `json:"phone.is_valid"`
	PhoneActivityScore *int     `json:"phone.activity_score"`
	PhoneLineType      *string  `json:"phone.line_type"`
	PhoneNameMatch     *bool    `json:"phone.name_match"`
	PhoneContactGrade  *string  `json:"phone.contact_grade"`
	EmailIsValid       *bool    `json:"email.is_valid"`
	EmailNameMatch     *bool    `json:"email.name_match"`
	EmailContactGrade  *string  `json:"email.contact_grade"`
	AddOns             *AddOns  `json:"add_ons"`
	Warnings           []string `json:"warnings"`
	Error              *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// AddOns holds add-on results.
type AddOns struct {
	LitigatorChecks *struct {
		PhoneIsLitigatorRisk *bool `json:"phone.is_litigator_risk"`
	} `json:"litigator_checks"`
	EmailChecks *struct {
		EmailIsDeliverable *bool `json:"email.is_deliverable"`
		EmailAgeScore      *int  `json:"email.age_score"`
	} `json:"email_checks"`
}

// IsLitigatorRisk reports the litigator flag, false when the add-on is absent.
func (r *RealContactResponse) IsLitigatorRisk() bool {
	return r.AddOns != nil && r.AddOns.LitigatorChecks != nil &&
		r.AddOns.LitigatorChecks.PhoneIsLitigatorRisk != nil && *r.AddOns.LitigatorChecks.PhoneIsLitigatorRisk
}

// EmailDeliverable returns the deliverability flag or nil when unknown.
func (r *RealContactResponse) EmailDeliverable() *bool {
	if r.AddOns == nil || r.AddOns.EmailChecks == nil {
		return nil
	}
	return r.AddOns.EmailChecks.EmailIsDeliverable
}

// PhoneStatus is the observed outcome of contacting a phone.
type PhoneStatus string

const (
	PhoneConnected    PhoneStatus = "Connected"
	PhoneDisconnected PhoneStatus = "Disconnected"
)

// FeedbackRequest reports a real-world outcome for an earlier lookup.
type FeedbackRequest struct {
	ResponseID             string      `json:"response_id"`
	Phone                  string      `json:"phone"`
	PhoneStatus            PhoneStatus `json:"phone_status"`
	PhoneRightPartyContact bool        `json:"phone_right_party_contact"`
}

// MapLineType maps a vendor line type to Mobile, Landline or Unknown.
// VoIP lines count as landlines for SMS purposes.
func MapLineType(lineType string) string {
	switch lineType {
	case "Mobile":
		return "Mobile"
	case "Landline", "FixedVOIP", "NonFixedVOIP":
		return "Landline"
	default:
		return "Unknown"
	}
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
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Trestle client authenticated with an x-api-key header.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) RealContact(ctx context.Context, req RealContactRequest) (*RealContactResponse, error) {
	q := url.Values{}
	q.Set("name", req.Name)
	q.Set("phone", digits(req.Phone))
	setIf(q, "email", req.Email)
	setIf(q, "business.name", req.BusinessName)
	if a := req.Address; a != nil {
		setIf(q, "address.street_line_1", a.StreetLine1)
		setIf(q, "address.city", a.City)
		setIf(q, "address.state_code", a.StateCode)
		setIf(q, "address.postal_code", a.PostalCode)
	}
	addOns := req.AddOns
	if addOns == nil {
		addOns = DefaultAddOns
	}
	if len(addOns) > 0 {
		q.Set("add_ons", strings.Join(addOns, ","))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/1.1/real_contact?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "trestle: create request")
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	var out RealContactResponse
	if err := c.do(httpReq, &out); err != nil {
		return nil, eris.Wrap(err, "trestle: real contact")
	}
	if out.Error != nil && out.Error.Message != "" {
		return nil, eris.Errorf("trestle: real contact: %s: %s", out.Error.Name, out.Error.Message)
	}
	return &out, nil
}

func (c *httpClient) SendFeedback(ctx context.Context, req FeedbackRequest) error {
	req.Phone = digits(req.Phone)
	body, err := json.Marshal(req)
	if err != nil {
		return eris.Wrap(err, "trestle: marshal feedback")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/1.0/phone_feedback", bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "trestle: create request")
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	return eris.Wrap(c.do(httpReq, nil), "trestle: phone feedback")
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
		return resilience.StatusError("trestle", resp, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return eris.Wrap(json.Unmarshal(data, out), "decode response")
}

func setIf(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
