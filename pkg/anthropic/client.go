// Package anthropic sends single-turn research prompts to Claude. The system
// preamble is cached for an hour because every lead in a batch shares it.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/resilience"
)

const (
	defaultMaxTokens = 512
	systemCacheTTL   = sdk.CacheControlEphemeralTTL("1h")
)

// Client asks Claude one question at a time.
type Client interface {
	Ask(ctx context.Context, p Prompt) (*Reply, error)
}

// Prompt is a single-turn request. Temperature is always zero.
type Prompt struct {
	Model     string
	System    string
	User      string
	MaxTokens int64
}

// Reply is Claude's answer and what it cost in tokens.
type Reply struct {
	Text  string
	Usage Usage
}

// Usage is the token accounting for one reply.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates a client backed by the official SDK. SDK-level retries
// are disabled; callers retry through resilience.Guard.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	return &sdkClient{client: sdk.NewClient(append(base, opts...)...)}
}

func (c *sdkClient) Ask(ctx context.Context, p Prompt) (*Reply, error) {
	if p.MaxTokens <= 0 {
		p.MaxTokens = defaultMaxTokens
	}
	params := sdk.MessageNewParams{
		Model:       sdk.Model(p.Model),
		MaxTokens:   p.MaxTokens,
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(p.User))},
		Temperature: sdk.Float(0),
	}
	if p.System != "" {
		cc := sdk.NewCacheControlEphemeralParam()
		cc.TTL = systemCacheTTL
		params.System = []sdk.TextBlockParam{{Text: p.System, CacheControl: cc}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(classify(err), "anthropic: create message")
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	return &Reply{
		Text: text.String(),
		Usage: Usage{
			InputTokens:      msg.Usage.InputTokens,
			OutputTokens:     msg.Usage.OutputTokens,
			CacheWriteTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadTokens:  msg.Usage.CacheReadInputTokens,
		},
	}, nil
}

// classify marks retryable API statuses as transient so the guard retries
// them and the breaker counts them.
func classify(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) || !resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return err
	}
	te := resilience.NewTransientError(err, apiErr.StatusCode)
	if apiErr.Response != nil {
		te.RetryAfter = resilience.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
	}
	return te
}
