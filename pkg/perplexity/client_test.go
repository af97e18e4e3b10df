package perplexity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualify/internal/resilience"
)

var activeSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"is_active": map[string]any{"type": "boolean"}},
}

func TestAsk_SendsStructuredRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer pplx-key", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sonar-pro", req.Model)
		assert.InDelta(t, temperature, req.Temperature, 1e-9)
		assert.Equal(t, "month", req.SearchRecencyFilter)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "Is Lee Dental in Austin, TX still open?", req.Messages[1].Content)
		}
		if assert.NotNil(t, req.ResponseFormat) {
			assert.Equal(t, "json_schema", req.ResponseFormat.Type)
			assert.Equal(t, "object", req.ResponseFormat.JSONSchema.Schema["type"])
		}

		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{\"is_active\":true}"}}],
			"citations": ["https://yelp.com/biz/lee-dental-austin"],
			"usage": {"prompt_tokens": 120, "completion_tokens": 9}
		}`))
	}))
	defer srv.Close()

	c := NewClient("pplx-key", WithBaseURL(srv.URL), WithModel("sonar-pro"))
	got, err := c.Ask(context.Background(), Question{
		System:  "You verify small businesses.",
		Prompt:  "Is Lee Dental in Austin, TX still open?",
		Schema:  activeSchema,
		Recency: "month",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"is_active":true}`, got.Content)
	assert.Equal(t, []string{"https://yelp.com/biz/lee-dental-austin"}, got.Citations)
	assert.Equal(t, 120, got.PromptTokens)
	assert.Equal(t, 9, got.CompletionTokens)
}

func TestAsk_PlainPromptOmitsSystemAndFormat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.NotContains(t, raw, "response_format")
		assert.Len(t, raw["messages"], 1)
		assert.Equal(t, defaultModel, raw["model"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Ann Lee"}}]}`))
	}))
	defer srv.Close()

	got, err := NewClient("k", WithBaseURL(srv.URL)).Ask(context.Background(), Question{Prompt: "Who owns Lee Dental?"})
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", got.Content)
}

func TestAsk_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   string
		transient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, wantErr: "429", transient: true},
		{name: "bad key", status: http.StatusUnauthorized, body: `{"error":"invalid key"}`, wantErr: "401"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: "no choices"},
		{name: "garbage", status: http.StatusOK, body: `not json`, wantErr: "unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewClient("k", WithBaseURL(srv.URL)).Ask(context.Background(), Question{Prompt: "q"})
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
		})
	}
}

func TestAsk_EmptyPrompt(t *testing.T) {
	t.Parallel()

	_, err := NewClient("k").Ask(context.Background(), Question{})
	assert.ErrorContains(t, err, "empty prompt")
}
