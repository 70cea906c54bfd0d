package claude_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseguard/internal/config"
	"caseguard/internal/llm"
	"caseguard/internal/llm/claude"
	"caseguard/internal/port"
)

func newTestGenerator(serverURL string) *claude.Generator {
	cfg := &config.ProviderConfig{
		Provider:     "claude",
		APIKey:       "test-api-key",
		DefaultModel: "claude-sonnet-4-20250514",
		TimeoutSecs:  30,
	}
	return claude.NewGeneratorWithEndpoint(cfg, serverURL)
}

var request = port.GenerateRequest{
	System:     "You detect PII.",
	Prompt:     "Jane Doe",
	SchemaName: "pii_entities",
	Schema:     json.RawMessage(`{"type":"object","properties":{"entities":{"type":"array"}},"required":["entities"]}`),
	MaxTokens:  2048,
}

func TestGenerate_ForcedToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-sonnet-4-20250514", body["model"])
		assert.Equal(t, float64(2048), body["max_tokens"])
		assert.Equal(t, "You detect PII.", body["system"])

		tools := body["tools"].([]interface{})
		require.Len(t, tools, 1)
		tool := tools[0].(map[string]interface{})
		assert.Equal(t, "pii_entities", tool["name"])
		assert.Equal(t, "object", tool["input_schema"].(map[string]interface{})["type"])

		choice := body["tool_choice"].(map[string]interface{})
		assert.Equal(t, "tool", choice["type"])
		assert.Equal(t, "pii_entities", choice["name"])

		_, _ = w.Write([]byte(`{
			"model": "claude-sonnet-4-20250514",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Recording entities."},
				{"type": "tool_use", "name": "pii_entities", "input": {"entities": [{"type":"NAME","value":"Jane Doe","start":0,"end":8,"confidence":0.9}]}}
			]
		}`))
	}))
	defer server.Close()

	resp, err := newTestGenerator(server.URL).Generate(context.Background(), request)

	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", resp.Model)
	assert.JSONEq(t, `{"entities": [{"type":"NAME","value":"Jane Doe","start":0,"end":8,"confidence":0.9}]}`, string(resp.Content))
}

func TestGenerate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), request)

	var rlErr *llm.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "claude", rlErr.Provider)
	assert.Equal(t, float64(17), rlErr.RetryAfter.Seconds())
}

func TestGenerate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), request)

	assert.ErrorContains(t, err, "status 500")
}

func TestGenerate_MaxTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stop_reason":"max_tokens","content":[{"type":"tool_use","name":"pii_entities","input":{}}]}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), request)

	assert.ErrorContains(t, err, "truncated")
}

func TestGenerate_NoToolUseBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stop_reason":"end_turn","content":[{"type":"text","text":"no"}]}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), request)

	assert.ErrorContains(t, err, "no pii_entities tool_use block")
}
