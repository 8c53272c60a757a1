package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyEnv = "PAPERRAG_TEST_ANTHROPIC_KEY"

func newTestCompleter(t *testing.T, handler http.HandlerFunc) *Completer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv(testKeyEnv, "ak-test")

	c, err := NewCompleter(Config{BaseURL: srv.URL, APIKeyEnv: testKeyEnv, Model: "claude-3-5-haiku-latest", MaxTokens: 256})
	require.NoError(t, err)
	return c
}

func TestCompleteJoinsTextBlocks(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"content": [
				{"type": "text", "text": "Attention "},
				{"type": "text", "text": "weighs tokens."}
			],
			"usage": {"input_tokens": 10, "output_tokens": 4}
		}`))
	})

	answer, err := c.Complete(context.Background(), "what is attention?")
	require.NoError(t, err)

	assert.Equal(t, "Attention weighs tokens.", answer)
	assert.Equal(t, "claude-3-5-haiku-latest", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	require.Len(t, got.Messages[0].Content, 1)
	assert.Equal(t, "what is attention?", got.Messages[0].Content[0].Text)
	assert.Equal(t, "anthropic:claude-3-5-haiku-latest", c.Name())
}

func TestCompleteWithoutText(t *testing.T) {
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "msg_2", "type": "message", "role": "assistant", "model": "m", "content": [], "usage": {"input_tokens": 1, "output_tokens": 0}}`))
	})
	_, err := c.Complete(context.Background(), "q")
	assert.ErrorContains(t, err, "no text")
}

func TestCompleteServerError(t *testing.T) {
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "bad"}}`))
	})
	_, err := c.Complete(context.Background(), "q")
	assert.ErrorContains(t, err, "anthropic messages")
}
