package openai

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

const testKeyEnv = "PAPERRAG_TEST_OPENAI_CHAT_KEY"

func newTestCompleter(t *testing.T, handler http.HandlerFunc) *Completer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv(testKeyEnv, "sk-test")

	c, err := NewCompleter(Config{BaseURL: srv.URL, APIKeyEnv: testKeyEnv, Model: "gpt-4o-mini", Temperature: 0.2})
	require.NoError(t, err)
	return c
}

func TestCompleteSendsPromptAsUserMessage(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "  Attention weighs tokens.\n"}
			}]
		}`))
	})

	answer, err := c.Complete(context.Background(), "what is attention?")
	require.NoError(t, err)

	assert.Equal(t, "Attention weighs tokens.", answer)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "what is attention?", got.Messages[0].Content)
	assert.Equal(t, "openai:gpt-4o-mini", c.Name())
}

func TestCompleteEmptyChoices(t *testing.T) {
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini", "choices": []}`))
	})
	_, err := c.Complete(context.Background(), "q")
	assert.ErrorContains(t, err, "empty response")
}

func TestCompleteServerError(t *testing.T) {
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad model", "type": "invalid_request_error"}}`))
	})
	_, err := c.Complete(context.Background(), "q")
	assert.ErrorContains(t, err, "openai chat")
}

func TestNewCompleterRequiresKey(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	_, err := NewCompleter(Config{APIKeyEnv: testKeyEnv})
	assert.ErrorContains(t, err, testKeyEnv)
}
