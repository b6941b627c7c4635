package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/llm"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	return fmt.Sprintf(`{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 0,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": %q}}],
  "usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
}`, content)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("test-key",
		WithClientLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRequestOptions(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(server.URL+"/"),
			option.WithMaxRetries(0),
		),
	)
	require.NoError(t, err)
	client.baseBackoff = time.Millisecond
	return client
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestGenerateCompletion_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error": {"message": "rate limited", "type": "requests"}}`)
			return
		}
		_, _ = io.WriteString(w, completionBody(`{"ok": true}`))
	})

	resp, err := client.GenerateCompletion(context.Background(), llm.CompletionRequest{
		Prompt:         "hello",
		ResponseFormat: "json",
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ok": true}`, resp.Content)
	assert.Equal(t, 5, resp.TokensUsed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateCompletion_ServerErrorIsUpstream(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": {"message": "bad request"}}`)
	})

	_, err := client.GenerateCompletion(context.Background(), llm.CompletionRequest{Prompt: "hello"})
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateCompletion_RegeneratesInvalidJSONOnce(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("not json"))
	})

	_, err := client.GenerateCompletion(context.Background(), llm.CompletionRequest{
		Prompt:         "hello",
		ResponseFormat: "json",
	})
	require.Error(t, err)

	assert.ErrorIs(t, err, llm.ErrUnparseableResponse)
	assert.Equal(t, int32(1+JSONParseMaxRetries), calls.Load())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(BaseBackoff, 0))
	assert.Equal(t, 2*time.Second, Backoff(BaseBackoff, 1))
	assert.Equal(t, 4*time.Second, Backoff(BaseBackoff, 2))
	assert.Equal(t, MaxBackoff, Backoff(BaseBackoff, 10))
}
