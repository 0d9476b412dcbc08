package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenAIClient_Chat verifies the blocking completion call against a fake
// OpenAI server: request construction, default parameters and response
// parsing.
func TestOpenAIClient_Chat(t *testing.T) {
	var capturedPath, capturedAuth string
	var capturedReq openAIRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedReq))

		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{
			"model": "gpt-4o-2024-08-06",
			"choices": [{"message": {"role": "assistant", "content": "Hello there"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
		assert.NoError(t, err)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL)
	resp, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Content)
	assert.Equal(t, "gpt-4o-2024-08-06", resp.Model)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "/chat/completions", capturedPath)
	assert.Equal(t, "Bearer test-key", capturedAuth)
	assert.Equal(t, "gpt-4o-2024-08-06", capturedReq.Model)
	assert.InDelta(t, 0.7, capturedReq.Temperature, 0.001)
	assert.Equal(t, 16384, capturedReq.MaxTokens)
	assert.False(t, capturedReq.Stream)
}

func TestOpenAIClient_ChatOptionsOverrideDefaults(t *testing.T) {
	var capturedReq openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedReq))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	temp := 0.2
	maxTokens := 100
	client := NewOpenAIClient("test-key", server.URL)
	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}},
		&ChatOptions{Model: "gpt-4-turbo", Temperature: &temp, MaxTokens: &maxTokens})

	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo", capturedReq.Model)
	assert.InDelta(t, 0.2, capturedReq.Temperature, 0.001)
	assert.Equal(t, 100, capturedReq.MaxTokens)
}

// An explicit zero temperature is an override, not an unset field.
func TestOpenAIClient_ChatZeroTemperature(t *testing.T) {
	var capturedReq openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedReq))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	temp := 0.0
	client := NewOpenAIClient("test-key", server.URL)
	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}},
		&ChatOptions{Temperature: &temp})

	require.NoError(t, err)
	assert.Zero(t, capturedReq.Temperature)
	assert.Equal(t, 16384, capturedReq.MaxTokens)
}

// TestOpenAIClient_ChatError verifies that upstream error envelopes become a
// typed *Error carrying the provider's own message and status.
func TestOpenAIClient_ChatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("bad-key", server.URL)
	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)

	require.Error(t, err)
	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ProviderOpenAI, provErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, provErr.StatusCode)
	assert.Equal(t, "invalid_request_error", provErr.Type)
	assert.Equal(t, "Incorrect API key provided", provErr.Message)
}

func TestOpenAIClient_ChatNotConfigured(t *testing.T) {
	client := NewOpenAIClient("", "")
	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.False(t, client.IsConfigured())
}

// TestOpenAIClient_ChatStream verifies SSE consumption: deltas arrive in
// order, malformed frames are skipped, the [DONE] sentinel ends the stream
// and the channel is closed.
func TestOpenAIClient_ChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		frames := []string{
			`{"id":"c1","model":"gpt-4o-2024-08-06","choices":[{"delta":{"role":"assistant","content":"Hel"}}]}`,
			`{not json`,
			`{"id":"c1","model":"gpt-4o-2024-08-06","choices":[{"delta":{"content":"lo"}}]}`,
			`{"id":"c1","model":"gpt-4o-2024-08-06","choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"total_tokens":9}}`,
		}
		for _, f := range frames {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", f)
			flusher.Flush()
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL)
	ch := make(chan StreamChunk)
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ch)
	}()

	var chunks []StreamChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	require.NoError(t, <-errCh)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hel", chunks[0].Delta.Content)
	assert.Equal(t, "lo", chunks[1].Delta.Content)
	assert.Equal(t, "stop", chunks[2].FinishReason)
	require.NotNil(t, chunks[2].Usage)
	assert.Equal(t, 9, chunks[2].Usage.TotalTokens)
}

// TestOpenAIClient_ChatStreamUpstreamError verifies that a non-200 response
// fails the stream before any chunk and still closes the channel.
func TestOpenAIClient_ChatStreamUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit reached", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL)
	ch := make(chan StreamChunk)
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ch)
	}()

	var chunks []StreamChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}

	err := <-errCh
	require.Error(t, err)
	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Empty(t, chunks)
}
