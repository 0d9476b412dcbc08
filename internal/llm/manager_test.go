package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "driftchat/internal/errors"
)

// fakeClient is a canned-response Client for manager tests.
type fakeClient struct {
	provider   string
	configured bool
	response   *Response
	chunks     []StreamChunk
	err        error
}

func (f *fakeClient) Provider() string     { return f.provider }
func (f *fakeClient) DefaultModel() string { return "fake-model" }
func (f *fakeClient) IsConfigured() bool   { return f.configured }

func (f *fakeClient) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	return f.response, f.err
}

func (f *fakeClient) ChatStream(ctx context.Context, messages []Message, opts *ChatOptions, ch chan<- StreamChunk) error {
	defer close(ch)
	for _, chunk := range f.chunks {
		ch <- chunk
	}
	return f.err
}

func TestManager_AvailableProviders(t *testing.T) {
	t.Run("none configured", func(t *testing.T) {
		m := NewManager(ManagerConfig{})
		assert.Empty(t, m.AvailableProviders())
		assert.False(t, m.IsProviderAvailable(ProviderOpenAI))
	})

	t.Run("both configured, fixed order", func(t *testing.T) {
		m := NewManager(ManagerConfig{OpenAIAPIKey: "a", GeminiAPIKey: "b"})
		assert.Equal(t, []string{ProviderOpenAI, ProviderGoogle}, m.AvailableProviders())
	})

	t.Run("only gemini", func(t *testing.T) {
		m := NewManager(ManagerConfig{GeminiAPIKey: "b"})
		assert.Equal(t, []string{ProviderGoogle}, m.AvailableProviders())
		assert.False(t, m.IsProviderAvailable(ProviderOpenAI))
		assert.True(t, m.IsProviderAvailable(ProviderGoogle))
	})
}

func TestManager_ChatDefaultsToOpenAI(t *testing.T) {
	fake := &fakeClient{provider: ProviderOpenAI, configured: true, response: &Response{Content: "ok"}}
	m := NewManagerWithClients(map[string]Client{ProviderOpenAI: fake})

	resp, err := m.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestManager_ChatUnavailableProvider(t *testing.T) {
	m := NewManagerWithClients(map[string]Client{})
	_, err := m.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ProviderGoogle, nil)
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}

// TestManager_ChatStreamUnavailableProvider verifies the channel is closed
// even when no client can serve the request, so consumers ranging over it
// never hang.
func TestManager_ChatStreamUnavailableProvider(t *testing.T) {
	m := NewManagerWithClients(map[string]Client{})
	ch := make(chan StreamChunk)
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ProviderGoogle, nil, ch)
	}()

	for range ch {
		t.Fatal("no chunks expected")
	}
	assert.ErrorIs(t, <-errCh, apperrors.ErrProviderUnavailable)
}

func TestManager_ChatStreamDelivery(t *testing.T) {
	fake := &fakeClient{
		provider:   ProviderGoogle,
		configured: true,
		chunks: []StreamChunk{
			{Delta: Delta{Content: "Hel"}},
			{Delta: Delta{Content: "lo"}, FinishReason: "STOP"},
		},
	}
	m := NewManagerWithClients(map[string]Client{ProviderGoogle: fake})

	ch := make(chan StreamChunk)
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.ChatStream(context.Background(), nil, ProviderGoogle, nil, ch)
	}()

	var got string
	for chunk := range ch {
		got += chunk.Delta.Content
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, "Hello", got)
}

func TestNormalizeProvider(t *testing.T) {
	cases := map[string]string{
		"openai":  ProviderOpenAI,
		"OpenAI":  ProviderOpenAI,
		"gpt":     ProviderOpenAI,
		"gpt-4":   ProviderOpenAI,
		"google":  ProviderGoogle,
		"gemini":  ProviderGoogle,
		"GEMINI":  ProviderGoogle,
		"":        DefaultProvider,
		"claude":  DefaultProvider,
		"unknown": DefaultProvider,
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeProvider(input), "input %q", input)
	}
}

func TestModelVersionForProvider(t *testing.T) {
	assert.Equal(t, "gpt-4o-2024-08-06", ModelVersionForProvider(ProviderOpenAI))
	assert.Equal(t, "gemini-2.5-flash", ModelVersionForProvider(ProviderGoogle))
	assert.Empty(t, ModelVersionForProvider("nope"))
}

func TestProviderError_Is(t *testing.T) {
	// Provider errors are typed, not wrapped sentinels.
	err := &Error{Provider: ProviderOpenAI, StatusCode: 429, Message: "rate limited"}
	var provErr *Error
	assert.True(t, errors.As(err, &provErr))
	assert.Contains(t, err.Error(), "status 429")
}
