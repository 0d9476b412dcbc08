package llm

import (
	"context"
	"fmt"
	"strings"

	apperrors "driftchat/internal/errors"
)

// Canonical provider identifiers. "google" is the canonical spelling for the
// Gemini client; "gemini" is accepted as an alias.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// DefaultProvider is used whenever a request does not name one.
const DefaultProvider = ProviderOpenAI

// providerOrder fixes the enumeration order of AvailableProviders so API
// responses are deterministic.
var providerOrder = []string{ProviderOpenAI, ProviderGoogle}

// Manager holds the provider clients configured at startup. A client is
// registered iff its credential is present; the set is never refreshed
// without a restart. The manager never silently substitutes a provider: a
// request naming an absent provider fails with ErrProviderUnavailable.
type Manager struct {
	clients map[string]Client
}

// ManagerConfig carries the credentials and optional base URL overrides used
// to construct provider clients.
type ManagerConfig struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiBaseURL string
}

func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{clients: make(map[string]Client)}
	if cfg.OpenAIAPIKey != "" {
		m.clients[ProviderOpenAI] = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	}
	if cfg.GeminiAPIKey != "" {
		m.clients[ProviderGoogle] = NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL)
	}
	return m
}

// NewManagerWithClients wires pre-built clients. Used by tests to inject
// fakes without credentials.
func NewManagerWithClients(clients map[string]Client) *Manager {
	return &Manager{clients: clients}
}

// AvailableProviders lists the configured provider identifiers in a fixed
// order.
func (m *Manager) AvailableProviders() []string {
	available := make([]string, 0, len(m.clients))
	for _, p := range providerOrder {
		if _, ok := m.clients[p]; ok {
			available = append(available, p)
		}
	}
	return available
}

func (m *Manager) IsProviderAvailable(provider string) bool {
	client, ok := m.clients[provider]
	return ok && client.IsConfigured()
}

func (m *Manager) DefaultProvider() string { return DefaultProvider }

func (m *Manager) client(provider string) (Client, error) {
	if provider == "" {
		provider = DefaultProvider
	}
	client, ok := m.clients[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrProviderUnavailable, provider)
	}
	if !client.IsConfigured() {
		return nil, fmt.Errorf("%w: %s is not properly configured", apperrors.ErrProviderUnavailable, provider)
	}
	return client, nil
}

// Chat sends a blocking chat request to the named provider, defaulting when
// provider is empty.
func (m *Manager) Chat(ctx context.Context, messages []Message, provider string, opts *ChatOptions) (*Response, error) {
	client, err := m.client(provider)
	if err != nil {
		return nil, err
	}
	return client.Chat(ctx, messages, opts)
}

// ChatStream sends a streaming chat request to the named provider. ch is
// closed when the upstream sequence ends, whether or not an error occurred.
func (m *Manager) ChatStream(ctx context.Context, messages []Message, provider string, opts *ChatOptions, ch chan<- StreamChunk) error {
	client, err := m.client(provider)
	if err != nil {
		close(ch)
		return err
	}
	return client.ChatStream(ctx, messages, opts, ch)
}

// NormalizeProvider maps legacy provider spellings onto the canonical
// identifier set. This is a backward-compatibility shim, not validation:
// unrecognized input falls back to the default provider.
func NormalizeProvider(provider string) string {
	switch strings.ToLower(provider) {
	case "openai", "gpt", "gpt-4":
		return ProviderOpenAI
	case "gemini", "google":
		return ProviderGoogle
	default:
		return DefaultProvider
	}
}

// ProviderDisplayName returns the human-readable name for a provider id.
func ProviderDisplayName(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OpenAI GPT-4o"
	case ProviderGoogle:
		return "Google Gemini 2.5 Flash"
	default:
		return provider
	}
}

// AvailableModels returns the model versions selectable for a provider.
func AvailableModels(provider string) []string {
	switch provider {
	case ProviderOpenAI:
		return []string{"gpt-4o-2024-08-06", "gpt-4", "gpt-4-turbo", "gpt-3.5-turbo"}
	case ProviderGoogle:
		return []string{"gemini-2.5-flash", "gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro"}
	default:
		return nil
	}
}

// ModelVersionForProvider returns the model version string recorded on new
// threads for a provider.
func ModelVersionForProvider(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-2024-08-06"
	case ProviderGoogle:
		return "gemini-2.5-flash"
	default:
		return ""
	}
}

// ModelDisplayName maps a model version string to its display name, falling
// back to the raw version.
func ModelDisplayName(modelVersion string) string {
	switch modelVersion {
	case "gpt-4o-2024-08-06":
		return "GPT-4o"
	case "gemini-2.5-flash":
		return "Gemini 2.5 Flash"
	default:
		return modelVersion
	}
}
