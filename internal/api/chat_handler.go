package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "driftchat/internal/errors"
	"driftchat/internal/interfaces"
	"driftchat/internal/llm"
)

// ChatHandler serves the chat completion API: blocking completions, SSE
// streaming, title generation and provider discovery.
type ChatHandler struct {
	chat     interfaces.ChatService
	sessions interfaces.SessionService
	llm      *llm.Manager
}

func NewChatHandler(chat interfaces.ChatService, sessions interfaces.SessionService, manager *llm.Manager) *ChatHandler {
	return &ChatHandler{chat: chat, sessions: sessions, llm: manager}
}

// ChatMessage is one element of a completion request's message list.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

// ChatRequest is the body of POST /api/chat in completion mode. Temperature
// and MaxTokens are pointers so an explicit zero is an override, not an unset
// field.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	Temperature *float64      `json:"temperature"`
	MaxTokens   *int          `json:"maxTokens"`
}

// ChatResponse is the non-streaming completion reply.
type ChatResponse struct {
	Success  bool       `json:"success"`
	Response string     `json:"response"`
	Model    string     `json:"model"`
	Provider string     `json:"provider"`
	Usage    *llm.Usage `json:"usage,omitempty"`
}

// UpdateTitleRequest is the body of POST /api/chat?updateTitle=true.
type UpdateTitleRequest struct {
	ThreadID string `json:"threadId" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

// TitleResponse is the reply to a title generation request.
type TitleResponse struct {
	Success bool   `json:"success"`
	Title   string `json:"title"`
}

// ProviderInfo describes one selectable provider for clients.
type ProviderInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Available bool     `json:"available"`
	Models    []string `json:"models"`
}

// ProvidersResponse is the reply to GET /api/chat.
type ProvidersResponse struct {
	Providers       []ProviderInfo `json:"providers"`
	DefaultProvider string         `json:"defaultProvider"`
}

// HandleChat godoc
// @Summary      Run a chat completion
// @Description  Runs a completion against the named provider. With ?stream=true the reply is an SSE stream of chunk/complete/error envelopes; with ?updateTitle=true the body is {threadId, message} and a thread title is generated instead.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        stream       query  bool  false  "Stream the reply as Server-Sent Events"
// @Param        updateTitle  query  bool  false  "Generate a thread title instead of a completion"
// @Param        request      body   ChatRequest  true  "Completion request"
// @Success      200  {object}  ChatResponse
// @Failure      400  {object}  ProviderErrorResponse
// @Failure      429  {object}  ErrorResponse
// @Router       /api/chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("updateTitle") == "true" {
		h.handleUpdateTitle(w, r)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", apperrors.ErrValidation))
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}

	// The provider is validated as submitted; legacy-alias normalization is
	// reserved for stored thread records, never applied here. An unknown name
	// fails loudly instead of silently falling back to the default.
	provider := req.Provider
	if provider == "" {
		provider = h.llm.DefaultProvider()
	}
	if !h.llm.IsProviderAvailable(provider) {
		// Name the alternatives so the client can re-submit instead of
		// dead-ending.
		respondWithJSON(w, http.StatusBadRequest, ProviderErrorResponse{
			Error:              fmt.Sprintf("Provider %q is not available", provider),
			AvailableProviders: h.llm.AvailableProviders(),
		})
		return
	}

	session, ok := SessionFromContext(r.Context())
	if !ok {
		respondWithError(w, apperrors.ErrUnauthorized)
		return
	}
	allowed, err := h.sessions.CanSendMessage(r.Context(), session)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if !allowed {
		respondWithError(w, apperrors.ErrRateLimited)
		return
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	var opts *llm.ChatOptions
	if req.Model != "" || req.Temperature != nil || req.MaxTokens != nil {
		opts = &llm.ChatOptions{Model: req.Model, Temperature: req.Temperature, MaxTokens: req.MaxTokens}
	}

	if r.URL.Query().Get("stream") == "true" {
		h.streamChat(w, r, messages, provider, opts)
		return
	}

	resp, err := h.llm.Chat(r.Context(), messages, provider, opts)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ChatResponse{
		Success:  true,
		Response: resp.Content,
		Model:    resp.Model,
		Provider: provider,
		Usage:    resp.Usage,
	})
}

// streamChat runs the completion over SSE. Each upstream chunk becomes a
// "chunk" envelope; the stream ends with exactly one terminal envelope,
// "complete" on success or "error" on failure.
func (h *ChatHandler) streamChat(w http.ResponseWriter, r *http.Request, messages []llm.Message, provider string, opts *llm.ChatOptions) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	streamChan := make(chan llm.StreamChunk)
	errChan := make(chan error, 1)
	go func() {
		errChan <- h.llm.ChatStream(r.Context(), messages, provider, opts, streamChan)
	}()

	for chunk := range streamChan {
		if r.Context().Err() != nil {
			slog.Debug("Client disconnected mid-stream")
			break
		}
		chunk := chunk
		if err := writeStreamEvent(w, StreamEnvelope{Type: "chunk", Data: &chunk}); err != nil {
			slog.Debug("Stream write failed, client gone", "error", err)
			break
		}
	}

	if err := <-errChan; err != nil {
		sendStreamError(w, err.Error())
		return
	}
	if err := writeStreamEvent(w, StreamEnvelope{Type: "complete", Provider: provider}); err != nil {
		slog.Debug("Failed to write completion event", "error", err)
	}
}

func (h *ChatHandler) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	var req UpdateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", apperrors.ErrValidation))
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}

	title, err := h.chat.GenerateTitle(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, TitleResponse{Success: true, Title: title})
}

// HandleProviders godoc
// @Summary      List chat providers
// @Description  Reports every known provider, whether it is configured in this process, and its selectable models.
// @Tags         chat
// @Produce      json
// @Success      200  {object}  ProvidersResponse
// @Router       /api/chat [get]
func (h *ChatHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	providers := []ProviderInfo{
		{
			ID:        llm.ProviderOpenAI,
			Name:      llm.ProviderDisplayName(llm.ProviderOpenAI),
			Available: h.llm.IsProviderAvailable(llm.ProviderOpenAI),
			Models:    llm.AvailableModels(llm.ProviderOpenAI),
		},
		{
			ID:        llm.ProviderGoogle,
			Name:      llm.ProviderDisplayName(llm.ProviderGoogle),
			Available: h.llm.IsProviderAvailable(llm.ProviderGoogle),
			Models:    llm.AvailableModels(llm.ProviderGoogle),
		},
	}
	respondWithJSON(w, http.StatusOK, ProvidersResponse{
		Providers:       providers,
		DefaultProvider: h.llm.DefaultProvider(),
	})
}
