package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "driftchat/internal/errors"
	"driftchat/internal/llm"
)

// Shared response DTOs and helpers for consistent HTTP and SSE output.

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProviderErrorResponse is the error body for requests naming a provider that
// is not configured. It tells the client which providers it can retry with.
type ProviderErrorResponse struct {
	Error              string   `json:"error"`
	AvailableProviders []string `json:"availableProviders"`
}

// StatusResponse is a generic success body for mutations that return no
// resource.
type StatusResponse struct {
	Success bool `json:"success"`
}

// StreamEnvelope is one SSE frame of the chat stream. Type is "chunk",
// "complete" or "error"; the other fields are populated per type.
type StreamEnvelope struct {
	Type     string           `json:"type"`
	Data     *llm.StreamChunk `json:"data,omitempty"`
	Provider string           `json:"provider,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// respondWithError maps business-layer errors onto HTTP status codes. The
// detailed error is logged; clients get a stable, non-leaky message.
func respondWithError(w http.ResponseWriter, err error) {
	var statusCode int
	var message string

	var provErr *llm.Error
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "The requested resource was not found."
	case errors.Is(err, apperrors.ErrValidation):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		message = "Authentication required."
	case errors.Is(err, apperrors.ErrPermission):
		statusCode = http.StatusForbidden
		message = "You do not have permission to perform this action."
	case errors.Is(err, apperrors.ErrRateLimited):
		statusCode = http.StatusTooManyRequests
		message = "Message limit reached. Sign in to continue chatting."
	case errors.Is(err, apperrors.ErrProviderUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = "The requested AI provider is not available."
	case errors.Is(err, apperrors.ErrConflict):
		statusCode = http.StatusConflict
		message = "A conflict occurred with the current state of the resource."
	case errors.As(err, &provErr):
		statusCode = http.StatusBadGateway
		message = fmt.Sprintf("The %s provider returned an error.", provErr.Provider)
	default:
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal server error occurred."
	}

	slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)
	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondWithJSON marshals the payload and writes it with the given status.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

// writeStreamEvent marshals one envelope and writes it as an SSE data frame,
// flushing immediately. A write error signals a disconnected client.
func writeStreamEvent(w http.ResponseWriter, envelope StreamEnvelope) error {
	jsonData, err := json.Marshal(envelope)
	if err != nil {
		// The connection is fine; only this frame is lost.
		slog.Error("Failed to marshal stream event", "error", err)
		return nil
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(jsonData)); err != nil {
		return fmt.Errorf("failed to write data to stream: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// sendStreamError emits a terminal error envelope over an already-open SSE
// stream. Once streaming has begun the HTTP status is committed, so errors
// must travel in-band.
func sendStreamError(w http.ResponseWriter, message string) {
	slog.Warn("Sending stream error to client", "message", message)
	if err := writeStreamEvent(w, StreamEnvelope{Type: "error", Error: message}); err != nil {
		slog.Warn("Failed to write stream error, client might have disconnected", "error", err)
	}
}
