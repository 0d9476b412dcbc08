package errors

import "errors"

// This package defines the centralized set of sentinel errors for the
// application. Services return these (usually wrapped with context via
// fmt.Errorf and %w) instead of HTTP status codes; the API layer maps them to
// responses with errors.Is. Provider protocol failures are not sentinels but a
// typed *llm.Error, since they carry structured fields.

var (
	// ErrNotFound signifies that a requested resource could not be located.
	// Mapped to 404 Not Found.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that client input failed validation.
	// Mapped to 400 Bad Request.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized signifies that no valid session accompanied the request.
	// Mapped to 401 Unauthorized.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPermission signifies that the session's identity is not allowed to
	// perform the requested action (e.g. mutating a thread it does not own).
	// Mapped to 403 Forbidden.
	ErrPermission = errors.New("permission denied")

	// ErrRateLimited signifies that a guest identity has exhausted its
	// message quota. Mapped to 429 Too Many Requests.
	ErrRateLimited = errors.New("guest message limit reached")

	// ErrProviderUnavailable signifies that the requested AI provider is not
	// configured in this process. Mapped to 400 or 503 depending on endpoint.
	ErrProviderUnavailable = errors.New("provider not available")

	// ErrConflict signifies that an update lost an optimistic-concurrency
	// race and should be retried against fresh state. Mapped to 409 when it
	// survives all retries.
	ErrConflict = errors.New("resource conflict")

	// ErrInternal is the generic unexpected server error. Mapped to 500
	// without leaking details to the client.
	ErrInternal = errors.New("internal server error")
)
