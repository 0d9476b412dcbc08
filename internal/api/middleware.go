package api

import (
	"context"
	"log/slog"
	"net/http"

	apperrors "driftchat/internal/errors"
	"driftchat/internal/interfaces"
	"driftchat/internal/model"
)

type contextKey string

// sessionContextKey carries the resolved SessionData through the request
// context after the session middleware has run.
const sessionContextKey contextKey = "session"

// SessionFromContext returns the session placed in the context by
// EnsureSession or RequireSession.
func SessionFromContext(ctx context.Context) (model.SessionData, bool) {
	data, ok := ctx.Value(sessionContextKey).(model.SessionData)
	return data, ok
}

// withSession returns a request whose context carries the session. Exported
// through tests via the middleware only.
func withSession(r *http.Request, data model.SessionData) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionContextKey, data))
}

// EnsureSession resolves the request's session cookie and, when there is
// none, lazily creates a guest identity from the request fingerprint and sets
// the cookie. Every request passing through carries a session afterwards.
func EnsureSession(sessions interfaces.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if data := sessions.SessionFromRequest(r); data != nil {
				next.ServeHTTP(w, withSession(r, *data))
				return
			}

			_, data, err := sessions.GetOrCreateGuestUser(r.Context(), r)
			if err != nil {
				slog.Error("Failed to create guest session", "error", err)
				respondWithError(w, err)
				return
			}
			token := sessions.CreateSession(data)
			sessions.SetSessionCookie(w, token)
			next.ServeHTTP(w, withSession(r, data))
		})
	}
}

// RequireSession rejects requests without an existing session with 401. It
// never creates a guest: endpoints behind it act on state a first-time
// visitor cannot own yet.
func RequireSession(sessions interfaces.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data := sessions.SessionFromRequest(r)
			if data == nil {
				respondWithError(w, apperrors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, withSession(r, *data))
		})
	}
}
