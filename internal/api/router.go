package api

import (
	"net/http"
	"time"

	// Blank import required by swaggo to find the API definitions.
	_ "driftchat/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"driftchat/internal/interfaces"
)

// NewRouter wires every route of the application onto a chi router.
func NewRouter(chatHandler *ChatHandler, threadHandler *ThreadHandler, sessions interfaces.SessionService) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	// Liveness probe for container orchestration.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Page and API routes with a request timeout. EnsureSession lazily creates
	// a guest identity, so a first-time visitor can use the app immediately.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(EnsureSession(sessions))

		r.Get("/", threadHandler.HandleHome)
		r.Get("/chat/{threadID}", threadHandler.HandleGetThread)
		r.Post("/chat/{threadID}", threadHandler.HandlePostMessage)
		r.Post("/chat/new", threadHandler.HandleNewThread)

		r.Get("/api/chat", chatHandler.HandleProviders)
		r.Get("/auth/logout", threadHandler.HandleLogout)
	})

	// Thread-scoped API actions require an already-established session: they
	// act on threads a brand-new visitor cannot own.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(RequireSession(sessions))

		r.Post("/api/share", threadHandler.HandleShare)
		r.Post("/api/summarize", threadHandler.HandleSummarize)
	})

	// The streaming completion endpoint must not carry a timeout; it holds
	// the connection open for the duration of the model's reply.
	r.Group(func(r chi.Router) {
		r.Use(EnsureSession(sessions))
		r.Post("/api/chat", chatHandler.HandleChat)
	})

	return r
}
