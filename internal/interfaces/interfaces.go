package interfaces

import (
	"context"
	"net/http"

	"driftchat/internal/llm"
	"driftchat/internal/model"
)

// This file defines the interfaces for our core services.
// Depending on these interfaces, instead of concrete implementations, allows
// for decoupling (e.g., API layer from Service layer) and easier testing via
// mocking.

// ChatService defines the contract for thread lifecycle and message
// persistence logic.
type ChatService interface {
	CreateThread(ctx context.Context, userID int64, provider string) (*model.Thread, error)
	GetThreadForUser(ctx context.Context, threadUUID string, userID int64) (*model.Thread, bool, error)
	ListThreads(ctx context.Context, userID int64) ([]*model.Thread, error)
	PostMessage(ctx context.Context, thread *model.Thread, userContent, provider, streamedReply string, isStreamed bool) (*model.Thread, error)
	HistoryForThread(thread *model.Thread) ([]llm.Message, error)
	ShareThread(ctx context.Context, threadUUID string, userID int64) (*model.Thread, error)
	DeleteThread(ctx context.Context, threadUUID string, userID int64) error
	GenerateTitle(ctx context.Context, threadUUID, firstMessage string) (string, error)
}

// SessionService defines the contract for session resolution, guest identity
// and the guest message quota.
type SessionService interface {
	CreateSession(data model.SessionData) string
	VerifySession(token string) (model.SessionData, bool)
	DestroySession(token string)
	SessionFromRequest(r *http.Request) *model.SessionData
	SetSessionCookie(w http.ResponseWriter, token string)
	ClearSessionCookie(w http.ResponseWriter)
	GetOrCreateGuestUser(ctx context.Context, r *http.Request) (*model.User, model.SessionData, error)
	AuthenticateOAuthUser(ctx context.Context, oauthID, email, name, avatarURL string) (*model.User, model.SessionData, error)
	Extend(ctx context.Context, data model.SessionData) (*model.ExtendedSession, error)
	CanSendMessage(ctx context.Context, data model.SessionData) (bool, error)
	GuestMessageLimit() int
}

// SummaryService defines the contract for the batch summarization pass.
type SummaryService interface {
	Summarize(ctx context.Context, threadUUID string, requesterID int64) (*model.Thread, int, *llm.Usage, error)
}
