package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "driftchat/internal/errors"
	"driftchat/internal/model"
	"driftchat/internal/repository"
)

// SessionCookieName is the cookie that carries the opaque session token.
const SessionCookieName = "session"

const sessionMaxAge = 7 * 24 * 60 * 60 // seconds

// SessionService maps opaque cookie tokens to session data. The map is
// process-lifetime only: sessions are lost on restart, which is acceptable
// because guests re-resolve to the same fingerprint-derived user and
// authenticated users re-login.
//
// Guest identity is a salted hash of client IP + user agent. This is a weak
// pseudo-identity: collisions and spoofing are possible and accepted.
type SessionService struct {
	users   repository.UserRepository
	threads repository.ThreadRepository
	secret  string
	limit   int

	mu       sync.RWMutex
	sessions map[string]model.SessionData
}

func NewSessionService(users repository.UserRepository, threads repository.ThreadRepository, secret string, guestLimit int) *SessionService {
	if guestLimit <= 0 {
		guestLimit = 10
	}
	return &SessionService{
		users:    users,
		threads:  threads,
		secret:   secret,
		limit:    guestLimit,
		sessions: make(map[string]model.SessionData),
	}
}

// GuestMessageLimit reports the configured per-guest message quota.
func (s *SessionService) GuestMessageLimit() int { return s.limit }

// CreateSession stores the data under a fresh opaque token.
func (s *SessionService) CreateSession(data model.SessionData) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = data
	s.mu.Unlock()
	return token
}

// VerifySession resolves a token; ok is false for unknown tokens.
func (s *SessionService) VerifySession(token string) (model.SessionData, bool) {
	s.mu.RLock()
	data, ok := s.sessions[token]
	s.mu.RUnlock()
	return data, ok
}

// DestroySession forgets the token. Unknown tokens are a no-op.
func (s *SessionService) DestroySession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// SessionFromRequest resolves the request's session cookie, returning nil when
// there is no cookie or the token is unknown.
func (s *SessionService) SessionFromRequest(r *http.Request) *model.SessionData {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	data, ok := s.VerifySession(cookie.Value)
	if !ok {
		return nil
	}
	return &data
}

// SetSessionCookie writes the session cookie: HTTP-only, SameSite=Lax, 7 days.
func (s *SessionService) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func (s *SessionService) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// guestFingerprint derives the stable pseudo-identity for an unauthenticated
// request.
func (s *SessionService) guestFingerprint(r *http.Request) string {
	ip := clientIP(r)
	sum := sha256.Sum256([]byte(s.secret + "|" + ip + "|" + r.UserAgent()))
	return hex.EncodeToString(sum[:])[:16]
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// GetOrCreateGuestUser resolves the request's fingerprint to a guest user,
// creating the record on first sight. Idempotent: the same IP and user agent
// always resolve to the same user.
func (s *SessionService) GetOrCreateGuestUser(ctx context.Context, r *http.Request) (*model.User, model.SessionData, error) {
	fingerprint := s.guestFingerprint(r)
	oauthID := "guest_" + fingerprint

	user, err := s.users.GetUserByOAuthID(ctx, oauthID, model.OAuthTypeGuest)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.users.CreateUser(ctx, &model.User{
			Email:     fmt.Sprintf("%s@guest.local", oauthID),
			Name:      "Guest",
			OAuthID:   oauthID,
			OAuthType: model.OAuthTypeGuest,
		})
		if err != nil && strings.Contains(err.Error(), "UNIQUE") {
			// Lost a creation race with a concurrent request for the same
			// fingerprint; the winner's record is ours.
			user, err = s.users.GetUserByOAuthID(ctx, oauthID, model.OAuthTypeGuest)
		}
	}
	if err != nil {
		return nil, model.SessionData{}, fmt.Errorf("could not resolve guest user: %w", err)
	}

	data := model.SessionData{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.Name,
		IsGuest: true,
	}
	return user, data, nil
}

// AuthenticateOAuthUser covers the session contract of the OAuth callback:
// given the verified external identity, it upserts the user record and
// returns the session data to store. The redirect dance itself lives outside
// this service.
func (s *SessionService) AuthenticateOAuthUser(ctx context.Context, oauthID, email, name, avatarURL string) (*model.User, model.SessionData, error) {
	user, err := s.users.GetUserByOAuthID(ctx, oauthID, model.OAuthTypeGoogle)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.users.CreateUser(ctx, &model.User{
			Email:     email,
			Name:      name,
			AvatarURL: avatarURL,
			OAuthID:   oauthID,
			OAuthType: model.OAuthTypeGoogle,
		})
	}
	if err != nil {
		return nil, model.SessionData{}, fmt.Errorf("could not resolve oauth user: %w", err)
	}

	data := model.SessionData{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}
	return user, data, nil
}

// Extend derives the rate-limit view of a session. Only guests carry a quota:
// their "user"-typed messages are counted across every thread they own.
// Authenticated sessions pass through with zeroed quota fields.
func (s *SessionService) Extend(ctx context.Context, data model.SessionData) (*model.ExtendedSession, error) {
	extended := &model.ExtendedSession{SessionData: data}
	if !data.IsGuest {
		return extended, nil
	}

	count, err := s.countGuestMessages(ctx, data.UserID)
	if err != nil {
		return nil, err
	}

	extended.MessageCount = count
	extended.MessageLimit = s.limit
	extended.MessagesRemaining = max(0, s.limit-count)
	extended.IsRateLimited = count >= s.limit
	return extended, nil
}

// CanSendMessage reports whether the session may submit a new user message.
// Authenticated sessions always may; guests only while under quota.
func (s *SessionService) CanSendMessage(ctx context.Context, data model.SessionData) (bool, error) {
	if !data.IsGuest {
		return true, nil
	}
	extended, err := s.Extend(ctx, data)
	if err != nil {
		return false, err
	}
	return !extended.IsRateLimited, nil
}

func (s *SessionService) countGuestMessages(ctx context.Context, userID int64) (int, error) {
	threads, err := s.threads.GetThreadsByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, thread := range threads {
		messages, err := model.DecodeMessages(thread.Messages)
		if err != nil {
			return 0, fmt.Errorf("%w: thread %s has a corrupt message log: %v", apperrors.ErrInternal, thread.UUID, err)
		}
		for _, msg := range messages {
			if msg.Type == model.MessageTypeUser {
				count++
			}
		}
	}
	return count, nil
}
