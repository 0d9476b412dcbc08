package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// OAuth identity kinds. Guests are created lazily from a request fingerprint;
// authenticated users arrive through the OAuth callback.
const (
	OAuthTypeGoogle = "google"
	OAuthTypeGuest  = "guest"
)

// User is one identity record. `oauth_id` is unique per oauth_type, so the
// same external identity always resolves to the same row.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	OAuthID   string    `json:"oauth_id"`
	OAuthType string    `json:"oauth_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Thread is one persisted conversation. Messages is the JSON-encoded,
// append-only message log; it is always a valid JSON array. Version backs
// optimistic concurrency: every successful update increments it, and a writer
// carrying a stale version is rejected.
type Thread struct {
	ID           int64     `json:"id"`
	UUID         string    `json:"uuid"`
	UserID       int64     `json:"user_id"`
	Title        string    `json:"title"`
	Messages     string    `json:"messages"`
	Provider     string    `json:"llm_provider"`
	ModelVersion string    `json:"llm_model_version"`
	Public       bool      `json:"public"`
	Version      int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MessageTypeUser marks a human-authored message. Assistant messages carry the
// model version string that produced them (e.g. "gpt-4o-2024-08-06") as their
// type, so type doubles as both role and model attribution.
const MessageTypeUser = "user"

// Message is one element of a thread's message log. Timestamp is ISO-8601;
// array order is chronological order.
type Message struct {
	ID        string  `json:"id,omitempty"`
	Type      string  `json:"type"`
	Content   string  `json:"content"`
	Summary   *string `json:"summary,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// DecodeMessages parses a thread's message log. Every persisted log decodes
// cleanly; a failure here means the record was corrupted outside the store.
func DecodeMessages(raw string) ([]Message, error) {
	if raw == "" {
		return []Message{}, nil
	}
	var messages []Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("invalid thread message log: %w", err)
	}
	return messages, nil
}

// EncodeMessages serializes a message log for persistence. A nil slice encodes
// as "[]" so the valid-JSON-array invariant holds from the very first write.
func EncodeMessages(messages []Message) (string, error) {
	if messages == nil {
		messages = []Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("could not encode message log: %w", err)
	}
	return string(raw), nil
}

// SessionData is the server-side value behind one session cookie. It lives in
// process memory only and is lost on restart.
type SessionData struct {
	UserID  int64  `json:"userId"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsGuest bool   `json:"isGuest"`
}

// ExtendedSession is a SessionData enriched at read time with the guest
// message quota. Authenticated sessions never carry a limit, so the derived
// fields stay zero and IsRateLimited stays false.
type ExtendedSession struct {
	SessionData
	MessageCount      int  `json:"messageCount"`
	MessageLimit      int  `json:"messageLimit"`
	MessagesRemaining int  `json:"messagesRemaining"`
	IsRateLimited     bool `json:"isRateLimited"`
}
