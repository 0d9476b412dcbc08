package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "driftchat/internal/errors"
	"driftchat/internal/llm"
	"driftchat/internal/model"
	"driftchat/internal/repository"
)

// placeholderTitle is the title a thread carries until the first exchange
// generates a real one.
const placeholderTitle = "New Conversation"

// appendRetries bounds how often an append retries after losing an
// optimistic-concurrency race before giving up with ErrConflict.
const appendRetries = 3

// ChatService owns thread lifecycle and the persistence half of the chat
// flow: creating threads, appending exchanges with the read-modify-write
// discipline, sharing, deleting, and title generation.
type ChatService struct {
	threads repository.ThreadRepository
	llm     *llm.Manager
}

func NewChatService(threads repository.ThreadRepository, manager *llm.Manager) *ChatService {
	return &ChatService{threads: threads, llm: manager}
}

// CreateThread creates an empty conversation for the user. The message log
// starts as a valid empty array and the title is a placeholder until the
// first message arrives.
func (s *ChatService) CreateThread(ctx context.Context, userID int64, provider string) (*model.Thread, error) {
	provider = llm.NormalizeProvider(provider)
	thread, err := s.threads.CreateThread(ctx, &model.Thread{
		UserID:       userID,
		Title:        placeholderTitle,
		Messages:     "[]",
		Provider:     provider,
		ModelVersion: llm.ModelVersionForProvider(provider),
	})
	if err != nil {
		return nil, fmt.Errorf("could not create thread: %w", err)
	}
	return thread, nil
}

// GetThreadForUser loads a thread and enforces the read policy: the owner
// may always read, anyone may read a public thread. The second return value
// reports ownership so callers can distinguish view-only access.
func (s *ChatService) GetThreadForUser(ctx context.Context, threadUUID string, userID int64) (*model.Thread, bool, error) {
	thread, err := s.threads.GetThreadByUUID(ctx, threadUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: thread %s", apperrors.ErrNotFound, threadUUID)
		}
		return nil, false, err
	}

	isOwner := thread.UserID == userID
	if !isOwner && !thread.Public {
		return nil, false, fmt.Errorf("%w: thread %s", apperrors.ErrPermission, threadUUID)
	}
	return thread, isOwner, nil
}

// ListThreads returns the user's threads, most recently updated first.
func (s *ChatService) ListThreads(ctx context.Context, userID int64) ([]*model.Thread, error) {
	return s.threads.GetThreadsByUserID(ctx, userID)
}

// AppendExchange appends a user message and the assistant's reply to the
// thread's log in one write. The log is read, decoded, extended, re-encoded,
// and written back guarded by the thread's version; on a conflict the whole
// cycle retries against fresh state so no concurrent append is lost.
func (s *ChatService) AppendExchange(ctx context.Context, threadUUID, userContent, assistantContent, assistantType, provider string) (*model.Thread, error) {
	for attempt := 0; attempt < appendRetries; attempt++ {
		thread, err := s.threads.GetThreadByUUID(ctx, threadUUID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: thread %s", apperrors.ErrNotFound, threadUUID)
			}
			return nil, err
		}

		messages, err := model.DecodeMessages(thread.Messages)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
		}

		now := time.Now().UTC().Format(time.RFC3339)
		messages = append(messages,
			model.Message{
				ID:        uuid.NewString(),
				Type:      model.MessageTypeUser,
				Content:   userContent,
				Timestamp: now,
			},
			model.Message{
				ID:        uuid.NewString(),
				Type:      assistantType,
				Content:   assistantContent,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		)

		encoded, err := model.EncodeMessages(messages)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
		}

		updates := repository.ThreadUpdate{Messages: &encoded}
		if provider != "" && provider != thread.Provider {
			updates.Provider = &provider
		}

		err = s.threads.UpdateThreadByUUID(ctx, threadUUID, updates, thread.Version)
		if errors.Is(err, repository.ErrVersionConflict) {
			slog.Debug("Thread append lost a version race, retrying", "thread", threadUUID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.threads.GetThreadByUUID(ctx, threadUUID)
	}
	return nil, fmt.Errorf("%w: thread %s kept changing during append", apperrors.ErrConflict, threadUUID)
}

// PostMessage handles one accepted user message on an existing thread. When
// the exchange was already streamed client-side, the pre-streamed reply is
// persisted as-is without re-calling the provider. Otherwise a blocking
// provider call produces the reply; a provider failure degrades to an inline
// apology so the user's message is never dropped once accepted.
func (s *ChatService) PostMessage(ctx context.Context, thread *model.Thread, userContent, provider, streamedReply string, isStreamed bool) (*model.Thread, error) {
	if provider == "" {
		provider = thread.Provider
	}
	provider = llm.NormalizeProvider(provider)

	var assistantContent, assistantType string
	if isStreamed && streamedReply != "" {
		assistantContent = streamedReply
		assistantType = thread.ModelVersion
		if assistantType == "" {
			assistantType = llm.ModelVersionForProvider(provider)
		}
	} else {
		assistantContent, assistantType = s.generateReply(ctx, thread, userContent, provider)
	}

	return s.AppendExchange(ctx, thread.UUID, userContent, assistantContent, assistantType, provider)
}

// generateReply produces the assistant's reply with a blocking provider call,
// falling back to an apology message when the provider fails.
func (s *ChatService) generateReply(ctx context.Context, thread *model.Thread, userContent, provider string) (content, modelType string) {
	modelType = llm.ModelVersionForProvider(provider)

	history, err := s.HistoryForThread(thread)
	if err != nil {
		slog.Error("Could not build history for provider call", "thread", thread.UUID, "error", err)
		return fmt.Sprintf("Sorry, I encountered an error with %s. Please try again later.", provider), modelType
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: userContent})

	resp, err := s.llm.Chat(ctx, history, provider, nil)
	if err != nil {
		slog.Error("Provider call failed, persisting apology reply", "thread", thread.UUID, "provider", provider, "error", err)
		return fmt.Sprintf("Sorry, I encountered an error with %s. %s", provider, err.Error()), modelType
	}
	if resp.Model != "" {
		modelType = resp.Model
	}
	return resp.Content, modelType
}

// HistoryForThread converts the thread's message log into the canonical
// message list for a provider call: "user"-typed messages keep the user role,
// everything else (model-attributed types) becomes the assistant role.
func (s *ChatService) HistoryForThread(thread *model.Thread) ([]llm.Message, error) {
	messages, err := model.DecodeMessages(thread.Messages)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		role := llm.RoleAssistant
		if msg.Type == model.MessageTypeUser {
			role = llm.RoleUser
		}
		history = append(history, llm.Message{Role: role, Content: msg.Content, Timestamp: msg.Timestamp})
	}
	return history, nil
}

// ShareThread flips the thread public and returns the share path. Only the
// owner may share; repeated calls are idempotent.
func (s *ChatService) ShareThread(ctx context.Context, threadUUID string, userID int64) (*model.Thread, error) {
	thread, err := s.threads.GetThreadByUUID(ctx, threadUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: thread %s", apperrors.ErrNotFound, threadUUID)
		}
		return nil, err
	}
	if thread.UserID != userID {
		return nil, fmt.Errorf("%w: thread %s", apperrors.ErrPermission, threadUUID)
	}

	if err := s.threads.SetThreadPublic(ctx, threadUUID); err != nil {
		return nil, err
	}
	return s.threads.GetThreadByUUID(ctx, threadUUID)
}

// DeleteThread removes the thread. Owner only.
func (s *ChatService) DeleteThread(ctx context.Context, threadUUID string, userID int64) error {
	thread, err := s.threads.GetThreadByUUID(ctx, threadUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: thread %s", apperrors.ErrNotFound, threadUUID)
		}
		return err
	}
	if thread.UserID != userID {
		return fmt.Errorf("%w: thread %s", apperrors.ErrPermission, threadUUID)
	}
	return s.threads.DeleteThreadByUUID(ctx, threadUUID)
}

// GenerateTitle asks the thread's provider for a short conversation title
// based on the first message, persists it, and returns it. The generated
// title is trimmed of wrapping quotes and clamped to 100 runes.
func (s *ChatService) GenerateTitle(ctx context.Context, threadUUID, firstMessage string) (string, error) {
	thread, err := s.threads.GetThreadByUUID(ctx, threadUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: thread %s", apperrors.ErrNotFound, threadUUID)
		}
		return "", err
	}

	messages := []llm.Message{
		{
			Role:    llm.RoleSystem,
			Content: "You are an expert at creating short, concise titles for conversations. Respond with only the title, and nothing else.",
		},
		{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Create a short title (at most 6 words) for a conversation that starts with:\n\n%s", truncate(firstMessage, 300)),
		},
	}

	resp, err := s.llm.Chat(ctx, messages, thread.Provider, nil)
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(resp.Content)
	title = strings.Trim(title, `"'`)
	title = truncate(title, 100)
	if title == "" {
		return "", fmt.Errorf("%w: generated title was empty", apperrors.ErrInternal)
	}

	if err := s.threads.UpdateThreadByUUID(ctx, threadUUID, repository.ThreadUpdate{Title: &title}, thread.Version); err != nil {
		// A version race here means an exchange landed first; re-read and
		// retry once so the title is not lost.
		if errors.Is(err, repository.ErrVersionConflict) {
			fresh, gerr := s.threads.GetThreadByUUID(ctx, threadUUID)
			if gerr != nil {
				return "", gerr
			}
			if uerr := s.threads.UpdateThreadByUUID(ctx, threadUUID, repository.ThreadUpdate{Title: &title}, fresh.Version); uerr != nil {
				return "", uerr
			}
		} else {
			return "", err
		}
	}
	return title, nil
}

// truncate shortens a string to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
