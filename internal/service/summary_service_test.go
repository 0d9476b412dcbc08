package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "driftchat/internal/errors"
	"driftchat/internal/llm"
	"driftchat/internal/model"
	"driftchat/internal/service"
)

const longTimestamp = "2026-02-01T10:00:00Z"
const shortTimestamp = "2026-02-01T10:00:05Z"

func seedSummaryThread(t *testing.T, repo *fakeRepo, userID int64) *model.Thread {
	t.Helper()
	long := strings.Repeat("The ecosystem question keeps coming back to tradeoffs. ", 6)
	require.Greater(t, len(long), 200)

	encoded, err := model.EncodeMessages([]model.Message{
		{ID: "m1", Type: model.MessageTypeUser, Content: long, Timestamp: longTimestamp},
		{ID: "m2", Type: "gemini-2.5-flash", Content: "Short answer.", Timestamp: shortTimestamp},
	})
	require.NoError(t, err)

	thread, err := repo.CreateThread(context.Background(), &model.Thread{
		UserID: userID, Title: "t", Messages: encoded, Provider: "google", ModelVersion: "gemini-2.5-flash",
	})
	require.NoError(t, err)
	return thread
}

func setupSummaryService(t *testing.T, google llm.Client) (*service.SummaryService, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	manager := llm.NewManagerWithClients(map[string]llm.Client{llm.ProviderGoogle: google})
	return service.NewSummaryService(repo, manager), repo
}

// TestSummaryService_Summarize covers the full pass: long messages get the
// model's summary merged back by (type, timestamp), short ones take their
// content verbatim, and afterwards every message carries a summary.
func TestSummaryService_Summarize(t *testing.T) {
	ctx := context.Background()

	fake := &fakeLLMClient{
		provider: llm.ProviderGoogle,
		response: &llm.Response{
			Content: `Here you go:
[{"summary": "A recurring discussion of ecosystem tradeoffs and how they shape tool choice over time in practice.", "timestamp": "` + longTimestamp + `", "type": "user"}]`,
			Usage: &llm.Usage{TotalTokens: 40},
		},
	}
	svc, repo := setupSummaryService(t, fake)
	thread := seedSummaryThread(t, repo, 1)

	updated, summarized, usage, err := svc.Summarize(ctx, thread.UUID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summarized)
	require.NotNil(t, usage)
	assert.Equal(t, 40, usage.TotalTokens)

	messages, err := model.DecodeMessages(updated.Messages)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	require.NotNil(t, messages[0].Summary)
	assert.Contains(t, *messages[0].Summary, "ecosystem tradeoffs")
	// The short message's content doubles as its summary.
	require.NotNil(t, messages[1].Summary)
	assert.Equal(t, "Short answer.", *messages[1].Summary)

	// The request carried the strict-JSON prompt with only the long message.
	call := fake.lastCall()
	require.Len(t, call.messages, 1)
	assert.Contains(t, call.messages[0].Content, "STRICTLY FOLLOW")
	assert.Contains(t, call.messages[0].Content, longTimestamp)
	assert.NotContains(t, call.messages[0].Content, "Short answer.")
	require.NotNil(t, call.opts)
	assert.Equal(t, "gemini-2.5-flash-lite-preview-06-17", call.opts.Model)
}

func TestSummaryService_SummarizeAuthorization(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLMClient{provider: llm.ProviderGoogle, response: &llm.Response{Content: "[]"}}
	svc, repo := setupSummaryService(t, fake)
	thread := seedSummaryThread(t, repo, 1)

	t.Run("stranger denied on private thread", func(t *testing.T) {
		_, _, _, err := svc.Summarize(ctx, thread.UUID, 2)
		assert.ErrorIs(t, err, apperrors.ErrPermission)
	})

	t.Run("anyone may summarize a public thread", func(t *testing.T) {
		require.NoError(t, repo.SetThreadPublic(ctx, thread.UUID))
		_, _, _, err := svc.Summarize(ctx, thread.UUID, 2)
		assert.NoError(t, err)
	})

	t.Run("unknown thread", func(t *testing.T) {
		_, _, _, err := svc.Summarize(ctx, "missing", 1)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

// TestSummaryService_NoPartialWrites: an unparseable model response fails the
// pass and leaves the stored log untouched.
func TestSummaryService_NoPartialWrites(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLMClient{
		provider: llm.ProviderGoogle,
		response: &llm.Response{Content: "I cannot produce JSON today, sorry."},
	}
	svc, repo := setupSummaryService(t, fake)
	thread := seedSummaryThread(t, repo, 1)

	_, _, _, err := svc.Summarize(ctx, thread.UUID, 1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	stored, gerr := repo.GetThreadByUUID(ctx, thread.UUID)
	require.NoError(t, gerr)
	assert.Equal(t, thread.Messages, stored.Messages)
	assert.Equal(t, thread.Version, stored.Version)
}

// TestSummaryService_AllShortMessages: with nothing over the length
// threshold no provider call is made; contents are copied into summaries.
func TestSummaryService_AllShortMessages(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLMClient{provider: llm.ProviderGoogle}
	svc, repo := setupSummaryService(t, fake)

	encoded, err := model.EncodeMessages([]model.Message{
		{ID: "m1", Type: model.MessageTypeUser, Content: "hi", Timestamp: longTimestamp},
		{ID: "m2", Type: "gemini-2.5-flash", Content: "hello", Timestamp: shortTimestamp},
	})
	require.NoError(t, err)
	thread, err := repo.CreateThread(ctx, &model.Thread{UserID: 1, Messages: encoded})
	require.NoError(t, err)

	updated, summarized, usage, err := svc.Summarize(ctx, thread.UUID, 1)
	require.NoError(t, err)
	assert.Zero(t, summarized)
	assert.Nil(t, usage)
	assert.Empty(t, fake.calls)

	messages, err := model.DecodeMessages(updated.Messages)
	require.NoError(t, err)
	for _, msg := range messages {
		require.NotNil(t, msg.Summary)
		assert.Equal(t, msg.Content, *msg.Summary)
	}
}

// TestSummaryService_AlreadySummarizedSkipped: messages that already carry a
// summary are neither re-sent to the model nor overwritten.
func TestSummaryService_AlreadySummarizedSkipped(t *testing.T) {
	ctx := context.Background()
	existing := "existing summary"
	long := strings.Repeat("x", 250)

	fake := &fakeLLMClient{provider: llm.ProviderGoogle}
	svc, repo := setupSummaryService(t, fake)

	encoded, err := model.EncodeMessages([]model.Message{
		{ID: "m1", Type: model.MessageTypeUser, Content: long, Summary: &existing, Timestamp: longTimestamp},
	})
	require.NoError(t, err)
	thread, err := repo.CreateThread(ctx, &model.Thread{UserID: 1, Messages: encoded})
	require.NoError(t, err)

	updated, summarized, _, err := svc.Summarize(ctx, thread.UUID, 1)
	require.NoError(t, err)
	assert.Zero(t, summarized)
	assert.Empty(t, fake.calls)

	messages, err := model.DecodeMessages(updated.Messages)
	require.NoError(t, err)
	require.NotNil(t, messages[0].Summary)
	assert.Equal(t, existing, *messages[0].Summary)
}

func TestSummaryService_EmptyThreadIsNoop(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLLMClient{provider: llm.ProviderGoogle}
	svc, repo := setupSummaryService(t, fake)

	thread, err := repo.CreateThread(ctx, &model.Thread{UserID: 1, Messages: "[]"})
	require.NoError(t, err)

	updated, summarized, usage, err := svc.Summarize(ctx, thread.UUID, 1)
	require.NoError(t, err)
	assert.Zero(t, summarized)
	assert.Nil(t, usage)
	assert.Equal(t, thread.Version, updated.Version)
}
