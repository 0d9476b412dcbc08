package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"driftchat/internal/llm"
	"driftchat/internal/model"
	"driftchat/internal/repository"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory implementation of both repository interfaces with
// real optimistic-concurrency semantics, so retry behavior can be exercised
// without a database.
type fakeRepo struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]*model.User
	threads map[string]*model.Thread

	// conflictNext forces the next N updates to fail with a version conflict
	// regardless of the version carried, simulating interleaved writers.
	conflictNext int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:   make(map[int64]*model.User),
		threads: make(map[string]*model.Thread),
	}
}

func (f *fakeRepo) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.OAuthID == user.OAuthID && u.OAuthType == user.OAuthType {
			return nil, fmt.Errorf("UNIQUE constraint failed: users.oauth_id")
		}
	}
	f.nextID++
	clone := *user
	clone.ID = f.nextID
	clone.CreatedAt = time.Now().UTC()
	clone.UpdatedAt = clone.CreatedAt
	f.users[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *user
	return &out, nil
}

func (f *fakeRepo) GetUserByOAuthID(ctx context.Context, oauthID, oauthType string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.OAuthID == oauthID && u.OAuthType == oauthType {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) CreateThread(ctx context.Context, thread *model.Thread) (*model.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	clone := *thread
	clone.ID = f.nextID
	if clone.UUID == "" {
		clone.UUID = uuid.NewString()
	}
	if clone.Messages == "" {
		clone.Messages = "[]"
	}
	clone.Version = 0
	clone.CreatedAt = time.Now().UTC()
	clone.UpdatedAt = clone.CreatedAt
	f.threads[clone.UUID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeRepo) GetThreadByID(ctx context.Context, id int64) (*model.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.threads {
		if t.ID == id {
			out := *t
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) GetThreadByUUID(ctx context.Context, threadUUID string) (*model.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	thread, ok := f.threads[threadUUID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *thread
	return &out, nil
}

func (f *fakeRepo) GetThreadsByUserID(ctx context.Context, userID int64) ([]*model.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Thread
	for _, t := range f.threads {
		if t.UserID == userID {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateThreadByUUID(ctx context.Context, threadUUID string, updates repository.ThreadUpdate, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	thread, ok := f.threads[threadUUID]
	if !ok {
		return repository.ErrNotFound
	}
	if f.conflictNext > 0 {
		f.conflictNext--
		thread.Version++ // another writer "won"
		return repository.ErrVersionConflict
	}
	if thread.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	if updates.Title != nil {
		thread.Title = *updates.Title
	}
	if updates.Messages != nil {
		thread.Messages = *updates.Messages
	}
	if updates.Provider != nil {
		thread.Provider = *updates.Provider
	}
	if updates.ModelVersion != nil {
		thread.ModelVersion = *updates.ModelVersion
	}
	thread.Version++
	thread.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeRepo) DeleteThreadByUUID(ctx context.Context, threadUUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.threads[threadUUID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.threads, threadUUID)
	return nil
}

func (f *fakeRepo) SetThreadPublic(ctx context.Context, threadUUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	thread, ok := f.threads[threadUUID]
	if !ok {
		return repository.ErrNotFound
	}
	thread.Public = true
	thread.UpdatedAt = time.Now().UTC()
	return nil
}

// fakeLLMClient is a canned-response provider client.
type fakeLLMClient struct {
	provider string
	response *llm.Response
	err      error

	mu    sync.Mutex
	calls []llmCall
}

type llmCall struct {
	messages []llm.Message
	opts     *llm.ChatOptions
}

func (f *fakeLLMClient) Provider() string     { return f.provider }
func (f *fakeLLMClient) DefaultModel() string { return "fake-model" }
func (f *fakeLLMClient) IsConfigured() bool   { return true }

func (f *fakeLLMClient) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, llmCall{messages: messages, opts: opts})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeLLMClient) ChatStream(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions, ch chan<- llm.StreamChunk) error {
	close(ch)
	return f.err
}

func (f *fakeLLMClient) lastCall() llmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}
