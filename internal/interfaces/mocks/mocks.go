// Package mocks provides testify mocks for the service interfaces, used by
// the API layer tests.
package mocks

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"driftchat/internal/llm"
	"driftchat/internal/model"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockChatService mocks interfaces.ChatService.
type MockChatService struct {
	mock.Mock
}

func NewMockChatService(t testingT) *MockChatService {
	m := &MockChatService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockChatService) CreateThread(ctx context.Context, userID int64, provider string) (*model.Thread, error) {
	args := m.Called(ctx, userID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thread), args.Error(1)
}

func (m *MockChatService) GetThreadForUser(ctx context.Context, threadUUID string, userID int64) (*model.Thread, bool, error) {
	args := m.Called(ctx, threadUUID, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Thread), args.Bool(1), args.Error(2)
}

func (m *MockChatService) ListThreads(ctx context.Context, userID int64) ([]*model.Thread, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Thread), args.Error(1)
}

func (m *MockChatService) PostMessage(ctx context.Context, thread *model.Thread, userContent, provider, streamedReply string, isStreamed bool) (*model.Thread, error) {
	args := m.Called(ctx, thread, userContent, provider, streamedReply, isStreamed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thread), args.Error(1)
}

func (m *MockChatService) HistoryForThread(thread *model.Thread) ([]llm.Message, error) {
	args := m.Called(thread)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]llm.Message), args.Error(1)
}

func (m *MockChatService) ShareThread(ctx context.Context, threadUUID string, userID int64) (*model.Thread, error) {
	args := m.Called(ctx, threadUUID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thread), args.Error(1)
}

func (m *MockChatService) DeleteThread(ctx context.Context, threadUUID string, userID int64) error {
	return m.Called(ctx, threadUUID, userID).Error(0)
}

func (m *MockChatService) GenerateTitle(ctx context.Context, threadUUID, firstMessage string) (string, error) {
	args := m.Called(ctx, threadUUID, firstMessage)
	return args.String(0), args.Error(1)
}

// MockSessionService mocks interfaces.SessionService.
type MockSessionService struct {
	mock.Mock
}

func NewMockSessionService(t testingT) *MockSessionService {
	m := &MockSessionService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionService) CreateSession(data model.SessionData) string {
	return m.Called(data).String(0)
}

func (m *MockSessionService) VerifySession(token string) (model.SessionData, bool) {
	args := m.Called(token)
	return args.Get(0).(model.SessionData), args.Bool(1)
}

func (m *MockSessionService) DestroySession(token string) {
	m.Called(token)
}

func (m *MockSessionService) SessionFromRequest(r *http.Request) *model.SessionData {
	args := m.Called(r)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*model.SessionData)
}

func (m *MockSessionService) SetSessionCookie(w http.ResponseWriter, token string) {
	m.Called(w, token)
}

func (m *MockSessionService) ClearSessionCookie(w http.ResponseWriter) {
	m.Called(w)
}

func (m *MockSessionService) GetOrCreateGuestUser(ctx context.Context, r *http.Request) (*model.User, model.SessionData, error) {
	args := m.Called(ctx, r)
	var user *model.User
	if args.Get(0) != nil {
		user = args.Get(0).(*model.User)
	}
	return user, args.Get(1).(model.SessionData), args.Error(2)
}

func (m *MockSessionService) AuthenticateOAuthUser(ctx context.Context, oauthID, email, name, avatarURL string) (*model.User, model.SessionData, error) {
	args := m.Called(ctx, oauthID, email, name, avatarURL)
	var user *model.User
	if args.Get(0) != nil {
		user = args.Get(0).(*model.User)
	}
	return user, args.Get(1).(model.SessionData), args.Error(2)
}

func (m *MockSessionService) Extend(ctx context.Context, data model.SessionData) (*model.ExtendedSession, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExtendedSession), args.Error(1)
}

func (m *MockSessionService) CanSendMessage(ctx context.Context, data model.SessionData) (bool, error) {
	args := m.Called(ctx, data)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionService) GuestMessageLimit() int {
	return m.Called().Int(0)
}

// MockSummaryService mocks interfaces.SummaryService.
type MockSummaryService struct {
	mock.Mock
}

func NewMockSummaryService(t testingT) *MockSummaryService {
	m := &MockSummaryService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSummaryService) Summarize(ctx context.Context, threadUUID string, requesterID int64) (*model.Thread, int, *llm.Usage, error) {
	args := m.Called(ctx, threadUUID, requesterID)
	var thread *model.Thread
	if args.Get(0) != nil {
		thread = args.Get(0).(*model.Thread)
	}
	var usage *llm.Usage
	if args.Get(2) != nil {
		usage = args.Get(2).(*llm.Usage)
	}
	return thread, args.Int(1), usage, args.Error(3)
}
