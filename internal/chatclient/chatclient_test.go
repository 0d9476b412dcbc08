package chatclient_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftchat/internal/api"
	"driftchat/internal/chatclient"
	"driftchat/internal/llm"
	"driftchat/internal/model"
)

// fakeChatServer stands in for the server side of the streaming flow: the
// thread page, the SSE endpoint, the reconciliation POST and the title call.
type fakeChatServer struct {
	t *testing.T

	mu          sync.Mutex
	messages    []model.Message
	frames      []string
	rejectCode  int
	persistHits int
	titleHits   int
	lastPersist map[string]string
	lastTitle   api.UpdateTitleRequest
}

func sseFrame(t *testing.T, envelope api.StreamEnvelope) string {
	t.Helper()
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	return "data: " + string(data) + "\n\n"
}

func chunkFrame(t *testing.T, delta string) string {
	return sseFrame(t, api.StreamEnvelope{
		Type: "chunk",
		Data: &llm.StreamChunk{ID: "c1", Model: "gpt-4o-2024-08-06", Delta: llm.Delta{Content: delta}},
	})
}

func (f *fakeChatServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /chat/{threadID}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(api.ThreadPageResponse{
			Thread:   &model.Thread{UUID: r.PathValue("threadID"), Provider: "openai"},
			Messages: f.messages,
			IsOwner:  true,
		})
	})

	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("updateTitle") == "true" {
			f.mu.Lock()
			f.titleHits++
			json.NewDecoder(r.Body).Decode(&f.lastTitle)
			f.mu.Unlock()
			json.NewEncoder(w).Encode(api.TitleResponse{Success: true, Title: "Named Thread"})
			return
		}

		if f.rejectCode != 0 {
			http.Error(w, "limit reached", f.rejectCode)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range f.frames {
			fmt.Fprint(w, frame)
		}
	})

	mux.HandleFunc("POST /chat/{threadID}", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		f.mu.Lock()
		f.persistHits++
		f.lastPersist = map[string]string{
			"message":     r.FormValue("message"),
			"ai_response": r.FormValue("ai_response"),
			"is_streamed": r.FormValue("is_streamed"),
			"provider":    r.FormValue("provider"),
		}
		// The stored log after the append: prior messages plus the typed pair.
		f.messages = append(f.messages,
			model.Message{ID: "u-new", Type: model.MessageTypeUser, Content: r.FormValue("message"), Timestamp: "2026-01-01T00:01:00Z"},
			model.Message{ID: "a-new", Type: "gpt-4o-2024-08-06", Content: r.FormValue("ai_response"), Timestamp: "2026-01-01T00:01:05Z"},
		)
		messages := f.messages
		f.mu.Unlock()
		json.NewEncoder(w).Encode(api.ThreadPageResponse{
			Thread:   &model.Thread{UUID: r.PathValue("threadID"), Provider: "openai"},
			Messages: messages,
			IsOwner:  true,
		})
	})

	return mux
}

func setupSession(t *testing.T, fake *fakeChatServer) *chatclient.ThreadSession {
	t.Helper()
	fake.t = t
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	client := chatclient.NewWithHTTPClient(server.URL, server.Client())
	session, err := client.LoadThread(context.Background(), "thread-1")
	require.NoError(t, err)
	require.Equal(t, chatclient.StateComposing, session.State())
	return session
}

func existingLog() []model.Message {
	return []model.Message{
		{ID: "m1", Type: model.MessageTypeUser, Content: "earlier q", Timestamp: "2026-01-01T00:00:00Z"},
		{ID: "m2", Type: "gpt-4o-2024-08-06", Content: "earlier a", Timestamp: "2026-01-01T00:00:05Z"},
	}
}

// TestSend_StreamsAndReconciles is the happy path: deltas accumulate into the
// reply, the finished pair is persisted exactly once with is_streamed=true,
// and the local view is replaced by the stored log.
func TestSend_StreamsAndReconciles(t *testing.T) {
	fake := &fakeChatServer{
		messages: existingLog(),
		frames: []string{
			chunkFrame(t, "Hel"),
			"data: {not json}\n\n",
			chunkFrame(t, "lo"),
			sseFrame(t, api.StreamEnvelope{Type: "complete", Provider: "openai"}),
		},
	}
	session := setupSession(t, fake)

	reply, err := session.Send(context.Background(), "new question")
	require.NoError(t, err)
	assert.Equal(t, "Hello", reply)
	assert.Equal(t, chatclient.StateReconciled, session.State())

	assert.Equal(t, 1, fake.persistHits)
	assert.Equal(t, "new question", fake.lastPersist["message"])
	assert.Equal(t, "Hello", fake.lastPersist["ai_response"])
	assert.Equal(t, "true", fake.lastPersist["is_streamed"])
	assert.Equal(t, "openai", fake.lastPersist["provider"])

	// The local view is the server's log, not the optimistic one.
	messages := session.Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "u-new", messages[2].ID)
	assert.Equal(t, "Hello", messages[3].Content)

	// The thread already had messages; no title call.
	assert.Zero(t, fake.titleHits)
}

// TestSend_TitlesFreshThread: the first exchange on an empty thread triggers
// exactly one title call after reconciliation.
func TestSend_TitlesFreshThread(t *testing.T) {
	fake := &fakeChatServer{
		frames: []string{
			chunkFrame(t, "Hi!"),
			sseFrame(t, api.StreamEnvelope{Type: "complete", Provider: "openai"}),
		},
	}
	session := setupSession(t, fake)

	_, err := session.Send(context.Background(), "first ever message")
	require.NoError(t, err)

	assert.Equal(t, 1, fake.titleHits)
	assert.Equal(t, "thread-1", fake.lastTitle.ThreadID)
	assert.Equal(t, "first ever message", fake.lastTitle.Message)
}

// TestSend_RollsBackOnErrorEnvelope: a terminal error envelope fails the
// submission, removes the optimistic message and persists nothing.
func TestSend_RollsBackOnErrorEnvelope(t *testing.T) {
	fake := &fakeChatServer{
		messages: existingLog(),
		frames: []string{
			chunkFrame(t, "par"),
			sseFrame(t, api.StreamEnvelope{Type: "error", Error: "provider exploded"}),
		},
	}
	session := setupSession(t, fake)

	_, err := session.Send(context.Background(), "doomed")
	require.ErrorContains(t, err, "provider exploded")

	assert.Equal(t, chatclient.StateRolledBack, session.State())
	assert.Zero(t, fake.persistHits)
	assert.Len(t, session.Messages(), 2)
}

func TestSend_RollsBackOnRejectedStream(t *testing.T) {
	fake := &fakeChatServer{messages: existingLog(), rejectCode: http.StatusTooManyRequests}
	session := setupSession(t, fake)

	_, err := session.Send(context.Background(), "over quota")
	require.ErrorContains(t, err, "429")

	assert.Equal(t, chatclient.StateRolledBack, session.State())
	assert.Zero(t, fake.persistHits)
	assert.Len(t, session.Messages(), 2)
}

func TestSend_TruncatedStreamFails(t *testing.T) {
	fake := &fakeChatServer{
		messages: existingLog(),
		frames:   []string{chunkFrame(t, "half a rep")},
	}
	session := setupSession(t, fake)

	_, err := session.Send(context.Background(), "q")
	require.ErrorContains(t, err, "without a completion")
	assert.Zero(t, fake.persistHits)
}

// TestAutoSubmit: the ?message= parameter from the new-thread redirect is
// stripped from the URL and submitted at most once.
func TestAutoSubmit(t *testing.T) {
	fake := &fakeChatServer{
		frames: []string{
			chunkFrame(t, "Welcome"),
			sseFrame(t, api.StreamEnvelope{Type: "complete", Provider: "openai"}),
		},
	}
	session := setupSession(t, fake)

	cleaned, reply, err := session.AutoSubmit(context.Background(), "/chat/thread-1?message=hello+there")
	require.NoError(t, err)
	assert.Equal(t, "/chat/thread-1", cleaned)
	assert.Equal(t, "Welcome", reply)
	assert.Equal(t, 1, fake.persistHits)

	// Replaying the same URL must not resubmit.
	cleaned, reply, err = session.AutoSubmit(context.Background(), "/chat/thread-1?message=hello+there")
	require.NoError(t, err)
	assert.Equal(t, "/chat/thread-1", cleaned)
	assert.Empty(t, reply)
	assert.Equal(t, 1, fake.persistHits)

	// A URL without the parameter passes through untouched.
	cleaned, reply, err = session.AutoSubmit(context.Background(), "/chat/thread-1")
	require.NoError(t, err)
	assert.Equal(t, "/chat/thread-1", cleaned)
	assert.Empty(t, reply)
}

// TestAutoSubmit_SkipsNonEmptyThread: the parameter only fires on a brand-new
// empty thread. Revisiting a bookmarked redirect URL on a thread that already
// has messages strips the parameter without submitting anything.
func TestAutoSubmit_SkipsNonEmptyThread(t *testing.T) {
	fake := &fakeChatServer{messages: existingLog()}
	session := setupSession(t, fake)

	cleaned, reply, err := session.AutoSubmit(context.Background(), "/chat/thread-1?message=hello")
	require.NoError(t, err)
	assert.Equal(t, "/chat/thread-1", cleaned)
	assert.Empty(t, reply)
	assert.Zero(t, fake.persistHits)
	assert.Len(t, session.Messages(), 2)
}

func TestBuildHistoryRoles(t *testing.T) {
	fake := &fakeChatServer{messages: existingLog()}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fake.t = t
			fake.handler().ServeHTTP(w, r)
			return
		}
		// Capture the streamed history and reject so nothing persists.
		var req api.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "earlier q", req.Messages[0].Content)
		assert.Equal(t, "assistant", req.Messages[1].Role)
		assert.Equal(t, "user", req.Messages[2].Role)
		assert.Equal(t, "follow-up", req.Messages[2].Content)
		assert.Equal(t, "openai", req.Provider)
		http.Error(w, "stop here", http.StatusTeapot)
	}))
	t.Cleanup(server.Close)

	client := chatclient.NewWithHTTPClient(server.URL, server.Client())
	session, err := client.LoadThread(context.Background(), "thread-1")
	require.NoError(t, err)

	_, err = session.Send(context.Background(), "follow-up")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	client, err := chatclient.New("http://localhost:8000/")
	require.NoError(t, err)
	require.NotNil(t, client)
}
