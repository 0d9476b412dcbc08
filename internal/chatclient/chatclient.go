// Package chatclient implements the client half of the streaming chat flow:
// optimistic message insertion, SSE consumption with delta accumulation, and
// reconciliation of the finished exchange back onto the thread.
package chatclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"driftchat/internal/api"
	"driftchat/internal/model"
)

// State is the lifecycle of one message submission.
type State int

const (
	// StateComposing is the idle state; the user may submit.
	StateComposing State = iota
	// StateSubmitting covers the window between the optimistic insert and
	// the first byte of the stream.
	StateSubmitting
	// StateStreaming means deltas are being accumulated.
	StateStreaming
	// StateReconciled means the exchange was persisted server-side and the
	// local view matches the stored thread.
	StateReconciled
	// StateRolledBack means the submission failed before producing a reply
	// and the optimistic message was removed.
	StateRolledBack
)

// Client talks to a driftchat server. The cookie jar carries the session
// cookie across requests, so one Client is one identity.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}, nil
}

// NewWithHTTPClient injects a custom HTTP client. Used by tests.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// ThreadSession is the live view of one thread plus the submission state
// machine. It is not safe for concurrent Send calls; the UI submits one
// message at a time.
type ThreadSession struct {
	client *Client

	mu       sync.Mutex
	threadID string
	provider string
	messages []model.Message
	state    State

	autoSubmitted bool
}

// LoadThread fetches the thread page data and returns a session positioned
// at StateComposing.
func (c *Client) LoadThread(ctx context.Context, threadID string) (*ThreadSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chat/"+threadID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("loading thread %s: unexpected status %d", threadID, resp.StatusCode)
	}

	var page api.ThreadPageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding thread page: %w", err)
	}

	return &ThreadSession{
		client:   c,
		threadID: threadID,
		provider: page.Thread.Provider,
		messages: page.Messages,
		state:    StateComposing,
	}, nil
}

// State reports the current submission state.
func (s *ThreadSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the local message view, including any optimistic
// entry.
func (s *ThreadSession) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Send runs one full exchange: the user message is inserted optimistically,
// the completion is streamed and accumulated, and the finished pair is
// persisted with exactly one reconciliation call. If the stream cannot be
// established or ends in an error envelope, the optimistic insert is rolled
// back and nothing is persisted.
func (s *ThreadSession) Send(ctx context.Context, content string) (string, error) {
	s.mu.Lock()
	if s.state == StateSubmitting || s.state == StateStreaming {
		s.mu.Unlock()
		return "", fmt.Errorf("a submission is already in flight")
	}
	wasEmpty := len(s.messages) == 0
	history := buildHistory(s.messages, content)
	s.messages = append(s.messages, model.Message{Type: model.MessageTypeUser, Content: content})
	s.state = StateSubmitting
	s.mu.Unlock()

	reply, err := s.streamCompletion(ctx, history)
	if err != nil {
		s.rollback()
		return "", err
	}

	if err := s.persistExchange(ctx, content, reply); err != nil {
		// The reply streamed fine; only reconciliation failed. The local view
		// keeps the exchange so the user does not watch it vanish.
		s.mu.Lock()
		s.state = StateComposing
		s.mu.Unlock()
		return reply, fmt.Errorf("persisting exchange: %w", err)
	}

	if wasEmpty {
		// First exchange on a fresh thread names it. Best effort: a failed
		// title call leaves the placeholder, never the exchange.
		_ = s.client.generateTitle(ctx, s.threadID, content)
	}

	s.mu.Lock()
	s.state = StateReconciled
	s.mu.Unlock()
	return reply, nil
}

func buildHistory(messages []model.Message, content string) []api.ChatMessage {
	history := make([]api.ChatMessage, 0, len(messages)+1)
	for _, m := range messages {
		role := "assistant"
		if m.Type == model.MessageTypeUser {
			role = "user"
		}
		history = append(history, api.ChatMessage{Role: role, Content: m.Content})
	}
	return append(history, api.ChatMessage{Role: "user", Content: content})
}

// streamCompletion opens the SSE stream and accumulates deltas until the
// terminal envelope. Frames that fail to parse are skipped; the stream
// carries on. A terminal "error" envelope fails the whole submission.
func (s *ThreadSession) streamCompletion(ctx context.Context, history []api.ChatMessage) (string, error) {
	body, err := json.Marshal(api.ChatRequest{Messages: history, Provider: s.provider})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.client.baseURL+"/api/chat?stream=true", strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("stream rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	s.mu.Lock()
	s.state = StateStreaming
	s.mu.Unlock()

	var reply strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 2*1024*1024)
	completed := false

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var envelope api.StreamEnvelope
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			// One bad frame does not kill the stream.
			continue
		}

		switch envelope.Type {
		case "chunk":
			if envelope.Data != nil {
				reply.WriteString(envelope.Data.Delta.Content)
			}
		case "complete":
			completed = true
		case "error":
			return "", fmt.Errorf("stream failed: %s", envelope.Error)
		}
		if completed {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stream: %w", err)
	}
	if !completed {
		return "", fmt.Errorf("stream ended without a completion event")
	}
	return reply.String(), nil
}

// persistExchange stores the finished pair on the thread. is_streamed tells
// the server the reply already exists and must not be regenerated.
func (s *ThreadSession) persistExchange(ctx context.Context, content, reply string) error {
	form := url.Values{}
	form.Set("message", content)
	form.Set("ai_response", reply)
	form.Set("is_streamed", "true")
	if s.provider != "" {
		form.Set("provider", s.provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.client.baseURL+"/chat/"+s.threadID, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var page api.ThreadPageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return fmt.Errorf("decoding reconciled page: %w", err)
	}

	// Replace the optimistic view with the stored log.
	s.mu.Lock()
	s.messages = page.Messages
	s.mu.Unlock()
	return nil
}

func (s *ThreadSession) rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.messages); n > 0 && s.messages[n-1].Type == model.MessageTypeUser && s.messages[n-1].ID == "" {
		s.messages = s.messages[:n-1]
	}
	s.state = StateRolledBack
}

func (c *Client) generateTitle(ctx context.Context, threadID, firstMessage string) error {
	body, err := json.Marshal(api.UpdateTitleRequest{ThreadID: threadID, Message: firstMessage})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/chat?updateTitle=true", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("title generation returned status %d", resp.StatusCode)
	}
	return nil
}

// AutoSubmit handles a thread URL carrying a pending first message as the
// ?message= query parameter (the redirect target of POST /chat/new). The
// parameter only fires on a brand-new empty thread with no submission in
// flight, and at most once per session, so revisiting a bookmarked URL never
// re-submits. The cleaned URL is returned either way.
func (s *ThreadSession) AutoSubmit(ctx context.Context, rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, "", err
	}
	query := parsed.Query()
	message := query.Get("message")
	if message == "" {
		return rawURL, "", nil
	}

	query.Del("message")
	parsed.RawQuery = query.Encode()
	cleaned := parsed.String()

	s.mu.Lock()
	busy := s.state == StateSubmitting || s.state == StateStreaming
	if s.autoSubmitted || busy || len(s.messages) > 0 {
		s.mu.Unlock()
		return cleaned, "", nil
	}
	s.autoSubmitted = true
	s.mu.Unlock()

	reply, err := s.Send(ctx, message)
	return cleaned, reply, err
}
