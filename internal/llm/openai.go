package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	openAIDefaultModel     = "gpt-4o-2024-08-06"
	openAIDefaultBaseURL   = "https://api.openai.com/v1"
	openAIDefaultTemp      = 0.7
	openAIDefaultMaxTokens = 16384
)

// openAIClient speaks the OpenAI chat-completions wire format: a flat
// role/content message list, and for streaming, SSE-style `data: {...}` lines
// terminated by a `[DONE]` sentinel.
type openAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenAIClient(apiKey, baseURL string) Client {
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &openAIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (c *openAIClient) Provider() string     { return ProviderOpenAI }
func (c *openAIClient) DefaultModel() string { return openAIDefaultModel }
func (c *openAIClient) IsConfigured() bool   { return c.apiKey != "" }

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
}

type openAIStreamEvent struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta        Delta   `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *openAIClient) buildRequest(messages []Message, opts *ChatOptions, stream bool) openAIRequest {
	req := openAIRequest{
		Model:       openAIDefaultModel,
		Temperature: openAIDefaultTemp,
		MaxTokens:   openAIDefaultMaxTokens,
		Stream:      stream,
		Messages:    make([]openAIMessage, 0, len(messages)),
	}
	if opts != nil {
		if opts.Model != "" {
			req.Model = opts.Model
		}
		if opts.Temperature != nil {
			req.Temperature = *opts.Temperature
		}
		if opts.MaxTokens != nil {
			req.MaxTokens = *opts.MaxTokens
		}
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openAIMessage{Role: m.Role, Content: m.Content})
	}
	return req
}

func (c *openAIClient) post(ctx context.Context, body openAIRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Provider: c.Provider(), Message: fmt.Sprintf("could not marshal request: %v", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Provider: c.Provider(), Message: fmt.Sprintf("could not create request: %v", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Provider: c.Provider(), Message: fmt.Sprintf("request failed: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}
	return resp, nil
}

// statusError decodes the provider's error envelope, falling back to the raw
// status line when the body is not the expected shape.
func (c *openAIClient) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	var body openAIErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return &Error{Provider: c.Provider(), StatusCode: resp.StatusCode, Type: body.Error.Type, Message: body.Error.Message}
	}
	return &Error{
		Provider:   c.Provider(),
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

func (c *openAIClient) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	if !c.IsConfigured() {
		return nil, &Error{Provider: c.Provider(), Message: "OpenAI API key not configured"}
	}

	req := c.buildRequest(messages, opts, false)
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Provider: c.Provider(), Message: fmt.Sprintf("could not decode response: %v", err)}
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == "" {
		return nil, &Error{Provider: c.Provider(), Message: "invalid response format from OpenAI"}
	}

	out := &Response{Content: decoded.Choices[0].Message.Content, Model: decoded.Model}
	if out.Model == "" {
		out.Model = req.Model
	}
	if decoded.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			TotalTokens:      decoded.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (c *openAIClient) ChatStream(ctx context.Context, messages []Message, opts *ChatOptions, ch chan<- StreamChunk) error {
	defer close(ch)

	if !c.IsConfigured() {
		return &Error{Provider: c.Provider(), Message: "OpenAI API key not configured"}
	}

	req := c.buildRequest(messages, opts, true)
	resp, err := c.post(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}

		var event openAIStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// A malformed frame is skipped rather than aborting the stream.
			continue
		}
		if len(event.Choices) == 0 {
			continue
		}

		chunk := StreamChunk{
			ID:    event.ID,
			Model: event.Model,
			Delta: event.Choices[0].Delta,
		}
		if chunk.Model == "" {
			chunk.Model = req.Model
		}
		if event.Choices[0].FinishReason != nil {
			chunk.FinishReason = *event.Choices[0].FinishReason
		}
		if event.Usage != nil {
			chunk.Usage = &Usage{
				PromptTokens:     event.Usage.PromptTokens,
				CompletionTokens: event.Usage.CompletionTokens,
				TotalTokens:      event.Usage.TotalTokens,
			}
		}

		select {
		case ch <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return &Error{Provider: c.Provider(), Message: fmt.Sprintf("stream read failed: %v", err)}
	}
	return nil
}
