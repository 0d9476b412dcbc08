package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	geminiDefaultModel     = "gemini-2.5-flash"
	geminiDefaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultTemp      = 0.7
	geminiDefaultMaxTokens = 100000
)

// geminiClient speaks the Gemini generateContent wire format. Gemini has no
// system role, so system messages are folded into user messages with a
// "System: " prefix, and assistant messages map to the "model" role. The
// streaming endpoint flushes partial JSON that may split mid-object; complete
// objects are recovered with objectScanner.
type geminiClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGeminiClient(apiKey, baseURL string) Client {
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &geminiClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (c *geminiClient) Provider() string     { return ProviderGoogle }
func (c *geminiClient) DefaultModel() string { return geminiDefaultModel }
func (c *geminiClient) IsConfigured() bool   { return c.apiKey != "" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *geminiUsage `json:"usageMetadata"`
}

type geminiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func convertToGeminiContents(messages []Message) []geminiContent {
	contents := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: "System: " + m.Content}},
			})
		case RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	return contents
}

func (c *geminiClient) buildRequest(messages []Message, opts *ChatOptions) (geminiRequest, string) {
	model := geminiDefaultModel
	req := geminiRequest{Contents: convertToGeminiContents(messages)}
	req.GenerationConfig.Temperature = geminiDefaultTemp
	req.GenerationConfig.MaxOutputTokens = geminiDefaultMaxTokens
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		if opts.Temperature != nil {
			req.GenerationConfig.Temperature = *opts.Temperature
		}
		if opts.MaxTokens != nil {
			req.GenerationConfig.MaxOutputTokens = *opts.MaxTokens
		}
	}
	return req, model
}

func (c *geminiClient) post(ctx context.Context, endpoint string, body geminiRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Provider: c.Provider(), Message: fmt.Sprintf("could not marshal request: %v", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Provider: c.Provider(), Message: fmt.Sprintf("could not create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Provider: c.Provider(), Message: fmt.Sprintf("request failed: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		var errBody geminiErrorBody
		if err := json.Unmarshal(raw, &errBody); err == nil && errBody.Error.Message != "" {
			return nil, &Error{Provider: c.Provider(), StatusCode: resp.StatusCode, Type: errBody.Error.Status, Message: errBody.Error.Message}
		}
		return nil, &Error{
			Provider:   c.Provider(),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}
	return resp, nil
}

func (c *geminiClient) usage(meta *geminiUsage) *Usage {
	if meta == nil {
		return nil
	}
	return &Usage{
		PromptTokens:     meta.PromptTokenCount,
		CompletionTokens: meta.CandidatesTokenCount,
		TotalTokens:      meta.TotalTokenCount,
	}
}

func (c *geminiClient) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	if !c.IsConfigured() {
		return nil, &Error{Provider: c.Provider(), Message: "Gemini API key not configured"}
	}

	req, model := c.buildRequest(messages, opts)
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	resp, err := c.post(ctx, endpoint, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Provider: c.Provider(), Message: fmt.Sprintf("could not decode response: %v", err)}
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 ||
		decoded.Candidates[0].Content.Parts[0].Text == "" {
		return nil, &Error{Provider: c.Provider(), Message: "invalid response format from Gemini"}
	}

	return &Response{
		Content: decoded.Candidates[0].Content.Parts[0].Text,
		Model:   model,
		Usage:   c.usage(decoded.UsageMetadata),
	}, nil
}

func (c *geminiClient) ChatStream(ctx context.Context, messages []Message, opts *ChatOptions, ch chan<- StreamChunk) error {
	defer close(ch)

	if !c.IsConfigured() {
		return &Error{Provider: c.Provider(), Message: "Gemini API key not configured"}
	}

	req, model := c.buildRequest(messages, opts)
	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?key=%s", c.baseURL, model, c.apiKey)
	resp, err := c.post(ctx, endpoint, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := &objectScanner{}
	buf := make([]byte, 8*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, obj := range scanner.Feed(buf[:n]) {
				var decoded geminiResponse
				if err := json.Unmarshal(obj, &decoded); err != nil {
					// Complete-looking but unparseable fragments are skipped.
					continue
				}
				if len(decoded.Candidates) == 0 {
					continue
				}
				candidate := decoded.Candidates[0]

				if len(candidate.Content.Parts) > 0 && candidate.Content.Parts[0].Text != "" {
					chunk := StreamChunk{
						ID:           uuid.NewString(),
						Model:        model,
						Delta:        Delta{Content: candidate.Content.Parts[0].Text, Role: RoleAssistant},
						FinishReason: candidate.FinishReason,
						Usage:        c.usage(decoded.UsageMetadata),
					}
					select {
					case ch <- chunk:
					case <-ctx.Done():
						return ctx.Err()
					}
					if candidate.FinishReason != "" {
						return nil
					}
					continue
				}

				if candidate.FinishReason != "" {
					chunk := StreamChunk{
						ID:           uuid.NewString(),
						Model:        model,
						FinishReason: candidate.FinishReason,
						Usage:        c.usage(decoded.UsageMetadata),
					}
					select {
					case ch <- chunk:
					case <-ctx.Done():
						return ctx.Err()
					}
					return nil
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return &Error{Provider: c.Provider(), Message: fmt.Sprintf("stream read failed: %v", readErr)}
		}
	}
}
