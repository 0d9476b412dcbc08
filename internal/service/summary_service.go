package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	apperrors "driftchat/internal/errors"
	"driftchat/internal/llm"
	"driftchat/internal/model"
	"driftchat/internal/repository"
)

// summaryLengthThreshold is the content length above which a message gets an
// AI-generated summary; shorter messages just copy content into summary.
const summaryLengthThreshold = 200

// summaryModel is the cheap support model used for the batch summarization
// call.
const summaryModel = "gemini-2.5-flash-lite-preview-06-17"

// arrayPattern extracts the first bracket-delimited array from a response
// that may wrap the JSON in prose or markdown fencing.
var arrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// summarizedMessage is the strict shape the prompt demands back: the summary
// plus the identity fields echoed unchanged.
type summarizedMessage struct {
	Type      string `json:"type"`
	Summary   string `json:"summary"`
	Timestamp string `json:"timestamp"`
}

// SummaryService batch-transforms long messages in a thread into short
// summaries via a provider call and merges the results back onto the log.
type SummaryService struct {
	threads repository.ThreadRepository
	llm     *llm.Manager
}

func NewSummaryService(threads repository.ThreadRepository, manager *llm.Manager) *SummaryService {
	return &SummaryService{threads: threads, llm: manager}
}

// Summarize runs one summarization pass over the thread. The requester must
// own the thread or the thread must be public. Nothing is written unless the
// provider's response parses and validates; after a successful pass every
// message carries a non-nil summary.
func (s *SummaryService) Summarize(ctx context.Context, threadUUID string, requesterID int64) (*model.Thread, int, *llm.Usage, error) {
	thread, err := s.threads.GetThreadByUUID(ctx, threadUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, nil, fmt.Errorf("%w: thread %s", apperrors.ErrNotFound, threadUUID)
		}
		return nil, 0, nil, err
	}
	if thread.UserID != requesterID && !thread.Public {
		return nil, 0, nil, fmt.Errorf("%w: thread %s", apperrors.ErrPermission, threadUUID)
	}

	allMessages, err := model.DecodeMessages(thread.Messages)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: invalid thread messages format", apperrors.ErrValidation)
	}
	if len(allMessages) == 0 {
		return thread, 0, nil, nil
	}

	candidates := make([]model.Message, 0, len(allMessages))
	for _, msg := range allMessages {
		if len(msg.Content) > summaryLengthThreshold && msg.Summary == nil {
			candidates = append(candidates, msg)
		}
	}

	var (
		summaries []summarizedMessage
		usage     *llm.Usage
	)
	if len(candidates) > 0 {
		if !s.llm.IsProviderAvailable(llm.ProviderGoogle) {
			return nil, 0, nil, fmt.Errorf("%w: google", apperrors.ErrProviderUnavailable)
		}

		prompt, err := buildSummaryPrompt(candidates)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
		}

		resp, err := s.llm.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}},
			llm.ProviderGoogle, &llm.ChatOptions{Model: summaryModel})
		if err != nil {
			return nil, 0, nil, err
		}
		usage = resp.Usage

		summaries, err = parseSummaries(resp.Content)
		if err != nil {
			return nil, 0, nil, err
		}
	}

	// Merge by (type, timestamp). The pair is a best-effort natural key; a
	// duplicate pair would misattribute, which the prompt contract accepts.
	summaryByKey := make(map[string]string, len(summaries))
	for _, sm := range summaries {
		if sm.Type != "" && sm.Timestamp != "" && sm.Summary != "" {
			summaryByKey[sm.Type+"-"+sm.Timestamp] = sm.Summary
		}
	}

	updated := make([]model.Message, len(allMessages))
	for i, msg := range allMessages {
		if summary, ok := summaryByKey[msg.Type+"-"+msg.Timestamp]; ok {
			msg.Summary = &summary
		} else if msg.Summary == nil {
			// Short enough to skip: the content is its own summary, keeping
			// the show/hide toggle uniform across the thread.
			content := msg.Content
			msg.Summary = &content
		}
		updated[i] = msg
	}

	encoded, err := model.EncodeMessages(updated)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
	}
	if err := s.threads.UpdateThreadByUUID(ctx, threadUUID, repository.ThreadUpdate{Messages: &encoded}, thread.Version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, 0, nil, fmt.Errorf("%w: thread %s changed during summarization", apperrors.ErrConflict, threadUUID)
		}
		return nil, 0, nil, err
	}

	updatedThread, err := s.threads.GetThreadByUUID(ctx, threadUUID)
	if err != nil {
		return nil, 0, nil, err
	}
	return updatedThread, len(summaries), usage, nil
}

func buildSummaryPrompt(candidates []model.Message) (string, error) {
	encoded, err := json.Marshal(candidates)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You're a helpful writer who follows my instructions completely and can easily spot the highlights in a given text and summarise them in a few words without losing too many details. You can also write beautiful text with concise and easy-to-understand wording.

Given a JSON array in the following format:
`+"```json"+`
[ { "type": "user_OR_OTHERS", "content": "MESSAGE_BODY", "timestamp": "ISO-8601-DATETIME-STRING", "summary": "NULLABLE-FIELD" } ]
`+"```"+`

You should return a new JSON array that follows the following format:

`+"```json"+`
[{"summary": "SUMMARY-IN-200CHARS-OR-ORIGINAL-CONTENT-IN-200CHARS", "timestamp": "ORIGINAL-ISO8601-DATETIME-STRING", "type": "ORIGINAL-TYPE" }]
`+"```"+`

YOU NEED TO STRICTLY FOLLOW THE INSTRUCTIONS BELOW:

Going through each element of the given array:
Summarise current element's "content" field in the language "content" was written in,
with the important information of the content and its context in mind,
make it more than 80 characters but within 200 characters, maps the generated summary to the "summary" field.

ENSURE the returned JSON is valid and follows the given format.

DO NOT summarise the `+"`\"content\"`"+` IF it's already within 200 characters.

Here's the array to process:
`+"```json"+`
%s
`+"```", string(encoded)), nil
}

// parseSummaries extracts and validates the model's response. The response is
// parsed permissively (prose or fencing around the array is tolerated), but
// what is extracted must be a JSON array or the pass fails without writing.
func parseSummaries(content string) ([]summarizedMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: no response from AI model", apperrors.ErrInternal)
	}

	jsonStr := content
	if match := arrayPattern.FindString(content); match != "" {
		jsonStr = match
	}

	var summaries []summarizedMessage
	if err := json.Unmarshal([]byte(jsonStr), &summaries); err != nil {
		return nil, fmt.Errorf("%w: failed to parse AI response", apperrors.ErrValidation)
	}
	return summaries, nil
}
