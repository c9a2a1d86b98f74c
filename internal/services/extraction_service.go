package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go"

	"echovault/internal/models"
)

// extractionModel is a fixed constant of the pipeline, not runtime-configurable.
const extractionModel = openai.ChatModelGPT4oMini

// fallbackSummaryLen is how much of the raw text becomes the summary when the
// delegate's output cannot be parsed.
const fallbackSummaryLen = 100

// Memory extraction system prompt
const extractionSystemPrompt = `You are a memory extraction system. Analyze the note and extract structured information.

Return a single JSON object with exactly these fields:
- "summary": a one-sentence summary of the note
- "people": array of people mentioned (names only)
- "tasks": array of action items or to-dos
- "topics": array of topics discussed
- "decisions": array of decisions that were made

Return JSON only, no markdown fences, no commentary. Use empty arrays for fields with nothing to report.`

// ExtractionService turns raw text into a structured annotation via the chat
// delegate. It owns the JSON-parsing and fallback policy: a failed call is an
// error, an unparseable response is not.
type ExtractionService struct {
	client  *openai.Client
	metrics *Metrics
}

// NewExtractionService creates a new extraction service
func NewExtractionService(client *openai.Client, metrics *Metrics) *ExtractionService {
	return &ExtractionService{client: client, metrics: metrics}
}

// Extract returns the structured annotation for text. The call is a single
// attempt; transport or API failures surface as a DelegateError. A successful
// call whose body is not parseable JSON falls back to a deterministic
// low-information record so ingestion is never blocked by a formatting
// mismatch in the delegate's output.
func (s *ExtractionService) Extract(ctx context.Context, text string) (*models.ExtractedMemory, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: extractionModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionSystemPrompt),
			openai.UserMessage(text),
		},
		Temperature:         openai.Float(0.3), // low temp for consistency
		MaxCompletionTokens: openai.Int(500),
	})
	if err != nil {
		s.metrics.DelegateErrors.WithLabelValues(StageExtraction).Inc()
		return nil, delegateErr(StageExtraction, err)
	}
	if len(resp.Choices) == 0 {
		s.metrics.DelegateErrors.WithLabelValues(StageExtraction).Inc()
		return nil, &DelegateError{Stage: StageExtraction, Message: "no choices returned"}
	}

	content := resp.Choices[0].Message.Content

	extracted, perr := parseExtraction(content)
	if perr != nil {
		// Not an error: ingestion availability is prioritized over
		// extraction completeness. Counted so operators can watch
		// extraction quality degrade.
		s.metrics.ExtractionFallback.Inc()
		log.Printf("⚠️ [EXTRACTION] Unparseable delegate output (%d bytes), using fallback record: %v", len(content), perr)
		return fallbackExtraction(text), nil
	}

	return extracted, nil
}

// parseExtraction parses the delegate's response body as the expected JSON
// object. Models occasionally wrap JSON in markdown fences; those are
// stripped before parsing.
func parseExtraction(content string) (*models.ExtractedMemory, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var extracted models.ExtractedMemory
	if err := json.Unmarshal([]byte(trimmed), &extracted); err != nil {
		return nil, fmt.Errorf("failed to parse extraction: %w", err)
	}

	normalizeExtraction(&extracted)
	return &extracted, nil
}

// fallbackExtraction builds the deterministic default record: summary is the
// first 100 characters of the input (by rune, so multi-byte text never
// splits), all four list fields empty.
func fallbackExtraction(text string) *models.ExtractedMemory {
	summary := text
	if runes := []rune(text); len(runes) > fallbackSummaryLen {
		summary = string(runes[:fallbackSummaryLen])
	}
	return &models.ExtractedMemory{
		Summary:   summary,
		People:    []string{},
		Tasks:     []string{},
		Topics:    []string{},
		Decisions: []string{},
	}
}

// normalizeExtraction replaces nil list fields with empty slices so every
// stored record has all five derived fields present.
func normalizeExtraction(e *models.ExtractedMemory) {
	if e.People == nil {
		e.People = []string{}
	}
	if e.Tasks == nil {
		e.Tasks = []string{}
	}
	if e.Topics == nil {
		e.Topics = []string{}
	}
	if e.Decisions == nil {
		e.Decisions = []string{}
	}
}

// delegateErr wraps an openai-go error preserving the upstream status code
// and message.
func delegateErr(stage string, err error) *DelegateError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &DelegateError{
			Stage:   stage,
			Status:  apiErr.StatusCode,
			Message: apiErr.Message,
			Cause:   err,
		}
	}
	return &DelegateError{Stage: stage, Message: err.Error(), Cause: err}
}
