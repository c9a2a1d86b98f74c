package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"echovault/internal/models"
)

// synthesisModel is a fixed constant of the pipeline, not runtime-configurable.
const synthesisModel = openai.ChatModelGPT4oMini

const synthesisSystemPrompt = `You are a personal memory assistant. Answer the user's question using only the retrieved memories provided. Be concise and direct. Mention which memory supports each part of the answer when it helps. If the memories do not contain the answer, say so plainly.`

// SynthesisService turns a query plus a small set of retrieved records into a
// natural-language answer via the chat delegate.
type SynthesisService struct {
	client  *openai.Client
	metrics *Metrics
}

// NewSynthesisService creates a new synthesis service
func NewSynthesisService(client *openai.Client, metrics *Metrics) *SynthesisService {
	return &SynthesisService{client: client, metrics: metrics}
}

// Synthesize produces an answer to query from the retrieved records. Single
// attempt; failure surfaces as a DelegateError and is fatal for the search.
func (s *SynthesisService) Synthesize(ctx context.Context, query string, memories []models.ScoredMemory) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: synthesisModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(synthesisSystemPrompt),
			openai.UserMessage(buildSynthesisPrompt(query, memories)),
		},
		Temperature:         openai.Float(0.5),
		MaxCompletionTokens: openai.Int(600),
	})
	if err != nil {
		s.metrics.DelegateErrors.WithLabelValues(StageSynthesis).Inc()
		return "", delegateErr(StageSynthesis, err)
	}
	if len(resp.Choices) == 0 {
		s.metrics.DelegateErrors.WithLabelValues(StageSynthesis).Inc()
		return "", &DelegateError{Stage: StageSynthesis, Message: "no choices returned"}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildSynthesisPrompt formats the retrieved records as answer context.
func buildSynthesisPrompt(query string, memories []models.ScoredMemory) string {
	var builder strings.Builder

	builder.WriteString("RETRIEVED MEMORIES:\n\n")
	for i, mem := range memories {
		fmt.Fprintf(&builder, "%d. (similarity %.3f) %s\n", i+1, mem.Similarity, mem.Summary)
		fmt.Fprintf(&builder, "   Text: %s\n", mem.RawText)
		if len(mem.People) > 0 {
			fmt.Fprintf(&builder, "   People: %s\n", strings.Join(mem.People, ", "))
		}
		if len(mem.Tasks) > 0 {
			fmt.Fprintf(&builder, "   Tasks: %s\n", strings.Join(mem.Tasks, ", "))
		}
		if len(mem.Topics) > 0 {
			fmt.Fprintf(&builder, "   Topics: %s\n", strings.Join(mem.Topics, ", "))
		}
		if len(mem.Decisions) > 0 {
			fmt.Fprintf(&builder, "   Decisions: %s\n", strings.Join(mem.Decisions, ", "))
		}
		builder.WriteString("\n")
	}

	fmt.Fprintf(&builder, "QUESTION: %s", query)
	return builder.String()
}
