package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go"
)

const coachModel = openai.ChatModelGPT4oMini

const coachSystemPrompt = `You are a pragmatic personal coach. Given a short note someone captured about
themselves, decide whether it expresses a personal goal. Respond with a single
JSON object and nothing else, with exactly these fields:
{"has_goal": bool, "goal": string, "suggestions": [string], "weekly_plan": [string], "first_step": string}
"weekly_plan" must contain exactly 4 entries, one per week. Keep suggestions
concrete and small. If there is no goal, set has_goal to false and leave the
other fields empty.`

// CoachingPlan is the structured advice produced for a goal memory.
type CoachingPlan struct {
	HasGoal     bool     `json:"has_goal"`
	Goal        string   `json:"goal"`
	Suggestions []string `json:"suggestions"`
	WeeklyPlan  []string `json:"weekly_plan"`
	FirstStep   string   `json:"first_step"`
}

// Coach turns goal memories into coaching plans via the LLM, falling back to
// a deterministic template when the model is unreachable or returns garbage.
type Coach struct {
	client *openai.Client
}

func NewCoach(client *openai.Client) *Coach {
	return &Coach{client: client}
}

// Plan produces a coaching plan for the given memory text. It never returns
// an error: an unusable model response degrades to the template plan so the
// poller keeps moving.
func (c *Coach) Plan(ctx context.Context, text string) CoachingPlan {
	if c.client != nil {
		if plan, err := c.planViaModel(ctx, text); err == nil {
			return plan
		} else {
			log.Printf("⚠️  [AGENT] Coaching model failed, using fallback plan: %v", err)
		}
	}
	return fallbackPlan(text)
}

func (c *Coach) planViaModel(ctx context.Context, text string) (CoachingPlan, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: coachModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(coachSystemPrompt),
			openai.UserMessage(text),
		},
		Temperature:         openai.Float(0.4),
		MaxCompletionTokens: openai.Int(500),
	})
	if err != nil {
		return CoachingPlan{}, err
	}
	if len(resp.Choices) == 0 {
		return CoachingPlan{}, fmt.Errorf("empty completion")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var plan CoachingPlan
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &plan); err != nil {
		return CoachingPlan{}, fmt.Errorf("parse coaching response: %w", err)
	}
	return plan, nil
}

// fallbackPlan builds a generic but usable 4-week plan around whatever goal
// focus can be extracted from the text.
func fallbackPlan(text string) CoachingPlan {
	focus := extractGoalFocus(text)
	if focus == "" {
		focus = "your goal"
	}
	return CoachingPlan{
		HasGoal: true,
		Goal:    focus,
		Suggestions: []string{
			fmt.Sprintf("Block a recurring 30-minute slot for %s", focus),
			"Track each session in one line so progress stays visible",
			"Review what worked at the end of every week",
		},
		WeeklyPlan: []string{
			fmt.Sprintf("Week 1: establish a baseline for %s with three short sessions", focus),
			fmt.Sprintf("Week 2: increase to four sessions and note the hardest part of %s", focus),
			"Week 3: focus every session on the weakest area from week 2",
			"Week 4: repeat the baseline and compare against week 1",
		},
		FirstStep: fmt.Sprintf("Schedule the first 30-minute session for %s today", focus),
	}
}
