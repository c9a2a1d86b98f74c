package agent

import (
	"context"
	"log"
	"time"

	"echovault/internal/models"
)

const (
	// ActionMeetingInvite is logged when a meeting memory produced (or
	// failed to produce) a calendar invite.
	ActionMeetingInvite = "meeting_to_google_calendar"
	// ActionGoalCoaching is logged when a goal memory was run through the
	// coaching model.
	ActionGoalCoaching = "goal_coaching_suggestions"

	fetchLimit = 100
)

// Config holds the poller's runtime knobs, populated from flags and AGENT_*
// environment variables in cmd/agent.
type Config struct {
	BaseURL        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	StateFile      string
	InvitesDir     string
	// Backfill makes a fresh state start from the beginning of the memory
	// log instead of "now".
	Backfill bool
}

// Poller drives the watch-and-react loop: fetch memories newer than the
// cursor, run matching actions, log each action through the gateway, persist
// the cursor.
type Poller struct {
	cfg    Config
	client *Client
	coach  *Coach
	state  *State
}

func NewPoller(cfg Config, client *Client, coach *Coach, state *State) *Poller {
	return &Poller{cfg: cfg, client: client, coach: coach, state: state}
}

// Run polls until ctx is cancelled. A failing iteration is logged and retried
// after a backoff; the loop itself never gives up.
func (p *Poller) Run(ctx context.Context) error {
	if p.state.Fresh() {
		if !p.cfg.Backfill {
			p.state.LastCreatedAt = float64(time.Now().UnixMilli())
		}
		if err := p.state.Save(); err != nil {
			return err
		}
	}

	log.Printf("🤖 [AGENT] Starting: base_url=%s state=%s since=%.0f", p.cfg.BaseURL, p.cfg.StateFile, p.state.LastCreatedAt)

	errorBackoff := p.cfg.PollInterval
	if errorBackoff < 2*time.Second {
		errorBackoff = 2 * time.Second
	}

	for {
		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("⚠️  [AGENT] Polling error: %v", err)
			if !sleep(ctx, errorBackoff) {
				return nil
			}
			continue
		}
		if !sleep(ctx, p.cfg.PollInterval) {
			return nil
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	memories, err := p.client.MemoriesSince(ctx, p.state.LastCreatedAt, fetchLimit)
	if err != nil {
		return err
	}

	for _, mem := range memories {
		id := mem.ID.Hex()
		if p.state.Seen(id) {
			p.state.Mark(id, float64(mem.CreatedAt))
			continue
		}

		p.process(ctx, mem)

		p.state.Mark(id, float64(mem.CreatedAt))
		if err := p.state.Save(); err != nil {
			return err
		}
	}
	return nil
}

// process runs every matching action for one memory. Action failures are
// logged as failed actions, never propagated: one bad memory must not stall
// the cursor.
func (p *Poller) process(ctx context.Context, mem models.Memory) {
	handled := false

	if isMeetingMemory(mem) {
		handled = true
		p.logAction(ctx, mem, ActionMeetingInvite, p.createInvite(mem))
	}

	if isGoalMemory(mem) {
		handled = true
		p.logAction(ctx, mem, ActionGoalCoaching, p.coachGoal(ctx, mem))
	}

	if !handled {
		log.Printf("🤖 [AGENT] memory=%s no matching action", mem.ID.Hex())
	}
}

type actionResult struct {
	status  string
	details map[string]any
}

func (p *Poller) createInvite(mem models.Memory) actionResult {
	start, end := extractEventWindow(mem)
	path, err := writeInvite(p.cfg.InvitesDir, mem, start, end)
	if err != nil {
		return actionResult{status: models.ActionStatusFailed, details: map[string]any{"error": err.Error()}}
	}
	return actionResult{
		status: models.ActionStatusSuccess,
		details: map[string]any{
			"icsPath":   path,
			"importUrl": googleCalendarURL(mem.Summary, start, end),
			"start":     start.Format(time.RFC3339),
			"end":       end.Format(time.RFC3339),
		},
	}
}

func (p *Poller) coachGoal(ctx context.Context, mem models.Memory) actionResult {
	plan := p.coach.Plan(ctx, mem.RawText)
	status := models.ActionStatusSuccess
	if !plan.HasGoal {
		status = models.ActionStatusSkipped
	}
	return actionResult{
		status: status,
		details: map[string]any{
			"goal":        plan.Goal,
			"suggestions": plan.Suggestions,
			"weeklyPlan":  plan.WeeklyPlan,
			"firstStep":   plan.FirstStep,
		},
	}
}

func (p *Poller) logAction(ctx context.Context, mem models.Memory, actionType string, result actionResult) {
	log.Printf("🤖 [AGENT] memory=%s action=%s status=%s", mem.ID.Hex(), actionType, result.status)

	action := models.AgentAction{
		ActionType:    actionType,
		Status:        result.status,
		MemoryID:      mem.ID.Hex(),
		MemorySummary: mem.Summary,
		Details:       result.details,
	}
	if err := p.client.LogAction(ctx, action); err != nil {
		log.Printf("⚠️  [AGENT] Failed to log action %s: %v", actionType, err)
	}
}

// sleep waits for d or ctx cancellation, reporting whether the caller should
// keep running.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
