package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"

	"echovault/internal/models"
	"echovault/internal/services"
)

// ActionHandler handles the agent action log endpoints. The background agent
// is the only writer; the dashboard reads.
type ActionHandler struct {
	actionStore services.ActionStore
}

// NewActionHandler creates a new action handler
func NewActionHandler(actionStore services.ActionStore) *ActionHandler {
	return &ActionHandler{actionStore: actionStore}
}

// LogAction records an executed side-effecting action
// POST /agent-actions/log
type LogActionRequest struct {
	ActionType    string         `json:"actionType"`
	Status        string         `json:"status"`
	MemoryID      string         `json:"memoryId"`
	MemorySummary string         `json:"memorySummary"`
	Details       map[string]any `json:"details"`
}

func (h *ActionHandler) LogAction(c *fiber.Ctx) error {
	var req LogActionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ActionType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Field 'actionType' is required",
		})
	}
	if !models.ValidActionStatus(req.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status. Must be one of: success, failed, skipped",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	id, err := h.actionStore.Log(ctx, &models.AgentAction{
		ActionType:    req.ActionType,
		Status:        req.Status,
		MemoryID:      req.MemoryID,
		MemorySummary: req.MemorySummary,
		Details:       req.Details,
	})
	if err != nil {
		log.Printf("❌ [AGENT-ACTIONS-API] Failed to log action: %v", err)
		return serviceError(c, "Failed to log agent action", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"id":      id,
	})
}

// ListActions returns the latest executed actions, newest first
// GET /agent-actions?limit=
func (h *ActionHandler) ListActions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", services.DefaultActionLimit)

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	actions, err := h.actionStore.ListRecent(ctx, limit)
	if err != nil {
		log.Printf("❌ [AGENT-ACTIONS-API] Failed to list actions: %v", err)
		return serviceError(c, "Failed to retrieve agent actions", err)
	}

	return c.JSON(fiber.Map{
		"actions": actions,
	})
}
