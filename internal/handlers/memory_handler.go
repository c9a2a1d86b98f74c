package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"echovault/internal/models"
	"echovault/internal/services"
)

// Per-request deadlines: pipeline endpoints wait on delegate calls, read
// endpoints only touch the store.
const (
	pipelineTimeout = 30 * time.Second
	readTimeout     = 10 * time.Second
)

// MemoryHandler handles the memory capture and recall API endpoints
type MemoryHandler struct {
	memoryService *services.MemoryService
	memoryStore   services.MemoryStore
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memoryService *services.MemoryService, memoryStore services.MemoryStore) *MemoryHandler {
	return &MemoryHandler{
		memoryService: memoryService,
		memoryStore:   memoryStore,
	}
}

// AddMemory ingests a raw note into a structured, embedded record
// POST /add-memory
type AddMemoryRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func (h *MemoryHandler) AddMemory(c *fiber.Ctx) error {
	var req AddMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Text is required",
		})
	}
	if req.Source != "" && !models.ValidSource(req.Source) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid source. Must be one of: voice, text, mcp",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
	defer cancel()

	memoryID, err := h.memoryService.AddMemory(ctx, req.Text, req.Source)
	if err != nil {
		log.Printf("❌ [MEMORY-API] Failed to add memory: %v", err)
		return serviceError(c, "Failed to add memory", err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"memoryId": memoryID,
	})
}

// Search answers a natural-language query from stored memories
// POST /search
type SearchRequest struct {
	Query string `json:"query"`
}

func (h *MemoryHandler) Search(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
	defer cancel()

	result, err := h.memoryService.SearchMemories(ctx, req.Query)
	if err != nil {
		log.Printf("❌ [MEMORY-API] Failed to search memories: %v", err)
		return serviceError(c, "Failed to search memories", err)
	}

	return c.JSON(result)
}

// ListMemories returns the most recent records, newest first
// GET /memories
func (h *MemoryHandler) ListMemories(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	memories, err := h.memoryStore.ListRecent(ctx, services.DefaultListLimit)
	if err != nil {
		log.Printf("❌ [MEMORY-API] Failed to list memories: %v", err)
		return serviceError(c, "Failed to retrieve memories", err)
	}

	return c.JSON(fiber.Map{
		"memories": memories,
	})
}

// ListSince returns records created after a timestamp, ascending.
// Used by the background poller to discover new work; the advancing cursor
// is the poller's responsibility.
// POST /memories/since
type ListSinceRequest struct {
	Since *float64 `json:"since"`
	Limit int      `json:"limit"`
}

func (h *MemoryHandler) ListSince(c *fiber.Ctx) error {
	var req ListSinceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Since == nil || *req.Since < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Field 'since' must be a number >= 0",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	memories, err := h.memoryStore.ListSince(ctx, int64(*req.Since), req.Limit)
	if err != nil {
		log.Printf("❌ [MEMORY-API] Failed to list memories since %v: %v", *req.Since, err)
		return serviceError(c, "Failed to retrieve memories", err)
	}

	return c.JSON(fiber.Map{
		"memories": memories,
	})
}

// ListTasks returns the flattened task view for the dashboard
// GET /tasks
func (h *MemoryHandler) ListTasks(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	tasks, err := h.memoryService.RecentTasks(ctx)
	if err != nil {
		log.Printf("❌ [MEMORY-API] Failed to list tasks: %v", err)
		return serviceError(c, "Failed to retrieve tasks", err)
	}

	return c.JSON(fiber.Map{
		"tasks": tasks,
	})
}

// serviceError maps pipeline failures to the uniform error envelope. Caller
// precondition failures become client-class rejections; everything else is a
// 500 with the original delegate status/message preserved in the details.
func serviceError(c *fiber.Ctx, message string, err error) error {
	if services.IsInvalidInput(err) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   message,
		"details": err.Error(),
	})
}
