package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EmbeddingDim is the dimensionality of the dense vector every stored record
// carries. It is fixed by the embedding model (text-embedding-3-small).
const EmbeddingDim = 1536

// Memory represents a single captured note turned into a structured record.
// Records are append-only: every field is set once at creation and never
// edited afterward.
type Memory struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	RawText string             `bson:"rawText" json:"rawText"` // original captured text, immutable
	Source  string             `bson:"source" json:"source"`   // "voice", "text" or "mcp"

	// Derived structure from the extraction delegate (or its fallback).
	Summary   string   `bson:"summary" json:"summary"`
	People    []string `bson:"people" json:"people"`
	Tasks     []string `bson:"tasks" json:"tasks"`
	Topics    []string `bson:"topics" json:"topics"`
	Decisions []string `bson:"decisions" json:"decisions"`

	// Dense vector for similarity search. Never serialized to API clients.
	Embedding []float32 `bson:"embedding" json:"-"`

	// Epoch milliseconds, assigned by the store at append time. Sole
	// ordering key; ties broken by _id insertion order.
	CreatedAt int64 `bson:"createdAt" json:"createdAt"`
}

// ScoredMemory pairs a retrieved record with its similarity score.
type ScoredMemory struct {
	Memory     `bson:",inline"`
	Similarity float64 `bson:"score" json:"similarity"`
}

// SearchResult is the outcome of the retrieval pipeline.
type SearchResult struct {
	Answer   string         `json:"answer"`
	Memories []ScoredMemory `json:"memories"`
}

// TaskItem is a single task surfaced on the dashboard task list.
type TaskItem struct {
	Task      string `json:"task"`
	Source    string `json:"source"` // summary of the record the task came from
	CreatedAt int64  `json:"createdAt"`
}

// Memory source constants
const (
	SourceVoice = "voice"
	SourceText  = "text"
	SourceMCP   = "mcp"
)

// ValidSource reports whether s is a recognized memory source.
func ValidSource(s string) bool {
	switch s {
	case SourceVoice, SourceText, SourceMCP:
		return true
	default:
		return false
	}
}

// ExtractedMemory represents the structured output of the extraction delegate.
type ExtractedMemory struct {
	Summary   string   `json:"summary"`
	People    []string `json:"people"`
	Tasks     []string `json:"tasks"`
	Topics    []string `json:"topics"`
	Decisions []string `json:"decisions"`
}

// AgentAction records a side-effecting action the background agent executed
// for a memory. Created once through the gateway's logging endpoint, never
// mutated, read in descending-time order for display.
type AgentAction struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ActionType    string             `bson:"actionType" json:"actionType"`
	Status        string             `bson:"status" json:"status"` // "success", "failed" or "skipped"
	MemoryID      string             `bson:"memoryId,omitempty" json:"memoryId,omitempty"`
	MemorySummary string             `bson:"memorySummary,omitempty" json:"memorySummary,omitempty"`
	Details       map[string]any     `bson:"details,omitempty" json:"details,omitempty"`
	CreatedAt     int64              `bson:"createdAt" json:"createdAt"`
}

// Agent action status constants
const (
	ActionStatusSuccess = "success"
	ActionStatusFailed  = "failed"
	ActionStatusSkipped = "skipped"
)

// ValidActionStatus reports whether s is a recognized action status.
func ValidActionStatus(s string) bool {
	switch s {
	case ActionStatusSuccess, ActionStatusFailed, ActionStatusSkipped:
		return true
	default:
		return false
	}
}
