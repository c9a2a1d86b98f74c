package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"echovault/internal/database"
	"echovault/internal/models"
)

// Bounds for the agent action listing.
const (
	DefaultActionLimit = 20
	MaxActionLimit     = 100
)

// ActionStorageService persists the side-effect log the background agent
// writes through the gateway. Actions are created once and never mutated.
type ActionStorageService struct {
	collection *mongo.Collection
}

// NewActionStorageService creates a new action storage service
func NewActionStorageService(mongodb *database.MongoDB) *ActionStorageService {
	return &ActionStorageService{
		collection: mongodb.Collection(database.CollectionAgentActions),
	}
}

// Log inserts a new agent action record and returns its identifier.
func (s *ActionStorageService) Log(ctx context.Context, action *models.AgentAction) (string, error) {
	if action.ActionType == "" {
		return "", &InvalidInputError{Field: "actionType", Reason: "is required"}
	}
	if !models.ValidActionStatus(action.Status) {
		return "", &InvalidInputError{Field: "status", Reason: fmt.Sprintf("unknown status %q", action.Status)}
	}

	action.ID = primitive.NewObjectID()
	action.CreatedAt = time.Now().UnixMilli()

	if _, err := s.collection.InsertOne(ctx, action); err != nil {
		return "", fmt.Errorf("failed to insert agent action: %w", err)
	}

	log.Printf("📝 [AGENT-ACTIONS] Logged %s (%s) for memory %s", action.ActionType, action.Status, action.MemoryID)
	return action.ID.Hex(), nil
}

// ListRecent returns the latest actions, newest first, bounded by limit
// (default 20, cap 100).
func (s *ActionStorageService) ListRecent(ctx context.Context, limit int) ([]models.AgentAction, error) {
	limit = clampLimit(limit, DefaultActionLimit, MaxActionLimit)

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find agent actions: %w", err)
	}
	defer cursor.Close(ctx)

	actions := []models.AgentAction{}
	if err := cursor.All(ctx, &actions); err != nil {
		return nil, fmt.Errorf("failed to decode agent actions: %w", err)
	}

	return actions, nil
}
