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

// List bounds for the store's read queries.
const (
	DefaultListLimit = 50
	MaxSinceLimit    = 200
)

// MemoryStorageService is the append-only record store with a dense-vector
// index for similarity queries. It exclusively owns persisted records:
// identifiers and createdAt ordering are assigned here at append time, so
// concurrent appends serialize only at this single point.
type MemoryStorageService struct {
	collection *mongo.Collection
}

// NewMemoryStorageService creates a new memory storage service
func NewMemoryStorageService(mongodb *database.MongoDB) *MemoryStorageService {
	return &MemoryStorageService{
		collection: mongodb.Collection(database.CollectionMemories),
	}
}

// Append inserts a new record, assigns its identifier and creation timestamp,
// and returns the identifier. It never rejects on content; only schema
// violations (missing required field, wrong embedding arity) are errors.
func (s *MemoryStorageService) Append(ctx context.Context, mem *models.Memory) (string, error) {
	if err := validateRecord(mem); err != nil {
		return "", err
	}
	normalizeRecord(mem)

	mem.ID = primitive.NewObjectID()
	mem.CreatedAt = time.Now().UnixMilli()

	if _, err := s.collection.InsertOne(ctx, mem); err != nil {
		return "", fmt.Errorf("failed to insert memory: %w", err)
	}

	log.Printf("✅ [MEMORY-STORE] Appended memory (ID: %s, Source: %s)", mem.ID.Hex(), mem.Source)
	return mem.ID.Hex(), nil
}

// ListRecent returns the most-recently-created records first, bounded by
// limit (default 50).
func (s *MemoryStorageService) ListRecent(ctx context.Context, limit int) ([]models.Memory, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find memories: %w", err)
	}
	defer cursor.Close(ctx)

	memories := []models.Memory{}
	if err := cursor.All(ctx, &memories); err != nil {
		return nil, fmt.Errorf("failed to decode memories: %w", err)
	}

	return memories, nil
}

// ListSince returns records with createdAt strictly greater than sinceMs in
// ascending creation order, bounded by limit (default 50, hard cap 200).
// The store only filters and bounds; the advancing cursor is the caller's
// responsibility.
func (s *MemoryStorageService) ListSince(ctx context.Context, sinceMs int64, limit int) ([]models.Memory, error) {
	limit = clampLimit(limit, DefaultListLimit, MaxSinceLimit)

	filter := bson.M{"createdAt": bson.M{"$gt": sinceMs}}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find memories since %d: %w", sinceMs, err)
	}
	defer cursor.Close(ctx)

	memories := []models.Memory{}
	if err := cursor.All(ctx, &memories); err != nil {
		return nil, fmt.Errorf("failed to decode memories: %w", err)
	}

	return memories, nil
}

// VectorQuery performs approximate nearest-neighbor search against the
// embedding index and returns the k most similar records, highest similarity
// first. Similarity is cosine, as configured on the search index; scores are
// surfaced via vectorSearchScore.
func (s *MemoryStorageService) VectorQuery(ctx context.Context, vector []float32, k int) ([]models.ScoredMemory, error) {
	if len(vector) != models.EmbeddingDim {
		return nil, fmt.Errorf("query vector has %d dimensions, want %d", len(vector), models.EmbeddingDim)
	}
	if k <= 0 {
		k = 5
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         database.VectorIndexName,
			"path":          "embedding",
			"queryVector":   vector,
			"numCandidates": k * 20,
			"limit":         k,
		}}},
		{{Key: "$addFields", Value: bson.M{
			"score": bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}
	defer cursor.Close(ctx)

	matches := []models.ScoredMemory{}
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, fmt.Errorf("failed to decode vector search results: %w", err)
	}

	return matches, nil
}

// clampLimit resolves a caller-supplied page size: non-positive falls back to
// def, anything above max is capped at max.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// validateRecord checks the append schema: required fields present, embedding
// of the declared dimensionality.
func validateRecord(mem *models.Memory) error {
	if mem.RawText == "" {
		return &InvalidInputError{Field: "rawText", Reason: "is required"}
	}
	if !models.ValidSource(mem.Source) {
		return &InvalidInputError{Field: "source", Reason: fmt.Sprintf("unknown source %q", mem.Source)}
	}
	if len(mem.Embedding) != models.EmbeddingDim {
		return &InvalidInputError{Field: "embedding", Reason: fmt.Sprintf("has %d dimensions, want %d", len(mem.Embedding), models.EmbeddingDim)}
	}
	return nil
}

// normalizeRecord replaces nil derived lists with empty slices. The store
// guarantees presence, not uniqueness.
func normalizeRecord(mem *models.Memory) {
	if mem.People == nil {
		mem.People = []string{}
	}
	if mem.Tasks == nil {
		mem.Tasks = []string{}
	}
	if mem.Topics == nil {
		mem.Topics = []string{}
	}
	if mem.Decisions == nil {
		mem.Decisions = []string{}
	}
}
