package services

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"echovault/internal/models"
)

// NoRelevantMemoriesAnswer is the canned answer returned when the vector
// query finds nothing. An empty result is a success outcome, not an error.
const NoRelevantMemoriesAnswer = "I couldn't find any relevant memories for your query."

// SearchTopK is how many records the retrieval pipeline fetches.
const SearchTopK = 5

// Ports to the delegated, non-deterministic services and to the store. The
// pipelines assume neither determinism nor idempotence of the delegates;
// tests substitute fakes implementing the same ports.
type (
	// Extractor turns raw text into a structured annotation.
	Extractor interface {
		Extract(ctx context.Context, text string) (*models.ExtractedMemory, error)
	}

	// Embedder turns raw text into a fixed-length dense vector.
	Embedder interface {
		Embed(ctx context.Context, text string) ([]float32, error)
	}

	// Synthesizer turns a query plus retrieved records into an answer.
	Synthesizer interface {
		Synthesize(ctx context.Context, query string, memories []models.ScoredMemory) (string, error)
	}

	// MemoryStore is the append-only record store with a vector index.
	MemoryStore interface {
		Append(ctx context.Context, mem *models.Memory) (string, error)
		ListRecent(ctx context.Context, limit int) ([]models.Memory, error)
		ListSince(ctx context.Context, sinceMs int64, limit int) ([]models.Memory, error)
		VectorQuery(ctx context.Context, vector []float32, k int) ([]models.ScoredMemory, error)
	}

	// ActionStore persists the background agent's side-effect log.
	ActionStore interface {
		Log(ctx context.Context, action *models.AgentAction) (string, error)
		ListRecent(ctx context.Context, limit int) ([]models.AgentAction, error)
	}
)

// MemoryService composes the delegates and the store into the ingestion and
// retrieval pipelines. It holds no persistent state of its own; every
// invocation is stateless given the store.
type MemoryService struct {
	extractor   Extractor
	embedder    Embedder
	synthesizer Synthesizer
	store       MemoryStore
	metrics     *Metrics
}

// NewMemoryService creates a new memory service
func NewMemoryService(extractor Extractor, embedder Embedder, synthesizer Synthesizer, store MemoryStore, metrics *Metrics) *MemoryService {
	return &MemoryService{
		extractor:   extractor,
		embedder:    embedder,
		synthesizer: synthesizer,
		store:       store,
		metrics:     metrics,
	}
}

// AddMemory runs the ingestion pipeline: extraction and embedding (issued
// concurrently, they have no ordering dependency), then a single append. The
// append is the join point; no partial record is ever visible. Either
// delegate failure aborts the whole operation with nothing persisted.
func (s *MemoryService) AddMemory(ctx context.Context, rawText, source string) (string, error) {
	if rawText == "" {
		return "", &InvalidInputError{Field: "text", Reason: "is required"}
	}
	if source == "" {
		source = models.SourceText
	}
	if !models.ValidSource(source) {
		return "", &InvalidInputError{Field: "source", Reason: "must be one of: voice, text, mcp"}
	}

	var (
		extracted *models.ExtractedMemory
		embedding []float32
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		extracted, err = s.extractor.Extract(gctx, rawText)
		return err
	})
	g.Go(func() error {
		var err error
		embedding, err = s.embedder.Embed(gctx, rawText)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	id, err := s.store.Append(ctx, &models.Memory{
		RawText:   rawText,
		Source:    source,
		Summary:   extracted.Summary,
		People:    extracted.People,
		Tasks:     extracted.Tasks,
		Topics:    extracted.Topics,
		Decisions: extracted.Decisions,
		Embedding: embedding,
	})
	if err != nil {
		return "", err
	}

	s.metrics.MemoriesCreated.WithLabelValues(source).Inc()
	log.Printf("🧠 [MEMORY] Added memory %s (source: %s, %d chars)", id, source, len(rawText))
	return id, nil
}

// SearchMemories runs the retrieval pipeline: embed the query, fetch the top
// 5 most similar records, synthesize an answer over them. Zero matches is a
// success with the canned answer and an empty list.
func (s *MemoryService) SearchMemories(ctx context.Context, query string) (*models.SearchResult, error) {
	if query == "" {
		return nil, &InvalidInputError{Field: "query", Reason: "is required"}
	}

	start := time.Now()
	s.metrics.Searches.Inc()

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.VectorQuery(ctx, vector, SearchTopK)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		s.metrics.SearchLatency.Observe(time.Since(start).Seconds())
		return &models.SearchResult{
			Answer:   NoRelevantMemoriesAnswer,
			Memories: []models.ScoredMemory{},
		}, nil
	}

	answer, err := s.synthesizer.Synthesize(ctx, query, matches)
	if err != nil {
		return nil, err
	}

	s.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	log.Printf("🔍 [MEMORY] Answered query with %d matched memories", len(matches))

	return &models.SearchResult{
		Answer:   answer,
		Memories: matches,
	}, nil
}

// RecentTasks flattens the task lists of the most recent records into the
// dashboard task view, newest record first.
func (s *MemoryService) RecentTasks(ctx context.Context) ([]models.TaskItem, error) {
	memories, err := s.store.ListRecent(ctx, DefaultListLimit)
	if err != nil {
		return nil, err
	}

	tasks := []models.TaskItem{}
	for _, mem := range memories {
		for _, task := range mem.Tasks {
			tasks = append(tasks, models.TaskItem{
				Task:      task,
				Source:    mem.Summary,
				CreatedAt: mem.CreatedAt,
			})
		}
	}
	return tasks, nil
}
