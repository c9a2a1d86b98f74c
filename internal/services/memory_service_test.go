package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"echovault/internal/models"
)

// Shared across all test files in this package; promauto registers against
// the default registry and panics on duplicates.
var testMetrics = InitMetrics()

type fakeExtractor struct {
	result *models.ExtractedMemory
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (*models.ExtractedMemory, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &models.ExtractedMemory{
		Summary:   "summary of: " + text,
		People:    []string{},
		Tasks:     []string{},
		Topics:    []string{},
		Decisions: []string{},
	}, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.vector != nil {
		return f.vector, nil
	}
	return unitVector(0), nil
}

type fakeSynthesizer struct {
	answer string
	err    error
	calls  int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, query string, memories []models.ScoredMemory) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// memStore is an in-memory MemoryStore with brute-force cosine similarity,
// standing in for the Atlas vector index.
type memStore struct {
	mu       sync.Mutex
	memories []models.Memory
	nextMs   int64
}

func newMemStore() *memStore {
	return &memStore{nextMs: 1000}
}

func (s *memStore) Append(ctx context.Context, mem *models.Memory) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mem.ID = primitive.NewObjectID()
	mem.CreatedAt = s.nextMs
	s.nextMs++
	s.memories = append(s.memories, *mem)
	return mem.ID.Hex(), nil
}

func (s *memStore) ListRecent(ctx context.Context, limit int) ([]models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Memory(nil), s.memories...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListSince(ctx context.Context, sinceMs int64, limit int) ([]models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Memory
	for _, m := range s.memories {
		if m.CreatedAt > sinceMs {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) VectorQuery(ctx context.Context, vector []float32, k int) ([]models.ScoredMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var scored []models.ScoredMemory
	for _, m := range s.memories {
		scored = append(scored, models.ScoredMemory{Memory: m, Similarity: cosine(vector, m.Embedding)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memories)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// unitVector returns a 1536-dim basis vector along axis i.
func unitVector(i int) []float32 {
	v := make([]float32, models.EmbeddingDim)
	v[i%models.EmbeddingDim] = 1
	return v
}

func newTestService(ex Extractor, em Embedder, sy Synthesizer, store MemoryStore) *MemoryService {
	return NewMemoryService(ex, em, sy, store, testMetrics)
}

func TestAddMemoryValidation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(&fakeExtractor{}, &fakeEmbedder{}, &fakeSynthesizer{}, store)

	tests := []struct {
		name   string
		text   string
		source string
	}{
		{name: "empty text", text: "", source: "text"},
		{name: "unknown source", text: "hello", source: "carrier-pigeon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddMemory(context.Background(), tt.text, tt.source)
			if !IsInvalidInput(err) {
				t.Fatalf("AddMemory(%q, %q) error = %v, want InvalidInputError", tt.text, tt.source, err)
			}
		})
	}
	if store.count() != 0 {
		t.Errorf("store has %d records after rejected inputs, want 0", store.count())
	}
}

func TestAddMemoryDefaultsSource(t *testing.T) {
	store := newMemStore()
	svc := newTestService(&fakeExtractor{}, &fakeEmbedder{}, &fakeSynthesizer{}, store)

	id, err := svc.AddMemory(context.Background(), "note without a source", "")
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	if id == "" {
		t.Fatal("AddMemory returned empty id")
	}

	stored, _ := store.ListRecent(context.Background(), 1)
	if stored[0].Source != models.SourceText {
		t.Errorf("stored source = %q, want %q", stored[0].Source, models.SourceText)
	}
}

func TestAddMemoryNoPartialRecordOnDelegateFailure(t *testing.T) {
	tests := []struct {
		name      string
		extractor Extractor
		embedder  Embedder
		stage     string
	}{
		{
			name:      "extraction fails",
			extractor: &fakeExtractor{err: &DelegateError{Stage: StageExtraction, Status: 503, Message: "unavailable"}},
			embedder:  &fakeEmbedder{},
			stage:     StageExtraction,
		},
		{
			name:      "embedding fails",
			extractor: &fakeExtractor{},
			embedder:  &fakeEmbedder{err: &DelegateError{Stage: StageEmbedding, Status: 429, Message: "rate limited"}},
			stage:     StageEmbedding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestService(tt.extractor, tt.embedder, &fakeSynthesizer{}, store)

			_, err := svc.AddMemory(context.Background(), "some note", "voice")
			if err == nil {
				t.Fatal("AddMemory expected error")
			}
			if got := DelegateStage(err); got != tt.stage {
				t.Errorf("DelegateStage(err) = %q, want %q", got, tt.stage)
			}
			if store.count() != 0 {
				t.Errorf("store has %d records after failed ingestion, want 0", store.count())
			}
		})
	}
}

func TestAddMemoryStoresDerivedFields(t *testing.T) {
	store := newMemStore()
	extractor := &fakeExtractor{result: &models.ExtractedMemory{
		Summary:   "Met Priya about the launch",
		People:    []string{"Priya"},
		Tasks:     []string{"send the launch checklist"},
		Topics:    []string{"launch"},
		Decisions: []string{"ship Friday"},
	}}
	svc := newTestService(extractor, &fakeEmbedder{vector: unitVector(3)}, &fakeSynthesizer{}, store)

	if _, err := svc.AddMemory(context.Background(), "met Priya, ship Friday", "mcp"); err != nil {
		t.Fatalf("AddMemory: %v", err)
	}

	stored, _ := store.ListRecent(context.Background(), 1)
	mem := stored[0]
	if mem.Summary != "Met Priya about the launch" {
		t.Errorf("summary = %q", mem.Summary)
	}
	if len(mem.People) != 1 || mem.People[0] != "Priya" {
		t.Errorf("people = %v", mem.People)
	}
	if len(mem.Embedding) != models.EmbeddingDim {
		t.Errorf("embedding dim = %d, want %d", len(mem.Embedding), models.EmbeddingDim)
	}
	if mem.CreatedAt == 0 {
		t.Error("createdAt not assigned by store")
	}
}

func TestAddMemoryConcurrentDistinctIDs(t *testing.T) {
	store := newMemStore()
	svc := newTestService(&fakeExtractor{}, &fakeEmbedder{}, &fakeSynthesizer{}, store)

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := svc.AddMemory(context.Background(), fmt.Sprintf("note %d", i), "text")
			if err != nil {
				t.Errorf("AddMemory: %v", err)
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate memory id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct ids, want %d", len(seen), n)
	}
	if store.count() != n {
		t.Errorf("store has %d records, want %d", store.count(), n)
	}
}

func TestSearchMemoriesEmptyQuery(t *testing.T) {
	svc := newTestService(&fakeExtractor{}, &fakeEmbedder{}, &fakeSynthesizer{}, newMemStore())
	_, err := svc.SearchMemories(context.Background(), "")
	if !IsInvalidInput(err) {
		t.Fatalf("SearchMemories(\"\") error = %v, want InvalidInputError", err)
	}
}

func TestSearchMemoriesNoMatches(t *testing.T) {
	synth := &fakeSynthesizer{answer: "should not be called"}
	svc := newTestService(&fakeExtractor{}, &fakeEmbedder{}, synth, newMemStore())

	result, err := svc.SearchMemories(context.Background(), "anything at all")
	if err != nil {
		t.Fatalf("SearchMemories: %v", err)
	}
	if result.Answer != NoRelevantMemoriesAnswer {
		t.Errorf("answer = %q, want canned no-match answer", result.Answer)
	}
	if len(result.Memories) != 0 {
		t.Errorf("memories = %d, want 0", len(result.Memories))
	}
	if synth.calls != 0 {
		t.Errorf("synthesizer called %d times on empty store, want 0", synth.calls)
	}
}

func TestSearchMemoriesRanksBySimilarity(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 8; i++ {
		store.Append(context.Background(), &models.Memory{
			RawText:   fmt.Sprintf("note %d", i),
			Source:    "text",
			Summary:   fmt.Sprintf("summary %d", i),
			Embedding: unitVector(i),
		})
	}

	synth := &fakeSynthesizer{answer: "You discussed note 2."}
	// Query vector aligned with record 2's axis.
	svc := newTestService(&fakeExtractor{}, &fakeEmbedder{vector: unitVector(2)}, synth, store)

	result, err := svc.SearchMemories(context.Background(), "what about note 2?")
	if err != nil {
		t.Fatalf("SearchMemories: %v", err)
	}
	if len(result.Memories) != SearchTopK {
		t.Fatalf("got %d memories, want %d", len(result.Memories), SearchTopK)
	}
	if result.Memories[0].Summary != "summary 2" {
		t.Errorf("top match = %q, want summary 2", result.Memories[0].Summary)
	}
	if result.Memories[0].Similarity < result.Memories[1].Similarity {
		t.Error("results not in descending similarity order")
	}
	if result.Answer != "You discussed note 2." {
		t.Errorf("answer = %q", result.Answer)
	}
}

func TestSearchMemoriesSynthesisFailure(t *testing.T) {
	store := newMemStore()
	store.Append(context.Background(), &models.Memory{RawText: "a", Embedding: unitVector(0)})

	synthErr := &DelegateError{Stage: StageSynthesis, Status: 500, Message: "boom"}
	svc := newTestService(&fakeExtractor{}, &fakeEmbedder{}, &fakeSynthesizer{err: synthErr}, store)

	_, err := svc.SearchMemories(context.Background(), "query")
	if err == nil {
		t.Fatal("expected error")
	}
	if DelegateStage(err) != StageSynthesis {
		t.Errorf("DelegateStage = %q, want synthesis", DelegateStage(err))
	}
}

func TestRecentTasksFlattening(t *testing.T) {
	store := newMemStore()
	store.Append(context.Background(), &models.Memory{
		RawText: "old", Summary: "older note",
		Tasks: []string{"task A"}, Embedding: unitVector(0),
	})
	store.Append(context.Background(), &models.Memory{
		RawText: "new", Summary: "newer note",
		Tasks: []string{"task B", "task C"}, Embedding: unitVector(1),
	})

	svc := newTestService(&fakeExtractor{}, &fakeEmbedder{}, &fakeSynthesizer{}, store)
	tasks, err := svc.RecentTasks(context.Background())
	if err != nil {
		t.Fatalf("RecentTasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	// Newest record first, its tasks in order.
	if tasks[0].Task != "task B" || tasks[1].Task != "task C" || tasks[2].Task != "task A" {
		t.Errorf("task order = %v", []string{tasks[0].Task, tasks[1].Task, tasks[2].Task})
	}
	if tasks[0].Source != "newer note" {
		t.Errorf("task source = %q, want the record summary", tasks[0].Source)
	}
}

func TestDelegateErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &DelegateError{Stage: StageEmbedding, Message: "transport", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("DelegateError should unwrap to its cause")
	}
}
