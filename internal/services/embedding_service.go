package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	gocache "github.com/patrickmn/go-cache"

	"echovault/internal/models"
)

// embeddingModel is a fixed constant of the pipeline, not runtime-configurable.
// text-embedding-3-small produces 1536-dimensional vectors.
const embeddingModel = openai.EmbeddingModelTextEmbedding3Small

const (
	embeddingCacheTTL     = 5 * time.Minute
	embeddingCacheCleanup = 10 * time.Minute
)

// EmbeddingService turns raw text into a fixed-length dense vector via the
// embedding delegate. Unlike extraction there is no fallback: a record
// without a valid embedding cannot be placed in the similarity index, so the
// caller must abort rather than store an un-searchable vector.
type EmbeddingService struct {
	client  *openai.Client
	metrics *Metrics

	// Short-TTL result cache so repeated identical texts (typically the
	// same query re-run from the dashboard) skip the delegate round trip.
	cache *gocache.Cache
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(client *openai.Client, metrics *Metrics) *EmbeddingService {
	return &EmbeddingService{
		client:  client,
		metrics: metrics,
		cache:   gocache.New(embeddingCacheTTL, embeddingCacheCleanup),
	}
}

// Embed returns the 1536-dimensional embedding for text. Single attempt; any
// non-success response, transport failure or unexpected dimensionality
// surfaces as a DelegateError.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]float32), nil
	}

	resp, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: embeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		s.metrics.DelegateErrors.WithLabelValues(StageEmbedding).Inc()
		return nil, delegateErr(StageEmbedding, err)
	}
	if len(resp.Data) == 0 {
		s.metrics.DelegateErrors.WithLabelValues(StageEmbedding).Inc()
		return nil, &DelegateError{Stage: StageEmbedding, Message: "no embedding returned"}
	}

	raw := resp.Data[0].Embedding
	if len(raw) != models.EmbeddingDim {
		s.metrics.DelegateErrors.WithLabelValues(StageEmbedding).Inc()
		return nil, &DelegateError{
			Stage:   StageEmbedding,
			Message: fmt.Sprintf("unexpected embedding dimensionality %d, want %d", len(raw), models.EmbeddingDim),
		}
	}

	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v)
	}

	s.cache.Set(key, vector, gocache.DefaultExpiration)
	return vector, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
