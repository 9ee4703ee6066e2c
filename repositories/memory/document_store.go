// Package memory provides an in-process document store used for tests, the CLI and small corpora.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/upb/faq-rag/internal/vectors"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/repositories"
	"github.com/upb/faq-rag/services"
	"go.uber.org/zap"
)

const storeName = "memory"

// DocumentStore keeps documents in a map keyed by (source_url, chunk_id).
type DocumentStore struct {
	mu        sync.RWMutex
	docs      map[string]*models.Document
	order     []string
	dimension int
	logger    *zap.Logger
}

// NewDocumentStore creates an empty store. A dimension of 0 is fixed by the first upsert.
func NewDocumentStore(dimension int, logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{
		docs:      make(map[string]*models.Document),
		dimension: dimension,
		logger:    logger,
	}
}

// Name returns the backend name
func (s *DocumentStore) Name() string {
	return storeName
}

// Upsert replaces documents with the same key. Either every document is written or none is.
func (s *DocumentStore) Upsert(ctx context.Context, docs []*models.Document) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDimensionLocked(docs); err != nil {
		return 0, err
	}
	s.writeLocked(docs)

	s.logger.Debug("documents upserted", zap.Int("count", len(docs)), zap.Int("total", len(s.docs)))
	return len(docs), nil
}

// ReplaceSources swaps the documents of sourceURLs for docs under a single lock
func (s *DocumentStore) ReplaceSources(ctx context.Context, sourceURLs []string, docs []*models.Document) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDimensionLocked(docs); err != nil {
		return 0, 0, err
	}
	deleted := 0
	for _, url := range sourceURLs {
		deleted += s.deleteLocked(url)
	}
	s.writeLocked(docs)

	s.logger.Debug("sources replaced",
		zap.Int("sources", len(sourceURLs)),
		zap.Int("deleted", deleted),
		zap.Int("written", len(docs)))
	return deleted, len(docs), nil
}

// checkDimensionLocked fixes the store dimension on first write and rejects mismatches
func (s *DocumentStore) checkDimensionLocked(docs []*models.Document) error {
	dim := s.dimension
	for _, doc := range docs {
		if dim == 0 {
			dim = len(doc.Embedding)
		}
		if len(doc.Embedding) == 0 || len(doc.Embedding) != dim {
			return services.NewDomainError(services.ErrorTypeValidation, "embedding dimension mismatch", nil).
				WithDetail("expected", dim).
				WithDetail("got", len(doc.Embedding)).
				WithDetail("source_url", doc.SourceURL)
		}
	}
	s.dimension = dim
	return nil
}

func (s *DocumentStore) writeLocked(docs []*models.Document) {
	for _, doc := range docs {
		key := doc.Key()
		stored := *doc
		stored.Embedding = append([]float32(nil), doc.Embedding...)
		if existing, ok := s.docs[key]; ok {
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
		} else {
			s.order = append(s.order, key)
		}
		s.docs[key] = &stored
	}
}

func (s *DocumentStore) deleteLocked(sourceURL string) int {
	kept := s.order[:0]
	deleted := 0
	for _, key := range s.order {
		if s.docs[key].SourceURL == sourceURL {
			delete(s.docs, key)
			deleted++
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
	return deleted
}

// SimilaritySearch ranks a snapshot of the corpus by cosine similarity.
func (s *DocumentStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter *repositories.SearchFilter) (models.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return models.RetrievalResult{}, nil
	}

	s.mu.RLock()
	snapshot := make([]*models.Document, 0, len(s.order))
	for _, key := range s.order {
		doc := s.docs[key]
		if filter != nil && filter.SourceURLPrefix != "" && !strings.HasPrefix(doc.SourceURL, filter.SourceURLPrefix) {
			continue
		}
		snapshot = append(snapshot, doc)
	}
	s.mu.RUnlock()

	candidates := make([][]float32, len(snapshot))
	for i, doc := range snapshot {
		candidates[i] = doc.Embedding
	}

	ranked := vectors.TopK(vector, candidates, k)
	result := make(models.RetrievalResult, 0, len(ranked))
	for _, r := range ranked {
		doc := *snapshot[r.Index]
		result = append(result, models.ScoredDocument{Document: &doc, Score: r.Score})
	}
	return result, nil
}

// Count returns the number of stored documents
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// DeleteBySource removes every document of sourceURL
func (s *DocumentStore) DeleteBySource(ctx context.Context, sourceURL string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(sourceURL), nil
}

// Ping always succeeds
func (s *DocumentStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *DocumentStore) Close() error {
	return nil
}

var _ repositories.DocumentStore = (*DocumentStore)(nil)
