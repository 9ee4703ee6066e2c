package repositories

import (
	"context"
	"time"

	"github.com/upb/faq-rag/models"
)

// timeoutStore bounds every call of the wrapped store with a deadline
type timeoutStore struct {
	DocumentStore
	timeout time.Duration
}

// WithTimeout wraps store so each call gets its own deadline.
// A non-positive timeout returns store unchanged.
func WithTimeout(store DocumentStore, timeout time.Duration) DocumentStore {
	if timeout <= 0 {
		return store
	}
	return &timeoutStore{DocumentStore: store, timeout: timeout}
}

func (s *timeoutStore) Upsert(ctx context.Context, docs []*models.Document) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.DocumentStore.Upsert(ctx, docs)
}

func (s *timeoutStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter *SearchFilter) (models.RetrievalResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.DocumentStore.SimilaritySearch(ctx, vector, k, filter)
}

func (s *timeoutStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.DocumentStore.Count(ctx)
}

func (s *timeoutStore) DeleteBySource(ctx context.Context, sourceURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.DocumentStore.DeleteBySource(ctx, sourceURL)
}

func (s *timeoutStore) ReplaceSources(ctx context.Context, sourceURLs []string, docs []*models.Document) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.DocumentStore.ReplaceSources(ctx, sourceURLs, docs)
}

func (s *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.DocumentStore.Ping(ctx)
}
