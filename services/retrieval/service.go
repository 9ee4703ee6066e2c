package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/repositories"
	"github.com/upb/faq-rag/services"
	"github.com/upb/faq-rag/services/embedding"
	"go.uber.org/zap"
)

// Config holds retrieval tuning
type Config struct {
	// TopK is used when the caller passes k <= 0
	TopK int

	// MinScore drops results scoring below it; -1 keeps everything
	MinScore float64

	// Filter is applied to every search when set
	Filter *repositories.SearchFilter
}

// RetrievalService finds the documents most similar to a question
type RetrievalService struct {
	embedder embedding.Embedder
	store    repositories.DocumentStore
	config   Config
	logger   *zap.Logger
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(embedder embedding.Embedder, store repositories.DocumentStore, config Config, logger *zap.Logger) *RetrievalService {
	if config.TopK <= 0 {
		config.TopK = 3
	}
	return &RetrievalService{
		embedder: embedder,
		store:    store,
		config:   config,
		logger:   logger,
	}
}

// Retrieve embeds the question and returns at most k documents, best first.
// An embedding failure is returned as is; no default vector is substituted.
func (s *RetrievalService) Retrieve(ctx context.Context, question string, k int) (models.RetrievalResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, services.ErrEmptyQuestion
	}
	if k <= 0 {
		k = s.config.TopK
	}

	start := time.Now()
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	result, err := s.store.SimilaritySearch(ctx, vector, k, s.config.Filter)
	if err != nil {
		return nil, err
	}

	kept := make(models.RetrievalResult, 0, len(result))
	for _, sd := range result {
		if sd.Score >= s.config.MinScore {
			kept = append(kept, sd)
		}
	}

	s.logger.Debug("documents retrieved",
		zap.String("store", s.store.Name()),
		zap.Int("k", k),
		zap.Int("found", len(result)),
		zap.Int("kept", len(kept)),
		zap.Duration("latency", time.Since(start)),
	)
	return kept, nil
}

// TopK returns the configured default result size
func (s *RetrievalService) TopK() int {
	return s.config.TopK
}
