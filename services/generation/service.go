package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services"
	"github.com/upb/faq-rag/services/providers"
	"go.uber.org/zap"
)

// NoContextAnswer is returned without calling the model when nothing was retrieved
const NoContextAnswer = "I apologize, but I couldn't find any relevant information to answer your question accurately."

// Config holds the generation model settings
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// GenerationService produces grounded answers from retrieved documents
type GenerationService struct {
	provider providers.Provider
	config   Config
	logger   *zap.Logger
}

// NewGenerationService creates a new GenerationService instance
func NewGenerationService(provider providers.Provider, config Config, logger *zap.Logger) *GenerationService {
	if config.Model == "" {
		config.Model = "gpt-4o"
	}
	return &GenerationService{
		provider: provider,
		config:   config,
		logger:   logger,
	}
}

// Generate answers the question from the retrieved documents with a single model call.
// References are the distinct source URLs of the context in rank order.
func (s *GenerationService) Generate(ctx context.Context, question string, retrieved models.RetrievalResult) (*models.GeneratedAnswer, error) {
	if len(retrieved) == 0 {
		s.logger.Debug("no documents retrieved, skipping model call")
		return &models.GeneratedAnswer{Text: NoContextAnswer, References: []string{}}, nil
	}

	docs := retrieved.Documents()
	req := &providers.ChatRequest{
		Model:       s.config.Model,
		Messages:    BuildMessages(question, docs),
		Temperature: providers.Float64(s.config.Temperature),
		MaxTokens:   s.config.MaxTokens,
	}

	start := time.Now()
	resp, err := s.provider.ChatCompletion(ctx, req)
	if err != nil {
		return nil, services.NewGenerationError("provider call failed", err).
			WithDetail("provider", s.provider.Name()).
			WithDetail("model", s.config.Model)
	}

	text := strings.TrimSpace(resp.Content())
	if text == "" {
		return nil, services.NewGenerationError("model returned empty content", errors.New("empty completion")).
			WithDetail("model", s.config.Model)
	}

	s.logger.Debug("answer generated",
		zap.String("model", s.config.Model),
		zap.Int("context_docs", len(docs)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)),
	)

	return &models.GeneratedAnswer{
		Text:       text,
		References: models.DistinctURLs(docs),
	}, nil
}

// Model returns the configured generation model
func (s *GenerationService) Model() string {
	return s.config.Model
}
