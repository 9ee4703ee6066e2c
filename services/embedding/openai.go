package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/sashabaranov/go-openai"
	"github.com/upb/faq-rag/services"
	"go.uber.org/zap"
)

const openAIBackend = "openai"

// DefaultOpenAIModel is the hosted embedding model used when none is configured
const DefaultOpenAIModel = "text-embedding-ada-002"

// openAIDimensions lists the vector size of known hosted models
var openAIDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// OpenAIEmbedder embeds text through the OpenAI embeddings API
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension atomic.Int64
	opts      Options
	logger    *zap.Logger
}

// NewOpenAIEmbedder creates a hosted embedder. baseURL may be empty.
func NewOpenAIEmbedder(apiKey, baseURL, model string, opts Options, logger *zap.Logger) *OpenAIEmbedder {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{}

	e := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		opts:   opts,
		logger: logger,
	}
	e.dimension.Store(int64(openAIDimensions[model]))
	return e
}

// Name returns the backend name
func (e *OpenAIEmbedder) Name() string {
	return openAIBackend
}

// Dimension returns the vector size of the configured model
func (e *OpenAIEmbedder) Dimension() int {
	return int(e.dimension.Load())
}

// Embed embeds one text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds texts in batches, preserving input order
func (e *OpenAIEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vecs, err := embedInBatches(ctx, texts, e.opts.BatchSize, e.embedBatch)
	if err != nil {
		e.logger.Error("embedding failed",
			zap.String("backend", openAIBackend),
			zap.String("model", e.model),
			zap.Int("inputs", len(texts)),
			zap.Error(err),
		)
		return nil, services.NewEmbeddingBackendError(openAIBackend, err)
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var resp openai.EmbeddingResponse
	err := withRetry(ctx, e.opts, e.logger, openAIBackend, func(ctx context.Context) error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(e.model),
		})
		return classifyOpenAIError(err)
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	if len(out) > 0 && len(out[0]) > 0 {
		e.dimension.CompareAndSwap(0, int64(len(out[0])))
	}
	return out, nil
}

// classifyOpenAIError marks transport failures, 429 and 5xx as retryable
func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &retryable{err: err, rateLimit: true}
		}
		if apiErr.HTTPStatusCode >= 500 {
			return &retryable{err: err}
		}
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &retryable{err: err, rateLimit: true}
		}
		if reqErr.HTTPStatusCode >= 500 {
			return &retryable{err: err}
		}
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	return &retryable{err: err}
}
