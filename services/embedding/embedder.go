// Package embedding turns text into fixed-dimension vectors through a hosted or open-source backend.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upb/faq-rag/config"
	"github.com/upb/faq-rag/services"
	"go.uber.org/zap"
)

// Embedder maps text to vectors of a fixed dimension.
// Every failure is reported as an embedding backend error; a zero vector is never returned.
type Embedder interface {
	// Name identifies the backend (openai, huggingface)
	Name() string

	// Dimension is the vector size, 0 until known for unlisted models
	Dimension() int

	// Embed embeds one text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds texts preserving input order. One failed batch fails the whole call.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Limiter throttles backend calls
type Limiter interface {
	Wait(ctx context.Context) error
	RecordRateLimited(retryAfter time.Duration)
}

// Options are the call policies shared by every backend
type Options struct {
	BatchSize  int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	Limiter    Limiter
}

var errEmptyInput = errors.New("cannot embed empty text")

// New builds the embedder selected by cfg.Backend
func New(cfg config.EmbeddingConfig, limiter Limiter, logger *zap.Logger) (Embedder, error) {
	opts := Options{
		BatchSize:  cfg.BatchSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Timeout:    cfg.Timeout,
		Limiter:    limiter,
	}

	switch strings.ToLower(cfg.Backend) {
	case config.EmbeddingBackendOpenAI:
		return NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, opts, logger), nil
	case config.EmbeddingBackendHuggingFace:
		return NewHuggingFaceEmbedder(cfg.HF.APIKey, cfg.HF.BaseURL, cfg.HF.Model, opts, logger), nil
	default:
		return nil, services.NewConfigurationError(fmt.Sprintf("unknown embedding backend %q", cfg.Backend))
	}
}

// embedFunc embeds one batch; the result must be in input order
type embedFunc func(ctx context.Context, batch []string) ([][]float32, error)

// embedInBatches splits texts by batchSize and reassembles the vectors in input order.
// The first failing batch aborts the call.
func embedInBatches(ctx context.Context, texts []string, batchSize int, fn embedFunc) ([][]float32, error) {
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, errEmptyInput
		}
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("batch %d-%d: backend returned %d vectors for %d inputs", start, end, len(vecs), end-start)
		}
		for i, v := range vecs {
			if len(v) == 0 {
				return nil, fmt.Errorf("batch %d-%d: empty vector at position %d", start, end, i)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// retryable marks a failure that may succeed on a later attempt
type retryable struct {
	err        error
	retryAfter time.Duration
	rateLimit  bool
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

// withRetry runs fn up to MaxRetries+1 times with a linearly growing delay.
// Only errors wrapped in *retryable are retried.
func withRetry(ctx context.Context, opts Options, logger *zap.Logger, backend string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, opts.RetryDelay*time.Duration(attempt)); err != nil {
				return err
			}
			logger.Debug("retrying embedding call",
				zap.String("backend", backend),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
		}
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if opts.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		var r *retryable
		if !errors.As(err, &r) || ctx.Err() != nil {
			return err
		}
		if r.rateLimit && opts.Limiter != nil {
			opts.Limiter.RecordRateLimited(r.retryAfter)
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
