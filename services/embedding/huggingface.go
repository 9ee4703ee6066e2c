package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/upb/faq-rag/services"
	"go.uber.org/zap"
)

const (
	huggingFaceBackend = "huggingface"

	// DefaultHuggingFaceBaseURL is the hosted inference API feature-extraction pipeline
	DefaultHuggingFaceBaseURL = "https://api-inference.huggingface.co/pipeline/feature-extraction"

	// DefaultHuggingFaceModel is the open-source sentence embedding model
	DefaultHuggingFaceModel = "sentence-transformers/all-MiniLM-L6-v2"
)

var huggingFaceDimensions = map[string]int{
	"sentence-transformers/all-MiniLM-L6-v2":  384,
	"sentence-transformers/all-mpnet-base-v2": 768,
}

// HuggingFaceEmbedder calls a feature-extraction endpoint with a bearer token
type HuggingFaceEmbedder struct {
	apiKey     string
	endpoint   string
	model      string
	dimension  atomic.Int64
	httpClient *http.Client
	opts       Options
	logger     *zap.Logger
}

// NewHuggingFaceEmbedder creates an open-source model embedder
func NewHuggingFaceEmbedder(apiKey, baseURL, model string, opts Options, logger *zap.Logger) *HuggingFaceEmbedder {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceBaseURL
	}
	if model == "" {
		model = DefaultHuggingFaceModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &HuggingFaceEmbedder{
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(baseURL, "/") + "/" + model,
		model:      model,
		httpClient: &http.Client{},
		opts:       opts,
		logger:     logger,
	}
	e.dimension.Store(int64(huggingFaceDimensions[model]))
	return e
}

// Name returns the backend name
func (e *HuggingFaceEmbedder) Name() string {
	return huggingFaceBackend
}

// Dimension returns the vector size of the configured model
func (e *HuggingFaceEmbedder) Dimension() int {
	return int(e.dimension.Load())
}

// Embed embeds one text
func (e *HuggingFaceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds texts in batches, preserving input order
func (e *HuggingFaceEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vecs, err := embedInBatches(ctx, texts, e.opts.BatchSize, e.embedBatch)
	if err != nil {
		e.logger.Error("embedding failed",
			zap.String("backend", huggingFaceBackend),
			zap.String("model", e.model),
			zap.Int("inputs", len(texts)),
			zap.Error(err),
		)
		return nil, services.NewEmbeddingBackendError(huggingFaceBackend, err)
	}
	return vecs, nil
}

type featureExtractionRequest struct {
	Inputs  []string        `json:"inputs"`
	Options map[string]bool `json:"options,omitempty"`
}

func (e *HuggingFaceEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(featureExtractionRequest{
		Inputs:  batch,
		Options: map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var vecs [][]float32
	err = withRetry(ctx, e.opts, e.logger, huggingFaceBackend, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if e.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.apiKey)
		}

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return &retryable{err: fmt.Errorf("request failed: %w", err)}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return &retryable{err: fmt.Errorf("read response: %w", err)}
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, truncate(string(respBody), 200))
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return &retryable{err: statusErr, rateLimit: true, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
			case resp.StatusCode >= 500:
				return &retryable{err: statusErr}
			default:
				return statusErr
			}
		}

		if err := json.Unmarshal(respBody, &vecs); err != nil {
			return fmt.Errorf("decode embeddings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(vecs) > 0 && len(vecs[0]) > 0 {
		e.dimension.CompareAndSwap(0, int64(len(vecs[0])))
	}
	return vecs, nil
}

func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
