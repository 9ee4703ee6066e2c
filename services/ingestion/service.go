// Package ingestion embeds knowledge-base sources and writes them to the document store.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/repositories"
	"github.com/upb/faq-rag/services"
	"github.com/upb/faq-rag/services/embedding"
	"go.uber.org/zap"
)

// Config holds ingestion settings
type Config struct {
	Workers   int
	QueueSize int
	BatchSize int
}

// Report summarizes one ingestion run
type Report struct {
	Received int `json:"received"`
	Skipped  int `json:"skipped"`
	Embedded int `json:"embedded"`
	Written  int `json:"written"`
	Deleted  int `json:"deleted,omitempty"`
}

// IngestionService handles document ingestion
type IngestionService struct {
	embedder embedding.Embedder
	store    repositories.DocumentStore
	config   Config
	logger   *zap.Logger
}

type batchJob struct {
	index int
	texts []string
}

type batchResult struct {
	index   int
	vectors [][]float32
	err     error
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(embedder embedding.Embedder, store repositories.DocumentStore, config Config, logger *zap.Logger) *IngestionService {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.Workers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	return &IngestionService{
		embedder: embedder,
		store:    store,
		config:   config,
		logger:   logger,
	}
}

// Ingest normalizes, deduplicates and embeds sources, then upserts them.
// Any embedding failure aborts the run before anything is written.
// With replace, the existing documents of each ingested source URL are swapped
// for the new ones atomically; a failed write keeps the old documents.
func (s *IngestionService) Ingest(ctx context.Context, sources []models.Source, replace bool) (Report, error) {
	start := time.Now()
	report := Report{Received: len(sources)}

	prepared := prepare(sources)
	report.Skipped = report.Received - len(prepared)
	if len(prepared) == 0 {
		s.logger.Info("nothing to ingest", zap.Int("received", report.Received), zap.Int("skipped", report.Skipped))
		return report, nil
	}

	texts := make([]string, len(prepared))
	for i, src := range prepared {
		texts[i] = src.Content
	}

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		s.logger.Error("ingestion aborted", zap.Error(err))
		return report, err
	}
	report.Embedded = len(vectors)

	docs := make([]*models.Document, len(prepared))
	for i, src := range prepared {
		docs[i] = models.NewDocument(src, vectors[i])
	}

	var written int
	if replace {
		report.Deleted, written, err = s.store.ReplaceSources(ctx, distinctSourceURLs(prepared), docs)
		if err != nil {
			return report, fmt.Errorf("failed to replace documents: %w", err)
		}
	} else {
		written, err = s.store.Upsert(ctx, docs)
		if err != nil {
			return report, fmt.Errorf("failed to write documents: %w", err)
		}
	}
	report.Written = written

	s.logger.Info("ingestion completed",
		zap.String("store", s.store.Name()),
		zap.Int("received", report.Received),
		zap.Int("skipped", report.Skipped),
		zap.Int("embedded", report.Embedded),
		zap.Int("written", report.Written),
		zap.Int("deleted", report.Deleted),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// embedAll fans batches out to a bounded worker pool and reassembles them in input order
func (s *IngestionService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := (len(texts) + s.config.BatchSize - 1) / s.config.BatchSize
	jobs := make(chan batchJob, s.config.QueueSize)
	results := make(chan batchResult, batches)

	var wg sync.WaitGroup
	workers := s.config.Workers
	if workers > batches {
		workers = batches
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					results <- batchResult{index: job.index, err: ctx.Err()}
					continue
				}
				vecs, err := s.embedder.EmbedMany(ctx, job.texts)
				if err == nil && len(vecs) != len(job.texts) {
					err = services.NewEmbeddingBackendError(s.embedder.Name(),
						fmt.Errorf("got %d vectors for %d texts", len(vecs), len(job.texts)))
				}
				if err != nil {
					s.logger.Warn("embedding batch failed", zap.Int("worker", id), zap.Int("batch", job.index), zap.Error(err))
					cancel()
				}
				results <- batchResult{index: job.index, vectors: vecs, err: err}
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for i := 0; i < batches; i++ {
			lo := i * s.config.BatchSize
			hi := lo + s.config.BatchSize
			if hi > len(texts) {
				hi = len(texts)
			}
			select {
			case jobs <- batchJob{index: i, texts: texts[lo:hi]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([][][]float32, batches)
	var firstErr error
	received := 0
	for res := range results {
		received++
		if res.err != nil {
			if firstErr == nil || (ctxErr(firstErr) && !ctxErr(res.err)) {
				firstErr = res.err
			}
			continue
		}
		ordered[res.index] = res.vectors
	}
	if firstErr == nil && received < batches {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		return nil, firstErr
	}

	out := make([][]float32, 0, len(texts))
	for _, vecs := range ordered {
		out = append(out, vecs...)
	}
	return out, nil
}

func ctxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// prepare normalizes content and drops empty and duplicate-in-batch sources
func prepare(sources []models.Source) []models.Source {
	seen := make(map[string]struct{}, len(sources))
	out := make([]models.Source, 0, len(sources))
	for _, src := range sources {
		url := strings.TrimSpace(src.SourceURL)
		content := models.NormalizeContent(src.Content)
		if url == "" || content == "" {
			continue
		}
		key := url + "#" + models.ChunkID(content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.Source{
			SourceURL: url,
			Title:     strings.TrimSpace(src.Title),
			Content:   content,
		})
	}
	return out
}

func distinctSourceURLs(sources []models.Source) []string {
	seen := make(map[string]struct{})
	urls := make([]string, 0)
	for _, src := range sources {
		if _, ok := seen[src.SourceURL]; ok {
			continue
		}
		seen[src.SourceURL] = struct{}{}
		urls = append(urls, src.SourceURL)
	}
	return urls
}
