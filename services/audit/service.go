package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/faq-rag/internal/redact"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/repositories"
	"github.com/upb/faq-rag/services/events"
	"go.uber.org/zap"
)

// AuditEvent is one finished question waiting to be persisted
type AuditEvent struct {
	Record *models.AnswerRecord
}

// AuditService persists answer records and publishes answer events in the background
type AuditService struct {
	answerRepo  repositories.AnswerRepository
	publisher   events.Publisher
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	timeout     time.Duration
	redactPII   bool
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	stopped     bool
	mu          sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int           // Size of the event buffer channel
	WorkerCount int           // Number of concurrent workers
	Timeout     time.Duration // Per-event write deadline
	RedactPII   bool          // Mask personal data in questions and answers before they leave the process
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
		Timeout:     5 * time.Second,
		RedactPII:   true,
	}
}

// NewAuditService creates a new AuditService instance.
// answerRepo and publisher may be nil; the matching sink is then skipped.
func NewAuditService(answerRepo repositories.AnswerRepository, publisher events.Publisher, logger *zap.Logger, config Config) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())

	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &AuditService{
		answerRepo:  answerRepo,
		publisher:   publisher,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		timeout:     config.Timeout,
		redactPII:   config.RedactPII,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize),
		zap.Bool("persist", s.answerRepo != nil),
		zap.Bool("publish", s.publisher != nil))

	return nil
}

// Stop drains pending events, waiting at most timeout
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	// no more events will be accepted
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// RecordAnswer queues a finished answer without blocking.
// The record is dropped when the buffer is full.
func (s *AuditService) RecordAnswer(rec *models.AnswerRecord) error {
	return s.LogEvent(&AuditEvent{Record: rec})
}

// LogEvent queues an event (non-blocking)
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("request_id", event.Record.RequestID),
			zap.String("state", string(event.Record.State)))
		return fmt.Errorf("audit event buffer full")
	}
}

// LogEventBlocking waits until the event is queued or ctx is cancelled
func (s *AuditService) LogEventBlocking(ctx context.Context, event *AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.eventChan <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("audit service stopped")
	}
}

func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("request_id", event.Record.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent writes the record and publishes its event; one sink failing does not skip the other
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rec := event.Record
	if s.redactPII {
		rec = redactRecord(rec)
	}

	var errs []error
	if s.answerRepo != nil {
		if err := s.answerRepo.Insert(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("failed to insert answer record: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAnswer(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish answer event: %w", err))
		}
	}
	return errors.Join(errs...)
}

// redactRecord returns a copy of rec with personal data masked
func redactRecord(rec *models.AnswerRecord) *models.AnswerRecord {
	out := *rec
	out.Question = redact.String(rec.Question)
	out.Answer = redact.String(rec.Answer)
	return &out
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}
