package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBackoff is applied after a 429 without a usable Retry-After
const DefaultBackoff = 10 * time.Second

// Config holds the throttling settings of one backend
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// RateLimitService throttles calls to one external backend (embedding or LLM API).
// It combines a token bucket with a backoff window set after rate-limit responses.
type RateLimitService struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	name    string
	logger  *zap.Logger
}

// NewRateLimitService creates a new RateLimitService instance.
// A non-positive rate disables the token bucket.
func NewRateLimitService(name string, cfg Config, logger *zap.Logger) *RateLimitService {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitService{
		limiter: rate.NewLimiter(limit, burst),
		name:    name,
		logger:  logger,
	}
}

// Wait blocks until a call may be made or ctx is done
func (s *RateLimitService) Wait(ctx context.Context) error {
	s.mu.Lock()
	retryAt := s.retryAt
	s.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		s.logger.Debug("backing off after rate limit",
			zap.String("backend", s.name),
			zap.Duration("wait", wait),
		)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return s.limiter.Wait(ctx)
}

// Allow reports whether a call may be made right now
func (s *RateLimitService) Allow() bool {
	s.mu.Lock()
	retryAt := s.retryAt
	s.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return s.limiter.Allow()
}

// RecordRateLimited opens a backoff window after the backend answered 429
func (s *RateLimitService) RecordRateLimited(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = DefaultBackoff
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	until := time.Now().Add(retryAfter)
	if until.After(s.retryAt) {
		s.retryAt = until
	}
	s.logger.Warn("backend rate limited",
		zap.String("backend", s.name),
		zap.Duration("retry_after", retryAfter),
	)
}

// Name returns the throttled backend name
func (s *RateLimitService) Name() string {
	return s.name
}
