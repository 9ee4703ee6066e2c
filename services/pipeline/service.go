// Package pipeline runs one question through retrieval, generation and evaluation
// with a graded failure policy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services"
	"go.uber.org/zap"
)

// Retriever finds the context documents of a question
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) (models.RetrievalResult, error)
}

// Generator answers a question from retrieved documents
type Generator interface {
	Generate(ctx context.Context, question string, retrieved models.RetrievalResult) (*models.GeneratedAnswer, error)
}

// Evaluator scores an answer; it reports problems through the degraded flag
type Evaluator interface {
	Evaluate(ctx context.Context, question, answer string, contextDocs []*models.Document, references []string) *models.EvaluationResult
}

// Recorder receives every finished question without blocking it
type Recorder interface {
	RecordAnswer(rec *models.AnswerRecord) error
}

// Config holds stage limits
type Config struct {
	TopK              int
	DefaultScore      float64
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	EvaluationTimeout time.Duration
}

// PipelineService orchestrates the question answering pipeline
type PipelineService struct {
	retriever Retriever
	generator Generator
	evaluator Evaluator
	recorder  Recorder
	config    Config
	logger    *zap.Logger
}

// NewPipelineService creates a new pipeline service with all dependencies.
// recorder may be nil.
func NewPipelineService(
	retriever Retriever,
	generator Generator,
	evaluator Evaluator,
	recorder Recorder,
	config Config,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		retriever: retriever,
		generator: generator,
		evaluator: evaluator,
		recorder:  recorder,
		config:    config,
		logger:    logger,
	}
}

// AnswerQuestion runs RECEIVED → RETRIEVING → GENERATING → EVALUATING → COMPLETE.
// The response is never nil. The error is non-nil exactly when the state is FAILED:
// a validation error for a blank question, the store error when the store is
// unreachable, or a generation error.
func (s *PipelineService) AnswerQuestion(ctx context.Context, question string) (*Response, error) {
	pctx := &PipelineContext{
		RequestID: RequestIDFromContext(ctx),
		Question:  strings.TrimSpace(question),
		StartTime: time.Now(),
		State:     StateReceived,
	}
	if pctx.RequestID == "" {
		pctx.RequestID = uuid.New().String()
	}
	log := s.logger.With(zap.String("request_id", pctx.RequestID))

	log.Info("question received", zap.Int("question_length", len(pctx.Question)))

	if pctx.Question == "" {
		resp := s.fail(pctx, ErrCodeValidation, InvalidQuestionAnswer, services.ErrEmptyQuestion)
		s.record(log, pctx, resp)
		return resp, services.ErrEmptyQuestion
	}

	// Step 1: retrieve context; anything but an unreachable store degrades to empty context
	s.transition(log, pctx, StateRetrieving)
	if err := s.retrieve(ctx, pctx); err != nil {
		log.Error("document store unavailable", zap.Error(err))
		resp := s.fail(pctx, ErrCodeStoreUnavailable, ApologyAnswer, err)
		s.record(log, pctx, resp)
		return resp, err
	}

	// Step 2: generate
	s.transition(log, pctx, StateGenerating)
	if err := s.generate(ctx, pctx); err != nil {
		log.Error("generation failed", zap.Error(err))
		resp := s.fail(pctx, ErrCodeGenerationFailed, ApologyAnswer, err)
		s.record(log, pctx, resp)
		return resp, err
	}

	// Step 3: evaluate; never fails the request
	s.transition(log, pctx, StateEvaluating)
	s.evaluate(ctx, log, pctx)

	s.transition(log, pctx, StateComplete)
	resp := &Response{
		RequestID:  pctx.RequestID,
		Answer:     pctx.Answer.Text,
		References: pctx.Answer.References,
		Evaluation: pctx.Evaluation,
		Success:    true,
		Degraded:   pctx.Evaluation.Degraded || pctx.RetrievalError != nil,
		State:      StateComplete,
		LatencyMs:  int(time.Since(pctx.StartTime).Milliseconds()),
	}

	log.Info("question answered",
		zap.Int("references", len(resp.References)),
		zap.Float64("overall_confidence", resp.Evaluation.OverallConfidence),
		zap.String("verdict", string(resp.Evaluation.Verdict)),
		zap.Bool("degraded", resp.Degraded),
		zap.Int("latency_ms", resp.LatencyMs))

	s.record(log, pctx, resp)
	return resp, nil
}

// retrieve fills pctx.Retrieved. Only a store outage is returned as an error.
func (s *PipelineService) retrieve(ctx context.Context, pctx *PipelineContext) error {
	stageCtx, cancel := withStageTimeout(ctx, s.config.RetrievalTimeout)
	defer cancel()

	result, err := s.retriever.Retrieve(stageCtx, pctx.Question, s.config.TopK)
	if err != nil {
		if services.IsStoreUnavailableError(err) {
			return err
		}
		s.logger.Warn("retrieval failed, continuing without context",
			zap.String("request_id", pctx.RequestID),
			zap.Error(err))
		pctx.RetrievalError = err
		result = models.RetrievalResult{}
	}
	pctx.Retrieved = result
	return nil
}

func (s *PipelineService) generate(ctx context.Context, pctx *PipelineContext) error {
	stageCtx, cancel := withStageTimeout(ctx, s.config.GenerationTimeout)
	defer cancel()

	answer, err := s.generator.Generate(stageCtx, pctx.Question, pctx.Retrieved)
	if err != nil {
		if !services.IsGenerationError(err) {
			err = services.NewGenerationError("answer generation failed", err)
		}
		return err
	}
	if answer.References == nil {
		answer.References = []string{}
	}
	pctx.Answer = answer
	return nil
}

func (s *PipelineService) evaluate(ctx context.Context, log *zap.Logger, pctx *PipelineContext) {
	stageCtx, cancel := withStageTimeout(ctx, s.config.EvaluationTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("evaluation panicked", zap.Any("panic", r))
			pctx.Evaluation = s.degradedEvaluation(fmt.Sprintf("evaluation panicked: %v", r))
		}
	}()

	result := s.evaluator.Evaluate(stageCtx, pctx.Question, pctx.Answer.Text, pctx.Retrieved.Documents(), pctx.Answer.References)
	if result == nil {
		result = s.degradedEvaluation("evaluator returned no result")
	}
	pctx.Evaluation = result
}

func (s *PipelineService) degradedEvaluation(reason string) *models.EvaluationResult {
	result := models.NewDefaultEvaluation(s.config.DefaultScore)
	result.Degraded = true
	result.RawJudgeResponse = "Evaluation failed: " + reason
	return result
}

// fail builds the FAILED response: fixed answer, no references, zeroed scores
func (s *PipelineService) fail(pctx *PipelineContext, code, answer string, err error) *Response {
	pctx.State = StateFailed
	message := err.Error()
	var de *services.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	return &Response{
		RequestID:  pctx.RequestID,
		Answer:     answer,
		References: []string{},
		Evaluation: models.NewDefaultEvaluation(s.config.DefaultScore),
		Success:    false,
		Error:      message,
		ErrorCode:  code,
		State:      StateFailed,
		LatencyMs:  int(time.Since(pctx.StartTime).Milliseconds()),
	}
}

func (s *PipelineService) transition(log *zap.Logger, pctx *PipelineContext, next State) {
	log.Debug("pipeline transition", zap.String("from", string(pctx.State)), zap.String("to", string(next)))
	pctx.State = next
}

// record hands the finished question to the recorder; failures are only logged
func (s *PipelineService) record(log *zap.Logger, pctx *PipelineContext, resp *Response) {
	if s.recorder == nil {
		return
	}

	rec := models.NewAnswerRecord(pctx.RequestID, pctx.Question)
	if resp.State == StateComplete {
		rec.MarkAsCompleted(resp.Answer, resp.References, resp.Evaluation, resp.LatencyMs)
		rec.Degraded = resp.Degraded
	} else {
		rec.MarkAsFailed(resp.ErrorCode, resp.Answer, resp.LatencyMs)
	}

	if err := s.recorder.RecordAnswer(rec); err != nil {
		log.Warn("failed to record answer", zap.Error(err))
	}
}

func withStageTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
