package pipeline

import (
	"context"
	"time"

	"github.com/upb/faq-rag/models"
)

// State is the position of a question in the pipeline
type State string

const (
	StateReceived   State = "RECEIVED"
	StateRetrieving State = "RETRIEVING"
	StateGenerating State = "GENERATING"
	StateEvaluating State = "EVALUATING"
	StateComplete   State = "COMPLETE"
	StateFailed     State = "FAILED"
)

// Error codes carried by failed responses
const (
	ErrCodeValidation       = "validation_error"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeGenerationFailed = "generation_failed"
	ErrCodeInternal         = "internal_error"
)

// Fixed answers of the failure paths
const (
	InvalidQuestionAnswer = "Please provide a valid question."
	ApologyAnswer         = "I'm sorry, something went wrong while generating an answer. Please try again later."
)

// Response is always well formed, whatever the outcome
type Response struct {
	RequestID  string                   `json:"request_id"`
	Answer     string                   `json:"answer"`
	References []string                 `json:"references"`
	Evaluation *models.EvaluationResult `json:"evaluation"`
	Success    bool                     `json:"success"`
	Error      string                   `json:"error,omitempty"`
	ErrorCode  string                   `json:"error_code,omitempty"`
	Degraded   bool                     `json:"degraded"`
	State      State                    `json:"state"`
	LatencyMs  int                      `json:"latency_ms"`
}

// PipelineContext holds the intermediate results of one question
type PipelineContext struct {
	RequestID string
	Question  string
	StartTime time.Time
	State     State

	Retrieved      models.RetrievalResult
	RetrievalError error
	Answer         *models.GeneratedAnswer
	Evaluation     *models.EvaluationResult
}

type requestIDKey struct{}

// WithRequestID attaches the caller's request id to ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id set by WithRequestID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RejectedResponse is the FAILED response of a request that never reached the pipeline
func RejectedResponse(requestID, message string) *Response {
	return &Response{
		RequestID:  requestID,
		Answer:     InvalidQuestionAnswer,
		References: []string{},
		Evaluation: models.NewDefaultEvaluation(0),
		Error:      message,
		ErrorCode:  ErrCodeValidation,
		State:      StateFailed,
	}
}
