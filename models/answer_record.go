package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnswerState is the terminal state of an answered question
type AnswerState string

const (
	AnswerStateComplete AnswerState = "COMPLETE"
	AnswerStateFailed   AnswerState = "FAILED"
)

// AnswerRecord is the persisted log entry of one question/answer cycle
type AnswerRecord struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	RequestID         string          `json:"request_id" db:"request_id"`
	Question          string          `json:"question" db:"question"`
	Answer            string          `json:"answer" db:"answer"`
	References        json.RawMessage `json:"references" db:"refs"`
	Scores            json.RawMessage `json:"scores,omitempty" db:"scores"`
	OverallConfidence float64         `json:"overall_confidence" db:"overall_confidence"`
	Verdict           string          `json:"verdict" db:"verdict"`
	State             AnswerState     `json:"state" db:"state"`
	Degraded          bool            `json:"degraded" db:"degraded"`
	ErrorCode         *string         `json:"error_code,omitempty" db:"error_code"`
	LatencyMs         int             `json:"latency_ms" db:"latency_ms"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the AnswerRecord model
func (AnswerRecord) TableName() string {
	return "answer_logs"
}

// NewAnswerRecord creates a new AnswerRecord instance
func NewAnswerRecord(requestID, question string) *AnswerRecord {
	return &AnswerRecord{
		ID:         uuid.New(),
		RequestID:  requestID,
		Question:   question,
		References: json.RawMessage("[]"),
		CreatedAt:  time.Now().UTC(),
	}
}

// MarkAsCompleted records a successful answer and its evaluation
func (ar *AnswerRecord) MarkAsCompleted(answer string, references []string, eval *EvaluationResult, latencyMs int) {
	ar.State = AnswerStateComplete
	ar.Answer = answer
	ar.SetReferences(references)
	if eval != nil {
		if data, err := json.Marshal(eval.Scores); err == nil {
			ar.Scores = data
		}
		ar.OverallConfidence = eval.OverallConfidence
		ar.Verdict = string(eval.Verdict)
		ar.Degraded = eval.Degraded
	}
	ar.LatencyMs = latencyMs
}

// MarkAsFailed records a hard failure
func (ar *AnswerRecord) MarkAsFailed(errorCode, answer string, latencyMs int) {
	ar.State = AnswerStateFailed
	ar.Answer = answer
	ar.ErrorCode = &errorCode
	ar.Verdict = string(VerdictFlag)
	ar.SetReferences(nil)
	ar.LatencyMs = latencyMs
}

// SetReferences stores the reference list as JSON
func (ar *AnswerRecord) SetReferences(references []string) {
	if references == nil {
		references = []string{}
	}
	if data, err := json.Marshal(references); err == nil {
		ar.References = data
	}
}

// ReferenceList decodes the stored references
func (ar *AnswerRecord) ReferenceList() []string {
	var refs []string
	if len(ar.References) == 0 {
		return []string{}
	}
	if err := json.Unmarshal(ar.References, &refs); err != nil || refs == nil {
		return []string{}
	}
	return refs
}
