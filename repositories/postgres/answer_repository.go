package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services"
	"go.uber.org/zap"
)

// AnswerRepository implements repositories.AnswerRepository
type AnswerRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAnswerRepository creates a new answer log repository
func NewAnswerRepository(db *DB, logger *zap.Logger) *AnswerRepository {
	return &AnswerRepository{
		db:     db,
		logger: logger,
	}
}

const answerColumns = `id, request_id, question, answer, refs, scores, overall_confidence,
		       verdict, state, degraded, error_code, latency_ms, created_at`

// Insert inserts a new answer record
func (r *AnswerRepository) Insert(ctx context.Context, rec *models.AnswerRecord) error {
	query := `
		INSERT INTO answer_logs (
			id, request_id, question, answer, refs, scores, overall_confidence,
			verdict, state, degraded, error_code, latency_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	var scores interface{}
	if len(rec.Scores) > 0 {
		scores = []byte(rec.Scores)
	}

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		rec.ID,
		rec.RequestID,
		rec.Question,
		rec.Answer,
		[]byte(rec.References),
		scores,
		rec.OverallConfidence,
		rec.Verdict,
		string(rec.State),
		rec.Degraded,
		rec.ErrorCode,
		rec.LatencyMs,
		rec.CreatedAt,
	)
	if err != nil {
		return classifyError("failed to insert answer record", err)
	}

	r.logger.Debug("answer record created", zap.String("id", rec.ID.String()), zap.String("request_id", rec.RequestID))
	return nil
}

// GetByID retrieves an answer record by ID
func (r *AnswerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnswerRecord, error) {
	query := `SELECT ` + answerColumns + ` FROM answer_logs WHERE id = $1`

	rec, err := scanAnswer(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.NewDomainError(services.ErrorTypeNotFound, "answer record not found", err).
				WithDetail("id", id.String())
		}
		return nil, classifyError("failed to get answer record", err)
	}
	return rec, nil
}

// List retrieves answer records, newest first
func (r *AnswerRepository) List(ctx context.Context, limit, offset int) ([]*models.AnswerRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + answerColumns + ` FROM answer_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, classifyError("failed to list answer records", err)
	}
	defer rows.Close()

	records := []*models.AnswerRecord{}
	for rows.Next() {
		rec, err := scanAnswer(rows)
		if err != nil {
			return nil, classifyError("failed to scan answer record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answer records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnswer(row rowScanner) (*models.AnswerRecord, error) {
	rec := &models.AnswerRecord{}
	var refs, scores []byte
	var state string
	var latency sql.NullInt64
	if err := row.Scan(
		&rec.ID,
		&rec.RequestID,
		&rec.Question,
		&rec.Answer,
		&refs,
		&scores,
		&rec.OverallConfidence,
		&rec.Verdict,
		&state,
		&rec.Degraded,
		&rec.ErrorCode,
		&latency,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.References = refs
	rec.Scores = scores
	rec.State = models.AnswerState(state)
	rec.LatencyMs = int(latency.Int64)
	return rec, nil
}
