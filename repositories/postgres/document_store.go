package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/repositories"
	"github.com/upb/faq-rag/services"
	"go.uber.org/zap"
)

// DocumentStore implements repositories.DocumentStore on PostgreSQL with pgvector.
// Similarity is cosine (the <=> operator), matching the ivfflat vector_cosine_ops index.
type DocumentStore struct {
	db        *DB
	txManager *TransactionManager
	dimension int
	logger    *zap.Logger
}

// NewDocumentStore creates a new pgvector-backed document store.
// dimension is the embedder's vector size; 0 disables the dimension check.
func NewDocumentStore(db *DB, dimension int, logger *zap.Logger) *DocumentStore {
	return &DocumentStore{
		db:        db,
		txManager: NewTransactionManager(db, logger),
		dimension: dimension,
		logger:    logger,
	}
}

// Name returns the backend name
func (s *DocumentStore) Name() string {
	return storeName
}

const upsertDocumentQuery = `
	INSERT INTO documents (id, source_url, chunk_id, title, content, embedding, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (source_url, chunk_id) DO UPDATE SET title = EXCLUDED.title
`

// Upsert writes documents keyed by (source_url, chunk_id) in a single transaction.
// An existing row keeps its id and vector; only the title is refreshed.
func (s *DocumentStore) Upsert(ctx context.Context, docs []*models.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if err := s.checkDimension(docs); err != nil {
		return 0, err
	}

	written := 0
	err := s.txManager.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		var err error
		written, err = s.insert(txCtx, docs)
		return err
	})
	if err != nil {
		return 0, classifyError("failed to upsert documents", err)
	}

	s.logger.Debug("documents upserted", zap.Int("count", written))
	return written, nil
}

// ReplaceSources deletes the rows of sourceURLs and inserts docs in one transaction
func (s *DocumentStore) ReplaceSources(ctx context.Context, sourceURLs []string, docs []*models.Document) (int, int, error) {
	if err := s.checkDimension(docs); err != nil {
		return 0, 0, err
	}

	deleted, written := 0, 0
	err := s.txManager.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(txCtx, s.db)
		for _, url := range sourceURLs {
			res, err := executor.ExecContext(txCtx, "DELETE FROM documents WHERE source_url = $1", url)
			if err != nil {
				return fmt.Errorf("failed to delete documents of %s: %w", url, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}
			deleted += int(n)
		}

		var err error
		written, err = s.insert(txCtx, docs)
		return err
	})
	if err != nil {
		return 0, 0, classifyError("failed to replace documents", err)
	}

	s.logger.Debug("sources replaced",
		zap.Int("sources", len(sourceURLs)),
		zap.Int("deleted", deleted),
		zap.Int("written", written))
	return deleted, written, nil
}

func (s *DocumentStore) checkDimension(docs []*models.Document) error {
	if s.dimension == 0 {
		return nil
	}
	for _, doc := range docs {
		if len(doc.Embedding) != s.dimension {
			return services.NewDomainError(services.ErrorTypeValidation, "embedding dimension mismatch", nil).
				WithDetail("expected", s.dimension).
				WithDetail("got", len(doc.Embedding)).
				WithDetail("source_url", doc.SourceURL)
		}
	}
	return nil
}

// insert writes docs through the transaction carried by txCtx
func (s *DocumentStore) insert(txCtx context.Context, docs []*models.Document) (int, error) {
	executor := GetExecutor(txCtx, s.db)
	written := 0
	for _, doc := range docs {
		if _, err := executor.ExecContext(txCtx, upsertDocumentQuery,
			doc.ID,
			doc.SourceURL,
			doc.ChunkID,
			doc.Title,
			doc.Content,
			pgvector.NewVector(doc.Embedding),
			doc.CreatedAt,
		); err != nil {
			return written, fmt.Errorf("failed to upsert document %s: %w", doc.Key(), err)
		}
		written++
	}
	return written, nil
}

// SimilaritySearch ranks documents by cosine similarity to vector
func (s *DocumentStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter *repositories.SearchFilter) (models.RetrievalResult, error) {
	if k <= 0 {
		return models.RetrievalResult{}, nil
	}

	args := []interface{}{pgvector.NewVector(vector), k}
	where := ""
	if filter != nil && filter.SourceURLPrefix != "" {
		where = "WHERE source_url LIKE $3"
		args = append(args, escapeLike(filter.SourceURLPrefix)+"%")
	}

	query := fmt.Sprintf(`
		SELECT id, source_url, chunk_id, title, content, embedding, created_at,
		       1 - (embedding <=> $1) AS score
		FROM documents
		%s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, where)

	rows, err := GetExecutor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError("failed to search documents", err)
	}
	defer rows.Close()

	result := models.RetrievalResult{}
	for rows.Next() {
		doc := &models.Document{}
		var embedding pgvector.Vector
		var score float64
		if err := rows.Scan(
			&doc.ID,
			&doc.SourceURL,
			&doc.ChunkID,
			&doc.Title,
			&doc.Content,
			&embedding,
			&doc.CreatedAt,
			&score,
		); err != nil {
			return nil, classifyError("failed to scan document", err)
		}
		doc.Embedding = embedding.Slice()
		result = append(result, models.ScoredDocument{Document: doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("failed to iterate documents", err)
	}

	return result, nil
}

// Count returns the number of stored documents
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := GetExecutor(ctx, s.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, classifyError("failed to count documents", err)
	}
	return n, nil
}

// DeleteBySource removes every chunk of a source URL
func (s *DocumentStore) DeleteBySource(ctx context.Context, sourceURL string) (int, error) {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, "DELETE FROM documents WHERE source_url = $1", sourceURL)
	if err != nil {
		return 0, classifyError("failed to delete documents", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classifyError("failed to read affected rows", err)
	}
	return int(n), nil
}

// Ping checks connectivity
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.db.HealthCheck(ctx); err != nil {
		return services.NewStoreUnavailableError(storeName, err)
	}
	return nil
}

// Close is a no-op: the connection pool belongs to the RepositoryFactory
func (s *DocumentStore) Close() error {
	return nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
