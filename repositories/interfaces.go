package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/faq-rag/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// SearchFilter narrows a similarity search
type SearchFilter struct {
	// SourceURLPrefix keeps only documents whose source_url starts with the prefix
	SourceURLPrefix string
}

// DocumentStore persists embedded documents and ranks them by cosine similarity.
// Implementations report connection failures as services.ErrStoreUnavailable.
type DocumentStore interface {
	// Name identifies the backend (postgres, sqlite, memory)
	Name() string

	// Upsert writes documents keyed by (source_url, chunk_id) and returns the number written
	Upsert(ctx context.Context, docs []*models.Document) (int, error)

	// SimilaritySearch returns at most k documents, best first.
	// An empty corpus yields an empty result, not an error.
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter *SearchFilter) (models.RetrievalResult, error)

	// Count returns the number of stored documents
	Count(ctx context.Context) (int, error)

	// DeleteBySource removes every document of a source URL
	DeleteBySource(ctx context.Context, sourceURL string) (int, error)

	// ReplaceSources deletes every document of sourceURLs and writes docs as one
	// atomic step; on error the previous documents are left in place.
	ReplaceSources(ctx context.Context, sourceURLs []string, docs []*models.Document) (deleted int, written int, err error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	Close() error
}

// AnswerRepository handles answer log operations
type AnswerRepository interface {
	// Insert inserts a new answer record
	Insert(ctx context.Context, rec *models.AnswerRecord) error

	// GetByID retrieves an answer record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnswerRecord, error)

	// List retrieves answer records, newest first
	List(ctx context.Context, limit, offset int) ([]*models.AnswerRecord, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Documents DocumentStore
	Answers   AnswerRepository
}
