package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/faq-rag/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Wrap adopts an already opened pool (used with sqlmock in tests)
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// SchemaOptions controls the vector column and its index
type SchemaOptions struct {
	Dimension int
	IndexName string
	IVFLists  int
}

// InitSchema creates the pgvector extension, the documents table with its
// named vector index, and the answer log table.
func (db *DB) InitSchema(ctx context.Context, opts SchemaOptions) error {
	if opts.Dimension <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", opts.Dimension)
	}
	if opts.IVFLists <= 0 {
		opts.IVFLists = 100
	}

	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			source_url TEXT NOT NULL,
			chunk_id VARCHAR(64) NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (source_url, chunk_id)
		);

		CREATE INDEX IF NOT EXISTS idx_documents_source_url ON documents(source_url);
		CREATE INDEX IF NOT EXISTS %s ON documents
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);

		CREATE TABLE IF NOT EXISTS answer_logs (
			id UUID PRIMARY KEY,
			request_id VARCHAR(255) NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			refs JSONB NOT NULL DEFAULT '[]',
			scores JSONB,
			overall_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			verdict VARCHAR(16) NOT NULL,
			state VARCHAR(16) NOT NULL,
			degraded BOOLEAN NOT NULL DEFAULT false,
			error_code VARCHAR(64),
			latency_ms INTEGER,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_answer_logs_request_id ON answer_logs(request_id);
		CREATE INDEX IF NOT EXISTS idx_answer_logs_created_at ON answer_logs(created_at);
	`, opts.Dimension, pq.QuoteIdentifier(opts.IndexName), opts.IVFLists)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully",
		zap.Int("dimension", opts.Dimension),
		zap.String("vector_index", opts.IndexName))
	return nil
}
