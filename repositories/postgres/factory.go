package postgres

import (
	"context"

	"github.com/upb/faq-rag/config"
	"github.com/upb/faq-rag/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages the PostgreSQL-backed repositories
type RepositoryFactory struct {
	db     *DB
	store  config.StoreConfig
	logger *zap.Logger
}

// NewRepositoryFactory opens the connection pool described by cfg
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, store: cfg.Store, logger: logger}, nil
}

// InitSchema creates tables and the vector index for the given embedding dimension
func (f *RepositoryFactory) InitSchema(ctx context.Context, dimension int) error {
	return f.db.InitSchema(ctx, SchemaOptions{
		Dimension: dimension,
		IndexName: f.store.VectorIndexName,
		IVFLists:  f.store.IVFLists,
	})
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories(dimension int) *repositories.Repositories {
	return &repositories.Repositories{
		Documents: NewDocumentStore(f.db, dimension, f.logger),
		Answers:   NewAnswerRepository(f.db, f.logger),
	}
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the connection pool
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
