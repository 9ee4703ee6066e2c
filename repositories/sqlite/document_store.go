// Package sqlite implements the embedded document store on gorm and a CGO-free SQLite driver.
// Vectors are stored as little-endian float32 blobs and ranked by brute-force cosine similarity.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/upb/faq-rag/internal/vectors"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/repositories"
	"github.com/upb/faq-rag/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const storeName = "sqlite"

type documentRow struct {
	ID        string `gorm:"primaryKey"`
	SourceURL string `gorm:"uniqueIndex:idx_documents_source_chunk;not null"`
	ChunkID   string `gorm:"uniqueIndex:idx_documents_source_chunk;not null"`
	Title     string
	Content   string `gorm:"not null"`
	Embedding []byte `gorm:"not null"`
	Dim       int    `gorm:"not null"`
	CreatedAt time.Time
}

func (documentRow) TableName() string { return "documents" }

func toRow(doc *models.Document) documentRow {
	return documentRow{
		ID:        doc.ID.String(),
		SourceURL: doc.SourceURL,
		ChunkID:   doc.ChunkID,
		Title:     doc.Title,
		Content:   doc.Content,
		Embedding: vectors.ToBytes(doc.Embedding),
		Dim:       len(doc.Embedding),
		CreatedAt: doc.CreatedAt,
	}
}

func (r documentRow) toDocument() *models.Document {
	id, _ := uuid.Parse(r.ID)
	return &models.Document{
		ID:        id,
		SourceURL: r.SourceURL,
		ChunkID:   r.ChunkID,
		Title:     r.Title,
		Content:   r.Content,
		Embedding: vectors.FromBytes(r.Embedding),
		CreatedAt: r.CreatedAt,
	}
}

// DocumentStore implements repositories.DocumentStore on SQLite
type DocumentStore struct {
	db        *gorm.DB
	dimension int
	logger    *zap.Logger
}

// Open opens (or creates) the database at path and migrates the documents table.
func Open(path string, dimension int, logger *zap.Logger) (*DocumentStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, services.NewStoreUnavailableError(storeName, fmt.Errorf("open sqlite %s: %w", path, err))
	}
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, services.NewStoreUnavailableError(storeName, fmt.Errorf("automigrate: %w", err))
	}

	logger.Info("sqlite document store opened", zap.String("path", path), zap.Int("dimension", dimension))
	return &DocumentStore{db: db, dimension: dimension, logger: logger}, nil
}

// Name returns the backend name
func (s *DocumentStore) Name() string {
	return storeName
}

// insertBatchSize keeps each INSERT well under SQLite's bound-parameter limit
const insertBatchSize = 100

// Upsert inserts documents, refreshing the title of rows that already exist
func (s *DocumentStore) Upsert(ctx context.Context, docs []*models.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.insert(tx, docs)
	})
	if err != nil {
		return 0, classifyError("failed to upsert documents", err)
	}

	s.logger.Debug("documents upserted", zap.Int("count", len(docs)))
	return len(docs), nil
}

// ReplaceSources deletes the rows of sourceURLs and inserts docs in one transaction
func (s *DocumentStore) ReplaceSources(ctx context.Context, sourceURLs []string, docs []*models.Document) (int, int, error) {
	deleted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(sourceURLs) > 0 {
			res := tx.Where("source_url IN ?", sourceURLs).Delete(&documentRow{})
			if res.Error != nil {
				return res.Error
			}
			deleted = int(res.RowsAffected)
		}
		return s.insert(tx, docs)
	})
	if err != nil {
		return 0, 0, classifyError("failed to replace documents", err)
	}

	s.logger.Debug("sources replaced",
		zap.Int("sources", len(sourceURLs)),
		zap.Int("deleted", deleted),
		zap.Int("written", len(docs)))
	return deleted, len(docs), nil
}

func (s *DocumentStore) insert(tx *gorm.DB, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	dim, err := s.storedDimension(tx)
	if err != nil {
		return err
	}

	rows := make([]documentRow, 0, len(docs))
	for _, doc := range docs {
		if dim == 0 {
			dim = len(doc.Embedding)
		}
		if len(doc.Embedding) == 0 || len(doc.Embedding) != dim {
			return services.NewDomainError(services.ErrorTypeValidation, "embedding dimension mismatch", nil).
				WithDetail("expected", dim).
				WithDetail("got", len(doc.Embedding)).
				WithDetail("source_url", doc.SourceURL)
		}
		rows = append(rows, toRow(doc))
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_url"}, {Name: "chunk_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title"}),
	}).CreateInBatches(&rows, insertBatchSize).Error
}

func (s *DocumentStore) storedDimension(tx *gorm.DB) (int, error) {
	if s.dimension > 0 {
		return s.dimension, nil
	}
	var dims []int
	if err := tx.Model(&documentRow{}).Limit(1).Pluck("dim", &dims).Error; err != nil {
		return 0, err
	}
	if len(dims) == 0 {
		return 0, nil
	}
	return dims[0], nil
}

// SimilaritySearch loads the candidate rows and ranks them in process
func (s *DocumentStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter *repositories.SearchFilter) (models.RetrievalResult, error) {
	if k <= 0 {
		return models.RetrievalResult{}, nil
	}

	q := s.db.WithContext(ctx).Model(&documentRow{})
	if filter != nil && filter.SourceURLPrefix != "" {
		q = q.Where(`source_url LIKE ? ESCAPE '\'`, escapeLike(filter.SourceURLPrefix)+"%")
	}

	var rows []documentRow
	if err := q.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, classifyError("failed to search documents", err)
	}

	candidates := make([][]float32, len(rows))
	docs := make([]*models.Document, len(rows))
	for i, row := range rows {
		docs[i] = row.toDocument()
		candidates[i] = docs[i].Embedding
	}

	ranked := vectors.TopK(vector, candidates, k)
	result := make(models.RetrievalResult, 0, len(ranked))
	for _, r := range ranked {
		result = append(result, models.ScoredDocument{Document: docs[r.Index], Score: r.Score})
	}
	return result, nil
}

// Count returns the number of stored documents
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&documentRow{}).Count(&n).Error; err != nil {
		return 0, classifyError("failed to count documents", err)
	}
	return int(n), nil
}

// DeleteBySource removes every document of sourceURL
func (s *DocumentStore) DeleteBySource(ctx context.Context, sourceURL string) (int, error) {
	res := s.db.WithContext(ctx).Where("source_url = ?", sourceURL).Delete(&documentRow{})
	if res.Error != nil {
		return 0, classifyError("failed to delete documents", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Ping checks the underlying connection
func (s *DocumentStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return services.NewStoreUnavailableError(storeName, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return services.NewStoreUnavailableError(storeName, err)
	}
	return nil
}

// Close closes the database
func (s *DocumentStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// classifyError keeps domain errors intact; any driver failure means the file is unusable
func classifyError(message string, err error) error {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return services.NewStoreUnavailableError(storeName, fmt.Errorf("%s: %w", message, err))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ repositories.DocumentStore = (*DocumentStore)(nil)
