package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source is one (source_url, title, content) tuple handed over by an extractor
type Source struct {
	SourceURL string `json:"source_url" validate:"required"`
	Title     string `json:"title"`
	Content   string `json:"content" validate:"required"`
}

// Document is an embedded chunk of knowledge-base content
type Document struct {
	ID        uuid.UUID `json:"id" db:"id"`
	SourceURL string    `json:"source_url" db:"source_url"`
	ChunkID   string    `json:"chunk_id" db:"chunk_id"` // Stable hash of the normalized content
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Embedding []float32 `json:"-" db:"embedding"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Document model
func (Document) TableName() string {
	return "documents"
}

// NewDocument creates a Document from a source and its embedding
func NewDocument(src Source, embedding []float32) *Document {
	content := NormalizeContent(src.Content)
	return &Document{
		ID:        uuid.New(),
		SourceURL: strings.TrimSpace(src.SourceURL),
		ChunkID:   ChunkID(content),
		Title:     strings.TrimSpace(src.Title),
		Content:   content,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
}

// Key returns the upsert key of the document
func (d *Document) Key() string {
	return d.SourceURL + "#" + d.ChunkID
}

// NormalizeContent collapses runs of whitespace inside each line and drops blank lines
func NormalizeContent(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// ChunkID derives the stable chunk identifier of normalized content
func ChunkID(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}
