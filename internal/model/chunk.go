package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Chunk is a passage of a Document with its embedding. A chunk whose
// Embedding is NULL is never returned by search.
type Chunk struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	DocumentID   uint             `gorm:"not null;uniqueIndex:idx_chunk_position,priority:1" json:"document_id"`
	ChunkIndex   int              `gorm:"not null;uniqueIndex:idx_chunk_position,priority:2" json:"chunk_index"`
	PageNumber   *int             `json:"page_number,omitempty"`
	Content      string           `gorm:"type:text;not null" json:"content"`
	Embedding    *pgvector.Vector `gorm:"type:mediumtext" json:"-"`
	EmbeddingDim int              `gorm:"not null;default:0" json:"embedding_dim"`
	CreatedAt    time.Time        `json:"created_at"`
}

// SetEmbedding stores vec; an empty vec clears the embedding.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = nil
		c.EmbeddingDim = 0
		return
	}
	v := pgvector.NewVector(vec)
	c.Embedding = &v
	c.EmbeddingDim = len(vec)
}

// Vector returns the embedding, or nil when none is stored.
func (c *Chunk) Vector() []float32 {
	if c.Embedding == nil {
		return nil
	}
	return c.Embedding.Slice()
}
