package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campusrag/internal/model"
	"campusrag/internal/rag"
)

type ChunkRepository struct {
	db        *gorm.DB
	dimension int
}

// NewChunkRepository returns a store that only accepts embeddings of the
// given dimension. A dimension of 0 accepts any length.
func NewChunkRepository(db *gorm.DB, dimension int) *ChunkRepository {
	return &ChunkRepository{db: db, dimension: dimension}
}

// Save inserts the chunk, or replaces the one already stored at the same
// (document, index) position. The owning document is locked for the write so
// a concurrent delete cannot leave an orphan.
func (r *ChunkRepository) Save(ctx context.Context, chunk *model.Chunk) error {
	if chunk.Embedding != nil {
		dim := len(chunk.Embedding.Slice())
		if r.dimension > 0 && dim != r.dimension {
			return fmt.Errorf("save chunk %d of document %d: %w: got %d, want %d",
				chunk.ChunkIndex, chunk.DocumentID, rag.ErrDimensionMismatch, dim, r.dimension)
		}
		chunk.EmbeddingDim = dim
	} else {
		chunk.EmbeddingDim = 0
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc model.Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&doc, chunk.DocumentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentGone
		}
		if err != nil {
			return fmt.Errorf("lock document failed: %w", err)
		}

		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "chunk_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"page_number", "content", "embedding", "embedding_dim"}),
		}).Create(chunk).Error
		if err != nil {
			return fmt.Errorf("save chunk failed: %w", err)
		}
		return nil
	})
}

// ListEmbedded returns every chunk that carries an embedding, whatever its
// dimension. Callers must treat a length that differs from the query's as a
// corrupted corpus.
func (r *ChunkRepository) ListEmbedded(ctx context.Context) ([]model.Chunk, error) {
	q := r.db.WithContext(ctx).Where("embedding IS NOT NULL")
	var chunks []model.Chunk
	if err := q.Order("document_id ASC").Order("chunk_index ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list embedded chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) ListByDocumentID(ctx context.Context, documentID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("chunk_index ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}

// CountByDocumentIDs returns the number of stored chunks per document.
// Documents without chunks are absent from the map.
func (r *ChunkRepository) CountByDocumentIDs(ctx context.Context, documentIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(documentIDs))
	if len(documentIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		DocumentID uint
		Total      int64
	}
	err := r.db.WithContext(ctx).Model(&model.Chunk{}).
		Select("document_id, COUNT(*) AS total").
		Where("document_id IN ?", documentIDs).
		Group("document_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count chunks by document failed: %w", err)
	}
	for _, row := range rows {
		counts[row.DocumentID] = row.Total
	}
	return counts, nil
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID uint) error {
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}
