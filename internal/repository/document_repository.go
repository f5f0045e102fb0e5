package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"campusrag/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the document does not exist.
func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDs(ctx context.Context, ids []uint) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []model.Document
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("get documents by ids failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// Delete removes the document and all of its chunks in one transaction.
func (r *DocumentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return fmt.Errorf("delete document chunks failed: %w", err)
		}
		res := tx.Delete(&model.Document{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete document failed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDocumentGone
		}
		return nil
	})
}
