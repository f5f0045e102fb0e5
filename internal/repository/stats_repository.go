package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"campusrag/internal/model"
)

type CorpusCounts struct {
	Documents         int64 `json:"documents"`
	Chunks            int64 `json:"chunks"`
	EmbeddedChunks    int64 `json:"embedded_chunks"`
	Messages          int64 `json:"messages"`
	UserMessages      int64 `json:"user_messages"`
	AssistantMessages int64 `json:"assistant_messages"`
}

type CategoryCount struct {
	Category model.Category `json:"category"`
	Count    int64          `json:"count"`
}

// StatsRepository answers the aggregate queries of the admin dashboard.
type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) Counts(ctx context.Context) (CorpusCounts, error) {
	var out CorpusCounts
	db := r.db.WithContext(ctx)
	queries := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&out.Documents, db.Model(&model.Document{})},
		{&out.Chunks, db.Model(&model.Chunk{})},
		{&out.EmbeddedChunks, db.Model(&model.Chunk{}).Where("embedding IS NOT NULL")},
		{&out.Messages, db.Model(&model.Message{})},
		{&out.UserMessages, db.Model(&model.Message{}).Where("role = ?", model.RoleUser)},
		{&out.AssistantMessages, db.Model(&model.Message{}).Where("role = ?", model.RoleAssistant)},
	}
	for _, q := range queries {
		if err := q.query.Count(q.dst).Error; err != nil {
			return CorpusCounts{}, fmt.Errorf("count corpus failed: %w", err)
		}
	}
	return out, nil
}

func (r *StatsRepository) DocumentsByCategory(ctx context.Context) ([]CategoryCount, error) {
	var rows []CategoryCount
	err := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("category").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count documents by category failed: %w", err)
	}
	return rows, nil
}

// CountCreatedSince counts documents and messages created at or after since.
func (r *StatsRepository) CountCreatedSince(ctx context.Context, since time.Time) (documents, messages int64, err error) {
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.Document{}).Where("created_at >= ?", since).Count(&documents).Error; err != nil {
		return 0, 0, fmt.Errorf("count recent documents failed: %w", err)
	}
	if err := db.Model(&model.Message{}).Where("created_at >= ?", since).Count(&messages).Error; err != nil {
		return 0, 0, fmt.Errorf("count recent messages failed: %w", err)
	}
	return documents, messages, nil
}

// MessageTimes returns the creation time of every message since the given
// instant, oldest first. Bucketing is left to the caller so that the query
// stays portable across drivers.
func (r *StatsRepository) MessageTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Pluck("created_at", &times).Error
	if err != nil {
		return nil, fmt.Errorf("list message times failed: %w", err)
	}
	return times, nil
}

func (r *StatsRepository) RecentDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	if limit <= 0 {
		limit = 5
	}
	var docs []model.Document
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list recent documents failed: %w", err)
	}
	return docs, nil
}
