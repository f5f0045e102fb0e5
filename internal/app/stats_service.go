package app

import (
	"context"
	"fmt"
	"time"

	"campusrag/internal/model"
	"campusrag/internal/repository"
)

const statsWindowDays = 7

type StatsSource interface {
	Counts(ctx context.Context) (repository.CorpusCounts, error)
	DocumentsByCategory(ctx context.Context) ([]repository.CategoryCount, error)
	CountCreatedSince(ctx context.Context, since time.Time) (documents, messages int64, err error)
	MessageTimes(ctx context.Context, since time.Time) ([]time.Time, error)
	RecentDocuments(ctx context.Context, limit int) ([]model.Document, error)
}

type DailyCount struct {
	Date     string `json:"date"`
	Messages int    `json:"messages"`
}

type RecentActivity struct {
	Documents int64 `json:"documents"`
	Messages  int64 `json:"messages"`
}

type DashboardStats struct {
	Overview            repository.CorpusCounts    `json:"overview"`
	Recent              RecentActivity             `json:"recent"`
	DocumentsByCategory []repository.CategoryCount `json:"documents_by_category"`
	MessageTrends       []DailyCount               `json:"message_trends"`
	RecentDocuments     []model.Document           `json:"recent_documents"`
}

type StatsService struct {
	source StatsSource
	now    func() time.Time
}

func NewStatsService(source StatsSource) *StatsService {
	return &StatsService{source: source, now: time.Now}
}

// Dashboard aggregates corpus and chat activity over the last seven days.
// Trends hold one entry per calendar day, oldest first, today included.
func (s *StatsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	now := s.now()
	y, m, d := now.Date()
	firstDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(statsWindowDays - 1))
	since := now.AddDate(0, 0, -statsWindowDays)

	counts, err := s.source.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	byCategory, err := s.source.DocumentsByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	recentDocs, recentMsgs, err := s.source.CountCreatedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	times, err := s.source.MessageTimes(ctx, firstDay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	latest, err := s.source.RecentDocuments(ctx, 5)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	trends := make([]DailyCount, statsWindowDays)
	index := make(map[string]int, statsWindowDays)
	for i := range trends {
		day := firstDay.AddDate(0, 0, i).Format(time.DateOnly)
		trends[i] = DailyCount{Date: day}
		index[day] = i
	}
	for _, t := range times {
		if i, ok := index[t.In(now.Location()).Format(time.DateOnly)]; ok {
			trends[i].Messages++
		}
	}

	if byCategory == nil {
		byCategory = []repository.CategoryCount{}
	}
	if latest == nil {
		latest = []model.Document{}
	}
	return &DashboardStats{
		Overview:            counts,
		Recent:              RecentActivity{Documents: recentDocs, Messages: recentMsgs},
		DocumentsByCategory: byCategory,
		MessageTrends:       trends,
		RecentDocuments:     latest,
	}, nil
}
