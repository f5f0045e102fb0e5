package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusrag/internal/model"
	"campusrag/internal/repository"
)

type fixedStats struct {
	times []time.Time
	since time.Time
	err   error
}

func (f *fixedStats) Counts(context.Context) (repository.CorpusCounts, error) {
	return repository.CorpusCounts{Documents: 3, Messages: 4}, f.err
}

func (f *fixedStats) DocumentsByCategory(context.Context) ([]repository.CategoryCount, error) {
	return nil, nil
}

func (f *fixedStats) CountCreatedSince(_ context.Context, since time.Time) (int64, int64, error) {
	f.since = since
	return 1, 2, nil
}

func (f *fixedStats) MessageTimes(context.Context, time.Time) ([]time.Time, error) {
	return f.times, nil
}

func (f *fixedStats) RecentDocuments(context.Context, int) ([]model.Document, error) {
	return []model.Document{{ID: 9, Title: "Calendrier"}}, nil
}

func TestStatsService_Dashboard(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	source := &fixedStats{times: []time.Time{
		time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC),
	}}
	svc := NewStatsService(source)
	svc.now = func() time.Time { return now }

	stats, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Overview.Documents)
	assert.Equal(t, RecentActivity{Documents: 1, Messages: 2}, stats.Recent)
	assert.Equal(t, now.AddDate(0, 0, -7), source.since)
	assert.NotNil(t, stats.DocumentsByCategory)

	require.Len(t, stats.MessageTrends, 7)
	assert.Equal(t, DailyCount{Date: "2024-03-04", Messages: 1}, stats.MessageTrends[0])
	assert.Equal(t, DailyCount{Date: "2024-03-09", Messages: 1}, stats.MessageTrends[5])
	assert.Equal(t, DailyCount{Date: "2024-03-10", Messages: 2}, stats.MessageTrends[6])
	require.Len(t, stats.RecentDocuments, 1)
}

func TestStatsService_DashboardFailure(t *testing.T) {
	svc := NewStatsService(&fixedStats{err: errors.New("db down")})
	_, err := svc.Dashboard(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
}
