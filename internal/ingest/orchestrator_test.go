package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusrag/internal/model"
	"campusrag/internal/rag"
	"campusrag/internal/repository"
)

const corpus = "Les inscriptions ouvrent en juillet. Les bourses sont versées chaque mois. " +
	"Les stages exigent une convention signée. Les absences doivent être justifiées. " +
	"Le rattrapage a lieu en juin."

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
	dim    int
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	call := e.calls
	e.calls++
	if e.failOn[call] {
		return nil, errors.New("provider down")
	}
	vec := make([]float32, e.dim)
	vec[0] = float32(len(text))
	return vec, nil
}

type memoryChunks struct {
	mu      sync.Mutex
	saved   []model.Chunk
	failAt  int
	failErr error
	dropped []uint
	dropErr error
}

func (m *memoryChunks) DeleteByDocumentID(_ context.Context, documentID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dropErr != nil {
		return m.dropErr
	}
	m.dropped = append(m.dropped, documentID)
	kept := m.saved[:0]
	for _, c := range m.saved {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	m.saved = kept
	return nil
}

func (m *memoryChunks) Save(_ context.Context, chunk *model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil && chunk.ChunkIndex == m.failAt {
		return m.failErr
	}
	m.saved = append(m.saved, *chunk)
	return nil
}

func (m *memoryChunks) indexes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.saved))
	for _, c := range m.saved {
		out = append(out, c.ChunkIndex)
	}
	return out
}

func TestOrchestrator_IndexesEveryChunk(t *testing.T) {
	passages, err := rag.Split(corpus, 40, 8, nil)
	require.NoError(t, err)
	require.Greater(t, len(passages), 2)

	store := &memoryChunks{}
	o := NewOrchestrator(&fakeEmbedder{dim: 4}, store, Options{ChunkSize: 40, ChunkOverlap: 8, Dimension: 4}, nil)

	report, err := o.Process(context.Background(), Job{DocumentID: 3, Text: corpus, PageCount: 1})
	require.NoError(t, err)
	assert.Equal(t, Report{DocumentID: 3, Chunks: len(passages), Indexed: len(passages)}, report)

	require.Len(t, store.saved, len(passages))
	for i, c := range store.saved {
		assert.Equal(t, uint(3), c.DocumentID)
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, passages[i].Content, c.Content)
		assert.Equal(t, 4, c.EmbeddingDim)
		assert.Len(t, c.Vector(), 4)
	}
}

func TestOrchestrator_ReplaceDropsPreviousChunks(t *testing.T) {
	store := &memoryChunks{saved: []model.Chunk{
		{DocumentID: 3, ChunkIndex: 0, Content: "ancienne version"},
		{DocumentID: 3, ChunkIndex: 7, Content: "passage disparu"},
		{DocumentID: 4, ChunkIndex: 0, Content: "autre document"},
	}}
	o := NewOrchestrator(&fakeEmbedder{dim: 2}, store, Options{ChunkSize: 40, ChunkOverlap: 8, Dimension: 2}, nil)

	report, err := o.Process(context.Background(), Job{DocumentID: 3, Text: corpus, Replace: true})
	require.NoError(t, err)
	assert.Equal(t, []uint{3}, store.dropped)
	require.Len(t, store.saved, report.Indexed+1)
	assert.Equal(t, uint(4), store.saved[0].DocumentID)
	for _, c := range store.saved[1:] {
		assert.NotEqual(t, "passage disparu", c.Content)
	}

	plain := &memoryChunks{}
	_, err = NewOrchestrator(&fakeEmbedder{dim: 2}, plain, Options{ChunkSize: 40, ChunkOverlap: 8, Dimension: 2}, nil).
		Process(context.Background(), Job{DocumentID: 3, Text: corpus})
	require.NoError(t, err)
	assert.Empty(t, plain.dropped)
}

func TestOrchestrator_ReplaceAbortsWhenDropFails(t *testing.T) {
	store := &memoryChunks{dropErr: errors.New("db down")}
	embedder := &fakeEmbedder{dim: 2}
	o := NewOrchestrator(embedder, store, Options{ChunkSize: 40, ChunkOverlap: 8, Dimension: 2}, nil)

	report, err := o.Process(context.Background(), Job{DocumentID: 3, Text: corpus, Replace: true})
	require.Error(t, err)
	assert.Zero(t, report.Indexed)
	assert.Zero(t, embedder.calls)
}

func TestOrchestrator_SkipsFailedEmbeddings(t *testing.T) {
	passages, err := rag.Split(corpus, 40, 8, nil)
	require.NoError(t, err)
	n := len(passages)

	store := &memoryChunks{}
	embedder := &fakeEmbedder{dim: 2, failOn: map[int]bool{1: true}}
	o := NewOrchestrator(embedder, store, Options{ChunkSize: 40, ChunkOverlap: 8, Dimension: 2}, nil)

	report, err := o.Process(context.Background(), Job{DocumentID: 1, Text: corpus})
	require.NoError(t, err)
	assert.Equal(t, n, report.Chunks)
	assert.Equal(t, n-1, report.Indexed)
	assert.Equal(t, 1, report.Skipped)

	want := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != 1 {
			want = append(want, i)
		}
	}
	assert.Equal(t, want, store.indexes())
}

func TestOrchestrator_SkipsWrongDimension(t *testing.T) {
	store := &memoryChunks{}
	o := NewOrchestrator(&fakeEmbedder{dim: 3}, store, Options{ChunkSize: 40, ChunkOverlap: 8, Dimension: 5}, nil)

	report, err := o.Process(context.Background(), Job{DocumentID: 1, Text: corpus})
	require.NoError(t, err)
	assert.Zero(t, report.Indexed)
	assert.Equal(t, report.Chunks, report.Skipped)
	assert.Empty(t, store.saved)
}

func TestOrchestrator_StorageFailureStopsJob(t *testing.T) {
	store := &memoryChunks{failAt: 1, failErr: errors.New("disk full")}
	o := NewOrchestrator(&fakeEmbedder{dim: 2}, store, Options{ChunkSize: 40, ChunkOverlap: 8}, nil)

	report, err := o.Process(context.Background(), Job{DocumentID: 1, Text: corpus})
	require.Error(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, []int{0}, store.indexes())
}

func TestOrchestrator_DocumentGoneStopsJob(t *testing.T) {
	store := &memoryChunks{failAt: 0, failErr: repository.ErrDocumentGone}
	o := NewOrchestrator(&fakeEmbedder{dim: 2}, store, Options{ChunkSize: 40, ChunkOverlap: 8}, nil)

	_, err := o.Process(context.Background(), Job{DocumentID: 1, Text: corpus})
	assert.ErrorIs(t, err, repository.ErrDocumentGone)
	assert.Empty(t, store.saved)
}

func TestOrchestrator_PageAwareJob(t *testing.T) {
	text := "Première page du guide.\nDeuxième page du guide."
	breaks := []int{len([]rune("Première page du guide.\n"))}

	store := &memoryChunks{}
	o := NewOrchestrator(&fakeEmbedder{dim: 2}, store, Options{ChunkSize: 100, ChunkOverlap: 10}, nil)

	report, err := o.Process(context.Background(), Job{DocumentID: 2, Text: text, PageBreaks: breaks, PageCount: 2})
	require.NoError(t, err)
	require.Equal(t, 2, report.Indexed)

	require.NotNil(t, store.saved[0].PageNumber)
	require.NotNil(t, store.saved[1].PageNumber)
	assert.Equal(t, 1, *store.saved[0].PageNumber)
	assert.Equal(t, 2, *store.saved[1].PageNumber)
	assert.Equal(t, "Deuxième page du guide.", store.saved[1].Content)
}

func TestOrchestrator_EmptyTextProducesNothing(t *testing.T) {
	store := &memoryChunks{}
	o := NewOrchestrator(&fakeEmbedder{dim: 2}, store, Options{}, nil)

	report, err := o.Process(context.Background(), Job{DocumentID: 1, Text: "   "})
	require.NoError(t, err)
	assert.Zero(t, report.Chunks)
	assert.Empty(t, store.saved)
}

func TestOrchestrator_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &memoryChunks{}
	o := NewOrchestrator(&fakeEmbedder{dim: 2}, store, Options{ChunkSize: 40, ChunkOverlap: 8}, nil)

	_, err := o.Process(ctx, Job{DocumentID: 1, Text: corpus})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.saved)
}
