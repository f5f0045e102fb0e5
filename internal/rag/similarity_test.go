package rag

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	v := []float32{0.3, -1.2, 4, 0.01}
	neg := []float32{-0.3, 1.2, -4, -0.01}
	w := []float32{1, 2, 3, 4}

	s, err := CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-9)

	s, err = CosineSimilarity(v, neg)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, s, 1e-9)

	ab, err := CosineSimilarity(v, w)
	require.NoError(t, err)
	ba, err := CosineSimilarity(w, v)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
	assert.GreaterOrEqual(t, ab, -1.0)
	assert.LessOrEqual(t, ab, 1.0)

	s, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	s, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	s, err = CosineSimilarity([]float32{0, 0}, []float32{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearch_ThresholdAndOrder(t *testing.T) {
	candidates := []Candidate{
		{ChunkID: 1, DocumentID: 10, ChunkIndex: 0, Vector: []float32{1, 0}},
		{ChunkID: 2, DocumentID: 10, ChunkIndex: 1, Vector: []float32{0, 1}},
		{ChunkID: 3, DocumentID: 11, ChunkIndex: 0, Vector: []float32{0.9, 0.1}},
	}

	matches, err := Search([]float32{1, 0}, candidates, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, uint(1), matches[0].ChunkID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, uint(3), matches[1].ChunkID)
	assert.InDelta(t, 0.9939, matches[1].Score, 1e-4)
}

func TestSearch_EmptyInputs(t *testing.T) {
	matches, err := Search([]float32{1, 0}, nil, 5, 0.7)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)

	matches, err = Search([]float32{1, 0}, []Candidate{{ChunkID: 1, Vector: []float32{1, 0}}}, 0, 0.7)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearch_NothingAboveThreshold(t *testing.T) {
	candidates := []Candidate{{ChunkID: 1, Vector: []float32{0, 1}}}
	matches, err := Search([]float32{1, 0}, candidates, 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearch_TiesOrderedByPosition(t *testing.T) {
	candidates := []Candidate{
		{ChunkID: 7, DocumentID: 2, ChunkIndex: 3, Vector: []float32{2, 0}},
		{ChunkID: 5, DocumentID: 2, ChunkIndex: 1, Vector: []float32{1, 0}},
		{ChunkID: 9, DocumentID: 1, ChunkIndex: 1, Vector: []float32{3, 0}},
	}
	matches, err := Search([]float32{1, 0}, candidates, 3, 0)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	ids := []uint{matches[0].ChunkID, matches[1].ChunkID, matches[2].ChunkID}
	assert.Equal(t, []uint{9, 5, 7}, ids)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	candidates := []Candidate{{ChunkID: 1, Vector: []float32{1, 0, 0}}}
	_, err := Search([]float32{1, 0}, candidates, 5, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearch_RetrievalContract(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randomVector := func() []float32 {
		v := make([]float32, 8)
		for i := range v {
			v[i] = rng.Float32()*2 - 1
		}
		return v
	}

	candidates := make([]Candidate, 200)
	for i := range candidates {
		candidates[i] = Candidate{ChunkID: uint(i + 1), DocumentID: uint(i%7 + 1), ChunkIndex: i / 7, Vector: randomVector()}
	}

	for round := 0; round < 20; round++ {
		query := randomVector()
		limit := rng.Intn(12)
		threshold := rng.Float64()*1.2 - 0.6

		matches, err := Search(query, candidates, limit, threshold)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(matches), limit)

		above := 0
		for _, c := range candidates {
			s, err := CosineSimilarity(query, c.Vector)
			require.NoError(t, err)
			if s >= threshold {
				above++
			}
		}
		assert.Equal(t, min(limit, above), len(matches))

		for i, m := range matches {
			assert.GreaterOrEqual(t, m.Score, threshold)
			if i > 0 {
				assert.GreaterOrEqual(t, matches[i-1].Score, m.Score)
			}
		}
	}
}
