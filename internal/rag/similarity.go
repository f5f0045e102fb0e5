package rag

import (
	"fmt"
	"math"
	"sort"
)

// Candidate is a stored chunk vector considered by Search.
type Candidate struct {
	ChunkID    uint
	DocumentID uint
	ChunkIndex int
	Vector     []float32
}

// Match is a candidate that passed the similarity threshold.
type Match struct {
	Candidate
	Score float64
}

// CosineSimilarity returns dot(a,b)/(|a|*|b|). A zero vector on either side
// yields 0; vectors of different length are rejected.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	sim := dot / math.Sqrt(normA*normB)
	// rounding can push parallel vectors a hair outside [-1, 1]
	return math.Max(-1, math.Min(1, sim)), nil
}

// Search scans every candidate, keeps those scoring at least threshold and
// returns at most limit of them, best first. Equal scores are ordered by
// chunk position so results are stable across calls.
func Search(query []float32, candidates []Candidate, limit int, threshold float64) ([]Match, error) {
	if limit <= 0 || len(candidates) == 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score, err := CosineSimilarity(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.ChunkID, err)
		}
		if score < threshold {
			continue
		}
		matches = append(matches, Match{Candidate: c, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ChunkIndex != b.ChunkIndex {
			return a.ChunkIndex < b.ChunkIndex
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.ChunkID < b.ChunkID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
