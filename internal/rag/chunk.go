package rag

import (
	"fmt"
	"strings"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100

	// boundaryLookahead bounds how far past the naive window end the chunker
	// looks for a sentence terminator or newline.
	boundaryLookahead = 100
)

// Passage is a chunk candidate produced by the chunker, before it is embedded.
type Passage struct {
	Content    string
	ChunkIndex int
	PageNumber *int
	// Start and End are rune offsets of the window in the chunked text.
	Start int
	End   int
}

// Split cuts text into overlapping passages of about chunkSize runes, preferring
// to end a window just after a sentence terminator or newline found within the
// lookahead. Identical inputs always produce identical passages.
func Split(text string, chunkSize, overlap int, pageNumber *int) ([]Passage, error) {
	if chunkSize <= 0 || overlap < 0 {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, chunkSize, overlap)
	}

	runes := []rune(text)
	n := len(runes)
	passages := make([]Passage, 0, n/chunkSize+1)

	start := 0
	for start < n {
		end := start + chunkSize
		if end > n {
			end = n
		}
		if end < n {
			if boundary := nextBoundary(runes, end); boundary >= 0 {
				end = boundary + 1
			}
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			passages = append(passages, Passage{
				Content:    content,
				ChunkIndex: len(passages),
				PageNumber: pageNumber,
				Start:      start,
				End:        end,
			})
		}

		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return passages, nil
}

// SplitPages chunks every page on its own and numbers the passages across all
// pages. pageBreaks holds the rune offset at which each page after the first
// begins.
func SplitPages(text string, pageBreaks []int, chunkSize, overlap int) ([]Passage, error) {
	if chunkSize <= 0 || overlap < 0 {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, chunkSize, overlap)
	}
	runes := []rune(text)
	var out []Passage

	last := 0
	pageNumber := 0
	emit := func(from, to int) error {
		pageNumber++
		page := pageNumber
		passages, err := Split(string(runes[from:to]), chunkSize, overlap, &page)
		if err != nil {
			return err
		}
		for _, p := range passages {
			p.ChunkIndex = len(out)
			p.Start += from
			p.End += from
			out = append(out, p)
		}
		return nil
	}

	for _, bp := range pageBreaks {
		if bp < last || bp > len(runes) {
			return nil, fmt.Errorf("%w: page break %d out of order", ErrInvalidChunking, bp)
		}
		if err := emit(last, bp); err != nil {
			return nil, err
		}
		last = bp
	}
	if last < len(runes) {
		if err := emit(last, len(runes)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// nextBoundary returns the index of the nearest '.', '?', '!' or newline at or
// after from, or -1 if none lies within the lookahead.
func nextBoundary(runes []rune, from int) int {
	limit := from + boundaryLookahead
	if limit > len(runes) {
		limit = len(runes)
	}
	for i := from; i < limit; i++ {
		switch runes[i] {
		case '.', '?', '!', '\n':
			return i
		}
	}
	return -1
}
