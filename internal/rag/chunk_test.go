package rag

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = "Le règlement des études fixe les conditions d'inscription. " +
	"Chaque étudiant doit présenter sa carte lors des examens.\n" +
	"Les absences répétées doivent être justifiées auprès du secrétariat pédagogique. " +
	"Une attestation de scolarité est délivrée sur demande au bureau des affaires académiques! " +
	"Les bourses sont attribuées selon des critères sociaux et académiques? " +
	"Le calendrier universitaire est publié chaque année en septembre."

func TestSplit_PrefersSentenceBoundaries(t *testing.T) {
	text := "Bonjour. Comment allez-vous? Tres bien merci."

	chunks, err := Split(text, 20, 5, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	require.LessOrEqual(t, len(chunks), 3)

	assert.Equal(t, "Bonjour. Comment allez-vous?", chunks[0].Content)
	assert.Equal(t, "vous? Tres bien merci.", chunks[1].Content)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len([]rune(text)), chunks[len(chunks)-1].End)
	assert.Less(t, chunks[1].Start, chunks[0].End, "consecutive chunks should overlap")
}

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	chunks, err := Split("Court texte sans fin", 100, 20, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Court texte sans fin", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func TestSplit_WhitespaceOnlyYieldsNothing(t *testing.T) {
	chunks, err := Split(" \n\t  \n ", 4, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = Split("", 4, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_RejectsInvalidParameters(t *testing.T) {
	_, err := Split("texte", 0, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidChunking)

	_, err = Split("texte", 10, -1, nil)
	assert.ErrorIs(t, err, ErrInvalidChunking)
}

func TestSplit_Deterministic(t *testing.T) {
	first, err := Split(sampleText, 60, 15, nil)
	require.NoError(t, err)
	second, err := Split(sampleText, 60, 15, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplit_IndexesAreContiguous(t *testing.T) {
	chunks, err := Split(sampleText, 50, 10, nil)
	require.NoError(t, err)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.NotEmpty(t, c.Content)
		assert.Nil(t, c.PageNumber)
	}
}

func TestSplit_TerminatesWithinBound(t *testing.T) {
	n := len([]rune(sampleText))
	for _, size := range []int{1, 5, 17, 64, 200, 1000} {
		for _, overlap := range []int{0, 1, size / 2, size - 1} {
			if overlap < 0 || overlap >= size {
				continue
			}
			chunks, err := Split(sampleText, size, overlap, nil)
			require.NoError(t, err)
			bound := n/(size-overlap) + 1
			assert.LessOrEqual(t, len(chunks), bound, "size=%d overlap=%d", size, overlap)
		}
	}
}

func TestSplit_OverlapNotSmallerThanSize(t *testing.T) {
	for _, overlap := range []int{10, 11, 500} {
		chunks, err := Split(sampleText, 10, overlap, nil)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		for i := 1; i < len(chunks); i++ {
			assert.Greater(t, chunks[i].Start, chunks[i-1].Start)
		}
	}
}

func TestSplit_CoversWholeText(t *testing.T) {
	runes := []rune(sampleText)
	for _, tc := range []struct{ size, overlap int }{{30, 5}, {60, 15}, {7, 0}, {120, 119}} {
		chunks, err := Split(sampleText, tc.size, tc.overlap, nil)
		require.NoError(t, err)

		covered := make([]bool, len(runes))
		for i, c := range chunks {
			assert.Equal(t, strings.TrimSpace(string(runes[c.Start:c.End])), c.Content)
			for j := c.Start; j < c.End; j++ {
				covered[j] = true
			}
			if i > 0 {
				assert.LessOrEqual(t, c.Start, chunks[i-1].End, "gap before chunk %d", i)
			}
		}
		for i, r := range runes {
			if !unicode.IsSpace(r) {
				assert.True(t, covered[i], "rune %d (%q) not covered with size=%d overlap=%d", i, r, tc.size, tc.overlap)
			}
		}
	}
}

func TestSplit_MultibyteText(t *testing.T) {
	chunks, err := Split("éàèùç ôîâ. ÉÀÈ", 5, 1, nil)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c.Content), "split inside a rune: %q", c.Content)
	}
}

func TestSplitPages(t *testing.T) {
	text := "Page un.\nPage deux est plus longue. Elle continue."
	breaks := []int{len([]rune("Page un.\n"))}

	chunks, err := SplitPages(text, breaks, 30, 5)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Equal(t, "Page un.", chunks[0].Content)
	require.NotNil(t, chunks[0].PageNumber)
	assert.Equal(t, 1, *chunks[0].PageNumber)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		require.NotNil(t, c.PageNumber)
		if i > 0 {
			assert.Equal(t, 2, *c.PageNumber)
			assert.GreaterOrEqual(t, c.Start, breaks[0])
		}
	}
}

func TestSplitPages_EmptyPageKeepsNumbering(t *testing.T) {
	text := "Premier.\n\nTroisième."
	chunks, err := SplitPages(text, []int{9, 10}, 50, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, *chunks[0].PageNumber)
	assert.Equal(t, 3, *chunks[1].PageNumber)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
}

func TestSplitPages_RejectsBadBreaks(t *testing.T) {
	_, err := SplitPages("abc", []int{2, 1}, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidChunking)
}
