package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildText(paragraphs, wordsPerParagraph int) string {
	var sb strings.Builder
	for p := 0; p < paragraphs; p++ {
		for w := 0; w < wordsPerParagraph; w++ {
			fmt.Fprintf(&sb, "mot%d-%d ", p, w)
		}
		sb.WriteString("fin de paragraphe.")
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func TestSmallInputSingleChunk(t *testing.T) {
	c, err := ForStrategy("default")
	require.NoError(t, err)

	chunks := c.Chunk("Un court paragraphe.")
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].ChunkID)
	assert.Equal(t, 1, chunks[0].TotalChunks)
	assert.Equal(t, "Un court paragraphe.", chunks[0].Content)
	assert.Equal(t, 3, chunks[0].WordCount)
}

func TestChunkSizeBounds(t *testing.T) {
	c, err := ForStrategy("default")
	require.NoError(t, err)

	text := buildText(40, 120)
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 4000, "chunk %d over max", i)
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, len(ch.Content), 500, "chunk %d under min", i)
		}
		assert.Equal(t, i+1, ch.ChunkID)
		assert.Equal(t, len(chunks), ch.TotalChunks)
	}
}

func TestLargeDocumentProducesManyChunks(t *testing.T) {
	c, err := ForStrategy("default")
	require.NoError(t, err)

	// Roughly 24k characters of prose.
	text := buildText(30, 110)
	require.Greater(t, len(text), 20000)

	chunks := c.Chunk(text)
	assert.GreaterOrEqual(t, len(chunks), 6)
}

func TestOverlapBorrowsFromPreviousTail(t *testing.T) {
	c := New(600, 100, 100)
	text := buildText(10, 60)
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		overlap := c.overlapText(chunks[i-1].Content)
		assert.LessOrEqual(t, len(overlap), 100+1)
		assert.True(t, strings.HasPrefix(chunks[i].Content, overlap),
			"chunk %d does not start with the previous tail", i)
	}
}

func TestCoverage(t *testing.T) {
	c := New(800, 120, 200)
	text := buildText(12, 70)
	normalized := normalize(text)
	chunks := c.Chunk(text)
	require.NotEmpty(t, chunks)

	// Removing each chunk's overlap prefix and concatenating restores
	// the normalized input.
	var rebuilt strings.Builder
	for i, ch := range chunks {
		content := ch.Content
		if i > 0 {
			content = strings.TrimPrefix(content, c.overlapText(chunks[i-1].Content))
		}
		rebuilt.WriteString(content)
		rebuilt.WriteString("\n\n")
	}
	got := strings.Join(strings.Fields(rebuilt.String()), " ")
	want := strings.Join(strings.Fields(normalized), " ")
	assert.Equal(t, want, got)
}

func TestHeadingDetection(t *testing.T) {
	cases := []struct {
		line    string
		heading bool
	}{
		{"# Introduction", true},
		{"### Sous-section détaillée", true},
		{"1. Premier point", true},
		{"SOMMAIRE GENERAL", true},
		{"Conclusion:", true},
		{"Une phrase ordinaire sans structure.", false},
	}
	for _, tc := range cases {
		got, _ := detectHeading(tc.line + "\nDu contenu qui suit.")
		assert.Equal(t, tc.heading, got, tc.line)
	}
}

func TestAutoSelect(t *testing.T) {
	assert.Equal(t, "small", AutoSelect(strings.Repeat("a ", 100)))
	assert.Equal(t, "large", AutoSelect(strings.Repeat("mot ", 8000)))
	// 3500 words of 4 chars each is ~17500 chars: between 5000 and 20000,
	// above the 3000-word threshold.
	assert.Equal(t, "precise", AutoSelect(strings.Repeat("mot ", 3500)))
	assert.Equal(t, "default", AutoSelect(strings.Repeat("grandmot ", 1500)))
}

func TestForStrategyUnknown(t *testing.T) {
	_, err := ForStrategy("gigantic")
	assert.Error(t, err)
}

func TestChunkingStats(t *testing.T) {
	c := New(600, 100, 100)
	chunks := c.Chunk(buildText(10, 60))
	stats := ChunkingStats(chunks)
	assert.Equal(t, len(chunks), stats.TotalChunks)
	assert.Greater(t, stats.AvgChunkSize, 0.0)
	assert.LessOrEqual(t, stats.MinChunkSize, stats.MaxChunkSize)
}

func TestMergeSmallTrailingChunk(t *testing.T) {
	c := New(1000, 50, 400)
	// One big paragraph then a tiny one: the tiny trailing chunk should
	// merge into its predecessor's successor slot or stay last.
	text := buildText(3, 100) + "\n\nPetit reste."
	chunks := c.Chunk(text)
	for i, ch := range chunks {
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, len(ch.Content), 400)
		}
	}
}
