// Package chunker splits large text into overlapping, structure-aware
// chunks sized for individual summarization calls.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"veilleur/internal/core"
)

// TextChunk is one contiguous piece of a chunked document.
type TextChunk struct {
	Content     string `json:"content"`
	StartIndex  int    `json:"start_index"`
	EndIndex    int    `json:"end_index"`
	ChunkID     int    `json:"chunk_id"` // 1-based
	TotalChunks int    `json:"total_chunks"`
	WordCount   int    `json:"word_count"`
	HasHeading  bool   `json:"has_heading"`
	HeadingText string `json:"heading_text,omitempty"`
}

// Chunker splits text according to a sizing strategy.
type Chunker struct {
	maxChunkSize int
	overlapSize  int
	minChunkSize int
}

// New creates a chunker with explicit size bounds.
func New(maxChunkSize, overlapSize, minChunkSize int) *Chunker {
	return &Chunker{
		maxChunkSize: maxChunkSize,
		overlapSize:  overlapSize,
		minChunkSize: minChunkSize,
	}
}

// Registry of named strategies. The zero chunk sizes never occur:
// every strategy keeps min <= max.
var strategies = map[string]*Chunker{
	"default": New(4000, 200, 500),
	"small":   New(2000, 100, 500),
	"large":   New(20000, 300, 500),
	"precise": New(3000, 150, 800),
}

// ForStrategy returns the chunker registered under name.
func ForStrategy(name string) (*Chunker, error) {
	c, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown chunking strategy %q", core.ErrValidation, name)
	}
	return c, nil
}

// Strategies lists the registered strategy names.
func Strategies() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	return names
}

// AutoSelect picks a strategy name from the input size.
func AutoSelect(text string) string {
	switch {
	case len(text) < 5000:
		return "small"
	case len(text) > 20000:
		return "large"
	case len(strings.Fields(text)) > 3000:
		return "precise"
	default:
		return "default"
	}
}

var (
	multiSpaceRe   = regexp.MustCompile(`[ \t]+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	sentenceEndRe  = regexp.MustCompile(`[.!?]+[\s]`)

	headingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^#{1,6}\s+.+`),
		regexp.MustCompile(`^\d+\.\s+.+`),
		regexp.MustCompile(`^[A-Z][A-Z0-9 \-']{4,}$`),
		regexp.MustCompile(`^\S+\s*:$`),
	}
)

// Chunk splits text into ordered chunks covering the normalized input.
// Consecutive chunks overlap by at most overlapSize characters borrowed
// from the previous chunk's tail.
func (c *Chunker) Chunk(text string) []TextChunk {
	text = normalize(text)
	if text == "" {
		return nil
	}

	if len(text) <= c.maxChunkSize {
		chunk := c.newChunk(text, 0, len(text), 1)
		chunk.TotalChunks = 1
		return []TextChunk{chunk}
	}

	chunks := c.chunkByParagraphs(text)
	chunks = c.mergeSmallChunks(chunks)
	for i := range chunks {
		chunks[i].ChunkID = i + 1
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

func (c *Chunker) chunkByParagraphs(text string) []TextChunk {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []TextChunk
	var current strings.Builder
	currentStart := 0
	position := 0

	for _, para := range paragraphs {
		if current.Len() > 0 && current.Len()+len(para) > c.maxChunkSize {
			content := current.String()
			chunks = append(chunks, c.newChunk(content, currentStart, currentStart+len(content), len(chunks)+1))

			overlap := c.overlapText(content)
			current.Reset()
			current.WriteString(overlap)
			current.WriteString(para)
			currentStart = position - len(overlap)
		} else {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
		position += len(para) + 2
	}

	if strings.TrimSpace(current.String()) != "" {
		content := current.String()
		chunks = append(chunks, c.newChunk(content, currentStart, currentStart+len(content), len(chunks)+1))
	}
	return chunks
}

// overlapText takes the tail of a chunk to seed the next one, preferring
// whole trailing sentences and falling back to trailing words.
func (c *Chunker) overlapText(chunk string) string {
	if len(chunk) <= c.overlapSize {
		return chunk
	}

	tail := chunk[len(chunk)-c.overlapSize:]
	if loc := sentenceEndRe.FindStringIndex(tail); loc != nil {
		sentences := strings.TrimSpace(tail[loc[1]:])
		if sentences != "" {
			return sentences + " "
		}
	}

	words := strings.Fields(tail)
	var kept []string
	chars := 0
	for i := len(words) - 1; i >= 0; i-- {
		if chars+len(words[i]) > c.overlapSize {
			break
		}
		kept = append([]string{words[i]}, kept...)
		chars += len(words[i]) + 1
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, " ") + " "
}

func (c *Chunker) newChunk(content string, start, end, id int) TextChunk {
	hasHeading, heading := detectHeading(content)
	return TextChunk{
		Content:     content,
		StartIndex:  start,
		EndIndex:    end,
		ChunkID:     id,
		WordCount:   len(strings.Fields(content)),
		HasHeading:  hasHeading,
		HeadingText: heading,
	}
}

// mergeSmallChunks merges a chunk below minChunkSize into its successor
// when the pair still fits in maxChunkSize.
func (c *Chunker) mergeSmallChunks(chunks []TextChunk) []TextChunk {
	if len(chunks) <= 1 {
		return chunks
	}

	var merged []TextChunk
	for i := 0; i < len(chunks); i++ {
		cur := chunks[i]
		if len(cur.Content) < c.minChunkSize && i+1 < len(chunks) &&
			len(cur.Content)+len(chunks[i+1].Content) <= c.maxChunkSize {
			next := chunks[i+1]
			combined := cur.Content + "\n\n" + next.Content
			m := c.newChunk(combined, cur.StartIndex, next.EndIndex, len(merged)+1)
			if !m.HasHeading && next.HasHeading {
				m.HasHeading = true
				m.HeadingText = next.HeadingText
			}
			merged = append(merged, m)
			i++
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// detectHeading checks whether the first line of a chunk looks like a
// section heading.
func detectHeading(content string) (bool, string) {
	firstLine := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		firstLine = content[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)
	if firstLine == "" {
		return false, ""
	}
	for _, pattern := range headingPatterns {
		if pattern.MatchString(firstLine) {
			return true, strings.TrimSpace(strings.TrimLeft(firstLine, "# "))
		}
	}
	return false, ""
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Stats summarizes a chunking result for diagnostics.
type Stats struct {
	TotalChunks  int     `json:"total_chunks"`
	TotalChars   int     `json:"total_chars"`
	TotalWords   int     `json:"total_words"`
	AvgChunkSize float64 `json:"avg_chunk_size"`
	MinChunkSize int     `json:"min_chunk_size"`
	MaxChunkSize int     `json:"max_chunk_size"`
	WithHeadings int     `json:"with_headings"`
}

// ChunkingStats computes aggregate figures over a chunk list.
func ChunkingStats(chunks []TextChunk) Stats {
	if len(chunks) == 0 {
		return Stats{}
	}
	stats := Stats{TotalChunks: len(chunks), MinChunkSize: len(chunks[0].Content)}
	for _, ch := range chunks {
		size := len(ch.Content)
		stats.TotalChars += size
		stats.TotalWords += ch.WordCount
		if size < stats.MinChunkSize {
			stats.MinChunkSize = size
		}
		if size > stats.MaxChunkSize {
			stats.MaxChunkSize = size
		}
		if ch.HasHeading {
			stats.WithHeadings++
		}
	}
	stats.AvgChunkSize = float64(stats.TotalChars) / float64(len(chunks))
	return stats
}
