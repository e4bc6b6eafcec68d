// Package memory is the persistent side channel of the research
// pipeline: a vector store for semantic retrieval, a hash set for
// duplicate detection, a report cache, a bounded conversation log and
// a topic keyword map.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"veilleur/internal/core"
	"veilleur/internal/logger"
)

// Embedder turns text into a vector. Satisfied by llm.OpenAIEmbedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures a Memory.
type Options struct {
	DataDir              string
	Compress             bool
	CacheTTL             time.Duration
	MaxConversations     int
	CompressionThreshold int
}

// Memory combines the vector store with the SQLite state and exposes
// the subsystem operations the pipeline depends on.
type Memory struct {
	vectors  *VectorStore
	state    *State
	embedder Embedder

	cacheTTL             time.Duration
	maxConversations     int
	compressionThreshold int

	now func() time.Time
}

// Item is one unit of content handed to AddItems before it gets an id
// and an embedding.
type Item struct {
	Title   string
	URL     string
	Content string
}

// AddResult reports what AddItems did with a batch.
type AddResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// New opens a Memory rooted at opts.DataDir. An empty DataDir keeps
// everything in process memory.
func New(opts Options, embedder Embedder) (*Memory, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", core.ErrMemory)
	}

	vectors, err := NewVectorStore(opts.DataDir, opts.Compress)
	if err != nil {
		return nil, err
	}
	state, err := NewState(opts.DataDir)
	if err != nil {
		vectors.Close()
		return nil, err
	}

	cacheTTL := opts.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}
	maxConversations := opts.MaxConversations
	if maxConversations == 0 {
		maxConversations = 100
	}
	compressionThreshold := opts.CompressionThreshold
	if compressionThreshold == 0 {
		compressionThreshold = 50
	}

	return &Memory{
		vectors:              vectors,
		state:                state,
		embedder:             embedder,
		cacheTTL:             cacheTTL,
		maxConversations:     maxConversations,
		compressionThreshold: compressionThreshold,
		now:                  time.Now,
	}, nil
}

// Close flushes and closes both backends.
func (m *Memory) Close() error {
	verr := m.vectors.Close()
	serr := m.state.Close()
	if verr != nil {
		return verr
	}
	return serr
}

// AddItems embeds and persists a batch of items under the given source
// label. With checkDuplicates, items whose content hash is already
// known are skipped.
func (m *Memory) AddItems(ctx context.Context, items []Item, source string, checkDuplicates bool) (AddResult, error) {
	result := AddResult{Total: len(items)}
	now := m.now().UTC()

	var stored []core.StoredItem
	batch := make(map[string]bool)
	for _, item := range items {
		if strings.TrimSpace(item.Content) == "" {
			result.Skipped++
			continue
		}

		hash := core.ContentHash(item.Content)
		if checkDuplicates {
			if batch[hash] {
				result.Skipped++
				continue
			}
			known, err := m.state.HasHash(hash)
			if err != nil {
				return result, err
			}
			if known {
				result.Skipped++
				continue
			}
		}

		embedding, err := m.embedder.Embed(ctx, item.Content)
		if err != nil {
			return result, fmt.Errorf("%w: failed to embed item %q: %v", core.ErrMemory, item.Title, err)
		}

		id := fmt.Sprintf("%s_%s_%d", source, hash[:8], now.Unix())
		stored = append(stored, core.StoredItem{
			ID:      id,
			Content: item.Content,
			Metadata: core.ItemMetadata{
				Title:       item.Title,
				URL:         item.URL,
				Source:      source,
				Timestamp:   now,
				ContentHash: hash,
				WordCount:   len(strings.Fields(item.Content)),
			},
			Embedding: embedding,
		})
		batch[hash] = true
	}

	// Hashes are recorded only after the vector insert succeeds.
	if err := m.vectors.Add(ctx, stored); err != nil {
		return result, err
	}
	for _, item := range stored {
		if err := m.state.InsertItem(item.ID, item.Metadata.ContentHash, source, now); err != nil {
			return result, err
		}
		result.Added++
	}
	return result, nil
}

// IsDuplicate reports whether content with this exact hash was stored.
func (m *Memory) IsDuplicate(content string) (bool, error) {
	return m.state.HasHash(core.ContentHash(content))
}

// SemanticSearch embeds the query and returns the top-k similar items.
// The filter restricts on exact metadata values, typically the source.
func (m *Memory) SemanticSearch(ctx context.Context, query string, topK int, filter map[string]string) ([]Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %v", core.ErrMemory, err)
	}
	return m.vectors.Search(ctx, vector, topK, filter)
}

// RelevantContext formats the top-k semantic matches as a compact block
// suitable for inclusion in an LLM prompt.
func (m *Memory) RelevantContext(ctx context.Context, query string, topK int, sourceFilter string) (string, error) {
	var filter map[string]string
	if sourceFilter != "" {
		filter = map[string]string{"source": sourceFilter}
	}

	hits, err := m.SemanticSearch(ctx, query, topK, filter)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Contexte pertinent en mémoire:\n")
	for _, hit := range hits {
		excerpt := hit.Item.Content
		if len(excerpt) > 300 {
			excerpt = excerpt[:300] + "..."
		}
		fmt.Fprintf(&b, "- [%s] %s (pertinence %.2f)\n  %s\n",
			hit.Item.Metadata.Source, hit.Item.Metadata.Title, hit.Score, excerpt)
	}
	return b.String(), nil
}

// CachePut stores a final report under its topic.
func (m *Memory) CachePut(topic string, report *core.FinalReport) error {
	return m.state.CachePut(topic, report, m.now())
}

// CacheGet returns the cached report for a topic if it is younger than
// the configured TTL. Stale entries read as absent.
func (m *Memory) CacheGet(topic string) (*core.FinalReport, error) {
	return m.CacheGetMaxAge(topic, m.cacheTTL)
}

// CacheGetMaxAge is CacheGet with an explicit freshness bound. A zero
// or negative maxAge treats every entry as expired.
func (m *Memory) CacheGetMaxAge(topic string, maxAge time.Duration) (*core.FinalReport, error) {
	if maxAge <= 0 {
		return nil, nil
	}
	report, storedAt, err := m.state.CacheGet(topic)
	if err != nil || report == nil {
		return nil, err
	}
	if m.now().Sub(storedAt) > maxAge {
		return nil, nil
	}
	return report, nil
}

// CacheTopics lists every topic with a cached report.
func (m *Memory) CacheTopics() ([]string, error) {
	return m.state.CacheTopics()
}

// RelatedTopics returns cached topics whose similarity ratio against
// the given topic is at least threshold, most similar first.
func (m *Memory) RelatedTopics(topic string, threshold float64) ([]string, error) {
	if threshold <= 0 {
		threshold = 0.5
	}
	topics, err := m.state.CacheTopics()
	if err != nil {
		return nil, err
	}

	type scored struct {
		topic string
		ratio float64
	}
	var matches []scored
	for _, candidate := range topics {
		if strings.EqualFold(candidate, topic) {
			continue
		}
		ratio := similarityRatio(strings.ToLower(topic), strings.ToLower(candidate))
		if ratio >= threshold {
			matches = append(matches, scored{candidate, ratio})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].ratio > matches[j].ratio })

	related := make([]string, 0, len(matches))
	for _, match := range matches {
		related = append(related, match.topic)
	}
	return related, nil
}

// ClearOldItems removes vector items older than the given number of
// days, together with their hashes. Returns how many were removed.
func (m *Memory) ClearOldItems(ctx context.Context, days int) (int, error) {
	cutoff := m.now().AddDate(0, 0, -days)
	ids, err := m.state.ItemsBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := m.vectors.DeleteIDs(ctx, ids...); err != nil {
		return 0, err
	}
	if err := m.state.DeleteItems(ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Compress drops cache entries older than seven days once the
// conversation log has reached the compression threshold.
func (m *Memory) Compress() error {
	count, err := m.state.ConversationCount()
	if err != nil {
		return err
	}
	if count < m.compressionThreshold {
		return nil
	}

	removed, err := m.state.DeleteCacheBefore(m.now().AddDate(0, 0, -7))
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Debug("compressed memory", "expired_reports", removed, "conversations", count)
	}
	return nil
}

// ClearAll empties the conversation log and the report cache. Vector
// items are preserved.
func (m *Memory) ClearAll() error {
	if err := m.state.ClearConversations(); err != nil {
		return err
	}
	return m.state.ClearCache()
}

// AppendConversation records one exchange, trims the log and runs the
// automatic compression check.
func (m *Memory) AppendConversation(entry core.ConversationEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	if err := m.state.AppendConversation(entry, m.maxConversations); err != nil {
		return err
	}
	return m.Compress()
}

// History returns the n most recent exchanges, oldest first.
func (m *Memory) History(n int) ([]core.ConversationEntry, error) {
	if n <= 0 {
		n = 5
	}
	return m.state.LastConversations(n)
}

// SetKeywords records the derived keywords of a topic.
func (m *Memory) SetKeywords(topic string, keywords []string) error {
	return m.state.SetKeywords(topic, keywords)
}

// Keywords returns the derived keywords of a topic, or nil.
func (m *Memory) Keywords(topic string) ([]string, error) {
	return m.state.Keywords(topic)
}

// PutSummary caches a document summary keyed by content hash.
func (m *Memory) PutSummary(contentHash string, summary *core.DocumentSummary) error {
	return m.state.PutSummary(contentHash, summary, m.now())
}

// GetSummary returns a cached summary younger than the cache TTL.
func (m *Memory) GetSummary(contentHash string) (*core.DocumentSummary, error) {
	return m.state.GetSummary(contentHash, m.cacheTTL, m.now())
}

// ItemCount returns the number of stored vector items.
func (m *Memory) ItemCount() int {
	return m.vectors.Count()
}

// similarityRatio is a sequence similarity measure in [0,1] based on
// the longest common subsequence of the two strings.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}
