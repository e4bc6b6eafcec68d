package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"veilleur/internal/core"
	"veilleur/internal/logger"
)

const collectionName = "veilleur"

// VectorStore wraps an embedded chromem-go database. Embeddings are
// computed upstream and passed in pre-computed; the collection's
// embedding function is never supposed to run.
type VectorStore struct {
	mu          sync.Mutex
	db          *chromem.DB
	col         *chromem.Collection
	persistPath string
	compress    bool
}

// NewVectorStore opens (or creates) the vector database. With an empty
// dataDir the store is memory-only and nothing is persisted.
func NewVectorStore(dataDir string, compress bool) (*VectorStore, error) {
	db := chromem.NewDB()
	persistPath := ""

	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create data directory: %v", core.ErrMemory, err)
		}
		persistPath = filepath.Join(dataDir, "vectors.gob")
		if compress {
			persistPath += ".gz"
		}
		// The store is exported to a single file on every write, so the
		// reload goes through the file import, not a persistent DB dir.
		if _, err := os.Stat(persistPath); err == nil {
			if err := db.ImportFromFile(persistPath, ""); err != nil {
				logger.Warn("failed to load vector database, starting empty", "path", persistPath, "error", err.Error())
				db = chromem.NewDB()
			}
		}
	}

	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors are pre-computed")
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open collection: %v", core.ErrMemory, err)
	}

	return &VectorStore{
		db:          db,
		col:         col,
		persistPath: persistPath,
		compress:    compress,
	}, nil
}

// Add inserts items with their pre-computed embeddings.
func (v *VectorStore) Add(ctx context.Context, items []core.StoredItem) error {
	if len(items) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, chromem.Document{
			ID:        item.ID,
			Content:   item.Content,
			Metadata:  metadataToMap(item.Metadata),
			Embedding: item.Embedding,
		})
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: failed to add documents: %v", core.ErrMemory, err)
	}
	if err := v.persist(); err != nil {
		logger.Warn("failed to persist vector store", "error", err.Error())
	}
	return nil
}

// Hit is one semantic search result.
type Hit struct {
	Item  core.StoredItem
	Score float64
}

// Search returns the topK most similar items, optionally restricted by
// an exact-match metadata filter.
func (v *VectorStore) Search(ctx context.Context, vector []float32, topK int, where map[string]string) ([]Hit, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	count := v.col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := v.col.QueryEmbedding(ctx, vector, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", core.ErrMemory, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			Item: core.StoredItem{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: metadataFromMap(r.Metadata),
			},
			Score: float64(r.Similarity),
		})
	}
	return hits, nil
}

// DeleteIDs removes documents by id.
func (v *VectorStore) DeleteIDs(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("%w: failed to delete documents: %v", core.ErrMemory, err)
	}
	if err := v.persist(); err != nil {
		logger.Warn("failed to persist vector store", "error", err.Error())
	}
	return nil
}

// Count returns the number of stored items.
func (v *VectorStore) Count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.col.Count()
}

// Close flushes the database to disk when persistence is enabled.
func (v *VectorStore) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.persist()
}

func (v *VectorStore) persist() error {
	if v.persistPath == "" {
		return nil
	}
	if err := v.db.Export(v.persistPath, v.compress, ""); err != nil {
		return fmt.Errorf("failed to export vector database: %w", err)
	}
	return nil
}

func metadataToMap(m core.ItemMetadata) map[string]string {
	out := map[string]string{
		"title":        m.Title,
		"source":       m.Source,
		"timestamp":    m.Timestamp.UTC().Format(time.RFC3339),
		"content_hash": m.ContentHash,
		"word_count":   strconv.Itoa(m.WordCount),
	}
	if m.URL != "" {
		out["url"] = m.URL
	}
	return out
}

func metadataFromMap(m map[string]string) core.ItemMetadata {
	meta := core.ItemMetadata{
		Title:       m["title"],
		URL:         m["url"],
		Source:      m["source"],
		ContentHash: m["content_hash"],
	}
	if ts, err := time.Parse(time.RFC3339, m["timestamp"]); err == nil {
		meta.Timestamp = ts
	}
	if wc, err := strconv.Atoi(m["word_count"]); err == nil {
		meta.WordCount = wc
	}
	return meta
}
