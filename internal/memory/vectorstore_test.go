package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilleur/internal/core"
)

func TestVectorStoreRestartRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name     string
		compress bool
	}{
		{name: "plain", compress: false},
		{name: "compressed", compress: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			store, err := NewVectorStore(dir, tc.compress)
			require.NoError(t, err)

			stamp := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
			item := core.StoredItem{
				ID:      "research_0a1b2c3d_1756029600",
				Content: "le chat dort",
				Metadata: core.ItemMetadata{
					Title:       "Chat",
					URL:         "https://a.test",
					Source:      "research",
					Timestamp:   stamp,
					ContentHash: "0a1b2c3d",
					WordCount:   3,
				},
				Embedding: []float32{1, 0, 0},
			}
			require.NoError(t, store.Add(ctx, []core.StoredItem{item}))
			require.NoError(t, store.Close())

			reopened, err := NewVectorStore(dir, tc.compress)
			require.NoError(t, err)
			defer func() { _ = reopened.Close() }()

			assert.Equal(t, 1, reopened.Count())

			hits, err := reopened.Search(ctx, []float32{1, 0, 0}, 1, nil)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			got := hits[0].Item
			assert.Equal(t, item.ID, got.ID)
			assert.Equal(t, "le chat dort", got.Content)
			assert.Equal(t, "Chat", got.Metadata.Title)
			assert.Equal(t, "research", got.Metadata.Source)
			assert.Equal(t, "0a1b2c3d", got.Metadata.ContentHash)
			assert.Equal(t, 3, got.Metadata.WordCount)
			assert.True(t, stamp.Equal(got.Metadata.Timestamp))
		})
	}
}

func TestVectorStoreDeleteSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewVectorStore(dir, false)
	require.NoError(t, err)

	items := []core.StoredItem{
		{ID: "research_a_1", Content: "le chat dort", Embedding: []float32{1, 0, 0}},
		{ID: "research_b_1", Content: "le chien court", Embedding: []float32{0, 1, 0}},
	}
	require.NoError(t, store.Add(ctx, items))
	require.NoError(t, store.DeleteIDs(ctx, "research_a_1"))
	require.NoError(t, store.Close())

	reopened, err := NewVectorStore(dir, false)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	assert.Equal(t, 1, reopened.Count())
}

func TestMemorySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m, err := New(Options{DataDir: dir}, fakeEmbedder{})
	require.NoError(t, err)
	_, err = m.AddItems(ctx, []Item{{Title: "Chat", Content: "le chat dort"}}, "research", true)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := New(Options{DataDir: dir}, fakeEmbedder{})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	assert.Equal(t, 1, reopened.ItemCount())

	dup, err := reopened.IsDuplicate("le chat dort")
	require.NoError(t, err)
	assert.True(t, dup)

	hits, err := reopened.SemanticSearch(ctx, "un chat", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Chat", hits[0].Item.Metadata.Title)
}
