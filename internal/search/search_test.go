package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilleur/internal/core"
)

func sampleResults(n int) []core.SearchResult {
	results := make([]core.SearchResult, n)
	for i := range results {
		results[i] = core.SearchResult{
			Title:   "Résultat",
			URL:     "https://example.com/a",
			Snippet: "extrait",
			Source:  "example.com",
		}
	}
	return results
}

func TestRegistryPreferredFirst(t *testing.T) {
	primary := NewMockProvider("primary", sampleResults(2))
	secondary := NewMockProvider("secondary", sampleResults(3))

	reg := NewRegistry()
	reg.Register(primary)
	reg.Register(secondary)

	results, name, err := reg.Search(context.Background(), "q", Config{MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, "primary", name)
	assert.Len(t, results, 2)
	assert.Equal(t, 0, secondary.Calls)
}

func TestRegistryFailover(t *testing.T) {
	primary := NewMockProvider("primary", nil)
	primary.Err = errors.New("provider down")
	secondary := NewMockProvider("secondary", sampleResults(3))

	reg := NewRegistry()
	reg.Register(primary)
	reg.Register(secondary)

	results, name, err := reg.Search(context.Background(), "q", Config{MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, "secondary", name)
	assert.Len(t, results, 3)
}

func TestRegistryAllFail(t *testing.T) {
	a := NewMockProvider("a", nil)
	a.Err = errors.New("down")
	b := NewMockProvider("b", nil)
	b.Err = errors.New("also down")

	reg := NewRegistry()
	reg.Register(a)
	reg.Register(b)

	_, _, err := reg.Search(context.Background(), "q", Config{})
	assert.ErrorIs(t, err, core.ErrSearchFailure)
}

func TestRegistryEmpty(t *testing.T) {
	reg := NewRegistry()
	_, _, err := reg.Search(context.Background(), "q", Config{})
	assert.ErrorIs(t, err, core.ErrSearchFailure)
}

func TestSetPreferred(t *testing.T) {
	a := NewMockProvider("a", sampleResults(1))
	b := NewMockProvider("b", sampleResults(1))

	reg := NewRegistry()
	reg.Register(a)
	reg.Register(b)
	require.NoError(t, reg.SetPreferred("b"))

	_, name, err := reg.Search(context.Background(), "q", Config{MaxResults: 1})
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	assert.Error(t, reg.SetPreferred("missing"))
}

func TestParseDateShapes(t *testing.T) {
	assert.NotNil(t, parseDate("2024-06-01"))
	assert.NotNil(t, parseDate("2024-06-01T10:30:00Z"))
	assert.NotNil(t, parseDate("Jan 2, 2024"))
	assert.Nil(t, parseDate("yesterday"))
	assert.Nil(t, parseDate(""))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.com", hostOf("https://example.com/a/b"))
	assert.Equal(t, "sub.example.org", hostOf("http://sub.example.org"))
}
