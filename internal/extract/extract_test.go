package extract

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilleur/internal/core"
	"veilleur/internal/fetch"
)

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]*fetch.Extracted
	errs     map[string]error
	failures map[string]int // failures to serve before succeeding
	calls    map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:    make(map[string]*fetch.Extracted),
		errs:     make(map[string]error),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.Extracted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.failures[url] > 0 {
		f.failures[url]--
		return nil, errors.New("temporary failure")
	}
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	page, ok := f.pages[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return page, nil
}

func substantialContent() string {
	return strings.TrimSpace(strings.Repeat("Une phrase entière sur la politique climatique européenne. ", 15))
}

func newTestExtractor(f Fetcher, opts Options) *Extractor {
	e := NewExtractor(f, opts)
	e.sleep = func(time.Duration) {}
	return e
}

func TestRunMixedOutcomes(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["https://ok.test/a"] = &fetch.Extracted{
		Title:       "Article A",
		Content:     substantialContent(),
		ContentType: fetch.ContentTypeHTML,
	}
	fetcher.errs["https://down.test/b"] = errors.New("connection refused")

	e := newTestExtractor(fetcher, Options{})
	result, err := e.Run(context.Background(), []string{"https://ok.test/a", "https://down.test/b"}, Filters{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalURLs)
	assert.Equal(t, 1, result.SuccessfulExtractions)
	assert.Equal(t, 1, result.FailedExtractions)
	assert.Equal(t, result.TotalURLs, result.SuccessfulExtractions+result.FailedExtractions)

	require.Len(t, result.Documents, 1)
	assert.Equal(t, "Article A", result.Documents[0].Title)
	assert.Equal(t, core.DocTypeArticle, result.Documents[0].DocType)
	assert.Equal(t, []string{"https://down.test/b"}, result.FailedURLs)

	// Success and failure sets stay disjoint.
	for _, doc := range result.Documents {
		assert.NotContains(t, result.FailedURLs, doc.URL)
	}
}

func TestRunSkipsInvalidURLsWithoutFailures(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["https://ok.test/a"] = &fetch.Extracted{
		Title:       "Article A",
		Content:     substantialContent(),
		ContentType: fetch.ContentTypeHTML,
	}

	e := newTestExtractor(fetcher, Options{})
	result, err := e.Run(context.Background(),
		[]string{"not a url", "ftp://nope.test", "https://ok.test/a"}, Filters{})
	require.NoError(t, err)

	// Invalid URLs are dropped before counting, not recorded as failures.
	assert.Equal(t, 1, result.TotalURLs)
	assert.Empty(t, result.FailedURLs)
	assert.Len(t, result.Documents, 1)
}

func TestRunFailsWithoutValidURLs(t *testing.T) {
	e := newTestExtractor(newFakeFetcher(), Options{})
	_, err := e.Run(context.Background(), []string{"not a url"}, Filters{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExtractionFailure)
}

func TestRunRetriesWithBackoff(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["https://flaky.test/a"] = &fetch.Extracted{
		Title:       "Article",
		Content:     substantialContent(),
		ContentType: fetch.ContentTypeHTML,
	}
	fetcher.failures["https://flaky.test/a"] = 2

	var delays []time.Duration
	e := NewExtractor(fetcher, Options{MaxRetries: 2})
	e.sleep = func(d time.Duration) { delays = append(delays, d) }

	result, err := e.Run(context.Background(), []string{"https://flaky.test/a"}, Filters{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulExtractions)
	assert.Equal(t, 3, fetcher.calls["https://flaky.test/a"])
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestRunExhaustsRetries(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.errs["https://down.test/a"] = errors.New("connection refused")

	e := newTestExtractor(fetcher, Options{MaxRetries: 1})
	result, err := e.Run(context.Background(), []string{"https://down.test/a"}, Filters{})
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls["https://down.test/a"])
	assert.Equal(t, []string{"https://down.test/a"}, result.FailedURLs)
}

func TestFiltersRejectShortContent(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["https://short.test/a"] = &fetch.Extracted{
		Title:       "Court",
		Content:     "Trop court.",
		ContentType: fetch.ContentTypeHTML,
	}

	e := newTestExtractor(fetcher, Options{})
	result, err := e.Run(context.Background(), []string{"https://short.test/a"}, Filters{})
	require.NoError(t, err)
	assert.Empty(t, result.Documents)
	assert.Equal(t, []string{"https://short.test/a"}, result.FailedURLs)
}

func TestFiltersRequiredKeywords(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["https://ok.test/a"] = &fetch.Extracted{
		Title:       "Article",
		Content:     substantialContent(),
		ContentType: fetch.ContentTypeHTML,
	}

	e := newTestExtractor(fetcher, Options{})

	result, err := e.Run(context.Background(), []string{"https://ok.test/a"},
		Filters{RequiredKeywords: []string{"CLIMATIQUE"}})
	require.NoError(t, err)
	assert.Len(t, result.Documents, 1)

	result, err = e.Run(context.Background(), []string{"https://ok.test/a"},
		Filters{RequiredKeywords: []string{"astronomie"}})
	require.NoError(t, err)
	assert.Empty(t, result.Documents)
}

func TestFiltersMinQuality(t *testing.T) {
	fetcher := newFakeFetcher()
	published := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	fetcher.pages["https://ok.test/a"] = &fetch.Extracted{
		Title:         "Article complet",
		Author:        "Jean Dupont",
		PublishedDate: &published,
		Content:       "Introduction. " + substantialContent(),
		ContentType:   fetch.ContentTypeHTML,
	}

	e := newTestExtractor(fetcher, Options{})

	result, err := e.Run(context.Background(), []string{"https://ok.test/a"}, Filters{MinQuality: 0.8})
	require.NoError(t, err)
	assert.Len(t, result.Documents, 1)

	result, err = e.Run(context.Background(), []string{"https://ok.test/a"}, Filters{MinQuality: 0.95})
	require.NoError(t, err)
	assert.Empty(t, result.Documents)
}

func TestQualityScore(t *testing.T) {
	published := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	full := core.NewDocument("Titre", "https://a.test",
		"Introduction. "+substantialContent(), core.DocTypeArticle)
	full.Author = "Jean Dupont"
	full.PublishedDate = &published
	// 0.3 length + 0.2 title + 0.1 author + 0.1 date + 0.2 marker.
	assert.InDelta(t, 0.9, qualityScore(full), 0.001)

	bare := core.NewDocument("", "https://a.test", "quelques mots seulement ici", core.DocTypeArticle)
	assert.InDelta(t, 0.0, qualityScore(bare), 0.001)
}

func TestQualityScoreRepeatedLinesPenalty(t *testing.T) {
	repeated := strings.Repeat("la même ligne encore et encore\n", 10)
	doc := core.NewDocument("Titre", "https://a.test", repeated, core.DocTypeArticle)
	withPenalty := qualityScore(doc)

	varied := make([]string, 10)
	for i := range varied {
		varied[i] = strings.Repeat("x", i+1) + " ligne différente pour le test numéro"
	}
	doc2 := core.NewDocument("Titre", "https://a.test", strings.Join(varied, "\n"), core.DocTypeArticle)
	withoutPenalty := qualityScore(doc2)

	assert.InDelta(t, 0.2, withoutPenalty-withPenalty, 0.001)
}
