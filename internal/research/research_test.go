package research

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilleur/internal/core"
	"veilleur/internal/llm"
	"veilleur/internal/search"
)

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Completion(_ context.Context, prompt, _ string, _ *llm.Params) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func fixedTime() time.Time {
	return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
}

func newTestResearcher(completer Completer, searcher Searcher) *Researcher {
	r := NewResearcher(completer, searcher, Options{})
	r.now = fixedTime
	return r
}

func TestParseKeywords(t *testing.T) {
	response := "1. intelligence artificielle\n- apprentissage automatique, le, IA, apprentissage automatique"
	keywords := parseKeywords(response)
	assert.Equal(t, []string{"intelligence artificielle", "apprentissage automatique", "ia"}, keywords)
}

func TestParseKeywordsCap(t *testing.T) {
	response := "aa, bb, cc, dd, ee, ff, gg, hh, ii"
	assert.Len(t, parseKeywords(response), 7)
}

func TestFallbackKeywords(t *testing.T) {
	keywords := fallbackKeywords("La transition énergétique de la France en 2026")
	assert.Equal(t, []string{"transition", "énergétique", "france", "2026"}, keywords)
}

func TestComposeQueryRecencyHint(t *testing.T) {
	r := newTestResearcher(&fakeCompleter{}, nil)

	query := core.ResearchQuery{
		Topic:       "politique climatique",
		Keywords:    []string{"climatique", "europe"},
		SearchDepth: core.SearchDepthAdvanced,
	}
	// "climatique" already occurs in the topic and is not repeated.
	assert.Equal(t, "politique climatique europe 2026 2025", r.composeQuery(query))

	query.SearchDepth = core.SearchDepthBasic
	assert.Equal(t, "politique climatique europe", r.composeQuery(query))
}

func TestRankOrdersAndFilters(t *testing.T) {
	r := newTestResearcher(&fakeCompleter{}, nil)

	published := fixedTime().AddDate(0, 0, -30)
	results := []core.SearchResult{
		{Title: "sans rapport", Snippet: "rien à voir"},
		{Title: "politique climatique europe", Snippet: "politique climatique en europe", PublishedDate: &published},
		{Title: "politique", Snippet: "climatique"},
	}

	ranked := r.rank(results, "politique climatique", []string{"europe"})
	require.Len(t, ranked, 2)
	assert.Equal(t, "politique climatique europe", ranked[0].Title)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
	// The off-topic result fell below the threshold.
	for _, res := range ranked {
		assert.GreaterOrEqual(t, res.Score, DefaultMinScore)
	}
}

func TestRankAveragesProviderScore(t *testing.T) {
	r := newTestResearcher(&fakeCompleter{}, nil)

	results := []core.SearchResult{
		{Title: "politique climatique", Snippet: "politique climatique", Score: 1.0},
	}
	ranked := r.rank(results, "politique climatique", nil)
	require.Len(t, ranked, 1)
	// Computed score is 0.9 (full text and title coverage, no date);
	// averaged with the provider's 1.0 that gives 0.95.
	assert.InDelta(t, 0.95, ranked[0].Score, 0.001)
}

func TestRankStableTies(t *testing.T) {
	r := newTestResearcher(&fakeCompleter{}, nil)

	results := []core.SearchResult{
		{Title: "politique climatique", Snippet: "", URL: "https://a.test"},
		{Title: "politique climatique", Snippet: "", URL: "https://b.test"},
	}
	ranked := r.rank(results, "politique climatique", nil)
	require.Len(t, ranked, 2)
	assert.Equal(t, "https://a.test", ranked[0].URL)
	assert.Equal(t, "https://b.test", ranked[1].URL)
}

func TestRunWithProvidedKeywords(t *testing.T) {
	registry := search.NewRegistry()
	registry.Register(&search.MockProvider{
		Name: "mock",
		Results: []core.SearchResult{
			{Title: "politique climatique europe", URL: "https://a.test", Snippet: "politique climatique europe"},
			{Title: "politique climatique france", URL: "https://b.test", Snippet: "politique climatique france"},
			{Title: "divers", URL: "https://c.test", Snippet: "divers"},
		},
	})

	completer := &fakeCompleter{}
	r := newTestResearcher(completer, registry)

	query, err := core.NewResearchQuery("politique climatique", []string{"europe"}, 2, core.SearchDepthBasic)
	require.NoError(t, err)

	out, err := r.Run(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, "mock", out.SearchEngine)
	assert.LessOrEqual(t, len(out.Results), 2)
	// Keywords were provided, so no LLM call was issued.
	assert.Empty(t, completer.prompts)
}

func TestRunAugmentsKeywords(t *testing.T) {
	registry := search.NewRegistry()
	registry.Register(&search.MockProvider{Name: "mock", Results: []core.SearchResult{
		{Title: "politique climatique", URL: "https://a.test", Snippet: "politique climatique"},
	}})

	completer := &fakeCompleter{reply: "europe, émissions, accord de paris"}
	r := newTestResearcher(completer, registry)

	query, err := core.NewResearchQuery("politique climatique", nil, 3, core.SearchDepthBasic)
	require.NoError(t, err)

	out, err := r.Run(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, completer.prompts, 1)
	assert.Equal(t, []string{"europe", "émissions", "accord de paris"}, out.Query.Keywords)
}

func TestRunKeywordFallbackOnLLMFailure(t *testing.T) {
	registry := search.NewRegistry()
	registry.Register(&search.MockProvider{Name: "mock", Results: []core.SearchResult{
		{Title: "transition énergétique", URL: "https://a.test", Snippet: "transition énergétique"},
	}})

	completer := &fakeCompleter{err: errors.New("boom")}
	r := newTestResearcher(completer, registry)

	query, err := core.NewResearchQuery("La transition énergétique", nil, 3, core.SearchDepthBasic)
	require.NoError(t, err)

	out, err := r.Run(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, []string{"transition", "énergétique"}, out.Query.Keywords)
}

func TestRunAllProvidersFail(t *testing.T) {
	registry := search.NewRegistry()
	registry.Register(&search.MockProvider{Name: "mock", Err: errors.New("boom")})

	r := newTestResearcher(&fakeCompleter{}, registry)
	query, err := core.NewResearchQuery("politique climatique", []string{"europe"}, 3, core.SearchDepthBasic)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), query)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSearchFailure)
}
