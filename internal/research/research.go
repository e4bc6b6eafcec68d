// Package research implements the first pipeline stage: it augments
// the topic with keywords, queries the search providers and ranks the
// results by relevance.
package research

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"veilleur/internal/core"
	"veilleur/internal/llm"
	"veilleur/internal/logger"
	"veilleur/internal/search"
)

// DefaultMinScore is the relevance threshold below which results drop.
const DefaultMinScore = 0.1

// Completer is the LLM capability the researcher needs.
type Completer interface {
	Completion(ctx context.Context, prompt, systemPrompt string, params *llm.Params) (string, error)
}

// Searcher runs a query across the registered providers.
type Searcher interface {
	Search(ctx context.Context, query string, cfg search.Config) ([]core.SearchResult, string, error)
}

// Researcher is the search stage.
type Researcher struct {
	llm      Completer
	searcher Searcher
	language string
	timeout  time.Duration
	minScore float64
	now      func() time.Time
}

// Options configures a Researcher.
type Options struct {
	Language string
	Timeout  time.Duration
	MinScore float64
}

// NewResearcher wires the stage to an LLM client and a provider registry.
func NewResearcher(completer Completer, searcher Searcher, opts Options) *Researcher {
	language := opts.Language
	if language == "" {
		language = "fr"
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	minScore := opts.MinScore
	if minScore == 0 {
		minScore = DefaultMinScore
	}
	return &Researcher{
		llm:      completer,
		searcher: searcher,
		language: language,
		timeout:  timeout,
		minScore: minScore,
		now:      time.Now,
	}
}

// Run executes the stage: keyword augmentation, provider search with
// failover, then relevance ranking capped at the query's max results.
func (r *Researcher) Run(ctx context.Context, query core.ResearchQuery) (*core.ResearchOutput, error) {
	start := r.now()

	keywords := query.Keywords
	if len(keywords) == 0 {
		keywords = r.augmentKeywords(ctx, query.Topic)
	}
	query.Keywords = keywords

	searchQuery := r.composeQuery(query)
	logger.Debug("running search", "query", searchQuery, "depth", string(query.SearchDepth))

	results, provider, err := r.searcher.Search(ctx, searchQuery, search.Config{
		MaxResults: query.MaxResults,
		Depth:      query.SearchDepth,
		Language:   r.language,
		Timeout:    r.timeout,
	})
	if err != nil {
		return nil, err
	}

	ranked := r.rank(results, query.Topic, keywords)
	if len(ranked) > query.MaxResults {
		ranked = ranked[:query.MaxResults]
	}

	return &core.ResearchOutput{
		Query:        query,
		Results:      ranked,
		SearchEngine: provider,
		ElapsedTime:  r.now().Sub(start),
	}, nil
}

const keywordSystemPrompt = "Tu es un assistant de recherche documentaire. Tu réponds uniquement par une liste de mots-clés séparés par des virgules, sans commentaire."

// augmentKeywords asks the LLM for 3 to 7 search keywords; on any
// failure it falls back to tokenizing the topic.
func (r *Researcher) augmentKeywords(ctx context.Context, topic string) []string {
	prompt := fmt.Sprintf(
		"Sujet de recherche : %q\n\nPropose entre 3 et 7 mots-clés de recherche pertinents pour ce sujet, séparés par des virgules.",
		topic)

	response, err := r.llm.Completion(ctx, prompt, keywordSystemPrompt, &llm.Params{
		Temperature: 0.1,
		MaxTokens:   200,
	})
	if err != nil {
		logger.Warn("keyword augmentation failed, falling back to topic tokens", "error", err.Error())
		return fallbackKeywords(topic)
	}

	keywords := parseKeywords(response)
	if len(keywords) == 0 {
		return fallbackKeywords(topic)
	}
	return keywords
}

var listPrefixRe = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-•*]\s*)`)

// parseKeywords splits an LLM keyword list on commas and newlines,
// strips list prefixes and stop words, and caps the result at 7.
func parseKeywords(response string) []string {
	fields := strings.FieldsFunc(response, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	seen := make(map[string]bool)
	var keywords []string
	for _, field := range fields {
		kw := strings.ToLower(strings.TrimSpace(listPrefixRe.ReplaceAllString(field, "")))
		kw = strings.Trim(kw, `"'.`)
		if len([]rune(kw)) < 2 || stopWords[kw] || seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
		if len(keywords) == 7 {
			break
		}
	}
	return keywords
}

// fallbackKeywords derives keywords from the topic alone.
func fallbackKeywords(topic string) []string {
	var keywords []string
	for _, token := range strings.Fields(strings.ToLower(topic)) {
		token = strings.Trim(token, `"'.,:;!?()`)
		if len([]rune(token)) < 3 || stopWords[token] {
			continue
		}
		keywords = append(keywords, token)
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}

// composeQuery joins the topic with the keywords it does not already
// contain, plus a recency hint for advanced searches.
func (r *Researcher) composeQuery(query core.ResearchQuery) string {
	parts := []string{query.Topic}
	topicLower := strings.ToLower(query.Topic)
	for _, kw := range query.Keywords {
		if !strings.Contains(topicLower, strings.ToLower(kw)) {
			parts = append(parts, kw)
		}
	}
	if query.SearchDepth == core.SearchDepthAdvanced {
		year := r.now().Year()
		parts = append(parts, fmt.Sprintf("%d %d", year, year-1))
	}
	return strings.Join(parts, " ")
}

// rank scores each result on term coverage and recency, averages in
// the provider score when present, and drops everything below the
// minimum threshold. Ties keep provider order.
func (r *Researcher) rank(results []core.SearchResult, topic string, keywords []string) []core.SearchResult {
	terms := scoringTerms(topic, keywords)
	now := r.now()

	var ranked []core.SearchResult
	for _, result := range results {
		score := relevanceScore(result, terms, now)
		if result.Score > 0 && result.Score <= 1 {
			score = (score + result.Score) / 2
		}
		if score > 1 {
			score = 1
		}
		if score < r.minScore {
			continue
		}
		result.Score = score
		ranked = append(ranked, result)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

func scoringTerms(topic string, keywords []string) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		terms = append(terms, term)
	}
	for _, token := range strings.Fields(topic) {
		add(token)
	}
	for _, kw := range keywords {
		add(kw)
	}
	return terms
}

func relevanceScore(result core.SearchResult, terms []string, now time.Time) float64 {
	if len(terms) == 0 {
		return 0
	}

	title := strings.ToLower(result.Title)
	text := title + " " + strings.ToLower(result.Snippet)

	inText, inTitle := 0, 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			inText++
		}
		if strings.Contains(title, term) {
			inTitle++
		}
	}

	score := 0.6*float64(inText)/float64(len(terms)) + 0.3*float64(inTitle)/float64(len(terms))

	if result.PublishedDate != nil {
		daysOld := now.Sub(*result.PublishedDate).Hours() / 24
		recency := 1 - daysOld/365
		if recency < 0 {
			recency = 0
		}
		score += 0.1 * recency
	}
	return score
}

var stopWords = map[string]bool{
	"le": true, "la": true, "les": true, "un": true, "une": true,
	"de": true, "des": true, "du": true, "et": true, "ou": true,
	"en": true, "sur": true, "pour": true, "dans": true, "avec": true,
	"au": true, "aux": true, "ce": true, "ces": true, "que": true,
	"qui": true, "est": true, "sont": true, "par": true,
	"the": true, "a": true, "an": true, "of": true, "in": true,
	"on": true, "for": true, "and": true, "or": true, "to": true,
	"is": true, "are": true, "with": true,
}
