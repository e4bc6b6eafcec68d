// Package extract implements the second pipeline stage: parallel
// retrieval of the researched URLs, content filtering and quality
// diagnostics.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"veilleur/internal/core"
	"veilleur/internal/fetch"
	"veilleur/internal/logger"
)

// MaxURLs bounds one extraction batch.
const MaxURLs = 50

// Fetcher retrieves one URL. Satisfied by fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Extracted, error)
}

// Filters are the optional per-run acceptance criteria.
type Filters struct {
	Language         string
	RequiredKeywords []string
	MinQuality       float64
}

// Extractor is the content extraction stage.
type Extractor struct {
	fetcher          Fetcher
	workers          int
	maxRetries       int
	attemptTimeout   time.Duration
	minContentLength int
	minWordCount     int

	sleep func(time.Duration)
}

// Options configures an Extractor.
type Options struct {
	Workers          int
	MaxRetries       int
	AttemptTimeout   time.Duration
	MinContentLength int
}

// NewExtractor wires the stage to a fetcher.
func NewExtractor(fetcher Fetcher, opts Options) *Extractor {
	workers := opts.Workers
	if workers == 0 {
		workers = 5
	}
	attemptTimeout := opts.AttemptTimeout
	if attemptTimeout == 0 {
		attemptTimeout = 30 * time.Second
	}
	minContentLength := opts.MinContentLength
	if minContentLength == 0 {
		minContentLength = 200
	}
	return &Extractor{
		fetcher:          fetcher,
		workers:          workers,
		maxRetries:       opts.MaxRetries,
		attemptTimeout:   attemptTimeout,
		minContentLength: minContentLength,
		minWordCount:     20,
		sleep:            time.Sleep,
	}
}

// Run extracts all valid URLs in parallel. Per-URL failures land in
// FailedURLs; the stage itself fails only when no URL survives
// validation.
func (e *Extractor) Run(ctx context.Context, urls []string, filters Filters) (*core.ExtractionResult, error) {
	start := time.Now()

	valid := make([]string, 0, len(urls))
	for _, rawURL := range urls {
		if err := core.ValidateURL(rawURL); err != nil {
			logger.Warn("skipping invalid URL", "url", rawURL, "error", err.Error())
			continue
		}
		valid = append(valid, rawURL)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid URLs to extract", core.ErrExtractionFailure)
	}
	if len(valid) > MaxURLs {
		logger.Warn("truncating URL batch", "requested", len(valid), "max", MaxURLs)
		valid = valid[:MaxURLs]
	}

	type outcome struct {
		doc *core.Document
		err error
	}
	outcomes := make([]outcome, len(valid))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, rawURL := range valid {
		g.Go(func() error {
			doc, err := e.extractOne(gctx, rawURL, filters)
			outcomes[i] = outcome{doc: doc, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := &core.ExtractionResult{
		TotalURLs: len(valid),
	}
	var qualitySum float64
	for i, out := range outcomes {
		if out.err != nil {
			logger.Warn("extraction failed", "url", valid[i], "error", out.err.Error())
			result.FailedURLs = append(result.FailedURLs, valid[i])
			continue
		}
		result.Documents = append(result.Documents, *out.doc)
		qualitySum += qualityScore(*out.doc)
	}
	result.SuccessfulExtractions = len(result.Documents)
	result.FailedExtractions = len(result.FailedURLs)
	result.ElapsedTime = time.Since(start)

	stats := map[string]string{
		"workers": fmt.Sprintf("%d", e.workers),
	}
	if result.SuccessfulExtractions > 0 {
		stats["avg_quality"] = fmt.Sprintf("%.2f", qualitySum/float64(result.SuccessfulExtractions))
	}
	result.Stats = stats

	return result, nil
}

// extractOne fetches a URL with retries and applies the filters.
func (e *Extractor) extractOne(ctx context.Context, rawURL string, filters Filters) (*core.Document, error) {
	var extracted *fetch.Extracted
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", core.ErrTimeout, ctx.Err())
			default:
			}
			e.sleep(backoff)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
		extracted, lastErr = e.fetcher.Fetch(attemptCtx, rawURL)
		cancel()
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	doc := core.NewDocument(extracted.Title, rawURL, extracted.Content, docType(extracted.ContentType))
	doc.Author = extracted.Author
	doc.PublishedDate = extracted.PublishedDate

	if err := e.accept(doc, filters); err != nil {
		return nil, err
	}
	return &doc, nil
}

// accept applies the configured filters to an extracted document.
func (e *Extractor) accept(doc core.Document, filters Filters) error {
	if len(doc.Content) < e.minContentLength {
		return fmt.Errorf("content too short: %d characters", len(doc.Content))
	}
	if doc.WordCount < e.minWordCount {
		return fmt.Errorf("content too short: %d words", doc.WordCount)
	}
	if filters.Language != "" && !strings.EqualFold(doc.Language, filters.Language) {
		return fmt.Errorf("language %q does not match filter %q", doc.Language, filters.Language)
	}
	if len(filters.RequiredKeywords) > 0 {
		content := strings.ToLower(doc.Content)
		found := false
		for _, kw := range filters.RequiredKeywords {
			if strings.Contains(content, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("none of the required keywords present")
		}
	}
	if filters.MinQuality > 0 && qualityScore(doc) < filters.MinQuality {
		return fmt.Errorf("quality below minimum %.2f", filters.MinQuality)
	}
	return nil
}

func docType(ct fetch.ContentType) core.DocType {
	switch ct {
	case fetch.ContentTypePDF:
		return core.DocTypeReport
	case fetch.ContentTypeHTML:
		return core.DocTypeArticle
	default:
		return core.DocTypeOther
	}
}

// qualityScore is an additive diagnostic in [0,1]: rewarded for
// length, title, author, date and structural markers, penalized when
// most lines repeat.
func qualityScore(doc core.Document) float64 {
	score := 0.0

	switch {
	case doc.WordCount >= 100:
		score += 0.3
	case doc.WordCount >= 50:
		score += 0.1
	}
	if strings.TrimSpace(doc.Title) != "" {
		score += 0.2
	}
	if doc.Author != "" {
		score += 0.1
	}
	if doc.PublishedDate != nil {
		score += 0.1
	}

	content := strings.ToLower(doc.Content)
	for _, marker := range []string{"introduction", "conclusion", "sommaire"} {
		if strings.Contains(content, marker) {
			score += 0.2
			break
		}
	}

	lines := strings.Split(doc.Content, "\n")
	if len(lines) > 1 {
		unique := make(map[string]bool, len(lines))
		for _, line := range lines {
			unique[strings.TrimSpace(line)] = true
		}
		if len(unique)*2 < len(lines) {
			score -= 0.2
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
