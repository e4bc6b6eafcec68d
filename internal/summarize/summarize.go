// Package summarize implements the third pipeline stage: per-document
// summaries through the LLM, plus cross-document analysis.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"veilleur/internal/core"
	"veilleur/internal/llm"
	"veilleur/internal/logger"
)

// MaxDocuments bounds one summarization batch.
const MaxDocuments = 20

// Client is the LLM capability the summarizer needs.
type Client interface {
	Completion(ctx context.Context, prompt, systemPrompt string, params *llm.Params) (string, error)
	Batch(ctx context.Context, prompts []string, systemPrompt string, params *llm.Params) []string
}

// Summarizer is the summarization stage.
type Summarizer struct {
	llm              Client
	workers          int
	chunkThreshold   int
	maxKeyPoints     int
	detailedAnalysis bool
	includeSentiment bool
	chunking         bool

	now func() time.Time
}

// Options configures a Summarizer.
type Options struct {
	Workers          int
	ChunkThreshold   int
	MaxKeyPoints     int
	DetailedAnalysis bool
	IncludeSentiment bool
	DisableChunking  bool
}

// NewSummarizer wires the stage to an LLM client.
func NewSummarizer(client Client, opts Options) *Summarizer {
	workers := opts.Workers
	if workers == 0 {
		workers = 3
	}
	chunkThreshold := opts.ChunkThreshold
	if chunkThreshold == 0 {
		chunkThreshold = 6000
	}
	maxKeyPoints := opts.MaxKeyPoints
	if maxKeyPoints == 0 {
		maxKeyPoints = 5
	}
	return &Summarizer{
		llm:              client,
		workers:          workers,
		chunkThreshold:   chunkThreshold,
		maxKeyPoints:     maxKeyPoints,
		detailedAnalysis: opts.DetailedAnalysis,
		includeSentiment: opts.IncludeSentiment,
		chunking:         !opts.DisableChunking,
		now:              time.Now,
	}
}

// Run summarizes every document with a bounded worker pool. Failing
// documents yield explicit error summaries; the stage errors only on
// invalid input.
func (s *Summarizer) Run(ctx context.Context, docs []core.Document) (*core.SummarizationOutput, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents to summarize", core.ErrValidation)
	}
	if len(docs) > MaxDocuments {
		return nil, fmt.Errorf("%w: too many documents: %d (max %d)", core.ErrValidation, len(docs), MaxDocuments)
	}
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			return nil, fmt.Errorf("%w: document %q has empty content", core.ErrValidation, doc.URL)
		}
	}

	start := s.now()
	summaries := make([]core.DocumentSummary, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, doc := range docs {
		g.Go(func() error {
			summary, err := s.summarizeOne(gctx, doc)
			if err != nil {
				logger.Warn("document summarization failed", "url", doc.URL, "error", err.Error())
				summary = s.errorSummary(doc, err)
			}
			summaries[i] = *summary
			return nil
		})
	}
	_ = g.Wait()

	output := &core.SummarizationOutput{
		Summaries:           summaries,
		TotalDocuments:      len(docs),
		TotalProcessingTime: s.now().Sub(start),
		AverageCredibility:  averageCredibility(summaries),
	}

	if len(summaries) >= 2 {
		themes, consensus, conflicts := s.crossDocumentAnalysis(ctx, summaries)
		output.CommonThemes = themes
		output.ConsensusPoints = consensus
		output.ConflictingViews = conflicts
	}

	return output, nil
}

// summarizeOne picks the per-document path by content size.
func (s *Summarizer) summarizeOne(ctx context.Context, doc core.Document) (*core.DocumentSummary, error) {
	start := s.now()

	var summary *core.DocumentSummary
	var err error
	if s.chunking && len(doc.Content) > s.chunkThreshold {
		summary, err = s.summarizeLarge(ctx, doc)
	} else {
		summary, err = s.summarizeStandard(ctx, doc)
	}
	if err != nil {
		return nil, err
	}

	summary.DocumentID = core.DocumentID(doc.URL, doc.Title)
	summary.Title = doc.Title
	summary.URL = doc.URL
	summary.ProcessedAt = s.now()
	summary.ProcessingTime = s.now().Sub(start)
	return summary, nil
}

const summarySystemPrompt = "Tu es un analyste documentaire rigoureux. Tu réponds en français, de façon structurée et factuelle."

// summarizeStandard issues up to three concurrent calls for one
// document: executive summary, detailed analysis, sentiment.
func (s *Summarizer) summarizeStandard(ctx context.Context, doc core.Document) (*core.DocumentSummary, error) {
	content := llm.Truncate(doc.Content, 3000)

	var wg sync.WaitGroup
	var execText, detailText, sentimentText string
	var execErr, detailErr, sentimentErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		prompt := fmt.Sprintf(
			"Document : %s\n\n%s\n\nRédige un résumé exécutif de ce document en 3 à 5 phrases.",
			doc.Title, content)
		execText, execErr = s.llm.Completion(ctx, prompt, summarySystemPrompt, &llm.Params{Temperature: 0.3, MaxTokens: 500})
	}()

	if s.detailedAnalysis {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt := fmt.Sprintf(
				"Document : %s\n\n%s\n\nFais une analyse détaillée de ce document puis liste les points clés sous forme de puces (- ).",
				doc.Title, content)
			detailText, detailErr = s.llm.Completion(ctx, prompt, summarySystemPrompt, &llm.Params{Temperature: 0.3, MaxTokens: 1000})
		}()
	}

	if s.includeSentiment {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt := fmt.Sprintf(
				"Document : %s\n\n%s\n\nQuel est le ton général de ce document (positif, négatif ou neutre) ? Donne aussi une note de crédibilité sur 10 (format \"crédibilité: X/10\").",
				doc.Title, content)
			sentimentText, sentimentErr = s.llm.Completion(ctx, prompt, summarySystemPrompt, &llm.Params{Temperature: 0.2, MaxTokens: 300})
		}()
	}

	wg.Wait()

	if execErr != nil {
		return nil, execErr
	}

	summary := &core.DocumentSummary{
		ExecutiveSummary: strings.TrimSpace(execText),
	}

	if s.detailedAnalysis {
		if detailErr != nil {
			logger.Warn("detailed analysis failed", "url", doc.URL, "error", detailErr.Error())
		} else {
			summary.DetailedSummary = strings.TrimSpace(detailText)
			summary.KeyPoints = parseKeyPoints(detailText, s.maxKeyPoints)
		}
	}

	if s.includeSentiment {
		if sentimentErr != nil {
			logger.Warn("sentiment analysis failed", "url", doc.URL, "error", sentimentErr.Error())
		} else {
			summary.Sentiment = classifySentiment(sentimentText)
			summary.CredibilityScore = parseCredibility(sentimentText)
		}
	}

	return summary, nil
}

// errorSummary records a document-level failure without scores.
func (s *Summarizer) errorSummary(doc core.Document, err error) *core.DocumentSummary {
	return &core.DocumentSummary{
		DocumentID:       core.DocumentID(doc.URL, doc.Title),
		Title:            doc.Title,
		URL:              doc.URL,
		ExecutiveSummary: fmt.Sprintf("Erreur : impossible de résumer ce document (%v)", err),
		ProcessedAt:      s.now(),
	}
}

// averageCredibility is the mean of the known credibility scores, nil
// when no summary carries one.
func averageCredibility(summaries []core.DocumentSummary) *float64 {
	var sum float64
	count := 0
	for _, summary := range summaries {
		if summary.CredibilityScore != nil {
			sum += *summary.CredibilityScore
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := sum / float64(count)
	return &avg
}
