// Package pipeline orchestrates the four research stages around the
// memory subsystem and exposes the callable tool surface.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"veilleur/internal/core"
	"veilleur/internal/extract"
	"veilleur/internal/logger"
	"veilleur/internal/memory"
)

// Stage interfaces keep the orchestrator testable with stubs.
type (
	ResearchStage interface {
		Run(ctx context.Context, query core.ResearchQuery) (*core.ResearchOutput, error)
	}
	ExtractStage interface {
		Run(ctx context.Context, urls []string, filters extract.Filters) (*core.ExtractionResult, error)
	}
	SummarizeStage interface {
		Run(ctx context.Context, docs []core.Document) (*core.SummarizationOutput, error)
	}
	SynthesisStage interface {
		Run(ctx context.Context, topic string, summarization *core.SummarizationOutput) (*core.GlobalSynthesisOutput, error)
	}
)

// Pipeline wires the stages together. The memory subsystem is an
// explicit dependency so tests can supply an in-process backend.
type Pipeline struct {
	research   ResearchStage
	extract    ExtractStage
	summarize  SummarizeStage
	synthesize SynthesisStage
	memory     *memory.Memory

	deadline time.Duration
	dumpDir  string
	now      func() time.Time
}

// Options configures a Pipeline.
type Options struct {
	Deadline time.Duration
	DumpDir  string
}

// New assembles a pipeline from its stages.
func New(research ResearchStage, ext ExtractStage, summarize SummarizeStage,
	synthesize SynthesisStage, mem *memory.Memory, opts Options) *Pipeline {
	deadline := opts.Deadline
	if deadline == 0 {
		deadline = 10 * time.Minute
	}
	return &Pipeline{
		research:   research,
		extract:    ext,
		summarize:  summarize,
		synthesize: synthesize,
		memory:     mem,
		deadline:   deadline,
		dumpDir:    opts.DumpDir,
		now:        time.Now,
	}
}

// Run executes the complete pipeline for a topic and returns the
// markdown report. maxResults is clamped to [2,10]. On failure the
// error is recorded in the conversation log and no report survives.
func (p *Pipeline) Run(ctx context.Context, topic string, maxResults int, useCache bool) (string, error) {
	if maxResults < 2 {
		maxResults = 2
	}
	if maxResults > 10 {
		maxResults = 10
	}

	runID := uuid.NewString()
	logger.Info("pipeline run starting", "run_id", runID, "topic", topic, "max_results", fmt.Sprintf("%d", maxResults))

	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	if useCache {
		if cached, err := p.memory.CacheGet(topic); err != nil {
			return "", p.fail(topic, err)
		} else if cached != nil {
			logger.Info("cache hit", "topic", topic, "report_id", cached.ReportID)
			return cached.FormattedOutputs["markdown"], nil
		}
	}

	// Informational only: prior context and neighboring topics.
	if prior, err := p.memory.RelevantContext(ctx, topic, 3, ""); err == nil && prior != "" {
		logger.Debug("prior context available", "topic", topic)
	}
	if related, err := p.memory.RelatedTopics(topic, 0.5); err == nil && len(related) > 0 {
		logger.Debug("related topics in cache", "topics", fmt.Sprintf("%v", related))
	}

	query, err := core.NewResearchQuery(topic, nil, maxResults, core.SearchDepthBasic)
	if err != nil {
		return "", p.fail(topic, err)
	}

	researchOut, err := p.research.Run(ctx, query)
	if err != nil {
		return "", p.fail(topic, err)
	}
	p.dump("research_output", researchOut)
	if len(researchOut.Results) == 0 {
		return "", p.fail(topic, fmt.Errorf("%w: no relevant results for %q", core.ErrSearchFailure, topic))
	}

	urls := make([]string, 0, len(researchOut.Results))
	for _, result := range researchOut.Results {
		urls = append(urls, result.URL)
	}

	extractionOut, err := p.extract.Run(ctx, urls, extract.Filters{})
	if err != nil {
		return "", p.fail(topic, err)
	}
	p.dump("extraction_result", extractionOut)

	docs, err := p.dropDuplicates(extractionOut.Documents)
	if err != nil {
		return "", p.fail(topic, err)
	}
	if len(docs) == 0 {
		return "", p.fail(topic, fmt.Errorf("%w: no new documents after deduplication", core.ErrExtractionFailure))
	}

	summarizationOut, err := p.summarize.Run(ctx, docs)
	if err != nil {
		return "", p.fail(topic, err)
	}
	p.dump("summarization_output", summarizationOut)

	synthesisOut, err := p.synthesize.Run(ctx, topic, summarizationOut)
	if err != nil {
		return "", p.fail(topic, err)
	}
	p.dump("global_synthesis_output", synthesisOut)

	report := synthesisOut.Report
	if err := p.persist(ctx, runID, topic, researchOut.Query, docs, summarizationOut, &report); err != nil {
		return "", p.fail(topic, err)
	}

	return report.FormattedOutputs["markdown"], nil
}

// dropDuplicates removes documents whose content is already stored.
func (p *Pipeline) dropDuplicates(docs []core.Document) ([]core.Document, error) {
	var kept []core.Document
	seen := make(map[string]bool)
	for _, doc := range docs {
		hash := core.ContentHash(doc.Content)
		if seen[hash] {
			logger.Debug("dropping duplicate document", "url", doc.URL)
			continue
		}
		known, err := p.memory.IsDuplicate(doc.Content)
		if err != nil {
			return nil, err
		}
		if known {
			logger.Debug("dropping duplicate document", "url", doc.URL)
			continue
		}
		seen[hash] = true
		kept = append(kept, doc)
	}
	return kept, nil
}

// persist stores the run's artifacts: documents, summaries, one
// synthesis record, the report cache entry, the topic keywords and a
// conversation entry.
func (p *Pipeline) persist(ctx context.Context, runID, topic string, query core.ResearchQuery,
	docs []core.Document, summarization *core.SummarizationOutput, report *core.FinalReport) error {

	items := make([]memory.Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, memory.Item{Title: doc.Title, URL: doc.URL, Content: doc.Content})
	}
	if _, err := p.memory.AddItems(ctx, items, "research", true); err != nil {
		return err
	}

	summaryItems := make([]memory.Item, 0, len(summarization.Summaries))
	for _, summary := range summarization.Summaries {
		content := summary.ExecutiveSummary
		if summary.DetailedSummary != "" {
			content += "\n\n" + summary.DetailedSummary
		}
		summaryItems = append(summaryItems, memory.Item{Title: summary.Title, URL: summary.URL, Content: content})
	}
	if _, err := p.memory.AddItems(ctx, summaryItems, "summary", true); err != nil {
		return err
	}

	synthesisItem := memory.Item{
		Title:   "Synthèse: " + topic,
		Content: report.FormattedOutputs["markdown"],
	}
	if _, err := p.memory.AddItems(ctx, []memory.Item{synthesisItem}, "synthesis", true); err != nil {
		return err
	}

	for _, doc := range docs {
		for _, summary := range summarization.Summaries {
			if summary.URL == doc.URL {
				if err := p.memory.PutSummary(core.ContentHash(doc.Content), &summary); err != nil {
					return err
				}
				break
			}
		}
	}

	if err := p.memory.SetKeywords(topic, query.Keywords); err != nil {
		return err
	}
	if err := p.memory.CachePut(topic, report); err != nil {
		return err
	}

	return p.memory.AppendConversation(core.ConversationEntry{
		Timestamp: p.now(),
		User:      fmt.Sprintf("recherche: %s", topic),
		Assistant: fmt.Sprintf("Rapport %s généré (%d sources).", report.ReportID, len(report.Sources)),
		Metadata: map[string]string{
			"run_id":    runID,
			"report_id": report.ReportID,
			"sources":   fmt.Sprintf("%d", len(report.Sources)),
		},
	})
}

// fail records the error in the conversation log before surfacing it.
func (p *Pipeline) fail(topic string, err error) error {
	logger.Error("pipeline run failed", err, "topic", topic)
	appendErr := p.memory.AppendConversation(core.ConversationEntry{
		Timestamp: p.now(),
		User:      fmt.Sprintf("recherche: %s", topic),
		Assistant: ErrorString(err),
		Metadata:  map[string]string{"error": core.ErrorKind(err)},
	})
	if appendErr != nil {
		logger.Warn("failed to record error in conversation log", "error", appendErr.Error())
	}
	return err
}

// ErrorString is the one-line structured form surfaced to tool callers.
func ErrorString(err error) string {
	return fmt.Sprintf("%s: %v", core.ErrorKind(err), err)
}
