// Package synthesis implements the final pipeline stage: it merges the
// per-document summaries into one structured report with deterministic
// renderings.
package synthesis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"veilleur/internal/core"
	"veilleur/internal/llm"
	"veilleur/internal/logger"
	"veilleur/internal/render"
)

// Completer is the LLM capability the synthesizer needs.
type Completer interface {
	Completion(ctx context.Context, prompt, systemPrompt string, params *llm.Params) (string, error)
}

// Synthesizer is the report generation stage.
type Synthesizer struct {
	llm        Completer
	reportType string

	now func() time.Time
}

// Options configures a Synthesizer.
type Options struct {
	ReportType string
}

// NewSynthesizer wires the stage to an LLM client.
func NewSynthesizer(completer Completer, opts Options) *Synthesizer {
	reportType := opts.ReportType
	if reportType == "" {
		reportType = "research_report"
	}
	return &Synthesizer{
		llm:        completer,
		reportType: reportType,
		now:        time.Now,
	}
}

const synthesisSystemPrompt = "Tu es un rédacteur de rapports de recherche. Tu écris en français, de façon structurée, avec des titres de section en markdown (## )."

// Run builds the final report: main synthesis and thematic analysis in
// parallel, then the executive summary, then deterministic assembly.
func (s *Synthesizer) Run(ctx context.Context, topic string, summarization *core.SummarizationOutput) (*core.GlobalSynthesisOutput, error) {
	if summarization == nil || len(summarization.Summaries) == 0 {
		return nil, fmt.Errorf("%w: no summaries to synthesize", core.ErrValidation)
	}

	start := s.now()

	var wg sync.WaitGroup
	var mainText, thematicText string
	var mainErr, thematicErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		mainText, mainErr = s.llm.Completion(ctx, s.mainSynthesisPrompt(topic, summarization),
			synthesisSystemPrompt, &llm.Params{Temperature: 0.4, MaxTokens: 3000})
	}()
	go func() {
		defer wg.Done()
		thematicText, thematicErr = s.llm.Completion(ctx, s.thematicPrompt(topic, summarization),
			synthesisSystemPrompt, &llm.Params{Temperature: 0.4, MaxTokens: 1500})
	}()
	wg.Wait()

	if mainErr != nil {
		return nil, mainErr
	}
	if thematicErr != nil {
		return nil, thematicErr
	}

	introduction, conclusion, sections := parseSections(mainText)
	sections = append(sections, core.ReportSection{
		Title:   "Analyse thématique",
		Content: strings.TrimSpace(thematicText),
		Order:   len(sections) + 1,
	})

	executive, err := s.executiveSummary(ctx, topic, summarization)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now()
	report := core.FinalReport{
		ReportID:              core.ReportID(topic, generatedAt),
		Title:                 "Synthèse: " + topic,
		Topic:                 topic,
		ReportType:            s.reportType,
		ReportFormat:          "markdown",
		ExecutiveSummary:      *executive,
		Introduction:          introduction,
		MainSections:          sections,
		Conclusion:            conclusion,
		KeyThemes:             summarization.CommonThemes,
		ConsensusPoints:       summarization.ConsensusPoints,
		ConflictingViewpoints: summarization.ConflictingViews,
		EmergingTrends:        parseTrends(thematicText),
		Methodology:           methodology(summarization),
		Sources:               sourceReferences(summarization.Summaries),
		GeneratedAt:           generatedAt,
	}

	completeness := float64(len(summarization.Summaries)) / 5
	if completeness > 1 {
		completeness = 1
	}
	reliability := 0.5
	if summarization.AverageCredibility != nil {
		reliability = *summarization.AverageCredibility
	}
	coherence := float64(len(sections)) / 3
	if coherence > 1 {
		coherence = 1
	}

	report.CompletenessScore = completeness
	report.ConfidenceScore = 0.4*completeness + 0.4*reliability + 0.2*coherence
	report.WordCount = wordCount(&report)
	report.FormattedOutputs = render.All(&report)

	logger.Info("report generated", "report_id", report.ReportID,
		"sections", len(report.MainSections), "words", report.WordCount)

	return &core.GlobalSynthesisOutput{
		Report:           report,
		ReliabilityScore: reliability,
		CoherenceScore:   coherence,
		ElapsedTime:      s.now().Sub(start),
	}, nil
}

func (s *Synthesizer) mainSynthesisPrompt(topic string, summarization *core.SummarizationOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sujet de recherche : %s\n\n", topic)
	b.WriteString("Résumés des documents analysés :\n\n")
	for i, summary := range summarization.Summaries {
		text := summary.DetailedSummary
		if text == "" {
			text = summary.ExecutiveSummary
		}
		fmt.Fprintf(&b, "Source %d (%s) :\n%s\n\n", i+1, summary.Title, text)
	}
	writePromptList(&b, "Thèmes identifiés", summarization.CommonThemes)
	writePromptList(&b, "Points de consensus", summarization.ConsensusPoints)
	writePromptList(&b, "Points contradictoires", summarization.ConflictingViews)
	b.WriteString("Rédige un rapport de synthèse structuré en sections markdown (## ), ")
	b.WriteString("commençant par une section Introduction et se terminant par une section Conclusion.")
	return b.String()
}

func (s *Synthesizer) thematicPrompt(topic string, summarization *core.SummarizationOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sujet de recherche : %s\n\n", topic)
	for i, summary := range summarization.Summaries {
		fmt.Fprintf(&b, "Source %d : %s\n", i+1, summary.ExecutiveSummary)
	}
	b.WriteString("\nDégage les grandes lignes thématiques de ces sources, puis liste les tendances émergentes sous forme de puces (- ) dans une partie intitulée Tendances émergentes.")
	return b.String()
}

func writePromptList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s :\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

// parseSections splits the main synthesis on `## ` headings, lifting
// Introduction and Conclusion out of the body. Without headings the
// whole text becomes a single general section.
func parseSections(text string) (introduction, conclusion string, sections []core.ReportSection) {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "## ") {
		return "", "", []core.ReportSection{{Title: "Analyse générale", Content: text, Order: 1}}
	}

	parts := strings.Split(text, "## ")
	order := 1
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		title := part
		content := ""
		if idx := strings.Index(part, "\n"); idx >= 0 {
			title = strings.TrimSpace(part[:idx])
			content = strings.TrimSpace(part[idx+1:])
		}
		title = strings.TrimPrefix(title, "#")
		title = strings.TrimSpace(title)

		lower := strings.ToLower(title)
		switch {
		case strings.Contains(lower, "introduction"):
			introduction = content
		case strings.Contains(lower, "conclusion"):
			conclusion = content
		default:
			sections = append(sections, core.ReportSection{Title: title, Content: content, Order: order})
			order++
		}
	}

	if len(sections) == 0 && introduction == "" && conclusion == "" {
		sections = []core.ReportSection{{Title: "Analyse générale", Content: text, Order: 1}}
	}
	return introduction, conclusion, sections
}

// parseTrends extracts the bullet list under a "tendances" marker in
// the thematic analysis, if any.
func parseTrends(text string) []string {
	var trends []string
	collecting := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "tendance") && !strings.HasPrefix(trimmed, "- ") {
			collecting = true
			continue
		}
		if !collecting {
			continue
		}
		if strings.HasPrefix(trimmed, "- ") {
			if item := strings.TrimSpace(trimmed[2:]); item != "" {
				trends = append(trends, item)
			}
		} else if trimmed != "" {
			break
		}
	}
	return trends
}
