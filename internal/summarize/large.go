package summarize

import (
	"context"
	"fmt"
	"strings"

	"veilleur/internal/chunker"
	"veilleur/internal/core"
	"veilleur/internal/llm"
	"veilleur/internal/logger"
)

// summarizeLarge handles documents above the chunk threshold: the
// content is chunked, every chunk is summarized in parallel, then one
// synthesis call merges the chunk summaries into a structured summary.
func (s *Summarizer) summarizeLarge(ctx context.Context, doc core.Document) (*core.DocumentSummary, error) {
	c, err := chunker.ForStrategy("default")
	if err != nil {
		return nil, err
	}
	chunks := c.Chunk(doc.Content)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced for %s", core.ErrLLMFailure, doc.URL)
	}

	prompts := make([]string, len(chunks))
	for i, chunk := range chunks {
		prompts[i] = fmt.Sprintf(
			"Document : %s (partie %d/%d)\n\n%s\n\nRésume cette partie du document en quelques phrases.",
			doc.Title, chunk.ChunkID, chunk.TotalChunks, chunk.Content)
	}

	responses := s.llm.Batch(ctx, prompts, summarySystemPrompt, &llm.Params{Temperature: 0.3, MaxTokens: 400})

	var chunkSummaries []string
	for i, response := range responses {
		if strings.HasPrefix(response, "ERROR:") {
			logger.Warn("chunk summarization failed", "url", doc.URL, "chunk", i+1, "error", response)
			continue
		}
		chunkSummaries = append(chunkSummaries, strings.TrimSpace(response))
	}
	if len(chunkSummaries) == 0 {
		return nil, fmt.Errorf("%w: all chunk summaries failed for %s", core.ErrLLMFailure, doc.URL)
	}

	synthesis, err := s.llm.Completion(ctx, largeSynthesisPrompt(doc.Title, chunkSummaries),
		summarySystemPrompt, &llm.Params{Temperature: 0.3, MaxTokens: 1500})
	if err != nil {
		return nil, err
	}

	summary := s.parseLargeSynthesis(synthesis)
	if summary == nil {
		// Parse failure: fall back to the raw chunk summaries.
		logger.Warn("unstructured synthesis response, falling back to chunk summaries", "url", doc.URL)
		summary = &core.DocumentSummary{
			ExecutiveSummary: strings.Join(chunkSummaries, "\n\n"),
		}
	}
	return summary, nil
}

func largeSynthesisPrompt(title string, chunkSummaries []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Voici les résumés des différentes parties du document %q :\n\n", title)
	for i, summary := range chunkSummaries {
		fmt.Fprintf(&b, "Partie %d :\n%s\n\n", i+1, summary)
	}
	b.WriteString("Fusionne ces résumés en une synthèse unique avec exactement quatre sections étiquetées :\n")
	b.WriteString("RÉSUMÉ EXÉCUTIF:\nRÉSUMÉ DÉTAILLÉ:\nPOINTS CLÉS: (sous forme de puces - )\nSENTIMENT ET CRÉDIBILITÉ: (ton général et note de crédibilité sur 10)\n")
	return b.String()
}

// parseLargeSynthesis extracts the four labeled sections; it returns
// nil when no executive summary can be located.
func (s *Summarizer) parseLargeSynthesis(response string) *core.DocumentSummary {
	sections := splitLabeledSections(response, []sectionMarker{
		{name: "executive", keywords: []string{"résumé exécutif", "resume executif"}},
		{name: "detailed", keywords: []string{"résumé détaillé", "resume detaille"}},
		{name: "keypoints", keywords: []string{"points clés", "points cles"}},
		{name: "sentiment", keywords: []string{"sentiment", "crédibilité", "credibilite"}},
	})

	executive := sections["executive"]
	if executive == "" {
		return nil
	}

	summary := &core.DocumentSummary{
		ExecutiveSummary: executive,
		DetailedSummary:  sections["detailed"],
	}
	if keypoints := sections["keypoints"]; keypoints != "" {
		summary.KeyPoints = parseKeyPoints(keypoints, s.maxKeyPoints)
	}
	if sentiment := sections["sentiment"]; sentiment != "" {
		summary.Sentiment = classifySentiment(sentiment)
		summary.CredibilityScore = parseCredibility(sentiment)
	}
	return summary
}
