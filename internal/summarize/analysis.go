package summarize

import (
	"context"
	"fmt"
	"strings"

	"veilleur/internal/core"
	"veilleur/internal/llm"
	"veilleur/internal/logger"
)

// crossDocumentAnalysis issues one call over all detailed summaries
// and parses themes, consensus points and conflicting views. On any
// failure all three lists stay empty.
func (s *Summarizer) crossDocumentAnalysis(ctx context.Context, summaries []core.DocumentSummary) (themes, consensus, conflicts []string) {
	var b strings.Builder
	b.WriteString("Voici les résumés de plusieurs documents sur un même sujet :\n\n")
	for i, summary := range summaries {
		text := summary.DetailedSummary
		if text == "" {
			text = summary.ExecutiveSummary
		}
		fmt.Fprintf(&b, "Document %d (%s) :\n%s\n\n", i+1, summary.Title, text)
	}
	b.WriteString("Analyse l'ensemble et réponds avec trois sections étiquetées, chacune sous forme de puces (- ) :\n")
	b.WriteString("THÈMES COMMUNS:\nPOINTS DE CONSENSUS:\nPOINTS CONTRADICTOIRES:\n")

	response, err := s.llm.Completion(ctx, b.String(), summarySystemPrompt,
		&llm.Params{Temperature: 0.3, MaxTokens: 1000})
	if err != nil {
		logger.Warn("cross-document analysis failed", "error", err.Error())
		return nil, nil, nil
	}

	sections := splitLabeledSections(response, []sectionMarker{
		{name: "themes", keywords: []string{"thème", "theme"}},
		{name: "consensus", keywords: []string{"consensus"}},
		{name: "conflicts", keywords: []string{"conflict", "contradictoire", "désaccord", "desaccord"}},
	})

	return parseBullets(sections["themes"]),
		parseBullets(sections["consensus"]),
		parseBullets(sections["conflicts"])
}
