package synthesis

import (
	"fmt"
	"strings"

	"veilleur/internal/core"
)

// methodology is constructed deterministically from the inputs.
func methodology(summarization *core.SummarizationOutput) core.Methodology {
	assessment := fmt.Sprintf("%d sources analysées", len(summarization.Summaries))
	if summarization.AverageCredibility != nil {
		assessment += fmt.Sprintf(", crédibilité moyenne %.2f", *summarization.AverageCredibility)
	} else {
		assessment += ", crédibilité non évaluée"
	}
	assessment += "."

	return core.Methodology{
		ResearchApproach: "Recherche web multi-sources avec extraction de contenu et synthèse automatisée",
		SourcesCount:     len(summarization.Summaries),
		AnalysisMethods: []string{
			"résumé par document",
			"analyse croisée des sources",
			"synthèse thématique",
		},
		Limitations: []string{
			"couverture limitée aux sources accessibles publiquement",
			"analyse dépendante de la qualité des contenus extraits",
			"instantané à la date de génération",
		},
		DataQualityAssessment: assessment,
	}
}

// sourceReferences builds one reference per summary with a default
// citation count of 1.
func sourceReferences(summaries []core.DocumentSummary) []core.SourceReference {
	references := make([]core.SourceReference, 0, len(summaries))
	for _, summary := range summaries {
		references = append(references, core.SourceReference{
			Title:            summary.Title,
			URL:              summary.URL,
			CredibilityScore: summary.CredibilityScore,
			CitationCount:    1,
		})
	}
	return references
}

// wordCount totals the whitespace tokens across the narrative parts of
// the report.
func wordCount(report *core.FinalReport) int {
	count := len(strings.Fields(report.Introduction)) +
		len(strings.Fields(report.Conclusion)) +
		len(strings.Fields(report.ExecutiveSummary.SummaryText))
	for _, section := range report.MainSections {
		count += len(strings.Fields(section.Content))
	}
	return count
}
