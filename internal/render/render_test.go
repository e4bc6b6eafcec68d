package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilleur/internal/core"
)

func sampleReport() *core.FinalReport {
	credibility := 0.8
	return &core.FinalReport{
		ReportID: "rpt_20260824_1200_abcd1234",
		Title:    "Synthèse: politique climatique",
		Topic:    "politique climatique",
		ExecutiveSummary: core.ExecutiveSummary{
			KeyFindings:     []string{"Constat un", "Constat deux"},
			MainInsights:    []string{"Enseignement un"},
			Recommendations: []string{"Recommandation un"},
			SummaryText:     "Vue d'ensemble du sujet.",
		},
		Introduction: "Présentation du contexte.",
		MainSections: []core.ReportSection{
			{Title: "Analyse réglementaire", Content: "Contenu un.", Order: 1},
			{Title: "Analyse économique", Content: "Contenu deux.", Order: 2},
		},
		Conclusion: "Bilan final.",
		KeyThemes:  []string{"transition", "émissions"},
		Methodology: core.Methodology{
			ResearchApproach:      "Recherche web multi-sources avec synthèse automatisée",
			SourcesCount:          2,
			AnalysisMethods:       []string{"résumé par document", "analyse croisée"},
			Limitations:           []string{"couverture limitée aux sources publiques"},
			DataQualityAssessment: "2 sources analysées, crédibilité moyenne 0.80.",
		},
		Sources: []core.SourceReference{
			{Title: "Source A", URL: "https://a.test", CredibilityScore: &credibility, CitationCount: 1},
			{Title: "Source B", URL: "https://b.test", CitationCount: 1},
		},
		GeneratedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

func TestMarkdownSectionOrder(t *testing.T) {
	md := Markdown(sampleReport())

	headings := []string{
		"# Synthèse: politique climatique",
		"## Résumé exécutif",
		"## Introduction",
		"## Analyse réglementaire",
		"## Analyse économique",
		"## Thèmes clés",
		"## Conclusion",
		"## Méthodologie",
		"## Sources",
	}
	last := -1
	for _, heading := range headings {
		idx := strings.Index(md, heading)
		require.GreaterOrEqual(t, idx, 0, heading)
		assert.Greater(t, idx, last, "heading out of order: %s", heading)
		last = idx
	}

	assert.Contains(t, md, "- Constat un")
	assert.Contains(t, md, "1. [Source A](https://a.test) — crédibilité 0.80")
	assert.Contains(t, md, "2. [Source B](https://b.test)\n")
}

func TestMarkdownDeterministic(t *testing.T) {
	report := sampleReport()
	assert.Equal(t, Markdown(report), Markdown(report))
}

func TestTextUnderlinedHeadings(t *testing.T) {
	text := Text(sampleReport())

	assert.Contains(t, text, "Résumé exécutif\n---------------")
	assert.Contains(t, text, "Conclusion\n----------")
	assert.Contains(t, text, "1. Source A (https://a.test)")
	assert.NotContains(t, text, "## ")
}

func TestHTMLStructure(t *testing.T) {
	page := HTML(sampleReport())

	assert.Contains(t, page, "<style>")
	assert.Contains(t, page, "<h1>Synthèse: politique climatique</h1>")
	assert.Contains(t, page, `<a href="https://a.test">Source A</a>`)
	assert.Contains(t, page, "<h2>Analyse réglementaire</h2>")
	// Content is escaped.
	report := sampleReport()
	report.Introduction = "a < b"
	assert.Contains(t, HTML(report), "a &lt; b")
}

func TestAllFormats(t *testing.T) {
	outputs := All(sampleReport())
	for _, format := range Formats {
		assert.NotEmpty(t, outputs[format], format)
	}
	assert.Len(t, outputs, len(Formats))
}
