// Package render produces the deterministic formatted outputs of a
// final report: markdown, plain text and HTML.
package render

import (
	"fmt"
	"html"
	"strings"

	"veilleur/internal/core"
)

// Formats lists the rendering keys populated on every report.
var Formats = []string{"markdown", "text", "html"}

// All renders every supported format.
func All(report *core.FinalReport) map[string]string {
	return map[string]string{
		"markdown": Markdown(report),
		"text":     Text(report),
		"html":     HTML(report),
	}
}

// Markdown renders the report with the canonical section order: title
// block, executive summary, introduction, main sections, key themes,
// conclusion, methodology, sources.
func Markdown(report *core.FinalReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", report.Title)
	fmt.Fprintf(&b, "**Rapport :** %s\n", report.ReportID)
	fmt.Fprintf(&b, "**Sujet :** %s\n", report.Topic)
	fmt.Fprintf(&b, "**Généré le :** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04"))

	b.WriteString("## Résumé exécutif\n\n")
	if report.ExecutiveSummary.SummaryText != "" {
		fmt.Fprintf(&b, "%s\n\n", report.ExecutiveSummary.SummaryText)
	}
	writeMarkdownList(&b, "Principaux constats", report.ExecutiveSummary.KeyFindings)
	writeMarkdownList(&b, "Enseignements", report.ExecutiveSummary.MainInsights)
	writeMarkdownList(&b, "Recommandations", report.ExecutiveSummary.Recommendations)

	if report.Introduction != "" {
		fmt.Fprintf(&b, "## Introduction\n\n%s\n\n", report.Introduction)
	}

	for _, section := range report.MainSections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", section.Title, section.Content)
	}

	if len(report.KeyThemes) > 0 {
		b.WriteString("## Thèmes clés\n\n")
		for _, theme := range report.KeyThemes {
			fmt.Fprintf(&b, "- %s\n", theme)
		}
		b.WriteString("\n")
	}

	if report.Conclusion != "" {
		fmt.Fprintf(&b, "## Conclusion\n\n%s\n\n", report.Conclusion)
	}

	b.WriteString("## Méthodologie\n\n")
	fmt.Fprintf(&b, "**Approche :** %s\n\n", report.Methodology.ResearchApproach)
	fmt.Fprintf(&b, "**Sources analysées :** %d\n\n", report.Methodology.SourcesCount)
	writeMarkdownList(&b, "Méthodes d'analyse", report.Methodology.AnalysisMethods)
	writeMarkdownList(&b, "Limites", report.Methodology.Limitations)
	if report.Methodology.DataQualityAssessment != "" {
		fmt.Fprintf(&b, "%s\n\n", report.Methodology.DataQualityAssessment)
	}

	b.WriteString("## Sources\n\n")
	for i, source := range report.Sources {
		fmt.Fprintf(&b, "%d. [%s](%s)", i+1, source.Title, source.URL)
		if source.CredibilityScore != nil {
			fmt.Fprintf(&b, " — crédibilité %.2f", *source.CredibilityScore)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeMarkdownList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s :**\n\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

// Text renders the same structure with dash-underlined headings.
func Text(report *core.FinalReport) string {
	var b strings.Builder

	writeTextHeading(&b, report.Title)
	fmt.Fprintf(&b, "Rapport : %s\n", report.ReportID)
	fmt.Fprintf(&b, "Sujet : %s\n", report.Topic)
	fmt.Fprintf(&b, "Généré le : %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04"))

	writeTextHeading(&b, "Résumé exécutif")
	if report.ExecutiveSummary.SummaryText != "" {
		fmt.Fprintf(&b, "%s\n\n", report.ExecutiveSummary.SummaryText)
	}
	writeTextList(&b, "Principaux constats", report.ExecutiveSummary.KeyFindings)
	writeTextList(&b, "Enseignements", report.ExecutiveSummary.MainInsights)
	writeTextList(&b, "Recommandations", report.ExecutiveSummary.Recommendations)

	if report.Introduction != "" {
		writeTextHeading(&b, "Introduction")
		fmt.Fprintf(&b, "%s\n\n", report.Introduction)
	}

	for _, section := range report.MainSections {
		writeTextHeading(&b, section.Title)
		fmt.Fprintf(&b, "%s\n\n", section.Content)
	}

	if len(report.KeyThemes) > 0 {
		writeTextHeading(&b, "Thèmes clés")
		for _, theme := range report.KeyThemes {
			fmt.Fprintf(&b, "- %s\n", theme)
		}
		b.WriteString("\n")
	}

	if report.Conclusion != "" {
		writeTextHeading(&b, "Conclusion")
		fmt.Fprintf(&b, "%s\n\n", report.Conclusion)
	}

	writeTextHeading(&b, "Méthodologie")
	fmt.Fprintf(&b, "Approche : %s\n", report.Methodology.ResearchApproach)
	fmt.Fprintf(&b, "Sources analysées : %d\n\n", report.Methodology.SourcesCount)
	writeTextList(&b, "Méthodes d'analyse", report.Methodology.AnalysisMethods)
	writeTextList(&b, "Limites", report.Methodology.Limitations)
	if report.Methodology.DataQualityAssessment != "" {
		fmt.Fprintf(&b, "%s\n\n", report.Methodology.DataQualityAssessment)
	}

	writeTextHeading(&b, "Sources")
	for i, source := range report.Sources {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, source.Title, source.URL)
		if source.CredibilityScore != nil {
			fmt.Fprintf(&b, " — crédibilité %.2f", *source.CredibilityScore)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeTextHeading(b *strings.Builder, title string) {
	fmt.Fprintf(b, "%s\n%s\n\n", title, strings.Repeat("-", len([]rune(title))))
}

func writeTextList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s :\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

const htmlStyle = `<style>
body { font-family: Georgia, serif; max-width: 48rem; margin: 2rem auto; line-height: 1.5; }
h1, h2 { color: #1a3c5e; }
ul { padding-left: 1.2rem; }
.meta { color: #666; font-size: 0.9rem; }
</style>`

// HTML renders the same structure as a standalone page with anchor
// tags for the sources.
func HTML(report *core.FinalReport) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html lang=\"fr\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(report.Title))
	b.WriteString(htmlStyle)
	b.WriteString("\n</head>\n<body>\n")

	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(report.Title))
	fmt.Fprintf(&b, "<p class=\"meta\">Rapport %s — généré le %s</p>\n",
		html.EscapeString(report.ReportID), report.GeneratedAt.Format("2006-01-02 15:04"))

	b.WriteString("<h2>Résumé exécutif</h2>\n")
	if report.ExecutiveSummary.SummaryText != "" {
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(report.ExecutiveSummary.SummaryText))
	}
	writeHTMLList(&b, "Principaux constats", report.ExecutiveSummary.KeyFindings)
	writeHTMLList(&b, "Enseignements", report.ExecutiveSummary.MainInsights)
	writeHTMLList(&b, "Recommandations", report.ExecutiveSummary.Recommendations)

	if report.Introduction != "" {
		fmt.Fprintf(&b, "<h2>Introduction</h2>\n<p>%s</p>\n", html.EscapeString(report.Introduction))
	}

	for _, section := range report.MainSections {
		fmt.Fprintf(&b, "<h2>%s</h2>\n<p>%s</p>\n",
			html.EscapeString(section.Title), html.EscapeString(section.Content))
	}

	writeHTMLList(&b, "Thèmes clés", report.KeyThemes)

	if report.Conclusion != "" {
		fmt.Fprintf(&b, "<h2>Conclusion</h2>\n<p>%s</p>\n", html.EscapeString(report.Conclusion))
	}

	b.WriteString("<h2>Méthodologie</h2>\n")
	fmt.Fprintf(&b, "<p>%s — %d sources analysées.</p>\n",
		html.EscapeString(report.Methodology.ResearchApproach), report.Methodology.SourcesCount)
	if report.Methodology.DataQualityAssessment != "" {
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(report.Methodology.DataQualityAssessment))
	}

	b.WriteString("<h2>Sources</h2>\n<ol>\n")
	for _, source := range report.Sources {
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n",
			html.EscapeString(source.URL), html.EscapeString(source.Title))
	}
	b.WriteString("</ol>\n</body>\n</html>\n")

	return b.String()
}

func writeHTMLList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "<h3>%s</h3>\n<ul>\n", html.EscapeString(label))
	for _, item := range items {
		fmt.Fprintf(b, "<li>%s</li>\n", html.EscapeString(item))
	}
	b.WriteString("</ul>\n")
}
