package synthesis

import (
	"context"
	"fmt"
	"strings"

	"veilleur/internal/core"
	"veilleur/internal/llm"
)

// executiveSummary issues one call and parses the response into the
// three bullet lists of the report opening. If no findings can be
// parsed, the first three sentences of the response serve as findings.
func (s *Synthesizer) executiveSummary(ctx context.Context, topic string, summarization *core.SummarizationOutput) (*core.ExecutiveSummary, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Sujet de recherche : %s\n\n", topic)
	for i, summary := range summarization.Summaries {
		fmt.Fprintf(&b, "Source %d : %s\n", i+1, summary.ExecutiveSummary)
	}
	writePromptList(&b, "\nThèmes identifiés", summarization.CommonThemes)
	b.WriteString("\nRédige un résumé exécutif avec trois parties étiquetées, chacune sous forme de puces (- ) :\n")
	b.WriteString("PRINCIPAUX CONSTATS:\nENSEIGNEMENTS:\nRECOMMANDATIONS:\n")

	response, err := s.llm.Completion(ctx, b.String(), synthesisSystemPrompt,
		&llm.Params{Temperature: 0.3, MaxTokens: 1000})
	if err != nil {
		return nil, err
	}

	executive := parseExecutiveSummary(response)
	executive.SummaryText = strings.TrimSpace(response)
	return executive, nil
}

// parseExecutiveSummary scans for the three section markers and
// collects the bullets under each.
func parseExecutiveSummary(response string) *core.ExecutiveSummary {
	executive := &core.ExecutiveSummary{}
	current := ""

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		isBullet := strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "• ")

		if !isBullet && len(trimmed) <= 60 {
			switch {
			case strings.Contains(lower, "constat") || strings.Contains(lower, "finding"):
				current = "findings"
				continue
			case strings.Contains(lower, "enseignement") || strings.Contains(lower, "insight"):
				current = "insights"
				continue
			case strings.Contains(lower, "recommandation") || strings.Contains(lower, "recommendation"):
				current = "recommendations"
				continue
			}
		}

		if !isBullet || current == "" {
			continue
		}
		item := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(trimmed, "- "), "• "))
		if item == "" {
			continue
		}
		switch current {
		case "findings":
			executive.KeyFindings = append(executive.KeyFindings, item)
		case "insights":
			executive.MainInsights = append(executive.MainInsights, item)
		case "recommendations":
			executive.Recommendations = append(executive.Recommendations, item)
		}
	}

	if len(executive.KeyFindings) == 0 {
		executive.KeyFindings = firstSentences(response, 3)
	}
	return executive
}

// firstSentences returns up to n leading sentences of the text.
func firstSentences(text string, n int) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range strings.TrimSpace(text) {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(current.String())
			if len(sentence) > 1 {
				sentences = append(sentences, sentence)
			}
			current.Reset()
			if len(sentences) == n {
				return sentences
			}
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" && len(sentences) < n {
		sentences = append(sentences, rest)
	}
	return sentences
}
