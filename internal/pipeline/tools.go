package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// ResearchCompletePipelineWithMemory is the primary tool entry point:
// it returns either the markdown report or the one-line error string.
func (p *Pipeline) ResearchCompletePipelineWithMemory(ctx context.Context, topic string, maxResults int, useCache bool) string {
	report, err := p.Run(ctx, topic, maxResults, useCache)
	if err != nil {
		return ErrorString(err)
	}
	return report
}

// SearchInMemory formats the top-k semantic matches for display.
func (p *Pipeline) SearchInMemory(ctx context.Context, query string, topK int) string {
	if topK <= 0 {
		topK = 5
	}
	hits, err := p.memory.SemanticSearch(ctx, query, topK, nil)
	if err != nil {
		return ErrorString(err)
	}
	if len(hits) == 0 {
		return fmt.Sprintf("Aucun résultat en mémoire pour %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Résultats en mémoire pour %q :\n", query)
	for i, hit := range hits {
		excerpt := hit.Item.Content
		if len(excerpt) > 200 {
			excerpt = excerpt[:200] + "..."
		}
		fmt.Fprintf(&b, "%d. [%s] %s (pertinence %.2f)\n   %s\n",
			i+1, hit.Item.Metadata.Source, hit.Item.Metadata.Title, hit.Score, excerpt)
	}
	return strings.TrimRight(b.String(), "\n")
}

// GetResearchHistory formats the last n conversation entries.
func (p *Pipeline) GetResearchHistory(nLast int) string {
	if nLast <= 0 {
		nLast = 5
	}
	entries, err := p.memory.History(nLast)
	if err != nil {
		return ErrorString(err)
	}
	if len(entries) == 0 {
		return "Aucun historique de recherche."
	}

	var b strings.Builder
	b.WriteString("Historique de recherche :\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "- [%s] %s\n  %s\n",
			entry.Timestamp.Format("2006-01-02 15:04"), entry.User, entry.Assistant)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ClearMemory empties the conversation log and the report cache once
// confirmed. The vector store is never touched.
func (p *Pipeline) ClearMemory(confirm bool) string {
	if !confirm {
		return "Aucune action : rappelez l'outil avec confirm=true pour effacer la mémoire."
	}
	if err := p.memory.ClearAll(); err != nil {
		return ErrorString(err)
	}
	return "Journal de conversation et cache effacés. Le magasin vectoriel est conservé."
}
