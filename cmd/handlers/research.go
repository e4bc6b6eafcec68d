package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"veilleur/internal/logger"
	"veilleur/internal/pipeline"
)

// NewResearchCmd creates the research command.
func NewResearchCmd() *cobra.Command {
	researchCmd := &cobra.Command{
		Use:   "research <sujet>",
		Short: "Lance une veille complète sur un sujet et produit un rapport",
		Long: `Exécute le pipeline complet pour un sujet: recherche web,
extraction du contenu des sources, résumé par document puis synthèse
globale. Le rapport markdown est affiché et peut être enregistré.

Exemples:
  veilleur research "politique climatique européenne"
  veilleur research "stockage d'énergie" --max-results 8 --output reports
  veilleur research "IA générative" --no-cache`,
		Args: cobra.MinimumNArgs(1),
		Run:  researchRunFunc,
	}

	researchCmd.Flags().Int("max-results", 5, "Nombre maximum de sources analysées (2-10)")
	researchCmd.Flags().Bool("no-cache", false, "Ignore le cache de rapports et relance le pipeline")
	researchCmd.Flags().String("output", "", "Répertoire où enregistrer le rapport markdown")

	return researchCmd
}

func researchRunFunc(cmd *cobra.Command, args []string) {
	topic := strings.Join(args, " ")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	outputDir, _ := cmd.Flags().GetString("output")

	application, err := buildApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
		os.Exit(1)
	}
	defer application.close()

	report, err := application.pipeline.Run(cmd.Context(), topic, maxResults, !noCache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur: %s\n", pipeline.ErrorString(err))
		os.Exit(1)
	}

	fmt.Println(report)

	if outputDir != "" {
		if path, werr := writeReport(outputDir, topic, report); werr != nil {
			logger.Warn("failed to write report file", "error", werr.Error())
		} else {
			fmt.Fprintf(os.Stderr, "Rapport enregistré: %s\n", path)
		}
	}
}

// writeReport saves the markdown report under dir with a slug and
// timestamp based name.
func writeReport(dir, topic, report string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("rapport_%s_%s.md", topicSlug(topic), time.Now().Format("20060102_1504"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// topicSlug reduces a topic to a short filesystem-safe fragment.
func topicSlug(topic string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(topic) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	slug := strings.Trim(b.String(), "_")
	if len(slug) > 40 {
		slug = slug[:40]
	}
	if slug == "" {
		slug = "sujet"
	}
	return slug
}
