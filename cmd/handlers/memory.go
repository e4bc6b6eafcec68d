package handlers

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewMemoryCmd creates the memory management command.
func NewMemoryCmd() *cobra.Command {
	memoryCmd := &cobra.Command{
		Use:   "memory",
		Short: "Interroge et gère la mémoire de veille",
		Long: `Recherche sémantique dans le contenu mémorisé, statistiques et
effacement du journal de conversation et du cache de rapports.`,
	}

	memoryCmd.AddCommand(newMemorySearchCmd())
	memoryCmd.AddCommand(newMemoryStatsCmd())
	memoryCmd.AddCommand(newMemoryClearCmd())

	return memoryCmd
}

func newMemorySearchCmd() *cobra.Command {
	searchCmd := &cobra.Command{
		Use:   "search <requête>",
		Short: "Recherche sémantique dans le contenu mémorisé",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			topK, _ := cmd.Flags().GetInt("top-k")

			application, err := buildApp()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
				os.Exit(1)
			}
			defer application.close()

			query := strings.Join(args, " ")
			fmt.Println(application.pipeline.SearchInMemory(cmd.Context(), query, topK))
		},
	}
	searchCmd.Flags().Int("top-k", 5, "Nombre de résultats retournés")
	return searchCmd
}

func newMemoryStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Affiche le nombre d'éléments mémorisés et les sujets en cache",
		Run: func(cmd *cobra.Command, args []string) {
			application, err := buildApp()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
				os.Exit(1)
			}
			defer application.close()

			fmt.Printf("Éléments vectorisés : %d\n", application.memory.ItemCount())
			topics, terr := application.memory.CacheTopics()
			if terr != nil {
				fmt.Fprintf(os.Stderr, "Erreur: %v\n", terr)
				os.Exit(1)
			}
			if len(topics) == 0 {
				fmt.Println("Aucun rapport en cache.")
				return
			}
			fmt.Println("Rapports en cache :")
			for _, topic := range topics {
				fmt.Printf("  - %s\n", topic)
			}
		},
	}
}

func newMemoryClearCmd() *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Efface le journal de conversation et le cache de rapports",
		Long: `Efface le journal de conversation et le cache de rapports. Le
magasin vectoriel est conservé pour la déduplication et la recherche
sémantique.`,
		Run: func(cmd *cobra.Command, args []string) {
			confirm, _ := cmd.Flags().GetBool("confirm")

			application, err := buildApp()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
				os.Exit(1)
			}
			defer application.close()

			fmt.Println(application.pipeline.ClearMemory(confirm))
		},
	}
	clearCmd.Flags().Bool("confirm", false, "Confirme l'effacement")
	return clearCmd
}

// NewHistoryCmd creates the conversation history command.
func NewHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Affiche les dernières recherches effectuées",
		Run: func(cmd *cobra.Command, args []string) {
			last, _ := cmd.Flags().GetInt("last")

			application, err := buildApp()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
				os.Exit(1)
			}
			defer application.close()

			fmt.Println(application.pipeline.GetResearchHistory(last))
		},
	}
	historyCmd.Flags().Int("last", 5, "Nombre d'entrées affichées")
	return historyCmd
}
