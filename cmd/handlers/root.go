// Package handlers defines the CLI commands and wires the pipeline
// stages from configuration.
package handlers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"veilleur/internal/config"
	"veilleur/internal/extract"
	"veilleur/internal/fetch"
	"veilleur/internal/llm"
	"veilleur/internal/logger"
	"veilleur/internal/memory"
	"veilleur/internal/pipeline"
	"veilleur/internal/research"
	"veilleur/internal/search"
	"veilleur/internal/summarize"
	"veilleur/internal/synthesis"
)

// embeddingDimension matches the default all-MiniLM-L6-v2 model.
const embeddingDimension = 384

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "veilleur",
		Short: "Veilleur est un assistant de veille: recherche web, extraction et synthèse.",
		Long: `Veilleur automatise la veille documentaire sur un sujet donné:
recherche web multi-fournisseurs, extraction du contenu des sources,
résumé par document puis synthèse globale en un rapport structuré.

Les rapports et le contenu des sources sont mémorisés pour la
déduplication, la recherche sémantique et le cache de rapports.`,
	}

	rootCmd.AddCommand(NewResearchCmd())
	rootCmd.AddCommand(NewMemoryCmd())
	rootCmd.AddCommand(NewHistoryCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds everything a command needs after wiring.
type app struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	memory   *memory.Memory
}

func (a *app) close() {
	if err := a.memory.Close(); err != nil {
		logger.Warn("failed to close memory", "error", err.Error())
	}
}

// buildApp loads configuration and assembles the four stages, the
// memory subsystem and the pipeline around them.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.App.LogLevel)

	client, err := llm.NewClient(llm.Options{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Timeout:           cfg.LLM.Timeout,
		MaxRetries:        cfg.LLM.MaxRetries,
		RateLimitRequests: cfg.LLM.RateLimitRequests,
		BatchConcurrency:  cfg.LLM.BatchConcurrency,
	})
	if err != nil {
		return nil, err
	}

	registry := search.NewRegistry()
	if cfg.Search.SerperAPIKey != "" {
		registry.Register(search.NewSerperProvider(cfg.Search.SerperAPIKey))
	}
	if cfg.Search.TavilyAPIKey != "" {
		registry.Register(search.NewTavilyProvider(cfg.Search.TavilyAPIKey))
	}
	if cfg.Search.BraveAPIKey != "" {
		registry.Register(search.NewBraveProvider(cfg.Search.BraveAPIKey))
	}
	if err := registry.SetPreferred(cfg.Search.PreferredProvider); err != nil {
		// The preferred provider has no API key configured; failover
		// order falls back to registration order.
		logger.Warn("preferred search provider unavailable",
			"provider", cfg.Search.PreferredProvider)
	}

	embedder := llm.NewEmbedder(cfg.LLM.APIKey, cfg.LLM.EmbeddingBaseURL,
		cfg.LLM.EmbeddingModel, embeddingDimension)
	mem, err := memory.New(memory.Options{
		DataDir:              cfg.App.DataDir,
		CacheTTL:             cfg.Memory.CacheTTL,
		MaxConversations:     cfg.Memory.MaxConversations,
		CompressionThreshold: cfg.Memory.CompressionThreshold,
	}, embedder)
	if err != nil {
		return nil, err
	}

	researcher := research.NewResearcher(client, registry, research.Options{
		Timeout:  cfg.Search.Timeout,
		MinScore: cfg.Search.MinScore,
	})
	fetcher := fetch.NewFetcher(fetch.Options{
		Timeout:          cfg.Extract.Timeout,
		MaxContentLength: cfg.Extract.MaxContentLength,
	})
	extractor := extract.NewExtractor(fetcher, extract.Options{
		Workers:          cfg.Extract.MaxConcurrent,
		MaxRetries:       cfg.Extract.MaxRetries,
		AttemptTimeout:   cfg.Extract.Timeout,
		MinContentLength: cfg.Extract.MinContentLength,
	})
	summarizer := summarize.NewSummarizer(client, summarize.Options{
		Workers:          cfg.Summary.MaxConcurrent,
		ChunkThreshold:   cfg.Summary.ChunkThreshold,
		MaxKeyPoints:     cfg.Summary.MaxKeyPoints,
		DetailedAnalysis: cfg.Summary.DetailedAnalysis,
		IncludeSentiment: cfg.Summary.IncludeSentiment,
	})
	synthesizer := synthesis.NewSynthesizer(client, synthesis.Options{})

	dumpDir := ""
	if cfg.Pipeline.DumpStages {
		dumpDir = filepath.Join(cfg.App.OutputDir, "stages")
	}
	p := pipeline.New(researcher, extractor, summarizer, synthesizer, mem, pipeline.Options{
		Deadline: cfg.Pipeline.Deadline,
		DumpDir:  dumpDir,
	})

	return &app{cfg: cfg, pipeline: p, memory: mem}, nil
}
