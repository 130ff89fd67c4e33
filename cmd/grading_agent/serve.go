package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/company-grader/internal/catalog"
	"github.com/jonathan/company-grader/internal/companies"
	"github.com/jonathan/company-grader/internal/config"
	"github.com/jonathan/company-grader/internal/evidence"
	"github.com/jonathan/company-grader/internal/grading"
	"github.com/jonathan/company-grader/internal/llm"
	"github.com/jonathan/company-grader/internal/scores"
	"github.com/jonathan/company-grader/internal/server"
	"github.com/jonathan/company-grader/internal/vectorindex"
)

var (
	servePort       int
	serveConfigPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the grading, evidence and score endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to JSON config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := &config.Config{}
	if serveConfigPath != "" {
		loaded, err := config.LoadConfig(serveConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.FromEnv()
	merged := cfg.MergeWithDefaults(config.Defaults())
	if servePort != 0 {
		merged.Port = servePort
	}
	if err := merged.Validate(); err != nil {
		return err
	}
	if merged.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	modelConfig := llm.DefaultConfig().
		WithGenerationModel(merged.GenerationModel).
		WithEmbeddingModel(merged.EmbeddingModel)
	client, err := llm.NewClient(cmd.Context(), modelConfig, merged.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer client.Close()

	index := func(host string) *vectorindex.Client {
		return vectorindex.New(vectorindex.Config{Host: host, APIKey: merged.PineconeAPIKey})
	}

	catalogCache := catalog.NewCache(catalog.NewClient(index(merged.ScoringGuideHost), merged.CatalogTopK))
	retriever := evidence.NewRetriever(client, index(merged.EvidenceHost), merged.EvidenceTopK)
	store := scores.NewStore(index(merged.ScoresHost))
	directory := companies.NewDirectory(index(merged.CompaniesHost), merged.CompaniesTopK)

	orchestrator := grading.New(grading.Config{
		Catalog:         catalogCache,
		Evidence:        retriever,
		Store:           store,
		Generator:       client,
		EvidenceWorkers: merged.EvidenceWorkers,
	})

	srv := server.New(server.Config{
		Port:          merged.Port,
		Orchestrator:  orchestrator,
		CatalogCache:  catalogCache,
		Retriever:     retriever,
		Directory:     directory,
		Scores:        store,
		GenerationKey: merged.GeminiAPIKey,
	})

	return srv.Start()
}
