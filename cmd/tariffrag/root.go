package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/perbu/tariffrag/pkg/config"
	"github.com/perbu/tariffrag/pkg/embedder"
	"github.com/perbu/tariffrag/pkg/llm"
	"github.com/perbu/tariffrag/pkg/pipeline"
	"github.com/perbu/tariffrag/pkg/rag"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tariffrag",
	Short: "Ask questions about port tariff documents",
	Long: `tariffrag answers natural-language questions about a fixed set of tariff
documents. Questions are rewritten into search queries, matched against a
precomputed embedding index, expanded with referenced tables and answered by
a language model using only the retrieved text.

Build the index with generate-embeddings before asking questions.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tariffrag.yaml", "path to config file")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newStore(cfg *config.Config, logger *slog.Logger) (*rag.Store, error) {
	emb, err := embedder.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}
	return rag.NewStore(cfg.IndexPath, emb, logger), nil
}

// newPipeline wires the four stages from configuration.
func newPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewOpenAIClient(cfg.LLMSettings(), cfg.LLM.ChatModel, cfg.LLM.MaxCompletionTokens)
	if err != nil {
		return nil, fmt.Errorf("initialize chat client: %w", err)
	}

	var genOpts []pipeline.GeneratorOption
	if cfg.ContextDumpPath != "" {
		genOpts = append(genOpts, pipeline.WithContextDump(cfg.ContextDumpPath))
	}

	logger.Debug("pipeline configured",
		"provider", cfg.LLM.Provider,
		"chat_model", client.ModelName(),
		"index", cfg.IndexPath,
		"top_k", cfg.TopK,
	)
	return pipeline.New(
		pipeline.NewAnalyzer(client, logger),
		pipeline.NewRetriever(store, cfg.TopK, logger),
		pipeline.NewExpander(pipeline.MarkerFinder{Marker: cfg.ReferenceMarker}, logger),
		pipeline.NewGenerator(client, logger, genOpts...),
		logger,
	), nil
}

func stderrLogger(cfg *config.Config) *slog.Logger {
	return cfg.NewLogger(os.Stderr)
}
