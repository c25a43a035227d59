// Command generate-embeddings builds the tariff embedding index from the
// documents directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/perbu/tariffrag/pkg/config"
	"github.com/perbu/tariffrag/pkg/embedder"
	"github.com/perbu/tariffrag/pkg/ingest"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := flag.String("config", "tariffrag.yaml", "path to config file")
	docsDir := flag.String("docs", "", "directory with tariff PDFs and markdown (default from config)")
	out := flag.String("out", "", "index output path (default from config)")
	noResume := flag.Bool("fresh", false, "ignore any checkpoint from an interrupted run")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, *configPath, *docsDir, *out, *noResume)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, configPath, docsDir, out string, fresh bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if docsDir != "" {
		cfg.DocsDir = docsDir
	}
	if out != "" {
		cfg.IndexPath = out
		cfg.CheckpointPath = out + ".checkpoint"
	}
	logger := cfg.NewLogger(os.Stderr)

	fmt.Fprintln(w, "Tariff Embedding Generation Tool")
	fmt.Fprintln(w, "================================")
	fmt.Fprintln(w)

	info, err := os.Stat(cfg.DocsDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("docs directory not found at %s", cfg.DocsDir)
	}

	fmt.Fprintln(w, "Step 1: Initializing embedder...")
	emb, err := embedder.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}
	fmt.Fprintf(w, "  ✓ Embedder initialized (model=%s, dim=%d)\n\n", emb.ModelInfo(), emb.Dimension())

	if fresh {
		if err := os.Remove(cfg.CheckpointPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing checkpoint: %w", err)
		}
	}

	fmt.Fprintf(w, "Step 2: Loading, chunking and embedding documents from %s...\n", cfg.DocsDir)
	fmt.Fprintf(w, "  Using parallel processing (up to %d concurrent requests)...\n", ingest.DefaultConcurrency)
	in := ingest.New(emb, ingest.Options{
		IndexPath:      cfg.IndexPath,
		CheckpointPath: cfg.CheckpointPath,
		Progress: func(done, total int) {
			if done%10 == 0 || done == total {
				fmt.Fprintf(w, "\r  Progress: %d/%d (%.1f%%)", done, total, float64(done)/float64(total)*100)
				if done == total {
					fmt.Fprintln(w)
				}
			}
		},
	}, logger)

	res, err := in.Run(ctx, os.DirFS(cfg.DocsDir))
	if errors.Is(err, ingest.ErrNoDocuments) {
		return fmt.Errorf("no PDF or markdown files found in %s", cfg.DocsDir)
	}
	if err != nil {
		fmt.Fprintln(w, "\nProgress saved to checkpoint. Run again to resume.")
		return err
	}

	for _, id := range res.Skipped {
		fmt.Fprintf(w, "  ✗ Skipped %s (could not convert)\n", id)
	}
	fmt.Fprintf(w, "  ✓ %d chunks (%d embedded, %d from checkpoint)\n\n", res.Chunks, res.Embedded, res.Resumed)
	fmt.Fprintf(w, "  ✓ Saved to %s (%.2f MB)\n\n", res.IndexPath, float64(res.Bytes)/(1024*1024))
	fmt.Fprintln(w, "Done! Embeddings are ready for use.")
	return nil
}
