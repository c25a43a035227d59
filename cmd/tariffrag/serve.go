package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/perbu/tariffrag/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question-answering API over HTTP",
	Long: `Starts an HTTP server with two endpoints:

  POST /ask     {"question": "..."} -> {"answer", "request_id", "search_query", "sources"}
  GET  /health  liveness check

The index is loaded on the first question; until it exists /ask returns 503.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	logger := stderrLogger(cfg)

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg.Server.Addr, p, logger)
	if err := srv.Start(cmd.Context()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

