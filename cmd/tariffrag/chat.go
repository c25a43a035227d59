package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/perbu/tariffrag/pkg/tui"
)

var chatLogFile string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Long: `Opens an interactive chat. Type a question and press Enter; type 'exit'
or press Esc to quit. Logs are discarded unless --log-file is given, since
they would draw over the terminal UI.

When stdin is not a terminal, questions are read one per line and answers
are written to stdout.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatLogFile, "log-file", "", "write logs to this file")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if chatLogFile != "" {
		f, err := os.OpenFile(chatLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := cfg.NewLogger(logOut)

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return tui.Run(cmd.Context(), p)
	}
	return tui.RunLines(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), p)
}
