package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/perbu/tariffrag/pkg/rag"
)

var (
	askTop         int
	askShowContext bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTop, "top", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "print the chunks the answer was based on")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if askTop > 0 {
		cfg.TopK = askTop
	}
	logger := stderrLogger(cfg)

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	st, err := p.Run(cmd.Context(), strings.Join(args, " "))
	if errors.Is(err, rag.ErrIndexNotInitialized) {
		return errors.New("vector store not found, run generate-embeddings first to process documents")
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Response:")
	fmt.Fprintln(out, *st.Answer)

	if askShowContext {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Search query: %s\n", st.SearchQuery())
		for i, c := range st.Context {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "[%d] %s", i+1, c.SourceID)
			if len(c.SectionPath) > 0 {
				fmt.Fprintf(out, " > %s", strings.Join(c.SectionPath, " > "))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, c.Text)
		}
	}
	return nil
}
