package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/perbu/tariffrag/pkg/rag"
)

var (
	searchTop       int
	searchThreshold float64
	searchFull      bool
	searchContext   int
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the index without asking the model",
	Long: `Embeds the query and prints the most similar chunks from the index.
No query rewriting, reference expansion or answer generation is done, which
makes this useful for checking what retrieval returns for a given phrasing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTop, "top", "k", 5, "number of results to return")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum similarity score")
	searchCmd.Flags().BoolVar(&searchFull, "full", false, "show full chunk text")
	searchCmd.Flags().IntVar(&searchContext, "context", 0, "number of surrounding chunks to show")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchHit struct {
	Score       float32  `json:"score"`
	SourceID    string   `json:"source_id"`
	SectionPath []string `json:"section_path,omitempty"`
	IsTable     bool     `json:"is_table,omitempty"`
	Text        string   `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := stderrLogger(cfg)

	store, err := newStore(cfg, logger)
	if err != nil {
		return err
	}

	results, err := store.SearchScored(cmd.Context(), strings.Join(args, " "), searchTop)
	if errors.Is(err, rag.ErrIndexNotInitialized) {
		return errors.New("vector store not found, run generate-embeddings first to process documents")
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	results = aboveThreshold(results, float32(searchThreshold))
	out := cmd.OutOrStdout()

	if searchJSON {
		hits := make([]searchHit, len(results))
		for i, r := range results {
			hits[i] = searchHit{
				Score:       r.Score,
				SourceID:    r.Chunk.SourceID,
				SectionPath: r.Chunk.SectionPath,
				IsTable:     r.Chunk.IsTable,
				Text:        r.Chunk.Text,
			}
		}
		data, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results found")
		return nil
	}

	fmt.Fprintf(out, "Found %d results:\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(out, "Score: %.2f | %s", r.Score, r.Chunk.SourceID)
		if h := r.Chunk.Heading(); h != "" {
			fmt.Fprintf(out, " [%s]", h)
		}
		fmt.Fprintln(out)

		if !searchFull && searchContext == 0 {
			continue
		}
		fmt.Fprintln(out)

		if searchContext > 0 {
			surrounding, err := store.Surrounding(r.Chunk, searchContext)
			if err != nil {
				return err
			}
			for j, c := range surrounding {
				if c.Equal(r.Chunk) {
					fmt.Fprintln(out, ">>> MATCHED CHUNK <<<")
				}
				if h := c.Heading(); h != "" {
					fmt.Fprintf(out, "[%s]\n", h)
				}
				fmt.Fprintln(out, c.Text)
				if j < len(surrounding)-1 {
					fmt.Fprintln(out)
				}
			}
		} else {
			fmt.Fprintln(out, r.Chunk.Text)
		}

		if i < len(results)-1 {
			fmt.Fprintln(out, "\n"+strings.Repeat("-", 80)+"\n")
		}
	}
	return nil
}

func aboveThreshold(results []rag.SearchResult, threshold float32) []rag.SearchResult {
	if threshold <= 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}
