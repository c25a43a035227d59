package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/perbu/tariffrag/pkg/rag"
)

// DefaultReferenceMarker is the substring that flags a reference to tabular content.
const DefaultReferenceMarker = "table"

// ReferenceFinder returns the chunks in all that chunk refers to.
type ReferenceFinder interface {
	FindReferences(chunk rag.Chunk, all []rag.Chunk) ([]rag.Chunk, error)
}

// MarkerFinder treats any two chunks that both mention Marker
// (case-insensitively) as referring to each other. It over-matches casual uses
// of the word and misses references phrased differently, e.g. "see Fig. 2".
type MarkerFinder struct {
	Marker string
}

func (f MarkerFinder) marker() string {
	if f.Marker == "" {
		return DefaultReferenceMarker
	}
	return strings.ToLower(f.Marker)
}

// Mentions reports whether text contains the marker.
func (f MarkerFinder) Mentions(text string) bool {
	return strings.Contains(strings.ToLower(text), f.marker())
}

// FindReferences implements ReferenceFinder.
func (f MarkerFinder) FindReferences(chunk rag.Chunk, all []rag.Chunk) ([]rag.Chunk, error) {
	if !f.Mentions(chunk.Text) {
		return nil, nil
	}
	var refs []rag.Chunk
	for _, other := range all {
		if !other.Equal(chunk) && f.Mentions(other.Text) {
			refs = append(refs, other)
		}
	}
	return refs, nil
}

// Expander pulls referenced chunks into the context. It makes one pass over
// the current context and does not follow references of the chunks it adds.
type Expander struct {
	finder ReferenceFinder
	logger *slog.Logger
}

// NewExpander creates an expander. A nil finder uses MarkerFinder with the default marker.
func NewExpander(finder ReferenceFinder, logger *slog.Logger) *Expander {
	if finder == nil {
		finder = MarkerFinder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{finder: finder, logger: logger}
}

// Name implements Stage.
func (e *Expander) Name() string { return "expand_references" }

// Run implements Stage. Finder errors are fatal.
func (e *Expander) Run(_ context.Context, st State) Result {
	expanded, err := e.Expand(st.Context)
	if err != nil {
		return fatal(st, err)
	}
	return ok(st.WithContext(expanded))
}

// Expand returns chunks followed by every chunk they reference, with
// structural duplicates removed in first-occurrence order. The result is
// never shorter than the deduplicated input.
func (e *Expander) Expand(chunks []rag.Chunk) ([]rag.Chunk, error) {
	var additional []rag.Chunk
	for _, c := range chunks {
		refs, err := e.finder.FindReferences(c, chunks)
		if err != nil {
			e.logger.Error("error checking for references", "source", c.SourceID, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrExpansion, err)
		}
		additional = append(additional, refs...)
	}

	combined := make([]rag.Chunk, 0, len(chunks)+len(additional))
	combined = append(combined, chunks...)
	combined = append(combined, additional...)
	out := rag.Dedupe(combined)

	if len(additional) > 0 {
		e.logger.Debug("references expanded", "before", len(chunks), "candidates", len(additional), "after", len(out))
	}
	return out, nil
}
