package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/perbu/tariffrag/pkg/rag"
)

// DefaultTopK is the retrieval width used when none is configured.
const DefaultTopK = 3

// Index is the embedding index collaborator. *rag.Store implements it.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]rag.Chunk, error)
}

// Retriever runs nearest-neighbour search for the rewritten query.
type Retriever struct {
	index  Index
	k      int
	logger *slog.Logger
}

// NewRetriever creates a retriever returning at most k chunks. k < 1 uses DefaultTopK.
func NewRetriever(index Index, k int, logger *slog.Logger) *Retriever {
	if k < 1 {
		k = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{index: index, k: k, logger: logger}
}

// Name implements Stage.
func (r *Retriever) Name() string { return "retrieve_context" }

// K returns the retrieval width.
func (r *Retriever) K() int { return r.k }

// Run implements Stage. Every retrieval error is fatal.
func (r *Retriever) Run(ctx context.Context, st State) Result {
	chunks, err := r.Retrieve(ctx, st.SearchQuery())
	if err != nil {
		return fatal(st, err)
	}
	return ok(st.WithContext(chunks))
}

// Retrieve returns up to k distinct chunks for query, best match first.
// rag.ErrIndexNotInitialized is returned exactly as the index reported it.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]rag.Chunk, error) {
	chunks, err := r.index.Search(ctx, query, r.k)
	if err != nil {
		r.logger.Error("error retrieving context", "query", query, "error", err)
		if errors.Is(err, rag.ErrIndexNotInitialized) {
			return nil, err
		}
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	chunks = rag.Dedupe(chunks)
	if len(chunks) > r.k {
		chunks = chunks[:r.k]
	}
	r.logger.Debug("context retrieved", "query", query, "chunks", len(chunks))
	return chunks, nil
}
