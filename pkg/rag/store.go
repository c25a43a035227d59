package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrIndexNotInitialized means no index has been built at the configured
// location yet. Run generate-embeddings first.
var ErrIndexNotInitialized = errors.New("index not initialized")

// QueryEmbedder turns a search query into a vector comparable with the index.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelInfo() string
}

// Store is a read-only embedding index backed by a gob file. The file is
// loaded lazily on the first search and reused for the process lifetime.
type Store struct {
	path     string
	embedder QueryEmbedder
	logger   *slog.Logger

	mu    sync.RWMutex
	index *VectorIndex
	load  singleflight.Group
}

// NewStore creates a store for the index at path. Nothing is read until the
// first Search or Load.
func NewStore(path string, embedder QueryEmbedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, embedder: embedder, logger: logger}
}

// NewStoreFromData wraps an already decoded index. Used by tests and tools
// that build the index in memory.
func NewStoreFromData(data *EmbeddingData, embedder QueryEmbedder, logger *slog.Logger) *Store {
	s := NewStore("", embedder, logger)
	s.index = LoadIndex(data)
	return s
}

// Path returns the on-disk location of the index.
func (s *Store) Path() string { return s.path }

// Load returns the in-memory index, reading it from disk at most once.
// Concurrent first callers share a single read. A failed load is not cached.
func (s *Store) Load() (*VectorIndex, error) {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	v, err, _ := s.load.Do("index", func() (any, error) {
		s.mu.RLock()
		idx := s.index
		s.mu.RUnlock()
		if idx != nil {
			return idx, nil
		}

		idx, err := s.readFromDisk()
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.index = idx
		s.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*VectorIndex), nil
}

func (s *Store) readFromDisk() (*VectorIndex, error) {
	if s.path == "" {
		return nil, ErrIndexNotInitialized
	}
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Error("index not found, run generate-embeddings first", "path", s.path)
			return nil, ErrIndexNotInitialized
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer file.Close()

	data, err := ReadIndex(file)
	if err != nil {
		return nil, err
	}

	if s.embedder != nil && data.ModelInfo != s.embedder.ModelInfo() {
		s.logger.Warn("index was built with a different embedding model",
			"index_model", data.ModelInfo,
			"query_model", s.embedder.ModelInfo(),
		)
	}

	s.logger.Info("index loaded",
		"path", s.path,
		"chunks", len(data.Chunks),
		"dimension", data.Dimension,
		"model", data.ModelInfo,
	)
	return LoadIndex(data), nil
}

// SearchScored embeds the query and returns up to k scored results.
func (s *Store) SearchScored(ctx context.Context, query string, k int) ([]SearchResult, error) {
	idx, err := s.Load()
	if err != nil {
		return nil, err
	}
	if s.embedder == nil {
		return nil, errors.New("store has no query embedder")
	}

	s.logger.Debug("performing semantic search", "query", query, "k", k)
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return Search(idx, vec, k)
}

// Search returns up to k chunks most similar to query, best first.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	results, err := s.SearchScored(ctx, query, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, len(results))
	for i := range results {
		chunks[i] = results[i].Chunk
	}
	return chunks, nil
}

// Surrounding returns target together with up to n chunks on either side of
// it in index order, keeping only chunks from the same source. If target is
// not in the index it is returned alone.
func (s *Store) Surrounding(target Chunk, n int) ([]Chunk, error) {
	idx, err := s.Load()
	if err != nil {
		return nil, err
	}

	pos := -1
	for i := range idx.Chunks {
		if idx.Chunks[i].Equal(target) {
			pos = i
			break
		}
	}
	if pos == -1 {
		return []Chunk{target}, nil
	}

	start := max(0, pos-n)
	end := min(len(idx.Chunks), pos+n+1)

	var out []Chunk
	for i := start; i < end; i++ {
		if idx.Chunks[i].SourceID == target.SourceID {
			out = append(out, idx.Chunks[i])
		}
	}
	return out, nil
}
