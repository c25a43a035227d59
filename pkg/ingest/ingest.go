// Package ingest builds the embedding index from a directory of tariff
// documents. A run loads and chunks every document, embeds the chunks
// concurrently and replaces the index file. Interrupted runs leave a
// checkpoint so the next run only embeds what is missing.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/perbu/tariffrag/pkg/embedder"
	"github.com/perbu/tariffrag/pkg/loader"
	"github.com/perbu/tariffrag/pkg/rag"
)

// ErrNoDocuments is returned when the docs directory holds nothing to index.
var ErrNoDocuments = errors.New("no documents found")

// Defaults for Options.
const (
	DefaultConcurrency     = 10
	DefaultCheckpointEvery = 50
)

// Options controls an ingestion run.
type Options struct {
	IndexPath       string
	CheckpointPath  string // empty disables checkpointing
	Concurrency     int
	CheckpointEvery int
	// Progress, if set, is called after every embedded chunk.
	Progress func(done, total int)
}

// Result summarizes a completed run.
type Result struct {
	Chunks    int
	Embedded  int      // embeddings computed in this run
	Resumed   int      // embeddings taken from a checkpoint
	Skipped   []string // documents that failed to convert
	Dimension int
	ModelInfo string
	IndexPath string
	Bytes     int64
}

// Ingester runs ingestion with a fixed embedder.
type Ingester struct {
	emb    embedder.Embedder
	opts   Options
	logger *slog.Logger
}

// New creates an Ingester.
func New(emb embedder.Embedder, opts Options, logger *slog.Logger) *Ingester {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{emb: emb, opts: opts, logger: logger}
}

// Run indexes every document in fsys.
func (in *Ingester) Run(ctx context.Context, fsys fs.FS) (*Result, error) {
	chunks, skipped, err := loader.LoadAndChunkAll(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	skippedIDs := make([]string, len(skipped))
	for i, sk := range skipped {
		in.logger.Warn("skipping document", "source", sk.SourceID, "error", sk.Err)
		skippedIDs[i] = sk.SourceID
	}
	if len(chunks) == 0 {
		return nil, ErrNoDocuments
	}
	in.logger.Info("documents chunked", "chunks", len(chunks))

	cp := in.resume(chunks)
	todo := cp.remaining()
	res := &Result{
		Chunks:    len(chunks),
		Resumed:   len(chunks) - len(todo),
		Skipped:   skippedIDs,
		ModelInfo: in.emb.ModelInfo(),
		IndexPath: in.opts.IndexPath,
	}

	if len(todo) > 0 {
		in.logger.Info("generating embeddings",
			"remaining", len(todo),
			"concurrency", in.opts.Concurrency,
			"model", res.ModelInfo,
		)
		if err := in.embed(ctx, cp, todo); err != nil {
			in.saveCheckpoint(cp)
			return nil, err
		}
	}
	res.Embedded = len(todo)

	dim, err := checkDimensions(cp.Embeddings)
	if err != nil {
		return nil, err
	}
	res.Dimension = dim

	data := &rag.EmbeddingData{
		Chunks:     cp.Chunks,
		Embeddings: cp.Embeddings,
		ModelInfo:  cp.ModelInfo,
		Dimension:  dim,
	}
	if err := rag.WriteIndexFile(in.opts.IndexPath, data); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}
	if info, err := os.Stat(in.opts.IndexPath); err == nil {
		res.Bytes = info.Size()
	}

	if in.opts.CheckpointPath != "" {
		if err := os.Remove(in.opts.CheckpointPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			in.logger.Warn("could not remove checkpoint", "path", in.opts.CheckpointPath, "error", err)
		}
	}

	in.logger.Info("index written",
		"path", res.IndexPath,
		"chunks", res.Chunks,
		"embedded", res.Embedded,
		"resumed", res.Resumed,
		"dimension", res.Dimension,
	)
	return res, nil
}

func (in *Ingester) resume(chunks []rag.Chunk) *checkpoint {
	fresh := newCheckpoint(chunks, in.emb.ModelInfo())
	if in.opts.CheckpointPath == "" {
		return fresh
	}

	cp, err := loadCheckpoint(in.opts.CheckpointPath)
	switch {
	case err != nil:
		in.logger.Warn("error loading checkpoint, starting from scratch", "error", err)
		return fresh
	case cp == nil:
		return fresh
	case !cp.matches(chunks, in.emb.ModelInfo()):
		in.logger.Info("checkpoint does not match current documents or model, starting fresh")
		return fresh
	}
	if cp.Completed == nil {
		cp.Completed = make(map[int]bool)
	}
	in.logger.Info("resuming from checkpoint", "completed", len(chunks)-len(cp.remaining()), "total", len(chunks))
	return cp
}

func (in *Ingester) embed(ctx context.Context, cp *checkpoint, todo []int) error {
	var (
		mu        sync.Mutex
		completed = len(cp.Chunks) - len(todo)
		sinceSave = 0
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.Concurrency)
	for _, idx := range todo {
		g.Go(func() error {
			vec, err := in.emb.Embed(ctx, cp.Chunks[idx].Text)
			if err != nil {
				return fmt.Errorf("chunk %d (%s): %w", idx, cp.Chunks[idx].SourceID, err)
			}

			mu.Lock()
			defer mu.Unlock()
			cp.Embeddings[idx] = vec
			cp.Completed[idx] = true
			completed++
			sinceSave++

			if in.opts.Progress != nil {
				in.opts.Progress(completed, len(cp.Chunks))
			}
			if sinceSave >= in.opts.CheckpointEvery {
				sinceSave = 0
				in.saveCheckpoint(cp)
			}
			return nil
		})
	}
	return g.Wait()
}

// saveCheckpoint must not race with embed goroutines; callers hold the
// embed mutex or call it after the group has finished.
func (in *Ingester) saveCheckpoint(cp *checkpoint) {
	if in.opts.CheckpointPath == "" {
		return
	}
	if err := saveCheckpoint(in.opts.CheckpointPath, cp); err != nil {
		in.logger.Warn("failed to save checkpoint", "path", in.opts.CheckpointPath, "error", err)
		return
	}
	in.logger.Debug("checkpoint saved", "path", in.opts.CheckpointPath)
}

func checkDimensions(embeddings [][]float32) (int, error) {
	dim := 0
	for i, e := range embeddings {
		if len(e) == 0 {
			return 0, fmt.Errorf("chunk %d has no embedding", i)
		}
		if dim == 0 {
			dim = len(e)
		} else if len(e) != dim {
			return 0, fmt.Errorf("%w: chunk %d has dimension %d, expected %d", rag.ErrDimensionMismatch, i, len(e), dim)
		}
	}
	return dim, nil
}
