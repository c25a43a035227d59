package ingest

import (
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"

	"github.com/perbu/tariffrag/pkg/rag"
)

// checkpoint is the partial state of an interrupted ingestion run.
type checkpoint struct {
	Chunks     []rag.Chunk
	Embeddings [][]float32
	Completed  map[int]bool
	ModelInfo  string
}

func newCheckpoint(chunks []rag.Chunk, modelInfo string) *checkpoint {
	return &checkpoint{
		Chunks:     chunks,
		Embeddings: make([][]float32, len(chunks)),
		Completed:  make(map[int]bool),
		ModelInfo:  modelInfo,
	}
}

// matches reports whether cp was produced for the same chunks and model.
func (cp *checkpoint) matches(chunks []rag.Chunk, modelInfo string) bool {
	if cp.ModelInfo != modelInfo || len(cp.Chunks) != len(chunks) || len(cp.Embeddings) != len(chunks) {
		return false
	}
	for i := range chunks {
		if !cp.Chunks[i].Equal(chunks[i]) {
			return false
		}
	}
	return true
}

func (cp *checkpoint) remaining() []int {
	var idx []int
	for i := range cp.Chunks {
		if !cp.Completed[i] {
			idx = append(idx, i)
		}
	}
	return idx
}

// loadCheckpoint returns nil, nil when no checkpoint exists.
func loadCheckpoint(path string) (*checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var cp checkpoint
	if err := gob.NewDecoder(file).Decode(&cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func saveCheckpoint(path string, cp *checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	file, err := os.Create(path + ".tmp")
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(file).Encode(cp); err != nil {
		file.Close()
		return err
	}

	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(path+".tmp", path)
}
