package rag

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReadIndex decodes gob-encoded EmbeddingData.
func ReadIndex(r io.Reader) (*EmbeddingData, error) {
	var data EmbeddingData
	if err := gob.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if len(data.Chunks) != len(data.Embeddings) {
		return nil, fmt.Errorf("corrupt index: %d chunks but %d embeddings", len(data.Chunks), len(data.Embeddings))
	}
	return &data, nil
}

// WriteIndexFile encodes data to path, replacing any existing index.
// The write goes through a temporary file and a rename so readers never see
// a partial index.
func WriteIndexFile(path string, data *EmbeddingData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode index: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	// Atomic rename
	return os.Rename(tmp, path)
}
