package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder interface for generating embeddings
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelInfo() string
}

// SimpleEmbedder is an offline, deterministic embedder. Each lower-cased word
// is hashed into one of dim buckets, so texts sharing vocabulary end up close
// in cosine space. Good enough for tests and for trying the pipeline without
// an API key; not a substitute for a real model.
type SimpleEmbedder struct {
	dim int
}

// NewSimpleEmbedder creates a hashing embedder with the given dimension.
func NewSimpleEmbedder(dimension int) *SimpleEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &SimpleEmbedder{dim: dimension}
}

// Embed generates a bag-of-words embedding vector from text
func (e *SimpleEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		vec[fnv32(w)%uint32(e.dim)]++
	}

	l2normalize(vec)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts
func (e *SimpleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimension returns the embedding dimension
func (e *SimpleEmbedder) Dimension() int {
	return e.dim
}

// ModelInfo returns model information
func (e *SimpleEmbedder) ModelInfo() string {
	return fmt.Sprintf("simple-embedder-v2-%d", e.dim)
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// l2normalize normalizes a vector to unit length
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
