package rag

import (
	"errors"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when a query vector does not match the index.
var ErrDimensionMismatch = errors.New("query embedding dimension does not match index")

// CosineSimilarity computes the cosine similarity between two vectors
// Returns a value between -1 and 1, where 1 means identical direction
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// Search performs similarity search on the vector index.
// Returns at most topK results sorted by similarity score (highest first).
// Equal scores keep index insertion order, so results are deterministic for a
// fixed index and query.
func Search(index *VectorIndex, queryEmbedding []float32, topK int) ([]SearchResult, error) {
	if len(queryEmbedding) != index.Dimension {
		return nil, ErrDimensionMismatch
	}

	results := make([]SearchResult, 0, len(index.Chunks))
	for i := range index.Chunks {
		results = append(results, SearchResult{
			Chunk: index.Chunks[i],
			Score: CosineSimilarity(queryEmbedding, index.Embeddings[i]),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

// LoadIndex creates a VectorIndex from EmbeddingData
func LoadIndex(data *EmbeddingData) *VectorIndex {
	return &VectorIndex{
		Chunks:     data.Chunks,
		Embeddings: data.Embeddings,
		Dimension:  data.Dimension,
		ModelInfo:  data.ModelInfo,
	}
}
