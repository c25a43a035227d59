package rag

import (
	"strconv"
	"strings"
)

// Chunk represents a piece of a tariff document with its content and metadata
type Chunk struct {
	Text        string   // The actual text content
	SourceID    string   // Originating document, e.g. "tariff.pdf"
	SectionPath []string // Heading path, outermost first
	IsTable     bool     // Content looks like (or introduces) a table
}

// Key returns the structural identity of the chunk. Two chunks with the same
// text, source and section path are the same chunk regardless of IsTable.
// Every component is length-prefixed, so distinct chunks never share a key
// whatever bytes their fields contain.
func (c Chunk) Key() string {
	var b strings.Builder
	b.Grow(len(c.Text) + len(c.SourceID) + 8*(len(c.SectionPath)+3))
	writeField := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	writeField(c.SourceID)
	b.WriteString(strconv.Itoa(len(c.SectionPath)))
	b.WriteByte('/')
	for _, h := range c.SectionPath {
		writeField(h)
	}
	writeField(c.Text)
	return b.String()
}

// Equal reports whether two chunks are structurally identical.
func (c Chunk) Equal(other Chunk) bool {
	if c.Text != other.Text || c.SourceID != other.SourceID {
		return false
	}
	if len(c.SectionPath) != len(other.SectionPath) {
		return false
	}
	for i := range c.SectionPath {
		if c.SectionPath[i] != other.SectionPath[i] {
			return false
		}
	}
	return true
}

// Heading returns the innermost section heading, or "" for top-level text.
func (c Chunk) Heading() string {
	if len(c.SectionPath) == 0 {
		return ""
	}
	return c.SectionPath[len(c.SectionPath)-1]
}

// EmbeddingData holds all pre-computed embeddings and their associated chunks.
// It is the on-disk (gob) representation of the index.
type EmbeddingData struct {
	Chunks     []Chunk     // Document chunks, in insertion order
	Embeddings [][]float32 // Corresponding embeddings (same order as Chunks)
	ModelInfo  string      // Model name/version used
	Dimension  int         // Embedding vector dimension
}

// SearchResult represents a single search result with score
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// VectorIndex holds the in-memory vector index for similarity search
type VectorIndex struct {
	Chunks     []Chunk     // Document chunks
	Embeddings [][]float32 // Corresponding embeddings (chunk[i] ↔ embedding[i])
	Dimension  int         // Embedding vector dimension
	ModelInfo  string
}
