package pipeline

import (
	"github.com/google/uuid"

	"github.com/perbu/tariffrag/pkg/rag"
)

// SearchIntent is the structured reading of a question that drives retrieval.
type SearchIntent struct {
	IsTopicRelated bool
	EntityName     *string // nil when no tariff was named
	RewrittenQuery string  // never empty once analysis has run
}

// FallbackIntent is the intent used when analysis fails: search with the
// question exactly as asked.
func FallbackIntent(question string) SearchIntent {
	return SearchIntent{RewrittenQuery: question}
}

// State is the per-question record threaded through the stages. Stages treat
// it as a value: they return a modified copy and never write to the slices of
// the State they were given.
type State struct {
	RequestID string
	Question  string
	Intent    SearchIntent
	Context   []rag.Chunk
	Answer    *string
}

// NewState returns the initial state for a question.
func NewState(question string) State {
	return State{
		RequestID: uuid.NewString(),
		Question:  question,
	}
}

// WithIntent returns a copy of s carrying intent.
func (s State) WithIntent(intent SearchIntent) State {
	s.Context = cloneChunks(s.Context)
	s.Intent = intent
	return s
}

// WithContext returns a copy of s whose context is a copy of chunks.
func (s State) WithContext(chunks []rag.Chunk) State {
	s.Context = cloneChunks(chunks)
	return s
}

// WithAnswer returns a copy of s carrying answer.
func (s State) WithAnswer(answer string) State {
	s.Context = cloneChunks(s.Context)
	s.Answer = &answer
	return s
}

// SearchQuery is the query retrieval should use: the rewritten query, or the
// question itself if analysis has not produced one.
func (s State) SearchQuery() string {
	if s.Intent.RewrittenQuery != "" {
		return s.Intent.RewrittenQuery
	}
	return s.Question
}

func cloneChunks(chunks []rag.Chunk) []rag.Chunk {
	if chunks == nil {
		return nil
	}
	out := make([]rag.Chunk, len(chunks))
	copy(out, chunks)
	return out
}
