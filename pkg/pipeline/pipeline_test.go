package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perbu/tariffrag/pkg/embedder"
	"github.com/perbu/tariffrag/pkg/llm"
	"github.com/perbu/tariffrag/pkg/llm/llmtest"
	"github.com/perbu/tariffrag/pkg/pipeline"
	"github.com/perbu/tariffrag/pkg/rag"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingIndex returns a fixed result and remembers every query.
type recordingIndex struct {
	mu      sync.Mutex
	chunks  []rag.Chunk
	err     error
	queries []string
}

func (r *recordingIndex) Search(_ context.Context, query string, k int) ([]rag.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.err != nil {
		return nil, r.err
	}
	out := r.chunks
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (r *recordingIndex) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

func newPipeline(client llm.Client, index pipeline.Index, k int) *pipeline.Pipeline {
	logger := quietLogger()
	return pipeline.New(
		pipeline.NewAnalyzer(client, logger),
		pipeline.NewRetriever(index, k, logger),
		pipeline.NewExpander(nil, logger),
		pipeline.NewGenerator(client, logger),
		logger,
	)
}

func memoryStore(t *testing.T, texts ...string) *rag.Store {
	t.Helper()
	emb := embedder.NewSimpleEmbedder(128)
	data := &rag.EmbeddingData{ModelInfo: emb.ModelInfo(), Dimension: emb.Dimension()}
	for _, text := range texts {
		vec, err := emb.Embed(context.Background(), text)
		require.NoError(t, err)
		data.Chunks = append(data.Chunks, rag.Chunk{Text: text, SourceID: "tariff.pdf"})
		data.Embeddings = append(data.Embeddings, vec)
	}
	return rag.NewStoreFromData(data, emb, quietLogger())
}

const analysisJSON = `{"is_tariff_related": true, "tariff_name": "anchorage dues", "search_query": "anchorage dues cost"}`

func TestStageOrder(t *testing.T) {
	p := newPipeline(llmtest.New(), &recordingIndex{}, 3)
	assert.Equal(t, []string{"analyze_query", "retrieve_context", "expand_references", "generate_answer"}, p.Stages())
}

func TestAnswerQuestion_MissingIndex(t *testing.T) {
	store := rag.NewStore(filepath.Join(t.TempDir(), "index.gob"), embedder.NewSimpleEmbedder(64), quietLogger())
	client := llmtest.New(llmtest.Text(analysisJSON))

	answer, err := newPipeline(client, store, 3).AnswerQuestion(context.Background(), "What is the anchorage due?")

	require.Error(t, err)
	assert.Same(t, rag.ErrIndexNotInitialized, err, "missing index error must not be wrapped")
	assert.Empty(t, answer)
	assert.Len(t, client.Requests(), 1, "generation must not run after a fatal retrieval")
}

func TestAnswerQuestion_TableReferenceExpanded(t *testing.T) {
	store := memoryStore(t,
		"Anchorage dues are $5/GT, see Table 1 for details.",
		"Table 1: $5 per gross ton.",
	)
	client := llmtest.New(
		llmtest.Text(`{"is_tariff_related": true, "tariff_name": "anchorage dues", "search_query": "anchorage dues details"}`),
		llmtest.Text("Anchorage dues are $5 per gross ton."),
	)

	st, err := newPipeline(client, store, 3).Run(context.Background(), "What are the anchorage dues?")
	require.NoError(t, err)

	texts := make([]string, len(st.Context))
	for i, c := range st.Context {
		texts[i] = c.Text
	}
	assert.Contains(t, texts, "Table 1: $5 per gross ton.")
	assert.Equal(t, "Anchorage dues are $5/GT, see Table 1 for details.", texts[0])
	require.NotNil(t, st.Answer)
	assert.Equal(t, "Anchorage dues are $5 per gross ton.", *st.Answer)

	// The generation prompt carries both chunks.
	reqs := client.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[1].Messages[1].Content, "Table 1: $5 per gross ton.")
	assert.Contains(t, reqs[1].Messages[1].Content, "Question: What are the anchorage dues?")
}

func TestAnswerQuestion_UsesRewrittenQuery(t *testing.T) {
	index := &recordingIndex{chunks: []rag.Chunk{{Text: "Anchorage dues: $5/GT", SourceID: "tariff.pdf"}}}
	client := llmtest.New(llmtest.Text(analysisJSON), llmtest.Text("$5 per gross ton."))

	st, err := newPipeline(client, index, 3).Run(context.Background(), "How much do I pay to anchor?")
	require.NoError(t, err)

	assert.Equal(t, []string{"anchorage dues cost"}, index.Queries())
	assert.True(t, st.Intent.IsTopicRelated)
	require.NotNil(t, st.Intent.EntityName)
	assert.Equal(t, "anchorage dues", *st.Intent.EntityName)
	assert.True(t, client.Requests()[0].JSON)
	assert.False(t, client.Requests()[1].JSON)
}

func TestAnswerQuestion_AnalysisFallback(t *testing.T) {
	const question = "What is the pilotage fee for a 10,000 GT vessel?"
	tests := []struct {
		name  string
		reply llmtest.Reply
	}{
		{"model error", llmtest.Fail(errors.New("connection reset"))},
		{"malformed json", llmtest.Text("the search query is pilotage")},
		{"missing search query", llmtest.Text(`{"is_tariff_related": true}`)},
		{"blank search query", llmtest.Text(`{"search_query": "   "}`)},
		{"no response", llmtest.NoResponse()},
		{"no content", llmtest.NoContent()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := &recordingIndex{chunks: []rag.Chunk{{Text: "Pilotage: $1/GT", SourceID: "tariff.pdf"}}}
			client := llmtest.New(tt.reply, llmtest.Text("It is $10,000."))

			st, err := newPipeline(client, index, 3).Run(context.Background(), question)
			require.NoError(t, err)

			assert.Equal(t, question, st.Intent.RewrittenQuery)
			assert.Nil(t, st.Intent.EntityName)
			assert.False(t, st.Intent.IsTopicRelated)
			assert.Equal(t, []string{question}, index.Queries())
			assert.Equal(t, "It is $10,000.", *st.Answer)
		})
	}
}

func TestAnswerQuestion_GenerationFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		reply llmtest.Reply
		want  string
	}{
		{"empty content", llmtest.Text(""), pipeline.InsufficientInfoMessage},
		{"transport error", llmtest.Fail(errors.New("401 unauthorized")), pipeline.ErrorFallbackMessage},
		{"no response", llmtest.NoResponse(), pipeline.ErrorFallbackMessage},
		{"no content", llmtest.NoContent(), pipeline.ErrorFallbackMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := &recordingIndex{chunks: []rag.Chunk{{Text: "Wharfage: $2/t", SourceID: "tariff.pdf"}}}
			client := llmtest.New(llmtest.Text(analysisJSON), tt.reply)

			answer, err := newPipeline(client, index, 3).AnswerQuestion(context.Background(), "What is wharfage?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, answer)
		})
	}
}

func TestAnswerQuestion_BlankQuestion(t *testing.T) {
	client := llmtest.New()
	_, err := newPipeline(client, &recordingIndex{}, 3).AnswerQuestion(context.Background(), "  \n")
	assert.ErrorIs(t, err, pipeline.ErrEmptyQuestion)
	assert.Empty(t, client.Requests())
}

func TestAnswerQuestion_OtherRetrievalErrorIsFatal(t *testing.T) {
	index := &recordingIndex{err: rag.ErrDimensionMismatch}
	client := llmtest.New(llmtest.Text(analysisJSON))

	_, err := newPipeline(client, index, 3).AnswerQuestion(context.Background(), "What is wharfage?")
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
	assert.NotErrorIs(t, err, rag.ErrIndexNotInitialized)
}

func TestAnswerQuestion_EmptyIndexStillAnswers(t *testing.T) {
	client := llmtest.New(llmtest.Text(analysisJSON), llmtest.Text("I don't have enough information."))

	answer, err := newPipeline(client, &recordingIndex{}, 3).AnswerQuestion(context.Background(), "What is wharfage?")
	require.NoError(t, err)
	assert.Equal(t, "I don't have enough information.", answer)
}

// echoClient answers analysis requests with a rewrite of the question and
// generation requests with a fixed string. Safe for concurrent use.
type echoClient struct{}

func (echoClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	if req.JSON {
		return llm.NewResponse(`{"is_tariff_related": true, "tariff_name": null, "search_query": "dues"}`), nil
	}
	return llm.NewResponse("answer"), nil
}

func TestAnswerQuestion_Concurrent(t *testing.T) {
	store := memoryStore(t, "Anchorage dues", "Pilotage fees", "Table 2: wharfage")
	p := newPipeline(echoClient{}, store, 2)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	answers := make([]string, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answers[i], errs[i] = p.AnswerQuestion(context.Background(), "What are the dues?")
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, "answer", answers[i])
	}
}

func TestRunAssignsRequestID(t *testing.T) {
	p := newPipeline(echoClient{}, &recordingIndex{}, 3)
	a, err := p.Run(context.Background(), "q1")
	require.NoError(t, err)
	b, err := p.Run(context.Background(), "q1")
	require.NoError(t, err)
	assert.NotEmpty(t, a.RequestID)
	assert.NotEqual(t, a.RequestID, b.RequestID)
}
