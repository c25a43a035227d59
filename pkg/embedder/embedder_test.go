package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perbu/tariffrag/pkg/config"
	"github.com/perbu/tariffrag/pkg/llm"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestSimpleEmbedder(t *testing.T) {
	e := NewSimpleEmbedder(0)
	assert.Equal(t, 256, e.Dimension())
	assert.Equal(t, "simple-embedder-v2-256", e.ModelInfo())

	ctx := context.Background()
	a, err := e.Embed(ctx, "Anchorage dues per gross tonne")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "anchorage DUES, per gross tonne!")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "pilotage boarding ladder")
	require.NoError(t, err)

	assert.Len(t, a, 256)
	assert.InDelta(t, 1.0, math.Sqrt(dot(a, a)), 1e-5)
	assert.InDelta(t, 1.0, dot(a, b), 1e-5, "case and punctuation are ignored")
	assert.Greater(t, dot(a, b), dot(a, c))

	empty, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, dot(empty, empty))
}

func TestSimpleEmbedder_Batch(t *testing.T) {
	e := NewSimpleEmbedder(32)
	texts := []string{"wharfage", "pilotage", "wharfage"}
	got, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, got[0], got[2])
	assert.Len(t, got[1], 32)
}

// embeddingServer returns a 2-d vector derived from the input length, or a
// 500 for the input "boom".
func embeddingServer(t *testing.T, inFlight, maxInFlight *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inFlight != nil {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Input) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Input[0] == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"upstream exploded","type":"server_error"}}`)
			return
		}
		fmt.Fprintf(w, `{"object":"list","model":%q,"data":[{"object":"embedding","index":0,"embedding":[%d,1]}]}`,
			req.Model, len(req.Input[0]))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEmbedder(t *testing.T, url, model string) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(llm.Settings{APIKey: "k", BaseURL: url + "/v1"}, model)
	require.NoError(t, err)
	return e
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := embeddingServer(t, nil, nil)
	e := newTestEmbedder(t, srv.URL, "")
	assert.Equal(t, 1536, e.Dimension())
	assert.Equal(t, "openai-text-embedding-3-small", e.ModelInfo())

	v, err := e.Embed(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, v, 2)
	// [3, 1] normalized.
	assert.InDelta(t, 3/math.Sqrt(10), v[0], 1e-6)
	assert.InDelta(t, 1/math.Sqrt(10), v[1], 1e-6)

	_, err = e.Embed(context.Background(), "")
	assert.Error(t, err)

	_, err = e.Embed(context.Background(), "boom")
	assert.ErrorContains(t, err, "upstream exploded")
}

func TestOpenAIEmbedder_LargeModelDimension(t *testing.T) {
	e := newTestEmbedder(t, "http://unused", "text-embedding-3-large")
	assert.Equal(t, 3072, e.Dimension())
}

func TestOpenAIEmbedder_BatchKeepsOrder(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	srv := embeddingServer(t, &inFlight, &maxInFlight)
	e := newTestEmbedder(t, srv.URL, "")

	texts := make([]string, 30)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0)
	}
	got, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))
	for i, v := range got {
		n := float64(i + 1)
		assert.InDelta(t, n/math.Sqrt(n*n+1), v[0], 1e-6, "text %d", i)
	}
	assert.LessOrEqual(t, maxInFlight.Load(), int32(MaxConcurrentRequests))
}

func TestOpenAIEmbedder_BatchError(t *testing.T) {
	srv := embeddingServer(t, nil, nil)
	e := newTestEmbedder(t, srv.URL, "")

	_, err := e.EmbedBatch(context.Background(), []string{"ok", "boom", "fine"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding text 1")
}

func TestOpenAIEmbedder_RateLimit(t *testing.T) {
	srv := embeddingServer(t, nil, nil)
	e, err := NewOpenAIEmbedder(llm.Settings{APIKey: "k", BaseURL: srv.URL + "/v1"}, "", WithRateLimit(0.001, 1))
	require.NoError(t, err)
	require.NotNil(t, e.limiter)

	// The burst token serves the first call; the second cannot get a token
	// before the deadline.
	_, err = e.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = e.Embed(ctx, "second")
	assert.ErrorContains(t, err, "rate limit")

	unthrottled, err := NewOpenAIEmbedder(llm.Settings{APIKey: "k"}, "", WithRateLimit(0, 5))
	require.NoError(t, err)
	assert.Nil(t, unthrottled.limiter)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{Embedder: config.EmbedderConfig{Type: config.EmbedderSimple, Dimension: 16}}
	e, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 16, e.Dimension())

	cfg.Embedder.Type = "openia"
	_, err = FromConfig(cfg)
	assert.ErrorContains(t, err, `unknown embedder type "openia"`)

	cfg.Embedder = config.EmbedderConfig{Type: config.EmbedderOpenAI, RequestsPerSecond: 2, Burst: 1}
	cfg.LLM = config.LLMConfig{Provider: llm.ProviderOpenAI, APIKey: "k", EmbeddingModel: "text-embedding-3-large"}
	e, err = FromConfig(cfg)
	require.NoError(t, err)
	require.IsType(t, &OpenAIEmbedder{}, e)
	assert.Equal(t, 3072, e.Dimension())
	assert.NotNil(t, e.(*OpenAIEmbedder).limiter)
}
