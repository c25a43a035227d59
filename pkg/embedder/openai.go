package embedder

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/perbu/tariffrag/pkg/llm"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// MaxConcurrentRequests bounds parallel embedding calls in EmbedBatch.
const MaxConcurrentRequests = 10

// OpenAIEmbedder uses the OpenAI (or Azure OpenAI) API for embeddings
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	dim     int
	limiter *rate.Limiter // nil means unthrottled
}

// Option configures an OpenAIEmbedder.
type Option func(*OpenAIEmbedder)

// WithRateLimit throttles embedding requests to rps per second with the given
// burst. A non-positive rps leaves requests unthrottled.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *OpenAIEmbedder) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewOpenAIEmbedder creates an OpenAI embedder. For Azure, model is the
// embedding deployment name.
func NewOpenAIEmbedder(settings llm.Settings, model string, opts ...Option) (*OpenAIEmbedder, error) {
	if model == "" {
		model = DefaultModel
	}
	cfg, err := settings.ClientConfig(model)
	if err != nil {
		return nil, err
	}

	// Set dimension based on model
	dim := 1536 // default for text-embedding-3-small and ada-002
	if model == "text-embedding-3-large" {
		dim = 3072
	}

	e := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		dim:    dim,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed generates an embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) == 0 {
		return nil, errors.New("cannot embed empty text")
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned from API")
	}

	src := resp.Data[0].Embedding
	v := make([]float32, len(src))
	for i := range src {
		v[i] = float32(src[i])
	}

	// L2 normalize (important for cosine similarity)
	l2normalize(v)

	return v, nil
}

// EmbedBatch generates embeddings for multiple texts with parallel processing.
// At most MaxConcurrentRequests calls are in flight.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentRequests)
	for i := range texts {
		g.Go(func() error {
			emb, err := e.Embed(ctx, texts[i])
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			embeddings[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// Dimension returns the embedding dimension
func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}

// ModelInfo returns model information
func (e *OpenAIEmbedder) ModelInfo() string {
	return "openai-" + e.model
}
