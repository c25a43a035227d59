package embedder

import (
	"fmt"

	"github.com/perbu/tariffrag/pkg/config"
)

// FromConfig builds the embedder selected by cfg.Embedder.Type.
func FromConfig(cfg *config.Config) (Embedder, error) {
	switch cfg.Embedder.Type {
	case config.EmbedderSimple:
		return NewSimpleEmbedder(cfg.Embedder.Dimension), nil
	case config.EmbedderOpenAI:
		return NewOpenAIEmbedder(cfg.LLMSettings(), cfg.LLM.EmbeddingModel,
			WithRateLimit(cfg.Embedder.RequestsPerSecond, cfg.Embedder.Burst))
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}
}
