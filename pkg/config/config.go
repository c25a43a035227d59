// Package config loads tariffrag settings from a YAML file with environment
// overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/perbu/tariffrag/pkg/llm"
)

// Embedder types.
const (
	EmbedderOpenAI = "openai"
	EmbedderSimple = "simple"
)

// LLMConfig configures the OpenAI or Azure OpenAI endpoint used for chat and
// embeddings. For Azure, ChatModel and EmbeddingModel are deployment names.
type LLMConfig struct {
	Provider            string `yaml:"provider"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	AzureEndpoint       string `yaml:"azure_endpoint"`
	APIVersion          string `yaml:"api_version"`
	ChatModel           string `yaml:"chat_model"`
	EmbeddingModel      string `yaml:"embedding_model"`
	MaxCompletionTokens int    `yaml:"max_completion_tokens"`
	TimeoutSecs         int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects the embedder implementation.
type EmbedderConfig struct {
	Type      string `yaml:"type"`
	Dimension int    `yaml:"dimension"` // simple embedder only

	// RequestsPerSecond throttles the openai embedder; 0 disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root configuration.
type Config struct {
	DocsDir         string         `yaml:"docs_dir"`
	IndexPath       string         `yaml:"index_path"`
	CheckpointPath  string         `yaml:"checkpoint_path"`
	TopK            int            `yaml:"top_k"`
	ReferenceMarker string         `yaml:"reference_marker"`
	ContextDumpPath string         `yaml:"context_dump_path"`
	LogLevel        string         `yaml:"log_level"`
	LogFormat       string         `yaml:"log_format"`
	Server          ServerConfig   `yaml:"server"`
	LLM             LLMConfig      `yaml:"llm"`
	Embedder        EmbedderConfig `yaml:"embedder"`
}

// Load reads the config at path, applies environment overrides and fills in
// defaults. A missing file is not an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DocsDir = envStr("TARIFFRAG_DOCS_DIR", cfg.DocsDir)
	cfg.IndexPath = envStr("TARIFFRAG_INDEX_PATH", cfg.IndexPath)
	cfg.TopK = envInt("TARIFFRAG_TOP_K", cfg.TopK)
	cfg.Embedder.RequestsPerSecond = envFloat("TARIFFRAG_EMBED_RPS", cfg.Embedder.RequestsPerSecond)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)

	cfg.LLM.AzureEndpoint = envStr("AZURE_OPENAI_ENDPOINT", cfg.LLM.AzureEndpoint)
	if cfg.LLM.Provider == "" && cfg.LLM.AzureEndpoint != "" {
		cfg.LLM.Provider = llm.ProviderAzure
	}

	if strings.EqualFold(cfg.LLM.Provider, llm.ProviderAzure) {
		cfg.LLM.APIKey = envStr("AZURE_OPENAI_API_KEY", cfg.LLM.APIKey)
		cfg.LLM.APIVersion = envStr("AZURE_OPENAI_API_VERSION", cfg.LLM.APIVersion)
		cfg.LLM.ChatModel = envStr("AZURE_OPENAI_CHAT_DEPLOYMENT", cfg.LLM.ChatModel)
		cfg.LLM.EmbeddingModel = envStr("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", cfg.LLM.EmbeddingModel)
	} else {
		cfg.LLM.APIKey = envStr("OPENAI_API_KEY", cfg.LLM.APIKey)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.DocsDir == "" {
		cfg.DocsDir = "Docs"
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = "vector_store/index.gob"
	}
	if cfg.CheckpointPath == "" {
		cfg.CheckpointPath = cfg.IndexPath + ".checkpoint"
	}
	if cfg.TopK < 1 {
		cfg.TopK = 3
	}
	if cfg.ReferenceMarker == "" {
		cfg.ReferenceMarker = "table"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = llm.ProviderOpenAI
	}
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	if cfg.LLM.ChatModel == "" {
		cfg.LLM.ChatModel = llm.DefaultChatModel
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.LLM.MaxCompletionTokens <= 0 {
		cfg.LLM.MaxCompletionTokens = llm.DefaultMaxCompletionTokens
	}
	if cfg.LLM.TimeoutSecs <= 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = EmbedderOpenAI
	}
	if cfg.Embedder.RequestsPerSecond > 0 && cfg.Embedder.Burst < 1 {
		cfg.Embedder.Burst = 1
	}
	if cfg.Embedder.Type == EmbedderSimple && cfg.Embedder.Dimension <= 0 {
		cfg.Embedder.Dimension = 256
	}
}

// Validate reports configuration that cannot work. Call it before building
// clients that need the model endpoint.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLM.Provider {
	case llm.ProviderOpenAI:
	case llm.ProviderAzure:
		if c.LLM.AzureEndpoint == "" {
			errs = append(errs, errors.New("llm.azure_endpoint (AZURE_OPENAI_ENDPOINT) is required for the azure provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm API key not set (OPENAI_API_KEY or AZURE_OPENAI_API_KEY)"))
	}
	switch c.Embedder.Type {
	case EmbedderOpenAI, EmbedderSimple:
	default:
		errs = append(errs, fmt.Errorf("unknown embedder.type %q", c.Embedder.Type))
	}
	return errors.Join(errs...)
}

// LLMSettings returns the endpoint settings shared by chat and embeddings.
func (c *Config) LLMSettings() llm.Settings {
	return llm.Settings{
		Provider:      c.LLM.Provider,
		APIKey:        c.LLM.APIKey,
		BaseURL:       c.LLM.BaseURL,
		AzureEndpoint: c.LLM.AzureEndpoint,
		APIVersion:    c.LLM.APIVersion,
		Timeout:       time.Duration(c.LLM.TimeoutSecs) * time.Second,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
