package llm

import (
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// DefaultAzureAPIVersion is used when an Azure endpoint is configured without a version.
const DefaultAzureAPIVersion = "2024-10-21"

// Settings describe how to reach an OpenAI-compatible endpoint. The same
// settings serve chat completions and embeddings.
type Settings struct {
	Provider      string // "openai" (default) or "azure"
	APIKey        string
	BaseURL       string // OpenAI base URL override, e.g. a local proxy or test server
	AzureEndpoint string
	APIVersion    string
	Timeout       time.Duration
}

// ClientConfig builds a go-openai configuration. For Azure the deployment
// name replaces whatever model name the request carries.
func (s Settings) ClientConfig(deployment string) (openai.ClientConfig, error) {
	if s.APIKey == "" {
		return openai.ClientConfig{}, errors.New("llm: API key is required")
	}

	var cfg openai.ClientConfig
	switch strings.ToLower(s.Provider) {
	case ProviderAzure:
		if s.AzureEndpoint == "" {
			return openai.ClientConfig{}, errors.New("llm: azure endpoint is required")
		}
		cfg = openai.DefaultAzureConfig(s.APIKey, s.AzureEndpoint)
		if s.APIVersion != "" {
			cfg.APIVersion = s.APIVersion
		} else {
			cfg.APIVersion = DefaultAzureAPIVersion
		}
		if deployment != "" {
			cfg.AzureModelMapperFunc = func(string) string { return deployment }
		}
	case ProviderOpenAI, "":
		cfg = openai.DefaultConfig(s.APIKey)
		if s.BaseURL != "" {
			cfg.BaseURL = s.BaseURL
		}
	default:
		return openai.ClientConfig{}, errors.New("llm: unknown provider " + s.Provider)
	}

	if s.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: s.Timeout}
	}
	return cfg, nil
}
