package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Default configuration values.
const (
	DefaultChatModel           = "gpt-4o-mini"
	DefaultMaxCompletionTokens = 1000
)

// Ensure OpenAIClient implements the interface.
var _ Client = (*OpenAIClient)(nil)

// OpenAIClient completes prompts with the OpenAI chat completions API, or an
// Azure OpenAI chat deployment.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIClient creates a chat client. For Azure, model is the chat
// deployment name.
func NewOpenAIClient(settings Settings, model string, maxTokens int) (*OpenAIClient, error) {
	if model == "" {
		model = DefaultChatModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxCompletionTokens
	}
	cfg, err := settings.ClientConfig(model)
	if err != nil {
		return nil, err
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Complete sends the messages and returns the first choice. A response with
// no choices is reported as a Response without content.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: maxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return &Response{}, nil
	}
	return NewResponse(resp.Choices[0].Message.Content), nil
}

// ModelName returns the chat model or deployment in use.
func (c *OpenAIClient) ModelName() string {
	return c.model
}
