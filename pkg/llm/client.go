// Package llm is the narrow interface the pipeline uses to talk to a chat
// language model, plus an OpenAI/Azure OpenAI implementation.
package llm

import "context"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request.
type Request struct {
	Messages []Message
	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
	// MaxTokens caps the completion length; 0 uses the client default.
	MaxTokens int
}

// Response is a completion result. A nil Content means the provider answered
// without a content field, which is different from an empty string.
type Response struct {
	Content *string
}

// Text returns the content, or "" when absent.
func (r *Response) Text() string {
	if r == nil || r.Content == nil {
		return ""
	}
	return *r.Content
}

// NewResponse wraps text in a Response.
func NewResponse(text string) *Response {
	return &Response{Content: &text}
}

// Client completes chat prompts. A nil *Response with a nil error is allowed
// and means the provider returned no response object.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
