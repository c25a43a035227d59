package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Path   string
	Query  string
	APIKey string
	Auth   string
	Body   map[string]any
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
		captured = append(captured, capturedRequest{
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			APIKey: r.Header.Get("api-key"),
			Auth:   r.Header.Get("Authorization"),
			Body:   reqBody,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func completion(content string) string {
	return fmt.Sprintf(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
		"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
}

func TestComplete(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, completion("hello"))
	client, err := NewOpenAIClient(Settings{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultChatModel, client.ModelName())

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hi"},
		},
		JSON: true,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Content)
	assert.Equal(t, "hello", resp.Text())

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, "/v1/chat/completions", req.Path)
	assert.Equal(t, "Bearer sk-test", req.Auth)
	assert.Equal(t, "gpt-4o-mini", req.Body["model"])
	assert.EqualValues(t, DefaultMaxCompletionTokens, req.Body["max_completion_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, req.Body["response_format"])

	msgs := req.Body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "hi", msgs[1].(map[string]any)["content"])
}

func TestComplete_PlainTextAndTokenOverride(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, completion("x"))
	client, err := NewOpenAIClient(Settings{APIKey: "k", BaseURL: srv.URL + "/v1"}, "gpt-4o", 500)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "q"}},
		MaxTokens: 42,
	})
	require.NoError(t, err)

	body := (*captured)[0].Body
	assert.Equal(t, "gpt-4o", body["model"])
	assert.EqualValues(t, 42, body["max_completion_tokens"])
	assert.NotContains(t, body, "response_format")
}

func TestComplete_NoChoices(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`)
	client, err := NewOpenAIClient(Settings{APIKey: "k", BaseURL: srv.URL + "/v1"}, "", 0)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Nil(t, resp.Content)
}

func TestComplete_APIError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusUnauthorized,
		`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	client, err := NewOpenAIClient(Settings{APIKey: "bad", BaseURL: srv.URL + "/v1"}, "", 0)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion")
	assert.Contains(t, err.Error(), "Incorrect API key")
}

func TestComplete_Azure(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, completion("azure says hi"))
	client, err := NewOpenAIClient(Settings{
		Provider:      ProviderAzure,
		APIKey:        "azure-key",
		AzureEndpoint: srv.URL,
	}, "my-chat-deployment", 0)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.NoError(t, err)
	assert.Equal(t, "azure says hi", resp.Text())

	req := (*captured)[0]
	assert.Equal(t, "/openai/deployments/my-chat-deployment/chat/completions", req.Path)
	assert.Equal(t, "api-version="+DefaultAzureAPIVersion, req.Query)
	assert.Equal(t, "azure-key", req.APIKey)
}

func TestClientConfig_Errors(t *testing.T) {
	_, err := Settings{}.ClientConfig("m")
	assert.ErrorContains(t, err, "API key")

	_, err = Settings{Provider: ProviderAzure, APIKey: "k"}.ClientConfig("m")
	assert.ErrorContains(t, err, "azure endpoint")

	_, err = Settings{Provider: "bedrock", APIKey: "k"}.ClientConfig("m")
	assert.ErrorContains(t, err, "unknown provider")
}

func TestResponseText(t *testing.T) {
	var nilResp *Response
	assert.Equal(t, "", nilResp.Text())
	assert.Equal(t, "", (&Response{}).Text())
	assert.Equal(t, "", NewResponse("").Text())
	assert.Equal(t, "abc", NewResponse("abc").Text())
}
