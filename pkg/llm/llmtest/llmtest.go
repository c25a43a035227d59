// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/perbu/tariffrag/pkg/llm"
)

// Reply is one scripted outcome of a Complete call.
type Reply struct {
	Response *llm.Response
	Err      error
}

// Text is a reply carrying content.
func Text(s string) Reply { return Reply{Response: llm.NewResponse(s)} }

// Fail is a reply that returns err.
func Fail(err error) Reply { return Reply{Err: err} }

// NoResponse is a reply with neither a response object nor an error.
func NoResponse() Reply { return Reply{} }

// NoContent is a reply whose response lacks a content field.
func NoContent() Reply { return Reply{Response: &llm.Response{}} }

// ErrExhausted is returned once every scripted reply has been consumed.
var ErrExhausted = errors.New("llmtest: no scripted reply left")

// Client replays scripted replies in order and records every request.
type Client struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

// New returns a client that answers with replies in order.
func New(replies ...Reply) *Client {
	return &Client{replies: replies}
}

// Complete implements llm.Client.
func (c *Client) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.replies) == 0 {
		return nil, ErrExhausted
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.Response, r.Err
}

// Requests returns a copy of the recorded requests.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.requests))
	copy(out, c.requests)
	return out
}
