// Package llm holds the OpenAI-style chat completion types that the relay
// understands well enough to validate, rewrite and persist.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned by ParseChatRequest when the client body is not
// a usable chat completion request.
var ErrInvalidRequest = errors.New("invalid chat request")

// ChatRequest is the subset of an OpenAI chat completion request that the relay
// inspects. Fields not declared here are never dropped: the relay forwards and
// persists the original body and only ever rewrites "model" in place.
type ChatRequest struct {
	// Model name (e.g., "openai/gpt-4o", "anthropic/claude-3.5-sonnet:beta")
	Model string `json:"model"`

	// Conversation messages, in order
	Messages []Message `json:"messages"`

	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stream      *bool    `json:"stream,omitempty"`
}

// ParseChatRequest decodes body into a ChatRequest. It fails with
// ErrInvalidRequest when body is not JSON or is missing model or messages.
func ParseChatRequest(body []byte) (*ChatRequest, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidRequest)
	}

	req := &ChatRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if req.Model == "" {
		return nil, fmt.Errorf("%w: missing model", ErrInvalidRequest)
	}

	// json.Unmarshal leaves a nil slice when the field is absent and an empty,
	// non-nil slice for "messages": [].
	if req.Messages == nil {
		return nil, fmt.Errorf("%w: missing messages", ErrInvalidRequest)
	}

	return req, nil
}

// IsStreaming reports whether the client asked for a streamed response.
func (r *ChatRequest) IsStreaming() bool {
	return r.Stream != nil && *r.Stream
}
