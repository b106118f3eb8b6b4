// Package record defines the request/response record that the relay persists
// once per completed upstream stream.
package record

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/papercomputeco/taperelay/pkg/llm"
	"github.com/papercomputeco/taperelay/pkg/reassembly"
)

// Record is one captured exchange. It is built once, after the upstream body
// has been fully consumed (or has ended abnormally), and is not modified
// afterwards.
type Record struct {
	// ID is a ULID, lexically sortable by capture time.
	ID string `json:"id"`

	// Timestamp is the capture time, in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Request is the JSON body that was forwarded upstream, after the model
	// rewrite.
	Request json.RawMessage `json:"request"`

	// Response is the reconstructed assistant reply.
	Response string `json:"response"`

	Meta Meta `json:"meta"`
}

// Meta carries capture details that are not part of the exchange itself.
type Meta struct {
	Model              string          `json:"model,omitempty"`
	Mode               reassembly.Mode `json:"mode"`
	Status             int             `json:"status"`
	DurationMs         int64           `json:"duration_ms"`
	UpstreamBytes      int             `json:"upstream_bytes"`
	ClientDisconnected bool            `json:"client_disconnected,omitempty"`
	UpstreamError      string          `json:"upstream_error,omitempty"`

	// Estimated token counts, set when the relay has a tokenizer.
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
}

// New builds a Record captured at capturedAt. The request body is copied.
func New(capturedAt time.Time, request []byte, response string, meta Meta) *Record {
	capturedAt = capturedAt.UTC()

	return &Record{
		ID:        ulid.MustNew(ulid.Timestamp(capturedAt), ulid.DefaultEntropy()).String(),
		Timestamp: capturedAt,
		Request:   bytes.Clone(request),
		Response:  response,
		Meta:      meta,
	}
}

// ChatRequest decodes the stored request body.
func (r *Record) ChatRequest() (*llm.ChatRequest, error) {
	return llm.ParseChatRequest(r.Request)
}
