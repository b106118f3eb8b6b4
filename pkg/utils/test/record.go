package testutils

import (
	"encoding/json"
	"time"

	"github.com/papercomputeco/taperelay/pkg/reassembly"
	"github.com/papercomputeco/taperelay/pkg/record"
)

// NewTestRequestBody returns a chat request body with a single user message.
func NewTestRequestBody(model, userText string) []byte {
	body, err := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": userText},
		},
		"stream": true,
	})
	if err != nil {
		panic(err)
	}
	return body
}

// NewTestRecord creates a streamed record for testing captured at capturedAt.
func NewTestRecord(capturedAt time.Time, userText, response string) *record.Record {
	return record.New(
		capturedAt,
		NewTestRequestBody("test-model", userText),
		response,
		record.Meta{
			Model:  "test-model",
			Mode:   reassembly.ModeStream,
			Status: 200,
		},
	)
}
