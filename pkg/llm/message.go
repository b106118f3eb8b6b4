package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    string  `json:"role"` // "system", "user", "assistant", "tool"
	Content Content `json:"content"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: Content(text),
	}
}

// GetText returns the plain text of the message.
func (m *Message) GetText() string {
	return string(m.Content)
}

// Content is message text. On the wire it is either a JSON string or, for
// multimodal clients, an array of typed parts; only "text" parts are kept
// and they are joined in order.
type Content string

// contentPart is one element of the array form of message content.
type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UnmarshalJSON accepts a string, null, or an array of content parts.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*c = ""
		return nil

	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = Content(s)
		return nil

	case len(trimmed) > 0 && trimmed[0] == '[':
		var parts []contentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		var b strings.Builder
		for _, p := range parts {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		*c = Content(b.String())
		return nil

	default:
		return fmt.Errorf("unsupported message content: %s", trimmed)
	}
}
