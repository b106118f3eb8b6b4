// Package tokenizer estimates token counts for chat requests and replies.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/papercomputeco/taperelay/pkg/llm"
)

// Encoding names used by tiktoken.
const (
	EncodingCL100kBase = "cl100k_base"
	EncodingO200kBase  = "o200k_base"
)

// OpenAI chat framing: each message costs a fixed overhead and every reply
// is primed with a few tokens.
const (
	tokensPerMessage = 3
	tokensPerReply   = 3
)

// Counter counts tokens for a model.
type Counter interface {
	// CountText counts tokens in text.
	CountText(text, model string) (int, error)

	// CountMessages counts the prompt tokens of a conversation.
	CountMessages(msgs []llm.Message, model string) (int, error)
}

type modelEncoding struct {
	prefix   string
	encoding string
}

// modelEncodings is ordered longest prefix first.
var modelEncodings = []modelEncoding{
	{"text-embedding", EncodingCL100kBase},
	{"gpt-4o", EncodingO200kBase},
	{"gpt-4.1", EncodingO200kBase},
	{"gpt-3.5", EncodingCL100kBase},
	{"gpt-4", EncodingCL100kBase},
	{"chatgpt", EncodingO200kBase},
	{"o1", EncodingO200kBase},
	{"o3", EncodingO200kBase},
	{"o4", EncodingO200kBase},
}

// Tiktoken implements Counter with tiktoken BPE encodings. Encodings are
// loaded on first use and cached, including load failures, so an offline
// host pays for a failed load once per encoding.
type Tiktoken struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
	failures  map[string]error
	load      func(name string) (*tiktoken.Tiktoken, error)
}

// New creates a Tiktoken counter.
func New() *Tiktoken {
	return &Tiktoken{
		encodings: make(map[string]*tiktoken.Tiktoken),
		failures:  make(map[string]error),
		load:      tiktoken.GetEncoding,
	}
}

// ResolveEncoding returns the encoding for model. Provider-qualified names
// such as "openai/gpt-4o" are matched on the part after the last slash, and
// unknown models fall back to cl100k_base.
func ResolveEncoding(model string) string {
	name := strings.ToLower(model)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	for _, me := range modelEncodings {
		if strings.HasPrefix(name, me.prefix) {
			return me.encoding
		}
	}

	return EncodingCL100kBase
}

func (t *Tiktoken) encoding(model string) (*tiktoken.Tiktoken, error) {
	name := ResolveEncoding(model)

	t.mu.RLock()
	enc, ok := t.encodings[name]
	err := t.failures[name]
	t.mu.RUnlock()
	if ok {
		return enc, nil
	}
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if enc, ok = t.encodings[name]; ok {
		return enc, nil
	}
	if err = t.failures[name]; err != nil {
		return nil, err
	}

	enc, err = t.load(name)
	if err != nil {
		t.failures[name] = err
		return nil, err
	}
	t.encodings[name] = enc
	return enc, nil
}

// CountText counts tokens in text for model.
func (t *Tiktoken) CountText(text, model string) (int, error) {
	if text == "" {
		return 0, nil
	}

	enc, err := t.encoding(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountMessages counts the prompt tokens of msgs for model, including the
// per-message framing.
func (t *Tiktoken) CountMessages(msgs []llm.Message, model string) (int, error) {
	enc, err := t.encoding(model)
	if err != nil {
		return 0, err
	}

	total := tokensPerReply
	for i := range msgs {
		total += tokensPerMessage
		total += len(enc.Encode(msgs[i].Role, nil, nil))
		total += len(enc.Encode(msgs[i].GetText(), nil, nil))
	}
	return total, nil
}
