// Package sse provides a minimal, purpose-built view of an upstream
// Server-Sent Events stream for the relay: a tee recorder that forwards raw
// upstream chunks verbatim while keeping a copy, and line-level classification
// of the buffered copy once the stream has ended.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities, and it does not implement full event framing ("event:",
// "id:", multi-line data joins): OpenAI-style chat completion streams carry
// one JSON payload per "data: " line.
//
// Event stream format:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"bytes"
	"strings"
)

const (
	// DataPrefix starts every data-event line, including the terminator.
	DataPrefix = "data: "

	// Terminator is the literal line that ends an OpenAI-style stream.
	Terminator = "data: [DONE]"
)

// Kind classifies a single trimmed SSE line.
type Kind int

const (
	// KindOther is any line that is neither a data-event nor the terminator
	// (comments, "event:" fields, a bare JSON body, ...).
	KindOther Kind = iota

	// KindData is a "data: " line carrying a payload.
	KindData

	// KindTerminator is the "data: [DONE]" line.
	KindTerminator
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindTerminator:
		return "terminator"
	default:
		return "other"
	}
}

// Line is one trimmed, non-empty line of a buffered stream.
type Line struct {
	Kind Kind

	// Text is the whole trimmed line.
	Text string

	// Payload is the trimmed remainder after DataPrefix. Empty unless Kind is
	// KindData.
	Payload string
}

// Classify classifies an already-trimmed line.
func Classify(text string) Line {
	switch {
	case text == Terminator:
		return Line{Kind: KindTerminator, Text: text}
	case strings.HasPrefix(text, DataPrefix):
		return Line{
			Kind:    KindData,
			Text:    text,
			Payload: strings.TrimSpace(text[len(DataPrefix):]),
		}
	default:
		return Line{Kind: KindOther, Text: text}
	}
}

// SplitLines splits a fully buffered stream on "\n", trims surrounding
// whitespace from every line (which also drops a trailing "\r") and discards
// empty lines. The returned lines keep their order in buf.
func SplitLines(buf []byte) []Line {
	raw := bytes.Split(buf, []byte("\n"))

	lines := make([]Line, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(string(r))
		if text == "" {
			continue
		}
		lines = append(lines, Classify(text))
	}

	return lines
}
