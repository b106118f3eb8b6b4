package reassembly

import (
	"strings"

	"github.com/papercomputeco/taperelay/pkg/sse"
)

// Mode reports which path produced a Result.
type Mode string

const (
	// ModeStream means the text was accumulated from SSE delta fragments.
	ModeStream Mode = "stream"

	// ModeFallback means the buffer held a single non-streaming completion
	// body and the text was read from choices[0].message.content.
	ModeFallback Mode = "fallback"

	// ModeNone means no text could be recovered.
	ModeNone Mode = "none"
)

// Result is the outcome of reassembling one buffered response.
type Result struct {
	// Text is the reconstructed assistant reply. Empty when Mode is ModeNone.
	Text string

	Mode Mode

	// Lines is the number of non-empty lines in the buffer.
	Lines int

	// Events is the number of data-event lines scanned before the
	// terminator (or the end of the buffer).
	Events int

	// Terminated is true when a "data: [DONE]" line was seen.
	Terminated bool
}

// Reassemble reconstructs the reply text from buf, which must hold the
// complete upstream response body.
//
// Data-event lines are scanned in order up to the terminator; each payload is
// handed to ExtractFragment and fragments are concatenated without
// reordering or deduplication. Lines after the terminator are not scanned.
//
// When that yields no text, the buffer is treated as a non-streaming body: it
// must consist of exactly one non-empty line holding a chat completion. Any
// other shape degrades to an empty ModeNone result.
func Reassemble(buf []byte) Result {
	lines := sse.SplitLines(buf)
	res := Result{Lines: len(lines)}

	var text strings.Builder
	for _, line := range lines {
		if line.Kind == sse.KindTerminator {
			res.Terminated = true
			break
		}
		if line.Kind != sse.KindData {
			continue
		}

		res.Events++

		// A payload that fails to parse contributes nothing.
		fragment, _ := ExtractFragment([]byte(line.Payload))
		text.WriteString(fragment)
	}

	if text.Len() > 0 {
		res.Text = text.String()
		res.Mode = ModeStream
		return res
	}

	if len(lines) != 1 {
		res.Mode = ModeNone
		return res
	}

	content, ok := ExtractMessageContent([]byte(lines[0].Text))
	if !ok || content == "" {
		res.Mode = ModeNone
		return res
	}

	res.Text = content
	res.Mode = ModeFallback
	return res
}
