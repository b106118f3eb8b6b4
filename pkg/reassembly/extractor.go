// Package reassembly reconstructs the assistant's reply from a fully buffered
// upstream chat completion response.
//
// Extraction is lenient by policy: a malformed event, an unexpected JSON shape
// or an unparseable non-streaming body never fails the caller, it only
// contributes no text. Outcomes are returned as values (a fragment plus an ok
// flag, a Result with a Mode) so that leniency stays visible to callers and
// tests.
package reassembly

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractFragment returns the text carried by one data-event JSON payload:
// the concatenation of choices[*].delta.content, in choice order.
//
// ok is false only when data is not well-formed JSON. Well-formed values that
// do not match the expected shape yield an empty fragment with ok set to true.
func ExtractFragment(data []byte) (fragment string, ok bool) {
	if !gjson.ValidBytes(data) {
		return "", false
	}

	choices := gjson.GetBytes(data, "choices")
	if !choices.IsArray() {
		return "", true
	}

	var b strings.Builder
	choices.ForEach(func(_, choice gjson.Result) bool {
		if !choice.IsObject() {
			return true
		}

		content := choice.Get("delta.content")
		if content.Type == gjson.String {
			b.WriteString(content.Str)
		}
		return true
	})

	return b.String(), true
}

// ExtractMessageContent reads choices[0].message.content from a complete,
// non-streaming chat completion body. ok is false when body is not valid JSON
// or the path does not hold a string.
func ExtractMessageContent(body []byte) (content string, ok bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}

	v := gjson.GetBytes(body, "choices.0.message.content")
	if v.Type != gjson.String {
		return "", false
	}

	return v.Str, true
}
