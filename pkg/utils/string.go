package utils

import "unicode/utf8"

// Truncate shortens s to at most maxRunes runes, marking a cut with "…".
func Truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes]) + "…"
}
