// Package stringutil provides rune-aware string helpers shared by the renderer and the CLI.
package stringutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// RuneLen returns the number of runes in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Prefix returns the first n runes of s.
// Returns "" for n <= 0 and s unchanged when it is already short enough.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// TrimPartialWord drops the last whitespace rune in s together with the run of
// non-whitespace that follows it, so the result never ends inside a word that
// continued past the end of s. A string with no whitespace trims to "".
func TrimPartialWord(s string) string {
	i := strings.LastIndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return s[:i]
}

// Truncate shortens a string to maxLen runes with a "..." suffix.
// If maxLen < 4, returns the string unchanged (no room for the suffix).
func Truncate(s string, maxLen int) string {
	if maxLen < 4 {
		return s
	}
	if RuneLen(s) <= maxLen {
		return s
	}
	return Prefix(s, maxLen-3) + "..."
}
