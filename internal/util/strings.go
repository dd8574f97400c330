package util

import (
	"strings"
	"unicode/utf8"
)

// TruncateRunes cuts s to at most n runes without splitting a character.
// n <= 0 leaves s unchanged.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Ellipsize shortens s to at most n runes, ending the cut with marker.
// When n leaves no room for the marker, s is cut without one.
func Ellipsize(s string, n int, marker string) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	m := utf8.RuneCountInString(marker)
	if n <= m {
		return TruncateRunes(s, n)
	}
	return strings.TrimSpace(TruncateRunes(s, n-m)) + marker
}
