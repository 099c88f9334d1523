package tgui

import "unicode/utf8"

// Clip shortens s to n runes and marks the cut with "…".
// The marker does not count towards n.
func Clip(s string, n int) string {
	switch {
	case n <= 0:
		return ""
	case utf8.RuneCountInString(s) <= n:
		return s
	}
	end := 0
	for range n {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return s[:end] + "…"
}
