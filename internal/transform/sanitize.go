package transform

import (
	"strings"
	"unicode"
)

// Sanitize drops every rune outside the 7-bit ASCII range. Invalid UTF-8
// bytes decode to utf8.RuneError and are dropped with the rest.
func Sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, text)
}
