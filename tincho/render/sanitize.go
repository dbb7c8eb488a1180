package render

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Sanitize prepares a server-provided string (player id, error message)
// for display: markup is stripped and control characters that could drive
// the terminal are dropped.
func Sanitize(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
