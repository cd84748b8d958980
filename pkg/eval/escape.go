package eval

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// EscapeHTML replaces &, <, >, " and ' with their HTML entities.
// It is not idempotent: escaping twice double-encodes ampersands.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
