package token

import "fmt"

// Position is a location in template source. The zero value means
// "unknown" and is omitted from error messages.
type Position struct {
	Line   int // 1-based
	Column int // 1-based, counted in runes
	Offset int // 0-based byte offset
}

// IsValid reports whether the position is known.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// String renders the position as line:column, or "-" when unknown.
func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}
