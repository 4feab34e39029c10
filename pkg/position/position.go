// Package position tracks (line, column, offset) as the lexer advances
// through a source buffer, and renders the three-line diagnostics the
// rest of the compiler uses for syntax and codegen errors.
package position

import (
	"fmt"
	"strings"
)

// Position is an immutable snapshot of where in a source buffer a token
// or AST node originated. Positions are cloned (via Copy) before the
// lexer advances past them, so a Token's Position always reflects the
// start of that token, never the lexer's current location.
type Position struct {
	Line            int // 1-based
	Col             int // 1-based
	AbsOffset       int
	LineStartOffset int
	buffer          *string // shared, not owned
}

// New returns the starting position (1:1) for buf.
func New(buf *string) Position {
	return Position{Line: 1, Col: 1, buffer: buf}
}

// Copy returns an independent snapshot of p.
func (p Position) Copy() Position {
	return p
}

// Equal compares two positions by (line, col), per spec: two positions
// that point at the same place in the source compare equal regardless
// of how they were derived.
func (p Position) Equal(o Position) bool {
	return p.Line == o.Line && p.Col == o.Col
}

// Advance moves the position past one consumed rune. A newline resets
// the column and records the new line's start offset; any other rune
// just advances the column.
func (p Position) Advance(consumed rune) Position {
	n := p
	n.AbsOffset++
	if consumed == '\n' || consumed == '\r' {
		n.Line++
		n.Col = 1
		n.LineStartOffset = n.AbsOffset
	} else {
		n.Col++
	}
	return n
}

// Excerpt returns the source line containing p, plus a caret line
// pointing at p.Col.
func (p Position) Excerpt() string {
	if p.buffer == nil {
		return ""
	}
	buf := *p.buffer
	if p.LineStartOffset > len(buf) {
		return ""
	}
	rest := buf[p.LineStartOffset:]
	if idx := strings.IndexAny(rest, "\n\r"); idx >= 0 {
		rest = rest[:idx]
	}
	dashes := p.Col - 1
	if dashes < 0 {
		dashes = 0
	}
	caret := strings.Repeat("-", dashes) + "^"
	return rest + "\n" + caret
}

// Diagnostic formats the standard three-line compiler diagnostic:
// "line L:C", the message, and the source excerpt with caret.
func (p Position) Diagnostic(msg string) string {
	return fmt.Sprintf("line %d:%d\n%s\n%s", p.Line, p.Col, msg, p.Excerpt())
}
