// Package lexer turns a source buffer into the token stream the parser
// consumes. It is one-pass with single-character lookahead, mirroring
// §4.3 of the spec.
package lexer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/position"
	"github.com/akilang/akic/pkg/token"
)

// Lexer holds the mutable scan state for one pass over src.
type Lexer struct {
	src []rune
	buf string // retained so produced Positions can render excerpts
	idx int
	pos position.Position
}

// New constructs a Lexer over src. The lexer (and the tokens it
// produces) borrow src for their lifetime; src must outlive them.
func New(src string) *Lexer {
	l := &Lexer{src: []rune(src), buf: src}
	l.pos = position.New(&l.buf)
	return l
}

func (l *Lexer) peek() rune {
	if l.idx >= len(l.src) {
		return 0
	}
	return l.src[l.idx]
}

func (l *Lexer) peek2() rune {
	if l.idx+1 >= len(l.src) {
		return 0
	}
	return l.src[l.idx+1]
}

func (l *Lexer) advance() rune {
	if l.idx >= len(l.src) {
		return 0
	}
	r := l.src[l.idx]
	l.idx++
	l.pos = l.pos.Advance(r)
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.idx < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipComment discards a `#`-to-end-of-line comment. The leading `#`
// must already have been consumed.
func (l *Lexer) skipComment() {
	for l.idx < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' }
func isIdentCont(r rune) bool  { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

// scanIdent collects `[A-Za-z_][A-Za-z0-9_]*` and classifies it against
// the keyword table, then the vartype-name table, defaulting to Name.
func (l *Lexer) scanIdent() token.Token {
	start := l.pos
	var sb strings.Builder
	for l.idx < len(l.src) && isIdentCont(l.peek()) {
		sb.WriteRune(l.advance())
	}
	lexeme := sb.String()
	if kw, ok := token.Keywords[lexeme]; ok {
		return token.Token{Kind: token.Keyword, Value: lexeme, Keyword: kw, Position: start}
	}
	if token.VartypeNames[lexeme] {
		return token.Token{Kind: token.Vartype, Value: lexeme, Position: start}
	}
	return token.Token{Kind: token.Name, Value: lexeme, Position: start}
}

// scanString collects a string literal opened and closed by the same
// delimiter (`"` or `'`), decoding escapes as it goes.
func (l *Lexer) scanString() (token.Token, error) {
	start := l.pos
	delim := l.advance() // consume opening delimiter
	var out []byte
	for {
		if l.idx >= len(l.src) {
			return token.Token{}, &errs.SyntaxError{Msg: "unterminated string literal", Pos: start}
		}
		r := l.peek()
		if r == delim {
			l.advance()
			break
		}
		if r == '\\' {
			escPos := l.pos
			l.advance()
			b, err := l.scanEscape(escPos)
			if err != nil {
				return token.Token{}, err
			}
			out = append(out, b)
			continue
		}
		out = append(out, []byte(string(l.advance()))...)
	}
	return token.Token{Kind: token.String, Value: string(out), Position: start}, nil
}

// scanEscape decodes one escape sequence; the backslash has already
// been consumed and l.peek() is the character following it.
func (l *Lexer) scanEscape(escPos position.Position) (byte, error) {
	r := l.peek()
	if r == 'x' {
		l.advance()
		h1, h2 := l.peek(), l.peek2()
		if !isHexDigit(h1) || !isHexDigit(h2) {
			return 0, &errs.SyntaxError{Msg: `invalid \x escape: expected two hex digits`, Pos: escPos}
		}
		l.advance()
		l.advance()
		return byte(hexVal(h1)<<4 | hexVal(h2)), nil
	}
	if b, ok := token.EscapeMap[r]; ok {
		l.advance()
		return b, nil
	}
	return 0, &errs.SyntaxError{Msg: fmt.Sprintf("unknown escape sequence \\%c", r), Pos: escPos}
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hexVal(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	default:
		return int(r-'A') + 10
	}
}

// scanNumber collects a decimal/floating literal or a 0x/0h hex literal,
// per §4.3 rule 4.
func (l *Lexer) scanNumber() (token.Token, error) {
	start := l.pos

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X' || l.peek2() == 'h' || l.peek2() == 'H') {
		signed := l.peek2() == 'h' || l.peek2() == 'H'
		l.advance() // '0'
		l.advance() // 'x'/'h'
		var digits strings.Builder
		for l.idx < len(l.src) && (isHexDigit(l.peek()) || l.peek() == '_') {
			r := l.advance()
			if r != '_' {
				digits.WriteRune(r)
			}
		}
		ds := digits.String()
		if ds == "" {
			return token.Token{}, &errs.SyntaxError{Msg: "empty hex literal", Pos: start}
		}
		hint := hexLiteralType(ds, signed)
		return token.Token{Kind: token.Hex, Value: ds, TypeHint: hint, Position: start}, nil
	}

	var digits strings.Builder
	isFloat := false
	for l.idx < len(l.src) {
		r := l.peek()
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(l.advance())
		case r == '_':
			l.advance() // visual separator, discarded
		case r == '.' && !isFloat:
			isFloat = true
			digits.WriteRune(l.advance())
		default:
			goto suffix
		}
	}
suffix:
	hint := ""
	kind := token.Integer
	if isFloat {
		kind = token.Float
		hint = "f64"
	} else {
		hint = "i32"
	}
	switch l.peek() {
	case 'F':
		l.advance()
		kind, hint = token.Float, "f64"
	case 'f':
		l.advance()
		kind, hint = token.Float, "f32"
	case 'I':
		l.advance()
		kind, hint = token.Integer, "i64"
	case 'i':
		l.advance()
		kind, hint = token.Integer, "i32"
	case 'U':
		l.advance()
		kind, hint = token.Integer, "u64"
	case 'u':
		l.advance()
		kind, hint = token.Integer, "u32"
	case 'B':
		l.advance()
		kind, hint = token.Integer, "byte"
	case 'b':
		l.advance()
		kind, hint = token.Integer, "bool"
	}
	return token.Token{Kind: kind, Value: digits.String(), TypeHint: hint, Position: start}, nil
}

// hexLiteralType implements §4.3's width rule: width = 4*ndigits rounded
// up to the next of 8, 16, 32 or 64 bits (wider counts clamp to 64),
// except a literal whose value is 0 or 1 (any digit count) is typed
// bool. `0x` literals are unsigned, `0h` literals are signed.
func hexLiteralType(digits string, signed bool) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" || trimmed == "1" {
		return "bool"
	}
	bits := len(digits) * 4
	width := ((bits + 7) / 8) * 8
	switch {
	case width <= 8:
		width = 8
	case width <= 16:
		width = 16
	case width <= 32:
		width = 32
	default:
		width = 64
	}
	if signed {
		return fmt.Sprintf("i%d", width)
	}
	return fmt.Sprintf("u%d", width)
}

// Next returns the next token, skipping whitespace and comments. It
// returns a Kind==EOF token (not an error) when the input is exhausted.
func (l *Lexer) Next() (token.Token, error) {
	for {
		l.skipWhitespace()
		if l.idx >= len(l.src) {
			return token.Token{Kind: token.EOF, Position: l.pos}, nil
		}
		if l.peek() == '#' {
			l.advance()
			l.skipComment()
			continue
		}
		break
	}

	start := l.pos
	ch := l.peek()

	if isIdentStart(ch) {
		return l.scanIdent(), nil
	}
	if unicode.IsDigit(ch) {
		return l.scanNumber()
	}
	if ch == '"' || ch == '\'' {
		return l.scanString()
	}
	if token.Punctuators[ch] {
		l.advance()
		return token.Token{Kind: token.Punctuator, Value: string(ch), Position: start}, nil
	}

	for _, op := range token.Operators {
		if l.matchesAt(op) {
			for range op {
				l.advance()
			}
			return token.Token{Kind: token.Operator, Value: op, Position: start}, nil
		}
	}

	return token.Token{}, &errs.SyntaxError{Msg: fmt.Sprintf("unexpected character %q", ch), Pos: start}
}

// matchesAt reports whether op matches the source text starting at the
// lexer's current position.
func (l *Lexer) matchesAt(op string) bool {
	runes := []rune(op)
	if l.idx+len(runes) > len(l.src) {
		return false
	}
	for i, r := range runes {
		if l.src[l.idx+i] != r {
			return false
		}
	}
	return true
}

// Tokenize lexes all of src and returns the full token stream ending in
// an EOF token, or the first lexical error encountered (terminal for
// the whole input, per §4.7).
func Tokenize(src string) ([]token.Token, error) {
	l := New(src)
	var out []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out, nil
		}
	}
}
