// Package token defines the lexer's output alphabet: token kinds, the
// keyword and operator tables, and the escape-sequence map strings use.
package token

import (
	"fmt"

	"github.com/akilang/akic/pkg/position"
)

// Kind identifies the category of a lexed token.
type Kind int

const (
	EOF Kind = iota
	Integer
	Float
	Hex
	String
	Name
	Vartype
	Operator
	Punctuator
	Keyword
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case Hex:
		return "Hex"
	case String:
		return "String"
	case Name:
		return "Name"
	case Vartype:
		return "Vartype"
	case Operator:
		return "Operator"
	case Punctuator:
		return "Punctuator"
	case Keyword:
		return "Keyword"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KeywordVariant identifies which keyword a Keyword-kind token spells.
type KeywordVariant int

const (
	NotKeyword KeywordVariant = iota
	KwDef
	KwExtern
	KwIf
	KwElse
	KwWhen
	KwLoop
	KwBreak
	KwWith
	KwVar
	KwAnd
	KwOr
	KwNot
	KwTrue
	KwFalse
	KwPtr
	KwFunc
	KwInline
	KwNoinline
	KwVarfunc
	KwTrack
	KwPragma
)

// Keywords maps source spelling to its KeywordVariant. Built-in logical
// operator names ("and", "or", "not") live here rather than in the
// operator table because the lexer recognizes them via the identifier
// path (§4.3 rule 3), like any other keyword.
var Keywords = map[string]KeywordVariant{
	"def":      KwDef,
	"extern":   KwExtern,
	"if":       KwIf,
	"else":     KwElse,
	"when":     KwWhen,
	"loop":     KwLoop,
	"break":    KwBreak,
	"with":     KwWith,
	"var":      KwVar,
	"and":      KwAnd,
	"or":       KwOr,
	"not":      KwNot,
	"true":     KwTrue,
	"false":    KwFalse,
	"ptr":      KwPtr,
	"func":     KwFunc,
	"inline":   KwInline,
	"noinline": KwNoinline,
	"varfunc":  KwVarfunc,
	"track":    KwTrack,
	"pragma":   KwPragma,
}

// VartypeNames is consulted by the lexer after the keyword table: an
// identifier naming a known primitive type is classified Vartype so the
// parser can tell `i32` apart from an ordinary Name without backtracking.
var VartypeNames = map[string]bool{
	"bool": true, "u1": true,
	"i8": true, "i16": true, "i32": true, "i64": true,
	"u8": true, "u16": true, "u32": true, "u64": true,
	"f32": true, "f64": true,
	"byte": true, "ubyte": true,
	"array": true,
}

// EscapeMap is the fixed set of recognized backslash escapes inside
// string/char literals (§4.3 rule 2); `\xHH` is handled separately by
// the lexer since it consumes two further hex digits.
var EscapeMap = map[rune]byte{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
	'0':  0,
}

// Operators is the multi-character operator table, tried longest-match
// first by the lexer (§4.3 rule 7). Single-character operators that are
// also prefixes of a longer operator (e.g. "+" vs "+=") are included so
// a plain lookup-by-longest-prefix suffices.
var Operators = []string{
	"==", "!=", "<=", ">=", "+=", "-=",
	"&&", "||",
	"//",
	"<", ">", "+", "-", "*", "/", "=",
	"&", "|",
}

// Punctuators is the single-character punctuator set (§4.3 rule 5).
var Punctuators = map[rune]bool{
	'(': true, ')': true,
	'{': true, '}': true,
	'[': true, ']': true,
	',': true, ':': true, ';': true, '.': true,
}

// Token is one lexical unit produced by the Lexer.
type Token struct {
	Kind     Kind
	Value    string // textual or decoded literal
	Keyword  KeywordVariant
	TypeHint string // primitive type name inferred from a literal suffix, or ""
	Position position.Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Value, t.Position.Line, t.Position.Col)
}
