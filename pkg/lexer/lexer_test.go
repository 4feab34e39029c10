package lexer

import (
	"testing"

	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/token"
)

func TestTokenizeBasicOperators(t *testing.T) {
	toks, err := Tokenize("+ - * / // == != <= >= += -= && || < > =")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"+", "-", "*", "/", "//", "==", "!=", "<=", ">=", "+=", "-=", "&&", "||", "<", ">", "="}
	if len(toks)-1 != len(want) { // -1 for EOF
		t.Fatalf("got %d tokens, want %d (+EOF)", len(toks), len(want)+1)
	}
	for i, w := range want {
		if toks[i].Kind != token.Operator || toks[i].Value != w {
			t.Errorf("token %d = %v, want Operator(%q)", i, toks[i], w)
		}
	}
	if toks[len(toks)-1].Kind != token.EOF {
		t.Fatalf("last token should be EOF, got %v", toks[len(toks)-1])
	}
}

func TestTokenizeKeywordsAndNames(t *testing.T) {
	toks, err := Tokenize("def extern if else when loop break with var foo _bar2")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	wantKeyword := []token.KeywordVariant{
		token.KwDef, token.KwExtern, token.KwIf, token.KwElse, token.KwWhen,
		token.KwLoop, token.KwBreak, token.KwWith, token.KwVar,
	}
	for i, kw := range wantKeyword {
		if toks[i].Kind != token.Keyword || toks[i].Keyword != kw {
			t.Errorf("token %d = %v, want keyword %v", i, toks[i], kw)
		}
	}
	if toks[9].Kind != token.Name || toks[9].Value != "foo" {
		t.Errorf("token 9 = %v, want Name(foo)", toks[9])
	}
	if toks[10].Kind != token.Name || toks[10].Value != "_bar2" {
		t.Errorf("token 10 = %v, want Name(_bar2)", toks[10])
	}
}

func TestTokenizeVartype(t *testing.T) {
	toks, err := Tokenize("i32 f64 bool byte")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	for i, name := range []string{"i32", "f64", "bool", "byte"} {
		if toks[i].Kind != token.Vartype || toks[i].Value != name {
			t.Errorf("token %d = %v, want Vartype(%s)", i, toks[i], name)
		}
	}
}

func TestNumberLiterals(t *testing.T) {
	cases := []struct {
		src      string
		wantKind token.Kind
		wantVal  string
		wantHint string
	}{
		{"2", token.Integer, "2", "i32"},
		{"2I", token.Integer, "2", "i64"},
		{"2i", token.Integer, "2", "i32"},
		{"2U", token.Integer, "2", "u64"},
		{"2u", token.Integer, "2", "u32"},
		{"2B", token.Integer, "2", "byte"},
		{"1b", token.Integer, "1", "bool"},
		{"3.14", token.Float, "3.14", "f64"},
		{"3.14f", token.Float, "3.14", "f32"},
		{"2.", token.Float, "2.", "f64"},
		{"1_000", token.Integer, "1000", "i32"},
	}
	for _, c := range cases {
		toks, err := Tokenize(c.src)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", c.src, err)
		}
		if len(toks) != 2 {
			t.Fatalf("Tokenize(%q) produced %d tokens, want 1+EOF", c.src, len(toks))
		}
		tok := toks[0]
		if tok.Kind != c.wantKind || tok.Value != c.wantVal || tok.TypeHint != c.wantHint {
			t.Errorf("Tokenize(%q) = %+v, want kind=%v val=%q hint=%q", c.src, tok, c.wantKind, c.wantVal, c.wantHint)
		}
	}
}

func TestFloatExpressionScenario(t *testing.T) {
	// Scenario 3 from spec.md §8: `2.*(3.-4.)*7.`
	toks, err := Tokenize("2.*(3.-4.)*7.")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	wantVals := []string{"2.", "*", "(", "3.", "-", "4.", ")", "*", "7."}
	if len(toks)-1 != len(wantVals) {
		t.Fatalf("got %d tokens (excl EOF), want %d: %v", len(toks)-1, len(wantVals), toks)
	}
	for i, v := range wantVals {
		if toks[i].Value != v {
			t.Errorf("token %d = %q, want %q", i, toks[i].Value, v)
		}
	}
}

func TestHexLiterals(t *testing.T) {
	cases := []struct {
		src      string
		wantHint string
	}{
		{"0x0", "bool"},
		{"0x1", "bool"},
		{"0xFF", "u8"},
		{"0xFFFF", "u16"},
		{"0xFFFFFFFF", "u32"},
		{"0hFF", "i8"},
	}
	for _, c := range cases {
		toks, err := Tokenize(c.src)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", c.src, err)
		}
		if toks[0].Kind != token.Hex {
			t.Fatalf("Tokenize(%q) kind = %v, want Hex", c.src, toks[0].Kind)
		}
		if toks[0].TypeHint != c.wantHint {
			t.Errorf("Tokenize(%q) hint = %q, want %q", c.src, toks[0].TypeHint, c.wantHint)
		}
	}
}

func TestStringLiteralsAndEscapes(t *testing.T) {
	toks, err := Tokenize(`"a\nb" 'c\x41d'`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if toks[0].Kind != token.String || toks[0].Value != "a\nb" {
		t.Errorf("token 0 = %+v, want String(a\\nb)", toks[0])
	}
	if toks[1].Kind != token.String || toks[1].Value != "cAd" {
		t.Errorf("token 1 = %+v, want String(cAd)", toks[1])
	}
}

func TestUnterminatedStringIsSyntaxError(t *testing.T) {
	_, err := Tokenize(`"abc`)
	if err == nil {
		t.Fatalf("expected error for unterminated string")
	}
	se, ok := err.(*errs.SyntaxError)
	if !ok {
		t.Fatalf("expected *errs.SyntaxError, got %T", err)
	}
	if se.Pos.Col != 1 {
		t.Errorf("error should point at opening quote (col 1), got col %d", se.Pos.Col)
	}
}

func TestUnknownEscapeIsSyntaxError(t *testing.T) {
	_, err := Tokenize(`"a\qb"`)
	if err == nil {
		t.Fatalf("expected error for unknown escape")
	}
}

func TestLineCommentSkipped(t *testing.T) {
	toks, err := Tokenize("1 # comment\n2")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(toks) != 3 || toks[0].Value != "1" || toks[1].Value != "2" {
		t.Fatalf("got %v", toks)
	}
	if toks[1].Position.Line != 2 {
		t.Errorf("second literal should be on line 2, got line %d", toks[1].Position.Line)
	}
}

func TestUnexpectedCharacterIsSyntaxError(t *testing.T) {
	_, err := Tokenize("1 @ 2")
	if err == nil {
		t.Fatalf("expected error for '@'")
	}
}
