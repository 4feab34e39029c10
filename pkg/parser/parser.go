// Package parser implements the recursive-descent, precedence-climbing
// grammar of §4.4: tokens to AST, in one pass.
package parser

import (
	"fmt"
	"math"
	"strconv"

	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/lexer"
	"github.com/akilang/akic/pkg/position"
	"github.com/akilang/akic/pkg/token"
)

// Parser holds the mutable state of a single parse over a token slice.
type Parser struct {
	toks []token.Token
	idx  int
	src  string
}

// New constructs a Parser over a complete token stream (already
// terminated by an EOF token) and the raw source it was lexed from, so
// errors can render an excerpt.
func New(toks []token.Token, src string) *Parser {
	return &Parser{toks: toks, src: src}
}

// Parse lexes nothing itself; it is the Tokenize -> Parse half of the
// driver pipeline described in §6.
func Parse(toks []token.Token, src string) ([]ast.TopLevel, error) {
	p := New(toks, src)
	var out []ast.TopLevel
	for !p.atEOF() {
		tl, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		out = append(out, tl)
	}
	return out, nil
}

// ParseExpr parses a single top-level expression, the "bare expression"
// production used by the REPL/anonymous-lifting external collaborator
// (§4.4, §9) — it is exposed here because the grammar rule for it is
// part of the parser, even though synthesizing the surrounding
// anonymous function is the driver's job.
func ParseExpr(toks []token.Token, src string) (ast.Expr, error) {
	p := New(toks, src)
	return p.parseExpression()
}

// ParseSource lexes and parses src in one step; it is the convenience
// entry point pkg/compiler's driver calls (§6).
func ParseSource(src string) ([]ast.TopLevel, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(toks, src)
}

func (p *Parser) peek() token.Token { return p.toks[p.idx] }

func (p *Parser) peekAt(offset int) token.Token {
	i := p.idx + offset
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *Parser) atEOF() bool { return p.peek().Kind == token.EOF }

func (p *Parser) advance() token.Token {
	t := p.toks[p.idx]
	if p.idx < len(p.toks)-1 {
		p.idx++
	}
	return t
}

func (p *Parser) fail(tok token.Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &errs.SyntaxError{Msg: msg, Pos: tok.Position}
}

func (p *Parser) unrecognized(tok token.Token) error {
	return &errs.SyntaxError{Msg: "Unrecognized syntax", Pos: tok.Position}
}

func (p *Parser) isOperator(val string) bool {
	t := p.peek()
	return t.Kind == token.Operator && t.Value == val
}

func (p *Parser) isPunct(val string) bool {
	t := p.peek()
	return t.Kind == token.Punctuator && t.Value == val
}

func (p *Parser) isKeyword(kw token.KeywordVariant) bool {
	t := p.peek()
	return t.Kind == token.Keyword && t.Keyword == kw
}

func (p *Parser) expectPunct(val string) (token.Token, error) {
	if !p.isPunct(val) {
		return token.Token{}, p.fail(p.peek(), "expected %q, got %v", val, p.peek())
	}
	return p.advance(), nil
}

func (p *Parser) expectOperator(val string) (token.Token, error) {
	if !p.isOperator(val) {
		return token.Token{}, p.fail(p.peek(), "expected %q, got %v", val, p.peek())
	}
	return p.advance(), nil
}

func (p *Parser) expectKeyword(kw token.KeywordVariant) (token.Token, error) {
	if !p.isKeyword(kw) {
		return token.Token{}, p.fail(p.peek(), "expected keyword, got %v", p.peek())
	}
	return p.advance(), nil
}

func (p *Parser) expectName() (token.Token, error) {
	if p.peek().Kind != token.Name {
		return token.Token{}, p.fail(p.peek(), "expected identifier, got %v", p.peek())
	}
	return p.advance(), nil
}

// ---- top level ----

var decoratorKeywords = map[token.KeywordVariant]string{
	token.KwInline:   "inline",
	token.KwNoinline: "noinline",
	token.KwVarfunc:  "varfunc",
	token.KwTrack:    "track",
}

func (p *Parser) parseTopLevel() (ast.TopLevel, error) {
	tok := p.peek()
	switch {
	case tok.Kind == token.Keyword && tok.Keyword == token.KwDef:
		return p.parseFunction()
	case tok.Kind == token.Keyword && tok.Keyword == token.KwExtern:
		return p.parseExternal()
	case tok.Kind == token.Keyword && tok.Keyword == token.KwPragma:
		return p.parsePragma()
	case tok.Kind == token.Keyword && decoratorKeywords[tok.Keyword] != "":
		return p.parseDecorator()
	default:
		pos := tok.Position
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.consumeStatementSeparators()
		return &ast.ExprTopLevel{Base: ast.NewBase(pos), Expr: expr}, nil
	}
}

func (p *Parser) consumeStatementSeparators() {
	for p.isPunct(";") {
		p.advance()
	}
}

func (p *Parser) parsePrototype() (*ast.Prototype, error) {
	nameTok, err := p.expectName()
	if err != nil {
		return nil, err
	}
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	retType, err := p.parseOptionalReturnType()
	if err != nil {
		return nil, err
	}
	return &ast.Prototype{
		Base:       ast.NewBase(nameTok.Position),
		Name:       nameTok.Value,
		Args:       args,
		ReturnType: retType,
	}, nil
}

func (p *Parser) parseArgList() ([]*ast.Argument, error) {
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []*ast.Argument
	for !p.isPunct(")") {
		if len(args) > 0 {
			if _, err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseArgument()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseArgument() (*ast.Argument, error) {
	nameTok, err := p.expectName()
	if err != nil {
		return nil, err
	}
	declType, err := p.parseOptionalColonType(defaultArgType(nameTok.Position))
	if err != nil {
		return nil, err
	}
	var def ast.Expr
	if p.isOperator("=") {
		p.advance()
		def, err = p.parseLogicalOr()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Argument{
		Base:         ast.NewBase(nameTok.Position),
		Name:         nameTok.Value,
		DeclaredType: declType,
		Default:      def,
	}, nil
}

// defaultArgType is the implicit i32 type assigned to an argument or
// return type with no `: T` annotation (spec.md §8 scenarios 4-5).
func defaultArgType(pos position.Position) ast.VarType {
	return &ast.VarTypeName{Base: ast.NewBase(pos), ID: "i32"}
}

func (p *Parser) parseOptionalReturnType() (ast.VarType, error) {
	pos := p.peek().Position
	if !p.isPunct(":") {
		return defaultArgType(pos), nil
	}
	return p.parseOptionalColonType(defaultArgType(pos))
}

func (p *Parser) parseOptionalColonType(dflt ast.VarType) (ast.VarType, error) {
	if !p.isPunct(":") {
		return dflt, nil
	}
	p.advance()
	return p.parseVarType()
}

// parseVarType implements "Type syntax" (§4.4): `NAME`, optionally
// pointer-prefixed stars, or `func(T, ...) R`.
func (p *Parser) parseVarType() (ast.VarType, error) {
	pos := p.peek().Position
	stars := 0
	for p.isOperator("*") {
		p.advance()
		stars++
	}
	var inner ast.VarType
	switch {
	case p.isKeyword(token.KwFunc):
		p.advance()
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var params []ast.VarType
		for !p.isPunct(")") {
			if len(params) > 0 {
				if _, err := p.expectPunct(","); err != nil {
					return nil, err
				}
			}
			pt, err := p.parseVarType()
			if err != nil {
				return nil, err
			}
			params = append(params, pt)
		}
		p.advance() // ')'
		ret, err := p.parseVarType()
		if err != nil {
			return nil, err
		}
		inner = &ast.VarTypeFunc{Base: ast.NewBase(pos), Params: params, Ret: ret}
	case p.peek().Kind == token.Vartype || p.peek().Kind == token.Name:
		nameTok := p.advance()
		inner = &ast.VarTypeName{Base: ast.NewBase(pos), ID: nameTok.Value}
	default:
		return nil, p.fail(p.peek(), "expected a type, got %v", p.peek())
	}
	for i := 0; i < stars; i++ {
		inner = &ast.VarTypePtr{Base: ast.NewBase(pos), Inner: inner}
	}
	return inner, nil
}

func (p *Parser) parseFunction() (ast.TopLevel, error) {
	defTok, err := p.expectKeyword(token.KwDef)
	if err != nil {
		return nil, err
	}
	proto, err := p.parsePrototype()
	if err != nil {
		return nil, err
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.consumeStatementSeparators()
	return &ast.Function{Base: ast.NewBase(defTok.Position), Proto: proto, Body: body}, nil
}

func (p *Parser) parseExternal() (ast.TopLevel, error) {
	externTok, err := p.expectKeyword(token.KwExtern)
	if err != nil {
		return nil, err
	}
	proto, err := p.parsePrototype()
	if err != nil {
		return nil, err
	}
	p.consumeStatementSeparators()
	return &ast.External{Base: ast.NewBase(externTok.Position), Proto: proto}, nil
}

// Pragma and Decorator are top-level plumbing nodes that give codegen's
// decorator stack and pragma table (§4.6) something to consume; they
// live here rather than in pkg/ast's core node set because spec.md §3
// enumerates only the value/control/declaration nodes. ast.TopLevel's
// marker method is unexported, so each node embeds ast.ExprTopLevel
// only for its promoted marker method; the embedded value is unused.
type pragmaNode struct {
	ast.ExprTopLevel
	pos   position.Position
	Name  string
	Value ast.Expr
}

func (n *pragmaNode) Pos() position.Position { return n.pos }

// Pragma exposes the parsed pragma to codegen.
type Pragma = pragmaNode

type decoratorNode struct {
	ast.ExprTopLevel
	pos   position.Position
	Names []string
	Body  []ast.TopLevel
}

func (n *decoratorNode) Pos() position.Position { return n.pos }

// Decorator exposes the parsed decorator block to codegen.
type Decorator = decoratorNode

func (p *Parser) parsePragma() (ast.TopLevel, error) {
	tok, err := p.expectKeyword(token.KwPragma)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOperator("="); err != nil {
		return nil, err
	}
	val, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	p.consumeStatementSeparators()
	return &pragmaNode{pos: tok.Position, Name: nameTok.Value, Value: val}, nil
}

// ---- expressions ----
//
// The cascade mirrors the precedence table of §4.4, loosest to
// tightest: assignment (right-assoc) > logical-AND/bit-AND >
// logical-OR/bit-OR > equality-and-relational > additive > multiplicative
// > unary > postfix/primary. Unary is deliberately parsed tightest,
// above multiplicative, per the explicit tie-break that unary `-` binds
// tighter than any binary operator — overriding its looser position in
// the raw precedence table, which is an artifact of the original
// grammar's conflict resolution rather than a binding-order statement.

func (p *Parser) parseExpression() (ast.Expr, error) {
	return p.parseAssignment()
}

var compoundAssignOps = map[string]string{
	"+=": "+",
	"-=": "-",
}

func (p *Parser) parseAssignment() (ast.Expr, error) {
	if p.peek().Kind == token.Name {
		nameTok := p.peekAt(0)
		nextTok := p.peekAt(1)
		if nextTok.Kind == token.Operator {
			switch nextTok.Value {
			case "=":
				p.advance() // name
				p.advance() // '='
				value, err := p.parseAssignment()
				if err != nil {
					return nil, err
				}
				target := &ast.Name{Base: ast.NewBase(nameTok.Position), ID: nameTok.Value}
				return &ast.Assignment{Base: ast.NewBase(nameTok.Position), Op: "=", Target: target, Value: value}, nil
			case "+=", "-=":
				p.advance() // name
				opTok := p.advance() // '+=' / '-='
				value, err := p.parseAssignment()
				if err != nil {
					return nil, err
				}
				target := &ast.Name{Base: ast.NewBase(nameTok.Position), ID: nameTok.Value}
				desugared := &ast.BinOp{
					Base: ast.NewBase(nameTok.Position),
					Op:   compoundAssignOps[opTok.Value],
					LHS:  &ast.Name{Base: ast.NewBase(nameTok.Position), ID: nameTok.Value},
					RHS:  value,
				}
				return &ast.Assignment{Base: ast.NewBase(nameTok.Position), Op: "=", Target: target, Value: desugared}, nil
			}
		}
	}
	return p.parseLogicalAnd()
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword(token.KwAnd) || p.isOperator("&") {
		opTok := p.advance()
		op := "and"
		if opTok.Kind == token.Operator {
			op = "&"
		}
		right, err := p.parseLogicalOr()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Base: ast.NewBase(opTok.Position), Op: op, LHS: left, RHS: right}
	}
	return left, nil
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	left, err := p.parseEqualityRelational()
	if err != nil {
		return nil, err
	}
	for p.isKeyword(token.KwOr) || p.isOperator("|") {
		opTok := p.advance()
		op := "or"
		if opTok.Kind == token.Operator {
			op = "|"
		}
		right, err := p.parseEqualityRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Base: ast.NewBase(opTok.Position), Op: op, LHS: left, RHS: right}
	}
	return left, nil
}

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true, "<": true, ">": true,
}

func (p *Parser) parseEqualityRelational() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == token.Operator && comparisonOps[p.peek().Value] {
		opTok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOpComparison{Base: ast.NewBase(opTok.Position), Op: opTok.Value, LHS: left, RHS: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOperator("+") || p.isOperator("-") {
		opTok := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Base: ast.NewBase(opTok.Position), Op: opTok.Value, LHS: left, RHS: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOperator("*") || p.isOperator("/") || p.isOperator("//") {
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Base: ast.NewBase(opTok.Position), Op: opTok.Value, LHS: left, RHS: right}
	}
	return left, nil
}

// parseUnary binds `-` and `not` tighter than any binary operator (the
// explicit tie-break of §4.4), and also parses the `ptr` reference
// prefix at the same tightness.
func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.isOperator("-") {
		opTok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnOp{Base: ast.NewBase(opTok.Position), Op: "-", Operand: operand}, nil
	}
	if p.isKeyword(token.KwNot) {
		opTok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnOp{Base: ast.NewBase(opTok.Position), Op: "not", Operand: operand}, nil
	}
	if p.isKeyword(token.KwPtr) {
		opTok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.RefExpr{Base: ast.NewBase(opTok.Position), Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix folds a dotted chain `a.b.c` onto a primary expression
// into a single ChainExpr, left to right.
func (p *Parser) parsePostfix() (ast.Expr, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.isPunct(".") {
		return first, nil
	}
	pos := first.Pos()
	segs := []ast.Expr{first}
	for p.isPunct(".") {
		p.advance()
		seg, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return &ast.ChainExpr{Base: ast.NewBase(pos), Exprs: segs}, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.peek()
	switch {
	case tok.Kind == token.Integer || tok.Kind == token.Hex:
		p.advance()
		val, err := decodeIntLiteral(tok)
		if err != nil {
			return nil, err
		}
		return &ast.Constant{Base: ast.NewBase(tok.Position), Value: val, TypeName: tok.TypeHint}, nil
	case tok.Kind == token.Float:
		p.advance()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.fail(tok, "invalid float literal %q", tok.Value)
		}
		return &ast.Constant{Base: ast.NewBase(tok.Position), Value: math.Float64bits(f), TypeName: tok.TypeHint}, nil
	case tok.Kind == token.String:
		p.advance()
		return &ast.String{Base: ast.NewBase(tok.Position), Bytes: []byte(tok.Value)}, nil
	case tok.Kind == token.Keyword && tok.Keyword == token.KwTrue:
		p.advance()
		return &ast.Constant{Base: ast.NewBase(tok.Position), Value: 1, TypeName: "bool"}, nil
	case tok.Kind == token.Keyword && tok.Keyword == token.KwFalse:
		p.advance()
		return &ast.Constant{Base: ast.NewBase(tok.Position), Value: 0, TypeName: "bool"}, nil
	case tok.Kind == token.Keyword && tok.Keyword == token.KwVar:
		return p.parseVarExpr()
	case tok.Kind == token.Keyword && tok.Keyword == token.KwIf:
		return p.parseIfExpr()
	case tok.Kind == token.Keyword && tok.Keyword == token.KwWhen:
		return p.parseWhenExpr()
	case tok.Kind == token.Keyword && tok.Keyword == token.KwLoop:
		return p.parseLoopExpr()
	case tok.Kind == token.Keyword && tok.Keyword == token.KwBreak:
		p.advance()
		return &ast.Break{Base: ast.NewBase(tok.Position)}, nil
	case tok.Kind == token.Keyword && tok.Keyword == token.KwWith:
		return p.parseWithExpr()
	case p.isPunct("{"):
		return p.parseBlock()
	case p.isPunct("("):
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tok.Kind == token.Name:
		p.advance()
		if p.isPunct("(") {
			return p.parseCall(tok)
		}
		return &ast.Name{Base: ast.NewBase(tok.Position), ID: tok.Value}, nil
	case p.isPunct("["):
		return p.parseArrayLiteral()
	default:
		return nil, p.unrecognized(tok)
	}
}

// parseArrayLiteral parses a bracketed initializer list `[e1, e2, ...]`.
func (p *Parser) parseArrayLiteral() (ast.Expr, error) {
	openTok, err := p.expectPunct("[")
	if err != nil {
		return nil, err
	}
	var elems []ast.Expr
	for !p.isPunct("]") {
		if len(elems) > 0 {
			if _, err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return &ast.ArrayLiteral{Base: ast.NewBase(openTok.Position), Elems: elems}, nil
}

func (p *Parser) parseCall(nameTok token.Token) (ast.Expr, error) {
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for !p.isPunct(")") {
		if len(args) > 0 {
			if _, err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &ast.Call{Base: ast.NewBase(nameTok.Position), Name: nameTok.Value, Args: args}, nil
}

// decodeIntLiteral parses a decimal or hex literal's digit text into its
// bit pattern; hex text is already pre-validated by the lexer.
func decodeIntLiteral(tok token.Token) (uint64, error) {
	base := 10
	if tok.Kind == token.Hex {
		base = 16
	}
	v, err := strconv.ParseUint(tok.Value, base, 64)
	if err != nil {
		return 0, &errs.SyntaxError{Msg: fmt.Sprintf("invalid integer literal %q", tok.Value), Pos: tok.Position}
	}
	return v, nil
}

func (p *Parser) parseBlock() (ast.Expr, error) {
	openTok, err := p.expectPunct("{")
	if err != nil {
		return nil, err
	}
	var exprs []ast.Expr
	for !p.isPunct("}") {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		p.consumeStatementSeparators()
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return &ast.ExpressionBlock{Base: ast.NewBase(openTok.Position), Exprs: exprs}, nil
}

// parseVarBindingElement parses one `NAME [: type] [= init]` binding,
// shared by `var` expressions and a `loop` header's declaring init
// clause.
func (p *Parser) parseVarBindingElement() (*ast.Name, error) {
	nameTok, err := p.expectName()
	if err != nil {
		return nil, err
	}
	declType, err := p.parseOptionalColonType(nil)
	if err != nil {
		return nil, err
	}
	var init ast.Expr
	if p.isOperator("=") {
		p.advance()
		init, err = p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Name{Base: ast.NewBase(nameTok.Position), ID: nameTok.Value, Initializer: init, DeclaredType: declType}, nil
}

func (p *Parser) parseVarExpr() (ast.Expr, error) {
	tok, err := p.expectKeyword(token.KwVar)
	if err != nil {
		return nil, err
	}
	var names []*ast.Name
	for {
		n, err := p.parseVarBindingElement()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	return &ast.VarList{Base: ast.NewBase(tok.Position), Names: names}, nil
}

func (p *Parser) parseIfExpr() (ast.Expr, error) {
	tok, err := p.expectKeyword(token.KwIf)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword(token.KwElse); err != nil {
		return nil, p.fail(p.peek(), "if requires an else branch")
	}
	elseExpr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.IfExpr{Base: ast.NewBase(tok.Position), Cond: cond, Then: then, Else: elseExpr}, nil
}

func (p *Parser) parseWhenExpr() (ast.Expr, error) {
	tok, err := p.expectKeyword(token.KwWhen)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	var elseExpr ast.Expr
	if p.isKeyword(token.KwElse) {
		p.advance()
		elseExpr, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	return &ast.WhenExpr{Base: ast.NewBase(tok.Position), Cond: cond, Then: then, Else: elseExpr}, nil
}

// parseLoopExpr implements `loop (init, cond, step) body`, `loop () body`,
// and `loop body` (the two headerless forms are infinite loops). The
// init clause is either a `var NAME [:type] [= expr]` declaration or a
// plain `NAME = expr` reuse of an outer binding.
func (p *Parser) parseLoopExpr() (ast.Expr, error) {
	tok, err := p.expectKeyword(token.KwLoop)
	if err != nil {
		return nil, err
	}
	var initExpr, cond, step ast.Expr
	if p.isPunct("(") {
		p.advance()
		if !p.isPunct(")") {
			initExpr, err = p.parseLoopInit()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(","); err != nil {
				return nil, err
			}
			cond, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(","); err != nil {
				return nil, err
			}
			step, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.LoopExpr{Base: ast.NewBase(tok.Position), Init: initExpr, Cond: cond, Step: step, Body: body}, nil
}

func (p *Parser) parseLoopInit() (ast.Expr, error) {
	if p.isKeyword(token.KwVar) {
		varTok := p.advance()
		n, err := p.parseVarBindingElement()
		if err != nil {
			return nil, err
		}
		return &ast.VarList{Base: ast.NewBase(varTok.Position), Names: []*ast.Name{n}}, nil
	}
	return p.parseAssignment()
}

// parseWithExpr implements `with var NAME [:type] [= init] (, …) body`:
// the bindings are a `var`-led list, per the original grammar's
// `with_expr: WITH varlist expr_block` where `varlist` itself starts
// with VAR.
func (p *Parser) parseWithExpr() (ast.Expr, error) {
	tok, err := p.expectKeyword(token.KwWith)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword(token.KwVar); err != nil {
		return nil, err
	}
	var names []*ast.Name
	for {
		n, err := p.parseVarBindingElement()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.WithExpr{Base: ast.NewBase(tok.Position), Vars: names, Body: body}, nil
}

func (p *Parser) parseDecorator() (ast.TopLevel, error) {
	tok := p.advance()
	names := []string{decoratorKeywords[tok.Keyword]}
	for decoratorKeywords[p.peek().Keyword] != "" && p.peek().Kind == token.Keyword {
		names = append(names, decoratorKeywords[p.peek().Keyword])
		p.advance()
	}
	if p.isPunct("{") {
		p.advance()
		var body []ast.TopLevel
		for !p.isPunct("}") {
			tl, err := p.parseTopLevel()
			if err != nil {
				return nil, err
			}
			body = append(body, tl)
		}
		p.advance() // '}'
		return &decoratorNode{pos: tok.Position, Names: names, Body: body}, nil
	}
	tl, err := p.parseTopLevel()
	if err != nil {
		return nil, err
	}
	return &decoratorNode{pos: tok.Position, Names: names, Body: []ast.TopLevel{tl}}, nil
}
