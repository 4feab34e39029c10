package parser

import (
	"math"
	"testing"

	"github.com/go-test/deep"

	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/lexer"
	"github.com/akilang/akic/pkg/token"
)

func mustTokenize(t *testing.T, src string) []token.Token {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	return toks
}

func mustParseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	e, err := ParseExpr(mustTokenize(t, src), src)
	if err != nil {
		t.Fatalf("ParseExpr(%q): %v", src, err)
	}
	return e
}

func mustParseProgram(t *testing.T, src string) []ast.TopLevel {
	t.Helper()
	tls, err := ParseSource(src)
	if err != nil {
		t.Fatalf("ParseSource(%q): %v", src, err)
	}
	return tls
}

func stripPos(n any) any {
	switch v := n.(type) {
	case *ast.Constant:
		return &ast.Constant{Value: v.Value, TypeName: v.TypeName}
	case *ast.Name:
		return &ast.Name{ID: v.ID, Initializer: stripPosExpr(v.Initializer), DeclaredType: v.DeclaredType}
	case *ast.BinOp:
		return &ast.BinOp{Op: v.Op, LHS: stripPosExpr(v.LHS), RHS: stripPosExpr(v.RHS)}
	case *ast.BinOpComparison:
		return &ast.BinOpComparison{Op: v.Op, LHS: stripPosExpr(v.LHS), RHS: stripPosExpr(v.RHS)}
	case *ast.UnOp:
		return &ast.UnOp{Op: v.Op, Operand: stripPosExpr(v.Operand)}
	case *ast.Call:
		args := make([]ast.Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = stripPosExpr(a)
		}
		return &ast.Call{Name: v.Name, Args: args}
	case *ast.Assignment:
		return &ast.Assignment{Op: v.Op, Target: stripPosExpr(v.Target), Value: stripPosExpr(v.Value)}
	case *ast.IfExpr:
		return &ast.IfExpr{Cond: stripPosExpr(v.Cond), Then: stripPosExpr(v.Then), Else: stripPosExpr(v.Else)}
	}
	return n
}

func stripPosExpr(e ast.Expr) ast.Expr {
	if e == nil {
		return nil
	}
	return stripPos(e).(ast.Expr)
}

func TestPrecedenceScenario2(t *testing.T) {
	// spec.md §8 scenario 2: 2+3*4-9 -> BinOp(-, BinOp(+, 2, BinOp(*,3,4)), 9)
	got := mustParseExpr(t, "2+3*4-9")
	want := &ast.BinOp{
		Op: "-",
		LHS: &ast.BinOp{
			Op:  "+",
			LHS: &ast.Constant{Value: 2, TypeName: "i32"},
			RHS: &ast.BinOp{
				Op:  "*",
				LHS: &ast.Constant{Value: 3, TypeName: "i32"},
				RHS: &ast.Constant{Value: 4, TypeName: "i32"},
			},
		},
		RHS: &ast.Constant{Value: 9, TypeName: "i32"},
	}
	if diff := deep.Equal(stripPosExpr(got), want); diff != nil {
		t.Errorf("mismatch: %v\ngot: %#v", diff, got)
	}
}

func TestPrecedenceScenario3FloatExpression(t *testing.T) {
	// spec.md §8 scenario 3: 2.*(3.-4.)*7. -> BinOp(*, BinOp(*,2.,BinOp(-,3.,4.)),7.)
	got := mustParseExpr(t, "2.*(3.-4.)*7.")
	f := func(v float64) uint64 { return math.Float64bits(v) }
	want := &ast.BinOp{
		Op: "*",
		LHS: &ast.BinOp{
			Op:  "*",
			LHS: &ast.Constant{Value: f(2), TypeName: "f64"},
			RHS: &ast.BinOp{
				Op:  "-",
				LHS: &ast.Constant{Value: f(3), TypeName: "f64"},
				RHS: &ast.Constant{Value: f(4), TypeName: "f64"},
			},
		},
		RHS: &ast.Constant{Value: f(7), TypeName: "f64"},
	}
	if diff := deep.Equal(stripPosExpr(got), want); diff != nil {
		t.Errorf("mismatch: %v\ngot: %#v", diff, got)
	}
}

func TestRightAssocAssignment(t *testing.T) {
	// spec.md §8's invariant: parse("x = y = v") -> Assignment(x, Assignment(y, v))
	got := mustParseExpr(t, "x = y = 10 + 5")
	want := &ast.Assignment{
		Op:     "=",
		Target: &ast.Name{ID: "x"},
		Value: &ast.Assignment{
			Op:     "=",
			Target: &ast.Name{ID: "y"},
			Value: &ast.BinOp{
				Op:  "+",
				LHS: &ast.Constant{Value: 10, TypeName: "i32"},
				RHS: &ast.Constant{Value: 5, TypeName: "i32"},
			},
		},
	}
	if diff := deep.Equal(stripPosExpr(got), want); diff != nil {
		t.Errorf("mismatch: %v\ngot: %#v", diff, got)
	}
}

func TestCompoundAssignDesugars(t *testing.T) {
	got := mustParseExpr(t, "n += 1")
	want := &ast.Assignment{
		Op:     "=",
		Target: &ast.Name{ID: "n"},
		Value: &ast.BinOp{
			Op:  "+",
			LHS: &ast.Name{ID: "n"},
			RHS: &ast.Constant{Value: 1, TypeName: "i32"},
		},
	}
	if diff := deep.Equal(stripPosExpr(got), want); diff != nil {
		t.Errorf("mismatch: %v\ngot: %#v", diff, got)
	}
}

func TestUnaryBindsTighterThanBinary(t *testing.T) {
	// Per the explicit tie-break: unary `-` binds tighter than any binary
	// operator, so `-a*b` is `(-a)*b`, not `-(a*b)`.
	got := mustParseExpr(t, "-a*b")
	want := &ast.BinOp{
		Op:  "*",
		LHS: &ast.UnOp{Op: "-", Operand: &ast.Name{ID: "a"}},
		RHS: &ast.Name{ID: "b"},
	}
	if diff := deep.Equal(stripPosExpr(got), want); diff != nil {
		t.Errorf("mismatch: %v\ngot: %#v", diff, got)
	}
}

func TestLogicalAndLooserThanOr(t *testing.T) {
	// §4.4's stated order is AND looser than OR: `a and b or c` is
	// `BinOp(and, a, BinOp(or, b, c))`.
	got := mustParseExpr(t, "a and b or c")
	want := &ast.BinOp{
		Op:  "and",
		LHS: &ast.Name{ID: "a"},
		RHS: &ast.BinOp{Op: "or", LHS: &ast.Name{ID: "b"}, RHS: &ast.Name{ID: "c"}},
	}
	if diff := deep.Equal(stripPosExpr(got), want); diff != nil {
		t.Errorf("mismatch: %v\ngot: %#v", diff, got)
	}
}

func TestCallExpression(t *testing.T) {
	// spec.md §8 scenario 5 expression fragment: `1 + bar(x)`.
	got := mustParseExpr(t, "1 + bar(x)")
	want := &ast.BinOp{
		Op:  "+",
		LHS: &ast.Constant{Value: 1, TypeName: "i32"},
		RHS: &ast.Call{Name: "bar", Args: []ast.Expr{&ast.Name{ID: "x"}}},
	}
	if diff := deep.Equal(stripPosExpr(got), want); diff != nil {
		t.Errorf("mismatch: %v\ngot: %#v", diff, got)
	}
}

func TestExternalPrototype(t *testing.T) {
	// spec.md §8 scenario 4: extern sin(arg) -> External(Prototype("sin", [Argument("arg", i32)], i32))
	tls := mustParseProgram(t, "extern sin(arg)")
	if len(tls) != 1 {
		t.Fatalf("got %d top-levels, want 1", len(tls))
	}
	ext, ok := tls[0].(*ast.External)
	if !ok {
		t.Fatalf("got %T, want *ast.External", tls[0])
	}
	if ext.Proto.Name != "sin" {
		t.Errorf("Proto.Name = %q, want sin", ext.Proto.Name)
	}
	if len(ext.Proto.Args) != 1 || ext.Proto.Args[0].Name != "arg" {
		t.Fatalf("Proto.Args = %+v", ext.Proto.Args)
	}
	argType, ok := ext.Proto.Args[0].DeclaredType.(*ast.VarTypeName)
	if !ok || argType.ID != "i32" {
		t.Errorf("arg DeclaredType = %+v, want i32", ext.Proto.Args[0].DeclaredType)
	}
	retType, ok := ext.Proto.ReturnType.(*ast.VarTypeName)
	if !ok || retType.ID != "i32" {
		t.Errorf("ReturnType = %+v, want i32", ext.Proto.ReturnType)
	}
}

func TestFunctionDefinition(t *testing.T) {
	// spec.md §8 scenario 5: def foo(x) 1 + bar(x)
	tls := mustParseProgram(t, "def foo(x) 1 + bar(x)")
	fn, ok := tls[0].(*ast.Function)
	if !ok {
		t.Fatalf("got %T, want *ast.Function", tls[0])
	}
	if fn.Proto.Name != "foo" {
		t.Errorf("Proto.Name = %q", fn.Proto.Name)
	}
	want := &ast.BinOp{
		Op:  "+",
		LHS: &ast.Constant{Value: 1, TypeName: "i32"},
		RHS: &ast.Call{Name: "bar", Args: []ast.Expr{&ast.Name{ID: "x"}}},
	}
	if diff := deep.Equal(stripPosExpr(fn.Body), want); diff != nil {
		t.Errorf("body mismatch: %v", diff)
	}
}

func TestTypedArgAndMangledCallScenario(t *testing.T) {
	// spec.md §8 scenario 7: def inc(n: i64) n+1 \n inc(5I)
	tls := mustParseProgram(t, "def inc(n: i64) n+1\ninc(5I)")
	if len(tls) != 2 {
		t.Fatalf("got %d top-levels, want 2", len(tls))
	}
	fn := tls[0].(*ast.Function)
	argType := fn.Proto.Args[0].DeclaredType.(*ast.VarTypeName)
	if argType.ID != "i64" {
		t.Errorf("arg type = %q, want i64", argType.ID)
	}
	topExpr := tls[1].(*ast.ExprTopLevel)
	call := topExpr.Expr.(*ast.Call)
	if call.Name != "inc" {
		t.Errorf("call name = %q", call.Name)
	}
	arg := call.Args[0].(*ast.Constant)
	if arg.TypeName != "i64" {
		t.Errorf("call arg type hint = %q, want i64", arg.TypeName)
	}
}

func TestIfRequiresElse(t *testing.T) {
	got := mustParseExpr(t, "if a b else c")
	want := &ast.IfExpr{Cond: &ast.Name{ID: "a"}, Then: &ast.Name{ID: "b"}, Else: &ast.Name{ID: "c"}}
	if diff := deep.Equal(stripPosExpr(got), want); diff != nil {
		t.Errorf("mismatch: %v", diff)
	}
}

func TestIfWithoutElseIsSyntaxError(t *testing.T) {
	_, err := ParseExpr(mustTokenize(t, "if a b"), "if a b")
	if err == nil {
		t.Fatalf("expected error: if requires an else branch")
	}
}

func TestWhenWithoutElseHasNilElse(t *testing.T) {
	got := mustParseExpr(t, "when a b")
	when, ok := got.(*ast.WhenExpr)
	if !ok {
		t.Fatalf("got %T, want *ast.WhenExpr", got)
	}
	if when.Else != nil {
		t.Errorf("Else = %+v, want nil", when.Else)
	}
}

func TestBlockExpression(t *testing.T) {
	got := mustParseExpr(t, "{ 1; 2; 3 }")
	block, ok := got.(*ast.ExpressionBlock)
	if !ok {
		t.Fatalf("got %T, want *ast.ExpressionBlock", got)
	}
	if len(block.Exprs) != 3 {
		t.Fatalf("got %d exprs, want 3", len(block.Exprs))
	}
}

func TestVarExpression(t *testing.T) {
	got := mustParseExpr(t, "var a, b: i64 = 2")
	vl, ok := got.(*ast.VarList)
	if !ok {
		t.Fatalf("got %T, want *ast.VarList", got)
	}
	if len(vl.Names) != 2 {
		t.Fatalf("got %d names, want 2", len(vl.Names))
	}
	if vl.Names[0].ID != "a" || vl.Names[1].ID != "b" {
		t.Errorf("names = %+v", vl.Names)
	}
	bType, ok := vl.Names[1].DeclaredType.(*ast.VarTypeName)
	if !ok || bType.ID != "i64" {
		t.Errorf("b's declared type = %+v, want i64", vl.Names[1].DeclaredType)
	}
	if vl.Names[1].Initializer == nil {
		t.Errorf("b's initializer should be set")
	}
}

func TestLoopWithHeader(t *testing.T) {
	got := mustParseExpr(t, "loop (var x = 0, x < 10, x += 1) x")
	loop, ok := got.(*ast.LoopExpr)
	if !ok {
		t.Fatalf("got %T, want *ast.LoopExpr", got)
	}
	if loop.Init == nil || loop.Cond == nil || loop.Step == nil {
		t.Fatalf("expected full loop header, got %+v", loop)
	}
	if _, ok := loop.Init.(*ast.VarList); !ok {
		t.Errorf("Init = %T, want *ast.VarList", loop.Init)
	}
}

func TestInfiniteLoop(t *testing.T) {
	got := mustParseExpr(t, "loop { break }")
	loop, ok := got.(*ast.LoopExpr)
	if !ok {
		t.Fatalf("got %T, want *ast.LoopExpr", got)
	}
	if loop.Init != nil || loop.Cond != nil || loop.Step != nil {
		t.Errorf("expected nil header, got %+v", loop)
	}
	block := loop.Body.(*ast.ExpressionBlock)
	if _, ok := block.Exprs[0].(*ast.Break); !ok {
		t.Errorf("body[0] = %T, want *ast.Break", block.Exprs[0])
	}
}

func TestWithExpression(t *testing.T) {
	got := mustParseExpr(t, "with var a = 1, b = 2 a + b")
	with, ok := got.(*ast.WithExpr)
	if !ok {
		t.Fatalf("got %T, want *ast.WithExpr", got)
	}
	if len(with.Vars) != 2 {
		t.Fatalf("got %d vars, want 2", len(with.Vars))
	}
}

func TestChainExpression(t *testing.T) {
	got := mustParseExpr(t, "a.b.c")
	chain, ok := got.(*ast.ChainExpr)
	if !ok {
		t.Fatalf("got %T, want *ast.ChainExpr", got)
	}
	if len(chain.Exprs) != 3 {
		t.Fatalf("got %d segments, want 3", len(chain.Exprs))
	}
}

func TestBareExpressionScenario1(t *testing.T) {
	// spec.md §8 scenario 1: `2` -> Constant(2, i32), lifted by the driver.
	tls := mustParseProgram(t, "2")
	top := tls[0].(*ast.ExprTopLevel)
	c := top.Expr.(*ast.Constant)
	if c.Value != 2 || c.TypeName != "i32" {
		t.Errorf("got %+v, want Constant(2, i32)", c)
	}
}

func TestPtrPrefixTakesReference(t *testing.T) {
	got := mustParseExpr(t, "ptr x")
	ref, ok := got.(*ast.RefExpr)
	if !ok {
		t.Fatalf("got %T, want *ast.RefExpr", got)
	}
	if name, ok := ref.Operand.(*ast.Name); !ok || name.ID != "x" {
		t.Errorf("Operand = %+v", ref.Operand)
	}
}
