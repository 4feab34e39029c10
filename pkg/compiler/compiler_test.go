package compiler

import (
	"strings"
	"testing"

	"github.com/akilang/akic/pkg/errs"
)

func TestCompileSimpleFunction(t *testing.T) {
	src := `def add(a: i32, b: i32): i32 { a + b }`

	m, err := Compile(src, Options{ModuleName: "simple_add"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	defer m.Dispose()

	ir := m.LLVM.String()
	if !strings.Contains(ir, "add$i32_i32") {
		t.Fatalf("expected mangled symbol add$i32_i32 in emitted IR, got:\n%s", ir)
	}
	if len(m.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", m.Warnings)
	}
}

func TestCompileIfExpressionJoins(t *testing.T) {
	src := `def pick(a: i32): i32 { if a > 0 { a } else { 0 - a } }`

	m, err := Compile(src, Options{ModuleName: "pick"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	defer m.Dispose()

	ir := m.LLVM.String()
	for _, want := range []string{"ifjoin", "phi"} {
		if !strings.Contains(ir, want) {
			t.Errorf("expected %q in emitted IR, got:\n%s", want, ir)
		}
	}
}

func TestCompileLoopWithBreak(t *testing.T) {
	src := `def count_to(n: i32): i32 {
		var total: i32 = 0
		loop (var i: i32 = 0, i < n, i = i + 1) {
			when i == 5 { break }
			total = total + i
		}
		total
	}`

	m, err := Compile(src, Options{ModuleName: "count_to"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	defer m.Dispose()

	ir := m.LLVM.String()
	for _, want := range []string{"loopheader", "loopbody", "loopafter"} {
		if !strings.Contains(ir, want) {
			t.Errorf("expected %q in emitted IR, got:\n%s", want, ir)
		}
	}
}

func TestCompileSyntaxErrorSurfaces(t *testing.T) {
	src := `def broken(a: i32): i32 { a +`

	_, err := Compile(src, Options{ModuleName: "broken"})
	if err == nil {
		t.Fatal("expected a syntax error, got nil")
	}
	if _, ok := err.(*errs.SyntaxError); !ok {
		t.Fatalf("expected *errs.SyntaxError, got %T: %v", err, err)
	}
}

func TestCompileUndefinedNameIsCodegenError(t *testing.T) {
	src := `def uses_missing(): i32 { missing_name }`

	_, err := Compile(src, Options{ModuleName: "uses_missing"})
	if err == nil {
		t.Fatal("expected a codegen error, got nil")
	}
	if _, ok := err.(*errs.CodegenError); !ok {
		t.Fatalf("expected *errs.CodegenError, got %T: %v", err, err)
	}
}

func TestCompileExternAndCall(t *testing.T) {
	src := `
extern puts_i32(x: i32): i32
def main(): i32 { puts_i32(7) }
`
	m, err := Compile(src, Options{ModuleName: "extern_call"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	defer m.Dispose()

	ir := m.LLVM.String()
	if !strings.Contains(ir, "puts_i32") {
		t.Fatalf("expected unmangled extern symbol puts_i32 in emitted IR, got:\n%s", ir)
	}
}
