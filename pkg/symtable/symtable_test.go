package symtable

import (
	"testing"

	"github.com/akilang/akic/pkg/types"
)

func TestFuncTableScopingAndNoShadow(t *testing.T) {
	ft := NewFuncTable()
	ft.EnterScope()
	if err := ft.Declare("x", &Slot{ArgIndex: -1}); err != nil {
		t.Fatalf("Declare x: %v", err)
	}
	if _, ok := ft.Lookup("x"); !ok {
		t.Fatalf("expected to find x")
	}

	ft.EnterScope()
	if err := ft.Declare("x", &Slot{ArgIndex: -1}); err == nil {
		t.Fatalf("expected no-shadow error redeclaring x in nested scope")
	}
	if err := ft.Declare("y", &Slot{ArgIndex: -1}); err != nil {
		t.Fatalf("Declare y: %v", err)
	}
	dropped := ft.ExitScope()
	if len(dropped) != 1 || dropped[0] == nil {
		t.Fatalf("expected exactly one slot dropped, got %d", len(dropped))
	}
	if _, ok := ft.Lookup("y"); ok {
		t.Fatalf("y should no longer be visible after ExitScope")
	}
	if _, ok := ft.Lookup("x"); !ok {
		t.Fatalf("x should still be visible in the outer scope")
	}
}

func TestFuncTableExitScopeReverseOrder(t *testing.T) {
	ft := NewFuncTable()
	ft.EnterScope()
	ft.Declare("a", &Slot{ArgIndex: -1})
	ft.Declare("b", &Slot{ArgIndex: -1})
	ft.Declare("c", &Slot{ArgIndex: -1})

	// Stash slots by identity so we can tell which one comes back first.
	a, _ := ft.Lookup("a")
	b, _ := ft.Lookup("b")
	c, _ := ft.Lookup("c")

	dropped := ft.ExitScope()
	if len(dropped) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(dropped))
	}
	if dropped[0] != c || dropped[1] != b || dropped[2] != a {
		t.Fatalf("expected reverse declaration order c,b,a for auto-dispose")
	}
}

func TestModuleTableMangleAndResolve(t *testing.T) {
	r := types.ForTriple("")
	mt := NewModuleTable()

	params := []types.Type{r.I32(), r.I32()}
	fi := &FuncInfo{
		Name:          "add",
		ParamTypes:    params,
		RequiredCount: 1, // second arg has a default
		ReturnType:    r.I32(),
	}
	mt.Register(fi)

	// Full signature match.
	got, err := mt.Resolve("add", params)
	if err != nil {
		t.Fatalf("Resolve(full signature): %v", err)
	}
	if got != fi {
		t.Fatalf("Resolve(full signature) returned a different FuncInfo")
	}

	// Required-prefix match: caller omits the defaulted trailing arg.
	got, err = mt.Resolve("add", []types.Type{r.I32()})
	if err != nil {
		t.Fatalf("Resolve(required prefix): %v", err)
	}
	if got != fi {
		t.Fatalf("Resolve(required prefix) returned a different FuncInfo")
	}

	if _, err := mt.Resolve("add", []types.Type{r.F64()}); err == nil {
		t.Fatalf("expected no match for mismatched argument type")
	}
	if _, err := mt.Resolve("nope", params); err == nil {
		t.Fatalf("expected no match for unknown function name")
	}
}

func TestModuleTableMangledNameAndSeparator(t *testing.T) {
	r := types.ForTriple("")
	name := MangledName("add", []types.Type{r.I32(), r.F64()})
	want := "add" + MangleSep + "i32_f64"
	if name != want {
		t.Fatalf("MangledName: got %q, want %q", name, want)
	}
}

func TestModuleTableGlobalsAndPragmas(t *testing.T) {
	r := types.ForTriple("")
	mt := NewModuleTable()

	if err := mt.DeclareGlobal("counter", &Global{Type: r.I32(), Const: false}); err != nil {
		t.Fatalf("DeclareGlobal: %v", err)
	}
	if err := mt.DeclareGlobal("counter", &Global{Type: r.I32()}); err == nil {
		t.Fatalf("expected error redeclaring global counter")
	}
	if _, ok := mt.LookupGlobal("counter"); !ok {
		t.Fatalf("expected to find global counter")
	}
	if _, ok := mt.LookupGlobal("missing"); ok {
		t.Fatalf("did not expect to find global missing")
	}

	mt.SetPragma("target", nil)
	if _, ok := mt.Pragma("target"); !ok {
		t.Fatalf("expected to find pragma target")
	}
	if _, ok := mt.Pragma("absent"); ok {
		t.Fatalf("did not expect to find pragma absent")
	}
}
