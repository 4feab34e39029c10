package types

import (
	"testing"

	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/position"
)

func TestPointerIsCanonical(t *testing.T) {
	r := ForTriple("test-triple-pointer")
	p1 := r.Pointer(r.I32(), 0)
	p2 := r.Pointer(r.I32(), 0)
	if p1 != p2 {
		t.Fatalf("Pointer(i32) returned two distinct instances")
	}
	p3 := r.Pointer(r.I64(), 0)
	if p1 == (*Pointer)(nil) || p1.Equal(p3) {
		t.Fatalf("Pointer(i32) should not equal Pointer(i64)")
	}
}

func TestForTripleIsSingletonPerTriple(t *testing.T) {
	a := ForTriple("triple-a")
	b := ForTriple("triple-a")
	if a != b {
		t.Fatalf("ForTriple should return the same *Registry for the same triple")
	}
	c := ForTriple("triple-b")
	if a == c {
		t.Fatalf("ForTriple should return distinct registries for distinct triples")
	}
}

func TestWordBits(t *testing.T) {
	cases := []struct {
		triple string
		want   int
	}{
		{"", 64},
		{"x86_64-pc-linux-gnu", 64},
		{"wasm32-unknown-unknown", 32},
		{"aarch64-apple-darwin", 64},
	}
	for _, c := range cases {
		r := ForTriple("wordbits-" + c.triple)
		r.wordBits = wordBitsForTriple(c.triple)
		if got := r.WordBits(); got != c.want {
			t.Errorf("wordBitsForTriple(%q) = %d, want %d", c.triple, got, c.want)
		}
	}
}

func TestClassPrependsObjectHeader(t *testing.T) {
	r := ForTriple("test-triple-class")
	obj := r.Class("Point", []Type{r.I32(), r.I32()})
	if len(obj.Fields) != ObjectHeaderFieldCount+2 {
		t.Fatalf("expected %d fields, got %d", ObjectHeaderFieldCount+2, len(obj.Fields))
	}
	if !obj.Fields[0].Equal(r.USize()) {
		t.Fatalf("field 0 should be the header's size field (u_size), got %s", obj.Fields[0])
	}
	userFields := obj.UserFields()
	if len(userFields) != 2 || !userFields[0].Equal(r.I32()) {
		t.Fatalf("UserFields() = %v, want [i32 i32]", userFields)
	}
}

func TestClassIsIdempotent(t *testing.T) {
	r := ForTriple("test-triple-class-idempotent")
	a := r.Class("Foo", []Type{r.I32()})
	b := r.Class("Foo", []Type{r.I64()}) // different fields ignored on re-register
	if a != b {
		t.Fatalf("re-registering a class name should return the original definition")
	}
}

func TestResolvePointerType(t *testing.T) {
	r := ForTriple("test-triple-resolve")
	p := position.New(nil)
	vt := &ast.VarTypePtr{Inner: &ast.VarTypeName{ID: "i32"}}
	_ = p
	got, err := r.Resolve(vt)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ptr, ok := got.(*Pointer)
	if !ok || !ptr.Pointee.Equal(r.I32()) {
		t.Fatalf("Resolve(*i32) = %v, want Pointer{I32}", got)
	}
}

func TestResolveUnknownType(t *testing.T) {
	r := ForTriple("test-triple-resolve-unknown")
	_, err := r.Resolve(&ast.VarTypeName{ID: "NoSuchType"})
	if err == nil {
		t.Fatalf("expected error resolving unknown type")
	}
}
