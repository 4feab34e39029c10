// Package types implements the canonical type system shared by the
// parser and code generator: primitive numeric/boolean types, and the
// pointer/array/function/object constructors built on top of them.
package types

import "fmt"

// PrimKind distinguishes the four primitive families.
type PrimKind int

const (
	Bool PrimKind = iota
	SignedInt
	UnsignedInt
	Float
)

func (k PrimKind) String() string {
	switch k {
	case Bool:
		return "bool"
	case SignedInt:
		return "signed"
	case UnsignedInt:
		return "unsigned"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("PrimKind(%d)", int(k))
	}
}

// Type is implemented by every canonical type shape in §3 of the spec:
// Primitive, Pointer, Array, Function, Object, and Unset.
type Type interface {
	typeNode()
	String() string
	// Equal reports whether o denotes the same canonical type. For
	// Pointer it is reference equality on the canonicalized instance;
	// for value types it is structural.
	Equal(o Type) bool
}

// Primitive is a bool/integer/float type of a fixed bit width.
type Primitive struct {
	Kind   PrimKind
	Bits   int
	Signed bool
}

func (*Primitive) typeNode() {}
func (p *Primitive) String() string {
	switch p.Kind {
	case Bool:
		return "bool"
	case Float:
		return fmt.Sprintf("f%d", p.Bits)
	case SignedInt:
		return fmt.Sprintf("i%d", p.Bits)
	default:
		return fmt.Sprintf("u%d", p.Bits)
	}
}
func (p *Primitive) Equal(o Type) bool {
	q, ok := o.(*Primitive)
	return ok && q.Kind == p.Kind && q.Bits == p.Bits && q.Signed == p.Signed
}

// IsInteger reports whether p is SignedInt, UnsignedInt, or Bool (bool is
// a 1-bit unsigned integer for arithmetic-promotion purposes).
func (p *Primitive) IsInteger() bool { return p.Kind != Float }

// Pointer is `*pointee` at a given address space (0 = default/flat).
type Pointer struct {
	Pointee  Type
	AddrSpace int
}

func (*Pointer) typeNode() {}
func (p *Pointer) String() string { return "*" + p.Pointee.String() }

// Equal is reference equality: the registry canonicalizes pointer types,
// so two Pointer values to the same pointee in the same address space
// are always the same *Pointer instance.
func (p *Pointer) Equal(o Type) bool {
	q, ok := o.(*Pointer)
	return ok && q == p
}

// Array is a fixed-length (or, pre-inference, zero-length) homogeneous
// sequence. Length 0 means "infer from initializer" until codegen fixes
// it (see Registry.FixArrayLength).
type Array struct {
	Element Type
	Length  int
}

func (*Array) typeNode() {}
func (a *Array) String() string { return fmt.Sprintf("array %s[%d]", a.Element, a.Length) }
func (a *Array) Equal(o Type) bool {
	q, ok := o.(*Array)
	return ok && q.Length == a.Length && q.Element.Equal(a.Element)
}

// Function is a callable signature: ordered parameter types, a return
// type, and whether it accepts C-style varargs (used for extern decls).
type Function struct {
	Params  []Type
	Return  Type
	Varargs bool
}

func (*Function) typeNode() {}
func (f *Function) String() string {
	s := "func("
	for i, p := range f.Params {
		if i > 0 {
			s += ", "
		}
		s += p.String()
	}
	if f.Varargs {
		s += ", ..."
	}
	return s + ") " + f.Return.String()
}
func (f *Function) Equal(o Type) bool {
	q, ok := o.(*Function)
	if !ok || len(q.Params) != len(f.Params) || q.Varargs != f.Varargs || !q.Return.Equal(f.Return) {
		return false
	}
	for i := range f.Params {
		if !q.Params[i].Equal(f.Params[i]) {
			return false
		}
	}
	return true
}

// ObjectHeaderFieldCount is the number of fields in the canonical
// object_header struct that is prepended to every Object's field list.
const ObjectHeaderFieldCount = 5

// Object is a heap-backed aggregate, always manipulated via a Pointer to
// it. Fields[0:5] are always the canonical object_header
// {size, data_ptr, refcount, data_is_dyn, obj_is_dyn}; user fields start
// at index 5.
type Object struct {
	Name   string
	Fields []Type // header fields followed by user fields
	IsObj  bool
}

func (*Object) typeNode() {}
func (o *Object) String() string { return "obj " + o.Name }
func (o *Object) Equal(other Type) bool {
	q, ok := other.(*Object)
	return ok && q == o
}

// UserFields returns o.Fields with the object_header prefix stripped.
func (o *Object) UserFields() []Type {
	if len(o.Fields) <= ObjectHeaderFieldCount {
		return nil
	}
	return o.Fields[ObjectHeaderFieldCount:]
}

// Unset is the placeholder type the parser assigns to a declaration with
// no annotated type; codegen resolves it from the initializer or errors
// if it cannot.
type Unset struct{}

func (*Unset) typeNode() {}
func (*Unset) String() string { return "<unset>" }
func (*Unset) Equal(o Type) bool {
	_, ok := o.(*Unset)
	return ok
}
