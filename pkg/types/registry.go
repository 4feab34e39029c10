package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/akilang/akic/pkg/ast"
)

// Registry is the canonical, process-wide-per-triple set of primitive
// and derived types. It is created lazily by ForTriple and, once built,
// is never mutated: pointer/array/function/class constructors only ever
// add new canonical entries, they never change an existing one, so a
// *Registry is safe to share across concurrent compile() calls (§5).
type Registry struct {
	triple   string
	wordBits int

	mu        sync.Mutex
	pointers  map[pointerKey]*Pointer
	functions []*Function
	classes   map[string]*Object

	boolT  *Primitive
	i8, i16, i32, i64 *Primitive
	u8, u16, u32, u64 *Primitive
	f32, f64          *Primitive
	byteT             *Primitive
}

type pointerKey struct {
	pointee   Type
	addrSpace int
}

var (
	registriesMu sync.Mutex
	registries   = map[string]*Registry{}
)

// ForTriple returns the singleton Registry for the given backend target
// triple, building it on first use. An empty triple defaults to a
// generic 64-bit flat-address target.
func ForTriple(triple string) *Registry {
	registriesMu.Lock()
	defer registriesMu.Unlock()
	if r, ok := registries[triple]; ok {
		return r
	}
	r := newRegistry(triple)
	registries[triple] = r
	return r
}

func newRegistry(triple string) *Registry {
	r := &Registry{
		triple:   triple,
		wordBits: wordBitsForTriple(triple),
		pointers: make(map[pointerKey]*Pointer),
		classes:  make(map[string]*Object),
	}
	r.boolT = &Primitive{Kind: Bool, Bits: 1, Signed: false}
	r.i8 = &Primitive{Kind: SignedInt, Bits: 8, Signed: true}
	r.i16 = &Primitive{Kind: SignedInt, Bits: 16, Signed: true}
	r.i32 = &Primitive{Kind: SignedInt, Bits: 32, Signed: true}
	r.i64 = &Primitive{Kind: SignedInt, Bits: 64, Signed: true}
	r.u8 = &Primitive{Kind: UnsignedInt, Bits: 8, Signed: false}
	r.u16 = &Primitive{Kind: UnsignedInt, Bits: 16, Signed: false}
	r.u32 = &Primitive{Kind: UnsignedInt, Bits: 32, Signed: false}
	r.u64 = &Primitive{Kind: UnsignedInt, Bits: 64, Signed: false}
	r.f32 = &Primitive{Kind: Float, Bits: 32, Signed: true}
	r.f64 = &Primitive{Kind: Float, Bits: 64, Signed: true}
	r.byteT = &Primitive{Kind: UnsignedInt, Bits: 8, Signed: false}
	return r
}

// wordBitsForTriple derives the platform pointer/word width from the
// backend target triple. A real backend would consult llvm.TargetData
// for the triple's data layout string; the triples this compiler is
// expected to run against (x86_64-*, aarch64-*, wasm32-*, the empty
// default) are unambiguous from the triple text alone, so no LLVM
// target lookup is needed at registry-construction time.
func wordBitsForTriple(triple string) int {
	t := strings.ToLower(triple)
	switch {
	case t == "":
		return 64
	case strings.HasPrefix(t, "wasm32") || strings.HasPrefix(t, "i386") || strings.HasPrefix(t, "i686") || strings.HasPrefix(t, "arm-"):
		return 32
	default:
		return 64
	}
}

// WordBits returns the platform pointer/word width in bits.
func (r *Registry) WordBits() int { return r.wordBits }

// Bool returns the canonical 1-bit boolean type.
func (r *Registry) Bool() *Primitive { return r.boolT }

func (r *Registry) I8() *Primitive  { return r.i8 }
func (r *Registry) I16() *Primitive { return r.i16 }
func (r *Registry) I32() *Primitive { return r.i32 }
func (r *Registry) I64() *Primitive { return r.i64 }
func (r *Registry) U8() *Primitive  { return r.u8 }
func (r *Registry) U16() *Primitive { return r.u16 }
func (r *Registry) U32() *Primitive { return r.u32 }
func (r *Registry) U64() *Primitive { return r.u64 }
func (r *Registry) F32() *Primitive { return r.f32 }
func (r *Registry) F64() *Primitive { return r.f64 }
func (r *Registry) Byte() *Primitive { return r.byteT }

// USize returns the unsigned integer type matching the platform word
// width (uword in spec.md's object_header layout).
func (r *Registry) USize() *Primitive {
	if r.wordBits == 32 {
		return r.u32
	}
	return r.u64
}

// UMem is an alias for USize used for memory-size-denominated fields;
// kept distinct from USize in the API surface because the two may
// diverge on segmented targets this compiler does not yet support.
func (r *Registry) UMem() *Primitive { return r.USize() }

// Pointer returns the canonical pointer-to-t type at the given address
// space, constructing it on first request. The same (t, addrSpace) pair
// always yields the same *Pointer instance.
func (r *Registry) Pointer(t Type, addrSpace int) *Pointer {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pointerKey{pointee: t, addrSpace: addrSpace}
	if p, ok := r.pointers[key]; ok {
		return p
	}
	p := &Pointer{Pointee: t, AddrSpace: addrSpace}
	r.pointers[key] = p
	return p
}

// Array constructs an array-of-t type with the given length. length==0
// means "infer from initializer"; FixArrayLength resolves it once the
// initializer is known.
func (r *Registry) Array(t Type, length int) *Array {
	return &Array{Element: t, Length: length}
}

// FixArrayLength returns a copy of a with its length fixed to n. Per
// §4.2, this only ever applies to an Array whose declared length was 0.
func (r *Registry) FixArrayLength(a *Array, n int) *Array {
	return &Array{Element: a.Element, Length: n}
}

// Function constructs a function-signature type. Function types are not
// canonicalized by identity (unlike Pointer): two separately constructed
// Function values with equal params/return/varargs compare Equal but
// are not the same instance, which is fine since nothing indexes on
// Function identity.
func (r *Registry) Function(params []Type, ret Type, varargs bool) *Function {
	f := &Function{Params: params, Return: ret, Varargs: varargs}
	r.mu.Lock()
	r.functions = append(r.functions, f)
	r.mu.Unlock()
	return f
}

// Class registers (or returns the existing) Object type for name, with
// the canonical object_header prepended to fields. Re-registering the
// same name with the same fields is idempotent; a conflicting
// redefinition is a codegen-level error, not a registry-level one, so
// Class always returns the first definition once name is taken.
func (r *Registry) Class(name string, fields []Type) *Object {
	// Built before taking r.mu: Pointer acquires r.mu itself.
	header := []Type{
		r.USize(),             // size
		r.Pointer(r.Byte(), 0), // data_ptr
		r.USize(),              // refcount
		r.Bool(),               // data_is_dyn
		r.Bool(),               // obj_is_dyn
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.classes[name]; ok {
		return existing
	}
	obj := &Object{Name: name, Fields: append(header, fields...), IsObj: true}
	r.classes[name] = obj
	return obj
}

// LookupClass returns the previously registered Object type named name.
func (r *Registry) LookupClass(name string) (*Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.classes[name]
	return o, ok
}

// primitivesByName backs Resolve's lookup of named primitive types; it
// is rebuilt per-registry since u_size/u_mem depend on word width.
func (r *Registry) primitivesByName() map[string]Type {
	return map[string]Type{
		"bool": r.boolT, "u1": r.boolT,
		"i8": r.i8, "i16": r.i16, "i32": r.i32, "i64": r.i64,
		"u8": r.u8, "u16": r.u16, "u32": r.u32, "u64": r.u64,
		"f32": r.f32, "f64": r.f64,
		"byte": r.byteT, "ubyte": r.byteT,
		"u_size": r.USize(), "u_mem": r.UMem(),
	}
}

// ResolveName resolves a bare type name (e.g. a literal's suffix-derived
// type hint, or a named VarTypeName's ID) to its canonical Type: a
// primitive if known, else a previously registered class.
func (r *Registry) ResolveName(name string) (Type, error) {
	if t, ok := r.primitivesByName()[name]; ok {
		return t, nil
	}
	if o, ok := r.LookupClass(name); ok {
		return o, nil
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

// Resolve turns a parser-produced VarType node into a canonical Type.
// A VarTypeName naming an unknown identifier is assumed to be a
// previously-registered class name; if it names neither a primitive nor
// a known class, Resolve returns an error.
func (r *Registry) Resolve(vt ast.VarType) (Type, error) {
	switch n := vt.(type) {
	case *ast.VarTypeName:
		return r.ResolveName(n.ID)
	case *ast.VarTypePtr:
		inner, err := r.Resolve(n.Inner)
		if err != nil {
			return nil, err
		}
		return r.Pointer(inner, 0), nil
	case *ast.VarTypeFunc:
		params := make([]Type, len(n.Params))
		for i, p := range n.Params {
			t, err := r.Resolve(p)
			if err != nil {
				return nil, err
			}
			params[i] = t
		}
		ret, err := r.Resolve(n.Ret)
		if err != nil {
			return nil, err
		}
		return r.Function(params, ret, false), nil
	case nil:
		return &Unset{}, nil
	default:
		return nil, fmt.Errorf("unrecognized var-type node %T", vt)
	}
}
