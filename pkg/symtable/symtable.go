// Package symtable implements the two lookup scopes of §4.5: a
// per-function, scoped-stack symbol table (so `with` and nested blocks
// can add and drop bindings without clobbering outer ones — the design
// note's replacement for the teacher's flat per-function dictionary),
// and a module-wide table of globals and mangled-name function
// variants with the two-tier (required-prefix, full-signature) lookup
// described in SPEC_FULL.md §4.
package symtable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/types"
	"tinygo.org/x/go-llvm"
)

// Slot is one binding in a function's symbol table: an alloca'd local,
// a function argument, or — when Direct is set — an object-pointer
// argument passed straight through without its own alloca (§4.6:
// "allocate a slot unless the arg is already a pointer to an object").
type Slot struct {
	Alloca      llvm.Value // address to load/store through; zero Value when Direct
	Direct      bool
	DirectValue llvm.Value // the bound value itself, when Direct
	Type        types.Type
	ArgIndex    int // -1 when not a prototype argument
	Tracked     bool
}

// frame is one lexical scope: an ordered map so ExitScope can return
// its slots in reverse declaration order for dispose.
type frame struct {
	order []string
	slots map[string]*Slot
}

// FuncTable is the per-function symbol table (§4.5's func_symtab),
// implemented as a stack of scope frames rather than a single flat
// dictionary — see the design note on replacing "func_symtab as a flat
// dictionary reset per function" with an explicit frame stack.
type FuncTable struct {
	frames []*frame
}

// NewFuncTable returns an empty table; call EnterScope before Declare.
func NewFuncTable() *FuncTable { return &FuncTable{} }

// EnterScope pushes a new, empty scope frame.
func (t *FuncTable) EnterScope() {
	t.frames = append(t.frames, &frame{slots: map[string]*Slot{}})
}

// ExitScope pops the innermost frame and returns its slots in reverse
// declaration order, ready for auto-dispose (§4.6: "in reverse
// declaration order").
func (t *FuncTable) ExitScope() []*Slot {
	if len(t.frames) == 0 {
		return nil
	}
	f := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	out := make([]*Slot, len(f.order))
	for i, name := range f.order {
		out[i] = f.slots[name]
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Lookup searches frames from innermost to outermost.
func (t *FuncTable) Lookup(name string) (*Slot, bool) {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if s, ok := t.frames[i].slots[name]; ok {
			return s, true
		}
	}
	return nil, false
}

// Declare binds name to slot in the innermost frame. Per §8's "Symbol
// no-shadow" invariant, redeclaring a name already visible anywhere in
// the function — not just the current frame — is a hard error.
func (t *FuncTable) Declare(name string, slot *Slot) error {
	if len(t.frames) == 0 {
		return fmt.Errorf("internal: Declare called with no active scope")
	}
	if _, ok := t.Lookup(name); ok {
		return fmt.Errorf("%q is already declared in this function: no shadowing allowed", name)
	}
	f := t.frames[len(t.frames)-1]
	f.slots[name] = slot
	f.order = append(f.order, name)
	return nil
}

// ---- module-wide table ----

// MangleSep separates a function's base name from its argument-type
// signature in a mangled symbol (SPEC_FULL.md §4: grounded on
// toplevel.py's "$" separator).
const MangleSep = "$"

// TypeCode is the signature component contributed by one argument type.
// types.Type.String() is already a deterministic, injective rendering
// of a canonical type (distinct Pointer instances are canonicalized, so
// two arguments of "the same" type always render identically), which is
// exactly what mangling needs.
func TypeCode(t types.Type) string { return t.String() }

// Mangle joins the type codes of argTypes into one signature component.
func Mangle(argTypes []types.Type) string {
	codes := make([]string, len(argTypes))
	for i, t := range argTypes {
		codes[i] = TypeCode(t)
	}
	return strings.Join(codes, "_")
}

// MangledName builds the full mangled symbol for name over argTypes.
func MangledName(name string, argTypes []types.Type) string {
	return name + MangleSep + Mangle(argTypes)
}

// FuncInfo describes one emitted (or forward-declared) function.
type FuncInfo struct {
	LLVM          llvm.Value
	Name          string // unmangled source name
	ParamTypes    []types.Type
	RequiredCount int        // number of arguments with no default
	Defaults      []ast.Expr // len == len(ParamTypes); nil for required params
	ReturnType    types.Type
	Extern        bool
	DeclaredOnly  bool // true until the body is emitted (forward decl / extern)
	ReturnsAlloc  bool // transfers a tracked heap object to the caller
}

// Global is a module-level constant or uniform variable.
type Global struct {
	LLVM  llvm.Value
	Type  types.Type
	Const bool
}

// ModuleTable is the module-wide symbol table (§4.5's module_symtab):
// globals plus all emitted functions, keyed by mangled name.
type ModuleTable struct {
	byKey   map[string]*FuncInfo
	byName  map[string][]*FuncInfo
	globals map[string]*Global
	pragmas map[string]ast.Expr
}

// NewModuleTable returns an empty module-wide table.
func NewModuleTable() *ModuleTable {
	return &ModuleTable{
		byKey:   map[string]*FuncInfo{},
		byName:  map[string][]*FuncInfo{},
		globals: map[string]*Global{},
		pragmas: map[string]ast.Expr{},
	}
}

// LookupBySymbol returns the FuncInfo previously registered under the
// exact emitted LLVM symbol name (used by codegen to detect a
// forward-declared prototype being reopened).
func (m *ModuleTable) LookupBySymbol(symbol string) (*FuncInfo, bool) {
	for _, fi := range m.byName {
		for _, cand := range fi {
			if llvmSymbolName(cand) == symbol {
				return cand, true
			}
		}
	}
	return nil, false
}

func llvmSymbolName(fi *FuncInfo) string { return fi.LLVM.Name() }

// Register files fi under its required-argument signature and, if it
// has optional (default-valued) trailing parameters, also under its
// full signature — the two-tier lookup of SPEC_FULL.md §4.
func (m *ModuleTable) Register(fi *FuncInfo) {
	requiredKey := fi.Name + MangleSep + Mangle(fi.ParamTypes[:fi.RequiredCount])
	m.byKey[requiredKey] = fi
	if fi.RequiredCount < len(fi.ParamTypes) {
		fullKey := fi.Name + MangleSep + Mangle(fi.ParamTypes)
		m.byKey[fullKey] = fi
	}
	m.byName[fi.Name] = append(m.byName[fi.Name], fi)
}

// Resolve finds the FuncInfo matching name applied to argTypes. It
// first tries an exact signature match, then — per §4.5's "tries
// shorter prefixes combined with the default values of missing
// trailing parameters" — any registered overload whose parameter types
// match argTypes as a prefix, accepting default values for the rest.
func (m *ModuleTable) Resolve(name string, argTypes []types.Type) (*FuncInfo, error) {
	if fi, ok := m.byKey[name+MangleSep+Mangle(argTypes)]; ok {
		return fi, nil
	}
	for _, fi := range m.byName[name] {
		if len(argTypes) < fi.RequiredCount || len(argTypes) > len(fi.ParamTypes) {
			continue
		}
		match := true
		for i, t := range argTypes {
			if !t.Equal(fi.ParamTypes[i]) {
				match = false
				break
			}
		}
		if match {
			return fi, nil
		}
	}
	return nil, fmt.Errorf("no function %q matches the given argument types", name)
}

// DeclareGlobal registers a module-level constant/uniform.
func (m *ModuleTable) DeclareGlobal(name string, g *Global) error {
	if _, ok := m.globals[name]; ok {
		return fmt.Errorf("global %q is already declared", name)
	}
	m.globals[name] = g
	return nil
}

// LookupGlobal returns a previously declared global.
func (m *ModuleTable) LookupGlobal(name string) (*Global, bool) {
	g, ok := m.globals[name]
	return g, ok
}

// SetPragma records a parsed `pragma NAME = value` for the module.
func (m *ModuleTable) SetPragma(name string, value ast.Expr) { m.pragmas[name] = value }

// Pragma returns a previously recorded pragma value.
func (m *ModuleTable) Pragma(name string) (ast.Expr, bool) {
	v, ok := m.pragmas[name]
	return v, ok
}

// String returns a deterministically ordered dump, in the teacher's
// SymbolTable.String() style, useful for debugging and golden tests.
func (m *ModuleTable) String() string {
	var sb strings.Builder
	names := make([]string, 0, len(m.byName))
	for n := range m.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	sb.WriteString("Functions:\n")
	for _, n := range names {
		for _, fi := range m.byName[n] {
			fmt.Fprintf(&sb, "  %s (required=%d, params=%v, return=%s, extern=%t)\n",
				n, fi.RequiredCount, fi.ParamTypes, fi.ReturnType, fi.Extern)
		}
	}
	gnames := make([]string, 0, len(m.globals))
	for n := range m.globals {
		gnames = append(gnames, n)
	}
	sort.Strings(gnames)
	sb.WriteString("Globals:\n")
	for _, n := range gnames {
		g := m.globals[n]
		fmt.Fprintf(&sb, "  %s: %s (const=%t)\n", n, g.Type, g.Const)
	}
	return sb.String()
}
