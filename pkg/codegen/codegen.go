// Package codegen lowers a parsed AST to an LLVM IR module via
// tinygo.org/x/go-llvm, the concrete backend library behind spec.md's
// "LLIR module" (§4.6): entry/exit blocks, the `%_return` slot,
// if/when join blocks built from `phi`, loop header/body/after blocks,
// mangled-name call resolution, object headers, and auto-dispose of
// scoped tracked slots are all expressed as direct calls into this
// library rather than a hand-rolled textual IR.
package codegen

import (
	"fmt"

	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/symtable"
	"github.com/akilang/akic/pkg/types"
	"tinygo.org/x/go-llvm"
)

// Options configures one CodeGen: the two knobs spec.md §4.7 needs
// (warning suppression) plus the target triple the type registry and
// LLVM module are built for. No config library is wired here — the
// teacher never reaches for one for a pair of compiler-internal
// toggles, so neither does this package.
type Options struct {
	SuppressWarnings bool
	TargetTriple     string
}

// loopLabels tracks the basic blocks a `break` inside the current loop
// branches to; a stack of these lets a break inside a nested loop exit
// only the innermost one (§4.6).
type loopLabels struct {
	after llvm.BasicBlock
}

// CodeGen owns one LLVM module and the compiler-internal state needed
// to lower a full AST into it: the function-scoped symbol table stack,
// the module-wide mangled-name table, the decorator stack, and the
// loop-context stack for `break`.
type CodeGen struct {
	opts Options
	reg  *types.Registry

	ctx     llvm.Context
	mod     llvm.Module
	builder llvm.Builder

	module *symtable.ModuleTable
	funcs  *symtable.FuncTable

	decoratorStack []string
	loopStack      []loopLabels
	warnings       []errs.CodegenWarning

	structTypes map[*types.Object]llvm.Type
	anonCounter int

	currentFunc    *symtable.FuncInfo
	currentRetSlot llvm.Value
	currentExit    llvm.BasicBlock
}

// New constructs a CodeGen that owns a fresh LLVM context and module
// named moduleName, backed by the type registry for opts.TargetTriple.
func New(moduleName string, opts Options) *CodeGen {
	ctx := llvm.NewContext()
	return &CodeGen{
		opts:        opts,
		reg:         types.ForTriple(opts.TargetTriple),
		ctx:         ctx,
		mod:         ctx.NewModule(moduleName),
		builder:     ctx.NewBuilder(),
		module:      symtable.NewModuleTable(),
		structTypes: map[*types.Object]llvm.Type{},
	}
}

// Dispose releases the underlying LLVM context and builder. Callers
// that want to keep the emitted llvm.Module alive past Dispose must
// have already handed it to a verifier/printer, since the module's
// context is freed along with it.
func (c *CodeGen) Dispose() {
	c.builder.Dispose()
	c.ctx.Dispose()
}

// Module returns the LLVM module being built. Valid until Dispose.
func (c *CodeGen) Module() llvm.Module { return c.mod }

// Warnings returns every CodegenWarning collected so far.
func (c *CodeGen) Warnings() []errs.CodegenWarning { return c.warnings }

func (c *CodeGen) warn(pos ast.Node, msg string) {
	w := errs.CodegenWarning{Msg: msg, Pos: pos.Pos()}
	c.warnings = append(c.warnings, w)
	if !c.opts.SuppressWarnings {
		fmt.Println(w.String())
	}
}

// Eval lowers every top-level declaration in tops, in order. It stops at
// the first codegen error and returns it; the declarations after the
// failing one are not lowered, and the module stays intact for
// everything already emitted (§4.7).
func (c *CodeGen) Eval(tops []ast.TopLevel) error {
	for _, tl := range tops {
		if err := c.evalTopLevel(tl); err != nil {
			return err
		}
	}
	return nil
}

// llvmType maps a canonical types.Type to its LLVM representation.
func (c *CodeGen) llvmType(t types.Type) llvm.Type {
	switch v := t.(type) {
	case *types.Primitive:
		switch v.Kind {
		case types.Bool:
			return c.ctx.Int1Type()
		case types.Float:
			if v.Bits == 32 {
				return c.ctx.FloatType()
			}
			return c.ctx.DoubleType()
		default:
			return c.ctx.IntType(v.Bits)
		}
	case *types.Pointer:
		return llvm.PointerType(c.llvmType(v.Pointee), v.AddrSpace)
	case *types.Array:
		return llvm.ArrayType(c.llvmType(v.Element), v.Length)
	case *types.Function:
		// A function type used as a value (a func-typed parameter or
		// variable) is always manipulated through a pointer to it; the
		// bare FunctionType is only used when declaring a callee itself.
		return llvm.PointerType(c.functionType(v), 0)
	case *types.Object:
		return llvm.PointerType(c.objectStructType(v), 0)
	case *types.Unset:
		// Only reachable while inferring an anonymous function's return
		// type; callers resolve Unset before calling llvmType on it.
		return c.ctx.VoidType()
	default:
		return c.ctx.VoidType()
	}
}

func (c *CodeGen) functionType(f *types.Function) llvm.Type {
	params := make([]llvm.Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = c.llvmType(p)
	}
	return llvm.FunctionType(c.llvmType(f.Return), params, f.Varargs)
}

// objectStructType returns the named, packed LLVM struct type backing
// o, creating and caching it on first use. The struct is registered
// under its name before its field types are built so a self-referential
// object (a field whose type is *Pointer to the same Object) resolves
// without infinite recursion.
func (c *CodeGen) objectStructType(o *types.Object) llvm.Type {
	if st, ok := c.structTypes[o]; ok {
		return st
	}
	st := c.ctx.StructCreateNamed(o.Name)
	c.structTypes[o] = st
	fields := make([]llvm.Type, len(o.Fields))
	for i, f := range o.Fields {
		fields[i] = c.llvmType(f)
	}
	st.StructSetBody(fields, true)
	return st
}
