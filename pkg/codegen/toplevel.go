package codegen

import (
	"fmt"
	"strings"

	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/parser"
	"github.com/akilang/akic/pkg/position"
	"github.com/akilang/akic/pkg/symtable"
	"github.com/akilang/akic/pkg/types"
	"tinygo.org/x/go-llvm"
)

// evalTopLevel dispatches one top-level declaration (§4.6). Besides the
// core ast.TopLevel variants it also accepts the parser's Pragma and
// Decorator plumbing nodes, which give the decorator stack and pragma
// table something to consume.
func (c *CodeGen) evalTopLevel(tl ast.TopLevel) error {
	switch n := tl.(type) {
	case *ast.Function:
		return c.evalFunction(n)
	case *ast.External:
		return c.evalExternal(n)
	case *ast.Prototype:
		_, err := c.declarePrototype(n, false, nil)
		return err
	case *parser.Pragma:
		return c.evalPragma(n)
	case *parser.Decorator:
		return c.evalDecorator(n)
	case *ast.ExprTopLevel:
		return c.evalExprTopLevel(n)
	default:
		return &errs.InternalError{Msg: fmt.Sprintf("unrecognized top-level node %T", tl)}
	}
}

// evalExprTopLevel implements the anonymous-lifting rule of §9: a bare
// top-level expression becomes a synthesized `_ANON_N` function with no
// declared return type, triggering inference in declarePrototype. A
// bare top-level `var` declaration is instead a module global — the
// grammar carries no separate const/uniform keyword (§6's source-level
// surface lists none), so both are lowered the same way, as a mutable
// module-scoped binding.
func (c *CodeGen) evalExprTopLevel(n *ast.ExprTopLevel) error {
	if vl, ok := n.Expr.(*ast.VarList); ok {
		return c.evalModuleGlobals(vl)
	}
	proto := &ast.Prototype{Base: ast.NewBase(n.Pos()), Name: c.nextAnonymousName()}
	fn := &ast.Function{Base: ast.NewBase(n.Pos()), Proto: proto, Body: n.Expr}
	return c.evalFunction(fn)
}

func (c *CodeGen) nextAnonymousName() string {
	name := fmt.Sprintf("_ANON_%d", c.anonCounter)
	c.anonCounter++
	return name
}

func isAnonymousName(name string) bool { return strings.HasPrefix(name, "_ANON_") }

func (c *CodeGen) evalPragma(p *parser.Pragma) error {
	c.module.SetPragma(p.Name, p.Value)
	return nil
}

func (c *CodeGen) evalDecorator(d *parser.Decorator) error {
	c.decoratorStack = append(c.decoratorStack, d.Names...)
	defer func() { c.decoratorStack = c.decoratorStack[:len(c.decoratorStack)-len(d.Names)] }()
	for _, tl := range d.Body {
		if err := c.evalTopLevel(tl); err != nil {
			return err
		}
	}
	return nil
}

// resolveArgTypes resolves every argument's declared type and finds the
// required/optional split: required arguments are the ones before the
// first default-valued one (§4.5).
func (c *CodeGen) resolveArgTypes(args []*ast.Argument) ([]types.Type, int, []ast.Expr, error) {
	paramTypes := make([]types.Type, len(args))
	defaults := make([]ast.Expr, len(args))
	requiredCount := len(args)
	seenDefault := false
	for i, a := range args {
		t, err := c.reg.Resolve(a.DeclaredType)
		if err != nil {
			return nil, 0, nil, &errs.CodegenError{Msg: err.Error(), Pos: a.Pos()}
		}
		paramTypes[i] = t
		if a.Default != nil {
			defaults[i] = a.Default
			if !seenDefault {
				requiredCount = i
				seenDefault = true
			}
		}
	}
	return paramTypes, requiredCount, defaults, nil
}

// symbolName computes the emitted LLVM symbol for a prototype: unmangled
// for extern, `main`, and anonymous functions; otherwise
// NAME$required-type-signature (§4.5).
func (c *CodeGen) symbolName(name string, extern bool, paramTypes []types.Type, requiredCount int) string {
	if extern || name == "main" || isAnonymousName(name) {
		return name
	}
	return symtable.MangledName(name, paramTypes[:requiredCount])
}

// declarePrototype creates or re-opens a function in the module
// (§4.6's Prototype handling). retOverride, when non-nil, bypasses
// resolving proto.ReturnType — used for anonymous functions whose
// return type codegen has already inferred from their body, since the
// LLVM function signature must be fixed before AddFunction is called.
func (c *CodeGen) declarePrototype(proto *ast.Prototype, extern bool, retOverride types.Type) (*symtable.FuncInfo, error) {
	paramTypes, requiredCount, defaults, err := c.resolveArgTypes(proto.Args)
	if err != nil {
		return nil, err
	}

	retType := retOverride
	if retType == nil {
		retType, err = c.reg.Resolve(proto.ReturnType)
		if err != nil {
			return nil, &errs.CodegenError{Msg: err.Error(), Pos: proto.Pos()}
		}
	}

	symName := c.symbolName(proto.Name, extern, paramTypes, requiredCount)

	if existing, ok := c.module.LookupBySymbol(symName); ok {
		if len(existing.ParamTypes) != len(paramTypes) {
			return nil, &errs.CodegenError{Msg: fmt.Sprintf("redefinition of %q changes argument count", proto.Name), Pos: proto.Pos()}
		}
		if !existing.DeclaredOnly {
			return nil, &errs.CodegenError{Msg: fmt.Sprintf("%q is already defined", proto.Name), Pos: proto.Pos()}
		}
		return existing, nil
	}

	llvmParams := make([]llvm.Type, len(paramTypes))
	for i, t := range paramTypes {
		llvmParams[i] = c.llvmType(t)
	}
	ft := llvm.FunctionType(c.llvmType(retType), llvmParams, false)
	fn := llvm.AddFunction(c.mod, symName, ft)

	fi := &symtable.FuncInfo{
		LLVM:          fn,
		Name:          proto.Name,
		ParamTypes:    paramTypes,
		RequiredCount: requiredCount,
		Defaults:      defaults,
		ReturnType:    retType,
		Extern:        extern,
		DeclaredOnly:  true,
	}
	c.module.Register(fi)
	return fi, nil
}

var decoratorNames = map[string]bool{"inline": true, "noinline": true, "varfunc": true, "track": true}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// applyDecorators sets the linkage, calling convention, and inlining
// attributes §4.6 assigns to a non-extern function definition based on
// the active decorator stack.
func (c *CodeGen) applyDecorators(fi *symtable.FuncInfo, pos position.Position) error {
	hasInline := containsStr(c.decoratorStack, "inline")
	hasNoinline := containsStr(c.decoratorStack, "noinline")
	hasVarfunc := containsStr(c.decoratorStack, "varfunc")
	hasTrack := containsStr(c.decoratorStack, "track")
	if hasInline && hasNoinline {
		return &errs.CodegenError{Msg: fmt.Sprintf("function %q has conflicting inline/noinline decorators", fi.Name), Pos: pos}
	}
	isMain := fi.Name == "main"
	if hasInline {
		c.addFnAttr(fi.LLVM, "alwaysinline")
	}
	if hasNoinline || hasVarfunc || isMain {
		c.addFnAttr(fi.LLVM, "noinline")
		c.addFnAttr(fi.LLVM, "optnone")
	}
	if hasTrack {
		fi.ReturnsAlloc = true
	}
	fi.LLVM.SetLinkage(llvm.PrivateLinkage)
	fi.LLVM.SetFunctionCallConv(llvm.FastCallConv)
	return nil
}

func (c *CodeGen) addFnAttr(fn llvm.Value, name string) {
	kind := llvm.AttributeKindID(name)
	attr := c.ctx.CreateEnumAttribute(kind, 0)
	fn.AddAttributeAtIndex(llvm.AttributeFunctionIndex, attr)
}

// evalFunction implements the Function case of §4.6: resolve (and, for
// an anonymous lift, infer) the prototype, declare or reopen it, apply
// decorator-driven attributes, then emit the body.
func (c *CodeGen) evalFunction(fn *ast.Function) error {
	var retOverride types.Type
	if fn.Proto.ReturnType == nil {
		t, err := c.inferType(fn.Body)
		if err != nil {
			return &errs.CodegenError{Msg: err.Error(), Pos: fn.Pos()}
		}
		retOverride = t
	}
	fi, err := c.declarePrototype(fn.Proto, false, retOverride)
	if err != nil {
		return err
	}
	if err := c.applyDecorators(fi, fn.Proto.Pos()); err != nil {
		return err
	}
	return c.emitFunctionBody(fi, fn)
}

// evalExternal implements the External case of §4.6: emit the
// prototype only, marked dllimport+norecurse with the C calling
// convention, since extern functions are never mangled.
func (c *CodeGen) evalExternal(ext *ast.External) error {
	fi, err := c.declarePrototype(ext.Proto, true, nil)
	if err != nil {
		return err
	}
	fi.LLVM.SetLinkage(llvm.ExternalLinkage)
	fi.LLVM.SetDLLStorageClass(llvm.DLLImportStorageClass)
	c.addFnAttr(fi.LLVM, "norecurse")
	fi.LLVM.SetFunctionCallConv(llvm.CCallConv)
	return nil
}

// emitFunctionBody creates entry/exit blocks, the `%_return` slot, and
// binds arguments, then lowers the body and wires auto-dispose, the
// store to `%_return`, and the branch to exit (§4.6).
func (c *CodeGen) emitFunctionBody(fi *symtable.FuncInfo, fn *ast.Function) error {
	entry := llvm.AddBasicBlock(fi.LLVM, "entry")
	exitBB := llvm.AddBasicBlock(fi.LLVM, "exit")
	c.builder.SetInsertPointAtEnd(entry)

	prevFunc, prevRet, prevExit, prevFuncs, prevLoopStack := c.currentFunc, c.currentRetSlot, c.currentExit, c.funcs, c.loopStack
	defer func() {
		c.currentFunc, c.currentRetSlot, c.currentExit, c.funcs, c.loopStack = prevFunc, prevRet, prevExit, prevFuncs, prevLoopStack
	}()
	c.currentFunc = fi
	c.currentExit = exitBB
	c.funcs = symtable.NewFuncTable()
	c.loopStack = nil
	c.funcs.EnterScope()

	retSlot := c.builder.CreateAlloca(c.llvmType(fi.ReturnType), "_return")
	c.currentRetSlot = retSlot

	params := fi.LLVM.Params()
	for i, arg := range params {
		argType := fi.ParamTypes[i]
		name := fn.Proto.Args[i].Name
		slot := &symtable.Slot{Type: argType, ArgIndex: i}
		if isObjectPointer(argType) {
			// Pass-through: an object pointer argument is bound directly
			// without its own alloca (§4.6).
			slot.Direct = true
			slot.DirectValue = arg
		} else {
			alloca := c.builder.CreateAlloca(c.llvmType(argType), name)
			c.builder.CreateStore(arg, alloca)
			slot.Alloca = alloca
		}
		if err := c.funcs.Declare(name, slot); err != nil {
			return &errs.CodegenError{Msg: err.Error(), Pos: fn.Proto.Pos()}
		}
	}

	val, valType, err := c.lowerExpr(fn.Body)
	if err != nil {
		return err
	}

	if valType != nil {
		coerced, cerr := c.coerceTo(val, valType, fi.ReturnType, fn.Body, fn.Body.Pos())
		if cerr != nil {
			return &errs.CodegenError{
				Msg: fmt.Sprintf("function %q body type %s does not match declared return type %s", fi.Name, valType, fi.ReturnType),
				Pos: fn.Body.Pos(),
			}
		}
		c.builder.CreateStore(coerced, retSlot)
	}

	dropped := c.funcs.ExitScope()
	if err := c.emitAutoDispose(dropped, val); err != nil {
		return err
	}

	c.builder.CreateBr(exitBB)
	c.builder.SetInsertPointAtEnd(exitBB)
	loaded := c.builder.CreateLoad(retSlot, "")
	c.builder.CreateRet(loaded)

	fi.DeclaredOnly = false
	return nil
}

// evalModuleGlobals lowers a top-level `var` declaration into one or
// more module globals. Every name needs a literal-constant initializer
// (§4.6's "constants require an initializer"); array initializers
// follow the same zero-fill/overflow rule as local array declarations.
func (c *CodeGen) evalModuleGlobals(vl *ast.VarList) error {
	for _, nm := range vl.Names {
		if nm.Initializer == nil {
			return &errs.CodegenError{Msg: fmt.Sprintf("global %q requires an initializer", nm.ID), Pos: nm.Pos()}
		}
		declType, llvmVal, err := c.constExprValue(nm)
		if err != nil {
			return err
		}
		g := llvm.AddGlobal(c.mod, c.llvmType(declType), nm.ID)
		g.SetInitializer(llvmVal)
		if err := c.module.DeclareGlobal(nm.ID, &symtable.Global{LLVM: g, Type: declType, Const: false}); err != nil {
			return &errs.CodegenError{Msg: err.Error(), Pos: nm.Pos()}
		}
	}
	return nil
}

func isObjectPointer(t types.Type) bool {
	p, ok := t.(*types.Pointer)
	if !ok {
		return false
	}
	_, isObj := p.Pointee.(*types.Object)
	return isObj
}

func isTrackedType(t types.Type) bool {
	if _, ok := t.(*types.Object); ok {
		return true
	}
	return isObjectPointer(t)
}
