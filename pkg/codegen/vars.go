package codegen

import (
	"fmt"

	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/position"
	"github.com/akilang/akic/pkg/symtable"
	"github.com/akilang/akic/pkg/types"
	"tinygo.org/x/go-llvm"
)

// lowerVarList declares every binding in a `var a [:T] [= init], …`
// expression in the current (innermost) scope, returning the value of
// the last one — matching the teacher/spec's treatment of `var` as an
// expression, not a bare statement.
func (c *CodeGen) lowerVarList(n *ast.VarList) (llvm.Value, types.Type, error) {
	var val llvm.Value
	var t types.Type
	for _, nm := range n.Names {
		v, vt, err := c.declareLocalValue(nm)
		if err != nil {
			return llvm.Value{}, nil, err
		}
		val, t = v, vt
	}
	return val, t, nil
}

// declareLocal declares nm without needing its resulting value (used by
// WithExpr, whose bindings are not themselves the with-expression's
// value).
func (c *CodeGen) declareLocal(nm *ast.Name) error {
	_, _, err := c.declareLocalValue(nm)
	return err
}

// declareLocalValue implements one `var`/`with` binding: resolve (or
// infer from the initializer) its type, allocate a slot, lower and
// coerce the initializer if present, and declare it in the current
// scope. Array-typed bindings with a bracketed initializer follow §4.2's
// zero-fill/overflow rule.
func (c *CodeGen) declareLocalValue(nm *ast.Name) (llvm.Value, types.Type, error) {
	declType, err := c.reg.Resolve(nm.DeclaredType)
	if err != nil {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: err.Error(), Pos: nm.Pos()}
	}

	if arrLit, ok := nm.Initializer.(*ast.ArrayLiteral); ok {
		arrType, ok := declType.(*types.Array)
		if !ok {
			if _, isUnset := declType.(*types.Unset); !isUnset {
				return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("array initializer assigned to non-array type %s", declType), Pos: nm.Pos()}
			}
			return llvm.Value{}, nil, &errs.CodegenError{Msg: "array initializer requires a declared array type", Pos: nm.Pos()}
		}
		return c.declareLocalArray(nm, arrType, arrLit)
	}

	var (
		initVal  llvm.Value
		initType types.Type
	)
	if nm.Initializer != nil {
		v, it, err := c.lowerExpr(nm.Initializer)
		if err != nil {
			return llvm.Value{}, nil, err
		}
		initVal, initType = v, it
	}

	if _, isUnset := declType.(*types.Unset); isUnset {
		if nm.Initializer == nil {
			return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("variable %q needs a declared type or an initializer", nm.ID), Pos: nm.Pos()}
		}
		declType = initType
	}

	alloca := c.builder.CreateAlloca(c.llvmType(declType), nm.ID)
	if nm.Initializer != nil {
		coerced, err := c.coerceTo(initVal, initType, declType, nm.Initializer, nm.Pos())
		if err != nil {
			return llvm.Value{}, nil, err
		}
		c.builder.CreateStore(coerced, alloca)
	}

	slot := &symtable.Slot{Alloca: alloca, Type: declType, ArgIndex: -1, Tracked: isTrackedType(declType)}
	if err := c.funcs.Declare(nm.ID, slot); err != nil {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: err.Error(), Pos: nm.Pos()}
	}
	val := llvm.Value(c.builder.CreateLoad(alloca, ""))
	return val, declType, nil
}

// declareLocalArray implements §4.2's array-initializer rule for a local
// binding: a declared length of 0 is fixed to the initializer's element
// count; a shorter initializer zero-fills the remainder and warns; a
// longer one is a hard error.
func (c *CodeGen) declareLocalArray(nm *ast.Name, arrType *types.Array, lit *ast.ArrayLiteral) (llvm.Value, types.Type, error) {
	n := len(lit.Elems)
	finalType := arrType
	switch {
	case arrType.Length == 0:
		finalType = c.reg.FixArrayLength(arrType, n)
	case n > arrType.Length:
		return llvm.Value{}, nil, &errs.CodegenError{
			Msg: fmt.Sprintf("array initializer has %d elements, exceeding declared length %d", n, arrType.Length),
			Pos: lit.Pos(),
		}
	case n < arrType.Length:
		c.warn(lit, fmt.Sprintf("array initializer has %d elements, short of declared length %d; zero-filling", n, arrType.Length))
	}

	alloca := c.builder.CreateAlloca(c.llvmType(finalType), nm.ID)
	for i := 0; i < finalType.Length; i++ {
		idx := llvm.ConstInt(c.ctx.Int32Type(), uint64(i), false)
		elemPtr := c.builder.CreateGEP(alloca, []llvm.Value{llvm.ConstInt(c.ctx.Int32Type(), 0, false), idx}, "")
		if i < n {
			ev, et, err := c.lowerExpr(lit.Elems[i])
			if err != nil {
				return llvm.Value{}, nil, err
			}
			coerced, err := c.coerceTo(ev, et, finalType.Element, lit.Elems[i], lit.Pos())
			if err != nil {
				return llvm.Value{}, nil, err
			}
			c.builder.CreateStore(coerced, elemPtr)
		} else {
			c.builder.CreateStore(llvm.ConstNull(c.llvmType(finalType.Element)), elemPtr)
		}
	}

	slot := &symtable.Slot{Alloca: alloca, Type: finalType, ArgIndex: -1}
	if err := c.funcs.Declare(nm.ID, slot); err != nil {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: err.Error(), Pos: nm.Pos()}
	}
	return alloca, finalType, nil
}

// lowerAssignment implements `target = value` (`+=`/`-=` have already
// been desugared into this form by the parser). The target is always a
// plain Name per the grammar.
func (c *CodeGen) lowerAssignment(n *ast.Assignment) (llvm.Value, types.Type, error) {
	targetName, ok := n.Target.(*ast.Name)
	if !ok {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: "assignment target must be a name", Pos: n.Pos()}
	}
	addr, targetType, err := c.nameSlotAddr(targetName)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	val, valType, err := c.lowerExpr(n.Value)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	coerced, err := c.coerceTo(val, valType, targetType, n.Value, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}
	c.builder.CreateStore(coerced, addr)
	return coerced, targetType, nil
}

// emitAutoDispose implements §4.6's scope-exit disposal: every tracked
// slot in dropped (already in reverse declaration order, per
// symtable.FuncTable.ExitScope) whose value is not the scope's returned
// value gets a call to its type's `__del__` routine.
func (c *CodeGen) emitAutoDispose(dropped []*symtable.Slot, returned llvm.Value) error {
	for _, slot := range dropped {
		if !slot.Tracked {
			continue
		}
		// The returned value, when it comes from this slot, is a load
		// through the slot's alloca.
		if !returned.IsNil() && !returned.IsALoadInst().IsNil() && returned.Operand(0) == slot.Alloca {
			continue
		}
		val := c.builder.CreateLoad(slot.Alloca, "")
		if err := c.emitDispose(val, slot.Type); err != nil {
			return err
		}
	}
	return nil
}

// emitDispose calls the disposed type's `__del__` routine if the module
// has registered one; types with no registered destructor (this
// compiler never auto-generates one — only an explicitly defined
// `__del__$T` function backs disposal) are left alone, matching the
// spec's "auto-dispose... emit a call to the type's __del__ routine"
// without inventing a default-destructor synthesis step it never
// describes.
func (c *CodeGen) emitDispose(val llvm.Value, t types.Type) error {
	fi, err := c.module.Resolve("__del__", []types.Type{t})
	if err != nil {
		return nil
	}
	call := c.builder.CreateCall(fi.LLVM, []llvm.Value{val}, "")
	call.SetInstructionCallConv(fi.LLVM.FunctionCallConv())
	return nil
}

// inferType determines the type an anonymous function's body evaluates
// to without retaining any emitted IR: it lowers the body into a
// throwaway scratch function, reads off the resulting type, then erases
// the scratch function entirely (§4.6: "the return type is inferred").
func (c *CodeGen) inferType(body ast.Expr) (types.Type, error) {
	scratchType := llvm.FunctionType(c.ctx.VoidType(), nil, false)
	scratchFn := llvm.AddFunction(c.mod, "__infer_scratch", scratchType)
	defer scratchFn.EraseFromParentAsFunction()

	entry := llvm.AddBasicBlock(scratchFn, "entry")
	prevBlock := c.builder.GetInsertBlock()
	prevFuncs, prevLoopStack, prevFunc := c.funcs, c.loopStack, c.currentFunc
	defer func() {
		c.funcs, c.loopStack, c.currentFunc = prevFuncs, prevLoopStack, prevFunc
		if !prevBlock.IsNil() {
			c.builder.SetInsertPointAtEnd(prevBlock)
		}
	}()

	c.funcs = symtable.NewFuncTable()
	c.funcs.EnterScope()
	c.loopStack = nil
	c.currentFunc = &symtable.FuncInfo{LLVM: scratchFn, Name: "__infer_scratch"}
	c.builder.SetInsertPointAtEnd(entry)

	_, t, err := c.lowerExpr(body)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("cannot infer a return type for a value-less body")
	}
	return t, nil
}

// constExprValue evaluates a module-level `var` initializer to a
// compile-time LLVM constant for use as a global's initializer (§4.6:
// "constants require an initializer"). Array initializers produce the
// canonical zero-fill/overflow behavior of §4.2 against a constant
// array instead of instructions into a function body.
func (c *CodeGen) constExprValue(nm *ast.Name) (types.Type, llvm.Value, error) {
	declType, err := c.reg.Resolve(nm.DeclaredType)
	if err != nil {
		return nil, llvm.Value{}, &errs.CodegenError{Msg: err.Error(), Pos: nm.Pos()}
	}

	if arrLit, ok := nm.Initializer.(*ast.ArrayLiteral); ok {
		arrType, ok := declType.(*types.Array)
		if !ok {
			return nil, llvm.Value{}, &errs.CodegenError{Msg: "array initializer requires a declared array type", Pos: nm.Pos()}
		}
		return c.constArrayValue(nm, arrType, arrLit)
	}

	val, initType, err := c.inferConstType(nm.Initializer)
	if err != nil {
		return nil, llvm.Value{}, err
	}
	if _, isUnset := declType.(*types.Unset); isUnset {
		declType = initType
	} else {
		val, err = c.constCoerce(val, initType, declType, nm.Pos())
		if err != nil {
			return nil, llvm.Value{}, err
		}
	}
	return declType, val, nil
}

// constCoerce is coerceTo's compile-time-constant counterpart: it uses
// llvm.Const* conversions rather than c.builder instructions, since a
// global initializer has no surrounding basic block to insert into.
func (c *CodeGen) constCoerce(val llvm.Value, from, to types.Type, pos position.Position) (llvm.Value, error) {
	if from.Equal(to) {
		return val, nil
	}
	fp, fok := from.(*types.Primitive)
	tp, tok := to.(*types.Primitive)
	if !fok || !tok {
		return llvm.Value{}, &errs.CodegenError{Msg: fmt.Sprintf("cannot coerce %s to %s", from, to), Pos: pos}
	}
	dst := c.llvmType(to)
	switch {
	case fp.Kind == types.Float && tp.Kind == types.Float:
		return llvm.ConstFPCast(val, dst), nil
	case fp.Kind == types.Float && tp.Kind != types.Float:
		if tp.Kind == types.SignedInt {
			return llvm.ConstFPToSI(val, dst), nil
		}
		return llvm.ConstFPToUI(val, dst), nil
	case fp.Kind != types.Float && tp.Kind == types.Float:
		if fp.Kind == types.SignedInt {
			return llvm.ConstSIToFP(val, dst), nil
		}
		return llvm.ConstUIToFP(val, dst), nil
	default:
		return llvm.ConstIntCast(val, dst, fp.Kind == types.SignedInt), nil
	}
}

func (c *CodeGen) constArrayValue(nm *ast.Name, arrType *types.Array, lit *ast.ArrayLiteral) (types.Type, llvm.Value, error) {
	n := len(lit.Elems)
	finalType := arrType
	switch {
	case arrType.Length == 0:
		finalType = c.reg.FixArrayLength(arrType, n)
	case n > arrType.Length:
		return nil, llvm.Value{}, &errs.CodegenError{
			Msg: fmt.Sprintf("array initializer has %d elements, exceeding declared length %d", n, arrType.Length),
			Pos: lit.Pos(),
		}
	case n < arrType.Length:
		c.warn(lit, fmt.Sprintf("array initializer has %d elements, short of declared length %d; zero-filling", n, arrType.Length))
	}

	elems := make([]llvm.Value, finalType.Length)
	for i := 0; i < finalType.Length; i++ {
		if i < n {
			v, et, err := c.inferConstType(lit.Elems[i])
			if err != nil {
				return nil, llvm.Value{}, err
			}
			coerced, err := c.constCoerce(v, et, finalType.Element, lit.Elems[i].Pos())
			if err != nil {
				return nil, llvm.Value{}, err
			}
			elems[i] = coerced
		} else {
			elems[i] = llvm.ConstNull(c.llvmType(finalType.Element))
		}
	}
	return finalType, llvm.ConstArray(c.llvmType(finalType.Element), elems), nil
}

// inferConstType evaluates e to a true LLVM constant value (never an
// instruction): globals are emitted with no surrounding basic block, so
// unlike function-body lowering this cannot go through c.builder, which
// requires a valid insertion point.
func (c *CodeGen) inferConstType(e ast.Expr) (llvm.Value, types.Type, error) {
	switch n := e.(type) {
	case *ast.Constant:
		return c.lowerConstant(n)
	case *ast.UnOp:
		v, t, err := c.inferConstType(n.Operand)
		if err != nil {
			return llvm.Value{}, nil, err
		}
		p, ok := t.(*types.Primitive)
		if !ok {
			return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("cannot apply %q to non-numeric constant type %s", n.Op, t), Pos: n.Pos()}
		}
		switch n.Op {
		case "-":
			if p.Kind == types.Float {
				return llvm.ConstFNeg(v), t, nil
			}
			return llvm.ConstNeg(v), t, nil
		case "not":
			return llvm.ConstNot(v), c.reg.Bool(), nil
		default:
			return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("unsupported constant operator %q", n.Op), Pos: n.Pos()}
		}
	case *ast.BinOp:
		lv, lt, err := c.inferConstType(n.LHS)
		if err != nil {
			return llvm.Value{}, nil, err
		}
		rv, rt, err := c.inferConstType(n.RHS)
		if err != nil {
			return llvm.Value{}, nil, err
		}
		common, err := c.promote(lt, rt, n.LHS, n.RHS, n.Pos())
		if err != nil {
			return llvm.Value{}, nil, err
		}
		p, ok := common.(*types.Primitive)
		if !ok {
			return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("operator %q is not defined on %s", n.Op, common), Pos: n.Pos()}
		}
		isFloat := p.Kind == types.Float
		switch n.Op {
		case "+":
			if isFloat {
				return llvm.ConstFAdd(lv, rv), common, nil
			}
			return llvm.ConstAdd(lv, rv), common, nil
		case "-":
			if isFloat {
				return llvm.ConstFSub(lv, rv), common, nil
			}
			return llvm.ConstSub(lv, rv), common, nil
		case "*":
			if isFloat {
				return llvm.ConstFMul(lv, rv), common, nil
			}
			return llvm.ConstMul(lv, rv), common, nil
		case "&":
			return llvm.ConstAnd(lv, rv), common, nil
		case "|":
			return llvm.ConstOr(lv, rv), common, nil
		default:
			return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("operator %q is not a compile-time constant expression", n.Op), Pos: n.Pos()}
		}
	default:
		return llvm.Value{}, nil, &errs.CodegenError{Msg: "global initializer must be a compile-time constant expression", Pos: e.Pos()}
	}
}
