package codegen

import (
	"fmt"

	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/types"
	"tinygo.org/x/go-llvm"
)

// lowerBinOp implements arithmetic/bitwise/logical BinOp nodes (§4.6):
// evaluate both sides, unify their types per the promotion rules, then
// dispatch to the LLVM instruction matching the operator and the common
// type's kind.
func (c *CodeGen) lowerBinOp(n *ast.BinOp) (llvm.Value, types.Type, error) {
	lv, lt, err := c.lowerExpr(n.LHS)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	rv, rt, err := c.lowerExpr(n.RHS)
	if err != nil {
		return llvm.Value{}, nil, err
	}

	if n.Op == "and" || n.Op == "or" {
		lb, err := c.toBool(lv, lt, n.LHS, n.Pos())
		if err != nil {
			return llvm.Value{}, nil, err
		}
		rb, err := c.toBool(rv, rt, n.RHS, n.Pos())
		if err != nil {
			return llvm.Value{}, nil, err
		}
		if n.Op == "and" {
			return c.builder.CreateAnd(lb, rb, ""), c.reg.Bool(), nil
		}
		return c.builder.CreateOr(lb, rb, ""), c.reg.Bool(), nil
	}

	common, err := c.promote(lt, rt, n.LHS, n.RHS, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}
	lv, err = c.coerceTo(lv, lt, common, n.LHS, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}
	rv, err = c.coerceTo(rv, rt, common, n.RHS, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}

	p, ok := common.(*types.Primitive)
	if !ok {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("operator %q is not defined on %s", n.Op, common), Pos: n.Pos()}
	}

	switch n.Op {
	case "+":
		if p.Kind == types.Float {
			return c.builder.CreateFAdd(lv, rv, ""), common, nil
		}
		return c.builder.CreateAdd(lv, rv, ""), common, nil
	case "-":
		if p.Kind == types.Float {
			return c.builder.CreateFSub(lv, rv, ""), common, nil
		}
		return c.builder.CreateSub(lv, rv, ""), common, nil
	case "*":
		if p.Kind == types.Float {
			return c.builder.CreateFMul(lv, rv, ""), common, nil
		}
		return c.builder.CreateMul(lv, rv, ""), common, nil
	case "/":
		if p.Kind == types.Float {
			return c.builder.CreateFDiv(lv, rv, ""), common, nil
		}
		if p.Kind == types.SignedInt {
			return c.builder.CreateSDiv(lv, rv, ""), common, nil
		}
		return c.builder.CreateUDiv(lv, rv, ""), common, nil
	case "//":
		// Integer division, even over float operands: float operands are
		// converted to i32 first (§4.4's source surface lists
		// `//` as the distinct integer-div operator from `/`).
		return c.lowerIntDiv(lv, rv, p, n)
	case "&":
		return c.builder.CreateAnd(lv, rv, ""), common, nil
	case "|":
		return c.builder.CreateOr(lv, rv, ""), common, nil
	default:
		return llvm.Value{}, nil, &errs.InternalError{Msg: fmt.Sprintf("unrecognized binary operator %q", n.Op)}
	}
}

func (c *CodeGen) lowerIntDiv(lv, rv llvm.Value, p *types.Primitive, n *ast.BinOp) (llvm.Value, types.Type, error) {
	if p.Kind != types.Float {
		if p.Kind == types.SignedInt {
			return c.builder.CreateSDiv(lv, rv, ""), p, nil
		}
		return c.builder.CreateUDiv(lv, rv, ""), p, nil
	}
	i32 := c.reg.I32()
	li := c.builder.CreateFPToSI(lv, c.llvmType(i32), "")
	ri := c.builder.CreateFPToSI(rv, c.llvmType(i32), "")
	return c.builder.CreateSDiv(li, ri, ""), i32, nil
}

// lowerBinOpComparison implements §4.6's comparison lowering: unify
// operand types, then choose icmp/fcmp with the predicate matching the
// operator and signedness. The result is always bool.
func (c *CodeGen) lowerBinOpComparison(n *ast.BinOpComparison) (llvm.Value, types.Type, error) {
	lv, lt, err := c.lowerExpr(n.LHS)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	rv, rt, err := c.lowerExpr(n.RHS)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	common, err := c.promote(lt, rt, n.LHS, n.RHS, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}
	lv, err = c.coerceTo(lv, lt, common, n.LHS, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}
	rv, err = c.coerceTo(rv, rt, common, n.RHS, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}
	p, ok := common.(*types.Primitive)
	if !ok {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("cannot compare %s", common), Pos: n.Pos()}
	}
	boolT := c.reg.Bool()
	if p.Kind == types.Float {
		pred, err := floatPredicate(n.Op)
		if err != nil {
			return llvm.Value{}, nil, &errs.CodegenError{Msg: err.Error(), Pos: n.Pos()}
		}
		return c.builder.CreateFCmp(pred, lv, rv, ""), boolT, nil
	}
	pred, err := intPredicate(n.Op, p.Kind == types.SignedInt)
	if err != nil {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: err.Error(), Pos: n.Pos()}
	}
	return c.builder.CreateICmp(pred, lv, rv, ""), boolT, nil
}

func intPredicate(op string, signed bool) (llvm.IntPredicate, error) {
	switch op {
	case "==":
		return llvm.IntEQ, nil
	case "!=":
		return llvm.IntNE, nil
	case "<":
		if signed {
			return llvm.IntSLT, nil
		}
		return llvm.IntULT, nil
	case "<=":
		if signed {
			return llvm.IntSLE, nil
		}
		return llvm.IntULE, nil
	case ">":
		if signed {
			return llvm.IntSGT, nil
		}
		return llvm.IntUGT, nil
	case ">=":
		if signed {
			return llvm.IntSGE, nil
		}
		return llvm.IntUGE, nil
	default:
		return 0, fmt.Errorf("unrecognized comparison operator %q", op)
	}
}

func floatPredicate(op string) (llvm.FloatPredicate, error) {
	switch op {
	case "==":
		return llvm.FloatOEQ, nil
	case "!=":
		return llvm.FloatONE, nil
	case "<":
		return llvm.FloatOLT, nil
	case "<=":
		return llvm.FloatOLE, nil
	case ">":
		return llvm.FloatOGT, nil
	case ">=":
		return llvm.FloatOGE, nil
	default:
		return 0, fmt.Errorf("unrecognized comparison operator %q", op)
	}
}

// lowerCall resolves a call by mangled argument-type signature (§4.5)
// and emits it with the callee's own calling convention. Missing
// trailing arguments are filled from the callee's registered default
// expressions when a shorter prefix matches (§4.5's two-tier lookup).
func (c *CodeGen) lowerCall(n *ast.Call) (llvm.Value, types.Type, error) {
	argVals := make([]llvm.Value, len(n.Args))
	argTypes := make([]types.Type, len(n.Args))
	for i, a := range n.Args {
		v, t, err := c.lowerExpr(a)
		if err != nil {
			return llvm.Value{}, nil, err
		}
		argVals[i] = v
		argTypes[i] = t
	}

	fi, err := c.module.Resolve(n.Name, argTypes)
	if err != nil {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: err.Error(), Pos: n.Pos()}
	}

	finalArgs := make([]llvm.Value, len(fi.ParamTypes))
	for i, pt := range fi.ParamTypes {
		if i < len(argVals) {
			coerced, err := c.coerceTo(argVals[i], argTypes[i], pt, n.Args[i], n.Pos())
			if err != nil {
				return llvm.Value{}, nil, err
			}
			finalArgs[i] = coerced
			continue
		}
		dv, dt, err := c.lowerExpr(fi.Defaults[i])
		if err != nil {
			return llvm.Value{}, nil, err
		}
		coerced, err := c.coerceTo(dv, dt, pt, fi.Defaults[i], n.Pos())
		if err != nil {
			return llvm.Value{}, nil, err
		}
		finalArgs[i] = coerced
	}

	call := c.builder.CreateCall(fi.LLVM, finalArgs, "")
	call.SetInstructionCallConv(fi.LLVM.FunctionCallConv())
	return call, fi.ReturnType, nil
}

// lowerRefExpr implements `ptr x`: the address of an addressable Name.
func (c *CodeGen) lowerRefExpr(n *ast.RefExpr) (llvm.Value, types.Type, error) {
	name, ok := n.Operand.(*ast.Name)
	if !ok {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: "ptr requires a named variable operand", Pos: n.Pos()}
	}
	addr, t, err := c.nameSlotAddr(name)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	return addr, c.reg.Pointer(t, 0), nil
}

// lowerDerefExpr dereferences a pointer-typed operand.
func (c *CodeGen) lowerDerefExpr(n *ast.DerefExpr) (llvm.Value, types.Type, error) {
	val, t, err := c.lowerExpr(n.Operand)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	ptr, ok := t.(*types.Pointer)
	if !ok {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("cannot dereference non-pointer type %s", t), Pos: n.Pos()}
	}
	return c.builder.CreateLoad(val, ""), ptr.Pointee, nil
}

// headerFieldIndex maps the canonical object_header field names to their
// struct index (§3, §6), for ChainExpr access like `s.size`.
var headerFieldIndex = map[string]int{
	"size": 0, "data_ptr": 1, "refcount": 2, "data_is_dyn": 3, "obj_is_dyn": 4,
}

// lowerChainExpr folds a dotted chain left to right (§4.6): a trailing
// Call segment dispatches as a method call with the receiver prepended
// as the first argument; a trailing Name segment resolves a field on
// the preceding object — only the canonical header fields are modeled,
// since spec.md's Object type carries field types but no field names
// (user-defined named fields have no declaration grammar in this
// language's source-level surface, §6).
func (c *CodeGen) lowerChainExpr(n *ast.ChainExpr) (llvm.Value, types.Type, error) {
	if len(n.Exprs) == 0 {
		return llvm.Value{}, nil, &errs.InternalError{Msg: "empty ChainExpr"}
	}
	val, t, err := c.lowerExpr(n.Exprs[0])
	if err != nil {
		return llvm.Value{}, nil, err
	}
	for _, seg := range n.Exprs[1:] {
		switch s := seg.(type) {
		case *ast.Call:
			val, t, err = c.lowerMethodCall(val, t, s)
		case *ast.Name:
			val, t, err = c.lowerFieldAccess(val, t, s)
		default:
			return llvm.Value{}, nil, &errs.CodegenError{Msg: "chain expression segment must be a name or call", Pos: seg.Pos()}
		}
		if err != nil {
			return llvm.Value{}, nil, err
		}
	}
	return val, t, nil
}

func (c *CodeGen) lowerFieldAccess(recv llvm.Value, recvType types.Type, field *ast.Name) (llvm.Value, types.Type, error) {
	ptr, ok := recvType.(*types.Pointer)
	if !ok {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("cannot access field %q on non-pointer type %s", field.ID, recvType), Pos: field.Pos()}
	}
	obj, ok := ptr.Pointee.(*types.Object)
	if !ok {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("cannot access field %q on non-object type %s", field.ID, ptr.Pointee), Pos: field.Pos()}
	}
	idx, ok := headerFieldIndex[field.ID]
	if !ok || idx >= len(obj.Fields) {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("object %s has no field %q", obj.Name, field.ID), Pos: field.Pos()}
	}
	addr := c.builder.CreateStructGEP(recv, idx, "")
	return c.builder.CreateLoad(addr, ""), obj.Fields[idx], nil
}

// lowerMethodCall dispatches `recv.name(args...)` as a call to the
// mangled symbol `name$ReceiverType_argTypes...` with recv prepended as
// the first argument (§4.6).
func (c *CodeGen) lowerMethodCall(recv llvm.Value, recvType types.Type, call *ast.Call) (llvm.Value, types.Type, error) {
	argVals := make([]llvm.Value, len(call.Args)+1)
	argTypes := make([]types.Type, len(call.Args)+1)
	argVals[0] = recv
	argTypes[0] = recvType
	for i, a := range call.Args {
		v, t, err := c.lowerExpr(a)
		if err != nil {
			return llvm.Value{}, nil, err
		}
		argVals[i+1] = v
		argTypes[i+1] = t
	}
	fi, err := c.module.Resolve(call.Name, argTypes)
	if err != nil {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: err.Error(), Pos: call.Pos()}
	}
	finalArgs := make([]llvm.Value, len(argVals))
	for i := range argVals {
		coerced, err := c.coerceTo(argVals[i], argTypes[i], fi.ParamTypes[i], call, call.Pos())
		if err != nil {
			return llvm.Value{}, nil, err
		}
		finalArgs[i] = coerced
	}
	out := c.builder.CreateCall(fi.LLVM, finalArgs, "")
	out.SetInstructionCallConv(fi.LLVM.FunctionCallConv())
	return out, fi.ReturnType, nil
}
