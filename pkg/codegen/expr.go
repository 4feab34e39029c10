package codegen

import (
	"fmt"
	"math"

	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/position"
	"github.com/akilang/akic/pkg/types"
	"tinygo.org/x/go-llvm"
)

// lowerExpr dispatches one expression node to its LLVM value and
// canonical type (§4.6's "Expression lowering"). A nil returned type
// means the expression yields no value (a WhenExpr with no else, or a
// LoopExpr; a Break returns *errs.BlockExit instead); callers in value
// position must reject
// that, callers in statement position (ExpressionBlock, a function
// body whose tail is void) accept it.
func (c *CodeGen) lowerExpr(e ast.Expr) (llvm.Value, types.Type, error) {
	switch n := e.(type) {
	case *ast.Constant:
		return c.lowerConstant(n)
	case *ast.String:
		return c.lowerString(n)
	case *ast.Name:
		return c.lowerName(n)
	case *ast.UnOp:
		return c.lowerUnOp(n)
	case *ast.BinOp:
		return c.lowerBinOp(n)
	case *ast.BinOpComparison:
		return c.lowerBinOpComparison(n)
	case *ast.Call:
		return c.lowerCall(n)
	case *ast.ChainExpr:
		return c.lowerChainExpr(n)
	case *ast.RefExpr:
		return c.lowerRefExpr(n)
	case *ast.DerefExpr:
		return c.lowerDerefExpr(n)
	case *ast.Assignment:
		return c.lowerAssignment(n)
	case *ast.VarList:
		return c.lowerVarList(n)
	case *ast.ExpressionBlock:
		return c.lowerExpressionBlock(n)
	case *ast.IfExpr:
		return c.lowerIfExpr(n)
	case *ast.WhenExpr:
		return c.lowerWhenExpr(n)
	case *ast.LoopExpr:
		return c.lowerLoopExpr(n)
	case *ast.Break:
		return c.lowerBreak(n)
	case *ast.WithExpr:
		return c.lowerWithExpr(n)
	default:
		return llvm.Value{}, nil, &errs.InternalError{Msg: fmt.Sprintf("unrecognized expression node %T", e)}
	}
}

func (c *CodeGen) lowerConstant(n *ast.Constant) (llvm.Value, types.Type, error) {
	typeName := n.TypeName
	if typeName == "" {
		typeName = "i32"
	}
	t, err := c.reg.ResolveName(typeName)
	if err != nil {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: err.Error(), Pos: n.Pos()}
	}
	p, ok := t.(*types.Primitive)
	if !ok {
		return llvm.Value{}, nil, &errs.InternalError{Msg: fmt.Sprintf("literal type %q is not primitive", typeName)}
	}
	lt := c.llvmType(t)
	if p.Kind == types.Float {
		f := math.Float64frombits(n.Value)
		return llvm.ConstFloat(lt, f), t, nil
	}
	return llvm.ConstInt(lt, n.Value, p.Signed), t, nil
}

// lowerString lowers a string literal to a pointer to a stack-built `str`
// object (§6's header+payload composite): a private global constant
// backs the byte payload, and the object header is populated with that
// payload's address and length. The literal's data is static, so
// data_is_dyn/obj_is_dyn are both false and the value is never tracked
// for auto-dispose.
func (c *CodeGen) lowerString(n *ast.String) (llvm.Value, types.Type, error) {
	strType := c.strObjectType()
	global := c.builder.CreateGlobalStringPtr(string(n.Bytes), "")

	objAlloca := c.builder.CreateAlloca(c.llvmType(strType), "")
	c.storeHeader(objAlloca, strType, uint64(len(n.Bytes)), global, 1, false, false)

	return objAlloca, c.reg.Pointer(strType, 0), nil
}

// strObjectType returns the canonical built-in `str` Object type,
// registering it on first use.
func (c *CodeGen) strObjectType() *types.Object {
	if o, ok := c.reg.LookupClass("str"); ok {
		return o
	}
	return c.reg.Class("str", nil)
}

// storeHeader populates the canonical object_header prefix (§3, §6) of
// the struct at addr: {size, data_ptr, refcount, data_is_dyn, obj_is_dyn}.
func (c *CodeGen) storeHeader(addr llvm.Value, o *types.Object, size uint64, dataPtr llvm.Value, refcount uint64, dataIsDyn, objIsDyn bool) {
	sizeField := c.builder.CreateStructGEP(addr, 0, "")
	c.builder.CreateStore(llvm.ConstInt(c.llvmType(c.reg.USize()), size, false), sizeField)

	dataField := c.builder.CreateStructGEP(addr, 1, "")
	c.builder.CreateStore(dataPtr, dataField)

	refField := c.builder.CreateStructGEP(addr, 2, "")
	c.builder.CreateStore(llvm.ConstInt(c.llvmType(c.reg.USize()), refcount, false), refField)

	dataDynField := c.builder.CreateStructGEP(addr, 3, "")
	c.builder.CreateStore(llvm.ConstInt(c.ctx.Int1Type(), boolToUint64(dataIsDyn), false), dataDynField)

	objDynField := c.builder.CreateStructGEP(addr, 4, "")
	c.builder.CreateStore(llvm.ConstInt(c.ctx.Int1Type(), boolToUint64(objIsDyn), false), objDynField)
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// lowerName resolves a variable reference: a local slot first, falling
// back to a module global. A Direct (object-pointer argument) slot
// yields its bound value without a load (§4.6).
func (c *CodeGen) lowerName(n *ast.Name) (llvm.Value, types.Type, error) {
	if slot, ok := c.funcs.Lookup(n.ID); ok {
		if slot.Direct {
			return slot.DirectValue, slot.Type, nil
		}
		return c.builder.CreateLoad(slot.Alloca, ""), slot.Type, nil
	}
	if g, ok := c.module.LookupGlobal(n.ID); ok {
		return c.builder.CreateLoad(g.LLVM, ""), g.Type, nil
	}
	return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("undefined name %q", n.ID), Pos: n.Pos()}
}

// nameSlotAddr returns the addressable storage for a Name: its alloca
// (RefExpr/Assignment targets), erroring for a Direct slot (an object
// pointer argument has no address of its own to take — it already is
// one) or an undeclared/global name (globals are l-values too, handled
// separately by callers that need them).
func (c *CodeGen) nameSlotAddr(n *ast.Name) (llvm.Value, types.Type, error) {
	if slot, ok := c.funcs.Lookup(n.ID); ok {
		if slot.Direct {
			return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("cannot take the address of parameter %q", n.ID), Pos: n.Pos()}
		}
		return slot.Alloca, slot.Type, nil
	}
	if g, ok := c.module.LookupGlobal(n.ID); ok {
		return g.LLVM, g.Type, nil
	}
	return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("undefined name %q", n.ID), Pos: n.Pos()}
}

// lowerUnOp implements `-x` (0 - x, per operand kind) and `not x`
// (logical negation on bool, promoting if necessary) — §4.6.
func (c *CodeGen) lowerUnOp(n *ast.UnOp) (llvm.Value, types.Type, error) {
	val, t, err := c.lowerExpr(n.Operand)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	switch n.Op {
	case "-":
		p, ok := t.(*types.Primitive)
		if !ok {
			return llvm.Value{}, nil, &errs.CodegenError{Msg: fmt.Sprintf("cannot negate non-numeric type %s", t), Pos: n.Pos()}
		}
		if p.Kind == types.Float {
			return c.builder.CreateFSub(llvm.ConstFloat(c.llvmType(t), 0), val, ""), t, nil
		}
		return c.builder.CreateSub(llvm.ConstInt(c.llvmType(t), 0, p.Signed), val, ""), t, nil
	case "not":
		boolT := c.reg.Bool()
		coerced, err := c.toBool(val, t, n.Operand, n.Pos())
		if err != nil {
			return llvm.Value{}, nil, err
		}
		return c.builder.CreateNot(coerced, ""), boolT, nil
	default:
		return llvm.Value{}, nil, &errs.InternalError{Msg: fmt.Sprintf("unrecognized unary operator %q", n.Op)}
	}
}

// toBool coerces a scalar value to a 1-bit boolean: bools pass through,
// other integers/floats compare not-equal-to-zero.
func (c *CodeGen) toBool(val llvm.Value, t types.Type, node ast.Node, pos position.Position) (llvm.Value, error) {
	p, ok := t.(*types.Primitive)
	if !ok {
		return llvm.Value{}, &errs.CodegenError{Msg: fmt.Sprintf("cannot use %s as a condition", t), Pos: pos}
	}
	if p.Kind == types.Bool {
		return val, nil
	}
	if p.Kind == types.Float {
		return c.builder.CreateFCmp(llvm.FloatONE, val, llvm.ConstFloat(c.llvmType(t), 0), ""), nil
	}
	return c.builder.CreateICmp(llvm.IntNE, val, llvm.ConstInt(c.llvmType(t), 0, p.Signed), ""), nil
}
