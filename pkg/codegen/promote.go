package codegen

import (
	"fmt"

	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/position"
	"github.com/akilang/akic/pkg/types"
	"tinygo.org/x/go-llvm"
)

// isLiteral reports whether node is a Constant, the only case §4.6's
// "unless one side is a literal that fits" promotion exception applies
// to.
func isLiteral(node ast.Expr) bool {
	_, ok := node.(*ast.Constant)
	return ok
}

// promote implements §4.6's implicit-cast rules for a BinOp/BinOpComparison
// pair: same-signedness integers widen to the wider; mixed signed/unsigned
// is an error unless one side is a literal that fits the other's type;
// integer vs. float widens the integer to the float's width. It returns
// the common type both operands must be coerced to.
func (c *CodeGen) promote(lt, rt types.Type, lNode, rNode ast.Expr, pos position.Position) (types.Type, error) {
	lp, lok := lt.(*types.Primitive)
	rp, rok := rt.(*types.Primitive)
	if !lok || !rok {
		if lt.Equal(rt) {
			return lt, nil
		}
		return nil, &errs.CodegenError{Msg: fmt.Sprintf("cannot unify types %s and %s", lt, rt), Pos: pos}
	}

	if lp.Kind == types.Float || rp.Kind == types.Float {
		if lp.Kind == types.Float && rp.Kind == types.Float {
			if lp.Bits >= rp.Bits {
				return lp, nil
			}
			return rp, nil
		}
		if lp.Kind == types.Float {
			return lp, nil
		}
		return rp, nil
	}

	// Both are integer-family (SignedInt, UnsignedInt, or Bool).
	lSigned := lp.Kind == types.SignedInt
	rSigned := rp.Kind == types.SignedInt
	if lSigned == rSigned {
		if lp.Bits >= rp.Bits {
			return lp, nil
		}
		return rp, nil
	}
	// Mixed signedness: allowed only when one side is a literal (it is
	// taken to fit, since the lexer/parser have no independent way to
	// check literal range against the other operand's width at this
	// stage — matching §4.6's "unless one side is a literal that fits").
	if isLiteral(lNode) {
		return rp, nil
	}
	if isLiteral(rNode) {
		return lp, nil
	}
	return nil, &errs.CodegenError{
		Msg: fmt.Sprintf("cannot mix signed %s and unsigned %s without an explicit cast", lt, rt),
		Pos: pos,
	}
}

// coerceTo converts val (of type from) to type to, inserting the
// necessary widen/narrow/convert instruction. It is used for function
// return coercion, assignment, array-element initializers, and binop
// operand unification.
func (c *CodeGen) coerceTo(val llvm.Value, from, to types.Type, node ast.Node, pos position.Position) (llvm.Value, error) {
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
		if tp.Bits > fp.Bits {
			return c.builder.CreateFPExt(val, dst, ""), nil
		}
		return c.builder.CreateFPTrunc(val, dst, ""), nil
	case fp.Kind == types.Float && tp.Kind != types.Float:
		if tp.Kind == types.SignedInt {
			return c.builder.CreateFPToSI(val, dst, ""), nil
		}
		return c.builder.CreateFPToUI(val, dst, ""), nil
	case fp.Kind != types.Float && tp.Kind == types.Float:
		if fp.Kind == types.SignedInt {
			return c.builder.CreateSIToFP(val, dst, ""), nil
		}
		return c.builder.CreateUIToFP(val, dst, ""), nil
	default:
		// integer-family to integer-family
		if tp.Bits > fp.Bits {
			if fp.Kind == types.SignedInt {
				return c.builder.CreateSExt(val, dst, ""), nil
			}
			return c.builder.CreateZExt(val, dst, ""), nil
		}
		if tp.Bits < fp.Bits {
			return c.builder.CreateTrunc(val, dst, ""), nil
		}
		return val, nil // same width, different signedness: bit pattern unchanged
	}
}
