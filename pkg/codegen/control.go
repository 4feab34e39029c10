package codegen

import (
	"github.com/akilang/akic/pkg/ast"
	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/types"
	"tinygo.org/x/go-llvm"
)

// lowerExpressionBlock lowers `{ expr; expr; ... }`; the block's value
// is that of its last expression (§3). A Break partway through signals
// errs.BlockExit — the current block is already terminated by the
// break's branch, so lowering stops and the signal propagates to the
// loop that owns it without emitting anything further.
func (c *CodeGen) lowerExpressionBlock(n *ast.ExpressionBlock) (llvm.Value, types.Type, error) {
	var val llvm.Value
	var t types.Type
	for _, e := range n.Exprs {
		v, et, err := c.lowerExpr(e)
		if err != nil {
			return llvm.Value{}, nil, err
		}
		val, t = v, et
	}
	return val, t, nil
}

// lowerIfExpr implements §4.6's IfExpr: condition, then/else blocks, and
// a join block the two branches' values phi into. Both branches must
// unify to a common type (or one terminates early via a nested break,
// in which case it contributes nothing to the phi).
func (c *CodeGen) lowerIfExpr(n *ast.IfExpr) (llvm.Value, types.Type, error) {
	condVal, condType, err := c.lowerExpr(n.Cond)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	condBool, err := c.toBool(condVal, condType, n.Cond, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}

	fn := c.currentFunc.LLVM
	thenBB := llvm.AddBasicBlock(fn, "then")
	elseBB := llvm.AddBasicBlock(fn, "else")
	joinBB := llvm.AddBasicBlock(fn, "ifjoin")
	c.builder.CreateCondBr(condBool, thenBB, elseBB)

	c.builder.SetInsertPointAtEnd(thenBB)
	thenVal, thenType, thenErr := c.lowerExpr(n.Then)
	thenExited := isBlockExit(thenErr)
	if thenErr != nil && !thenExited {
		return llvm.Value{}, nil, thenErr
	}
	thenEndBB := c.builder.GetInsertBlock()

	c.builder.SetInsertPointAtEnd(elseBB)
	elseVal, elseType, elseErr := c.lowerExpr(n.Else)
	elseExited := isBlockExit(elseErr)
	if elseErr != nil && !elseExited {
		return llvm.Value{}, nil, elseErr
	}
	elseEndBB := c.builder.GetInsertBlock()

	if thenExited && elseExited {
		return llvm.Value{}, nil, &errs.BlockExit{}
	}
	if thenExited {
		c.builder.SetInsertPointAtEnd(elseEndBB)
		c.builder.CreateBr(joinBB)
		c.builder.SetInsertPointAtEnd(joinBB)
		return elseVal, elseType, nil
	}
	if elseExited {
		c.builder.SetInsertPointAtEnd(thenEndBB)
		c.builder.CreateBr(joinBB)
		c.builder.SetInsertPointAtEnd(joinBB)
		return thenVal, thenType, nil
	}

	common, err := c.promote(thenType, elseType, n.Then, n.Else, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}

	c.builder.SetInsertPointAtEnd(thenEndBB)
	thenCoerced, err := c.coerceTo(thenVal, thenType, common, n.Then, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}
	c.builder.CreateBr(joinBB)

	c.builder.SetInsertPointAtEnd(elseEndBB)
	elseCoerced, err := c.coerceTo(elseVal, elseType, common, n.Else, n.Pos())
	if err != nil {
		return llvm.Value{}, nil, err
	}
	c.builder.CreateBr(joinBB)

	c.builder.SetInsertPointAtEnd(joinBB)
	phi := c.builder.CreatePHI(c.llvmType(common), "")
	phi.AddIncoming([]llvm.Value{thenCoerced, elseCoerced}, []llvm.BasicBlock{thenEndBB, elseEndBB})
	return phi, common, nil
}

func isBlockExit(err error) bool {
	_, ok := err.(*errs.BlockExit)
	return ok
}

// lowerWhenExpr implements the ternary-or-statement WhenExpr (§4.4): a
// WhenExpr with both branches behaves like IfExpr; one with no Else
// yields no value and is only legal in statement position (§4.7's Open
// Question is resolved conservatively here: reject a value-position
// WhenExpr with no else rather than guess its type).
func (c *CodeGen) lowerWhenExpr(n *ast.WhenExpr) (llvm.Value, types.Type, error) {
	if n.Else == nil {
		condVal, condType, err := c.lowerExpr(n.Cond)
		if err != nil {
			return llvm.Value{}, nil, err
		}
		condBool, err := c.toBool(condVal, condType, n.Cond, n.Pos())
		if err != nil {
			return llvm.Value{}, nil, err
		}
		fn := c.currentFunc.LLVM
		thenBB := llvm.AddBasicBlock(fn, "whenthen")
		afterBB := llvm.AddBasicBlock(fn, "whenafter")
		c.builder.CreateCondBr(condBool, thenBB, afterBB)
		c.builder.SetInsertPointAtEnd(thenBB)
		_, _, err = c.lowerExpr(n.Then)
		if err != nil && !isBlockExit(err) {
			return llvm.Value{}, nil, err
		}
		if !isBlockExit(err) {
			c.builder.CreateBr(afterBB)
		}
		c.builder.SetInsertPointAtEnd(afterBB)
		return llvm.Value{}, nil, nil
	}
	return c.lowerIfExpr(&ast.IfExpr{Base: n.Base, Cond: n.Cond, Then: n.Then, Else: n.Else})
}

// lowerLoopExpr implements §4.6's three-block loop: header (cond check),
// body, after (break target). init runs once in the current scope
// before the loop; step runs before the back-edge.
func (c *CodeGen) lowerLoopExpr(n *ast.LoopExpr) (llvm.Value, types.Type, error) {
	fn := c.currentFunc.LLVM
	headerBB := llvm.AddBasicBlock(fn, "loopheader")
	bodyBB := llvm.AddBasicBlock(fn, "loopbody")
	afterBB := llvm.AddBasicBlock(fn, "loopafter")

	if n.Init != nil {
		if _, _, err := c.lowerExpr(n.Init); err != nil {
			return llvm.Value{}, nil, err
		}
	}
	c.builder.CreateBr(headerBB)
	c.funcs.EnterScope()

	c.loopStack = append(c.loopStack, loopLabels{after: afterBB})
	defer func() { c.loopStack = c.loopStack[:len(c.loopStack)-1] }()

	c.builder.SetInsertPointAtEnd(headerBB)
	if n.Cond != nil {
		condVal, condType, err := c.lowerExpr(n.Cond)
		if err != nil {
			c.funcs.ExitScope()
			return llvm.Value{}, nil, err
		}
		condBool, err := c.toBool(condVal, condType, n.Cond, n.Pos())
		if err != nil {
			c.funcs.ExitScope()
			return llvm.Value{}, nil, err
		}
		c.builder.CreateCondBr(condBool, bodyBB, afterBB)
	} else {
		c.builder.CreateBr(bodyBB)
	}

	c.builder.SetInsertPointAtEnd(bodyBB)
	_, _, bodyErr := c.lowerExpr(n.Body)
	if bodyErr != nil && !isBlockExit(bodyErr) {
		c.funcs.ExitScope()
		return llvm.Value{}, nil, bodyErr
	}
	if !isBlockExit(bodyErr) {
		if n.Step != nil {
			if _, _, err := c.lowerExpr(n.Step); err != nil {
				c.funcs.ExitScope()
				return llvm.Value{}, nil, err
			}
		}
		c.builder.CreateBr(headerBB)
	}

	c.builder.SetInsertPointAtEnd(afterBB)
	dropped := c.funcs.ExitScope()
	if err := c.emitAutoDispose(dropped, llvm.Value{}); err != nil {
		return llvm.Value{}, nil, err
	}
	return llvm.Value{}, nil, nil
}

// lowerBreak branches to the innermost loop's after-block and signals
// errs.BlockExit so callers stop emitting into the now-terminated block
// (§4.6: "a loop-context stack tracks the current after").
func (c *CodeGen) lowerBreak(n *ast.Break) (llvm.Value, types.Type, error) {
	if len(c.loopStack) == 0 {
		return llvm.Value{}, nil, &errs.CodegenError{Msg: "break outside of a loop", Pos: n.Pos()}
	}
	top := c.loopStack[len(c.loopStack)-1]
	c.builder.CreateBr(top.after)
	return llvm.Value{}, nil, &errs.BlockExit{}
}

// lowerWithExpr introduces a nested scope for its bindings, lowers the
// body, then auto-disposes only the bindings this WithExpr declared
// (§4.6).
func (c *CodeGen) lowerWithExpr(n *ast.WithExpr) (llvm.Value, types.Type, error) {
	c.funcs.EnterScope()
	for _, nm := range n.Vars {
		if err := c.declareLocal(nm); err != nil {
			c.funcs.ExitScope()
			return llvm.Value{}, nil, err
		}
	}
	val, t, bodyErr := c.lowerExpr(n.Body)
	if bodyErr != nil && !isBlockExit(bodyErr) {
		c.funcs.ExitScope()
		return llvm.Value{}, nil, bodyErr
	}
	dropped := c.funcs.ExitScope()
	if !isBlockExit(bodyErr) {
		if err := c.emitAutoDispose(dropped, val); err != nil {
			return llvm.Value{}, nil, err
		}
		return val, t, nil
	}
	// The body broke out of an enclosing loop; its block is already
	// terminated, so the dispose calls belong before that branch, not
	// here. Emitting them at the (unreachable) current insertion point
	// would still be well-formed IR, so do it for completeness.
	if err := c.emitAutoDispose(dropped, llvm.Value{}); err != nil {
		return llvm.Value{}, nil, err
	}
	return llvm.Value{}, nil, bodyErr
}
