// Package errs implements the compiler's error taxonomy (§7): position-
// bearing syntax and codegen errors that render as the standard
// three-line diagnostic, plus non-fatal codegen warnings.
//
// The shape mirrors playbymail-ottomap's cerrs.Error (a constant string
// implementing the error interface) extended with a position so the
// lexer, parser, and code generator can all produce the same
// `L:C / message / excerpt` diagnostic instead of a bare string.
package errs

import "github.com/akilang/akic/pkg/position"

// SyntaxError is a terminal lex/parse failure (§4.3, §4.4).
type SyntaxError struct {
	Msg string
	Pos position.Position
}

func (e *SyntaxError) Error() string { return e.Pos.Diagnostic(e.Msg) }

// CodegenError is a terminal-for-the-current-top-level codegen failure:
// type mismatch, redefinition, missing symbol, decorator conflict,
// invalid pragma, array overflow, and similar (§4.6, §7).
type CodegenError struct {
	Msg string
	Pos position.Position
}

func (e *CodegenError) Error() string { return e.Pos.Diagnostic(e.Msg) }

// CodegenWarning is non-fatal: the code generator prints it unless
// warnings are suppressed, and also collects it to return alongside a
// successful Compile, not as an error.
type CodegenWarning struct {
	Msg string
	Pos position.Position
}

func (w CodegenWarning) String() string { return w.Pos.Diagnostic(w.Msg) }

// InternalError signals an invariant violation in the compiler itself
// (not a user-facing source error); the driver is expected to treat it
// as a bug report, not a diagnostic to render with source context.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "internal error: " + e.Msg }

// BlockExit is the internal control-flow signal a `break` uses to unwind
// expression-lowering back to the loop that owns it (§7): lowering a
// Break emits the branch to the loop's after-block and returns this
// sentinel so callers (ExpressionBlock, IfExpr/WhenExpr branches) know
// the current basic block is already terminated and stop emitting
// further instructions into it. It never reaches the driver.
type BlockExit struct{}

func (e *BlockExit) Error() string { return "internal: break outside lowering of its loop" }
