// Package ast defines the node variants produced by the parser. The
// tree is immutable once built: nodes are constructed bottom-up by the
// parser and never mutated afterward by the code generator.
package ast

import "github.com/akilang/akic/pkg/position"

// Node is implemented by every AST node; all of them carry a Position
// so the code generator can attribute errors back to source text.
type Node interface {
	Pos() position.Position
}

// Expr is implemented by every node that produces a value when lowered.
type Expr interface {
	Node
	exprNode()
}

// VarType is implemented by the parser's source-level type syntax nodes
// (`: i32`, `: *i32`, `: func(i32) bool`); the type registry resolves
// these to canonical types.Type values during codegen.
type VarType interface {
	Node
	varTypeNode()
}

// TopLevel is implemented by the top-level declarations a parse can
// produce: Function, External, a bare Prototype, and a bare expression
// lifted by the driver into an anonymous function.
type TopLevel interface {
	Node
	topLevelNode()
}

// Base is embedded by every concrete node to supply Pos(); it is
// exported so packages outside ast (the parser, desugaring helpers) can
// construct nodes with keyed composite literals.
type Base struct{ P position.Position }

func (b Base) Pos() position.Position { return b.P }

// ---- literals ----

// Constant is a numeric or boolean compile-time literal. Value holds the
// decoded bit pattern; TypeName is the primitive name the lexer/parser
// inferred from the literal's suffix (e.g. "i32", "f64", "bool"),
// resolved to a canonical type during codegen.
type Constant struct {
	Base
	Value    uint64 // bit pattern; float values are math.Float64bits-encoded
	TypeName string
}

func (*Constant) exprNode() {}

// String is a string literal. Bytes are the decoded bytes (escapes
// already resolved by the lexer).
type String struct {
	Base
	Bytes []byte
}

func (*String) exprNode() {}

// ArrayLiteral is a bracketed initializer list (`[1, 2, 3]`), legal only
// as the initializer of an array-typed `var` declaration.
type ArrayLiteral struct {
	Base
	Elems []Expr
}

func (*ArrayLiteral) exprNode() {}

// ---- references ----

// Name is a reference to a variable, or — when Initializer is non-nil —
// a `var` declaration introducing one.
type Name struct {
	Base
	ID           string
	Initializer  Expr     // non-nil when this Name is a `var` binding
	DeclaredType VarType  // non-nil when annotated with `: T`
}

func (*Name) exprNode() {}

// ---- expressions ----

// UnOp is a prefix unary operator (`-x`, `not x`).
type UnOp struct {
	Base
	Op      string
	Operand Expr
}

func (*UnOp) exprNode() {}

// BinOp is a binary arithmetic/bitwise operator.
type BinOp struct {
	Base
	Op       string
	LHS, RHS Expr
}

func (*BinOp) exprNode() {}

// BinOpComparison is a binary comparison operator; always yields bool.
type BinOpComparison struct {
	Base
	Op       string
	LHS, RHS Expr
}

func (*BinOpComparison) exprNode() {}

// Call is a function call resolved by mangled name during codegen.
type Call struct {
	Base
	Name string
	Args []Expr
}

func (*Call) exprNode() {}

// ChainExpr is dotted member access `a.b.c`, folded left to right.
type ChainExpr struct {
	Base
	Exprs []Expr
}

func (*ChainExpr) exprNode() {}

// RefExpr is `ptr x`, taking the address of x.
type RefExpr struct {
	Base
	Operand Expr
}

func (*RefExpr) exprNode() {}

// DerefExpr dereferences a pointer-typed operand.
type DerefExpr struct {
	Base
	Operand Expr
}

func (*DerefExpr) exprNode() {}

// ---- variables ----

// VarList is a comma-separated group of `var` bindings: `var a, b = 1, 2`.
type VarList struct {
	Base
	Names []*Name
}

func (*VarList) exprNode() {}

// Assignment is `target op= value`; `+=`/`-=` are desugared by the
// parser into Op: "=" with Value wrapped in a BinOp before reaching
// codegen (see the parser's parseAssignment).
type Assignment struct {
	Base
	Op     string
	Target Expr
	Value  Expr
}

func (*Assignment) exprNode() {}

// Argument is one prototype parameter, with an optional default value.
type Argument struct {
	Base
	Name         string
	DeclaredType VarType
	Default      Expr // non-nil if this argument has a default value
}

func (*Argument) exprNode() {}

// ---- control ----

// ExpressionBlock is `{ expr; expr; ... }`; its value is that of its
// last expression.
type ExpressionBlock struct {
	Base
	Exprs []Expr
}

func (*ExpressionBlock) exprNode() {}

// IfExpr requires an else branch and yields a value (the two branches
// must unify to a common type).
type IfExpr struct {
	Base
	Cond, Then, Else Expr
}

func (*IfExpr) exprNode() {}

// WhenExpr is the ternary-or-statement form; Else may be nil, in which
// case WhenExpr must occur in statement position (see §4.7/Open
// Questions — codegen rejects a value-position WhenExpr with no else).
type WhenExpr struct {
	Base
	Cond, Then Expr
	Else       Expr // nil when there is no else branch
}

func (*WhenExpr) exprNode() {}

// LoopExpr is `loop (init, cond, step) body` or `loop body` (Init/Cond/
// Step all nil ⇒ infinite loop).
type LoopExpr struct {
	Base
	Init, Cond, Step Expr // any or all may be nil
	Body             Expr
}

func (*LoopExpr) exprNode() {}

// Break is `break`, valid only inside a LoopExpr body.
type Break struct{ Base }

func (*Break) exprNode() {}

// WithExpr introduces scoped bindings disposed when Body's block exits,
// independent of the enclosing function scope.
type WithExpr struct {
	Base
	Vars []*Name
	Body Expr
}

func (*WithExpr) exprNode() {}

// ---- source-level type syntax ----

// VarTypeName is a plain named type (`i32`, `MyStruct`).
type VarTypeName struct {
	Base
	ID string
}

func (*VarTypeName) varTypeNode() {}

// VarTypePtr is `*inner`, possibly nested (`**inner`).
type VarTypePtr struct {
	Base
	Inner VarType
}

func (*VarTypePtr) varTypeNode() {}

// VarTypeFunc is `func(T, ...) R`.
type VarTypeFunc struct {
	Base
	Params []VarType
	Ret    VarType
}

func (*VarTypeFunc) varTypeNode() {}

// ---- declarations ----

// Prototype is a function signature: name, arguments, and return type.
type Prototype struct {
	Base
	Name       string
	Args       []*Argument
	ReturnType VarType
}

func (*Prototype) topLevelNode() {} // a bare prototype can stand alone (extern)
func (*Prototype) exprNode()      {}

// Function is `def NAME arglist opt_return_type block`.
type Function struct {
	Base
	Proto *Prototype
	Body  Expr
}

func (*Function) topLevelNode() {}

// External is `extern NAME arglist return_type`.
type External struct {
	Base
	Proto *Prototype
}

func (*External) topLevelNode() {}

// ExprTopLevel lifts a bare top-level expression (REPL/anonymous-
// function use) so the parser's Vec<TopLevel> can carry it; the driver
// is responsible for wrapping these into synthesized anonymous
// Functions before handing them to codegen (§4.4, §9).
type ExprTopLevel struct {
	Base
	Expr Expr
}

func (*ExprTopLevel) topLevelNode() {}

// New constructors set Pos via embedding; helpers below keep call sites
// terse and consistent across the parser.

func NewBase(p position.Position) Base { return Base{P: p} }
