// Package compiler is the pure driver-facing facade of §6: it wires
// pkg/lexer, pkg/parser, and pkg/codegen into the single
// `Compile(text) -> Module` entry point described in spec.md's External
// Interfaces, for a caller that doesn't need the three stages
// individually. Each stage remains independently usable (lexer.Tokenize,
// parser.ParseSource, codegen.New/Eval) for a driver that does.
package compiler

import (
	"github.com/akilang/akic/pkg/codegen"
	"github.com/akilang/akic/pkg/errs"
	"github.com/akilang/akic/pkg/parser"
	"tinygo.org/x/go-llvm"
)

// Options configures one Compile call: the module's name (for the LLVM
// module identifier) and the codegen knobs spec.md §4.7 describes.
type Options struct {
	ModuleName       string
	SuppressWarnings bool
	TargetTriple     string
}

// Module is the handle Compile hands back: the emitted LLVM module and
// every warning collected while building it. Dispose releases the
// underlying LLVM context; callers that need the module to outlive
// their use of it must extract what they need (e.g. IR text via
// Module.LLVM.String()) before calling Dispose.
type Module struct {
	LLVM     llvm.Module
	Warnings []errs.CodegenWarning

	cg *codegen.CodeGen
}

// Dispose releases the LLVM context backing m. Safe to call once.
func (m *Module) Dispose() {
	if m.cg != nil {
		m.cg.Dispose()
		m.cg = nil
	}
}

// Compile lexes, parses, and lowers text to an LLVM module in one pass
// (§5: "single-threaded cooperative within one compile() invocation").
// A lex/parse failure surfaces as *errs.SyntaxError; a codegen failure
// as *errs.CodegenError or *errs.InternalError. The core never swallows
// an error (§7): the first one aborts Compile and no Module is
// returned.
func Compile(text string, opts Options) (*Module, error) {
	tops, err := parser.ParseSource(text)
	if err != nil {
		return nil, err
	}

	cg := codegen.New(opts.ModuleName, codegen.Options{
		SuppressWarnings: opts.SuppressWarnings,
		TargetTriple:     opts.TargetTriple,
	})
	if err := cg.Eval(tops); err != nil {
		cg.Dispose()
		return nil, err
	}

	return &Module{LLVM: cg.Module(), Warnings: cg.Warnings(), cg: cg}, nil
}
