// Package ptclisp is the public surface of the PTC-Lisp language core:
// parse, analyze, and evaluate a program against a host-supplied data
// map, memory prelude, and tool registry, independent of the SubAgent
// turn loop.
package ptclisp

import (
	"context"

	"github.com/ptcrunner/ptcrunner/internal/lisp/analyzer"
	"github.com/ptcrunner/ptcrunner/internal/lisp/ast"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/lisp/parser"
	"github.com/ptcrunner/ptcrunner/internal/sandbox"
	"github.com/ptcrunner/ptcrunner/internal/signature"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

// Value re-exports object.Value so callers outside this module never
// need to import the internal object package directly.
type Value = object.Value

// Signature re-exports the parsed signature type.
type Signature = signature.Signature

// Parse turns source into an AST, or a *taxonomy.Failure describing
// the first parse error.
func Parse(source string) ([]ast.Node, error) {
	return parser.Parse(source)
}

// Analyze runs the static arity/shape/namespace pass over an already
// parsed program.
func Analyze(program []ast.Node) []*taxonomy.Failure {
	return analyzer.Analyze(program)
}

// RunOpts configures one Lisp.run call.
type RunOpts struct {
	Context        *object.Map
	Memory         *object.Map
	Tools          *sandbox.Registry
	Sandbox        sandbox.Options
	FloatPrecision int
}

// Run parses, analyzes, and evaluates source in one step, returning
// either the program's value (ok == true) or a *taxonomy.Failure.
func Run(ctx context.Context, source string, opts RunOpts) (value Value, ok bool, failure *taxonomy.Failure) {
	w := sandbox.NewWorker(sandbox.Merge(opts.Tools))
	res := w.Run(ctx, source, opts.Context, opts.Memory, opts.Sandbox)
	if res.Failure != nil {
		return nil, false, res.Failure
	}
	return res.Value, true, nil
}

// ParseSignature parses a signature declaration string.
func ParseSignature(s string) (*Signature, error) {
	return signature.Parse(s)
}

// ValidateSignature checks v against sig's return type.
func ValidateSignature(v Value, sig *Signature) []signature.Issue {
	return signature.Validate(v, sig.Return)
}
