// Package builtins is the runtime library bound into the root
// Environment before a program runs: arithmetic, comparisons,
// collection operations, predicates, strings, I/O, and the pmap/pcalls
// parallelism primitives.
package builtins

import "github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"

// Register binds every builtin into env under its bare name.
func Register(env *evaluator.Environment) {
	for _, b := range all() {
		env.Bind(b.Name, b)
	}
}

func all() []*evaluator.Builtin {
	var out []*evaluator.Builtin
	out = append(out, arithmeticBuiltins()...)
	out = append(out, collectionBuiltins()...)
	out = append(out, predicateBuiltins()...)
	out = append(out, stringBuiltins()...)
	out = append(out, ioBuiltins()...)
	out = append(out, parallelBuiltins()...)
	return out
}
