package builtins

import (
	"github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
)

func ioBuiltins() []*evaluator.Builtin {
	return []*evaluator.Builtin{
		{Name: "println", Fn: printlnBuiltin},
	}
}

// printlnBuiltin records its arguments on the RunContext's side channel
// rather than writing to any real stream — sandboxed programs have no
// direct I/O, only the captured prints surfaced on the Turn.
func printlnBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	line, err := strBuiltin(e, args)
	if err != nil {
		return nil, err
	}
	e.RC.Print(string(line.(object.String)))
	return object.Nil{}, nil
}
