package builtins

import (
	"strings"

	"github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

func stringBuiltins() []*evaluator.Builtin {
	return []*evaluator.Builtin{
		{Name: "str", Fn: strBuiltin},
		{Name: "subs", Fn: subsBuiltin},
		{Name: "upper-case", Fn: str1(strings.ToUpper)},
		{Name: "lower-case", Fn: str1(strings.ToLower)},
		{Name: "trim", Fn: str1(strings.TrimSpace)},
		{Name: "split", Fn: splitBuiltin},
		{Name: "join", Fn: joinBuiltin},
	}
}

func strBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	var b strings.Builder
	for _, a := range args {
		if s, ok := a.(object.String); ok {
			b.WriteString(string(s))
			continue
		}
		b.WriteString(a.String())
	}
	return object.String(b.String()), nil
}

func str1(fn func(string) string) func(*evaluator.Evaluator, []object.Value) (object.Value, error) {
	return func(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return nil, taxonomy.New(taxonomy.InvalidArity, "expects exactly 1 string argument").WithOp("string")
		}
		s, ok := args[0].(object.String)
		if !ok {
			return nil, typeErr("string", "expects a string argument")
		}
		return object.String(fn(string(s))), nil
	}
}

func subsBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "subs requires (s, start) or (s, start, end)").WithOp("subs")
	}
	s, ok := args[0].(object.String)
	if !ok {
		return nil, typeErr("subs", "subs expects a string")
	}
	runes := []rune(string(s))
	start, ok := isInt(args[1])
	if !ok || start < 0 || int(start) > len(runes) {
		return nil, taxonomy.New(taxonomy.ExecutionError, "subs start index out of range").WithOp("subs")
	}
	end := int64(len(runes))
	if len(args) == 3 {
		e, ok := isInt(args[2])
		if !ok || e < start || int(e) > len(runes) {
			return nil, taxonomy.New(taxonomy.ExecutionError, "subs end index out of range").WithOp("subs")
		}
		end = e
	}
	return object.String(string(runes[start:end])), nil
}

func splitBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "split requires (s, sep)").WithOp("split")
	}
	s, ok1 := args[0].(object.String)
	sep, ok2 := args[1].(object.String)
	if !ok1 || !ok2 {
		return nil, typeErr("split", "split requires string arguments")
	}
	parts := strings.Split(string(s), string(sep))
	out := make([]object.Value, len(parts))
	for i, p := range parts {
		out[i] = object.String(p)
	}
	return &object.Vector{Items: out}, nil
}

func joinBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "join requires (sep, collection)").WithOp("join")
	}
	sep, ok := args[0].(object.String)
	if !ok {
		return nil, typeErr("join", "join separator must be a string")
	}
	items, err := toItems("join", args[1])
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(items))
	for i, it := range items {
		if s, ok := it.(object.String); ok {
			parts[i] = string(s)
		} else {
			parts[i] = it.String()
		}
	}
	return object.String(strings.Join(parts, string(sep))), nil
}
