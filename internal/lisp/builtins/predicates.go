package builtins

import (
	"strings"

	"github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

func predicateBuiltins() []*evaluator.Builtin {
	return []*evaluator.Builtin{
		{Name: "where", Fn: whereBuiltin},
		{Name: "all-of", Fn: allOfBuiltin},
		{Name: "any-of", Fn: anyOfBuiltin},
		{Name: "complement", Fn: complementBuiltin},
	}
}

func fieldOf(item object.Value, field object.Value) (object.Value, bool) {
	m, ok := item.(*object.Map)
	if !ok {
		return object.Nil{}, false
	}
	return m.Get(field)
}

var whereOps = map[string]func(a, b object.Value) (bool, error){
	"=":  func(a, b object.Value) (bool, error) { return a.Equal(b), nil },
	"!=": func(a, b object.Value) (bool, error) { return !a.Equal(b), nil },
	"<":  func(a, b object.Value) (bool, error) { c, err := compareNumeric("<", a, b); return c < 0, err },
	"<=": func(a, b object.Value) (bool, error) { c, err := compareNumeric("<=", a, b); return c <= 0, err },
	">":  func(a, b object.Value) (bool, error) { c, err := compareNumeric(">", a, b); return c > 0, err },
	">=": func(a, b object.Value) (bool, error) { c, err := compareNumeric(">=", a, b); return c >= 0, err },
	"contains": func(a, b object.Value) (bool, error) {
		as, aok := a.(object.String)
		bs, bok := b.(object.String)
		if !aok || !bok {
			return false, typeErr("where", "contains requires string operands")
		}
		return strings.Contains(string(as), string(bs)), nil
	},
	"starts-with": func(a, b object.Value) (bool, error) {
		as, aok := a.(object.String)
		bs, bok := b.(object.String)
		if !aok || !bok {
			return false, typeErr("where", "starts-with requires string operands")
		}
		return strings.HasPrefix(string(as), string(bs)), nil
	},
	"ends-with": func(a, b object.Value) (bool, error) {
		as, aok := a.(object.String)
		bs, bok := b.(object.String)
		if !aok || !bok {
			return false, typeErr("where", "ends-with requires string operands")
		}
		return strings.HasSuffix(string(as), string(bs)), nil
	},
	"in": func(a, b object.Value) (bool, error) {
		vec, ok := b.(*object.Vector)
		if !ok {
			return false, typeErr("where", "in requires a vector on the right-hand side")
		}
		for _, it := range vec.Items {
			if it.Equal(a) {
				return true, nil
			}
		}
		return false, nil
	},
}

// whereBuiltin implements `(where :field)` (truthy-field test) and
// `(where :field op value)` for op in = != < <= > >= contains
// starts-with ends-with in.
func whereBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 && len(args) != 3 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "where takes (where :field) or (where :field op value)").WithOp("where")
	}
	field := args[0]

	if len(args) == 1 {
		return &evaluator.Builtin{Name: "where-pred", Fn: func(e *evaluator.Evaluator, inner []object.Value) (object.Value, error) {
			v, ok := fieldOf(inner[0], field)
			if !ok {
				return object.Bool(false), nil
			}
			return object.Bool(object.Truthy(v)), nil
		}}, nil
	}

	opName, ok := args[1].(object.Keyword)
	var opStr string
	if ok {
		opStr = opName.Name
	} else if s, ok := args[1].(object.String); ok {
		opStr = string(s)
	} else {
		return nil, taxonomy.New(taxonomy.InvalidForm, "where operator must be a keyword or string").WithOp("where")
	}
	opFn, ok := whereOps[opStr]
	if !ok {
		return nil, taxonomy.New(taxonomy.InvalidForm, "unknown where operator: "+opStr).WithOp("where")
	}
	want := args[2]

	return &evaluator.Builtin{Name: "where-pred", Fn: func(e *evaluator.Evaluator, inner []object.Value) (object.Value, error) {
		v, ok := fieldOf(inner[0], field)
		if !ok {
			v = object.Nil{}
		}
		ok2, err := opFn(v, want)
		if err != nil {
			return nil, err
		}
		return object.Bool(ok2), nil
	}}, nil
}

func allOfBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	preds := append([]object.Value(nil), args...)
	return &evaluator.Builtin{Name: "all-of-pred", Fn: func(e *evaluator.Evaluator, inner []object.Value) (object.Value, error) {
		for _, p := range preds {
			v, err := e.Apply(p, inner)
			if err != nil {
				return nil, err
			}
			if !object.Truthy(v) {
				return object.Bool(false), nil
			}
		}
		return object.Bool(true), nil
	}}, nil
}

func anyOfBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	preds := append([]object.Value(nil), args...)
	return &evaluator.Builtin{Name: "any-of-pred", Fn: func(e *evaluator.Evaluator, inner []object.Value) (object.Value, error) {
		for _, p := range preds {
			v, err := e.Apply(p, inner)
			if err != nil {
				return nil, err
			}
			if object.Truthy(v) {
				return object.Bool(true), nil
			}
		}
		return object.Bool(false), nil
	}}, nil
}

func complementBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "complement takes exactly 1 argument").WithOp("complement")
	}
	p := args[0]
	return &evaluator.Builtin{Name: "complement-pred", Fn: func(e *evaluator.Evaluator, inner []object.Value) (object.Value, error) {
		v, err := e.Apply(p, inner)
		if err != nil {
			return nil, err
		}
		return object.Bool(!object.Truthy(v)), nil
	}}, nil
}
