package builtins

import (
	"github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

func typeErr(op, msg string) error {
	return taxonomy.New(taxonomy.TypeError, msg).WithOp(op)
}

func asFloat(v object.Value) (float64, bool) {
	switch t := v.(type) {
	case object.Int:
		return float64(t), true
	case object.Float:
		return float64(t), true
	default:
		return 0, false
	}
}

func isInt(v object.Value) (int64, bool) {
	i, ok := v.(object.Int)
	return int64(i), ok
}

func arithmeticBuiltins() []*evaluator.Builtin {
	return []*evaluator.Builtin{
		{Name: "+", Fn: numFold("+", 0, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })},
		{Name: "*", Fn: numFold("*", 1, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })},
		{Name: "-", Fn: numSub},
		{Name: "/", Fn: numDiv},
		{Name: "rem", Fn: intBinOp("rem", func(a, b int64) int64 { return a % b })},
		{Name: "quot", Fn: intBinOp("quot", func(a, b int64) int64 { return a / b })},
		{Name: "<", Fn: cmp("<", func(c int) bool { return c < 0 })},
		{Name: "<=", Fn: cmp("<=", func(c int) bool { return c <= 0 })},
		{Name: ">", Fn: cmp(">", func(c int) bool { return c > 0 })},
		{Name: ">=", Fn: cmp(">=", func(c int) bool { return c >= 0 })},
		{Name: "=", Fn: eqBuiltin},
		{Name: "!=", Fn: neBuiltin},
		{Name: "odd?", Fn: parityBuiltin("odd?", func(i int64) bool { return i%2 != 0 })},
		{Name: "even?", Fn: parityBuiltin("even?", func(i int64) bool { return i%2 == 0 })},
	}
}

func numFold(op string, identity int64, iop func(a, b int64) int64, fop func(a, b float64) float64) func(*evaluator.Evaluator, []object.Value) (object.Value, error) {
	return func(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
		if len(args) == 0 {
			return object.Int(identity), nil
		}
		allInt := true
		for _, a := range args {
			if _, ok := isInt(a); !ok {
				if _, ok := asFloat(a); !ok {
					return nil, typeErr(op, op+" requires numeric arguments")
				}
				allInt = false
			}
		}
		if allInt {
			acc := identity
			for _, a := range args {
				n, _ := isInt(a)
				acc = iop(acc, n)
			}
			return object.Int(acc), nil
		}
		acc := float64(identity)
		for _, a := range args {
			f, _ := asFloat(a)
			acc = fop(acc, f)
		}
		return object.Float(acc), nil
	}
}

func numSub(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) == 0 {
		return nil, typeErr("-", "- requires at least one argument")
	}
	if len(args) == 1 {
		if i, ok := isInt(args[0]); ok {
			return object.Int(-i), nil
		}
		if f, ok := asFloat(args[0]); ok {
			return object.Float(-f), nil
		}
		return nil, typeErr("-", "- requires numeric arguments")
	}
	allInt := true
	for _, a := range args {
		if _, ok := isInt(a); !ok {
			allInt = false
		}
	}
	if allInt {
		acc, _ := isInt(args[0])
		for _, a := range args[1:] {
			n, _ := isInt(a)
			acc -= n
		}
		return object.Int(acc), nil
	}
	acc, ok := asFloat(args[0])
	if !ok {
		return nil, typeErr("-", "- requires numeric arguments")
	}
	for _, a := range args[1:] {
		f, ok := asFloat(a)
		if !ok {
			return nil, typeErr("-", "- requires numeric arguments")
		}
		acc -= f
	}
	return object.Float(acc), nil
}

// numDiv: int/int that divides evenly yields Int, otherwise Float —
// "/ with ints yields float when non-divisible".
func numDiv(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) < 2 {
		return nil, typeErr("/", "/ requires at least 2 arguments")
	}
	allInt := true
	for _, a := range args {
		if _, ok := isInt(a); !ok {
			allInt = false
		}
	}
	if allInt {
		acc, _ := isInt(args[0])
		exact := true
		accF := float64(acc)
		for _, a := range args[1:] {
			n, _ := isInt(a)
			if n == 0 {
				return nil, typeErr("/", "division by zero")
			}
			if acc%n != 0 {
				exact = false
			}
			acc /= n
			accF /= float64(n)
		}
		if exact {
			return object.Int(acc), nil
		}
		return object.Float(accF), nil
	}
	acc, ok := asFloat(args[0])
	if !ok {
		return nil, typeErr("/", "/ requires numeric arguments")
	}
	for _, a := range args[1:] {
		f, ok := asFloat(a)
		if !ok {
			return nil, typeErr("/", "/ requires numeric arguments")
		}
		if f == 0 {
			return nil, typeErr("/", "division by zero")
		}
		acc /= f
	}
	return object.Float(acc), nil
}

func intBinOp(op string, fn func(a, b int64) int64) func(*evaluator.Evaluator, []object.Value) (object.Value, error) {
	return func(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
		if len(args) != 2 {
			return nil, taxonomy.New(taxonomy.InvalidArity, op+" requires exactly 2 arguments").WithOp(op)
		}
		a, ok1 := isInt(args[0])
		b, ok2 := isInt(args[1])
		if !ok1 || !ok2 {
			return nil, typeErr(op, op+" requires integer arguments")
		}
		if b == 0 {
			return nil, typeErr(op, "division by zero")
		}
		return object.Int(fn(a, b)), nil
	}
}

// compareNumeric returns -1/0/1, or an error if either side isn't numeric.
func compareNumeric(op string, a, b object.Value) (int, error) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return 0, typeErr(op, op+" requires numeric arguments")
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

func cmp(op string, accept func(int) bool) func(*evaluator.Evaluator, []object.Value) (object.Value, error) {
	return func(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
		if len(args) != 2 {
			return nil, taxonomy.New(taxonomy.InvalidArity, op+" accepts exactly 2 arguments").WithOp(op)
		}
		c, err := compareNumeric(op, args[0], args[1])
		if err != nil {
			return nil, err
		}
		return object.Bool(accept(c)), nil
	}
}

func eqBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "= accepts exactly 2 arguments").WithOp("=")
	}
	return object.Bool(args[0].Equal(args[1])), nil
}

func neBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "!= accepts exactly 2 arguments").WithOp("!=")
	}
	return object.Bool(!args[0].Equal(args[1])), nil
}

func parityBuiltin(name string, fn func(int64) bool) func(*evaluator.Evaluator, []object.Value) (object.Value, error) {
	return func(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return nil, taxonomy.New(taxonomy.InvalidArity, name+" requires exactly 1 argument").WithOp(name)
		}
		i, ok := isInt(args[0])
		if !ok {
			return nil, typeErr(name, name+" requires an integer argument")
		}
		return object.Bool(fn(i)), nil
	}
}
