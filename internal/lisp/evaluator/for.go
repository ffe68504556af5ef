package evaluator

import (
	"github.com/ptcrunner/ptcrunner/internal/lisp/ast"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

// forClause is one element of a for/doseq binding vector: either a
// target/collection pair or a :let/:when/:while modifier, applied
// left-to-right.
type forClause struct {
	kind   string // "bind", "let", "when", "while"
	target ast.Node
	expr   ast.Node        // collection expr (bind), or test expr (when/while)
	lets   *ast.VectorLit  // bindings vector (let)
}

func parseForClauses(v *ast.VectorLit) ([]forClause, error) {
	var out []forClause
	i := 0
	for i < len(v.Children) {
		if kw, ok := literalKeywordNode(v.Children[i]); ok {
			if i+1 >= len(v.Children) {
				return nil, taxonomy.New(taxonomy.InvalidModifier, "for modifier :"+kw+" is missing its value").WithOp("for")
			}
			switch kw {
			case "let":
				lv, ok := v.Children[i+1].(*ast.VectorLit)
				if !ok {
					return nil, taxonomy.New(taxonomy.InvalidModifier, ":let requires a vector").WithOp("for")
				}
				out = append(out, forClause{kind: "let", lets: lv})
			case "when":
				out = append(out, forClause{kind: "when", expr: v.Children[i+1]})
			case "while":
				out = append(out, forClause{kind: "while", expr: v.Children[i+1]})
			default:
				return nil, taxonomy.New(taxonomy.InvalidModifier, "unknown for modifier :"+kw).WithOp("for")
			}
			i += 2
			continue
		}
		if i+1 >= len(v.Children) {
			return nil, taxonomy.New(taxonomy.InvalidForm, "for binding is missing its collection expression").WithOp("for")
		}
		out = append(out, forClause{kind: "bind", target: v.Children[i], expr: v.Children[i+1]})
		i += 2
	}
	return out, nil
}

func literalKeywordNode(n ast.Node) (string, bool) {
	lit, ok := n.(*ast.Literal)
	if !ok {
		return "", false
	}
	kw, ok := lit.Value.(ast.Keyword)
	if !ok || kw.Namespace != "" {
		return "", false
	}
	return kw.Name, true
}

// evalFor implements `for` (materialize == true, result is an eager
// vector) and `doseq` (materialize == false, result is always nil,
// evaluated purely for side effects).
func (e *Evaluator) evalFor(l *ast.List, env *Environment, materialize bool) (object.Value, error) {
	bindings, ok := l.Children[1].(*ast.VectorLit)
	if !ok {
		return nil, taxonomy.New(taxonomy.InvalidForm, "for/doseq bindings must be a vector").WithOp("for")
	}
	clauses, err := parseForClauses(bindings)
	if err != nil {
		return nil, err
	}
	body := l.Children[2:]

	var results []object.Value
	emit := func(env *Environment) error {
		v, err := e.evalDo(body, env)
		if err != nil {
			return err
		}
		if materialize {
			results = append(results, v)
		}
		return nil
	}

	if _, err := e.runForClauses(clauses, env, emit); err != nil {
		return nil, err
	}
	if materialize {
		return &object.Vector{Items: results}, nil
	}
	return object.Nil{}, nil
}

// runForClauses returns (stopEnclosingLoop, err). stopEnclosingLoop is
// consumed by the nearest enclosing "bind" clause's iteration loop
// (that's where :while's early exit takes effect) and never
// propagated past it.
func (e *Evaluator) runForClauses(clauses []forClause, env *Environment, emit func(*Environment) error) (bool, error) {
	if len(clauses) == 0 {
		return false, emit(env)
	}
	c := clauses[0]
	rest := clauses[1:]

	switch c.kind {
	case "let":
		letEnv := NewEnclosedEnvironment(env)
		for i := 0; i+1 < len(c.lets.Children); i += 2 {
			val, err := e.eval(c.lets.Children[i+1], letEnv)
			if err != nil {
				return false, err
			}
			if err := e.destructureBind(c.lets.Children[i], val, letEnv); err != nil {
				return false, err
			}
		}
		return e.runForClauses(rest, letEnv, emit)

	case "when":
		test, err := e.eval(c.expr, env)
		if err != nil {
			return false, err
		}
		if !object.Truthy(test) {
			return false, nil
		}
		return e.runForClauses(rest, env, emit)

	case "while":
		test, err := e.eval(c.expr, env)
		if err != nil {
			return false, err
		}
		if !object.Truthy(test) {
			return true, nil
		}
		return e.runForClauses(rest, env, emit)

	case "bind":
		collVal, err := e.eval(c.expr, env)
		if err != nil {
			return false, err
		}
		items, err := asIterable(collVal)
		if err != nil {
			return false, err
		}
		for _, item := range items {
			iterEnv := NewEnclosedEnvironment(env)
			if err := e.destructureBind(c.target, item, iterEnv); err != nil {
				return false, err
			}
			stop, err := e.runForClauses(rest, iterEnv, emit)
			if err != nil {
				return false, err
			}
			if stop {
				break
			}
		}
		return false, nil
	}
	return false, nil
}

// asIterable materializes any collection Value into a slice. All
// iteration in this language is eager; sets/maps are accepted where
// ordering is irrelevant.
func asIterable(v object.Value) ([]object.Value, error) {
	switch t := v.(type) {
	case *object.Vector:
		return t.Items, nil
	case *object.Set:
		return t.Items(), nil
	case *object.Map:
		out := make([]object.Value, 0, t.Len())
		t.Range(func(k, v object.Value) bool {
			out = append(out, object.NewVector(k, v))
			return true
		})
		return out, nil
	default:
		return nil, taxonomy.New(taxonomy.TypeError, "expected a collection, got "+string(v.Kind())).WithOp("for")
	}
}
