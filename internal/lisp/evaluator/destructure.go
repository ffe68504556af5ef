package evaluator

import (
	"github.com/ptcrunner/ptcrunner/internal/lisp/ast"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

// destructureBind binds target against val in env, supporting plain
// symbols, vector destructuring ([a b & rest]), and map destructuring
// ({:keys [a b]} / {:strs [a b]}).
func (e *Evaluator) destructureBind(target ast.Node, val object.Value, env *Environment) error {
	switch t := target.(type) {
	case *ast.Var:
		env.Bind(t.Name, val)
		return nil
	case *ast.VectorLit:
		return e.destructureVector(t, val, env)
	case *ast.MapLit:
		return e.destructureMap(t, val, env)
	default:
		return taxonomy.New(taxonomy.DestructureError, "invalid binding target").WithOp("destructure")
	}
}

func (e *Evaluator) destructureVector(t *ast.VectorLit, val object.Value, env *Environment) error {
	vec, ok := val.(*object.Vector)
	if !ok {
		return taxonomy.New(taxonomy.DestructureError, "cannot destructure a non-vector value as a vector pattern").WithOp("destructure")
	}
	fixed, restTarget := splitVariadicPattern(t)
	if len(vec.Items) < len(fixed) {
		return taxonomy.New(taxonomy.DestructureError, "not enough elements to destructure").WithOp("destructure").
			WithDetail("expected_at_least", len(fixed)).WithDetail("got", len(vec.Items))
	}
	for i, p := range fixed {
		if err := e.destructureBind(p, vec.Items[i], env); err != nil {
			return err
		}
	}
	if restTarget != nil {
		rest := append([]object.Value(nil), vec.Items[len(fixed):]...)
		if err := e.destructureBind(restTarget, &object.Vector{Items: rest}, env); err != nil {
			return err
		}
	}
	return nil
}

// splitVariadicPattern splits a [a b & rest] vector pattern into the
// fixed-arity patterns and the (possibly nil) rest pattern.
func splitVariadicPattern(t *ast.VectorLit) ([]ast.Node, ast.Node) {
	for i, c := range t.Children {
		if v, ok := c.(*ast.Var); ok && v.Namespace == "" && v.Name == "&" {
			var rest ast.Node
			if i+1 < len(t.Children) {
				rest = t.Children[i+1]
			}
			return t.Children[:i], rest
		}
	}
	return t.Children, nil
}

func (e *Evaluator) destructureMap(t *ast.MapLit, val object.Value, env *Environment) error {
	m, ok := val.(*object.Map)
	if !ok {
		return taxonomy.New(taxonomy.DestructureError, "cannot destructure a non-map value with a map pattern").WithOp("destructure")
	}
	for i := 0; i+1 < len(t.Children); i += 2 {
		kw, ok := t.Children[i].(*ast.Literal)
		if !ok {
			continue
		}
		directive, ok := kw.Value.(ast.Keyword)
		if !ok {
			continue
		}
		namesVec, ok := t.Children[i+1].(*ast.VectorLit)
		if !ok {
			continue
		}
		switch directive.Name {
		case "keys":
			for _, n := range namesVec.Children {
				v, ok := n.(*ast.Var)
				if !ok {
					continue
				}
				val, found := m.Get(object.Keyword{Name: v.Name})
				if !found {
					val = object.Nil{}
				}
				env.Bind(v.Name, val)
			}
		case "strs":
			for _, n := range namesVec.Children {
				v, ok := n.(*ast.Var)
				if !ok {
					continue
				}
				val, found := m.Get(object.String(v.Name))
				if !found {
					val = object.Nil{}
				}
				env.Bind(v.Name, val)
			}
		}
	}
	return nil
}
