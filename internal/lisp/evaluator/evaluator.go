// Package evaluator is the tree-walking interpreter at the heart of
// PTC-Lisp. Evaluation order is left-to-right, applicative order;
// truthiness excludes only Nil and false. Control flow runs on a
// lexical Environment chain, with Closures capturing their defining
// frame by reference.
package evaluator

import (
	"context"
	"fmt"

	"github.com/ptcrunner/ptcrunner/internal/lisp/ast"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

// ReturnSignal unwinds the stack to the top-level Eval loop carrying
// the value passed to (return v). It satisfies the error interface so
// it can be threaded through ordinary Go error returns instead of a
// panic.
type ReturnSignal struct{ Value object.Value }

func (r *ReturnSignal) Error() string { return "return" }

// FailSignal unwinds the stack carrying the value passed to (fail e).
type FailSignal struct{ Value object.Value }

func (f *FailSignal) Error() string { return "fail" }

// Evaluator walks an AST against a RunContext. One Evaluator instance
// is used per program run (or per pmap/pcalls branch, each with its
// own forked RunContext and Environment).
type Evaluator struct {
	Ctx context.Context
	RC  *RunContext
}

func New(ctx context.Context, rc *RunContext) *Evaluator {
	return &Evaluator{Ctx: ctx, RC: rc}
}

// Eval evaluates every top-level form in program against env in order.
// If a (return v) or (fail e) is encountered, evaluation stops
// immediately and subsequent forms are never evaluated — the loop
// layer distinguishes the two outcomes by type-asserting the returned
// error.
func (e *Evaluator) Eval(program []ast.Node, env *Environment) (object.Value, error) {
	var last object.Value = object.Nil{}
	for _, n := range program {
		select {
		case <-e.Ctx.Done():
			return nil, taxonomy.New(taxonomy.Timeout, "program exceeded its timeout").WithOp("eval")
		default:
		}
		v, err := e.eval(n, env)
		if err != nil {
			return nil, err
		}
		if err := e.RC.checkHeap(); err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

func (e *Evaluator) eval(n ast.Node, env *Environment) (object.Value, error) {
	select {
	case <-e.Ctx.Done():
		return nil, taxonomy.New(taxonomy.Timeout, "program exceeded its timeout").WithOp("eval")
	default:
	}

	switch node := n.(type) {
	case *ast.Literal:
		return literalValue(node.Value), nil
	case *ast.QuotedLit:
		return quote(node.Expr), nil
	case *ast.Var:
		return e.resolveVar(node, env)
	case *ast.VectorLit:
		items := make([]object.Value, len(node.Children))
		for i, c := range node.Children {
			v, err := e.eval(c, env)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return &object.Vector{Items: items}, nil
	case *ast.SetLit:
		s := object.NewSet()
		for _, c := range node.Children {
			v, err := e.eval(c, env)
			if err != nil {
				return nil, err
			}
			s.Add(v)
		}
		return s, nil
	case *ast.MapLit:
		m := object.EmptyMap()
		for i := 0; i+1 < len(node.Children); i += 2 {
			k, err := e.eval(node.Children[i], env)
			if err != nil {
				return nil, err
			}
			v, err := e.eval(node.Children[i+1], env)
			if err != nil {
				return nil, err
			}
			m = m.Assoc(k, v)
		}
		return m, nil
	case *ast.List:
		return e.evalList(node, env)
	default:
		return nil, taxonomy.New(taxonomy.ExecutionError, fmt.Sprintf("unhandled AST node %T", n)).WithOp("eval")
	}
}

func literalValue(v interface{}) object.Value {
	switch t := v.(type) {
	case nil:
		return object.Nil{}
	case bool:
		return object.Bool(t)
	case int64:
		return object.Int(t)
	case float64:
		return object.Float(t)
	case string:
		return object.String(t)
	case ast.Keyword:
		return object.Keyword{Namespace: t.Namespace, Name: t.Name}
	default:
		return object.Nil{}
	}
}

// quote converts an unevaluated AST node into its data representation,
// returning the argument form itself rather than its evaluation.
func quote(n ast.Node) object.Value {
	switch node := n.(type) {
	case *ast.Literal:
		return literalValue(node.Value)
	case *ast.Var:
		return object.Symbol{Namespace: node.Namespace, Name: node.Name}
	case *ast.QuotedLit:
		return object.NewVector(object.Symbol{Name: "quote"}, quote(node.Expr))
	case *ast.List:
		items := make([]object.Value, len(node.Children))
		for i, c := range node.Children {
			items[i] = quote(c)
		}
		return &object.Vector{Items: items}
	case *ast.VectorLit:
		items := make([]object.Value, len(node.Children))
		for i, c := range node.Children {
			items[i] = quote(c)
		}
		return &object.Vector{Items: items}
	case *ast.MapLit:
		m := object.EmptyMap()
		for i := 0; i+1 < len(node.Children); i += 2 {
			m = m.Assoc(quote(node.Children[i]), quote(node.Children[i+1]))
		}
		return m
	case *ast.SetLit:
		s := object.NewSet()
		for _, c := range node.Children {
			s.Add(quote(c))
		}
		return s
	default:
		return object.Nil{}
	}
}

func (e *Evaluator) resolveVar(v *ast.Var, env *Environment) (object.Value, error) {
	switch v.Namespace {
	case "", "user":
		if val, ok := env.Get(v.Name); ok {
			return val, nil
		}
		return nil, unboundVar(v)
	case "data", "ctx":
		if val, ok := e.RC.Data.Get(object.String(v.Name)); ok {
			return val, nil
		}
		return nil, unboundVar(v)
	case "memory":
		if val, ok := e.RC.Memory.Get(object.String(v.Name)); ok {
			return val, nil
		}
		return nil, unboundVar(v)
	case "tool":
		return &ToolHandle{Name: v.Name}, nil
	default:
		return nil, unboundVar(v)
	}
}

func unboundVar(v *ast.Var) error {
	name := v.Name
	if v.Namespace != "" {
		name = v.Namespace + "/" + v.Name
	}
	return taxonomy.New(taxonomy.UnboundVar, "unbound var: "+name).
		WithOp("eval").WithDetail("line", v.Position.Line).WithDetail("column", v.Position.Column)
}
