package evaluator

import (
	"fmt"

	"github.com/ptcrunner/ptcrunner/internal/lisp/ast"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

// evalList resolves a List as either a special form or an ordinary
// call, applicative order (arguments evaluated before the call).
func (e *Evaluator) evalList(l *ast.List, env *Environment) (object.Value, error) {
	if len(l.Children) == 0 {
		return &object.Vector{}, nil
	}

	if head, ok := l.Children[0].(*ast.Var); ok && head.Namespace == "" {
		switch head.Name {
		case "if":
			return e.evalIf(l, env)
		case "when":
			return e.evalWhen(l, env, true)
		case "when-not":
			return e.evalWhen(l, env, false)
		case "cond":
			return e.evalCond(l, env)
		case "let", "let*":
			return e.evalLet(l, env)
		case "do":
			return e.evalDo(l.Children[1:], env)
		case "fn":
			return e.evalFn(l, env)
		case "defn":
			return e.evalDefn(l, env)
		case "def":
			return e.evalDef(l, env)
		case "quote":
			return quote(l.Children[1]), nil
		case "for":
			return e.evalFor(l, env, true)
		case "doseq":
			return e.evalFor(l, env, false)
		case "return":
			v, err := e.eval(l.Children[1], env)
			if err != nil {
				return nil, err
			}
			return nil, &ReturnSignal{Value: v}
		case "fail":
			v, err := e.eval(l.Children[1], env)
			if err != nil {
				return nil, err
			}
			return nil, &FailSignal{Value: v}
		case "try":
			return e.evalTry(l, env)
		case "->":
			return e.eval(threadFirst(l), env)
		case "->>":
			return e.eval(threadLast(l), env)
		}
	}

	fn, err := e.eval(l.Children[0], env)
	if err != nil {
		return nil, err
	}
	args := make([]object.Value, len(l.Children)-1)
	for i, a := range l.Children[1:] {
		v, err := e.eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return e.Apply(fn, args)
}

func (e *Evaluator) evalIf(l *ast.List, env *Environment) (object.Value, error) {
	cond, err := e.eval(l.Children[1], env)
	if err != nil {
		return nil, err
	}
	if object.Truthy(cond) {
		return e.eval(l.Children[2], env)
	}
	return e.eval(l.Children[3], env)
}

func (e *Evaluator) evalWhen(l *ast.List, env *Environment, wantTrue bool) (object.Value, error) {
	cond, err := e.eval(l.Children[1], env)
	if err != nil {
		return nil, err
	}
	if object.Truthy(cond) != wantTrue {
		return object.Nil{}, nil
	}
	return e.evalDo(l.Children[2:], env)
}

func (e *Evaluator) evalCond(l *ast.List, env *Environment) (object.Value, error) {
	rest := l.Children[1:]
	for i := 0; i+1 < len(rest); i += 2 {
		if kw, ok := rest[i].(*ast.Literal); ok {
			if k, isKw := kw.Value.(ast.Keyword); isKw && k.Name == "else" && k.Namespace == "" {
				return e.eval(rest[i+1], env)
			}
		}
		test, err := e.eval(rest[i], env)
		if err != nil {
			return nil, err
		}
		if object.Truthy(test) {
			return e.eval(rest[i+1], env)
		}
	}
	return object.Nil{}, nil
}

func (e *Evaluator) evalDo(nodes []ast.Node, env *Environment) (object.Value, error) {
	var result object.Value = object.Nil{}
	for _, n := range nodes {
		v, err := e.eval(n, env)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

func (e *Evaluator) evalLet(l *ast.List, env *Environment) (object.Value, error) {
	bindings := l.Children[1].(*ast.VectorLit)
	letEnv := NewEnclosedEnvironment(env)
	for i := 0; i+1 < len(bindings.Children); i += 2 {
		val, err := e.eval(bindings.Children[i+1], letEnv)
		if err != nil {
			return nil, err
		}
		if err := e.destructureBind(bindings.Children[i], val, letEnv); err != nil {
			return nil, err
		}
	}
	return e.evalDo(l.Children[2:], letEnv)
}

func paramsFromVector(v *ast.VectorLit) ([]Param, *Param) {
	var params []Param
	var variadic *Param
	for i := 0; i < len(v.Children); i++ {
		if ampVar, ok := v.Children[i].(*ast.Var); ok && ampVar.Namespace == "" && ampVar.Name == "&" {
			if i+1 < len(v.Children) {
				p := nodeToParam(v.Children[i+1])
				variadic = &p
			}
			break
		}
		params = append(params, nodeToParam(v.Children[i]))
	}
	return params, variadic
}

func nodeToParam(n ast.Node) Param {
	if v, ok := n.(*ast.Var); ok {
		return Param{Name: v.Name}
	}
	return Param{Pattern: n}
}

func (e *Evaluator) evalFn(l *ast.List, env *Environment) (object.Value, error) {
	paramsVec := l.Children[1].(*ast.VectorLit)
	params, variadic := paramsFromVector(paramsVec)
	return &Closure{Params: params, Variadic: variadic, Body: l.Children[2:], Env: env}, nil
}

func (e *Evaluator) evalDefn(l *ast.List, env *Environment) (object.Value, error) {
	name := l.Children[1].(*ast.Var).Name
	idx := 2
	var docstring string
	if lit, ok := l.Children[idx].(*ast.Literal); ok {
		if s, isStr := lit.Value.(string); isStr {
			docstring = s
			idx++
		}
	}
	paramsVec := l.Children[idx].(*ast.VectorLit)
	params, variadic := paramsFromVector(paramsVec)
	closure := &Closure{
		Params: params, Variadic: variadic, Body: l.Children[idx+1:], Env: env,
		Meta: ClosureMeta{Docstring: docstring},
	}
	env.Bind(name, closure)
	e.defineMemory(name, closure)
	return closure, nil
}

func (e *Evaluator) evalDef(l *ast.List, env *Environment) (object.Value, error) {
	name := l.Children[1].(*ast.Var).Name
	val, err := e.eval(l.Children[2], env)
	if err != nil {
		return nil, err
	}
	env.Bind(name, val)
	e.defineMemory(name, val)
	return val, nil
}

// defineMemory is idempotent across turns: def/defn always rebinds.
func (e *Evaluator) defineMemory(name string, val object.Value) {
	e.RC.mu.Lock()
	e.RC.Memory = e.RC.Memory.Assoc(object.String(name), val)
	e.RC.mu.Unlock()
}

func (e *Evaluator) evalTry(l *ast.List, env *Environment) (object.Value, error) {
	// (try body... (catch e handler...))
	body := l.Children[1:]
	var catchVar *ast.Var
	var catchBody []ast.Node
	if n := len(body); n > 0 {
		if catchList, ok := body[n-1].(*ast.List); ok && len(catchList.Children) >= 2 {
			if head, ok := catchList.Children[0].(*ast.Var); ok && head.Name == "catch" {
				if v, ok := catchList.Children[1].(*ast.Var); ok {
					catchVar = v
					catchBody = catchList.Children[2:]
					body = body[:n-1]
				}
			}
		}
	}
	result, err := e.evalDo(body, env)
	if err == nil {
		return result, nil
	}
	if _, isSignal := err.(*ReturnSignal); isSignal {
		return nil, err
	}
	if _, isSignal := err.(*FailSignal); isSignal {
		return nil, err
	}
	failure := taxonomy.AsFailure(err)
	if catchVar == nil {
		return nil, err
	}
	catchEnv := NewEnclosedEnvironment(env)
	catchEnv.Bind(catchVar.Name, failureToValue(failure))
	return e.evalDo(catchBody, catchEnv)
}

func failureToValue(f *taxonomy.Failure) object.Value {
	m := object.EmptyMap()
	m = m.Assoc(object.Keyword{Name: "reason"}, object.Keyword{Name: string(f.Reason)})
	m = m.Assoc(object.Keyword{Name: "message"}, object.String(f.Message))
	if f.Details != nil {
		dm := object.EmptyMap()
		for k, v := range f.Details {
			dm = dm.Assoc(object.Keyword{Name: k}, object.String(toString(v)))
		}
		m = m.Assoc(object.Keyword{Name: "details"}, dm)
	}
	return m
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
