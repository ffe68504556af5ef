package evaluator

import (
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
	"github.com/ptcrunner/ptcrunner/internal/trace"
)

// Apply calls fn with args, dispatching on its concrete Kind: Closure,
// Builtin, or ToolHandle.
func (e *Evaluator) Apply(fn object.Value, args []object.Value) (object.Value, error) {
	switch f := fn.(type) {
	case *Closure:
		return e.applyClosure(f, args)
	case *Builtin:
		return f.Fn(e, args)
	case *ToolHandle:
		return e.callTool(f.Name, args)
	default:
		return nil, taxonomy.New(taxonomy.NotCallable, fn.String()+" is not callable").WithOp("apply")
	}
}

func (e *Evaluator) applyClosure(c *Closure, args []object.Value) (object.Value, error) {
	min := len(c.Params)
	if c.Variadic == nil && len(args) != min {
		return nil, taxonomy.New(taxonomy.InvalidArity, "wrong number of arguments").
			WithOp("apply").WithDetail("expected", min).WithDetail("got", len(args))
	}
	if c.Variadic != nil && len(args) < min {
		return nil, taxonomy.New(taxonomy.InvalidArity, "wrong number of arguments").
			WithOp("apply").WithDetail("expected_at_least", min).WithDetail("got", len(args))
	}

	callEnv := NewEnclosedEnvironment(c.Env)
	for i, p := range c.Params {
		if err := e.bindParam(p, args[i], callEnv); err != nil {
			return nil, err
		}
	}
	if c.Variadic != nil {
		rest := append([]object.Value(nil), args[min:]...)
		if err := e.bindParam(*c.Variadic, &object.Vector{Items: rest}, callEnv); err != nil {
			return nil, err
		}
	}
	return e.evalDo(c.Body, callEnv)
}

func (e *Evaluator) bindParam(p Param, val object.Value, env *Environment) error {
	if p.Pattern != nil {
		return e.destructureBind(p.Pattern, val, env)
	}
	env.Bind(p.Name, val)
	return nil
}

// callTool evaluates a tool/name call: args is converted to a single
// record-map argument, since every tool receives its call-form
// arguments already evaluated and bundled into one map.
func (e *Evaluator) callTool(name string, args []object.Value) (object.Value, error) {
	var record *object.Map
	if len(args) == 1 {
		if m, ok := args[0].(*object.Map); ok {
			record = m
		}
	}
	if record == nil {
		record = object.EmptyMap()
		for i, a := range args {
			record = record.Assoc(object.Int(i), a)
		}
	}
	if e.RC.Tools == nil {
		return nil, taxonomy.New(taxonomy.UnknownTool, "no tool registry configured").WithOp("tool/"+name)
	}
	e.RC.EmitTrace(trace.KindToolStart, map[string]string{"tool": name})
	result, err := e.RC.Tools.Call(name, record)
	okStr := "true"
	if err != nil {
		okStr = "false"
	}
	e.RC.EmitTrace(trace.KindToolCall, map[string]string{"tool": name, "ok": okStr})
	e.RC.RecordToolCall(ToolCallRecord{Name: name, Args: record, Result: result})
	if err != nil {
		return nil, err
	}
	return result, nil
}
