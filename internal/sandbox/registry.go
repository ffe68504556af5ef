// Package sandbox is the isolated worker that evaluates one PTC-Lisp
// program under resource caps: heap ceiling, timeout, and call depth.
// It owns tool dispatch (including per-{name,args} result caching) so
// the evaluator package never needs to know about either concern.
package sandbox

import (
	"sync"

	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

// ToolFunc is a native tool implementation: it receives the single
// record-map argument a program's `(tool/name {...})` call evaluated,
// and returns a result value or an error.
type ToolFunc func(args *object.Map) (object.Value, error)

// ToolKind mirrors the three tool types a caller can register: plain
// native functions, LLM-backed tools invoked through the same callback
// the loop uses for turns, and nested sub-agents.
type ToolKind string

const (
	ToolNative   ToolKind = "native"
	ToolLLM      ToolKind = "llm"
	ToolSubAgent ToolKind = "subagent"
)

// Tool is one registered callable, with optional declared signature
// and description surfaced in system prompts.
type Tool struct {
	Name        string
	Fn          ToolFunc
	Kind        ToolKind
	Signature   string
	Description string
	Cache       bool
	PlanningOnly bool // listed in the prompt's catalog but not callable
}

// Registry dispatches `tool/name` calls and memoizes results for tools
// declared with cache: true. Per-{name,args} caching is scoped to one
// run: a fresh Registry is built for every SubAgent/Lisp.run call.
//
// Under pmap, concurrent cache misses for the same key both execute;
// only successful results are stored and the last writer wins. This is
// intentional (callers requiring exactly-once semantics should not
// declare cache: true on a tool exercised under pmap).
type Registry struct {
	mu    sync.Mutex
	tools map[string]*Tool
	cache map[string]object.Value
}

func NewRegistry(tools ...*Tool) *Registry {
	r := &Registry{tools: make(map[string]*Tool), cache: make(map[string]object.Value)}
	for _, t := range tools {
		r.tools[t.Name] = t
	}
	return r
}

// Merge builds a fresh Registry carrying every tool in base plus
// extra, extra winning on name collision. base is never mutated, so a
// caller layering a per-run tool (e.g. subagent's "self") onto a
// shared, long-lived Registry can't race other concurrent runs using
// the same base.
func Merge(base *Registry, extra ...*Tool) *Registry {
	var tools []*Tool
	if base != nil {
		tools = base.Tools()
	}
	tools = append(tools, extra...)
	return NewRegistry(tools...)
}

func (r *Registry) Register(t *Tool) { r.mu.Lock(); r.tools[t.Name] = t; r.mu.Unlock() }

func (r *Registry) Lookup(name string) (*Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	return t, ok
}

// Callable tools, in registration order is not preserved (map-backed);
// callers that need a stable catalog order should sort by name.
func (r *Registry) Tools() []*Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Call implements evaluator.ToolCaller. Dispatch does not branch on
// Kind: ToolNative, ToolLLM, and ToolSubAgent tools are all just a Fn
// to invoke, and the prompt catalog (see promptbuilder) does not read
// Kind either. A PlanningOnly tool is refused with :unknown_tool.
// Nested-agent dispatch is built on top of
// this, not inside it: subagent.Run registers a ToolSubAgent-kind
// "self" tool per run whose Fn recurses into Run itself — see
// subagent.go's selfTool.
func (r *Registry) Call(name string, args *object.Map) (object.Value, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, taxonomy.New(taxonomy.UnknownTool, "no tool registered: "+name).WithOp("tool/" + name)
	}
	if t.PlanningOnly {
		return nil, taxonomy.New(taxonomy.UnknownTool, "tool is for planning only: "+name).WithOp("tool/" + name)
	}

	if !t.Cache {
		return r.invoke(t, args)
	}

	key := name + ":" + args.String()
	r.mu.Lock()
	if v, hit := r.cache[key]; hit {
		r.mu.Unlock()
		return v, nil
	}
	r.mu.Unlock()

	v, err := r.invoke(t, args)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[key] = v
	r.mu.Unlock()
	return v, nil
}

func (r *Registry) invoke(t *Tool, args *object.Map) (result object.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = taxonomy.New(taxonomy.ToolError, "tool panicked").WithOp("tool/" + t.Name).WithDetail("panic", p)
		}
	}()
	v, callErr := t.Fn(args)
	if callErr != nil {
		if f, ok := callErr.(*taxonomy.Failure); ok {
			return nil, f
		}
		return nil, taxonomy.New(taxonomy.ToolError, callErr.Error()).WithOp("tool/" + t.Name)
	}
	return v, nil
}
