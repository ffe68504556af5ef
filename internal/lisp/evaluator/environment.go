package evaluator

import (
	"sync"

	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
)

// Environment is a stack of immutable-from-the-outside binding frames.
// Lookup walks outward. The RWMutex exists because pmap branches read
// a snapshot of the parent frame concurrently while the branch itself
// may introduce new bindings of its own. Frames are strictly acyclic:
// the outer link only ever points further out.
type Environment struct {
	mu    sync.RWMutex
	store map[string]object.Value
	outer *Environment
}

func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]object.Value)}
}

func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.outer = outer
	return env
}

func (e *Environment) Get(name string) (object.Value, bool) {
	e.mu.RLock()
	v, ok := e.store[name]
	e.mu.RUnlock()
	if !ok && e.outer != nil {
		return e.outer.Get(name)
	}
	return v, ok
}

// Bind introduces name in THIS frame (used for let/fn-param bindings,
// def/defn, catch bindings, and memory entries loaded by the sandbox).
func (e *Environment) Bind(name string, val object.Value) {
	e.mu.Lock()
	e.store[name] = val
	e.mu.Unlock()
}

// Snapshot returns a shallow, independent copy of this frame's local
// bindings. Nothing in the evaluator calls it: closures and pmap
// branches share their defining Environment by reference.
func (e *Environment) Snapshot() map[string]object.Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]object.Value, len(e.store))
	for k, v := range e.store {
		out[k] = v
	}
	return out
}
