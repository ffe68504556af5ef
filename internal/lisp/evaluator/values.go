package evaluator

import (
	"fmt"
	"hash/fnv"

	"github.com/ptcrunner/ptcrunner/internal/lisp/ast"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
)

// Closure is a user-defined function: params, body, and the frame it
// closed over at definition time, captured by reference so later
// mutations of outer bindings are visible inside the closure. Meta
// carries defn's optional docstring and return-type hint.
type Closure struct {
	Params   []Param
	Variadic *Param // nil if not variadic
	Body     []ast.Node
	Env      *Environment
	Meta     ClosureMeta
}

// ClosureMeta is the metadata defn attaches: {docstring, return_type}.
type ClosureMeta struct {
	Docstring  string
	ReturnType string
}

// Param is a single function parameter, possibly a destructuring
// pattern rather than a bare symbol.
type Param struct {
	Name    string    // non-empty for a simple symbol binding
	Pattern ast.Node  // non-nil for a destructuring binding ([a b] or {:keys [..]})
}

func (c *Closure) Kind() object.Kind { return object.KindClosure }
func (c *Closure) String() string    { return "#<closure>" }
func (c *Closure) Equal(o object.Value) bool {
	oc, ok := o.(*Closure)
	return ok && oc == c
}
func (c *Closure) Hash() uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%p", c)
	return h.Sum32()
}

// Builtin wraps a native runtime-library function.
type Builtin struct {
	Name string
	Fn   func(e *Evaluator, args []object.Value) (object.Value, error)
}

func (b *Builtin) Kind() object.Kind { return object.KindBuiltin }
func (b *Builtin) String() string    { return "#<builtin " + b.Name + ">" }
func (b *Builtin) Equal(o object.Value) bool {
	ob, ok := o.(*Builtin)
	return ok && ob == b
}
func (b *Builtin) Hash() uint32 { return object.String(b.Name).Hash() }
