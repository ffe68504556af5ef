// Package ast defines the PTC-Lisp abstract syntax tree produced by the
// parser and consumed by the analyzer and evaluator. Every PTC-Lisp
// form is an expression; there are no statements.
package ast

import (
	"strconv"

	"github.com/ptcrunner/ptcrunner/internal/lisp/token"
)

// Node is the base interface for every AST node. Every node carries its
// source position for error reporting.
type Node interface {
	Pos() token.Position
	String() string
}

// Literal wraps a self-evaluating atom: nil, bool, int, float, string,
// or keyword.
type Literal struct {
	Position token.Position
	Value    interface{} // nil, bool, int64, float64, string, Keyword
}

func (l *Literal) Pos() token.Position { return l.Position }
func (l *Literal) String() string      { return litString(l.Value) }

// Keyword is the literal payload for a keyword atom.
type Keyword struct {
	Namespace string
	Name      string
}

// Var is a symbol reference, e.g. `x`, `data/items`, `tool/search`.
type Var struct {
	Position  token.Position
	Namespace string
	Name      string
}

func (v *Var) Pos() token.Position { return v.Position }
func (v *Var) String() string {
	if v.Namespace != "" {
		return v.Namespace + "/" + v.Name
	}
	return v.Name
}

// List is a call form or a special form; which one it is is resolved
// during analysis/evaluation by inspecting the head symbol.
type List struct {
	Position token.Position
	Children []Node
}

func (l *List) Pos() token.Position { return l.Position }
func (l *List) String() string {
	s := "("
	for i, c := range l.Children {
		if i > 0 {
			s += " "
		}
		s += c.String()
	}
	return s + ")"
}

// VectorLit is a `[...]` literal.
type VectorLit struct {
	Position token.Position
	Children []Node
}

func (v *VectorLit) Pos() token.Position { return v.Position }
func (v *VectorLit) String() string {
	s := "["
	for i, c := range v.Children {
		if i > 0 {
			s += " "
		}
		s += c.String()
	}
	return s + "]"
}

// MapLit is a `{...}` literal; Children holds an even number of nodes
// (alternating key, value).
type MapLit struct {
	Position token.Position
	Children []Node
}

func (m *MapLit) Pos() token.Position { return m.Position }
func (m *MapLit) String() string {
	s := "{"
	for i, c := range m.Children {
		if i > 0 {
			s += " "
		}
		s += c.String()
	}
	return s + "}"
}

// SetLit is a `#{...}` literal.
type SetLit struct {
	Position token.Position
	Children []Node
}

func (s *SetLit) Pos() token.Position { return s.Position }
func (s *SetLit) String() string {
	out := "#{"
	for i, c := range s.Children {
		if i > 0 {
			out += " "
		}
		out += c.String()
	}
	return out + "}"
}

// QuotedLit is `'expr`, sugar for `(quote expr)`.
type QuotedLit struct {
	Position token.Position
	Expr     Node
}

func (q *QuotedLit) Pos() token.Position { return q.Position }
func (q *QuotedLit) String() string      { return "'" + q.Expr.String() }

func litString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return "\"" + t + "\""
	case Keyword:
		if t.Namespace != "" {
			return ":" + t.Namespace + "/" + t.Name
		}
		return ":" + t.Name
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}
