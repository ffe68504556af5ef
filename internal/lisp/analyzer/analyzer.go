// Package analyzer performs the single static pass over an AST that
// checks arity and shape of special forms and reports reserved-namespace
// writes before anything is evaluated. PTC-Lisp is dynamically typed,
// so there is no type-unification pass here, only arity/shape/
// namespace validation.
package analyzer

import (
	"github.com/ptcrunner/ptcrunner/internal/lisp/ast"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

var reservedSpecialForms = map[string]bool{
	"if": true, "when": true, "when-not": true, "cond": true,
	"let": true, "let*": true, "fn": true, "defn": true, "def": true,
	"quote": true, "for": true, "doseq": true, "return": true, "fail": true,
	"try": true, "do": true,
}

var comparisonOps = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "=": true,
}

var writeOnlyNamespaces = map[string]bool{
	"data": true, "tool": true, "ctx": true,
}

// Analyze walks every top-level form and returns all static issues
// found. An empty slice means the program is well-formed.
func Analyze(program []ast.Node) []*taxonomy.Failure {
	var issues []*taxonomy.Failure
	a := &analysis{}
	for _, n := range program {
		a.walk(n, true, &issues)
	}
	return issues
}

type analysis struct{}

func at(n ast.Node, reason taxonomy.Reason, msg string) *taxonomy.Failure {
	pos := n.Pos()
	return taxonomy.New(reason, msg).WithOp("analyze").
		WithDetail("line", pos.Line).WithDetail("column", pos.Column)
}

// walk checks n. topLevel indicates n sits directly in statement
// position (program top level, or the body of `do`), where `def`/`defn`
// are permitted.
func (a *analysis) walk(n ast.Node, topLevel bool, issues *[]*taxonomy.Failure) {
	switch node := n.(type) {
	case *ast.Var:
		// nothing static to check about a bare reference
	case *ast.Literal:
	case *ast.QuotedLit:
		// contents of quote are data, not evaluated/analyzed
	case *ast.VectorLit:
		for _, c := range node.Children {
			a.walk(c, false, issues)
		}
	case *ast.SetLit:
		for _, c := range node.Children {
			a.walk(c, false, issues)
		}
	case *ast.MapLit:
		if len(node.Children)%2 != 0 {
			*issues = append(*issues, at(node, taxonomy.InvalidForm, "map literal must have an even number of forms"))
		}
		for _, c := range node.Children {
			a.walk(c, false, issues)
		}
	case *ast.List:
		a.walkList(node, topLevel, issues)
	}
}

func (a *analysis) walkList(l *ast.List, topLevel bool, issues *[]*taxonomy.Failure) {
	if len(l.Children) == 0 {
		return // () evaluates to itself-ish; nothing to check statically
	}
	head, isVar := l.Children[0].(*ast.Var)
	name := ""
	if isVar && head.Namespace == "" {
		name = head.Name
	}

	switch {
	case name == "if":
		if len(l.Children) != 4 {
			*issues = append(*issues, at(l, taxonomy.InvalidArity, "if requires exactly 3 operands: (if cond then else)"))
		}
		a.walkArgs(l.Children[1:], issues)
		return

	case name == "when" || name == "when-not":
		if len(l.Children) < 2 {
			*issues = append(*issues, at(l, taxonomy.InvalidArity, name+" requires a condition and at least one body form"))
		}
		a.walkArgs(l.Children[1:], issues)
		return

	case name == "cond":
		rest := l.Children[1:]
		i := 0
		for i < len(rest) {
			if kw, ok := literalKeyword(rest[i]); ok && kw == "else" {
				if i+2 != len(rest) {
					*issues = append(*issues, at(l, taxonomy.InvalidForm, ":else must be the final cond clause"))
				}
				i += 2
				continue
			}
			if i+1 >= len(rest) {
				*issues = append(*issues, at(l, taxonomy.InvalidForm, "cond requires test/expression pairs"))
				break
			}
			i += 2
		}
		a.walkArgs(rest, issues)
		return

	case name == "let" || name == "let*":
		if len(l.Children) < 2 {
			*issues = append(*issues, at(l, taxonomy.InvalidArity, name+" requires a bindings vector"))
			return
		}
		bindings, ok := l.Children[1].(*ast.VectorLit)
		if !ok {
			*issues = append(*issues, at(l, taxonomy.InvalidForm, name+" bindings must be a vector"))
			return
		}
		if len(bindings.Children)%2 != 0 {
			*issues = append(*issues, at(l, taxonomy.DestructureError, name+" bindings vector must have an even number of forms"))
		}
		for i := 0; i+1 < len(bindings.Children); i += 2 {
			a.walkBindingTarget(bindings.Children[i], issues)
			a.walk(bindings.Children[i+1], false, issues)
		}
		a.walkArgs(l.Children[2:], issues)
		return

	case name == "fn":
		a.walkFnLike(l, 1, issues)
		return

	case name == "defn":
		if !topLevel {
			*issues = append(*issues, at(l, taxonomy.InvalidForm, "defn is only permitted at top level or inside do"))
		}
		idx := 1
		if len(l.Children) <= idx {
			*issues = append(*issues, at(l, taxonomy.InvalidArity, "defn requires a name and a params vector"))
			return
		}
		idx++ // name
		if idx < len(l.Children) {
			if _, isStr := literalString(l.Children[idx]); isStr {
				idx++ // optional docstring
			}
		}
		a.walkFnLike(l, idx, issues)
		return

	case name == "def":
		if !topLevel {
			*issues = append(*issues, at(l, taxonomy.InvalidForm, "def is only permitted at top level or inside do"))
		}
		if len(l.Children) != 3 {
			*issues = append(*issues, at(l, taxonomy.InvalidArity, "def requires exactly (def name expr)"))
			return
		}
		if v, ok := l.Children[1].(*ast.Var); ok {
			if v.Namespace == "memory" {
				*issues = append(*issues, at(l, taxonomy.ReservedNamespace, "cannot def memory/* names directly"))
			} else if writeOnlyNamespaces[v.Namespace] {
				*issues = append(*issues, at(l, taxonomy.ReservedNamespace, "cannot def into reserved namespace "+v.Namespace))
			}
		} else {
			*issues = append(*issues, at(l, taxonomy.InvalidForm, "def target must be a symbol"))
		}
		a.walk(l.Children[2], false, issues)
		return

	case name == "quote":
		if len(l.Children) != 2 {
			*issues = append(*issues, at(l, taxonomy.InvalidArity, "quote takes exactly one argument"))
		}
		return

	case name == "for":
		a.walkFor(l, issues)
		return

	case name == "doseq":
		a.walkFor(l, issues)
		return

	case name == "return" || name == "fail":
		if len(l.Children) != 2 {
			*issues = append(*issues, at(l, taxonomy.InvalidArity, name+" takes exactly one argument"))
		}
		a.walkArgs(l.Children[1:], issues)
		return

	case name == "try":
		// (try body... (catch e handler...))
		a.walkArgs(l.Children[1:], issues)
		return

	case name == "do":
		for _, c := range l.Children[1:] {
			a.walk(c, true, issues)
		}
		return

	case comparisonOps[name]:
		if len(l.Children) != 3 {
			*issues = append(*issues, at(l, taxonomy.InvalidArity, name+" accepts exactly 2 arguments"))
		}
		a.walkArgs(l.Children[1:], issues)
		return
	}

	// Ordinary call form.
	a.walk(l.Children[0], false, issues)
	a.walkArgs(l.Children[1:], issues)
}

func (a *analysis) walkArgs(nodes []ast.Node, issues *[]*taxonomy.Failure) {
	for _, n := range nodes {
		a.walk(n, false, issues)
	}
}

func (a *analysis) walkFnLike(l *ast.List, paramsIdx int, issues *[]*taxonomy.Failure) {
	if paramsIdx >= len(l.Children) {
		*issues = append(*issues, at(l, taxonomy.InvalidArity, "missing parameter vector"))
		return
	}
	params, ok := l.Children[paramsIdx].(*ast.VectorLit)
	if !ok {
		*issues = append(*issues, at(l, taxonomy.InvalidForm, "parameters must be a vector"))
		return
	}
	seenAmp := false
	for i, p := range params.Children {
		if kw, ok := p.(*ast.Var); ok && kw.Namespace == "" && kw.Name == "&" {
			if seenAmp || i != len(params.Children)-2 {
				*issues = append(*issues, at(l, taxonomy.InvalidForm, "& must directly precede the final binding"))
			}
			seenAmp = true
			continue
		}
		a.walkBindingTarget(p, issues)
	}
	for _, body := range l.Children[paramsIdx+1:] {
		a.walk(body, false, issues)
	}
}

func (a *analysis) walkBindingTarget(n ast.Node, issues *[]*taxonomy.Failure) {
	switch t := n.(type) {
	case *ast.Var:
		if writeOnlyNamespaces[t.Namespace] || t.Namespace == "memory" {
			*issues = append(*issues, at(n, taxonomy.ReservedNamespace, "cannot bind into reserved namespace "+t.Namespace))
		}
	case *ast.VectorLit:
		for _, c := range t.Children {
			a.walkBindingTarget(c, issues)
		}
	case *ast.MapLit:
		// {:keys [...]} / {:strs [...]} destructuring: validated at
		// runtime shape, nothing further to check statically here.
	}
}

func (a *analysis) walkFor(l *ast.List, issues *[]*taxonomy.Failure) {
	if len(l.Children) < 2 {
		*issues = append(*issues, at(l, taxonomy.InvalidArity, "for requires a binding vector"))
		return
	}
	bindings, ok := l.Children[1].(*ast.VectorLit)
	if !ok {
		*issues = append(*issues, at(l, taxonomy.InvalidForm, "for bindings must be a vector"))
		return
	}
	i := 0
	for i < len(bindings.Children) {
		if kw, ok := literalKeyword(bindings.Children[i]); ok {
			switch kw {
			case "let":
				if i+1 >= len(bindings.Children) {
					*issues = append(*issues, at(l, taxonomy.InvalidModifier, ":let requires a bindings vector"))
					break
				}
				if _, ok := bindings.Children[i+1].(*ast.VectorLit); !ok {
					*issues = append(*issues, at(l, taxonomy.InvalidModifier, ":let modifier requires a vector value"))
				}
				i += 2
			case "when", "while":
				if i+1 >= len(bindings.Children) {
					*issues = append(*issues, at(l, taxonomy.InvalidModifier, ":"+kw+" requires a value"))
					break
				}
				i += 2
			default:
				*issues = append(*issues, at(l, taxonomy.InvalidModifier, "unknown for modifier :"+kw))
				i += 2
			}
			continue
		}
		// a target/coll pair
		if i+1 >= len(bindings.Children) {
			*issues = append(*issues, at(l, taxonomy.InvalidForm, "for binding is missing its collection expression"))
			break
		}
		a.walkBindingTarget(bindings.Children[i], issues)
		a.walk(bindings.Children[i+1], false, issues)
		i += 2
	}
	for _, body := range l.Children[2:] {
		a.walk(body, false, issues)
	}
}

func literalKeyword(n ast.Node) (string, bool) {
	lit, ok := n.(*ast.Literal)
	if !ok {
		return "", false
	}
	kw, ok := lit.Value.(ast.Keyword)
	if !ok {
		return "", false
	}
	return kw.Name, true
}

func literalString(n ast.Node) (string, bool) {
	lit, ok := n.(*ast.Literal)
	if !ok {
		return "", false
	}
	s, ok := lit.Value.(string)
	return s, ok
}
