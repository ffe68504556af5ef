package evaluator

import "github.com/ptcrunner/ptcrunner/internal/lisp/ast"

// threadFirst expands (-> x (f a) g (h b)) into (h (g (f x a)) b) — x is
// spliced in as the first argument of each successive form.
func threadFirst(l *ast.List) ast.Node {
	return threadInto(l, false)
}

// threadLast expands (->> x (f a) g (h b)) into (h b (g (f a x))) — x is
// spliced in as the last argument of each successive form.
func threadLast(l *ast.List) ast.Node {
	return threadInto(l, true)
}

func threadInto(l *ast.List, last bool) ast.Node {
	if len(l.Children) < 2 {
		return &ast.Literal{Position: l.Pos()}
	}
	acc := l.Children[1]
	for _, step := range l.Children[2:] {
		call, ok := step.(*ast.List)
		if !ok {
			call = &ast.List{Position: step.Pos(), Children: []ast.Node{step}}
		}
		var children []ast.Node
		if last {
			children = append(append([]ast.Node{}, call.Children...), acc)
		} else {
			children = append([]ast.Node{call.Children[0], acc}, call.Children[1:]...)
		}
		acc = &ast.List{Position: call.Pos(), Children: children}
	}
	return acc
}
