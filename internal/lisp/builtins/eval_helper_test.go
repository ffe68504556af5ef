package builtins_test

import (
	"context"
	"testing"

	"github.com/ptcrunner/ptcrunner/internal/lisp/builtins"
	"github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/lisp/parser"
)

func runSrc(t *testing.T, src string) (object.Value, error) {
	t.Helper()
	nodes, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): unexpected error: %v", src, err)
	}
	rc := evaluator.NewRunContext(nil, nil, nil)
	env := evaluator.NewEnvironment()
	builtins.Register(env)
	ev := evaluator.New(context.Background(), rc)
	return ev.Eval(nodes, env)
}

func mustEval(t *testing.T, src string) object.Value {
	t.Helper()
	v, err := runSrc(t, src)
	if err != nil {
		t.Fatalf("eval(%q): unexpected error: %v", src, err)
	}
	return v
}

func wantErr(t *testing.T, src string) error {
	t.Helper()
	v, err := runSrc(t, src)
	if err == nil {
		t.Fatalf("eval(%q) = %v, want an error", src, v)
	}
	return err
}
