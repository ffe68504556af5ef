package evaluator_test

import (
	"testing"

	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

func TestApplyClosureExactArityError(t *testing.T) {
	_, err, _ := runSrc(t, `(let [f (fn [a b] (+ a b))] (f 1))`, nil)
	f, ok := err.(*taxonomy.Failure)
	if !ok {
		t.Fatalf("err = %T, want *taxonomy.Failure", err)
	}
	if f.Reason != taxonomy.InvalidArity {
		t.Errorf("Reason = %s, want invalid_arity", f.Reason)
	}
}

func TestApplyClosureVariadicMinArityError(t *testing.T) {
	_, err, _ := runSrc(t, `(let [f (fn [a & rest] a)] (f))`, nil)
	f, ok := err.(*taxonomy.Failure)
	if !ok {
		t.Fatalf("err = %T, want *taxonomy.Failure", err)
	}
	if f.Reason != taxonomy.InvalidArity {
		t.Errorf("Reason = %s, want invalid_arity", f.Reason)
	}
}

func TestApplyClosureVariadicEmptyRest(t *testing.T) {
	v := mustEval(t, `(let [f (fn [a & rest] (count rest))] (f 1))`)
	if v.(object.Int) != 0 {
		t.Errorf("got %v, want 0 (empty variadic rest)", v)
	}
}

func TestApplyToolWithMultipleArgsBuildsIndexedRecord(t *testing.T) {
	tools := &recordingTools{}
	_, err, _ := runSrc(t, `(tool/add 1 2 3)`, &runOpts{tools: tools})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tools.lastArgs.Len() != 3 {
		t.Fatalf("args.Len() = %d, want 3", tools.lastArgs.Len())
	}
	v0, ok := tools.lastArgs.Get(object.Int(0))
	if !ok || v0.(object.Int) != 1 {
		t.Errorf("args[0] = %v, want 1", v0)
	}
}

func TestApplyToolWithSingleMapArgUsesItDirectly(t *testing.T) {
	tools := &recordingTools{}
	_, err, _ := runSrc(t, `(tool/lookup {:id 7})`, &runOpts{tools: tools})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := tools.lastArgs.Get(object.Keyword{Name: "id"})
	if !ok || v.(object.Int) != 7 {
		t.Errorf("args[:id] = %v, want 7", v)
	}
}

func TestApplyUnknownToolWithoutRegistryErrors(t *testing.T) {
	_, err, _ := runSrc(t, `(tool/anything 1)`, nil)
	f, ok := err.(*taxonomy.Failure)
	if !ok {
		t.Fatalf("err = %T, want *taxonomy.Failure", err)
	}
	if f.Reason != taxonomy.UnknownTool {
		t.Errorf("Reason = %s, want unknown_tool", f.Reason)
	}
}

type recordingTools struct {
	lastArgs *object.Map
}

func (r *recordingTools) Call(name string, args *object.Map) (object.Value, error) {
	r.lastArgs = args
	return object.Nil{}, nil
}
