package evaluator_test

import (
	"context"
	"testing"

	"github.com/ptcrunner/ptcrunner/internal/lisp/builtins"
	"github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/lisp/parser"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

type runOpts struct {
	data   *object.Map
	memory *object.Map
	tools  evaluator.ToolCaller
}

func runSrc(t *testing.T, src string, o *runOpts) (object.Value, error, *evaluator.RunContext) {
	t.Helper()
	nodes, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): unexpected error: %v", src, err)
	}
	var data, memory *object.Map
	var tools evaluator.ToolCaller
	if o != nil {
		data, memory, tools = o.data, o.memory, o.tools
	}
	rc := evaluator.NewRunContext(data, memory, tools)
	env := evaluator.NewEnvironment()
	builtins.Register(env)
	ev := evaluator.New(context.Background(), rc)
	v, err := ev.Eval(nodes, env)
	return v, err, rc
}

func mustEval(t *testing.T, src string) object.Value {
	t.Helper()
	v, err, _ := runSrc(t, src, nil)
	if err != nil {
		t.Fatalf("eval(%q): unexpected error: %v", src, err)
	}
	return v
}

func TestEvalArithmeticAndLet(t *testing.T) {
	v := mustEval(t, `(let [x 2 y 3] (+ x (* y 2)))`)
	if v.(object.Int) != 8 {
		t.Errorf("got %v, want 8", v)
	}
}

func TestEvalIfBranches(t *testing.T) {
	if v := mustEval(t, `(if true 1 2)`); v.(object.Int) != 1 {
		t.Errorf("got %v, want 1", v)
	}
	if v := mustEval(t, `(if false 1 2)`); v.(object.Int) != 2 {
		t.Errorf("got %v, want 2", v)
	}
	if v := mustEval(t, `(if nil 1 2)`); v.(object.Int) != 2 {
		t.Errorf("nil is falsy: got %v, want 2", v)
	}
	if v := mustEval(t, `(if 0 1 2)`); v.(object.Int) != 1 {
		t.Errorf("0 is truthy: got %v, want 1", v)
	}
}

func TestEvalCondElse(t *testing.T) {
	v := mustEval(t, `(cond (= 1 2) "no" (= 1 1) "yes" :else "fallback")`)
	if v.(object.String) != "yes" {
		t.Errorf("got %v, want yes", v)
	}
	v = mustEval(t, `(cond (= 1 2) "no" :else "fallback")`)
	if v.(object.String) != "fallback" {
		t.Errorf("got %v, want fallback", v)
	}
}

func TestEvalFnClosureAndVariadic(t *testing.T) {
	v := mustEval(t, `(let [f (fn [a & rest] (count rest))] (f 1 2 3 4))`)
	if v.(object.Int) != 3 {
		t.Errorf("got %v, want 3", v)
	}
}

func TestEvalDefnRecursion(t *testing.T) {
	v := mustEval(t, `(do
		(defn fact [n] (if (<= n 1) 1 (* n (fact (- n 1)))))
		(fact 5))`)
	if v.(object.Int) != 120 {
		t.Errorf("got %v, want 120", v)
	}
}

func TestEvalDestructuringVectorAndMap(t *testing.T) {
	v := mustEval(t, `(let [[a b] [10 20]] (+ a b))`)
	if v.(object.Int) != 30 {
		t.Errorf("got %v, want 30", v)
	}
	v = mustEval(t, `(let [{:keys [x y]} {:x 1 :y 2}] (+ x y))`)
	if v.(object.Int) != 3 {
		t.Errorf("got %v, want 3", v)
	}
}

func TestEvalForMaterializesVector(t *testing.T) {
	v := mustEval(t, `(for [x [1 2 3]] (* x x))`)
	vec, ok := v.(*object.Vector)
	if !ok {
		t.Fatalf("got %T, want *object.Vector", v)
	}
	want := []int64{1, 4, 9}
	if len(vec.Items) != len(want) {
		t.Fatalf("got %d items, want %d", len(vec.Items), len(want))
	}
	for i, w := range want {
		if int64(vec.Items[i].(object.Int)) != w {
			t.Errorf("item %d = %v, want %d", i, vec.Items[i], w)
		}
	}
}

func TestEvalForWhileStopsEarly(t *testing.T) {
	v := mustEval(t, `(for [x [1 2 3 4 5] :while (< x 4)] x)`)
	vec := v.(*object.Vector)
	if len(vec.Items) != 3 {
		t.Fatalf("got %d items, want 3 (stopped by :while)", len(vec.Items))
	}
}

func TestEvalDoseqReturnsNil(t *testing.T) {
	v := mustEval(t, `(doseq [x [1 2 3]] (* x x))`)
	if _, ok := v.(object.Nil); !ok {
		t.Errorf("got %T, want object.Nil", v)
	}
}

func TestEvalReturnStopsEvaluation(t *testing.T) {
	_, err, _ := runSrc(t, `(return 42) (def x 99)`, nil)
	rs, ok := err.(*evaluator.ReturnSignal)
	if !ok {
		t.Fatalf("err = %T, want *evaluator.ReturnSignal", err)
	}
	if rs.Value.(object.Int) != 42 {
		t.Errorf("ReturnSignal.Value = %v, want 42", rs.Value)
	}
}

func TestEvalFailProducesFailSignal(t *testing.T) {
	_, err, _ := runSrc(t, `(fail {:reason :bad})`, nil)
	fs, ok := err.(*evaluator.FailSignal)
	if !ok {
		t.Fatalf("err = %T, want *evaluator.FailSignal", err)
	}
	if _, ok := fs.Value.(*object.Map); !ok {
		t.Errorf("FailSignal.Value = %T, want *object.Map", fs.Value)
	}
}

func TestEvalTryCatchBindsFailureMap(t *testing.T) {
	v := mustEval(t, `(try
		(/ 1 0)
		(catch e (get e :reason)))`)
	kw, ok := v.(object.Keyword)
	if !ok {
		t.Fatalf("got %T, want object.Keyword", v)
	}
	if kw.Name == "" {
		t.Error("expected a non-empty failure reason keyword")
	}
}

func TestEvalTryUncaughtPropagatesReturnSignal(t *testing.T) {
	_, err, _ := runSrc(t, `(try (return 1) (catch e e))`, nil)
	if _, ok := err.(*evaluator.ReturnSignal); !ok {
		t.Fatalf("err = %T, want *evaluator.ReturnSignal (try must not swallow return)", err)
	}
}

func TestEvalUnboundVarError(t *testing.T) {
	_, err, _ := runSrc(t, `no-such-var`, nil)
	f, ok := err.(*taxonomy.Failure)
	if !ok {
		t.Fatalf("err = %T, want *taxonomy.Failure", err)
	}
	if f.Reason != taxonomy.UnboundVar {
		t.Errorf("Reason = %s, want unbound_var", f.Reason)
	}
}

func TestEvalDataAndMemoryNamespaces(t *testing.T) {
	data := object.NewMap(object.String("name"), object.String("widget"))
	memory := object.NewMap(object.String("count"), object.Int(7))
	v, err, _ := runSrc(t, `(str data/name "-" memory/count)`, &runOpts{data: data, memory: memory})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(object.String) != "widget-7" {
		t.Errorf("got %v, want widget-7", v)
	}
}

func TestEvalToolNamespaceAlwaysResolves(t *testing.T) {
	v := mustEval(t, `tool/search`)
	th, ok := v.(*evaluator.ToolHandle)
	if !ok {
		t.Fatalf("got %T, want *evaluator.ToolHandle", v)
	}
	if th.Name != "search" {
		t.Errorf("Name = %q, want search", th.Name)
	}
}

func TestEvalDefBindsIntoMemory(t *testing.T) {
	_, _, rc := runSrc(t, `(def x 5)`, nil)
	v, ok := rc.Memory.Get(object.String("x"))
	if !ok {
		t.Fatal("expected x to be bound into memory after def")
	}
	if v.(object.Int) != 5 {
		t.Errorf("memory x = %v, want 5", v)
	}
}

func TestEvalThreadFirstAndLast(t *testing.T) {
	v := mustEval(t, `(-> 5 (+ 1) (* 2))`)
	if v.(object.Int) != 12 {
		t.Errorf("got %v, want 12", v)
	}
	v = mustEval(t, `(->> [1 2 3] (map (fn [x] (* x 2))) (reduce + 0))`)
	if v.(object.Int) != 12 {
		t.Errorf("got %v, want 12", v)
	}
}

func TestEvalQuoteDoesNotEvaluate(t *testing.T) {
	v := mustEval(t, `'(+ 1 2)`)
	vec, ok := v.(*object.Vector)
	if !ok {
		t.Fatalf("got %T, want *object.Vector (quoted list becomes data)", v)
	}
	if len(vec.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(vec.Items))
	}
	if sym, ok := vec.Items[0].(object.Symbol); !ok || sym.Name != "+" {
		t.Errorf("first item = %v, want symbol +", vec.Items[0])
	}
}

func TestEvalNotCallableError(t *testing.T) {
	_, err, _ := runSrc(t, `(1 2 3)`, nil)
	f, ok := err.(*taxonomy.Failure)
	if !ok {
		t.Fatalf("err = %T, want *taxonomy.Failure", err)
	}
	if f.Reason != taxonomy.NotCallable {
		t.Errorf("Reason = %s, want not_callable", f.Reason)
	}
}

type echoTools struct{ calls int }

func (e *echoTools) Call(name string, args *object.Map) (object.Value, error) {
	e.calls++
	return object.String(name), nil
}

func TestEvalToolCallGoesThroughRunContext(t *testing.T) {
	tools := &echoTools{}
	v, err, rc := runSrc(t, `(tool/greet {:who "world"})`, &runOpts{tools: tools})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(object.String) != "greet" {
		t.Errorf("got %v, want greet", v)
	}
	if tools.calls != 1 {
		t.Errorf("tools.calls = %d, want 1", tools.calls)
	}
	if len(rc.ToolCalls) != 1 || rc.ToolCalls[0].Name != "greet" {
		t.Errorf("ToolCalls = %+v, want one record named greet", rc.ToolCalls)
	}
}

func TestForkKeepsDepthUnchanged(t *testing.T) {
	rc := evaluator.NewRunContext(nil, nil, nil)
	rc.Depth = 2
	child := rc.Fork()
	if child.Depth != 2 {
		t.Errorf("Fork().Depth = %d, want 2 (Fork does not increment depth)", child.Depth)
	}
}
