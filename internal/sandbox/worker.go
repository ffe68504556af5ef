package sandbox

import (
	"context"
	"runtime"
	"time"

	"github.com/ptcrunner/ptcrunner/internal/lisp/analyzer"
	"github.com/ptcrunner/ptcrunner/internal/lisp/builtins"
	"github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/lisp/parser"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
	"github.com/ptcrunner/ptcrunner/internal/trace"
)

// Options bounds one program evaluation.
type Options struct {
	MaxHeap        uint64 // bytes; 0 uses DefaultMaxHeap
	Timeout        time.Duration
	MaxDepth       int
	PMapMaxFanout  int
	Depth          int // current nesting depth, for max_depth enforcement across nested sub-agents
	MemoryStrategy string

	// TraceSink/TraceID, when set, carry tool_start/tool_call and
	// parallel_join events out of the evaluator for this program run.
	TraceSink trace.Sink
	TraceID   string
}

const (
	DefaultMaxHeap = 10 << 20 // 10 MB
	DefaultTimeout = time.Second
)

// Result is what one program evaluation produces: either a value, or a
// Failure classified per the error taxonomy.
type Result struct {
	Value    object.Value
	Returned bool // true only when the program issued an explicit (return v)
	Prints   []string
	Calls    []evaluator.ToolCallRecord
	Memory   *object.Map
	Failure  *taxonomy.Failure
}

// Worker parses, analyzes, and evaluates one program against data/memory
// under the resource caps in Options. It is stateless and safe to reuse
// across turns; all mutable state lives in the RunContext built for
// each Run call.
type Worker struct {
	Tools *Registry
}

func NewWorker(tools *Registry) *Worker {
	return &Worker{Tools: tools}
}

func (w *Worker) Run(ctx context.Context, source string, data, memory *object.Map, opts Options) Result {
	if opts.MaxHeap == 0 {
		opts.MaxHeap = DefaultMaxHeap
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = 5
	}
	if opts.PMapMaxFanout == 0 {
		opts.PMapMaxFanout = 8
	}
	if opts.MemoryStrategy == "" {
		opts.MemoryStrategy = "isolate"
	}

	if opts.Depth > opts.MaxDepth {
		return Result{Failure: taxonomy.New(taxonomy.DepthLimit, "max nested sub-agent depth exceeded").WithOp("sandbox")}
	}

	nodes, err := parser.Parse(source)
	if err != nil {
		return Result{Failure: taxonomy.AsFailure(err)}
	}
	if issues := analyzer.Analyze(nodes); len(issues) > 0 {
		return Result{Failure: issues[0]}
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	rc := evaluator.NewRunContext(data, memory, w.Tools)
	rc.PMapMaxFanout = opts.PMapMaxFanout
	rc.Depth = opts.Depth
	rc.MaxDepth = opts.MaxDepth
	rc.MemoryStrategy = opts.MemoryStrategy
	rc.HeapCheck = heapChecker(opts.MaxHeap)
	rc.TraceSink = opts.TraceSink
	rc.TraceID = opts.TraceID

	env := evaluator.NewEnvironment()
	builtins.Register(env)
	populateMemory(env, memory)

	ev := evaluator.New(runCtx, rc)
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- Result{Prints: rc.Prints, Calls: rc.ToolCalls, Memory: rc.Memory,
					Failure: taxonomy.New(taxonomy.ExecutionError, "evaluation panicked").WithOp("sandbox").WithDetail("panic", p)}
			}
		}()
		v, evalErr := ev.Eval(nodes, env)
		done <- finalize(v, evalErr, rc)
	}()

	select {
	case res := <-done:
		return res
	case <-runCtx.Done():
		return Result{
			Prints:  rc.Prints,
			Calls:   rc.ToolCalls,
			Memory:  rc.Memory,
			Failure: taxonomy.New(taxonomy.Timeout, "program exceeded its timeout").WithOp("sandbox"),
		}
	}
}

func finalize(v object.Value, evalErr error, rc *evaluator.RunContext) Result {
	base := Result{Prints: rc.Prints, Calls: rc.ToolCalls, Memory: rc.Memory}
	switch t := evalErr.(type) {
	case nil:
		base.Value = v
		return base
	case *evaluator.ReturnSignal:
		base.Value = t.Value
		base.Returned = true
		return base
	case *evaluator.FailSignal:
		base.Failure = taxonomy.New(taxonomy.ExecutionError, t.Value.String()).WithOp("program").WithDetail("value", t.Value.String())
		return base
	default:
		base.Failure = taxonomy.AsFailure(evalErr)
		return base
	}
}

// populateMemory binds every memory/* entry into the root Environment
// under its bare name, so prior-turn def/defn results resolve via
// plain lexical lookup the same way freshly-bound names do.
func populateMemory(env *evaluator.Environment, memory *object.Map) {
	if memory == nil {
		return
	}
	memory.Range(func(k, v object.Value) bool {
		if s, ok := k.(object.String); ok {
			env.Bind(string(s), v)
		}
		return true
	})
}

// heapChecker polls runtime heap stats at evaluation safe points. This
// is a best-effort ceiling: Go's GC-managed heap cannot be metered
// per-goroutine, so it samples process-wide HeapAlloc, which is
// conservative for concurrent pmap branches sharing one process.
func heapChecker(maxHeap uint64) evaluator.HeapChecker {
	var stats runtime.MemStats
	return func() error {
		runtime.ReadMemStats(&stats)
		if stats.HeapAlloc > maxHeap {
			return taxonomy.New(taxonomy.HeapLimit, "heap ceiling exceeded").WithOp("sandbox")
		}
		return nil
	}
}
