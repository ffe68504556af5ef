package builtins

import (
	"strconv"
	"sync"

	"github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
	"github.com/ptcrunner/ptcrunner/internal/trace"
)

func parallelBuiltins() []*evaluator.Builtin {
	return []*evaluator.Builtin{
		{Name: "pmap", Fn: pmapBuiltin},
		{Name: "pcalls", Fn: pcallsBuiltin},
	}
}

// branchResult is one fanned-out branch's outcome: its result value (or
// error) and the forked RunContext it ran in, needed to rejoin Memory
// per the configured memory_strategy.
type branchResult struct {
	value object.Value
	err   error
	rc    *evaluator.RunContext
}

// runBranches fans work out across a bounded worker pool sized by
// RC.PMapMaxFanout, preserving input-order result alignment. Each
// branch gets its own forked RunContext (private Memory snapshot) and
// Evaluator sharing the parent's Ctx, so a parent timeout cancels every
// branch cooperatively.
func runBranches(e *evaluator.Evaluator, n int, work func(i int, be *evaluator.Evaluator) (object.Value, error)) []branchResult {
	results := make([]branchResult, n)
	fanout := e.RC.PMapMaxFanout
	if fanout <= 0 {
		fanout = 1
	}
	sem := make(chan struct{}, fanout)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			branchRC := e.RC.Fork()
			be := evaluator.New(e.Ctx, branchRC)
			v, err := work(i, be)
			results[i] = branchResult{value: v, err: err, rc: branchRC}
		}(i)
	}
	wg.Wait()
	e.RC.EmitTrace(trace.KindParallel, map[string]string{"branches": strconv.Itoa(n)})
	return results
}

// joinMemory applies each branch's post-fork Memory back onto the
// parent RC.Memory when memory_strategy is "forward", in branch-index
// order for determinism (branch completion order is intentionally not
// observed — parallel joins never assume an ordering beyond input
// position).
func joinMemory(e *evaluator.Evaluator, branches []branchResult) {
	if e.RC.MemoryStrategy != "forward" {
		return
	}
	for _, b := range branches {
		if b.err != nil || b.rc == nil {
			continue
		}
		for _, k := range b.rc.Memory.Keys() {
			v, _ := b.rc.Memory.Get(k)
			e.RC.Memory = e.RC.Memory.Assoc(k, v)
		}
	}
}

func pmapBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "pmap requires (fn, collection)").WithOp("pmap")
	}
	items, err := toItems("pmap", args[1])
	if err != nil {
		return nil, err
	}
	fn := args[0]
	branches := runBranches(e, len(items), func(i int, be *evaluator.Evaluator) (object.Value, error) {
		return be.Apply(fn, []object.Value{items[i]})
	})
	joinMemory(e, branches)

	out := make([]object.Value, len(branches))
	for i, b := range branches {
		if b.err != nil {
			return nil, b.err
		}
		out[i] = b.value
	}
	return &object.Vector{Items: out}, nil
}

func pcallsBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	fns := append([]object.Value(nil), args...)
	branches := runBranches(e, len(fns), func(i int, be *evaluator.Evaluator) (object.Value, error) {
		return be.Apply(fns[i], nil)
	})
	joinMemory(e, branches)

	out := make([]object.Value, len(branches))
	for i, b := range branches {
		if b.err != nil {
			return nil, b.err
		}
		out[i] = b.value
	}
	return &object.Vector{Items: out}, nil
}
