package evaluator

import (
	"sync"
	"time"

	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/trace"
)

// ToolCaller is the dispatch surface the sandbox implements so the
// evaluator never needs to know about caching, tool error wrapping, or
// tracing.
type ToolCaller interface {
	Call(name string, args *object.Map) (object.Value, error)
}

// ToolCallRecord is one {name, args, result} entry the loop surfaces
// in a Turn.
type ToolCallRecord struct {
	Name   string
	Args   object.Value
	Result object.Value
}

// ToolHandle is the runtime Value a `tool/name` reference evaluates to,
// whether it appears at a call site or is passed around as a function
// value (e.g. `(pmap tool/search items)`).
type ToolHandle struct {
	Name string
}

func (t *ToolHandle) Kind() object.Kind { return object.KindBuiltin }
func (t *ToolHandle) String() string    { return "#<tool " + t.Name + ">" }
func (t *ToolHandle) Equal(o object.Value) bool {
	ot, ok := o.(*ToolHandle)
	return ok && ot.Name == t.Name
}
func (t *ToolHandle) Hash() uint32 { return object.String("tool:" + t.Name).Hash() }

// HeapChecker is consulted by Eval after each top-level form to enforce
// the sandbox's best-effort heap ceiling. Builtins do not consult it.
type HeapChecker func() error

// RunContext carries everything shared across one program evaluation:
// the read-only input mapping, the mutable memory prelude, tool
// dispatch, accumulated side-channel output, and resource checks.
type RunContext struct {
	mu sync.Mutex

	Data   *object.Map // data/* and ctx/*
	Memory *object.Map // memory prelude visible under memory/*; def/defn replace it with an updated map

	Tools ToolCaller

	// History has room for three turn results (*1, *2, *3), History[0]
	// being the most recent. Nothing fills it and symbol lookup does not
	// read it: *1, *2 and *3 resolve like any other unqualified name.
	History [3]object.Value

	Prints    []string
	ToolCalls []ToolCallRecord

	PMapMaxFanout int
	Depth         int
	MaxDepth      int

	// MemoryStrategy governs how pmap/pcalls branch defs rejoin the
	// parent Memory: "forward" keeps successful branch defs (applied in
	// argument order for determinism), "isolate" (default) discards
	// them, "rollback" only matters at the turn-retry boundary above
	// the evaluator and is treated as "isolate" here.
	MemoryStrategy string

	HeapCheck HeapChecker

	// TraceSink, when non-nil, receives tool_start/tool_call and
	// parallel_join events as they happen. TraceID ties those events
	// back to the owning SubAgent run.
	TraceSink trace.Sink
	TraceID   string
}

// EmitTrace is a no-op when no sink is configured, so hot paths never
// pay for event construction when tracing isn't wired up.
func (rc *RunContext) EmitTrace(kind trace.Kind, metadata map[string]string) {
	if rc.TraceSink == nil {
		return
	}
	rc.TraceSink.Emit(trace.Event{
		TraceID:   rc.TraceID,
		Kind:      kind,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
}

func NewRunContext(data, memory *object.Map, tools ToolCaller) *RunContext {
	if data == nil {
		data = object.EmptyMap()
	}
	if memory == nil {
		memory = object.EmptyMap()
	}
	return &RunContext{Data: data, Memory: memory, Tools: tools, PMapMaxFanout: 8, MaxDepth: 5, MemoryStrategy: "isolate"}
}

func (rc *RunContext) Print(s string) {
	rc.mu.Lock()
	rc.Prints = append(rc.Prints, s)
	rc.mu.Unlock()
}

func (rc *RunContext) RecordToolCall(rec ToolCallRecord) {
	rc.mu.Lock()
	rc.ToolCalls = append(rc.ToolCalls, rec)
	rc.mu.Unlock()
}

// checkHeap consults HeapCheck if one is installed.
func (rc *RunContext) checkHeap() error {
	if rc.HeapCheck == nil {
		return nil
	}
	return rc.HeapCheck()
}

// Fork produces a child RunContext for a pmap/pcalls branch: same Data
// and Tools, a private Memory snapshot (branch-local defs never leak
// back into the parent — merging, if any, happens at the join point
// per the configured memory_strategy, not inside the evaluator), and
// the same Depth as the parent: a branch is not a nested sub-agent.
func (rc *RunContext) Fork() *RunContext {
	rc.mu.Lock()
	memSnapshot := rc.Memory
	rc.mu.Unlock()
	return &RunContext{
		Data:           rc.Data,
		Memory:         memSnapshot,
		Tools:          rc.Tools,
		History:        rc.History,
		PMapMaxFanout:  rc.PMapMaxFanout,
		Depth:          rc.Depth,
		MaxDepth:       rc.MaxDepth,
		MemoryStrategy: rc.MemoryStrategy,
		HeapCheck:      rc.HeapCheck,
		TraceSink:      rc.TraceSink,
		TraceID:        rc.TraceID,
	}
}
