// Package ptcrunner is the embedding surface: SubAgent.run, Lisp.run,
// Tool.new, and Signature.parse/validate, matching the four entry
// points a host application wires against.
package ptcrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/promptbuilder"
	"github.com/ptcrunner/ptcrunner/internal/sandbox"
	"github.com/ptcrunner/ptcrunner/internal/signature"
	"github.com/ptcrunner/ptcrunner/internal/subagent"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
	"github.com/ptcrunner/ptcrunner/internal/trace"
)

type (
	Value       = object.Value
	Step        = subagent.Step
	Turn        = subagent.Turn
	Signature   = signature.Signature
	Tool        = sandbox.Tool
	LLMFunc     = subagent.LLMFunc
	LLMResponse = subagent.LLMResponse
	LLMTokens   = subagent.LLMTokens
	Failure     = taxonomy.Failure
)

// SubAgentSpec is a configured turn loop: a mission, an optional
// signature, a tool set, and budgets.
type SubAgentSpec struct {
	Name         string
	Mission      string
	Signature    string // parsed lazily by SubAgentRun
	Tools        *sandbox.Registry
	Mode         string
	OutputFormat promptbuilder.OutputFormat
	PromptPrefix string
	PromptSuffix string
}

// SubAgentRunOpts mirrors the loop's budget/strategy knobs.
type SubAgentRunOpts struct {
	LLM              LLMFunc
	Context          map[string]Value
	Memory           map[string]Value
	MaxTurns         int
	RetryTurns       int
	MaxDepth         int
	Depth            int
	Timeout          time.Duration
	PMapTimeout      time.Duration
	MissionTimeout   time.Duration
	TurnBudget       int
	TokenLimit       int
	OnBudgetExceeded string
	MemoryStrategy   string
	ToolCallLimit    int
	OnChunk          func(string)
	TraceSink        trace.Sink
	ParentTraceID    string
}

// SubAgentRun runs spec's mission through opts.LLM under the
// configured turn budget, producing a Step.
func SubAgentRun(ctx context.Context, spec SubAgentSpec, opts SubAgentRunOpts) (*Step, error) {
	var sig *Signature
	if spec.Signature != "" {
		parsed, err := signature.Parse(spec.Signature)
		if err != nil {
			return nil, fmt.Errorf("ptcrunner: invalid signature: %w", err)
		}
		sig = parsed
	}

	return subagent.Run(ctx, subagent.Opts{
		Name: spec.Name, Mission: spec.Mission, LLM: opts.LLM,
		Context: mapToObject(opts.Context), Memory: mapToObject(opts.Memory),
		Tools: spec.Tools, Signature: sig, Mode: spec.Mode, OutputFormat: spec.OutputFormat,
		PromptPrefix: spec.PromptPrefix, PromptSuffix: spec.PromptSuffix,
		MaxTurns: opts.MaxTurns, RetryTurns: opts.RetryTurns, MaxDepth: opts.MaxDepth, Depth: opts.Depth,
		Timeout: opts.Timeout, PMapTimeout: opts.PMapTimeout, MissionTimeout: opts.MissionTimeout,
		TurnBudget: opts.TurnBudget, TokenLimit: opts.TokenLimit, OnBudgetExceeded: opts.OnBudgetExceeded,
		MemoryStrategy: opts.MemoryStrategy, ToolCallLimit: opts.ToolCallLimit, OnChunk: opts.OnChunk,
		TraceSink: opts.TraceSink, ParentTraceID: opts.ParentTraceID,
	}), nil
}

// LispRunOpts configures a single-shot Lisp.run call.
type LispRunOpts struct {
	Context *map[string]Value
	Memory  *map[string]Value
	Tools   *sandbox.Registry
	Timeout time.Duration
	MaxHeap uint64
}

// LispRun parses, analyzes, and evaluates source once, with no turn
// loop or LLM involved.
func LispRun(ctx context.Context, source string, opts LispRunOpts) (Value, *Step, error) {
	w := sandbox.NewWorker(sandbox.Merge(opts.Tools))
	var data, memory *object.Map
	if opts.Context != nil {
		data = mapToObject(*opts.Context)
	}
	if opts.Memory != nil {
		memory = mapToObject(*opts.Memory)
	}
	res := w.Run(ctx, source, data, memory, sandbox.Options{Timeout: opts.Timeout, MaxHeap: opts.MaxHeap})
	step := &Step{Prints: res.Prints, ToolCalls: res.Calls, Memory: res.Memory}
	if res.Failure != nil {
		step.Fail = res.Failure
		return nil, step, res.Failure
	}
	step.Return = res.Value
	return res.Value, step, nil
}

// ToolNew builds a Tool from a bare handler function plus optional
// signature/description/cache metadata.
func ToolNew(name string, fn sandbox.ToolFunc, signatureStr, description string, cache bool) *Tool {
	return &Tool{Name: name, Fn: fn, Kind: sandbox.ToolNative, Signature: signatureStr, Description: description, Cache: cache}
}

// SignatureParse parses a signature declaration.
func SignatureParse(s string) (*Signature, error) { return signature.Parse(s) }

// SignatureValidate validates v against sig's return type.
func SignatureValidate(v Value, sig *Signature) []signature.Issue {
	return signature.Validate(v, sig.Return)
}

func mapToObject(m map[string]Value) *object.Map {
	out := object.EmptyMap()
	for k, v := range m {
		out = out.Assoc(object.String(k), v)
	}
	return out
}
