// Package subagent implements the ReAct-style turn loop: each turn
// renders a prompt, calls the LLM callback, runs the returned program
// in the sandbox, and either finishes (explicit return/fail,
// validated against the agent's signature) or feeds the outcome back
// for another turn.
package subagent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/obslog"
	"github.com/ptcrunner/ptcrunner/internal/promptbuilder"
	"github.com/ptcrunner/ptcrunner/internal/sandbox"
	"github.com/ptcrunner/ptcrunner/internal/signature"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
	"github.com/ptcrunner/ptcrunner/internal/trace"
)

// LLMTokens reports one callback invocation's provider-side token
// accounting, when the caller can supply it.
type LLMTokens struct {
	Input  int
	Output int
}

// LLMResponse is the LLM callback's successful outcome.
type LLMResponse struct {
	Content string
	Tokens  LLMTokens
}

// LLMFunc is the caller-supplied turn callback: given the assembled
// system+user messages, it returns the model's raw response text and
// token accounting. onChunk is non-nil only when the caller asked for
// streaming (Opts.OnChunk); a provider that can't stream is free to
// ignore it and just return the final LLMResponse.
type LLMFunc func(ctx context.Context, systemPrompt, userMessage string, onChunk func(string)) (LLMResponse, error)

// Turn is an immutable record of one LLM<->interpreter round trip.
type Turn struct {
	Number      int
	RawResponse string
	Program     string
	Result      object.Value
	Err         *taxonomy.Failure
	Prints      []string
	ToolCalls   []evaluator.ToolCallRecord
	MemoryAfter *object.Map
	Success     bool
	Tokens      LLMTokens
}

// Usage tallies one run's resource consumption.
type Usage struct {
	Turns        int
	InputTokens  int
	OutputTokens int
	DurationMs   int64
}

// Step is the immutable snapshot a run (or nested sub-agent call)
// produces: every turn, the final return or fail outcome, and usage.
type Step struct {
	Name          string
	Prompt        string
	TraceID       string
	ParentTraceID string
	Turns         []Turn
	Memory        *object.Map
	Prints        []string
	ToolCalls     []evaluator.ToolCallRecord
	Return        object.Value
	Fail          *taxonomy.Failure
	Usage         Usage
	ChildSteps    []*Step
}

// Opts configures one SubAgent.run call.
type Opts struct {
	Name             string
	Mission          string
	LLM              LLMFunc
	Context          *object.Map
	Memory           *object.Map
	Tools            *sandbox.Registry
	Signature        *signature.Signature
	Mode             string // "single-shot" | "multi-turn"
	OutputFormat     promptbuilder.OutputFormat
	PromptPrefix     string
	PromptSuffix     string
	MaxTurns         int
	RetryTurns       int
	MaxDepth         int
	Depth            int
	Timeout          time.Duration
	PMapTimeout      time.Duration
	MissionTimeout   time.Duration
	TurnBudget       int
	TokenLimit       int
	OnBudgetExceeded string // fail | return_partial
	MemoryStrategy   string // rollback | forward | isolate
	ToolCallLimit    int
	OnChunk          func(string)
	TraceSink        trace.Sink
	ParentTraceID    string
}

func (o *Opts) defaults() {
	if o.MaxTurns == 0 {
		o.MaxTurns = 1
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = 5
	}
	if o.Timeout == 0 {
		o.Timeout = sandbox.DefaultTimeout
	}
	if o.MemoryStrategy == "" {
		o.MemoryStrategy = "forward"
	}
	if o.Mode == "" {
		if o.MaxTurns > 1 {
			o.Mode = "multi-turn"
		} else {
			o.Mode = "single-shot"
		}
	}
	if o.OutputFormat == "" {
		o.OutputFormat = promptbuilder.FormatPTCLisp
	}
	if o.ToolCallLimit == 0 {
		o.ToolCallLimit = 20
	}
	if o.OnBudgetExceeded == "" {
		o.OnBudgetExceeded = "fail"
	}
}

// Run drives the full turn loop and returns the finished Step. It
// never returns an error: every outcome, including a fatal one, is
// recorded on the returned Step's Fail field.
func Run(ctx context.Context, opts Opts) *Step {
	opts.defaults()
	start := timeNow()
	traceID := trace.NewTraceID()

	step := &Step{
		Name:          opts.Name,
		Prompt:        opts.Mission,
		TraceID:       traceID,
		ParentTraceID: opts.ParentTraceID,
		Memory:        opts.Memory,
	}
	if step.Memory == nil {
		step.Memory = object.EmptyMap()
	}

	emit(opts.TraceSink, trace.Event{TraceID: traceID, ParentTraceID: opts.ParentTraceID, Kind: trace.KindRunStart, Timestamp: timeNow()})

	if opts.Depth > opts.MaxDepth {
		step.Fail = taxonomy.New(taxonomy.DepthLimit, "max sub-agent nesting depth exceeded").WithOp("subagent")
		return finish(step, opts, traceID, start)
	}

	systemPrompt := promptbuilder.Build(promptbuilder.Options{
		Mode: opts.Mode, Tools: callableTools(opts.Tools), Signature: opts.Signature,
		OutputFormat: opts.OutputFormat, Prefix: opts.PromptPrefix, Suffix: opts.PromptSuffix,
	})

	var ctxDeadline context.Context
	var cancel context.CancelFunc
	if opts.MissionTimeout > 0 {
		ctxDeadline, cancel = context.WithTimeout(ctx, opts.MissionTimeout)
	} else {
		ctxDeadline, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var childMu sync.Mutex
	runTools := sandbox.Merge(opts.Tools, selfTool(ctxDeadline, opts, step, traceID, &childMu))

	var history []evaluator.ToolCallRecord
	var prints []string
	var lastFailure *taxonomy.Failure
	var lastProgram string
	var lastValue object.Value

	turnsUsed := 0
	retryUsed := 0
	turnNumber := 0

	for turnsUsed < opts.MaxTurns {
		select {
		case <-ctxDeadline.Done():
			step.Fail = taxonomy.New(taxonomy.Timeout, "mission_timeout exceeded").WithOp("subagent")
			return finish(step, opts, traceID, start)
		default:
		}

		if opts.TurnBudget > 0 && turnsUsed >= opts.TurnBudget {
			return finishBudgetExceeded(step, opts, traceID, start, lastValue, "turn_budget of %d turns exceeded", opts.TurnBudget)
		}
		if opts.TokenLimit > 0 && step.Usage.InputTokens+step.Usage.OutputTokens >= opts.TokenLimit {
			return finishBudgetExceeded(step, opts, traceID, start, lastValue, "token_limit of %d tokens exceeded", opts.TokenLimit)
		}

		turnNumber++
		isFinalTurn := turnsUsed == opts.MaxTurns-1 && retryUsed >= opts.RetryTurns
		userMessage := renderUserMessage(opts, history, prints, lastFailure, lastProgram, isFinalTurn, opts.MaxTurns-turnsUsed)

		emit(opts.TraceSink, trace.Event{TraceID: traceID, Kind: trace.KindTurnStart, Turn: turnNumber, Timestamp: timeNow()})
		emit(opts.TraceSink, trace.Event{TraceID: traceID, Kind: trace.KindLLMStart, Turn: turnNumber, Timestamp: timeNow()})

		resp, err := opts.LLM(ctxDeadline, systemPrompt, userMessage, safeOnChunk(ctxDeadline, opts.OnChunk))

		emit(opts.TraceSink, trace.Event{TraceID: traceID, Kind: trace.KindLLMStop, Turn: turnNumber, Timestamp: timeNow()})

		if err != nil {
			step.Fail = taxonomy.New(taxonomy.ExecutionError, "llm callback error: "+err.Error()).WithOp("subagent")
			return finish(step, opts, traceID, start)
		}
		step.Usage.InputTokens += resp.Tokens.Input
		step.Usage.OutputTokens += resp.Tokens.Output

		raw := resp.Content
		program := extractProgram(raw)
		lastProgram = program

		localOpts := opts
		localOpts.Tools = runTools
		res := runProgram(ctxDeadline, localOpts, step.Memory, program, traceID)
		if res.Value != nil {
			lastValue = res.Value
		}

		turn := Turn{
			Number: turnNumber, RawResponse: raw, Program: program,
			Result: res.Value, Prints: res.Prints, ToolCalls: res.Calls, MemoryAfter: res.Memory,
			Tokens: resp.Tokens,
		}

		switch {
		case res.Returned:
			if opts.Signature != nil {
				issues := signature.Validate(res.Value, opts.Signature.Return)
				if len(issues) > 0 {
					failure := taxonomy.New(taxonomy.SignatureMismatch, issues[0].Message).
						WithOp("subagent").WithDetail("path", issues[0].Path)
					turn.Err = failure
					turn.Success = false
					step.Turns = append(step.Turns, turn)
					lastFailure = failure
					applyMemoryStrategy(step, res, opts)
					history, prints = appendHistory(history, prints, res, opts.ToolCallLimit)
					emit(opts.TraceSink, trace.Event{TraceID: traceID, Kind: trace.KindTurnEnd, Turn: turnNumber, Timestamp: timeNow()})
					if retryUsed < opts.RetryTurns {
						retryUsed++
						continue
					}
					turnsUsed++
					continue
				}
			}
			turn.Success = true
			step.Turns = append(step.Turns, turn)
			step.Return = res.Value
			step.Memory = res.Memory
			turnsUsed++
			step.Usage.Turns = turnsUsed
			emit(opts.TraceSink, trace.Event{TraceID: traceID, Kind: trace.KindTurnEnd, Turn: turnNumber, Timestamp: timeNow()})
			return finish(step, opts, traceID, start)

		case res.Failure != nil:
			turn.Err = res.Failure
			turn.Success = false
			step.Turns = append(step.Turns, turn)
			lastFailure = res.Failure
			applyMemoryStrategy(step, res, opts)
			history, prints = appendHistory(history, prints, res, opts.ToolCallLimit)
			emit(opts.TraceSink, trace.Event{TraceID: traceID, Kind: trace.KindTurnEnd, Turn: turnNumber, Timestamp: timeNow()})

			// An explicit (fail ...) (Op "program", set by the sandbox)
			// ends the run just like a fatal reason does.
			if res.Failure.Op == "program" || taxonomy.Classify(res.Failure.Reason) == taxonomy.Fatal {
				step.Fail = res.Failure
				turnsUsed++
				step.Usage.Turns = turnsUsed
				return finish(step, opts, traceID, start)
			}
			turnsUsed++

		default:
			turn.Success = true
			step.Turns = append(step.Turns, turn)
			lastFailure = nil
			step.Memory = res.Memory
			history, prints = appendHistory(history, prints, res, opts.ToolCallLimit)
			emit(opts.TraceSink, trace.Event{TraceID: traceID, Kind: trace.KindTurnEnd, Turn: turnNumber, Timestamp: timeNow()})
			turnsUsed++
		}
	}

	step.Fail = taxonomy.New(taxonomy.MaxTurns, "exhausted max_turns without a return").WithOp("subagent")
	step.Usage.Turns = turnsUsed
	return finish(step, opts, traceID, start)
}

// selfTool builds the ":self" sentinel a program can call as
// `(tool/self {:mission "..."})` to recurse into a fresh turn loop
// sharing this run's tools and signature. The child gets half of this
// run's configured turn_budget, token_limit and max_turns (shareBudget);
// what this run has already spent is not subtracted first. The child
// Step is appended to parent.ChildSteps under
// childMu, since pmap can call tool/self from several branches at once.
func selfTool(ctx context.Context, opts Opts, parent *Step, parentTraceID string, childMu *sync.Mutex) *sandbox.Tool {
	return &sandbox.Tool{
		Name:        "self",
		Kind:        sandbox.ToolSubAgent,
		Description: "recurse into a nested sub-agent run sharing this agent's tools and signature",
		Fn: func(args *object.Map) (object.Value, error) {
			mission := opts.Mission
			if m, ok := args.Get(object.String("mission")); ok {
				if s, ok := m.(object.String); ok {
					mission = string(s)
				}
			}
			childOpts := opts
			childOpts.Mission = mission
			childOpts.Depth = opts.Depth + 1
			childOpts.ParentTraceID = parentTraceID
			childOpts.TurnBudget = shareBudget(opts.TurnBudget)
			childOpts.TokenLimit = shareBudget(opts.TokenLimit)
			childOpts.MaxTurns = maxInt(1, opts.MaxTurns/2)

			child := Run(ctx, childOpts)
			childMu.Lock()
			parent.ChildSteps = append(parent.ChildSteps, child)
			childMu.Unlock()
			if child.Fail != nil {
				return nil, child.Fail
			}
			return child.Return, nil
		},
	}
}

// safeOnChunk wraps a caller's streaming observer so a panic inside it
// never takes down the turn loop: logged and swallowed, per the loop's
// never-crash-on-observer-failure contract. Returns nil when onChunk
// is nil, so a non-streaming LLMFunc sees exactly that and can skip
// streaming work entirely.
func safeOnChunk(ctx context.Context, onChunk func(string)) func(string) {
	if onChunk == nil {
		return nil
	}
	return func(s string) {
		defer func() {
			if p := recover(); p != nil {
				obslog.L(ctx).Error("on_chunk observer panicked", "panic", p)
			}
		}()
		onChunk(s)
	}
}

// shareBudget halves a parent budget for a child run, leaving
// unlimited (0) budgets unlimited and never rounding a positive budget
// down to 0.
func shareBudget(n int) int {
	if n <= 0 {
		return n
	}
	if h := n / 2; h > 0 {
		return h
	}
	return 1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// finishBudgetExceeded surfaces :budget_exceeded. In "fail" mode (the
// default) the run terminates as failed; in "return_partial" mode the
// Fail is still reported — a caller always learns the budget tripped —
// but the last in-flight result, if any, is surfaced as the Step's
// Return instead of leaving it empty.
func finishBudgetExceeded(step *Step, opts Opts, traceID string, start time.Time, lastValue object.Value, format string, arg int) *Step {
	step.Fail = taxonomy.New(taxonomy.BudgetExceeded, fmt.Sprintf(format, arg)).WithOp("subagent")
	if opts.OnBudgetExceeded == "return_partial" && lastValue != nil {
		step.Return = lastValue
	}
	step.Usage.Turns = len(step.Turns)
	return finish(step, opts, traceID, start)
}

func runProgram(ctx context.Context, opts Opts, memory *object.Map, program string, traceID string) sandbox.Result {
	w := sandbox.NewWorker(opts.Tools)
	timeout := opts.Timeout
	if opts.PMapTimeout > 0 && opts.PMapTimeout < timeout {
		timeout = opts.PMapTimeout
	}
	return w.Run(ctx, program, opts.Context, memory, sandbox.Options{
		Timeout: timeout, MaxDepth: opts.MaxDepth, Depth: opts.Depth, MemoryStrategy: opts.MemoryStrategy,
		TraceSink: opts.TraceSink, TraceID: traceID,
	})
}

// applyMemoryStrategy decides, on a failed turn (a program failure or a
// signature mismatch), whether the program's memory mutations survive
// into the next turn. Successful turns always carry their memory forward.
func applyMemoryStrategy(step *Step, res sandbox.Result, opts Opts) {
	if res.Memory == nil {
		return
	}
	switch opts.MemoryStrategy {
	case "forward":
		step.Memory = res.Memory
	case "rollback", "isolate":
		// keep step.Memory as the pre-turn snapshot
	default:
		step.Memory = res.Memory
	}
}

func appendHistory(history []evaluator.ToolCallRecord, prints []string, res sandbox.Result, limit int) ([]evaluator.ToolCallRecord, []string) {
	history = append(history, res.Calls...)
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	prints = append(prints, res.Prints...)
	return history, prints
}

func finish(step *Step, opts Opts, traceID string, start time.Time) *Step {
	step.Prints = mergePrints(step)
	step.Usage.DurationMs = timeNow().Sub(start).Milliseconds()
	emit(opts.TraceSink, trace.Event{TraceID: traceID, Kind: trace.KindRunEnd, Timestamp: timeNow()})
	return step
}

func mergePrints(step *Step) []string {
	var out []string
	for _, t := range step.Turns {
		out = append(out, t.Prints...)
	}
	return out
}

func emit(sink trace.Sink, e trace.Event) {
	if sink == nil {
		return
	}
	sink.Emit(e)
}

// extractProgram pulls the PTC-Lisp program out of a raw LLM response,
// stripping a fenced code block if present.
func extractProgram(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		lines := strings.Split(trimmed, "\n")
		if len(lines) >= 2 {
			lines = lines[1:]
		}
		if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
			lines = lines[:len(lines)-1]
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}
	return trimmed
}

func callableTools(r *sandbox.Registry) []*sandbox.Tool {
	if r == nil {
		return nil
	}
	return r.Tools()
}

// timeNow is isolated to one place so a future deterministic-clock
// injection point (for tests) only has to override this function.
func timeNow() time.Time { return time.Now() }

func renderUserMessage(opts Opts, history []evaluator.ToolCallRecord, prints []string, lastFailure *taxonomy.Failure, lastProgram string, finalTurn bool, turnsLeft int) string {
	var b strings.Builder
	b.WriteString("Mission:\n")
	b.WriteString(opts.Mission)
	b.WriteString("\n")

	if opts.Context != nil && opts.Context.Len() > 0 {
		b.WriteString("\ndata/ctx:\n")
		opts.Context.Range(func(k, v object.Value) bool {
			fmt.Fprintf(&b, "  %s = %s\n", k.String(), v.String())
			return true
		})
	}

	if len(history) > 0 {
		b.WriteString("\nExecution history:\n")
		for _, h := range history {
			fmt.Fprintf(&b, "  (%s %s) => %s\n", h.Name, h.Args.String(), h.Result.String())
		}
	}

	if len(prints) > 0 {
		b.WriteString("\nOutput so far:\n")
		for _, p := range truncatePrints(prints) {
			b.WriteString("  " + p + "\n")
		}
	}

	if lastFailure != nil {
		b.WriteString("\nYour previous attempt:\n")
		b.WriteString("  " + lastProgram + "\n")
		b.WriteString("  error: " + lastFailure.Error() + "\n")
	}

	if finalTurn {
		b.WriteString("\nFINAL TURN — you must call (return ...) or (fail ...) now.\n")
	} else {
		fmt.Fprintf(&b, "\nTurns left: %d\n", turnsLeft)
	}
	return b.String()
}

// truncatePrints keeps feedback bounded: at most 3 samples, each
// capped around 80 characters with a trailing marker when truncated.
func truncatePrints(prints []string) []string {
	const maxSamples = 3
	const maxChars = 80
	n := len(prints)
	if n > maxSamples {
		prints = prints[n-maxSamples:]
	}
	out := make([]string, len(prints))
	for i, p := range prints {
		if len(p) > maxChars {
			out[i] = p[:maxChars] + fmt.Sprintf(" (showing first %d chars)", maxChars)
		} else {
			out[i] = p
		}
	}
	return out
}
