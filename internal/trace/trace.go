// Package trace is the append-only event stream a SubAgent run emits:
// one newline-delimited JSON object per turn boundary, tool call, and
// pmap/pcalls join. Sinks are an injectable collaborator, never a
// process-wide global, so concurrent runs don't interleave.
package trace

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tags what happened.
type Kind string

const (
	KindRunStart  Kind = "run_start"
	KindTurnStart Kind = "turn_start"
	KindTurnEnd   Kind = "turn_end"
	KindLLMStart  Kind = "llm_start"
	KindLLMStop   Kind = "llm_stop"
	KindToolStart Kind = "tool_start"
	KindToolCall  Kind = "tool_call" // a tool finished; doubles as tool_stop
	KindParallel  Kind = "parallel_join"
	KindRunEnd    Kind = "run_end"
)

// Event is one trace record. Metadata is sanitized before it reaches a
// Sink: values are rendered to strings so a Sink never has to know
// about PTC-Lisp's object.Value types.
type Event struct {
	TraceID       string            `json:"trace_id"`
	ParentTraceID string            `json:"parent_trace_id,omitempty"`
	Kind          Kind              `json:"kind"`
	Turn          int               `json:"turn,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Sink receives Events. Implementations must be safe for concurrent
// use — a run may emit from pmap branches.
type Sink interface {
	Emit(Event)
}

// NewTraceID mints a fresh trace id for a run or nested sub-agent call.
func NewTraceID() string { return uuid.NewString() }

// Sanitize converts arbitrary field values (ints, strings, anything
// with a String() method) into the flat string map an Event carries.
func Sanitize(fields map[string]any) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case string:
			out[k] = t
		case stringer:
			out[k] = t.String()
		default:
			b, err := json.Marshal(v)
			if err != nil {
				out[k] = "<unrenderable>"
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

type stringer interface{ String() string }

// JSONSink writes one JSON object per line to w.
type JSONSink struct {
	mu sync.Mutex
	w  io.Writer
	enc *json.Encoder
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w, enc: json.NewEncoder(w)}
}

func (s *JSONSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(e)
}

// MemorySink collects events in memory — used by tests.
type MemorySink struct {
	mu     sync.Mutex
	Events []Event
}

func (s *MemorySink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, e)
}
