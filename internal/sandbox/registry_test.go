package sandbox_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/sandbox"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

func TestRegistryLookupHitAndMiss(t *testing.T) {
	reg := sandbox.NewRegistry(&sandbox.Tool{Name: "echo", Fn: func(args *object.Map) (object.Value, error) { return args, nil }})
	if _, ok := reg.Lookup("echo"); !ok {
		t.Error("expected echo to be registered")
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Error("expected missing to not be registered")
	}
}

func TestRegistryRegisterAddsAfterConstruction(t *testing.T) {
	reg := sandbox.NewRegistry()
	reg.Register(&sandbox.Tool{Name: "added", Fn: func(args *object.Map) (object.Value, error) { return object.Nil{}, nil }})
	if _, ok := reg.Lookup("added"); !ok {
		t.Error("expected added to be registered after Register")
	}
}

func TestRegistryToolsReturnsAllRegardlessOfOrder(t *testing.T) {
	reg := sandbox.NewRegistry(
		&sandbox.Tool{Name: "a", Fn: func(args *object.Map) (object.Value, error) { return object.Nil{}, nil }},
		&sandbox.Tool{Name: "b", Fn: func(args *object.Map) (object.Value, error) { return object.Nil{}, nil }},
	)
	names := map[string]bool{}
	for _, tool := range reg.Tools() {
		names[tool.Name] = true
	}
	if !names["a"] || !names["b"] {
		t.Errorf("Tools() = %v, want both a and b", names)
	}
}

func TestRegistryCallUnknownToolErrors(t *testing.T) {
	reg := sandbox.NewRegistry()
	_, err := reg.Call("nope", object.NewMap())
	f := err.(*taxonomy.Failure)
	if f.Reason != taxonomy.UnknownTool {
		t.Errorf("Reason = %s, want unknown_tool", f.Reason)
	}
}

func TestRegistryCallWrapsPlainError(t *testing.T) {
	reg := sandbox.NewRegistry(&sandbox.Tool{Name: "boom", Fn: func(args *object.Map) (object.Value, error) {
		return nil, errors.New("kaboom")
	}})
	_, err := reg.Call("boom", object.NewMap())
	f := err.(*taxonomy.Failure)
	if f.Reason != taxonomy.ToolError {
		t.Errorf("Reason = %s, want tool_error", f.Reason)
	}
}

func TestRegistryCallPassesThroughFailureUnwrapped(t *testing.T) {
	want := taxonomy.New(taxonomy.SignatureMismatch, "args do not match declared signature")
	reg := sandbox.NewRegistry(&sandbox.Tool{Name: "limited", Fn: func(args *object.Map) (object.Value, error) {
		return nil, want
	}})
	_, err := reg.Call("limited", object.NewMap())
	if err != want {
		t.Errorf("expected the exact *taxonomy.Failure to pass through unwrapped, got %v", err)
	}
}

func TestRegistryCallRecoversPanic(t *testing.T) {
	reg := sandbox.NewRegistry(&sandbox.Tool{Name: "panicky", Fn: func(args *object.Map) (object.Value, error) {
		panic("oh no")
	}})
	_, err := reg.Call("panicky", object.NewMap())
	f := err.(*taxonomy.Failure)
	if f.Reason != taxonomy.ToolError {
		t.Errorf("Reason = %s, want tool_error", f.Reason)
	}
	if _, ok := f.Details["panic"]; !ok {
		t.Error(`expected a "panic" detail on the recovered failure`)
	}
}

func TestRegistryCallCachesResultByNameAndArgs(t *testing.T) {
	var calls int32
	reg := sandbox.NewRegistry(&sandbox.Tool{
		Name:  "cached",
		Cache: true,
		Fn: func(args *object.Map) (object.Value, error) {
			atomic.AddInt32(&calls, 1)
			return object.Int(1), nil
		},
	})
	args := object.NewMap(object.String("x"), object.Int(1))
	for i := 0; i < 5; i++ {
		if _, err := reg.Call("cached", args); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("Fn invoked %d times, want 1 for identical cached args", calls)
	}
}

func TestRegistryCallDoesNotCacheWithoutCacheFlag(t *testing.T) {
	var calls int32
	reg := sandbox.NewRegistry(&sandbox.Tool{
		Name: "uncached",
		Fn: func(args *object.Map) (object.Value, error) {
			atomic.AddInt32(&calls, 1)
			return object.Int(1), nil
		},
	})
	args := object.NewMap(object.String("x"), object.Int(1))
	reg.Call("uncached", args)
	reg.Call("uncached", args)
	if calls != 2 {
		t.Errorf("Fn invoked %d times, want 2 since Cache is false", calls)
	}
}

func TestRegistryCallDifferentArgsDoNotShareCacheEntry(t *testing.T) {
	var calls int32
	reg := sandbox.NewRegistry(&sandbox.Tool{
		Name:  "keyed",
		Cache: true,
		Fn: func(args *object.Map) (object.Value, error) {
			atomic.AddInt32(&calls, 1)
			n, _ := args.Get(object.String("x"))
			return n, nil
		},
	})
	reg.Call("keyed", object.NewMap(object.String("x"), object.Int(1)))
	reg.Call("keyed", object.NewMap(object.String("x"), object.Int(2)))
	if calls != 2 {
		t.Errorf("Fn invoked %d times, want 2 for distinct arg maps", calls)
	}
}
