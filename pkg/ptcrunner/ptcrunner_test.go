package ptcrunner_test

import (
	"context"
	"testing"

	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/pkg/ptcrunner"
)

func TestLispRunSuccess(t *testing.T) {
	v, step, err := ptcrunner.LispRun(context.Background(), `(+ 20 22)`, ptcrunner.LispRunOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.String() != "42" {
		t.Errorf("got %v, want 42", v)
	}
	if step.Fail != nil {
		t.Errorf("unexpected step.Fail: %v", step.Fail)
	}
}

func TestLispRunFailure(t *testing.T) {
	_, step, err := ptcrunner.LispRun(context.Background(), `(undefined-thing)`, ptcrunner.LispRunOpts{})
	if err == nil {
		t.Fatal("expected an error for an unbound var")
	}
	if step.Fail == nil {
		t.Error("expected step.Fail to be set")
	}
}

func TestLispRunWithContextMap(t *testing.T) {
	ctxMap := map[string]ptcrunner.Value{"n": object.Int(5)}
	v, _, err := ptcrunner.LispRun(context.Background(), `(* data/n 2)`, ptcrunner.LispRunOpts{Context: &ctxMap})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.String() != "10" {
		t.Errorf("got %v, want 10", v)
	}
}

func TestToolNewBuildsNativeTool(t *testing.T) {
	tool := ptcrunner.ToolNew("double", func(args *object.Map) (object.Value, error) {
		return args, nil
	}, "(n :int) -> :int", "doubles n", false)
	if tool.Name != "double" {
		t.Errorf("Name = %q, want double", tool.Name)
	}
	if tool.Kind != "native" {
		t.Errorf("Kind = %q, want native", tool.Kind)
	}
}

func TestSignatureParseAndValidate(t *testing.T) {
	sig, err := ptcrunner.SignatureParse("() -> :bool")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _, runErr := ptcrunner.LispRun(context.Background(), `true`, ptcrunner.LispRunOpts{})
	if runErr != nil {
		t.Fatalf("unexpected run error: %v", runErr)
	}
	if issues := ptcrunner.SignatureValidate(v, sig); len(issues) != 0 {
		t.Errorf("unexpected validation issues: %v", issues)
	}
}

func TestSubAgentRunSingleShot(t *testing.T) {
	step, err := ptcrunner.SubAgentRun(context.Background(), ptcrunner.SubAgentSpec{
		Name:    "greeter",
		Mission: "say hi",
	}, ptcrunner.SubAgentRunOpts{
		LLM: func(ctx context.Context, systemPrompt, userMessage string, onChunk func(string)) (ptcrunner.LLMResponse, error) {
			return ptcrunner.LLMResponse{Content: `(return "hi")`}, nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Fail != nil {
		t.Fatalf("unexpected step.Fail: %v", step.Fail)
	}
	if step.Return.String() != "hi" {
		t.Errorf("Return = %v, want hi", step.Return)
	}
}

func TestSubAgentRunStreamsChunksAndTalliesTokens(t *testing.T) {
	var chunks []string
	step, err := ptcrunner.SubAgentRun(context.Background(), ptcrunner.SubAgentSpec{
		Name:    "streamer",
		Mission: "say hi",
	}, ptcrunner.SubAgentRunOpts{
		OnChunk: func(s string) { chunks = append(chunks, s) },
		LLM: func(ctx context.Context, systemPrompt, userMessage string, onChunk func(string)) (ptcrunner.LLMResponse, error) {
			onChunk("(return ")
			onChunk(`"hi")`)
			return ptcrunner.LLMResponse{Content: `(return "hi")`, Tokens: ptcrunner.LLMTokens{Input: 10, Output: 2}}, nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Fail != nil {
		t.Fatalf("unexpected step.Fail: %v", step.Fail)
	}
	if step.Usage.InputTokens != 10 || step.Usage.OutputTokens != 2 {
		t.Errorf("Usage = %+v, want InputTokens=10 OutputTokens=2", step.Usage)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 streamed chunks, got %d", len(chunks))
	}
}

func TestSubAgentRunInvalidSignatureErrors(t *testing.T) {
	_, err := ptcrunner.SubAgentRun(context.Background(), ptcrunner.SubAgentSpec{
		Name:      "bad-sig",
		Mission:   "x",
		Signature: "not a valid signature",
	}, ptcrunner.SubAgentRunOpts{
		LLM: func(ctx context.Context, systemPrompt, userMessage string, onChunk func(string)) (ptcrunner.LLMResponse, error) {
			return ptcrunner.LLMResponse{}, nil
		},
	})
	if err == nil {
		t.Error("expected an error for an invalid signature string")
	}
}
