package config_test

import (
	"testing"
	"time"

	"github.com/ptcrunner/ptcrunner/internal/config"
)

const sampleYAML = `
agents:
  - name: researcher
    prompt: "Find answers to the user's question."
    signature: "() -> {result :string}"
    tools: [search, fetch]
    max_turns: 4
    retry_turns: 1
    max_depth: 3
    timeout: 2s
    mission_timeout: 30s
    memory_strategy: forward
    output_format: ptc_lisp
  - name: summarizer
    prompt: "Summarize the given text."
    max_turns: 1

tools:
  - name: search
    signature: "(q :string) -> [:string]"
    description: full-text search
    cache: true
  - name: fetch
    signature: "(id :string) -> :map"
    planning_only: true
`

func TestParseMultiAgentDocument(t *testing.T) {
	f, err := config.Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(f.Agents) != 2 {
		t.Fatalf("got %d agents, want 2", len(f.Agents))
	}
	if len(f.Tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(f.Tools))
	}
}

func TestParseAgentFields(t *testing.T) {
	f, err := config.Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	agent, ok := f.Agent("researcher")
	if !ok {
		t.Fatal("expected to find agent researcher")
	}
	if agent.MaxTurns != 4 || agent.RetryTurns != 1 || agent.MaxDepth != 3 {
		t.Errorf("got %+v", agent)
	}
	if agent.Timeout.Std() != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", agent.Timeout.Std())
	}
	if agent.MissionTimeout.Std() != 30*time.Second {
		t.Errorf("MissionTimeout = %v, want 30s", agent.MissionTimeout.Std())
	}
	if len(agent.Tools) != 2 || agent.Tools[0] != "search" || agent.Tools[1] != "fetch" {
		t.Errorf("Tools = %v", agent.Tools)
	}
	if agent.MemoryStrategy != "forward" {
		t.Errorf("MemoryStrategy = %q, want forward", agent.MemoryStrategy)
	}
}

func TestAgentLookupMiss(t *testing.T) {
	f, err := config.Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, ok := f.Agent("nonexistent"); ok {
		t.Error("expected lookup miss for an undeclared agent name")
	}
}

func TestToolLookupHitAndFields(t *testing.T) {
	f, err := config.Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	tool, ok := f.Tool("search")
	if !ok {
		t.Fatal("expected to find tool search")
	}
	if !tool.Cache {
		t.Error("search should declare cache: true")
	}
	fetch, ok := f.Tool("fetch")
	if !ok {
		t.Fatal("expected to find tool fetch")
	}
	if !fetch.PlanningOnly {
		t.Error("fetch should declare planning_only: true")
	}
}

func TestToolLookupMiss(t *testing.T) {
	f, err := config.Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, ok := f.Tool("nonexistent"); ok {
		t.Error("expected lookup miss for an undeclared tool name")
	}
}

func TestDurationEmptyStringLeavesZeroValue(t *testing.T) {
	f, err := config.Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	agent, _ := f.Agent("summarizer")
	if agent.Timeout.Std() != 0 {
		t.Errorf("Timeout = %v, want zero value when unset", agent.Timeout.Std())
	}
}

func TestDurationInvalidStringErrors(t *testing.T) {
	bad := `
agents:
  - name: broken
    timeout: "not-a-duration"
`
	if _, err := config.Parse([]byte(bad)); err == nil {
		t.Error("expected a parse error for an invalid duration string")
	}
}

func TestParseInvalidYAMLErrors(t *testing.T) {
	if _, err := config.Parse([]byte("agents: [this is not valid: yaml: at all")); err == nil {
		t.Error("expected a parse error for malformed YAML")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := config.Load("/nonexistent/path/to/config.yaml"); err == nil {
		t.Error("expected an error loading a nonexistent file")
	}
}
