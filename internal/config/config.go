// Package config loads Agent and Tool declarations from YAML, the way
// deployments wire up a SubAgent without recompiling: prompt, tool
// names, budgets, and the compression/memory strategy knobs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentSpec is the YAML-facing shape of a SubAgent declaration. Native
// tool functions and the LLM callback are wired in by the embedding
// caller after load — YAML only carries names and budgets.
type AgentSpec struct {
	Name              string   `yaml:"name"`
	Prompt            string   `yaml:"prompt"`
	Signature         string   `yaml:"signature,omitempty"`
	Tools             []string `yaml:"tools,omitempty"`
	MaxTurns          int      `yaml:"max_turns"`
	RetryTurns        int      `yaml:"retry_turns"`
	MaxDepth          int      `yaml:"max_depth"`
	Timeout           Duration `yaml:"timeout,omitempty"`
	PMapTimeout       Duration `yaml:"pmap_timeout,omitempty"`
	MissionTimeout    Duration `yaml:"mission_timeout,omitempty"`
	TurnBudget        int      `yaml:"turn_budget,omitempty"`
	TokenLimit        int      `yaml:"token_limit,omitempty"`
	OnBudgetExceeded  string   `yaml:"on_budget_exceeded,omitempty"` // fail | return_partial
	MemoryStrategy    string   `yaml:"memory_strategy,omitempty"`    // rollback | forward | isolate
	Compression       string   `yaml:"compression,omitempty"`
	ToolCallLimit     int      `yaml:"tool_call_limit,omitempty"`
	OutputFormat      string   `yaml:"output_format,omitempty"` // json | ptc_lisp | text
}

// ToolSpec is the YAML-facing declaration of a tool's metadata; the Fn
// itself is supplied in code (tools are not expressible in YAML).
type ToolSpec struct {
	Name        string `yaml:"name"`
	Signature   string `yaml:"signature,omitempty"`
	Description string `yaml:"description,omitempty"`
	Cache       bool   `yaml:"cache,omitempty"`
	PlanningOnly bool  `yaml:"planning_only,omitempty"`
}

// File is the top-level shape of a config YAML document.
type File struct {
	Agents []AgentSpec `yaml:"agents,omitempty"`
	Tools  []ToolSpec  `yaml:"tools,omitempty"`
}

// Duration wraps time.Duration with YAML string parsing ("250ms", "2s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads and parses a config file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses config YAML from an in-memory buffer.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}
	return &f, nil
}

// Agent looks up a declared agent by name.
func (f *File) Agent(name string) (*AgentSpec, bool) {
	for i := range f.Agents {
		if f.Agents[i].Name == name {
			return &f.Agents[i], true
		}
	}
	return nil, false
}

// Tool looks up a declared tool by name.
func (f *File) Tool(name string) (*ToolSpec, bool) {
	for i := range f.Tools {
		if f.Tools[i].Name == name {
			return &f.Tools[i], true
		}
	}
	return nil, false
}
