// Package promptbuilder assembles the SYSTEM message sent to the LLM
// callback each turn: the PTC-Lisp language reference, the callable
// tool catalog, the expected-output section derived from the agent's
// signature, and the output-format block.
package promptbuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ptcrunner/ptcrunner/internal/sandbox"
	"github.com/ptcrunner/ptcrunner/internal/signature"
)

// OutputFormat selects the expected-output rendering.
type OutputFormat string

const (
	FormatJSON    OutputFormat = "json"
	FormatPTCLisp OutputFormat = "ptc_lisp"
	FormatText    OutputFormat = "text"
)

// Options configures one system prompt build.
type Options struct {
	Mode         string // "single-shot" or "multi-turn"
	Tools        []*sandbox.Tool
	Signature    *signature.Signature
	OutputFormat OutputFormat
	Prefix       string
	Suffix       string
}

// Build assembles the full system prompt text.
func Build(opts Options) string {
	var b strings.Builder
	if opts.Prefix != "" {
		b.WriteString(opts.Prefix)
		b.WriteString("\n\n")
	}
	b.WriteString(languageReference(opts.Mode))
	b.WriteString("\n\n")
	b.WriteString(toolCatalog(opts.Tools))
	if opts.Signature != nil {
		b.WriteString("\n\n")
		b.WriteString(expectedOutput(opts.Signature))
	}
	b.WriteString("\n\n")
	b.WriteString(outputFormatBlock(opts.OutputFormat, opts.Signature))
	if opts.Suffix != "" {
		b.WriteString("\n\n")
		b.WriteString(opts.Suffix)
	}
	return b.String()
}

func languageReference(mode string) string {
	var b strings.Builder
	b.WriteString("You write PTC-Lisp programs, a small Clojure-like language, to orchestrate the tools below.\n")
	b.WriteString("Special forms: if when when-not cond let let* fn defn def quote for doseq return fail try -> ->>\n")
	b.WriteString("Collections are eager vectors/maps/sets. Useful builtins: map filter reduce sort-by group-by distinct\n")
	b.WriteString("pluck sum-by avg-by min-by max-by take drop take-while drop-while partition concat zipmap count\n")
	b.WriteString("where all-of any-of complement pmap pcalls str println.\n")
	if mode == "multi-turn" {
		b.WriteString("Bindings from (def ...) and (defn ...) persist across turns under your own names.\n")
		b.WriteString("Every program must end with (return value) or (fail error).\n")
	} else {
		b.WriteString("Your single program must end with (return value) or (fail error).\n")
	}
	return b.String()
}

func toolCatalog(tools []*sandbox.Tool) string {
	sorted := append([]*sandbox.Tool(nil), tools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString("Tools:\n")
	for _, t := range sorted {
		line := fmt.Sprintf("(ctx/%s ", t.Name)
		if t.Signature != "" {
			if sig, err := signature.Parse(t.Signature); err == nil {
				var parts []string
				for _, p := range sig.Params {
					parts = append(parts, fmt.Sprintf("%s %s", p.Name, signature.Render(p.Type)))
				}
				line += "(" + strings.Join(parts, ", ") + ")) -> " + signature.Render(sig.Return)
			} else {
				line += "...)"
			}
		} else {
			line += "...)"
		}
		if t.PlanningOnly {
			line += "  [for planning only, not directly callable]"
		}
		b.WriteString("  " + line + "\n")
		if t.Description != "" {
			b.WriteString("    " + t.Description + "\n")
		}
	}
	return b.String()
}

func expectedOutput(sig *signature.Signature) string {
	var b strings.Builder
	b.WriteString("Expected output: (return value) where value conforms to " + signature.Render(sig.Return) + "\n")
	b.WriteString("Example: (return " + exampleFor(sig.Return) + ")\n")
	return b.String()
}

func exampleFor(t *signature.Type) string {
	if t == nil {
		return "nil"
	}
	switch t.Kind {
	case signature.KPrimitive:
		switch t.Name {
		case signature.Int:
			return "0"
		case signature.Float:
			return "0.0"
		case signature.String:
			return `"..."`
		case signature.Bool:
			return "true"
		case signature.Keyword:
			return ":value"
		default:
			return "nil"
		}
	case signature.KList:
		return "[" + exampleFor(t.Elem) + "]"
	case signature.KRecord:
		var parts []string
		for _, f := range t.Fields {
			parts = append(parts, ":"+f.Name+" "+exampleFor(f.Type))
		}
		return "{" + strings.Join(parts, " ") + "}"
	case signature.KResult:
		return "{:ok " + exampleFor(t.Result) + "}"
	default:
		return "nil"
	}
}

func outputFormatBlock(format OutputFormat, sig *signature.Signature) string {
	switch format {
	case FormatJSON:
		schema := "any"
		if sig != nil {
			schema = signature.Render(sig.Return)
		}
		return "Respond with a JSON object matching schema " + schema + "."
	case FormatPTCLisp:
		return "Respond with a single PTC-Lisp program ending in (return ...) or (fail ...)."
	case FormatText:
		return "Respond in plain text; no program block is required."
	default:
		return "Respond with a single PTC-Lisp program ending in (return ...) or (fail ...)."
	}
}
