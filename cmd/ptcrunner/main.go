// Command ptcrunner is a development CLI for exercising the PTC-Lisp
// language core directly, without a host application or an LLM in the
// loop: parse a program, print its AST, run it against a JSON data/
// memory prelude, or validate a value against a signature string.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/obslog"
	"github.com/ptcrunner/ptcrunner/internal/sandbox"
	"github.com/ptcrunner/ptcrunner/pkg/ptclisp"
)

var useColor = isatty.IsTerminal(os.Stdout.Fd())

func colorize(code, s string) string {
	if !useColor {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func main() {
	root := &cobra.Command{
		Use:   "ptcrunner",
		Short: "Run and inspect PTC-Lisp programs outside of a sub-agent loop",
	}

	var timeout time.Duration
	var dataJSON, memoryJSON string
	var verbose bool

	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Parse, analyze, and evaluate a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				obslog.SetLevel(slog.LevelDebug)
			}
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			data, err := jsonToMap(dataJSON)
			if err != nil {
				return fmt.Errorf("--data: %w", err)
			}
			memory, err := jsonToMap(memoryJSON)
			if err != nil {
				return fmt.Errorf("--memory: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			value, ok, failure := ptclisp.Run(ctx, string(source), ptclisp.RunOpts{
				Context: data,
				Memory:  memory,
				Tools:   sandbox.NewRegistry(),
				Sandbox: sandbox.Options{Timeout: timeout},
			})
			if !ok {
				fmt.Fprintln(os.Stderr, colorize("31", failure.Error()))
				os.Exit(1)
			}
			fmt.Println(colorize("32", value.String()))
			return nil
		},
	}
	runCmd.Flags().DurationVar(&timeout, "timeout", sandbox.DefaultTimeout, "evaluation timeout")
	runCmd.Flags().StringVar(&dataJSON, "data", "", "JSON object bound as ctx/data/*")
	runCmd.Flags().StringVar(&memoryJSON, "memory", "", "JSON object bound as memory/*")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	parseCmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a program and print its AST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			nodes, err := ptclisp.Parse(string(source))
			if err != nil {
				return err
			}
			for _, n := range nodes {
				fmt.Println(n.String())
			}
			return nil
		},
	}

	var sigStr string
	validateCmd := &cobra.Command{
		Use:   "validate-signature [value-json]",
		Short: "Validate a JSON value against a signature's return type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := ptclisp.ParseSignature(sigStr)
			if err != nil {
				return fmt.Errorf("signature: %w", err)
			}
			var raw any
			if err := json.Unmarshal([]byte(args[0]), &raw); err != nil {
				return fmt.Errorf("value: %w", err)
			}
			issues := ptclisp.ValidateSignature(object.FromJSON(raw), sig)
			if len(issues) == 0 {
				fmt.Println(colorize("32", "ok"))
				return nil
			}
			for _, iss := range issues {
				fmt.Fprintf(os.Stderr, "%s: %s\n", iss.Path, iss.Message)
			}
			os.Exit(1)
			return nil
		},
	}
	validateCmd.Flags().StringVar(&sigStr, "signature", "", "signature declaration, e.g. \"() -> {result :int, error :keyword?}\"")
	validateCmd.MarkFlagRequired("signature")

	root.AddCommand(runCmd, parseCmd, validateCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func jsonToMap(s string) (*object.Map, error) {
	if s == "" {
		return nil, nil
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	m := object.EmptyMap()
	for k, v := range raw {
		m = m.Assoc(object.String(k), object.FromJSON(v))
	}
	return m, nil
}
