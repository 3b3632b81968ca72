// Command element is the `element [OPTIONS] [FILE]` front end (spec §6): it
// runs a source file to completion, or, given none, drops into a line-edited
// REPL.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/element-run/element"
	"github.com/element-run/element/internal/value"
)

const version = "element interpreter version 0.0.5"

func main() {
	os.Exit(run(os.Args[1:]))
}

// exitCode lets RunE callbacks communicate a non-zero host-side failure
// (spec §6: "1 on fatal host-side failure") back to main without cobra
// treating every such case as a usage error.
var exitCode int

func run(args []string) int {
	var dumpAST, dumpSymbols, dumpConstants, alsoRun bool
	var showVersion bool

	cmd := &cobra.Command{
		Use:           "element [FILE]",
		Short:         "element interpreter",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}
			opts := debugOptions{ast: dumpAST, symbols: dumpSymbols, constants: dumpConstants}
			shouldRun := !opts.any() || alsoRun
			if len(args) == 1 {
				runFile(cmd, args[0], opts, shouldRun)
				return nil
			}
			runREPL(cmd, opts, shouldRun)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&showVersion, "version", "v", false, "print version and exit")
	flags.BoolP("help", "?", false, "print usage")
	flags.BoolVar(&dumpAST, "da", false, "dump the parsed AST before running")
	flags.BoolVar(&dumpSymbols, "ds", false, "dump the symbol table before running")
	flags.BoolVar(&dumpConstants, "dc", false, "dump the constant pool before running")
	flags.BoolVar(&alsoRun, "dr", false, "also run after printing requested debug dumps")

	cmd.SetArgs(expandDebugFlags(args))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

// expandDebugFlags rewrites the spec §6 single-dash combinable debug flags
// (-da, -ds, -dc, -dr, and any letter combination under one dash such as
// -dac) into the long flags cobra's flag set is registered under, before
// cobra ever sees argv. Anything that isn't a -d cluster of exactly the
// letters a/s/c/r passes through untouched, including a bare "-d".
func expandDebugFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if rewritten, ok := debugCluster(arg); ok {
			out = append(out, rewritten...)
			continue
		}
		out = append(out, arg)
	}
	return out
}

func debugCluster(arg string) ([]string, bool) {
	if len(arg) < 3 || arg[0] != '-' || arg[1] != 'd' {
		return nil, false
	}
	letterFlag := map[byte]string{'a': "--da", 's': "--ds", 'c': "--dc", 'r': "--dr"}
	out := make([]string, 0, len(arg)-2)
	for i := 2; i < len(arg); i++ {
		flag, ok := letterFlag[arg[i]]
		if !ok {
			return nil, false
		}
		out = append(out, flag)
	}
	return out, true
}

type debugOptions struct {
	ast, symbols, constants bool
}

func (o debugOptions) any() bool { return o.ast || o.symbols || o.constants }

// runFile interprets path to completion against a fresh Runtime's default
// module and exits (spec §6: a FILE argument runs once, GC'd after).
func runFile(cmd *cobra.Command, path string, opts debugOptions, shouldRun bool) {
	rt := element.NewRuntime(element.NewRuntimeConfig())
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		exitCode = 1
		return
	}

	unit, err := rt.Compile(string(src))
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		exitCode = 1
		return
	}
	printDumps(cmd, rt, unit, opts)
	if !shouldRun {
		return
	}

	rt.DefaultModule().Filename = path
	result, err := rt.Run(rt.DefaultModule(), unit)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		exitCode = 1
		return
	}
	if result.Kind() == value.KindError {
		fmt.Fprintf(cmd.ErrOrStderr(), "ERROR: %s\n", result.AsError().Message)
	}
	rt.CollectGarbage()
}

// runREPL prints the `"> "` prompt, evaluating each accepted line standalone
// against a Runtime shared across the whole session (spec §6), until EOF or
// a liner failure (the "no readline support" host failure).
func runREPL(cmd *cobra.Command, opts debugOptions, shouldRun bool) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	rt := element.NewRuntime(element.NewRuntimeConfig())
	stdout := cmd.OutOrStdout()

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "no readline support")
			exitCode = 1
			return
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		unit, err := rt.Compile(input)
		if err != nil {
			fmt.Fprintf(stdout, "ERROR: %v\n", err)
			continue
		}
		printDumps(cmd, rt, unit, opts)
		if !shouldRun {
			continue
		}

		result, err := rt.Run(rt.DefaultModule(), unit)
		if err != nil {
			fmt.Fprintf(stdout, "ERROR: %v\n", err)
		} else if result.Kind() == value.KindError {
			fmt.Fprintf(stdout, "ERROR: %s\n", result.AsError().Message)
		} else {
			fmt.Fprintf(stdout, "= %s\n", result.String())
		}
		rt.CollectGarbage()
	}
}

func printDumps(cmd *cobra.Command, rt *element.Runtime, unit *element.CompiledUnit, opts debugOptions) {
	out := cmd.OutOrStdout()
	if opts.ast {
		element.DumpAST(out, unit.AST)
	}
	if opts.symbols {
		element.DumpSymbols(out, rt.SymbolTable())
	}
	if opts.constants {
		element.DumpConstants(out, unit.Result.Pool)
	}
}
