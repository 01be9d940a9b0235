// Command runtime-cli is the thin entry point over internal/interp: given a
// script path and its arguments it runs the script to completion; given no
// path it drives a REPL. Argument parsing, the GPU matrix backend wiring,
// and readline-style editing are collaborators outside the core (spec §1,
// §6) — this file only fixes the main_loop.rs semantics SPEC_FULL.md §3.1
// describes for Quit/Exit/Intr interaction with the top-level loop.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/luckboy/unlab-gpu/internal/env"
	"github.com/luckboy/unlab-gpu/internal/intr"
	"github.com/luckboy/unlab-gpu/internal/interp"
	"github.com/luckboy/unlab-gpu/internal/lexer"
	"github.com/luckboy/unlab-gpu/internal/modtree"
	"github.com/luckboy/unlab-gpu/internal/parser"
	"github.com/luckboy/unlab-gpu/internal/rlog"
	"github.com/luckboy/unlab-gpu/internal/uerr"
	"github.com/luckboy/unlab-gpu/internal/value"
)

func main() {
	log := rlog.New(os.Stderr)
	os.Exit(run(log))
}

func run(log *rlog.Logger) int {
	args := os.Args[1:]
	if len(args) == 0 {
		return repl(log)
	}
	return runScript(log, args[0], args[1:])
}

// runScript parses and runs one file (spec §4.5 "Evaluates a Tree by
// interpreting each top-level node in document order").
func runScript(log *rlog.Logger, path string, scriptArgs []string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer f.Close()

	lx := lexer.New(path, f, false)
	tree, _, err := parser.ParseTree(path, lx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	it := newInterp(intr.Empty{})
	it.Env.Current().SetVar("ARGS", scriptArgsValue(scriptArgs))

	if err := it.Run(tree); err != nil {
		return reportTop(it, err)
	}
	return 0
}

// repl implements the main_loop.rs contract (SPEC_FULL.md §3.1): each
// iteration reads one statement-or-definition, runs it, resets the Ctrl-C
// flag, and prints the stack trace (if any) before looping. Quit stops the
// loop with exit code 0; Exit(code) stops it with that code.
func repl(log *rlog.Logger) int {
	ctrlc := intr.NewCtrlC()
	defer ctrlc.Stop()

	it := newInterp(ctrlc)
	in := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		stmt, eof := readOneStatement(in)
		if stmt == "" {
			if eof {
				return 0
			}
			continue
		}

		lx := lexer.New("<stdin>", strings.NewReader(stmt), false)
		tree, _, err := parser.ParseTree("<stdin>", lx, false)
		ctrlc.Reset()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		if err := it.Run(tree); err != nil {
			if s, ok := uerr.AsStop(err); ok {
				switch s.Kind {
				case uerr.StopQuit:
					return 0
				case uerr.StopExit:
					return s.Code
				}
			}
			reportTop(it, err)
		}
	}
}

// readOneStatement reads lines until the accumulated text parses as a
// complete top-level construct (approximated here by a blank line or EOF,
// since only ParseTree's whole-file entry point is exposed by the parser
// package; a line-buffered REPL is an out-of-core concern per spec §1).
func readOneStatement(in *bufio.Scanner) (text string, eof bool) {
	var b strings.Builder
	for in.Scan() {
		line := in.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := in.Err(); err != nil || (b.Len() == 0 && !in.Scan()) {
		return b.String(), true
	}
	return b.String(), false
}

func newInterp(ic intr.Checker) *interp.Interp {
	root := modtree.NewRoot()
	e := env.New(root)
	return interp.New(e, ic)
}

func scriptArgsValue(args []string) value.Value {
	elems := make([]value.Value, len(args))
	for i, a := range args {
		elems[i] = value.Obj{O: value.NewString(a)}
	}
	return value.Ref{M: value.NewArray(elems)}
}

// reportTop prints an error and its stack trace the way spec §4.5's main
// loop does: "at {fun} ({file}: {line}.{col})" per frame.
func reportTop(it *interp.Interp, err error) int {
	if _, ok := uerr.AsStop(err); ok {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)
	for _, fr := range it.Trace() {
		name := "top level"
		if fr.Fun != nil {
			name = fr.Fun.Name
		}
		fmt.Fprintf(os.Stderr, "  at %s (%s)\n", name, fr.Pos)
	}
	return 1
}
