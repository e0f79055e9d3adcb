package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"bb2web"
	"bb2web/internal/diag"
	"bb2web/internal/runtime"
	"bb2web/internal/surface"
	"bb2web/internal/token"
)

// ---- ANSI colors ----

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// replTimeout bounds one chunk so an endless loop returns to the prompt.
const replTimeout = 2 * time.Second

// repl holds the state shared by every chunk: one interpreter and one
// recorder, so globals, arrays and functions persist between inputs.
type repl struct {
	out, errOut io.Writer
	rec         *surface.Recorder
	interp      *runtime.Interpreter
	showCode    bool
	seen        int
}

func newREPL(out, errOut io.Writer) *repl {
	rec := surface.NewRecorder(0)
	return &repl{
		out:      out,
		errOut:   errOut,
		rec:      rec,
		interp:   runtime.NewInterpreter(surface.NewRuntime(rec)),
		showCode: true,
	}
}

// command handles a ':' REPL command and reports whether line was one.
func (r *repl) command(line string) bool {
	switch strings.TrimSpace(line) {
	case ":js":
		r.showCode = !r.showCode
		fmt.Fprintf(r.out, "%scode display %v%s\n", colorGray, r.showCode, colorReset)
	case ":vars":
		for _, name := range r.interp.Globals() {
			v, _ := r.interp.Lookup(name)
			fmt.Fprintf(r.out, "%sGlobal%s %s = %s\n", colorCyan, colorReset, name, v)
		}
		for _, name := range r.interp.Locals() {
			v, _ := r.interp.Lookup(name)
			fmt.Fprintf(r.out, "%s = %s\n", name, v)
		}
		for _, name := range r.interp.Functions() {
			fmt.Fprintf(r.out, "%sFunction%s %s\n", colorCyan, colorReset, name)
		}
	case ":help":
		fmt.Fprintln(r.out, ":js    toggle display of the compiled JavaScript")
		fmt.Fprintln(r.out, ":vars  list variables and functions")
		fmt.Fprintln(r.out, "exit   quit")
	default:
		return false
	}
	return true
}

// eval compiles and runs one complete chunk, then prints the runtime calls
// it made.
func (r *repl) eval(source string) {
	prog, warnings, err := bb2web.Parse(source, "<repl>")
	printDiagsColored(r.errOut, colorYellow, warnings)
	if err != nil {
		fmt.Fprintf(r.errOut, "%s%s%s\n", colorRed, err, colorReset)
		return
	}

	if r.showCode {
		code, err := bb2web.Emit(prog, bb2web.Options{Dialect: bb2web.JavaScript})
		if err != nil {
			fmt.Fprintf(r.errOut, "%s%s%s\n", colorRed, err, colorReset)
		} else {
			fmt.Fprintf(r.out, "%s%s%s", colorGray, code, colorReset)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), replTimeout)
	defer cancel()
	runErr := r.interp.Run(ctx, prog)

	calls := r.rec.Calls()
	for _, call := range calls[r.seen:] {
		fmt.Fprintf(r.out, "%s%s%s\n", colorGreen, call, colorReset)
	}
	r.seen = len(calls)

	switch {
	case runErr == nil:
	case errors.Is(runErr, context.DeadlineExceeded):
		fmt.Fprintf(r.errOut, "%sstopped after %v%s\n", colorRed, replTimeout, colorReset)
	default:
		fmt.Fprintf(r.errOut, "%serror: %s%s\n", colorRed, runErr, colorReset)
	}
}

// blockDelta returns how many blocks a line opens minus how many it
// closes. Single-line IF (a statement after THEN) opens nothing.
func blockDelta(line string) int {
	tokens, _, err := bb2web.Lex(line, "<repl>")
	if err != nil {
		return 0
	}
	delta := 0
	atStart := true
	for i, tok := range tokens {
		if tok.IsSeparator() {
			atStart = true
			continue
		}
		if !atStart {
			continue
		}
		atStart = false
		switch {
		case tok.IsKeyword("WHILE"), tok.IsKeyword("REPEAT"), tok.IsKeyword("FOR"),
			tok.IsKeyword("SELECT"), tok.IsKeyword("FUNCTION"):
			delta++
		case tok.IsKeyword("IF"):
			if opensBlock(tokens[i+1:]) {
				delta++
			}
		case tok.IsKeyword("WEND"), tok.IsKeyword("UNTIL"), tok.IsKeyword("NEXT"), tok.IsKeyword("ENDIF"):
			delta--
		case tok.IsKeyword("END"):
			next := tokens[i+1]
			if next.IsKeyword("IF") || next.IsKeyword("SELECT") || next.IsKeyword("FUNCTION") {
				delta--
			}
		}
	}
	return delta
}

// opensBlock reports whether the tokens after IF form a block header, that
// is THEN is the last token of the statement.
func opensBlock(rest []token.Token) bool {
	for i, tok := range rest {
		if tok.IsSeparator() || tok.Kind == token.EOF {
			return false
		}
		if tok.IsKeyword("THEN") {
			next := rest[i+1]
			return next.IsSeparator() || next.Kind == token.EOF
		}
	}
	return false
}

// ---- repl command ----

func cmdRepl() error {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".bb2web_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            colorGreen + "bb> " + colorReset,
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("readline init failed: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "%s%sbb2web REPL%s %s(type ':help', 'exit' or Ctrl+D to quit)%s\n\n",
		colorBold, colorCyan, colorReset, colorGray, colorReset)

	r := newREPL(rl.Stdout(), rl.Stderr())
	var accumulated strings.Builder
	depth := 0

	for {
		if depth > 0 {
			rl.SetPrompt(colorGray + "...  " + colorReset)
		} else {
			rl.SetPrompt(colorGreen + "bb> " + colorReset)
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if depth > 0 {
					accumulated.Reset()
					depth = 0
					continue
				}
				fmt.Fprintf(rl.Stdout(), "\n%s(use 'exit' or Ctrl+D to quit)%s\n", colorGray, colorReset)
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(rl.Stdout())
			}
			break
		}

		if depth == 0 {
			if strings.EqualFold(strings.TrimSpace(line), "exit") {
				break
			}
			if r.command(line) {
				continue
			}
		}

		accumulated.WriteString(line)
		accumulated.WriteString("\n")

		// A blank line runs an unfinished block anyway.
		depth += blockDelta(line)
		if depth > 0 && strings.TrimSpace(line) != "" {
			continue
		}
		depth = 0

		source := accumulated.String()
		accumulated.Reset()
		if strings.TrimSpace(source) == "" {
			continue
		}
		r.eval(source)
	}
	return nil
}

// printDiagsColored prints diagnostics in color for REPL display.
func printDiagsColored(w io.Writer, color string, diags []diag.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s%s%s\n", color, d.String(), colorReset)
	}
}
