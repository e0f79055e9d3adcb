// Command bb2web compiles BASIC programs to TypeScript or JavaScript and
// runs them.
//
// Usage:
//
//	bb2web build  <file> [-format ts|js] [-o out]   Write compiled code
//	bb2web tokens <file> [-json]                    Print tokens
//	bb2web parse  <file>                            Print AST as JSON
//	bb2web run    <file> [-scale n]                 Run in a window
//	bb2web trace  <file> [-frames n]                Print runtime calls
//	bb2web serve  <file> [-addr host:port]          Start the playground
//	bb2web repl                                     Start interactive REPL
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"bb2web"
	"bb2web/internal/ast"
	"bb2web/internal/playground"
	"bb2web/internal/runtime"
	"bb2web/internal/surface"
	"bb2web/internal/window"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "build":
		err = cmdBuild(args)
	case "tokens":
		err = cmdTokens(args)
	case "parse":
		err = cmdParse(args)
	case "run":
		err = cmdRun(args)
	case "trace":
		err = cmdTrace(args)
	case "serve":
		err = cmdServe(args)
	case "repl":
		err = cmdRepl()
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "error: unknown command '%s'\n", command)
		usage()
		os.Exit(1)
	}
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  bb2web build  <file> [-format ts|js] [-o out]  Compile to TypeScript or JavaScript")
	fmt.Fprintln(os.Stderr, "  bb2web tokens <file> [-json]                   Tokenize and print tokens")
	fmt.Fprintln(os.Stderr, "  bb2web parse  <file>                           Parse and print AST (JSON)")
	fmt.Fprintln(os.Stderr, "  bb2web run    <file> [-scale n]                Run in a window")
	fmt.Fprintln(os.Stderr, "  bb2web trace  <file> [-frames n]               Print the runtime call log")
	fmt.Fprintln(os.Stderr, "  bb2web serve  <file> [-addr host:port]         Serve the browser playground")
	fmt.Fprintln(os.Stderr, "  bb2web repl                                    Start interactive REPL")
}

// errReported marks failures whose diagnostics were already printed.
var errReported = errors.New("reported")

// parseArgs parses flags that may appear before or after the file operand.
func parseArgs(fs *flag.FlagSet, args []string) (string, error) {
	var files []string
	for {
		if err := fs.Parse(args); err != nil {
			return "", err
		}
		if fs.NArg() == 0 {
			break
		}
		files = append(files, fs.Arg(0))
		args = fs.Args()[1:]
	}
	switch len(files) {
	case 0:
		return "", errors.New("missing file argument")
	case 1:
		return files[0], nil
	}
	return "", fmt.Errorf("expected one file, got %d", len(files))
}

func readFile(filename string) (string, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("cannot read file %s: %w", filename, err)
	}
	return string(source), nil
}

// outputPath derives the build output path: the input path with its
// extension replaced by the dialect's.
func outputPath(input string, d bb2web.Dialect) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + d.Extension()
}

// ---- build command ----

func cmdBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	format := fs.String("format", "typescript", "output dialect: typescript (ts) or javascript (js)")
	out := fs.String("o", "", "output file (default: input name with .ts or .js)")
	filename, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	dialect, err := bb2web.ParseDialect(*format)
	if err != nil {
		return err
	}
	source, err := readFile(filename)
	if err != nil {
		return err
	}

	res, err := bb2web.Compile(source, bb2web.Options{Dialect: dialect, Filename: filepath.Base(filename)})
	if err != nil {
		printError(err)
		return errReported
	}
	printDiagsText(res.Warnings)

	path := *out
	if path == "" {
		path = outputPath(filename, dialect)
	}
	if err := os.WriteFile(path, []byte(res.Code), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%s)\n", path, humanize.Bytes(uint64(len(res.Code))))
	return nil
}

// ---- tokens command ----

func cmdTokens(args []string) error {
	fs := flag.NewFlagSet("tokens", flag.ExitOnError)
	jsonMode := fs.Bool("json", false, "print tokens as JSON")
	filename, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	source, err := readFile(filename)
	if err != nil {
		return err
	}

	tokens, warnings, err := bb2web.Lex(source, filename)
	diags := collect(warnings, err)
	if *jsonMode {
		printTokensJSON(tokens, diags)
	} else {
		printTokensText(tokens, diags)
	}
	if err != nil {
		return errReported
	}
	return nil
}

// ---- parse command ----

func cmdParse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	filename, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	source, err := readFile(filename)
	if err != nil {
		return err
	}

	prog, warnings, err := bb2web.Parse(source, filename)
	output := map[string]interface{}{
		"diagnostics": diagsToSlice(collect(warnings, err)),
	}
	if prog != nil {
		output["ast"] = ast.NodeToMap(prog)
	}
	printJSON(output)
	if err != nil {
		return errReported
	}
	return nil
}

// ---- run command ----

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	scale := fs.Int("scale", window.DefaultScale, "window pixels per canvas pixel")
	closeOnExit := fs.Bool("close", false, "close the window when the program ends")
	filename, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	prog, err := load(filename)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := window.Options{
		Title:       "bb2web - " + filepath.Base(filename),
		Scale:       *scale,
		CloseOnExit: *closeOnExit,
	}
	return window.Run(ctx, opts, func(ctx context.Context, s surface.Surface) error {
		return runtime.NewInterpreter(surface.NewRuntime(s)).Run(ctx, prog)
	})
}

// ---- trace command ----

func cmdTrace(args []string) error {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	frames := fs.Int("frames", 60, "stop after this many Flip calls (0: no limit)")
	filename, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	prog, err := load(filename)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rec := surface.NewRecorder(*frames)
	runErr := runtime.NewInterpreter(surface.NewRuntime(rec)).Run(ctx, prog)
	for _, call := range rec.Calls() {
		fmt.Println(call)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// ---- serve command ----

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "localhost:8080", "listen address")
	filename, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filename); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return playground.New(filename).ListenAndServe(ctx, *addr)
}

// load reads and parses a program, printing warnings and diagnostics.
func load(filename string) (*ast.Program, error) {
	source, err := readFile(filename)
	if err != nil {
		return nil, err
	}
	prog, warnings, err := bb2web.Parse(source, filename)
	printDiagsText(warnings)
	if err != nil {
		printError(err)
		return nil, errReported
	}
	return prog, nil
}
