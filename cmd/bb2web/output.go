package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"bb2web/internal/diag"
	"bb2web/internal/token"
)

// ---- output helpers ----

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "error: JSON encoding failed: %v\n", err)
		os.Exit(1)
	}
}

// stderrColor enables ANSI colors for diagnostics written to a terminal.
var stderrColor = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

func printDiagsText(diags []diag.Diagnostic) {
	for _, d := range diags {
		if !stderrColor {
			fmt.Fprintln(os.Stderr, d.String())
			continue
		}
		color := colorYellow
		if d.Severity == diag.Error {
			color = colorRed
		}
		fmt.Fprintf(os.Stderr, "%s%s%s\n", color, d.String(), colorReset)
	}
}

// printError prints a compile failure. Diagnostics carry their own code
// and position.
func printError(err error) {
	var d diag.Diagnostic
	if errors.As(err, &d) {
		printDiagsText([]diag.Diagnostic{d})
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

// collect appends the diagnostic carried by err, if any, to warnings.
func collect(warnings []diag.Diagnostic, err error) []diag.Diagnostic {
	diags := append([]diag.Diagnostic(nil), warnings...)
	var d diag.Diagnostic
	if errors.As(err, &d) {
		diags = append(diags, d)
	}
	return diags
}

func diagsToSlice(diags []diag.Diagnostic) []map[string]interface{} {
	result := make([]map[string]interface{}, len(diags))
	for i, d := range diags {
		result[i] = map[string]interface{}{
			"code":     d.Code,
			"class":    d.Class.String(),
			"severity": d.Severity.String(),
			"message":  d.Message,
			"line":     d.Span.Start.Line,
			"column":   d.Span.Start.Column,
			"offset":   d.Span.Start.Offset,
		}
		if d.Hint != "" {
			result[i]["hint"] = d.Hint
		}
	}
	return result
}

// ---- token output helpers ----

func printTokensText(tokens []token.Token, diags []diag.Diagnostic) {
	for _, tok := range tokens {
		lexeme := tok.Lexeme
		if tok.Kind == token.EOL {
			lexeme = "\\n"
		}
		fmt.Printf("%-8s %-20s %d:%d\n", tok.Kind, lexeme, tok.Span.Start.Line, tok.Span.Start.Column)
	}
	printDiagsText(diags)
}

func printTokensJSON(tokens []token.Token, diags []diag.Diagnostic) {
	type tokenJSON struct {
		Kind   string `json:"kind"`
		Lexeme string `json:"lexeme"`
		Line   int    `json:"line"`
		Column int    `json:"column"`
		Offset int    `json:"offset"`
	}

	toks := make([]tokenJSON, 0, len(tokens))
	for _, tok := range tokens {
		toks = append(toks, tokenJSON{
			Kind:   tok.Kind.String(),
			Lexeme: tok.Lexeme,
			Line:   tok.Span.Start.Line,
			Column: tok.Span.Start.Column,
			Offset: tok.Span.Start.Offset,
		})
	}

	output := map[string]interface{}{
		"tokens":      toks,
		"diagnostics": diagsToSlice(diags),
	}
	printJSON(output)
}
