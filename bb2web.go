// Package bb2web compiles BASIC programs into TypeScript or JavaScript that
// drive a small graphics runtime object.
//
// The pipeline is tokenizer, parser and emitter. Every call works on its own
// state, so compilations may run concurrently.
package bb2web

import (
	"bb2web/internal/ast"
	"bb2web/internal/diag"
	"bb2web/internal/emitter"
	"bb2web/internal/lexer"
	"bb2web/internal/parser"
	"bb2web/internal/token"
)

// Dialect selects the output language.
type Dialect = emitter.Dialect

const (
	TypeScript = emitter.TypeScript
	JavaScript = emitter.JavaScript
)

// Options configures a compilation. The zero value emits TypeScript that
// imports rt from ./bb_runtime.
type Options = emitter.Options

// ParseDialect maps a format name ("typescript", "ts", "javascript", "js").
func ParseDialect(s string) (Dialect, error) {
	return emitter.ParseDialect(s)
}

// Result is the output of Compile.
type Result struct {
	Code     string
	Warnings []diag.Diagnostic
}

// Lex tokenizes source. Warnings are returned even when err is nil.
func Lex(source, filename string) ([]token.Token, []diag.Diagnostic, error) {
	l := lexer.New(source, filename)
	tokens, err := l.Tokenize()
	return tokens, l.Warnings(), err
}

// Parse tokenizes and parses source into a Program.
func Parse(source, filename string) (*ast.Program, []diag.Diagnostic, error) {
	tokens, warnings, err := Lex(source, filename)
	if err != nil {
		return nil, warnings, err
	}
	prog, err := parser.New(tokens).ParseProgram()
	if err != nil {
		return nil, warnings, err
	}
	return prog, warnings, nil
}

// Emit renders a parsed Program.
func Emit(prog *ast.Program, opts Options) (string, error) {
	return emitter.Emit(prog, opts)
}

// Compile runs the whole pipeline and keeps non-fatal warnings.
func Compile(source string, opts Options) (*Result, error) {
	prog, warnings, err := Parse(source, opts.Filename)
	if err != nil {
		return nil, err
	}
	code, err := Emit(prog, opts)
	if err != nil {
		return nil, err
	}
	return &Result{Code: code, Warnings: warnings}, nil
}

// Transpile compiles source to the dialect in opts. Any lexical, syntax,
// construction or arity fault is returned as a diag.Diagnostic.
func Transpile(source string, opts Options) (string, error) {
	res, err := Compile(source, opts)
	if err != nil {
		return "", err
	}
	return res.Code, nil
}
