// Package token defines the tokens produced by the BASIC tokenizer.
package token

import (
	"fmt"
	"strings"

	"bb2web/internal/span"
)

// Kind is the coarse category of a token. Operators and keywords are not
// split into one kind per lexeme; the parser matches them by Upper text.
type Kind int

const (
	ILLEGAL Kind = iota
	IDENT
	NUMBER
	STRING
	KEYWORD
	OP
	EOL
	EOF
)

var kindNames = map[Kind]string{
	ILLEGAL: "ILLEGAL",
	IDENT:   "IDENT",
	NUMBER:  "NUMBER",
	STRING:  "STRING",
	KEYWORD: "KEYWORD",
	OP:      "OP",
	EOL:     "EOL",
	EOF:     "EOF",
}

// String returns the human-readable name for a token kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// keywords is the closed set of control-flow and declaration words.
// Runtime commands (GRAPHICS, PLOT, ...) are deliberately absent: they lex
// as identifiers and are resolved by the emitter.
var keywords = map[string]bool{
	"GLOBAL":   true,
	"LOCAL":    true,
	"CONST":    true,
	"DIM":      true,
	"IF":       true,
	"THEN":     true,
	"ELSE":     true,
	"ELSEIF":   true,
	"ENDIF":    true,
	"WHILE":    true,
	"WEND":     true,
	"REPEAT":   true,
	"UNTIL":    true,
	"FOR":      true,
	"TO":       true,
	"STEP":     true,
	"NEXT":     true,
	"SELECT":   true,
	"CASE":     true,
	"DEFAULT":  true,
	"END":      true,
	"FUNCTION": true,
	"RETURN":   true,
	"NOT":      true,
	"AND":      true,
	"OR":       true,
	"MOD":      true,
}

// IsKeyword reports whether word (any case) is a reserved keyword.
func IsKeyword(word string) bool {
	return keywords[strings.ToUpper(word)]
}

// LookupIdent returns KEYWORD for reserved words and IDENT otherwise.
func LookupIdent(ident string) Kind {
	if IsKeyword(ident) {
		return KEYWORD
	}
	return IDENT
}

// Token is a lexical token. Upper holds the upper-cased lexeme used for
// case-insensitive matching of keywords and operators.
type Token struct {
	Kind   Kind      `json:"kind"`
	Lexeme string    `json:"lexeme"`
	Upper  string    `json:"upper"`
	Span   span.Span `json:"span"`
}

// New builds a token, deriving Upper from lexeme.
func New(kind Kind, lexeme string, s span.Span) Token {
	return Token{Kind: kind, Lexeme: lexeme, Upper: strings.ToUpper(lexeme), Span: s}
}

// Is reports whether the token has the given kind and upper-cased text.
func (t Token) Is(kind Kind, upper string) bool {
	return t.Kind == kind && t.Upper == upper
}

// IsKeyword reports whether the token is the keyword kw (upper case).
func (t Token) IsKeyword(kw string) bool {
	return t.Is(KEYWORD, kw)
}

// IsOp reports whether the token is the operator or punctuation op.
func (t Token) IsOp(op string) bool {
	return t.Is(OP, op)
}

// IsSeparator reports whether the token ends a statement (line break or ':').
func (t Token) IsSeparator() bool {
	return t.Kind == EOL || t.IsOp(":")
}

// Describe renders the token for diagnostics, e.g. `keyword "WEND"`.
func (t Token) Describe() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case EOL:
		return "line break"
	case KEYWORD:
		return fmt.Sprintf("keyword %q", t.Upper)
	case OP:
		return fmt.Sprintf("%q", t.Lexeme)
	default:
		return fmt.Sprintf("%s %q", strings.ToLower(t.Kind.String()), t.Lexeme)
	}
}

// String returns a human-readable representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s %q %s", t.Kind, t.Lexeme, t.Span.Start)
}
