// Package lexer implements tokenization of BASIC source text.
package lexer

import (
	"strings"
	"unicode/utf8"

	"bb2web/internal/diag"
	"bb2web/internal/span"
	"bb2web/internal/token"
)

// Lexer tokenizes source code into a flat sequence of tokens.
type Lexer struct {
	source   string
	filename string

	pos  int // current read position in source (bytes)
	line int // current line (1-based)
	col  int // current column (1-based, in runes)

	warnings []diag.Diagnostic
}

// New creates a new Lexer for the given source text.
func New(source, filename string) *Lexer {
	return &Lexer{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

// Tokenize scans the entire source. On success the returned slice ends with
// exactly one EOF token. The first unrecognized character aborts scanning
// with a Lexical diagnostic and no tokens.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var tokens []token.Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.ILLEGAL {
			// comment or whitespace run; nothing to emit
			continue
		}
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF {
			return tokens, nil
		}
		if tok.Kind == token.IDENT || tok.Kind == token.KEYWORD {
			if suffix, ok := l.readSuffix(); ok {
				tokens = append(tokens, suffix)
			}
		}
	}
}

// Warnings returns the non-fatal diagnostics collected while tokenizing.
func (l *Lexer) Warnings() []diag.Diagnostic {
	return l.warnings
}

// ---- internal helpers ----

// peek returns the current byte without advancing, or 0 at end of input.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.source) {
		return 0
	}
	return l.source[l.pos]
}

// peekAt returns the byte n positions ahead, or 0 past the end.
func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.source) {
		return 0
	}
	return l.source[l.pos+n]
}

// advance consumes one rune, keeping line and column current.
func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

// advanceN consumes n bytes worth of runes.
func (l *Lexer) advanceN(n int) {
	end := l.pos + n
	for l.pos < end && l.pos < len(l.source) {
		l.advance()
	}
}

func (l *Lexer) curPos() span.Position {
	return span.Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) makeSpan(start span.Position) span.Span {
	return span.Span{Start: start, End: l.curPos()}
}

func (l *Lexer) make(kind token.Kind, lexeme string, start span.Position) token.Token {
	return token.New(kind, lexeme, l.makeSpan(start))
}

func (l *Lexer) warn(code string, s span.Span, format string, args ...interface{}) {
	l.warnings = append(l.warnings, diag.Warningf(code, s, format, args...))
}

// skipped is returned for input that produces no token.
var skipped = token.Token{Kind: token.ILLEGAL}

// ---- token reading ----

func (l *Lexer) nextToken() (token.Token, error) {
	if l.pos >= len(l.source) {
		return l.make(token.EOF, "", l.curPos()), nil
	}

	start := l.curPos()
	ch := l.peek()

	switch {
	case l.atRem():
		l.skipBlockComment(start)
		return skipped, nil
	case ch == '\'':
		for l.pos < len(l.source) && l.peek() != '\n' {
			l.advance()
		}
		return skipped, nil
	case ch == ' ' || ch == '\t' || ch == '\r':
		l.advance()
		return skipped, nil
	case ch == '\n':
		l.advance()
		return l.make(token.EOL, "\n", start), nil
	case ch == '"':
		return l.readString(start), nil
	case isDigit(ch) || (ch == '.' && isDigit(l.peekAt(1))):
		return l.readNumber(start), nil
	case isIdentStart(ch):
		return l.readIdentifier(start), nil
	}
	return l.readOperator(start)
}

// atRem reports whether a REM comment opens here. REM must be a whole word
// so identifiers such as Remaining still lex as identifiers.
func (l *Lexer) atRem() bool {
	if len(l.source)-l.pos < 3 || !strings.EqualFold(l.source[l.pos:l.pos+3], "REM") {
		return false
	}
	return !isIdentPart(l.peekAt(3))
}

// skipBlockComment consumes REM ... END REM. An unterminated comment runs to
// end of input and is only a warning.
func (l *Lexer) skipBlockComment(start span.Position) {
	l.advanceN(3)
	idx := strings.Index(strings.ToUpper(l.source[l.pos:]), "END REM")
	if idx < 0 {
		l.advanceN(len(l.source) - l.pos)
		l.warn(diag.CodeUnterminatedRem, l.makeSpan(start), "REM comment is not closed by END REM")
		return
	}
	l.advanceN(idx + len("END REM"))
}

// readString reads a double-quoted literal. A backslash takes the next
// character literally; there are no named escapes.
func (l *Lexer) readString(start span.Position) token.Token {
	l.advance() // opening "
	var b strings.Builder
	escaped := false
	for l.pos < len(l.source) {
		r := l.advance()
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			return l.make(token.STRING, b.String(), start)
		default:
			b.WriteRune(r)
		}
	}
	l.warn(diag.CodeUnterminatedText, l.makeSpan(start), "string literal is not closed")
	return l.make(token.STRING, b.String(), start)
}

// readNumber reads digits, an optional fraction and an optional exponent.
// At least one side of the decimal point has digits.
func (l *Lexer) readNumber(start span.Position) token.Token {
	numStart := l.pos
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' {
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	if c := l.peek(); c == 'e' || c == 'E' {
		n := 1
		if s := l.peekAt(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(l.peekAt(n)) {
			l.advanceN(n)
			for isDigit(l.peek()) {
				l.advance()
			}
		}
	}
	return l.make(token.NUMBER, l.source[numStart:l.pos], start)
}

// readIdentifier reads an identifier or keyword. A directly following type
// suffix is emitted separately by readSuffix; binding it is the parser's job.
func (l *Lexer) readIdentifier(start span.Position) token.Token {
	identStart := l.pos
	for isIdentPart(l.peek()) {
		l.advance()
	}
	lexeme := l.source[identStart:l.pos]
	return l.make(token.LookupIdent(lexeme), lexeme, start)
}

// readSuffix consumes a type-suffix marker (% # $) directly after an
// identifier and returns it as an OP token.
func (l *Lexer) readSuffix() (token.Token, bool) {
	ch := l.peek()
	if ch != '%' && ch != '#' && ch != '$' {
		return token.Token{}, false
	}
	start := l.curPos()
	l.advance()
	return l.make(token.OP, string(ch), start), true
}

// twoCharOps are matched before single punctuation.
var twoCharOps = []string{"<>", "<=", ">=", ":="}

// readOperator reads an operator or punctuation character.
func (l *Lexer) readOperator(start span.Position) (token.Token, error) {
	rest := l.source[l.pos:]
	for _, op := range twoCharOps {
		if strings.HasPrefix(rest, op) {
			l.advanceN(2)
			return l.make(token.OP, op, start), nil
		}
	}

	switch ch := l.peek(); ch {
	case '^', '+', '-', '*', '/', '=', '(', ')', ',', ':', '[', ']', '<', '>':
		l.advance()
		return l.make(token.OP, string(ch), start), nil
	}

	r := l.advance()
	return token.Token{}, diag.Errorf(diag.Lexical, diag.CodeUnexpectedChar, l.makeSpan(start),
		"unexpected character '%c'", r)
}

// ---- character classification ----

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
