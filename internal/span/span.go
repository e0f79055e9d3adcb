// Package span provides source position and span types shared by the
// tokenizer, parser and emitter.
package span

import "fmt"

// Position is a location in BASIC source.
type Position struct {
	Offset int `json:"offset"` // byte offset from beginning of source
	Line   int `json:"line"`   // 1-based line number
	Column int `json:"column"` // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position was set by the tokenizer.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Span is a half-open range [Start, End) of source text.
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func (s Span) String() string {
	return fmt.Sprintf("%s..%s", s.Start, s.End)
}

// At returns an empty span at p.
func At(p Position) Span {
	return Span{Start: p, End: p}
}
