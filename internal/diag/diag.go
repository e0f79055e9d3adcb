// Package diag provides the fault and warning types reported by the
// compilation pipeline.
package diag

import (
	"fmt"

	"bb2web/internal/span"
)

// Severity indicates the severity of a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "error":
		*s = Error
	case "warning":
		*s = Warning
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Class identifies the pipeline stage a fault belongs to.
type Class int

const (
	Lexical      Class = iota // unrecognized input while tokenizing
	Syntax                    // grammar violation while parsing
	Construction              // structurally invalid AST handed to the emitter
	Arity                     // built-in command called with the wrong argument count
)

func (c Class) String() string {
	switch c {
	case Lexical:
		return "lexical"
	case Syntax:
		return "syntax"
	case Construction:
		return "construction"
	case Arity:
		return "arity"
	default:
		return "unknown"
	}
}

// MarshalText renders the class by name in JSON output.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a class name.
func (c *Class) UnmarshalText(b []byte) error {
	for k := Lexical; k <= Arity; k++ {
		if k.String() == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown class %q", b)
}

// Stable diagnostic codes.
const (
	CodeUnexpectedChar   = "E1001"
	CodeExpected         = "E2001"
	CodeUnexpectedToken  = "E2002"
	CodeCallTarget       = "E2003"
	CodeAssignTarget     = "E2004"
	CodeBlockTerminator  = "E2005"
	CodeInvalidTree      = "E3001"
	CodeArity            = "E3002"
	CodeDuplicateFunc    = "E3003"
	CodeUnterminatedRem  = "W1001"
	CodeUnterminatedText = "W1002"
)

// Diagnostic is a positioned compiler message. Error-severity diagnostics
// are returned as Go errors and abort compilation.
type Diagnostic struct {
	Code     string    `json:"code"`           // stable code, e.g. "E1001"
	Class    Class     `json:"class"`          // pipeline stage
	Severity Severity  `json:"severity"`       // error or warning
	Message  string    `json:"message"`        // human-readable description
	Span     span.Span `json:"span"`           // source location
	Hint     string    `json:"hint,omitempty"` // optional hint
}

// String returns a human-readable representation of the diagnostic.
func (d Diagnostic) String() string {
	msg := fmt.Sprintf("[%s] %s: %s", d.Code, d.Severity, d.Message)
	if d.Span.Start.IsValid() {
		msg = fmt.Sprintf("[%s] %s at %s: %s", d.Code, d.Severity, d.Span.Start, d.Message)
	}
	if d.Hint != "" {
		msg += " (hint: " + d.Hint + ")"
	}
	return msg
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	return d.String()
}

// Line returns the 1-based line of the diagnostic.
func (d Diagnostic) Line() int { return d.Span.Start.Line }

// Column returns the 1-based column of the diagnostic.
func (d Diagnostic) Column() int { return d.Span.Start.Column }

// Errorf creates an error diagnostic of the given class at s.
func Errorf(class Class, code string, s span.Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Code:     code,
		Class:    class,
		Severity: Error,
		Message:  fmt.Sprintf(format, args...),
		Span:     s,
	}
}

// Warningf creates a warning diagnostic at s.
func Warningf(code string, s span.Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Code:     code,
		Class:    Lexical,
		Severity: Warning,
		Message:  fmt.Sprintf(format, args...),
		Span:     s,
	}
}

// WithHint returns a copy of d carrying hint.
func (d Diagnostic) WithHint(hint string) Diagnostic {
	d.Hint = hint
	return d
}
