package emitter

import (
	"fmt"
	"strings"
)

// Dialect selects the output flavor. The dialects differ only in how the
// runtime object is bound at the module boundary and in type annotations.
type Dialect int

const (
	TypeScript Dialect = iota
	JavaScript
)

func (d Dialect) String() string {
	if d == JavaScript {
		return "javascript"
	}
	return "typescript"
}

// Extension returns the conventional file extension for the dialect.
func (d Dialect) Extension() string {
	if d == JavaScript {
		return ".js"
	}
	return ".ts"
}

// ParseDialect accepts "typescript", "ts", "javascript" or "js" in any case.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "typescript", "ts", "":
		return TypeScript, nil
	case "javascript", "js":
		return JavaScript, nil
	}
	return TypeScript, fmt.Errorf("unknown format %q (want typescript or javascript)", s)
}

// Options configures a single Emit call.
type Options struct {
	Dialect       Dialect
	RuntimeName   string // identifier of the runtime object; default "rt"
	RuntimeModule string // TypeScript import path; default "./bb_runtime"
	Filename      string // source name shown in the header comment
}

func (o Options) withDefaults() Options {
	if o.RuntimeName == "" {
		o.RuntimeName = "rt"
	}
	if o.RuntimeModule == "" {
		o.RuntimeModule = "./bb_runtime"
	}
	return o
}
