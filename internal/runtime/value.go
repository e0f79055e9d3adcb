// Package runtime executes BASIC programs directly, with the same value
// semantics as the generated JavaScript, against a surface.Runtime.
package runtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"bb2web/internal/ast"
	"bb2web/internal/surface"
)

// Value is the interface for all runtime values.
type Value interface {
	TypeName() string
	String() string
}

// ---- Primitive values ----

// NumberVal is the only numeric type; suffixes do not change it.
type NumberVal float64

func (v NumberVal) TypeName() string { return "number" }
func (v NumberVal) String() string   { return surface.FormatNumber(float64(v)) }

// StringVal represents a string value.
type StringVal string

func (v StringVal) TypeName() string { return "string" }
func (v StringVal) String() string   { return string(v) }

// BoolVal represents a boolean value.
type BoolVal bool

func (v BoolVal) TypeName() string { return "boolean" }
func (v BoolVal) String() string   { return strconv.FormatBool(bool(v)) }

// NullVal represents null.
type NullVal struct{}

func (v NullVal) TypeName() string { return "object" }
func (v NullVal) String() string   { return "null" }

// UndefinedVal is the value of anything never assigned.
type UndefinedVal struct{}

func (v UndefinedVal) TypeName() string { return "undefined" }
func (v UndefinedVal) String() string   { return "undefined" }

var undefined Value = UndefinedVal{}

// ---- Arrays ----

// ArrayVal is an array created by Dim. Indices past the end read as
// undefined; writes grow the array.
type ArrayVal struct {
	Elements []Value
	Props    map[string]Value // non-index keys
}

// NewArray returns an array of n zeros.
func NewArray(n int) *ArrayVal {
	arr := &ArrayVal{Elements: make([]Value, n)}
	for i := range arr.Elements {
		arr.Elements[i] = NumberVal(0)
	}
	return arr
}

func (v *ArrayVal) TypeName() string { return "object" }

// String joins the elements with commas; null and undefined render empty.
func (v *ArrayVal) String() string {
	parts := make([]string, len(v.Elements))
	for i, elem := range v.Elements {
		switch elem.(type) {
		case nil, NullVal, UndefinedVal:
		default:
			parts[i] = elem.String()
		}
	}
	return strings.Join(parts, ",")
}

// ---- Functions ----

// FuncVal is a declared user function and the function scope it was
// declared in.
type FuncVal struct {
	Decl  *ast.FuncDecl
	Scope *Environment
}

func (v *FuncVal) TypeName() string { return "function" }
func (v *FuncVal) String() string   { return fmt.Sprintf("<function %s>", v.Decl.Name.Name) }

// ---- Conversions ----

// IsTruthy returns false for false, 0, NaN, "", null and undefined.
func IsTruthy(v Value) bool {
	switch val := v.(type) {
	case nil, NullVal, UndefinedVal:
		return false
	case BoolVal:
		return bool(val)
	case NumberVal:
		f := float64(val)
		return f != 0 && !math.IsNaN(f)
	case StringVal:
		return val != ""
	default:
		return true
	}
}

// ToNumber converts v the way arithmetic operators do.
func ToNumber(v Value) float64 {
	switch val := v.(type) {
	case NumberVal:
		return float64(val)
	case StringVal:
		return surface.ParseNumber(string(val))
	case BoolVal:
		if val {
			return 1
		}
		return 0
	case NullVal:
		return 0
	case *ArrayVal:
		return surface.ParseNumber(val.String())
	default:
		return math.NaN()
	}
}

// toPrimitive flattens arrays to their string form.
func toPrimitive(v Value) Value {
	if arr, ok := v.(*ArrayVal); ok {
		return StringVal(arr.String())
	}
	return v
}

// StrictEquals implements the = operator: same type and same value.
// Arrays compare by identity and NaN never equals itself.
func StrictEquals(a, b Value) bool {
	switch x := a.(type) {
	case NumberVal:
		y, ok := b.(NumberVal)
		return ok && x == y
	case StringVal:
		y, ok := b.(StringVal)
		return ok && x == y
	case BoolVal:
		y, ok := b.(BoolVal)
		return ok && x == y
	case NullVal:
		_, ok := b.(NullVal)
		return ok
	case UndefinedVal:
		_, ok := b.(UndefinedVal)
		return ok
	case *ArrayVal:
		y, ok := b.(*ArrayVal)
		return ok && x == y
	}
	return false
}

// sameValueZero is StrictEquals except that NaN matches NaN.
func sameValueZero(a, b Value) bool {
	x, okx := a.(NumberVal)
	y, oky := b.(NumberVal)
	if okx && oky && math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
		return true
	}
	return StrictEquals(a, b)
}

// compareStrings orders by UTF-16 code units.
func compareStrings(a, b string) int {
	ua, ub := utf16.Encode([]rune(a)), utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	return len(ua) - len(ub)
}

// arrayIndex converts a property key to an array index.
func arrayIndex(key Value) (int, bool) {
	s := toPrimitive(key).String()
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == math.MaxUint32 || strconv.FormatUint(n, 10) != s {
		return 0, false
	}
	return int(n), true
}

// ---- Bridge values ----

// toArg converts a value to the form surface.Runtime.Call accepts.
func toArg(v Value) interface{} {
	switch val := v.(type) {
	case NumberVal:
		return float64(val)
	case StringVal:
		return string(val)
	case BoolVal:
		return bool(val)
	case NullVal:
		return surface.Null
	case nil, UndefinedVal:
		return nil
	default:
		return val.String()
	}
}

// fromResult converts a runtime command result back to a value.
func fromResult(r interface{}) Value {
	switch x := r.(type) {
	case float64:
		return NumberVal(x)
	case string:
		return StringVal(x)
	case bool:
		return BoolVal(x)
	case surface.NullValue:
		return NullVal{}
	default:
		return undefined
	}
}
