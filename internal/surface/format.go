package surface

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders f the way script engines convert numbers to
// strings: integers without a fraction, shortest round-trip digits, and
// exponent notation outside [1e-7, 1e21).
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	case f < 0:
		return "-" + FormatNumber(-f)
	}

	mant, expStr, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	digits := strings.Replace(mant, ".", "", 1)
	exp, _ := strconv.Atoi(expStr)
	k, n := len(digits), exp+1

	switch {
	case k <= n && n <= 21:
		return digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return "0." + strings.Repeat("0", -n) + digits
	}

	e := n - 1
	sign := "+"
	if e < 0 {
		sign, e = "-", -e
	}
	if k == 1 {
		return digits + "e" + sign + strconv.Itoa(e)
	}
	return digits[:1] + "." + digits[1:] + "e" + sign + strconv.Itoa(e)
}

// NullValue is the script null. A nil interface stands for undefined.
type NullValue struct{}

// Null is the single NullValue.
var Null = NullValue{}

// FormatValue renders a call argument canonically so logs from different
// executors compare equal.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "undefined"
	case NullValue:
		return "null"
	case float64:
		return FormatNumber(x)
	case int64:
		return FormatNumber(float64(x))
	case int:
		return FormatNumber(float64(x))
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// FormatCall renders one call as Member(arg, arg, ...).
func FormatCall(member string, args []interface{}) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatValue(a)
	}
	return member + "(" + strings.Join(parts, ", ") + ")"
}

// ToNumber converts an argument with script-engine rules.
func ToNumber(v interface{}) float64 {
	switch x := v.(type) {
	case nil:
		return math.NaN()
	case NullValue:
		return 0
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return ParseNumber(x)
	}
	return math.NaN()
}

// ParseNumber converts string text to a number: surrounding whitespace is
// ignored, empty text is 0, and anything unparseable is NaN.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			if n, err := strconv.ParseUint(s[2:], base, 64); err == nil {
				return float64(n)
			}
			return math.NaN()
		}
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !strings.ContainsRune("+-.eE", r) {
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

// ToInt32 applies the `x | 0` conversion.
func ToInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Trunc(math.Mod(f, 1<<32)))))
}

// ToUint32 applies the `x >>> 0` conversion.
func ToUint32(f float64) uint32 {
	return uint32(ToInt32(f))
}
