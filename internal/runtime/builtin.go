package runtime

import (
	"math"

	"bb2web/internal/builtins"
	"bb2web/internal/span"
)

// callCommand hands evaluated arguments to the runtime object. Failures
// keep the underlying error so callers can test for surface.ErrStop.
func (i *Interpreter) callCommand(cmd builtins.Command, args []Value, s span.Span) (Value, error) {
	raw := make([]interface{}, len(args))
	for n, a := range args {
		raw[n] = toArg(a)
	}
	res, err := i.rt.Call(cmd.Member, raw)
	if err != nil {
		return nil, &RuntimeError{Message: cmd.Member + ": " + err.Error(), Span: s, Err: err}
	}
	return fromResult(res), nil
}

// pow is exponentiation with the script rule that 1 and -1 raised to an
// infinite or NaN power give NaN.
func pow(x, y float64) float64 {
	if math.IsNaN(y) {
		return math.NaN()
	}
	if (x == 1 || x == -1) && math.IsInf(y, 0) {
		return math.NaN()
	}
	return math.Pow(x, y)
}
