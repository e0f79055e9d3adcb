package surface

import (
	"fmt"
	"math"

	"bb2web/internal/builtins"
)

// Runtime binds a Surface and a Rand into the command set that compiled
// programs call by member name.
type Runtime struct {
	surface Surface
	rand    *Rand
	tracer  Tracer
}

// NewRuntime wraps s. If s also implements Tracer it sees every call.
func NewRuntime(s Surface) *Runtime {
	rt := &Runtime{surface: s, rand: NewRand()}
	if t, ok := s.(Tracer); ok {
		rt.tracer = t
	}
	return rt
}

// Surface returns the wrapped surface.
func (rt *Runtime) Surface() Surface {
	return rt.surface
}

// Rand returns the runtime's generator.
func (rt *Runtime) Rand() *Rand {
	return rt.rand
}

// Call invokes the command member with script values: float64, int64,
// string, bool, Null, or nil for undefined. Numeric results are float64;
// commands without a result return nil.
func (rt *Runtime) Call(member string, args []interface{}) (interface{}, error) {
	cmd, ok := builtins.Lookup(member)
	if !ok {
		return nil, fmt.Errorf("%s is not a runtime command", member)
	}
	if !cmd.Accepts(len(args)) {
		return nil, fmt.Errorf("%s expects %s argument(s), got %d", cmd.Member, cmd.Arity(), len(args))
	}
	if rt.tracer != nil {
		rt.tracer.Trace(cmd.Member, args)
	}

	num := func(i int) float64 { return ToNumber(args[i]) }
	i32 := func(i int) int { return int(ToInt32(num(i))) }
	flag := func(i int) bool {
		if i >= len(args) {
			return false
		}
		f := num(i)
		return f != 0 && !math.IsNaN(f)
	}

	s := rt.surface
	switch cmd.Member {
	case "Graphics":
		return nil, s.Graphics(i32(0), i32(1))
	case "Cls":
		return nil, s.Cls()
	case "Color":
		s.Color(i32(0), i32(1), i32(2))
		return nil, nil
	case "Plot":
		return nil, s.Plot(i32(0), i32(1))
	case "Line":
		return nil, s.Line(num(0), num(1), num(2), num(3))
	case "Rect":
		return nil, s.Rect(num(0), num(1), num(2), num(3), flag(4))
	case "Oval":
		return nil, s.Oval(num(0), num(1), num(2), num(3), flag(4))
	case "Text":
		return nil, s.Text(num(0), num(1), textOf(args[2]))
	case "Flip":
		return nil, s.Flip()
	case "MilliSecs":
		return math.Floor(s.MilliSecs()), nil
	case "KeyDown":
		if s.KeyDown(i32(0)) {
			return float64(1), nil
		}
		return float64(0), nil
	case "MouseX":
		return float64(s.MouseX()), nil
	case "MouseY":
		return float64(s.MouseY()), nil
	case "Rnd":
		if len(args) == 1 || args[1] == nil {
			return rt.rand.Rnd(num(0)), nil
		}
		return rt.rand.Range(num(0), num(1)), nil
	case "SeedRnd":
		rt.rand.Seed(num(0))
		return nil, nil
	}
	return nil, fmt.Errorf("%s is not implemented", cmd.Member)
}

// textOf converts a Text argument to a string.
func textOf(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "undefined"
	case NullValue:
		return "null"
	case bool:
		return fmt.Sprint(x)
	default:
		return FormatNumber(ToNumber(x))
	}
}
