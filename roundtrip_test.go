package bb2web_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"

	"bb2web"
	"bb2web/internal/builtins"
	"bb2web/internal/runtime"
	"bb2web/internal/surface"
)

// roundTripFrames is the flip budget for every round-trip run.
const roundTripFrames = 3

// runEmitted executes the JavaScript dialect of source in goja against a
// recorder and returns the call log and whether execution failed.
func runEmitted(t *testing.T, source string) ([]string, bool) {
	t.Helper()
	code, err := bb2web.Transpile(source, bb2web.Options{Dialect: bb2web.JavaScript})
	if err != nil {
		t.Fatalf("transpile: %v", err)
	}

	rec := surface.NewRecorder(roundTripFrames)
	rt := surface.NewRuntime(rec)
	vm := goja.New()
	stopped := false

	obj := vm.NewObject()
	for _, cmd := range builtins.All() {
		member := cmd.Member
		obj.Set(member, func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = exportArg(a)
			}
			result, err := rt.Call(member, args)
			if errors.Is(err, surface.ErrStop) {
				stopped = true
			}
			if err != nil {
				panic(vm.NewGoError(err))
			}
			if result == nil {
				return goja.Undefined()
			}
			return vm.ToValue(result)
		})
	}
	vm.Set("rt", obj)

	timer := time.AfterFunc(5*time.Second, func() { vm.Interrupt("timeout") })
	defer timer.Stop()
	_, err = vm.RunString(code)
	if _, ok := err.(*goja.InterruptedError); ok {
		t.Fatalf("emitted code did not finish:\n%s", code)
	}
	return rec.Calls(), err != nil && !stopped
}

// exportArg converts a script value the way the interpreter hands values
// to the runtime.
func exportArg(v goja.Value) interface{} {
	switch {
	case goja.IsUndefined(v):
		return nil
	case goja.IsNull(v):
		return surface.Null
	}
	switch x := v.Export().(type) {
	case int64, float64, string, bool:
		return x
	}
	return v.String()
}

// runInterpreted executes source with the Go interpreter against a recorder.
func runInterpreted(t *testing.T, source string) ([]string, bool) {
	t.Helper()
	prog, _, err := bb2web.Parse(source, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rec := surface.NewRecorder(roundTripFrames)
	err = runtime.NewInterpreter(surface.NewRuntime(rec)).Run(context.Background(), prog)
	return rec.Calls(), err != nil
}

func checkRoundTrip(t *testing.T, source string) {
	t.Helper()
	emitted, emittedFailed := runEmitted(t, source)
	interpreted, interpretedFailed := runInterpreted(t, source)

	if emittedFailed != interpretedFailed {
		t.Errorf("failure mismatch: emitted %v, interpreted %v", emittedFailed, interpretedFailed)
	}
	got, want := strings.Join(emitted, "\n"), strings.Join(interpreted, "\n")
	if got != want {
		t.Errorf("call logs differ\n--- emitted ---\n%s\n--- interpreted ---\n%s", got, want)
	}
}

func TestRoundTripTestdata(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.bb"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no testdata programs")
	}
	for _, file := range files {
		source, err := os.ReadFile(file)
		if err != nil {
			t.Fatal(err)
		}
		t.Run(filepath.Base(file), func(t *testing.T) {
			checkRoundTrip(t, string(source))
		})
	}
}

func TestRoundTripPrograms(t *testing.T) {
	programs := map[string]string{
		"arithmetic": `Graphics 10, 10
Text 0, 0, 7 Mod 3
Text 0, 0, -7 Mod 3
Text 0, 0, 2 ^ 3 ^ 2
Text 0, 0, -2 ^ 2
Text 0, 0, 1 / 0
Text 0, 0, 0.1 + 0.2`,
		"strings": `Graphics 10, 10
Local name$ = "bb"
Text 0, 0, name$ + 2 + 3
Text 0, 0, 2 + 3 + name$
Text 0, 0, "a" < "b"
Text 0, 0, "10" = 10`,
		"logic": `Graphics 10, 10
Text 0, 0, 0 Or "x"
Text 0, 0, 3 And 0
Text 0, 0, Not 0
Text 0, 0, True = 1
Text 0, 0, Null`,
		"scopes": `Global g = 1
Local m = 2
Function Touch(p)
	Local m = 10
	g = g + p
	m = m + 1
	Return m
End Function
Graphics 10, 10
Text 0, 0, Touch(5)
Text 0, 0, g
Text 0, 0, m`,
		"arrays": `Graphics 10, 10
Dim a(4)
For i = 0 To 4
	a(i) = i * i
Next
Text 0, 0, a(3) + a(4)
Text 0, 0, a(9)`,
		"loops": `Graphics 10, 10
For i = 10 To 1 Step -3
	Plot i, 0
Next
n = 0
While n < 3
	n = n + 1
Wend
Repeat
	n = n - 2
Until n < 0
Text 0, 0, n`,
		"random": `Graphics 10, 10
SeedRnd 42
Text 0, 0, Rnd(10)
Text 0, 0, Rnd(5, 6)
Text 0, 0, MilliSecs()
Flip
Text 0, 0, MilliSecs()`,
		"recursion": `Function Fib(n)
	If n < 2 Then Return n
	Return Fib(n - 1) + Fib(n - 2)
End Function
Graphics 10, 10
Text 0, 0, Fib(12)`,
		"endless": `Graphics 10, 10
x = 0
Repeat
	x = x + 1
	Rect x, 0, 2, 2, 1
	Flip`,
		"draw before graphics": `Plot 1, 1`,
		"select": `Graphics 10, 10
For k = 0 To 3
	Select k * 2
	Case 0
		Text 0, 0, "zero"
	Case 2, 4
		Text 0, 0, "small"
	Default
		Text 0, 0, "big"
	End Select
Next`,
	}
	for name, source := range programs {
		t.Run(name, func(t *testing.T) {
			checkRoundTrip(t, source)
		})
	}
}
