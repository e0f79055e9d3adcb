package playground

import (
	"testing"

	"github.com/dop251/goja"

	"bb2web/internal/surface"
)

// loadRuntime evaluates the embedded browser runtime and returns an rt
// object without a canvas.
func loadRuntime(t *testing.T) (*goja.Runtime, *goja.Object) {
	t.Helper()
	src, err := assets.ReadFile("assets/bb_runtime.js")
	if err != nil {
		t.Fatal(err)
	}
	vm := goja.New()
	if _, err := vm.RunScript("bb_runtime.js", string(src)); err != nil {
		t.Fatalf("runtime script: %v", err)
	}
	rt, err := vm.RunString("bbRuntime.create(null)")
	if err != nil {
		t.Fatal(err)
	}
	return vm, rt.ToObject(vm)
}

func callJS(t *testing.T, vm *goja.Runtime, rt *goja.Object, member string, args ...interface{}) goja.Value {
	t.Helper()
	fn, ok := goja.AssertFunction(rt.Get(member))
	if !ok {
		t.Fatalf("%s is not a function", member)
	}
	vals := make([]goja.Value, len(args))
	for i, a := range args {
		vals[i] = vm.ToValue(a)
	}
	v, err := fn(rt, vals...)
	if err != nil {
		t.Fatalf("%s: %v", member, err)
	}
	return v
}

func TestBrowserRandomMatchesGo(t *testing.T) {
	vm, rt := loadRuntime(t)
	ref := surface.NewRand()

	for i := 0; i < 3; i++ {
		if got, want := callJS(t, vm, rt, "Rnd", 100).ToFloat(), ref.Rnd(100); got != want {
			t.Fatalf("draw %d: js %v, go %v", i, got, want)
		}
	}
	callJS(t, vm, rt, "SeedRnd", -5)
	ref.Seed(-5)
	if got, want := callJS(t, vm, rt, "Rnd", 2, 8).ToFloat(), ref.Range(2, 8); got != want {
		t.Errorf("seeded range: js %v, go %v", got, want)
	}
}

func TestBrowserRuntimeRequiresGraphics(t *testing.T) {
	vm, rt := loadRuntime(t)
	fn, _ := goja.AssertFunction(rt.Get("Cls"))
	if _, err := fn(rt); err == nil {
		t.Fatal("expected an error before Graphics")
	}
	if v := callJS(t, vm, rt, "KeyDown", 27); v.ToInteger() != 0 {
		t.Errorf("KeyDown = %v", v)
	}
}
