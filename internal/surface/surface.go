// Package surface provides the runtime object that compiled programs call:
// drawing, input, timing and the seeded random generator.
//
// A Surface is always passed explicitly. Nothing is created lazily; drawing
// before Graphics is an error.
package surface

import "errors"

// ErrNotInitialized is returned by drawing calls made before Graphics.
var ErrNotInitialized = errors.New("graphics not initialized")

// ErrStop asks the running program to end without reporting a failure. A
// surface returns it, typically from Flip, when it wants no more frames.
var ErrStop = errors.New("program stopped")

// Surface is the drawing and input half of the runtime.
type Surface interface {
	Graphics(width, height int) error
	Cls() error
	Color(r, g, b int)
	Plot(x, y int) error
	Line(x1, y1, x2, y2 float64) error
	Rect(x, y, w, h float64, solid bool) error
	Oval(x, y, w, h float64, solid bool) error
	Text(x, y float64, s string) error
	Flip() error
	MilliSecs() float64
	KeyDown(code int) bool
	MouseX() int
	MouseY() int
}

// Tracer is implemented by surfaces that want to observe every runtime
// call, including the random generator, with its arguments as passed.
type Tracer interface {
	Trace(member string, args []interface{})
}
