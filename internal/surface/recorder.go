package surface

import "sync"

// FrameMillis is how far a Recorder's clock advances on each Flip.
const FrameMillis = 16

// Recorder is a headless Surface that logs every runtime call. Its clock is
// driven by Flip so that recorded runs are reproducible.
type Recorder struct {
	// MaxFrames stops the program with ErrStop once that many frames
	// have been flipped. Zero means no limit.
	MaxFrames int

	mu          sync.Mutex
	calls       []string
	initialized bool
	width       int
	height      int
	frames      int
	millis      float64
	keys        map[int]bool
	mouseX      int
	mouseY      int
}

// NewRecorder returns a recorder that stops after maxFrames flips.
func NewRecorder(maxFrames int) *Recorder {
	return &Recorder{MaxFrames: maxFrames, keys: make(map[int]bool)}
}

// Trace records one call.
func (r *Recorder) Trace(member string, args []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, FormatCall(member, args))
}

// Calls returns a copy of the call log.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// Frames returns the number of completed flips.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Size returns the dimensions given to Graphics.
func (r *Recorder) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// SetKey marks a key code as held or released.
func (r *Recorder) SetKey(code int, down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if down {
		r.keys[code] = true
	} else {
		delete(r.keys, code)
	}
}

// SetMouse moves the pointer.
func (r *Recorder) SetMouse(x, y int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mouseX, r.mouseY = x, y
}

func (r *Recorder) Graphics(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = true
	r.width, r.height = width, height
	return nil
}

func (r *Recorder) ready() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (r *Recorder) Cls() error                        { return r.ready() }
func (r *Recorder) Color(red, green, blue int)        {}
func (r *Recorder) Plot(x, y int) error               { return r.ready() }
func (r *Recorder) Line(x1, y1, x2, y2 float64) error { return r.ready() }

func (r *Recorder) Rect(x, y, w, h float64, solid bool) error { return r.ready() }
func (r *Recorder) Oval(x, y, w, h float64, solid bool) error { return r.ready() }
func (r *Recorder) Text(x, y float64, s string) error         { return r.ready() }

// Flip ends a frame and advances the clock.
func (r *Recorder) Flip() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	r.millis += FrameMillis
	if r.MaxFrames > 0 && r.frames >= r.MaxFrames {
		return ErrStop
	}
	return nil
}

func (r *Recorder) MilliSecs() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.millis
}

func (r *Recorder) KeyDown(code int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[code]
}

func (r *Recorder) MouseX() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mouseX
}

func (r *Recorder) MouseY() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mouseY
}
