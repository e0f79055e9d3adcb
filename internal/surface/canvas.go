package surface

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canvas is a Surface that rasterizes into an in-memory RGBA image.
type Canvas struct {
	// OnFlip, if set, receives a copy of the frame on every Flip. An
	// error it returns ends the program.
	OnFlip func(frame *image.RGBA) error

	mu     sync.Mutex
	img    *image.RGBA
	fg     color.RGBA
	start  time.Time
	keys   map[int]bool
	mouseX int
	mouseY int
}

// NewCanvas returns a canvas with no image until Graphics is called.
func NewCanvas() *Canvas {
	return &Canvas{
		fg:    color.RGBA{255, 255, 255, 255},
		start: time.Now(),
		keys:  make(map[int]bool),
	}
}

func (c *Canvas) Graphics(width, height int) error {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
	return nil
}

// Size returns the current image size, or zeros before Graphics.
func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.img == nil {
		return 0, 0
	}
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Snapshot returns a copy of the current image, or nil before Graphics.
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Canvas) snapshot() *image.RGBA {
	if c.img == nil {
		return nil
	}
	out := image.NewRGBA(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}

// SetKey marks a key code as held or released.
func (c *Canvas) SetKey(code int, down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if down {
		c.keys[code] = true
	} else {
		delete(c.keys, code)
	}
}

// SetMouse moves the pointer in image coordinates.
func (c *Canvas) SetMouse(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mouseX, c.mouseY = x, y
}

// with runs fn on the image under the lock.
func (c *Canvas) with(fn func(img *image.RGBA)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.img == nil {
		return ErrNotInitialized
	}
	fn(c.img)
	return nil
}

func (c *Canvas) Cls() error {
	return c.with(func(img *image.RGBA) {
		draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 255}), image.Point{}, draw.Src)
	})
}

func (c *Canvas) Color(r, g, b int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fg = color.RGBA{channel(r), channel(g), channel(b), 255}
}

func channel(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

func (c *Canvas) Plot(x, y int) error {
	return c.with(func(img *image.RGBA) {
		img.SetRGBA(x, y, c.fg)
	})
}

func (c *Canvas) Line(x1, y1, x2, y2 float64) error {
	return c.with(func(img *image.RGBA) {
		line(img, c.fg, round(x1), round(y1), round(x2), round(y2))
	})
}

// line draws with Bresenham's algorithm.
func line(img *image.RGBA, col color.RGBA, x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetRGBA(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *Canvas) Rect(x, y, w, h float64, solid bool) error {
	return c.with(func(img *image.RGBA) {
		r := image.Rect(round(x), round(y), round(x+w), round(y+h))
		if r.Empty() {
			return
		}
		if solid {
			draw.Draw(img, r, image.NewUniform(c.fg), image.Point{}, draw.Src)
			return
		}
		x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
		line(img, c.fg, x0, y0, x1, y0)
		line(img, c.fg, x1, y0, x1, y1)
		line(img, c.fg, x1, y1, x0, y1)
		line(img, c.fg, x0, y1, x0, y0)
	})
}

func (c *Canvas) Oval(x, y, w, h float64, solid bool) error {
	return c.with(func(img *image.RGBA) {
		cx, cy := x+w/2, y+h/2
		rx, ry := math.Abs(w/2), math.Abs(h/2)
		if rx == 0 || ry == 0 {
			return
		}
		if solid {
			for py := int(math.Floor(cy - ry)); float64(py) < cy+ry; py++ {
				t := (float64(py) + 0.5 - cy) / ry
				if t <= -1 || t >= 1 {
					continue
				}
				dx := rx * math.Sqrt(1-t*t)
				for px := round(cx - dx); float64(px)+0.5 <= cx+dx; px++ {
					img.SetRGBA(px, py, c.fg)
				}
			}
			return
		}
		steps := int(2*math.Pi*math.Max(rx, ry)) + 8
		px, py := round(cx+rx), round(cy)
		for i := 1; i <= steps; i++ {
			a := 2 * math.Pi * float64(i) / float64(steps)
			nx, ny := round(cx+rx*math.Cos(a)), round(cy+ry*math.Sin(a))
			line(img, c.fg, px, py, nx, ny)
			px, py = nx, ny
		}
	})
}

// Text draws s with its baseline at y.
func (c *Canvas) Text(x, y float64, s string) error {
	return c.with(func(img *image.RGBA) {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c.fg),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(round(x), round(y)),
		}
		d.DrawString(s)
	})
}

// Flip hands the finished frame to OnFlip.
func (c *Canvas) Flip() error {
	c.mu.Lock()
	if c.img == nil {
		c.mu.Unlock()
		return nil
	}
	frame, hook := c.snapshot(), c.OnFlip
	c.mu.Unlock()
	if hook == nil {
		return nil
	}
	return hook(frame)
}

func (c *Canvas) MilliSecs() float64 {
	return float64(time.Since(c.start).Microseconds()) / 1000
}

func (c *Canvas) KeyDown(code int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[code]
}

func (c *Canvas) MouseX() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mouseX
}

func (c *Canvas) MouseY() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mouseY
}

// maxCoord bounds rasterized coordinates.
const maxCoord = 1 << 16

func round(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Floor(math.Max(-maxCoord, math.Min(maxCoord, f)) + 0.5))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
