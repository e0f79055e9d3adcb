// Package window shows a running program in a desktop window. The program
// draws into a surface.Canvas on its own goroutine; every Flip hands the
// frame to the window and waits until it has been shown, which paces the
// program at the display rate.
package window

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"bb2web/internal/surface"
)

// DefaultScale is the window pixel size of one canvas pixel.
const DefaultScale = 2

// Options configures a window.
type Options struct {
	Title string
	Scale int
	// Width and Height size the window until the program calls Graphics.
	Width  int
	Height int
	// CloseOnExit closes the window as soon as the program ends.
	CloseOnExit bool
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "bb2web"
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = 320, 240
	}
	return o
}

// Program runs a compiled program against s until it ends or ctx is done.
type Program func(ctx context.Context, s surface.Surface) error

// Run opens a window and runs prog in it. It returns when the window is
// closed, or when the program ends if CloseOnExit is set. Closing the
// window stops the program.
func Run(ctx context.Context, opts Options, prog Program) error {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := newGame(opts)
	g.canvas.OnFlip = g.present(ctx)
	go func() {
		g.done <- prog(ctx, g.canvas)
	}()

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(opts.Width*opts.Scale, opts.Height*opts.Scale)
	ebiten.SetWindowTitle(opts.Title)
	runErr := ebiten.RunGame(g)

	cancel()
	if !g.finished {
		g.result = <-g.done
	}
	if runErr != nil && !errors.Is(runErr, ebiten.Termination) {
		return runErr
	}
	if errors.Is(g.result, context.Canceled) {
		return nil
	}
	return g.result
}

type game struct {
	opts   Options
	canvas *surface.Canvas

	frames chan *image.RGBA
	acks   chan struct{}
	done   chan error

	img     *ebiten.Image
	pressed []ebiten.Key

	finished bool
	result   error
	status   string
}

func newGame(opts Options) *game {
	return &game{
		opts:   opts,
		canvas: surface.NewCanvas(),
		frames: make(chan *image.RGBA),
		acks:   make(chan struct{}, 1),
		done:   make(chan error, 1),
	}
}

// present is the canvas flip hook: it blocks until the frame is on screen.
func (g *game) present(ctx context.Context) func(*image.RGBA) error {
	return func(frame *image.RGBA) error {
		select {
		case g.frames <- frame:
		case <-ctx.Done():
			return surface.ErrStop
		}
		select {
		case <-g.acks:
			return nil
		case <-ctx.Done():
			return surface.ErrStop
		}
	}
}

func (g *game) Update() error {
	g.pollInput()

	select {
	case frame := <-g.frames:
		g.show(frame)
		g.acks <- struct{}{}
	default:
	}

	if !g.finished {
		select {
		case err := <-g.done:
			g.finish(err)
			if g.opts.CloseOnExit {
				return ebiten.Termination
			}
		default:
		}
	} else if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	return nil
}

// finish shows whatever the program drew after its last flip.
func (g *game) finish(err error) {
	g.finished, g.result = true, err
	if snap := g.canvas.Snapshot(); snap != nil {
		g.show(snap)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		g.status = fmt.Sprintf("error: %v", err)
	}
}

func (g *game) pollInput() {
	g.pressed = inpututil.AppendPressedKeys(g.pressed[:0])
	down := make(map[int]bool, len(g.pressed))
	for _, k := range g.pressed {
		if code, ok := KeyCode(k); ok {
			down[code] = true
		}
	}
	for _, code := range keyCodes {
		g.canvas.SetKey(code, down[code])
	}
	g.canvas.SetMouse(ebiten.CursorPosition())
}

func (g *game) show(frame *image.RGBA) {
	b := frame.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	if g.img == nil || g.img.Bounds().Size() != b.Size() {
		g.img = ebiten.NewImage(b.Dx(), b.Dy())
		ebiten.SetWindowSize(b.Dx()*g.opts.Scale, b.Dy()*g.opts.Scale)
	}
	g.img.WritePixels(frame.Pix)
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.img != nil {
		screen.DrawImage(g.img, nil)
	}
	if g.status != "" {
		ebitenutil.DebugPrintAt(screen, g.status, 2, 2)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if g.img == nil {
		return g.opts.Width, g.opts.Height
	}
	size := g.img.Bounds().Size()
	return size.X, size.Y
}
