package present

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/interop/internal/config"
	"github.com/1broseidon/interop/internal/gpu"
	"github.com/1broseidon/interop/internal/x11"
)

const waitingBackground = 0x202020

type X11Config struct {
	Display    string
	XAuthority string
	Width      int
	Height     int
	Title      string
	Handlers   Handlers
	Logger     *slog.Logger
}

// X11 paints frames into a window through an X pixmap.
type X11 struct {
	conn     *x11.Connection
	win      *xwindow.Window
	img      *xgraphics.Image
	title    string
	handlers Handlers
	logger   *slog.Logger
	waiting  bool
}

// NewX11 opens the display and maps a window of the frame size centered on
// the active monitor.
func NewX11(cfg X11Config) (*X11, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid window size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Title == "" {
		cfg.Title = "interop"
	}

	conn, err := x11.NewConnection(cfg.Display, cfg.XAuthority)
	if err != nil {
		return nil, fmt.Errorf("connect to X display %q: %w", cfg.Display, err)
	}

	x, y := 0, 0
	if mon, err := conn.ActiveMonitor(); err == nil {
		x, y = mon.Center(cfg.Width, cfg.Height)
	} else {
		cfg.Logger.Debug("monitor lookup failed", "error", err)
	}

	win, err := xwindow.Generate(conn.XUtil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("generate window id: %w", err)
	}
	err = win.CreateChecked(conn.Root, x, y, cfg.Width, cfg.Height,
		xproto.CwBackPixel|xproto.CwEventMask,
		waitingBackground,
		xproto.EventMaskKeyPress|xproto.EventMaskExposure|xproto.EventMaskStructureNotify)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create window: %w", err)
	}
	if err := conn.WatchClose(win.Id); err != nil {
		cfg.Logger.Debug("WM_DELETE_WINDOW unavailable", "error", err)
	}

	img := xgraphics.New(conn.XUtil, image.Rect(0, 0, cfg.Width, cfg.Height))
	if err := img.XSurfaceSet(win.Id); err != nil {
		win.Destroy()
		conn.Close()
		return nil, fmt.Errorf("create window pixmap: %w", err)
	}

	p := &X11{
		conn:     conn,
		win:      win,
		img:      img,
		title:    cfg.Title,
		handlers: cfg.Handlers,
		logger:   cfg.Logger,
	}
	p.setTitle(cfg.Title)
	win.Map()
	return p, nil
}

func (p *X11) Name() string { return config.PresenterX11 }

// Waiting titles the window with the waiting text and leaves the background.
func (p *X11) Waiting() {
	if !p.waiting {
		p.waiting = true
		p.setTitle(p.title + ": " + WaitingText)
		p.logger.Info(WaitingText)
	}
	p.win.Clear(0, 0, 0, 0)
	p.Poll()
}

// Display copies the base level into the window pixmap. The X image is
// BGRA so the copy swaps channels row by row.
func (p *X11) Display(view *gpu.View) {
	if p.waiting {
		p.waiting = false
		p.setTitle(p.title)
	}
	copyBGRA(p.img, view.Image())
	p.img.XDraw()
	p.img.XPaint(p.win.Id)
	p.Poll()
}

// Poll drains pending window events.
func (p *X11) Poll() {
	p.conn.DrainEvents(x11.Events{
		Key:    p.handlers.Key,
		Expose: p.handlers.Expose,
		Close:  p.handlers.Close,
	})
}

func (p *X11) Close() error {
	p.img.Destroy()
	p.win.Destroy()
	p.conn.Close()
	return nil
}

func (p *X11) setTitle(title string) {
	if err := ewmh.WmNameSet(p.conn.XUtil, p.win.Id, title); err != nil {
		p.logger.Debug("set window title failed", "error", err)
	}
}

func copyBGRA(dst *xgraphics.Image, src *image.RGBA) {
	b := dst.Rect.Intersect(src.Bounds())
	w := b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		s := src.Pix[src.PixOffset(b.Min.X, y):]
		d := dst.Pix[(y-dst.Rect.Min.Y)*dst.Stride+(b.Min.X-dst.Rect.Min.X)*4:]
		swapRB(d[:w*4], s[:w*4])
	}
}

// swapRB converts RGBA pixels to BGRA with opaque alpha.
func swapRB(dst, src []uint8) {
	for i := 0; i+3 < len(src) && i+3 < len(dst); i += 4 {
		dst[i] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i]
		dst[i+3] = 0xff
	}
}
