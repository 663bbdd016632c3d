package present

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/1broseidon/interop/internal/config"
	"github.com/1broseidon/interop/internal/gpu"
)

const (
	// DefaultTerminalInterval throttles thumbnail repaints.
	DefaultTerminalInterval = 200 * time.Millisecond
	maxThumbnailColumns     = 64
)

// TerminalConfig configures a terminal presenter. Size reports the terminal
// as (columns, rows).
type TerminalConfig struct {
	Out      io.Writer
	Size     func() (int, int, error)
	Interval time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

// Terminal draws a truecolor half-block thumbnail of each frame.
type Terminal struct {
	out      io.Writer
	size     func() (int, int, error)
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	last    time.Time
	waited  bool
	cleared bool
}

func NewTerminal(cfg TerminalConfig) *Terminal {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTerminalInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Size == nil {
		cfg.Size = func() (int, int, error) { return 80, 24, nil }
	}
	return &Terminal{
		out:      cfg.Out,
		size:     cfg.Size,
		interval: cfg.Interval,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
}

func (t *Terminal) Name() string { return config.PresenterTerminal }

func (t *Terminal) Waiting() {
	if t.waited {
		return
	}
	t.waited = true
	fmt.Fprintln(t.out, WaitingText)
}

// Display repaints the thumbnail unless the previous repaint was less than
// the throttle interval ago.
func (t *Terminal) Display(view *gpu.View) {
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return
	}
	t.last = now

	cols, rows, err := t.size()
	if err != nil {
		t.logger.Debug("terminal size unavailable", "error", err)
		cols, rows = 80, 24
	}
	w, h := thumbnailSize(view.Image().Bounds(), cols, rows)
	if w == 0 || h == 0 {
		return
	}
	src := pickLevel(view, w, h)

	bw := bufio.NewWriter(t.out)
	if !t.cleared {
		bw.WriteString("\x1b[2J")
		t.cleared = true
	}
	bw.WriteString("\x1b[H")
	writeHalfBlocks(bw, src, w, h)
	fmt.Fprintf(bw, "frame %d\x1b[K\n", view.Sequence())
	if err := bw.Flush(); err != nil {
		t.logger.Debug("terminal write failed", "error", err)
	}
}

func (t *Terminal) Close() error {
	if t.cleared {
		_, err := io.WriteString(t.out, "\x1b[0m\n")
		return err
	}
	return nil
}

// thumbnailSize fits the image into the terminal in pixels, where each
// character cell holds two vertically stacked pixels. One row is kept for
// the status line.
func thumbnailSize(b image.Rectangle, cols, rows int) (int, int) {
	iw, ih := b.Dx(), b.Dy()
	if iw <= 0 || ih <= 0 || cols <= 0 || rows <= 1 {
		return 0, 0
	}
	maxW := min(cols, maxThumbnailColumns)
	maxH := (rows - 1) * 2
	w := maxW
	h := ih * w / iw
	if h > maxH {
		h = maxH
		w = iw * h / ih
	}
	h &^= 1
	return max(w, 1), max(h, 2)
}

// pickLevel returns the smallest mip level that still covers w x h.
func pickLevel(view *gpu.View, w, h int) *image.RGBA {
	best := view.Image()
	for l := 1; l < view.Levels(); l++ {
		img := view.Level(l)
		b := img.Bounds()
		if b.Dx() < w || b.Dy() < h {
			break
		}
		best = img
	}
	return best
}

func writeHalfBlocks(w *bufio.Writer, src *image.RGBA, tw, th int) {
	b := src.Bounds()
	sample := func(x, y int) (uint8, uint8, uint8) {
		sx := b.Min.X + x*b.Dx()/tw
		sy := b.Min.Y + y*b.Dy()/th
		i := src.PixOffset(sx, sy)
		return src.Pix[i], src.Pix[i+1], src.Pix[i+2]
	}
	for y := 0; y < th; y += 2 {
		for x := 0; x < tw; x++ {
			fr, fg, fb := sample(x, y)
			br, bg, bb := sample(x, y+1)
			fmt.Fprintf(w, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀", fr, fg, fb, br, bg, bb)
		}
		w.WriteString("\x1b[0m\n")
	}
}
