// Package present shows consumed frames: in an X11 window, as a thumbnail on
// the terminal, or only in the log.
package present

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/1broseidon/interop/internal/config"
	"github.com/1broseidon/interop/internal/gpu"
)

// WaitingText is shown until the first frame arrives.
const WaitingText = "Waiting for renderer process to start..."

// Presenter receives the consumer's display callbacks. Display and Waiting
// are called from the scheduler goroutine with the slot lock held.
type Presenter interface {
	Name() string
	Display(view *gpu.View)
	Waiting()
	Close() error
}

// Poller is implemented by presenters that need their event queue drained
// periodically.
type Poller interface {
	Poll()
}

// Handlers receives input from interactive presenters.
type Handlers struct {
	Key    func(name string)
	Expose func()
	Close  func()
}

// Options configure Select.
type Options struct {
	Kind       string
	Width      int
	Height     int
	Display    string
	XAuthority string
	Title      string
	Out        *os.File
	Handlers   Handlers
	Logger     *slog.Logger
}

// ErrNoDisplay is returned when the x11 presenter is requested without a
// display to connect to.
var ErrNoDisplay = errors.New("no X11 display available")

// Select builds the presenter named by opts.Kind. Auto tries X11 when a
// display is configured, then the terminal when Out is a TTY, then the log.
func Select(opts Options) (Presenter, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	display := opts.Display
	if display == "" {
		display = os.Getenv("DISPLAY")
	}

	switch opts.Kind {
	case config.PresenterX11:
		if display == "" {
			return nil, ErrNoDisplay
		}
		return newX11FromOptions(opts, display)
	case config.PresenterTerminal:
		return newTerminalFromOptions(opts), nil
	case config.PresenterNone:
		return NewLog(opts.Logger), nil
	case config.PresenterAuto, "":
		if display != "" {
			p, err := newX11FromOptions(opts, display)
			if err == nil {
				return p, nil
			}
			opts.Logger.Warn("X11 presenter unavailable, falling back", "display", display, "error", err)
		}
		if term.IsTerminal(int(opts.Out.Fd())) {
			return newTerminalFromOptions(opts), nil
		}
		return NewLog(opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown presenter %q", opts.Kind)
	}
}

func newX11FromOptions(opts Options, display string) (Presenter, error) {
	p, err := NewX11(X11Config{
		Display:    display,
		XAuthority: opts.XAuthority,
		Width:      opts.Width,
		Height:     opts.Height,
		Title:      opts.Title,
		Handlers:   opts.Handlers,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newTerminalFromOptions(opts Options) Presenter {
	fd := int(opts.Out.Fd())
	return NewTerminal(TerminalConfig{
		Out: opts.Out,
		Size: func() (int, int, error) {
			return term.GetSize(fd)
		},
		Logger: opts.Logger,
	})
}

// Log is the presenter of last resort: it only reports what it would show.
type Log struct {
	logger  *slog.Logger
	waited  bool
	last    time.Time
	frames  int
	summary time.Duration
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, summary: 5 * time.Second}
}

func (l *Log) Name() string { return config.PresenterNone }

func (l *Log) Waiting() {
	if l.waited {
		return
	}
	l.waited = true
	l.logger.Info(WaitingText)
}

// Display logs each frame at debug and a rate summary at info every few
// seconds.
func (l *Log) Display(view *gpu.View) {
	l.frames++
	l.logger.Debug("display frame", "sequence", view.Sequence())
	now := time.Now()
	if l.last.IsZero() {
		l.last = now
		l.logger.Info("first frame displayed", "sequence", view.Sequence())
		return
	}
	if elapsed := now.Sub(l.last); elapsed >= l.summary {
		l.logger.Info("displaying frames",
			"frames", l.frames,
			"per_second", float64(l.frames)/elapsed.Seconds(),
			"sequence", view.Sequence())
		l.frames = 0
		l.last = now
	}
}

func (l *Log) Close() error { return nil }
