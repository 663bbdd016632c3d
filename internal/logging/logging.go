// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/1broseidon/interop/internal/role"
)

// Level is a slog.Leveler that reports Debug while its source says verbose
// logging is on and Info otherwise. The source can be swapped at runtime, so
// the level can start from a flag and later follow the shared control block.
type Level struct {
	verbose atomic.Pointer[func() bool]
}

func NewLevel(verbose bool) *Level {
	l := &Level{}
	l.Set(verbose)
	return l
}

// Set pins the level to a fixed value.
func (l *Level) Set(verbose bool) {
	l.Follow(func() bool { return verbose })
}

// Follow makes the level track fn. fn must be cheap and safe to call from any
// goroutine.
func (l *Level) Follow(fn func() bool) {
	l.verbose.Store(&fn)
}

func (l *Level) Level() slog.Level {
	if fn := l.verbose.Load(); fn != nil && (*fn)() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// New returns a text logger tagged with the role and pid.
func New(w io.Writer, r role.Role, level slog.Leveler) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("role", r.String(), "pid", os.Getpid())
}
