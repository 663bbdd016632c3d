package pipeline

import (
	"errors"
	"sync"

	"github.com/1broseidon/interop/internal/role"
)

// ErrPeerExited is returned by a loop iteration that found the peer's exit
// flag set. The process should exit 0 without further work.
var ErrPeerExited = errors.New("peer requested exit")

// ExitAnnouncer is the part of the control block the termination path needs.
type ExitAnnouncer interface {
	AnnounceExit(r role.Role)
	PeerExited(self role.Role) bool
}

// Terminator runs exit hooks once, in reverse registration order, on whichever
// exit path gets there first.
type Terminator struct {
	mu    sync.Mutex
	hooks []func()
	done  bool
}

func NewTerminator() *Terminator {
	return &Terminator{}
}

// OnExit registers fn. Hooks registered after Run are ignored.
func (t *Terminator) OnExit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.hooks = append(t.hooks, fn)
}

// AnnounceOnExit registers the hook that sets self's exit flag.
func (t *Terminator) AnnounceOnExit(cb ExitAnnouncer, self role.Role) {
	t.OnExit(func() { cb.AnnounceExit(self) })
}

// Run executes the hooks. Later calls do nothing.
func (t *Terminator) Run() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

func checkPeer(cb ExitAnnouncer, self role.Role) error {
	if cb.PeerExited(self) {
		return ErrPeerExited
	}
	return nil
}
