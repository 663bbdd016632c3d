// Package supervisor spawns the producer, hands it the shared resources and
// ties the lifetimes of both processes together.
package supervisor

import (
	"errors"
	"os/exec"
	"sync"
	"time"
)

var (
	ErrUnsupported = errors.New("process supervision is not supported on this platform")
	// ErrOrphaned means the spawning process was gone before the peer attached.
	ErrOrphaned = errors.New("spawning process already exited")
)

// Group is a child process placed in its own process group so that one kill
// reaches it and anything it started.
type Group struct {
	cmd    *exec.Cmd
	pgid   int
	exited chan struct{}

	mu      sync.Mutex
	waitErr error
}

func (g *Group) Pid() int { return g.cmd.Process.Pid }

// Exited is closed once the child has terminated and been reaped.
func (g *Group) Exited() <-chan struct{} { return g.exited }

// Err returns the child's wait error after Exited is closed.
func (g *Group) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waitErr
}

// Wait blocks until the child exits or timeout passes.
func (g *Group) Wait(timeout time.Duration) bool {
	select {
	case <-g.exited:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (g *Group) watch() {
	err := g.cmd.Wait()
	g.mu.Lock()
	g.waitErr = err
	g.mu.Unlock()
	close(g.exited)
}
