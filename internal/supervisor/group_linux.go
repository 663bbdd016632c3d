//go:build linux

package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Start launches cmd in a new process group. The child gets SIGKILL when the
// parent dies.
func Start(cmd *exec.Cmd) (*Group, error) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("getpgid %d: %w", cmd.Process.Pid, err)
	}
	g := &Group{cmd: cmd, pgid: pgid, exited: make(chan struct{})}
	go g.watch()
	return g, nil
}

// Kill sends SIGKILL to every process in the group.
func (g *Group) Kill() error {
	if g.pgid <= 1 || g.pgid == unix.Getpgrp() {
		return fmt.Errorf("refusing to kill process group %d", g.pgid)
	}
	if err := unix.Kill(-g.pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", g.pgid, err)
	}
	return nil
}

// AllowPeerAccess lets pid duplicate descriptors out of this process when
// Yama restricts ptrace to descendants. Kernels without Yama report EINVAL,
// which means no restriction applies.
func AllowPeerAccess(pid int) error {
	err := unix.Prctl(unix.PR_SET_PTRACER, uintptr(pid), 0, 0, 0)
	if err != nil && !errors.Is(err, unix.EINVAL) {
		return fmt.Errorf("prctl(PR_SET_PTRACER, %d): %w", pid, err)
	}
	return nil
}

// DieWithParent arranges SIGKILL for this process when its parent exits and
// fails if the parent is already gone.
func DieWithParent(parent int) error {
	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGKILL), 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_PDEATHSIG): %w", err)
	}
	if ppid := os.Getppid(); ppid != parent {
		return fmt.Errorf("parent is %d, want %d: %w", ppid, parent, ErrOrphaned)
	}
	return nil
}
