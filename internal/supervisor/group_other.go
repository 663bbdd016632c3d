//go:build !linux

package supervisor

import "os/exec"

func Start(cmd *exec.Cmd) (*Group, error) {
	return nil, ErrUnsupported
}

func (g *Group) Kill() error {
	return ErrUnsupported
}

func AllowPeerAccess(pid int) error {
	return ErrUnsupported
}

func DieWithParent(parent int) error {
	return ErrUnsupported
}
