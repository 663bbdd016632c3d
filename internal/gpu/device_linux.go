//go:build linux

package gpu

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/interop/internal/shm"
)

type fdHandle struct {
	fd    int
	bound bool
}

func (h *fdHandle) Value() uint64 { return uint64(h.fd) }

func (h *fdHandle) Release() error {
	if h.bound || h.fd < 0 {
		return nil
	}
	err := unix.Close(h.fd)
	h.fd = -1
	return err
}

type memfdDevice struct {
	opts DeviceOptions
}

// NewDevice probes memfd and pidfd support and returns the Linux device.
func NewDevice(opts DeviceOptions) (Device, error) {
	if err := probe(); err != nil {
		return nil, err
	}
	return &memfdDevice{opts: opts.withDefaults()}, nil
}

func probe() error {
	fd, err := unix.MemfdCreate("interop-probe", unix.MFD_CLOEXEC)
	if err != nil {
		return fmt.Errorf("memfd_create: %v: %w", err, ErrUnsupported)
	}
	unix.Close(fd)

	pidfd, err := unix.PidfdOpen(os.Getpid(), 0)
	if err != nil {
		return fmt.Errorf("pidfd_open: %v: %w", err, ErrUnsupported)
	}
	defer unix.Close(pidfd)
	dup, err := unix.PidfdGetfd(pidfd, pidfd, 0)
	if err != nil {
		return fmt.Errorf("pidfd_getfd: %v: %w", err, ErrUnsupported)
	}
	unix.Close(dup)
	return nil
}

func (d *memfdDevice) Create(desc Descriptor) (*Surface, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	region, err := shm.CreateRegion("interop-surface", surfaceSize(desc))
	if err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}
	return initSurface(d, &fdHandle{fd: region.Fd(), bound: true}, region, desc), nil
}

func (d *memfdDevice) DuplicateFrom(pid int, value uint64) (Handle, error) {
	if value > uint64(^uint32(0)>>1) {
		return nil, fmt.Errorf("handle value %d out of range", value)
	}
	pidfd, err := unix.PidfdOpen(pid, 0)
	if err != nil {
		return nil, fmt.Errorf("pidfd_open %d: %w", pid, err)
	}
	defer unix.Close(pidfd)

	deadline := time.Now().Add(d.opts.DuplicateWindow)
	for {
		fd, err := unix.PidfdGetfd(pidfd, int(value), 0)
		if err == nil {
			unix.CloseOnExec(fd)
			return &fdHandle{fd: fd}, nil
		}
		// EPERM until the owner has named us as its ptracer.
		if !errors.Is(err, unix.EPERM) || time.Now().After(deadline) {
			return nil, fmt.Errorf("pidfd_getfd %d from pid %d: %w", value, pid, err)
		}
		time.Sleep(d.opts.RetryInterval)
	}
}

func (d *memfdDevice) Open(h Handle, desc Descriptor) (*Surface, error) {
	fh, ok := h.(*fdHandle)
	if !ok || fh.fd < 0 {
		return nil, fmt.Errorf("open foreign handle: %w", ErrWrongOwner)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	region, err := shm.OpenRegion(fh.fd, "interop-surface")
	if err != nil {
		fh.fd = -1
		return nil, fmt.Errorf("map surface: %w", err)
	}
	fh.bound = true
	s, err := bindSurface(d, fh, region, desc)
	if err != nil {
		region.Close()
		return nil, err
	}
	return s, nil
}
