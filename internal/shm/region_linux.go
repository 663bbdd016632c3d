//go:build linux

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CreateRegion creates a memfd of the given size and maps it read-write.
func CreateRegion(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("create region %q: invalid size %d", name, size)
	}
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create %q: %w", name, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate %q: %w", name, err)
	}
	return mapRegion(fd, name, size)
}

// OpenRegion maps a region from a descriptor this process owns, either one
// inherited at exec or one duplicated from another process. The region takes
// ownership of fd.
func OpenRegion(fd int, name string) (*Region, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("fstat fd %d: %w", fd, err)
	}
	if st.Size <= 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("fd %d: empty region", fd)
	}
	unix.CloseOnExec(fd)
	return mapRegion(fd, name, int(st.Size))
}

func mapRegion(fd int, name string, size int) (*Region, error) {
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %q: %w", name, err)
	}
	return &Region{fd: fd, name: name, mem: mem}, nil
}

// File wraps a duplicate of the descriptor, suitable for exec.Cmd.ExtraFiles.
// The caller closes it.
func (r *Region) File() (*os.File, error) {
	dup, err := unix.FcntlInt(uintptr(r.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("dup region fd: %w", err)
	}
	return os.NewFile(uintptr(dup), r.name), nil
}

func (r *Region) Close() error {
	if r == nil || r.mem == nil {
		return nil
	}
	var firstErr error
	if err := unix.Munmap(r.mem); err != nil {
		firstErr = fmt.Errorf("munmap %q: %w", r.name, err)
	}
	r.mem = nil
	if err := unix.Close(r.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close %q: %w", r.name, err)
	}
	r.fd = -1
	return firstErr
}
