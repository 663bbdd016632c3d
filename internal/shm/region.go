// Package shm maps anonymous shared memory regions and lays the control block
// out on top of one of them.
package shm

import "errors"

var ErrUnsupported = errors.New("shared memory regions are not supported on this platform")

// Region is a mapped anonymous shared memory object. The descriptor can be
// inherited by a child or duplicated into another process; the kernel frees
// the memory once every descriptor and mapping is gone.
type Region struct {
	fd   int
	name string
	mem  []byte
}

func (r *Region) Fd() int { return r.fd }

func (r *Region) Name() string { return r.name }

func (r *Region) Size() int { return len(r.mem) }

// Bytes returns the mapping. It stays valid until Close.
func (r *Region) Bytes() []byte { return r.mem }
