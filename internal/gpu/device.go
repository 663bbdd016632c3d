package gpu

import "time"

// Handle is a process-local reference to a shareable surface. Its value is
// meaningful only inside the process that holds it; other processes must
// duplicate it through their Device.
type Handle interface {
	Value() uint64
	// Release drops the local reference unless a Surface has taken it over.
	Release() error
}

// Device creates shareable surfaces and imports ones owned by other processes.
type Device interface {
	Create(desc Descriptor) (*Surface, error)
	// DuplicateFrom turns a handle value that is valid in process pid into a
	// handle valid in the calling process.
	DuplicateFrom(pid int, value uint64) (Handle, error)
	// Open maps a duplicated handle. The surface takes ownership of h.
	Open(h Handle, desc Descriptor) (*Surface, error)
}

// DeviceOptions tune handle duplication.
type DeviceOptions struct {
	// DuplicateWindow bounds how long DuplicateFrom retries while the owning
	// process has not yet granted access.
	DuplicateWindow time.Duration
	RetryInterval   time.Duration
}

func (o DeviceOptions) withDefaults() DeviceOptions {
	if o.DuplicateWindow <= 0 {
		o.DuplicateWindow = 2 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 10 * time.Millisecond
	}
	return o
}
