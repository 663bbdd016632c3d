package gpu

import (
	"errors"
	"fmt"

	"github.com/1broseidon/interop/internal/role"
)

// Slot is one ring position.
type Slot struct {
	Index   int
	Surface *Surface
}

func (s *Slot) View() *View { return s.Surface.View() }

// Ring is the fixed set of shared surfaces frames travel through.
type Ring struct {
	dev   Device
	owner uint32
	slots []*Slot
}

// Allocate creates n surfaces on dev. It confirms each lock token can be taken
// and released once before returning.
func Allocate(dev Device, n int, desc Descriptor, r role.Role) (*Ring, error) {
	if n <= 0 {
		return nil, fmt.Errorf("allocate ring of %d slots", n)
	}
	ring := &Ring{dev: dev, owner: r.Owner()}
	for i := 0; i < n; i++ {
		s, err := dev.Create(desc)
		if err != nil {
			ring.Close()
			return nil, fmt.Errorf("allocate slot %d: %w", i, err)
		}
		ring.slots = append(ring.slots, &Slot{Index: i, Surface: s})
		if err := ring.Lock(ring.slots[i]); err != nil {
			ring.Close()
			return nil, fmt.Errorf("initial lock of slot %d: %w", i, err)
		}
		if err := ring.Unlock(ring.slots[i]); err != nil {
			ring.Close()
			return nil, fmt.Errorf("initial unlock of slot %d: %w", i, err)
		}
	}
	return ring, nil
}

// Establish duplicates every handle value from process pid and maps the
// surfaces locally.
func Establish(dev Device, pid int, values []uint64, desc Descriptor, r role.Role) (*Ring, error) {
	if len(values) == 0 {
		return nil, errors.New("establish ring: no handles")
	}
	ring := &Ring{dev: dev, owner: r.Owner()}
	for i, v := range values {
		h, err := dev.DuplicateFrom(pid, v)
		if err != nil {
			ring.Close()
			return nil, fmt.Errorf("duplicate slot %d: %w", i, err)
		}
		s, err := dev.Open(h, desc)
		if err != nil {
			h.Release()
			ring.Close()
			return nil, fmt.Errorf("open slot %d: %w", i, err)
		}
		ring.slots = append(ring.slots, &Slot{Index: i, Surface: s})
	}
	return ring, nil
}

func (r *Ring) Len() int { return len(r.slots) }

// Slot maps a monotonic counter to its ring position.
func (r *Ring) Slot(counter uint32) *Slot {
	return r.slots[int(counter%uint32(len(r.slots)))]
}

// Values returns the local handle values in slot order.
func (r *Ring) Values() []uint64 {
	out := make([]uint64, len(r.slots))
	for i, s := range r.slots {
		out[i] = s.Surface.Handle().Value()
	}
	return out
}

// Lock takes the slot's lock token without blocking.
func (r *Ring) Lock(s *Slot) error {
	if s.Surface.Device() != r.dev {
		return fmt.Errorf("lock slot %d: %w", s.Index, ErrWrongOwner)
	}
	if err := s.Surface.TryLock(r.owner); err != nil {
		return fmt.Errorf("lock slot %d: %w", s.Index, err)
	}
	return nil
}

func (r *Ring) Unlock(s *Slot) error {
	if s.Surface.Device() != r.dev {
		return fmt.Errorf("unlock slot %d: %w", s.Index, ErrWrongOwner)
	}
	if err := s.Surface.Unlock(r.owner); err != nil {
		return fmt.Errorf("unlock slot %d: %w", s.Index, err)
	}
	return nil
}

func (r *Ring) Close() error {
	var errs []error
	for _, s := range r.slots {
		if err := s.Surface.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.slots = nil
	return errors.Join(errs...)
}
