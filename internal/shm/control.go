package shm

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/1broseidon/interop/internal/role"
)

const (
	magic   = 0x494e5450 // "INTP"
	version = 2

	// MaxBuffers bounds the handle table.
	MaxBuffers = 4
	MinBuffers = 2

	DefaultFrameInterval = 1000 * time.Millisecond
	minFrameIntervalMS   = 10
)

var ErrBadMagic = errors.New("control region has an unexpected header")

const (
	flagSRGB uint32 = 1 << iota
	flagMipmap
	flagVSync
)

// controlLayout is the shared layout. Header fields above FrameIntervalMS are
// written once by the consumer before the producer exists.
type controlLayout struct {
	Magic       uint32
	Version     uint32
	BufferCount uint32
	Width       uint32
	Height      uint32
	Flags       uint32
	ConsumerPID int32
	ProducerPID atomic.Int32

	FrameIntervalMS atomic.Uint32
	Logging         atomic.Uint32
	ObjectToDraw    atomic.Uint32
	TimerRedraw     atomic.Uint32
	StepRequests    atomic.Uint32

	ProduceCount atomic.Uint32
	ConsumeCount atomic.Uint32
	ProducerExit atomic.Uint32
	ConsumerExit atomic.Uint32

	Handles [MaxBuffers]atomic.Uint64
}

const controlSize = int(unsafe.Sizeof(controlLayout{}))

// Params are the startup parameters stored in the control block.
type Params struct {
	BufferCount   int
	Width         int
	Height        int
	FrameInterval time.Duration
	SRGB          bool
	Mipmap        bool
	VSync         bool
	Logging       bool
	ConsumerPID   int
}

// ControlBlock coordinates one producer and one consumer. Counters have a
// single writer each; the tuning knobs may be written by either side without
// ordering.
type ControlBlock struct {
	region *Region
	l      *controlLayout
}

// Create allocates the control region and writes the parameters. Only the
// consumer calls it.
func Create(p Params) (*ControlBlock, error) {
	if p.BufferCount < MinBuffers || p.BufferCount > MaxBuffers {
		return nil, fmt.Errorf("buffer count %d outside [%d,%d]", p.BufferCount, MinBuffers, MaxBuffers)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid surface size %dx%d", p.Width, p.Height)
	}
	region, err := CreateRegion("interop-control", controlSize)
	if err != nil {
		return nil, fmt.Errorf("create control region: %w", err)
	}
	cb := &ControlBlock{region: region, l: layoutOf(region.Bytes())}
	l := cb.l
	l.Magic = magic
	l.Version = version
	l.BufferCount = uint32(p.BufferCount)
	l.Width = uint32(p.Width)
	l.Height = uint32(p.Height)
	if p.SRGB {
		l.Flags |= flagSRGB
	}
	if p.Mipmap {
		l.Flags |= flagMipmap
	}
	if p.VSync {
		l.Flags |= flagVSync
	}
	l.ConsumerPID = int32(p.ConsumerPID)
	interval := p.FrameInterval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	cb.SetFrameInterval(interval)
	cb.SetLogging(p.Logging)
	return cb, nil
}

// Attach maps an inherited control region descriptor. Only the producer calls it.
func Attach(fd int) (*ControlBlock, error) {
	region, err := OpenRegion(fd, "interop-control")
	if err != nil {
		return nil, fmt.Errorf("attach control region: %w", err)
	}
	if region.Size() < controlSize {
		region.Close()
		return nil, fmt.Errorf("control region is %d bytes, want %d: %w", region.Size(), controlSize, ErrBadMagic)
	}
	l := layoutOf(region.Bytes())
	// Copy the header out first; Close unmaps l.
	gotMagic, gotVersion, gotBuffers := l.Magic, l.Version, l.BufferCount
	if gotMagic != magic || gotVersion != version {
		region.Close()
		return nil, fmt.Errorf("magic %#x version %d: %w", gotMagic, gotVersion, ErrBadMagic)
	}
	if gotBuffers < MinBuffers || gotBuffers > MaxBuffers {
		region.Close()
		return nil, fmt.Errorf("buffer count %d: %w", gotBuffers, ErrBadMagic)
	}
	return &ControlBlock{region: region, l: l}, nil
}

func layoutOf(mem []byte) *controlLayout {
	return (*controlLayout)(unsafe.Pointer(&mem[0]))
}

// File returns a descriptor for the child's ExtraFiles.
func (c *ControlBlock) File() (*os.File, error) {
	return c.region.File()
}

func (c *ControlBlock) Close() error {
	if c == nil || c.region == nil {
		return nil
	}
	c.l = nil
	err := c.region.Close()
	c.region = nil
	return err
}

// Params reads back the startup parameters.
func (c *ControlBlock) Params() Params {
	return Params{
		BufferCount:   c.BufferCount(),
		Width:         c.Width(),
		Height:        c.Height(),
		FrameInterval: c.FrameInterval(),
		SRGB:          c.SRGB(),
		Mipmap:        c.Mipmap(),
		VSync:         c.VSync(),
		Logging:       c.Logging(),
		ConsumerPID:   c.ConsumerPID(),
	}
}

func (c *ControlBlock) BufferCount() int { return int(c.l.BufferCount) }
func (c *ControlBlock) Width() int       { return int(c.l.Width) }
func (c *ControlBlock) Height() int      { return int(c.l.Height) }
func (c *ControlBlock) SRGB() bool       { return c.l.Flags&flagSRGB != 0 }
func (c *ControlBlock) Mipmap() bool     { return c.l.Flags&flagMipmap != 0 }
func (c *ControlBlock) VSync() bool      { return c.l.Flags&flagVSync != 0 }
func (c *ControlBlock) ConsumerPID() int { return int(c.l.ConsumerPID) }

func (c *ControlBlock) ProducerPID() int       { return int(c.l.ProducerPID.Load()) }
func (c *ControlBlock) SetProducerPID(pid int) { c.l.ProducerPID.Store(int32(pid)) }

// ProduceCount is the number of frames completed, modulo 2^32.
func (c *ControlBlock) ProduceCount() uint32 { return c.l.ProduceCount.Load() }

// ConsumeCount is the number of frames retired by the consumer, modulo 2^32.
func (c *ControlBlock) ConsumeCount() uint32 { return c.l.ConsumeCount.Load() }

// IncrementProduce publishes one finished frame and returns the new count.
func (c *ControlBlock) IncrementProduce() uint32 { return c.l.ProduceCount.Add(1) }

// IncrementConsume retires one frame and returns the new count.
func (c *ControlBlock) IncrementConsume() uint32 { return c.l.ConsumeCount.Add(1) }

// InFlight is produce-consume with wraparound. It stays within [0, BufferCount].
func (c *ControlBlock) InFlight() uint32 {
	consumed := c.l.ConsumeCount.Load()
	produced := c.l.ProduceCount.Load()
	return produced - consumed
}

// AnnounceExit sets the flag that tells the peer r is going away.
func (c *ControlBlock) AnnounceExit(r role.Role) {
	c.exitFlag(r).Store(1)
}

// ExitRequested reports whether r announced its exit.
func (c *ControlBlock) ExitRequested(r role.Role) bool {
	return c.exitFlag(r).Load() != 0
}

// PeerExited reports whether the role opposite self announced its exit.
func (c *ControlBlock) PeerExited(self role.Role) bool {
	return c.ExitRequested(self.Opposite())
}

func (c *ControlBlock) exitFlag(r role.Role) *atomic.Uint32 {
	if r == role.Producer {
		return &c.l.ProducerExit
	}
	return &c.l.ConsumerExit
}

// SetHandle records the consumer-local handle of slot i.
func (c *ControlBlock) SetHandle(i int, h uint64) {
	c.l.Handles[i].Store(h)
}

func (c *ControlBlock) Handle(i int) uint64 {
	return c.l.Handles[i].Load()
}

// Handles returns the first BufferCount handle values.
func (c *ControlBlock) Handles() []uint64 {
	out := make([]uint64, c.BufferCount())
	for i := range out {
		out[i] = c.Handle(i)
	}
	return out
}

func (c *ControlBlock) FrameInterval() time.Duration {
	return time.Duration(c.l.FrameIntervalMS.Load()) * time.Millisecond
}

// SetFrameInterval stores d rounded to milliseconds, never below 10ms.
func (c *ControlBlock) SetFrameInterval(d time.Duration) {
	ms := d.Milliseconds()
	if ms < minFrameIntervalMS {
		ms = minFrameIntervalMS
	}
	c.l.FrameIntervalMS.Store(uint32(ms))
}

// AdjustFrameInterval steps the interval by 10ms up to 100ms and by 100ms
// above it. The read-modify-write is not atomic; concurrent adjustments from
// both processes may lose one step.
func (c *ControlBlock) AdjustFrameInterval(slower bool) time.Duration {
	ms := int64(c.l.FrameIntervalMS.Load())
	if slower {
		if ms < 100 {
			ms += 10
		} else {
			ms += 100
		}
	} else {
		if ms <= 100 {
			ms = max(minFrameIntervalMS, ms-10)
		} else {
			ms -= 100
		}
	}
	c.l.FrameIntervalMS.Store(uint32(ms))
	return time.Duration(ms) * time.Millisecond
}

func (c *ControlBlock) Logging() bool { return c.l.Logging.Load() != 0 }

func (c *ControlBlock) SetLogging(on bool) {
	var v uint32
	if on {
		v = 1
	}
	c.l.Logging.Store(v)
}

// ToggleLogging flips the shared logging flag and returns the new value.
func (c *ControlBlock) ToggleLogging() bool {
	return toggle(&c.l.Logging)
}

func (c *ControlBlock) ObjectToDraw() uint32 { return c.l.ObjectToDraw.Load() }

// CycleObject selects the next scene object.
func (c *ControlBlock) CycleObject() uint32 { return c.l.ObjectToDraw.Add(1) }

func (c *ControlBlock) TimerRedraw() bool { return c.l.TimerRedraw.Load() != 0 }

// ToggleTimerRedraw flips the producer preview flag and returns the new value.
func (c *ControlBlock) ToggleTimerRedraw() bool {
	return toggle(&c.l.TimerRedraw)
}

// StepRequests counts single-frame requests; the producer renders one frame
// each time it sees the value change.
func (c *ControlBlock) StepRequests() uint32 { return c.l.StepRequests.Load() }

func (c *ControlBlock) RequestStep() uint32 { return c.l.StepRequests.Add(1) }

func toggle(v *atomic.Uint32) bool {
	for {
		old := v.Load()
		next := old ^ 1
		if v.CompareAndSwap(old, next) {
			return next != 0
		}
	}
}
