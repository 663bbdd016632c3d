package pipeline

import (
	"time"

	"github.com/1broseidon/interop/internal/gpu"
)

// RenderFunc draws one frame into view. The caller holds the slot's lock.
type RenderFunc func(view *gpu.View, width, height int)

// DisplayFunc shows view. The caller holds the slot's lock.
type DisplayFunc func(view *gpu.View)

// WaitingFunc draws the indicator shown before the first frame arrives.
type WaitingFunc func()

// Control is the slice of the shared control block the loops use.
type Control interface {
	ExitAnnouncer
	ProduceCount() uint32
	ConsumeCount() uint32
	IncrementProduce() uint32
	IncrementConsume() uint32
	BufferCount() int
	Width() int
	Height() int
	FrameInterval() time.Duration
	TimerRedraw() bool
	StepRequests() uint32
}

// Slots is the ring as the loops see it.
type Slots interface {
	Len() int
	Slot(counter uint32) *gpu.Slot
	Lock(s *gpu.Slot) error
	Unlock(s *gpu.Slot) error
}
