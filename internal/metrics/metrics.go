// Package metrics records frame handoff activity.
package metrics

import "time"

// Collector receives pipeline events. Implementations must be safe for use
// from the pipeline goroutine while a scrape runs on another.
type Collector interface {
	// FrameRendered records a frame published by the producer
	FrameRendered(duration time.Duration)

	// RingFull records a producer tick skipped because every slot was pending
	RingFull()

	// FrameDisplayed records a frame shown by the consumer
	FrameDisplayed(duration time.Duration)

	// FramesSkipped records frames retired without being shown
	FramesSkipped(n int)

	// WaitingDrawn records a redraw with nothing produced yet
	WaitingDrawn()

	// LockFailure records a failed lock or unlock, labeled by reason
	LockFailure(op, reason string)
}

// CounterSource exposes the shared counters for gauge export.
type CounterSource interface {
	ProduceCount() uint32
	ConsumeCount() uint32
	InFlight() uint32
	FrameInterval() time.Duration
}

type noopCollector struct{}

func (noopCollector) FrameRendered(time.Duration)  {}
func (noopCollector) RingFull()                    {}
func (noopCollector) FrameDisplayed(time.Duration) {}
func (noopCollector) FramesSkipped(int)            {}
func (noopCollector) WaitingDrawn()                {}
func (noopCollector) LockFailure(string, string)   {}

// NewNoop returns a Collector that discards everything.
func NewNoop() Collector {
	return noopCollector{}
}
