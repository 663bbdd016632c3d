//go:build linux

package pipeline

import (
	"errors"
	"image/color"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/1broseidon/interop/internal/gpu"
	"github.com/1broseidon/interop/internal/role"
)

type fakeControl struct {
	buffers      int
	produced     atomic.Uint32
	consumed     atomic.Uint32
	producerExit atomic.Bool
	consumerExit atomic.Bool
	timerRedraw  atomic.Bool
	intervalMS   atomic.Int64
	steps        atomic.Uint32
}

func newFakeControl(buffers int) *fakeControl {
	c := &fakeControl{buffers: buffers}
	c.intervalMS.Store(5)
	return c
}

func (c *fakeControl) AnnounceExit(r role.Role) {
	if r == role.Producer {
		c.producerExit.Store(true)
	} else {
		c.consumerExit.Store(true)
	}
}

func (c *fakeControl) PeerExited(self role.Role) bool {
	if self == role.Producer {
		return c.consumerExit.Load()
	}
	return c.producerExit.Load()
}

func (c *fakeControl) ProduceCount() uint32      { return c.produced.Load() }
func (c *fakeControl) ConsumeCount() uint32      { return c.consumed.Load() }
func (c *fakeControl) IncrementProduce() uint32  { return c.produced.Add(1) }
func (c *fakeControl) IncrementConsume() uint32  { return c.consumed.Add(1) }
func (c *fakeControl) BufferCount() int          { return c.buffers }
func (c *fakeControl) Width() int                { return 8 }
func (c *fakeControl) Height() int               { return 8 }
func (c *fakeControl) TimerRedraw() bool         { return c.timerRedraw.Load() }
func (c *fakeControl) StepRequests() uint32      { return c.steps.Load() }
func (c *fakeControl) FrameInterval() time.Duration {
	return time.Duration(c.intervalMS.Load()) * time.Millisecond
}

func (c *fakeControl) inFlight() uint32 { return c.produced.Load() - c.consumed.Load() }

// rings returns the consumer's ring and the producer's view of the same
// surfaces, duplicated through pidfd as a separate process would.
func rings(t *testing.T, n int, mipmap bool) (*gpu.Ring, *gpu.Ring) {
	t.Helper()
	consumerDev, err := gpu.NewDevice(gpu.DeviceOptions{})
	if errors.Is(err, gpu.ErrUnsupported) {
		t.Skipf("device unavailable: %v", err)
	}
	require.NoError(t, err)
	producerDev, err := gpu.NewDevice(gpu.DeviceOptions{})
	require.NoError(t, err)

	desc := gpu.Descriptor{Width: 8, Height: 8, Format: gpu.RGBA8, Mipmap: mipmap}
	consumer, err := gpu.Allocate(consumerDev, n, desc, role.Consumer)
	require.NoError(t, err)
	t.Cleanup(func() { consumer.Close() })

	producer, err := gpu.Establish(producerDev, os.Getpid(), consumer.Values(), desc, role.Producer)
	require.NoError(t, err)
	t.Cleanup(func() { producer.Close() })
	return consumer, producer
}

// fill paints the whole level-0 image with a shade derived from the frame
// number so the consumer can tell frames apart.
func fill(view *gpu.View, w, h int) {
	img := view.Image()
	shade := uint8(view.Sequence() + 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
}

type displayLog struct {
	sequences []uint32
	waits     int
}

func (d *displayLog) display(view *gpu.View) {
	d.sequences = append(d.sequences, view.Sequence())
}

func (d *displayLog) waiting() { d.waits++ }
