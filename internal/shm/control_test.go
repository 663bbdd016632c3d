//go:build linux

package shm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/1broseidon/interop/internal/role"
)

func newControl(t *testing.T, buffers int) *ControlBlock {
	t.Helper()
	cb, err := Create(Params{BufferCount: buffers, Width: 64, Height: 32, Mipmap: true, ConsumerPID: 42})
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EPERM) {
		t.Skipf("memfd unavailable: %v", err)
	}
	require.NoError(t, err)
	t.Cleanup(func() { cb.Close() })
	return cb
}

// attachCopy maps the same region through a second descriptor, the way the
// producer sees it after exec.
func attachCopy(t *testing.T, cb *ControlBlock) *ControlBlock {
	t.Helper()
	fd, err := unix.Dup(cb.region.Fd())
	require.NoError(t, err)
	other, err := Attach(fd)
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })
	return other
}

func TestCreateRejectsBadParams(t *testing.T) {
	_, err := Create(Params{BufferCount: 5, Width: 10, Height: 10})
	assert.Error(t, err)
	_, err = Create(Params{BufferCount: 2, Width: 0, Height: 10})
	assert.Error(t, err)
}

func TestAttachSeesHeaderAndCounters(t *testing.T) {
	cb := newControl(t, 3)
	cb.SetHandle(0, 11)
	cb.SetHandle(1, 12)
	cb.SetHandle(2, 13)

	peer := attachCopy(t, cb)
	p := peer.Params()
	assert.Equal(t, 3, p.BufferCount)
	assert.Equal(t, 64, p.Width)
	assert.Equal(t, 32, p.Height)
	assert.True(t, p.Mipmap)
	assert.False(t, p.SRGB)
	assert.Equal(t, 42, p.ConsumerPID)
	assert.Equal(t, DefaultFrameInterval, p.FrameInterval)
	assert.Equal(t, []uint64{11, 12, 13}, peer.Handles())

	assert.Equal(t, uint32(1), peer.IncrementProduce())
	assert.Equal(t, uint32(1), cb.ProduceCount())
	assert.Equal(t, uint32(1), cb.InFlight())
	assert.Equal(t, uint32(1), cb.IncrementConsume())
	assert.Equal(t, uint32(0), peer.InFlight())
}

func TestAttachRejectsForeignRegion(t *testing.T) {
	region, err := CreateRegion("not-control", controlSize)
	if err != nil {
		t.Skipf("memfd unavailable: %v", err)
	}
	defer region.Close()
	fd, err := unix.Dup(region.Fd())
	require.NoError(t, err)
	_, err = Attach(fd)
	require.ErrorIs(t, err, ErrBadMagic)
	assert.Contains(t, err.Error(), "magic 0x0 version 0")
}

func TestAttachRejectsBadBufferCount(t *testing.T) {
	region, err := CreateRegion("bad-count", controlSize)
	if err != nil {
		t.Skipf("memfd unavailable: %v", err)
	}
	defer region.Close()
	l := layoutOf(region.Bytes())
	l.Magic = magic
	l.Version = version
	l.BufferCount = MaxBuffers + 1

	fd, err := unix.Dup(region.Fd())
	require.NoError(t, err)
	_, err = Attach(fd)
	require.ErrorIs(t, err, ErrBadMagic)
	assert.Contains(t, err.Error(), "buffer count 5")
}

func TestInFlightAcrossWraparound(t *testing.T) {
	cb := newControl(t, 4)
	cb.l.ProduceCount.Store(^uint32(0) - 1)
	cb.l.ConsumeCount.Store(^uint32(0) - 1)
	cb.IncrementProduce()
	cb.IncrementProduce()
	cb.IncrementProduce()
	assert.Equal(t, uint32(1), cb.ProduceCount())
	assert.Equal(t, uint32(3), cb.InFlight())
}

func TestExitFlagsAreOwnedPerRole(t *testing.T) {
	cb := newControl(t, 2)
	peer := attachCopy(t, cb)

	assert.False(t, peer.PeerExited(role.Producer))
	cb.AnnounceExit(role.Consumer)
	assert.True(t, peer.PeerExited(role.Producer))
	assert.True(t, peer.ExitRequested(role.Consumer))
	assert.False(t, cb.PeerExited(role.Consumer))

	peer.AnnounceExit(role.Producer)
	assert.True(t, cb.PeerExited(role.Consumer))
}

func TestAdjustFrameIntervalSteps(t *testing.T) {
	cb := newControl(t, 2)

	cb.SetFrameInterval(1000 * time.Millisecond)
	assert.Equal(t, 1100*time.Millisecond, cb.AdjustFrameInterval(true))
	assert.Equal(t, 1000*time.Millisecond, cb.AdjustFrameInterval(false))

	cb.SetFrameInterval(100 * time.Millisecond)
	assert.Equal(t, 90*time.Millisecond, cb.AdjustFrameInterval(false))
	assert.Equal(t, 100*time.Millisecond, cb.AdjustFrameInterval(true))
	assert.Equal(t, 200*time.Millisecond, cb.AdjustFrameInterval(true))

	cb.SetFrameInterval(20 * time.Millisecond)
	cb.AdjustFrameInterval(false)
	assert.Equal(t, 10*time.Millisecond, cb.AdjustFrameInterval(false))

	cb.SetFrameInterval(time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, cb.FrameInterval())
}

func TestTuningKnobsAreShared(t *testing.T) {
	cb := newControl(t, 2)
	peer := attachCopy(t, cb)

	assert.True(t, cb.ToggleLogging())
	assert.True(t, peer.Logging())
	assert.False(t, peer.ToggleLogging())
	assert.False(t, cb.Logging())

	assert.Equal(t, uint32(1), peer.CycleObject())
	assert.Equal(t, uint32(1), cb.ObjectToDraw())

	assert.True(t, cb.ToggleTimerRedraw())
	assert.True(t, peer.TimerRedraw())

	assert.Equal(t, uint32(0), peer.StepRequests())
	assert.Equal(t, uint32(1), cb.RequestStep())
	assert.Equal(t, uint32(2), cb.RequestStep())
	assert.Equal(t, uint32(2), peer.StepRequests())

	peer.SetProducerPID(777)
	assert.Equal(t, 777, cb.ProducerPID())
}
