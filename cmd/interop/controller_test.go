//go:build linux

package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/1broseidon/interop/internal/pipeline"
	"github.com/1broseidon/interop/internal/shm"
)

func newTestController(t *testing.T) (*controller, *bool) {
	t.Helper()
	cb, err := shm.Create(shm.Params{BufferCount: 3, Width: 64, Height: 64, FrameInterval: time.Second, Mipmap: true})
	if err != nil {
		t.Skipf("shared memory unavailable: %v", err)
	}
	t.Cleanup(func() { cb.Close() })

	quit := false
	return &controller{
		cb:        cb,
		consumer:  pipeline.NewConsumer(pipeline.ConsumerConfig{Control: cb}),
		presenter: "none",
		quit:      func() { quit = true },
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		started:   time.Now(),
	}, &quit
}

func TestControllerKeys(t *testing.T) {
	c, quit := newTestController(t)

	c.handleKey("plus")
	if got := c.cb.FrameInterval(); got != 1100*time.Millisecond {
		t.Fatalf("after plus interval = %v, want 1.1s", got)
	}
	c.handleKey("minus")
	if got := c.cb.FrameInterval(); got != time.Second {
		t.Fatalf("after minus interval = %v, want 1s", got)
	}

	c.handleKey("l")
	c.handleKey("o")
	c.handleKey("t")
	c.handleKey("F12")
	if !c.cb.Logging() || c.cb.ObjectToDraw() != 1 || !c.cb.TimerRedraw() {
		t.Fatalf("toggles not applied: logging=%v object=%d timer=%v",
			c.cb.Logging(), c.cb.ObjectToDraw(), c.cb.TimerRedraw())
	}
	if *quit {
		t.Fatalf("quit called before Escape")
	}
	c.handleKey("Escape")
	if !*quit {
		t.Fatalf("Escape did not quit")
	}
}

func TestControllerStatus(t *testing.T) {
	c, _ := newTestController(t)
	c.cb.IncrementProduce()
	c.cb.IncrementProduce()
	c.cb.IncrementConsume()
	if got := c.SetInterval(5 * time.Millisecond); got != 10*time.Millisecond {
		t.Fatalf("SetInterval() = %v, want floor of 10ms", got)
	}

	st := c.Status()
	if st.Buffers != 3 || st.Width != 64 || !st.Mipmap {
		t.Fatalf("status geometry = %+v", st)
	}
	if st.ProduceCount != 2 || st.ConsumeCount != 1 || st.InFlight != 1 {
		t.Fatalf("status counters = produce %d consume %d in_flight %d",
			st.ProduceCount, st.ConsumeCount, st.InFlight)
	}
	if st.FrameIntervalMS != 10 || st.Presenter != "none" {
		t.Fatalf("status = %+v", st)
	}
}

func TestControllerVSyncHoldAndStepKeys(t *testing.T) {
	c, _ := newTestController(t)

	if c.consumer.VSync() {
		t.Fatalf("vsync on before v")
	}
	c.handleKey("v")
	if !c.consumer.VSync() || !c.Status().VSync {
		t.Fatalf("v did not turn vsync on")
	}
	c.handleKey("v")
	if c.consumer.VSync() {
		t.Fatalf("second v did not turn vsync off")
	}

	c.handleKey("space")
	c.handleKey(" ")
	if got := c.cb.StepRequests(); got != 2 {
		t.Fatalf("StepRequests() = %d, want 2", got)
	}

	// Unregistered consumers record the request without locking anything.
	c.handleKey("H")
	if c.consumer.Holding() || c.Status().HoldingLocks {
		t.Fatalf("hold started without a scheduler")
	}
}
