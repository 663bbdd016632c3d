package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/interop/internal/role"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerImmediateTaskRunsFirst(t *testing.T) {
	s := NewScheduler(discardLogger())
	stop := errors.New("stop")
	var order []string
	s.Every("late", func() time.Duration { return time.Hour }, func() error {
		order = append(order, "late")
		return nil
	}, false)
	s.Every("now", func() time.Duration { return time.Hour }, func() error {
		order = append(order, "now")
		return stop
	}, true)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"now"}, order)
}

func TestSchedulerRereadsInterval(t *testing.T) {
	s := NewScheduler(discardLogger())
	var interval atomic.Int64
	interval.Store(int64(time.Hour))
	runs := 0
	stop := errors.New("stop")
	s.Every("tick", func() time.Duration { return time.Duration(interval.Load()) }, func() error {
		runs++
		if runs == 1 {
			interval.Store(int64(time.Millisecond))
		}
		if runs == 3 {
			return stop
		}
		return nil
	}, true)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, stop)
	case <-time.After(2 * time.Second):
		t.Fatal("interval change did not take effect")
	}
}

func TestSchedulerTriggerCoalescesRequests(t *testing.T) {
	s := NewScheduler(discardLogger())
	var runs atomic.Int32
	trig := s.OnDemand("redraw", 0, func() error {
		runs.Add(1)
		return nil
	})
	trig.Request()
	trig.Request()
	trig.Request()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, int32(1), runs.Load())
}

func TestSchedulerTriggerFromAnotherGoroutine(t *testing.T) {
	s := NewScheduler(discardLogger())
	ran := make(chan struct{})
	stop := errors.New("stop")
	trig := s.OnDemand("redraw", 0, func() error {
		close(ran)
		return stop
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	trig.Request()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, stop)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not wake the scheduler")
	}
	<-ran
}

func TestSchedulerTriggerMinGap(t *testing.T) {
	s := NewScheduler(discardLogger())
	var stamps []time.Time
	var trig *Trigger
	stop := errors.New("stop")
	trig = s.OnDemand("vsync", 20*time.Millisecond, func() error {
		stamps = append(stamps, time.Now())
		if len(stamps) == 3 {
			return stop
		}
		trig.Request()
		return nil
	})
	trig.Request()

	assert.ErrorIs(t, s.Run(context.Background()), stop)
	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 19*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 19*time.Millisecond)
}

func TestSchedulerTriggerMinGapChangesAtRuntime(t *testing.T) {
	s := NewScheduler(discardLogger())
	stop := errors.New("stop")
	first := make(chan struct{})
	runs := 0
	trig := s.OnDemand("vsync", time.Hour, func() error {
		runs++
		if runs == 1 {
			close(first)
			return nil
		}
		return stop
	})
	trig.Request()

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	<-first
	trig.Request()
	time.Sleep(20 * time.Millisecond)
	trig.SetMinGap(0)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, stop)
	case <-time.After(2 * time.Second):
		t.Fatal("lowering the gap did not release the pending request")
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	s := NewScheduler(discardLogger())
	s.Every("idle", func() time.Duration { return time.Millisecond }, func() error { return nil }, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}

type flagPair struct {
	announced []role.Role
}

func (f *flagPair) AnnounceExit(r role.Role) { f.announced = append(f.announced, r) }
func (f *flagPair) PeerExited(role.Role) bool { return false }

func TestTerminatorRunsHooksOnceInReverse(t *testing.T) {
	term := NewTerminator()
	var order []int
	term.OnExit(func() { order = append(order, 1) })
	term.OnExit(func() { order = append(order, 2) })

	flags := &flagPair{}
	term.AnnounceOnExit(flags, role.Producer)

	term.Run()
	term.Run()
	term.OnExit(func() { order = append(order, 3) })
	term.Run()

	assert.Equal(t, []int{2, 1}, order)
	assert.Equal(t, []role.Role{role.Producer}, flags.announced)
}
