// Package pipeline drives the producer and consumer loops on a single
// goroutine per process.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

type periodic struct {
	name      string
	interval  func() time.Duration
	fn        func() error
	next      time.Time
	immediate bool
}

// Trigger is an on-demand task. Requests coalesce until the task runs.
type Trigger struct {
	name    string
	fn      func() error
	minGap  atomic.Int64
	pending atomic.Bool
	lastRun time.Time
	wake    chan<- struct{}
}

// Request marks the trigger pending. Safe from any goroutine.
func (t *Trigger) Request() {
	t.pending.Store(true)
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// SetMinGap changes the spacing between runs. Safe from any goroutine.
func (t *Trigger) SetMinGap(d time.Duration) {
	t.minGap.Store(int64(d))
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Trigger) earliest() time.Time {
	gap := time.Duration(t.minGap.Load())
	if t.lastRun.IsZero() || gap <= 0 {
		return time.Time{}
	}
	return t.lastRun.Add(gap)
}

// Scheduler runs timers and on-demand tasks one at a time. Callbacks never
// overlap; a callback error stops Run.
type Scheduler struct {
	logger   *slog.Logger
	now      func() time.Time
	tasks    []*periodic
	triggers []*Trigger
	wake     chan struct{}
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
}

// Every runs fn repeatedly. The interval is re-read each time the task is
// re-armed, so runtime adjustments apply from the next run. With immediate
// set the first run happens on the first turn.
func (s *Scheduler) Every(name string, interval func() time.Duration, fn func() error, immediate bool) {
	s.tasks = append(s.tasks, &periodic{name: name, interval: interval, fn: fn, immediate: immediate})
}

// OnDemand registers fn to run after Request. Consecutive runs are at least
// minGap apart.
func (s *Scheduler) OnDemand(name string, minGap time.Duration, fn func() error) *Trigger {
	t := &Trigger{name: name, fn: fn, wake: s.wake}
	t.minGap.Store(int64(minGap))
	s.triggers = append(s.triggers, t)
	return t
}

// Run executes tasks until ctx is done or a callback fails.
func (s *Scheduler) Run(ctx context.Context) error {
	start := s.now()
	for _, t := range s.tasks {
		if t.immediate {
			t.next = start
		} else {
			t.next = start.Add(t.interval())
		}
	}

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		now := s.now()
		ran, err := s.runOne(now)
		if err != nil {
			return err
		}
		if ran {
			continue
		}

		wait := s.nextDeadline(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// runOne runs the first due callback. Triggers go before timers so a
// requested redraw is not starved by a short idle period.
func (s *Scheduler) runOne(now time.Time) (bool, error) {
	for _, t := range s.triggers {
		if !t.pending.Load() || now.Before(t.earliest()) {
			continue
		}
		t.pending.Store(false)
		t.lastRun = now
		return true, s.call(t.name, t.fn)
	}

	var due *periodic
	for _, t := range s.tasks {
		if !now.Before(t.next) && (due == nil || t.next.Before(due.next)) {
			due = t
		}
	}
	if due == nil {
		return false, nil
	}
	err := s.call(due.name, due.fn)
	due.next = s.now().Add(due.interval())
	return true, err
}

func (s *Scheduler) nextDeadline(now time.Time) time.Time {
	next := now.Add(time.Hour)
	for _, t := range s.tasks {
		if t.next.Before(next) {
			next = t.next
		}
	}
	for _, t := range s.triggers {
		if t.pending.Load() {
			if e := t.earliest(); e.Before(next) {
				next = e
			}
		}
	}
	return next
}

func (s *Scheduler) call(name string, fn func() error) error {
	if err := fn(); err != nil {
		s.logger.Debug("task stopped scheduler", "task", name, "error", err)
		return err
	}
	return nil
}
