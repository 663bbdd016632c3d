package pipeline

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/1broseidon/interop/internal/gpu"
	"github.com/1broseidon/interop/internal/metrics"
	"github.com/1broseidon/interop/internal/role"
)

// VSyncInterval paces redraws when vsync is on.
const VSyncInterval = time.Second / 60

// DefaultIdleInterval is how often the consumer polls for new frames.
const DefaultIdleInterval = 5 * time.Millisecond

// RedrawOutcome is what one redraw did.
type RedrawOutcome int

const (
	RedrawDisplayed RedrawOutcome = iota
	RedrawRepeated
	RedrawWaiting
	RedrawLockFailed
	RedrawStopped
	// RedrawHeld means a lock hold is in progress and nothing was drawn.
	RedrawHeld
)

func (o RedrawOutcome) String() string {
	switch o {
	case RedrawDisplayed:
		return "displayed"
	case RedrawRepeated:
		return "repeated"
	case RedrawWaiting:
		return "waiting"
	case RedrawLockFailed:
		return "lock_failed"
	case RedrawStopped:
		return "stopped"
	case RedrawHeld:
		return "held"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of consumer activity.
type Stats struct {
	Displayed    uint64 `json:"displayed"`
	Skipped      uint64 `json:"skipped"`
	Repeated     uint64 `json:"repeated"`
	Waiting      uint64 `json:"waiting"`
	LockFailures uint64 `json:"lock_failures"`
	// LastSequence is the producer stamp of the last displayed frame.
	LastSequence uint32 `json:"last_sequence"`
}

type ConsumerConfig struct {
	Control Control
	Ring    Slots
	Display DisplayFunc
	Waiting WaitingFunc
	VSync   bool
	// IdleInterval defaults to DefaultIdleInterval.
	IdleInterval time.Duration
	Logger       *slog.Logger
	Metrics      metrics.Collector
}

// Consumer displays the newest completed frame and retires the rest.
type Consumer struct {
	cb      Control
	ring    Slots
	display DisplayFunc
	waiting WaitingFunc
	vsync   atomic.Bool
	idle    time.Duration
	logger  *slog.Logger
	metrics metrics.Collector

	shown   bool
	current int
	redraw  *Trigger

	hold      *Trigger
	holdFor   atomic.Int64
	held      []*gpu.Slot
	holdUntil time.Time
	holding   atomic.Bool

	displayed    atomic.Uint64
	skipped      atomic.Uint64
	repeated     atomic.Uint64
	waitingDraws atomic.Uint64
	lockFailures atomic.Uint64
	lastSeq      atomic.Uint32
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Display == nil {
		cfg.Display = func(*gpu.View) {}
	}
	if cfg.Waiting == nil {
		cfg.Waiting = func() {}
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	c := &Consumer{
		cb:      cfg.Control,
		ring:    cfg.Ring,
		display: cfg.Display,
		waiting: cfg.Waiting,
		idle:    cfg.IdleInterval,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	c.vsync.Store(cfg.VSync)
	return c
}

// Idle checks for pending frames and requests a redraw when there are any.
func (c *Consumer) Idle() error {
	if err := checkPeer(c.cb, role.Consumer); err != nil {
		c.logger.Debug("producer asked consumer to terminate")
		return err
	}
	if c.releaseLocks(time.Now()) {
		return nil
	}
	consumed := c.cb.ConsumeCount()
	if c.cb.ProduceCount() == consumed {
		return nil
	}
	c.current = c.ring.Slot(consumed).Index
	c.logger.Debug("consume from slot", "slot", c.current)
	c.RequestRedraw()
	return nil
}

// Redraw retires every pending frame but the newest and displays that one.
// With nothing pending it re-presents the last frame, or the waiting
// indicator if there has never been one.
func (c *Consumer) Redraw() (RedrawOutcome, error) {
	if err := checkPeer(c.cb, role.Consumer); err != nil {
		return RedrawStopped, err
	}
	if c.releaseLocks(time.Now()) {
		return RedrawHeld, nil
	}

	produced := c.cb.ProduceCount()
	consumed := c.cb.ConsumeCount()

	if produced == consumed {
		if !c.shown {
			c.waiting()
			c.waitingDraws.Add(1)
			c.metrics.WaitingDrawn()
			return RedrawWaiting, nil
		}
		outcome := c.present(c.ring.Slot(consumed-1), false)
		return outcome, nil
	}

	skipped := 0
	for produced-consumed > 1 {
		consumed = c.cb.IncrementConsume()
		skipped++
	}
	if skipped > 0 {
		c.skipped.Add(uint64(skipped))
		c.metrics.FramesSkipped(skipped)
		c.logger.Debug("skipped stale frames", "count", skipped)
	}

	slot := c.ring.Slot(consumed)
	c.current = slot.Index
	outcome := c.present(slot, true)
	if outcome != RedrawDisplayed {
		return outcome, nil
	}
	n := c.cb.IncrementConsume()
	c.logger.Debug("consumed frame", "slot", slot.Index, "consume", n)
	return outcome, nil
}

func (c *Consumer) present(slot *gpu.Slot, fresh bool) RedrawOutcome {
	if err := c.ring.Lock(slot); err != nil {
		c.lockFailed("lock", slot, err)
		return RedrawLockFailed
	}
	start := time.Now()
	view := slot.View()
	c.display(view)
	seq := view.Sequence()
	elapsed := time.Since(start)
	if err := c.ring.Unlock(slot); err != nil {
		c.lockFailed("unlock", slot, err)
		return RedrawLockFailed
	}

	c.shown = true
	c.lastSeq.Store(seq)
	if !fresh {
		c.repeated.Add(1)
		return RedrawRepeated
	}
	c.displayed.Add(1)
	c.metrics.FrameDisplayed(elapsed)
	return RedrawDisplayed
}

func (c *Consumer) lockFailed(op string, slot *gpu.Slot, err error) {
	reason := gpu.Reason(err)
	c.logger.Debug(op+" failed", "slot", slot.Index, "reason", reason, "error", err)
	c.lockFailures.Add(1)
	c.metrics.LockFailure(op, reason)
}

// Current is the slot index the consumer last selected.
func (c *Consumer) Current() int { return c.current }

// Stats may be called from any goroutine.
func (c *Consumer) Stats() Stats {
	return Stats{
		Displayed:    c.displayed.Load(),
		Skipped:      c.skipped.Load(),
		Repeated:     c.repeated.Load(),
		Waiting:      c.waitingDraws.Load(),
		LockFailures: c.lockFailures.Load(),
		LastSequence: c.lastSeq.Load(),
	}
}

// RequestRedraw schedules a redraw. Safe from any goroutine once registered.
func (c *Consumer) RequestRedraw() {
	if c.redraw != nil {
		c.redraw.Request()
	}
}

// VSync reports whether redraws are paced to VSyncInterval.
func (c *Consumer) VSync() bool { return c.vsync.Load() }

// SetVSync turns redraw pacing on or off. Safe from any goroutine.
func (c *Consumer) SetVSync(on bool) {
	c.vsync.Store(on)
	if c.redraw != nil {
		c.redraw.SetMinGap(c.redrawGap())
	}
}

func (c *Consumer) redrawGap() time.Duration {
	if c.vsync.Load() {
		return VSyncInterval
	}
	return 0
}

// HoldLocks takes every slot lock for d, so producer locks fail with a busy
// error until the hold ends. Asking again while holding extends the hold.
// Safe from any goroutine once registered.
func (c *Consumer) HoldLocks(d time.Duration) {
	if d <= 0 {
		return
	}
	c.holdFor.Store(int64(d))
	if c.hold != nil {
		c.hold.Request()
	}
}

// Holding may be called from any goroutine.
func (c *Consumer) Holding() bool { return c.holding.Load() }

func (c *Consumer) grabLocks() error {
	d := time.Duration(c.holdFor.Load())
	c.holdUntil = time.Now().Add(d)
	if !c.holding.Load() {
		for i := 0; i < c.ring.Len(); i++ {
			slot := c.ring.Slot(uint32(i))
			if err := c.ring.Lock(slot); err != nil {
				c.lockFailed("hold", slot, err)
				continue
			}
			c.held = append(c.held, slot)
		}
		c.holding.Store(true)
	}
	c.logger.Info("holding slot locks", "slots", len(c.held), "duration", d)
	return nil
}

// releaseLocks ends the hold once it has expired and reports whether one is
// still in progress.
func (c *Consumer) releaseLocks(now time.Time) bool {
	if !c.holding.Load() {
		return false
	}
	if now.Before(c.holdUntil) {
		return true
	}
	for _, slot := range c.held {
		if err := c.ring.Unlock(slot); err != nil {
			c.lockFailed("release", slot, err)
		}
	}
	c.logger.Info("released slot locks", "slots", len(c.held))
	c.held = nil
	c.holding.Store(false)
	c.RequestRedraw()
	return false
}

// Register installs the idle poll, the redraw trigger and the lock hold
// trigger, and requests the first redraw so the waiting indicator shows at
// startup.
func (c *Consumer) Register(s *Scheduler) {
	c.redraw = s.OnDemand("redraw", c.redrawGap(), func() error {
		_, err := c.Redraw()
		return err
	})
	c.hold = s.OnDemand("hold", 0, c.grabLocks)
	idle := c.idle
	s.Every("idle", func() time.Duration { return idle }, c.Idle, false)
	c.redraw.Request()
}
