package pipeline

import (
	"log/slog"
	"time"

	"github.com/1broseidon/interop/internal/gpu"
	"github.com/1broseidon/interop/internal/metrics"
	"github.com/1broseidon/interop/internal/role"
)

// StepPollInterval is how often the producer checks for single-frame requests.
const StepPollInterval = 20 * time.Millisecond

// TickOutcome is what one producer attempt did.
type TickOutcome int

const (
	TickProduced TickOutcome = iota
	TickRingFull
	TickLockFailed
	TickStopped
)

func (o TickOutcome) String() string {
	switch o {
	case TickProduced:
		return "produced"
	case TickRingFull:
		return "ring_full"
	case TickLockFailed:
		return "lock_failed"
	case TickStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type ProducerConfig struct {
	Control Control
	Ring    Slots
	Render  RenderFunc
	// Preview runs after each published frame while the timer redraw flag is set.
	Preview func()
	Mipmap  bool
	Logger  *slog.Logger
	Metrics metrics.Collector
}

// Producer fills free slots on a timer.
type Producer struct {
	cb      Control
	ring    Slots
	render  RenderFunc
	preview func()
	mipmap  bool
	logger  *slog.Logger
	metrics metrics.Collector

	stepSeen uint32
}

func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Render == nil {
		cfg.Render = func(*gpu.View, int, int) {}
	}
	return &Producer{
		cb:      cfg.Control,
		ring:    cfg.Ring,
		render:  cfg.Render,
		preview: cfg.Preview,
		mipmap:  cfg.Mipmap,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Tick makes exactly one production attempt. A full ring or a failed lock is
// not an error; the attempt is repeated on the next tick.
func (p *Producer) Tick() (TickOutcome, error) {
	if err := checkPeer(p.cb, role.Producer); err != nil {
		p.logger.Debug("consumer asked producer to terminate")
		return TickStopped, err
	}

	produced := p.cb.ProduceCount()
	consumed := p.cb.ConsumeCount()
	if produced-consumed >= uint32(p.ring.Len()) {
		p.logger.Debug("ring full, skipping frame", "produce", produced, "consume", consumed)
		p.metrics.RingFull()
		return TickRingFull, nil
	}

	slot := p.ring.Slot(produced)
	if err := p.ring.Lock(slot); err != nil {
		p.logger.Debug("lock failed", "slot", slot.Index, "reason", gpu.Reason(err), "error", err)
		p.metrics.LockFailure("lock", gpu.Reason(err))
		return TickLockFailed, nil
	}

	start := time.Now()
	view := slot.View()
	p.render(view, p.cb.Width(), p.cb.Height())
	if p.mipmap {
		view.GenerateMipmaps()
	}
	view.SetSequence(produced + 1)
	elapsed := time.Since(start)

	if err := p.ring.Unlock(slot); err != nil {
		p.logger.Debug("unlock failed", "slot", slot.Index, "reason", gpu.Reason(err), "error", err)
		p.metrics.LockFailure("unlock", gpu.Reason(err))
		return TickLockFailed, nil
	}

	n := p.cb.IncrementProduce()
	p.logger.Debug("produced frame", "slot", slot.Index, "produce", n)
	p.metrics.FrameRendered(elapsed)

	if p.preview != nil && p.cb.TimerRedraw() {
		p.preview()
	}
	return TickProduced, nil
}

// Step makes one extra production attempt when a single-frame request
// arrived since the last check, and reports whether one had.
func (p *Producer) Step() (bool, error) {
	n := p.cb.StepRequests()
	if n == p.stepSeen {
		return false, nil
	}
	p.stepSeen = n
	out, err := p.Tick()
	p.logger.Debug("single frame", "outcome", out)
	return true, err
}

// Register arms the production timer and the single-frame poll. The first
// tick runs immediately and each later one waits the current frame interval.
// Requests made before Register are not replayed.
func (p *Producer) Register(s *Scheduler) {
	p.stepSeen = p.cb.StepRequests()
	s.Every("produce", p.cb.FrameInterval, func() error {
		_, err := p.Tick()
		return err
	}, true)
	s.Every("step", func() time.Duration { return StepPollInterval }, func() error {
		_, err := p.Step()
		return err
	}, false)
}
