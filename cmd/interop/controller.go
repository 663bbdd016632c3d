package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/1broseidon/interop/internal/ipc"
	"github.com/1broseidon/interop/internal/pipeline"
	"github.com/1broseidon/interop/internal/shm"
)

// lockHoldDuration is how long the H key keeps every slot locked.
const lockHoldDuration = 10 * time.Second

// controller serves the control socket and the window's keys. Every action
// only touches the tuning knobs, so it is safe from any goroutine.
type controller struct {
	cb        *shm.ControlBlock
	consumer  *pipeline.Consumer
	presenter string
	quit      func()
	logger    *slog.Logger
	started   time.Time
}

func (c *controller) Status() ipc.StatusData {
	stats := c.consumer.Stats()
	return ipc.StatusData{
		ConsumerPID:     os.Getpid(),
		ProducerPID:     c.cb.ProducerPID(),
		Buffers:         c.cb.BufferCount(),
		Width:           c.cb.Width(),
		Height:          c.cb.Height(),
		SRGB:            c.cb.SRGB(),
		Mipmap:          c.cb.Mipmap(),
		VSync:           c.consumer.VSync(),
		HoldingLocks:    c.consumer.Holding(),
		ProduceCount:    c.cb.ProduceCount(),
		ConsumeCount:    c.cb.ConsumeCount(),
		InFlight:        c.cb.InFlight(),
		FrameIntervalMS: c.cb.FrameInterval().Milliseconds(),
		Logging:         c.cb.Logging(),
		TimerRedraw:     c.cb.TimerRedraw(),
		Object:          c.cb.ObjectToDraw(),
		Presenter:       c.presenter,
		Displayed:       stats.Displayed,
		Skipped:         stats.Skipped,
		Repeated:        stats.Repeated,
		Waiting:         stats.Waiting,
		LockFailures:    stats.LockFailures,
		UptimeSeconds:   int64(time.Since(c.started).Seconds()),
	}
}

func (c *controller) AdjustInterval(slower bool) time.Duration {
	d := c.cb.AdjustFrameInterval(slower)
	c.logger.Info("render interval changed", "frame_interval_ms", d.Milliseconds())
	return d
}

func (c *controller) SetInterval(d time.Duration) time.Duration {
	c.cb.SetFrameInterval(d)
	d = c.cb.FrameInterval()
	c.logger.Info("render interval changed", "frame_interval_ms", d.Milliseconds())
	return d
}

func (c *controller) ToggleLogging() bool {
	on := c.cb.ToggleLogging()
	c.logger.Info("logging toggled", "enabled", on)
	c.consumer.RequestRedraw()
	return on
}

func (c *controller) CycleObject() uint32 {
	obj := c.cb.CycleObject()
	c.consumer.RequestRedraw()
	return obj
}

func (c *controller) ToggleTimerRedraw() bool {
	on := c.cb.ToggleTimerRedraw()
	c.consumer.RequestRedraw()
	return on
}

func (c *controller) Redraw() { c.consumer.RequestRedraw() }

// ToggleVSync flips redraw pacing for this process only.
func (c *controller) ToggleVSync() bool {
	on := !c.consumer.VSync()
	c.consumer.SetVSync(on)
	c.logger.Info("vsync toggled", "enabled", on)
	c.consumer.RequestRedraw()
	return on
}

// HoldLocks keeps every slot lock for d; the renderer's locks fail meanwhile.
func (c *controller) HoldLocks(d time.Duration) {
	c.logger.Info("holding slot locks", "duration", d)
	c.consumer.HoldLocks(d)
}

// Step asks the renderer for one frame outside its interval.
func (c *controller) Step() uint32 {
	n := c.cb.RequestStep()
	c.logger.Debug("single frame requested", "requests", n)
	return n
}

func (c *controller) Quit() {
	c.logger.Info("quit requested")
	c.quit()
}

// handleKey maps window key names to controller actions. Unknown keys are
// ignored.
func (c *controller) handleKey(name string) {
	switch name {
	case "plus", "equal", "KP_Add", "+", "=":
		c.AdjustInterval(true)
	case "minus", "underscore", "KP_Subtract", "-", "_":
		c.AdjustInterval(false)
	case "l":
		c.ToggleLogging()
	case "o":
		c.CycleObject()
	case "t":
		c.ToggleTimerRedraw()
	case "v":
		c.ToggleVSync()
	case "H":
		c.HoldLocks(lockHoldDuration)
	case "space", " ":
		c.Step()
	case "Return", "KP_Enter":
		c.Redraw()
	case "Escape":
		c.Quit()
	}
}

var _ ipc.Controller = (*controller)(nil)
