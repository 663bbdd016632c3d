package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/1broseidon/interop/internal/gpu"
	"github.com/1broseidon/interop/internal/logging"
	"github.com/1broseidon/interop/internal/metrics"
	"github.com/1broseidon/interop/internal/pipeline"
	"github.com/1broseidon/interop/internal/role"
	"github.com/1broseidon/interop/internal/scene"
	"github.com/1broseidon/interop/internal/supervisor"
)

// runProducer is the renderer side, launched by the consumer with the
// inherited control region descriptor id.
func runProducer(id int, args []string) int {
	fs := flag.NewFlagSet("interop "+role.Marker, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	metricsAddr := fs.String("metrics", "", "Serve renderer metrics on this address")
	verbose := fs.Bool("log", false, "Verbose logging until the control block is mapped")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := logging.NewLevel(*verbose)
	logger := logging.New(os.Stderr, role.Producer, level)

	dev, err := gpu.NewDevice(gpu.DeviceOptions{})
	if err != nil {
		logger.Error("shareable buffers unavailable", "error", err)
		return 1
	}
	sess, err := supervisor.AttachAsPeer(dev, id)
	if err != nil {
		if errors.Is(err, supervisor.ErrOrphaned) {
			logger.Info("consumer already gone", "error", err)
			return 0
		}
		logger.Error("attach to consumer", "error", err)
		return 1
	}
	defer sess.Close()
	cb := sess.Control
	level.Follow(cb.Logging)
	defer func() { level.Set(cb.Logging()) }()

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	term := pipeline.NewTerminator()
	defer term.Run()
	term.AnnounceOnExit(cb, role.Producer)

	var collector metrics.Collector = metrics.NewNoop()
	if *metricsAddr != "" {
		prom := metrics.NewPrometheus("", role.Producer.String())
		prom.WatchCounters(cb)
		collector = prom
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := prom.Serve(ctx, *metricsAddr, logger); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	sc := scene.New(cb.ObjectToDraw)
	producer := pipeline.NewProducer(pipeline.ProducerConfig{
		Control: cb,
		Ring:    sess.Ring,
		Render:  sc.Render,
		Preview: func() {
			logger.Debug("preview", "rotation", sc.Rotation(), "produce", cb.ProduceCount())
		},
		Mipmap:  cb.Mipmap(),
		Logger:  logger,
		Metrics: collector,
	})

	sched := pipeline.NewScheduler(logger)
	producer.Register(sched)

	logger.Info("renderer started",
		"consumer_pid", cb.ConsumerPID(),
		"buffers", cb.BufferCount(),
		"frame_interval", cb.FrameInterval())

	err = sched.Run(ctx)
	switch {
	case err == nil:
		logger.Debug("renderer stopping")
	case errors.Is(err, pipeline.ErrPeerExited):
		logger.Debug("consumer asked renderer to exit")
	default:
		logger.Error("renderer loop failed", "error", err)
		return 1
	}
	return 0
}
