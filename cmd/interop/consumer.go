package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/1broseidon/interop/internal/config"
	"github.com/1broseidon/interop/internal/gpu"
	"github.com/1broseidon/interop/internal/ipc"
	"github.com/1broseidon/interop/internal/logging"
	"github.com/1broseidon/interop/internal/metrics"
	"github.com/1broseidon/interop/internal/pipeline"
	"github.com/1broseidon/interop/internal/present"
	"github.com/1broseidon/interop/internal/role"
	"github.com/1broseidon/interop/internal/runtimepath"
	"github.com/1broseidon/interop/internal/shm"
	"github.com/1broseidon/interop/internal/supervisor"
)

const (
	// peerExitGrace is how long the consumer waits for the renderer to see
	// its exit flag before killing the group.
	peerExitGrace     = 250 * time.Millisecond
	eventPollInterval = 20 * time.Millisecond
)

type consumerFlags struct {
	configPath      string
	buffers         int
	size            int
	intervalMS      int
	srgb            bool
	noMipmap        bool
	noVSync         bool
	verbose         bool
	presenter       string
	metricsAddr     string
	rendererMetrics string
	noSocket        bool
}

// parseConsumerFlags loads the config and applies the flags that were set on
// top of it.
func parseConsumerFlags(args []string) (*config.Config, consumerFlags, int) {
	var f consumerFlags
	fs := flag.NewFlagSet("interop", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&f.configPath, "config", "", "Config file path")
	fs.IntVar(&f.buffers, "buffers", 0, "Shared buffers (2-4)")
	fs.IntVar(&f.size, "size", 0, "Frame width and height (32-4096)")
	fs.IntVar(&f.intervalMS, "interval", 0, "Initial render interval in milliseconds")
	fs.BoolVar(&f.srgb, "sRGB", false, "Use sRGB surfaces")
	fs.BoolVar(&f.noMipmap, "nomipmap", false, "Do not generate mipmaps")
	fs.BoolVar(&f.noVSync, "novsync", false, "Do not pace redraws")
	fs.BoolVar(&f.verbose, "log", false, "Verbose logging")
	fs.StringVar(&f.presenter, "presenter", "", "auto, x11, terminal or none")
	fs.StringVar(&f.metricsAddr, "metrics", "", "Serve consumer metrics on this address")
	fs.StringVar(&f.rendererMetrics, "renderer-metrics", "", "Serve renderer metrics on this address")
	fs.BoolVar(&f.noSocket, "nosocket", false, "Do not open the control socket")
	fs.Usage = func() { printMainUsage(os.Stderr) }
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, f, 0
		}
		return nil, f, 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", fs.Arg(0))
		printMainUsage(os.Stderr)
		return nil, f, 2
	}

	res, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, f, 1
	}
	cfg := res.Config

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "buffers":
			cfg.Buffers = f.buffers
		case "size":
			cfg.Size = f.size
		case "interval":
			cfg.FrameIntervalMS = f.intervalMS
		case "sRGB":
			cfg.SRGB = f.srgb
		case "nomipmap":
			cfg.Mipmap = !f.noMipmap
		case "novsync":
			cfg.VSync = !f.noVSync
		case "log":
			cfg.Logging = f.verbose
		case "presenter":
			cfg.Presenter = f.presenter
		case "metrics":
			cfg.MetricsAddr = f.metricsAddr
		case "nosocket":
			cfg.ControlSocket = !f.noSocket
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, f, 2
	}
	cfg.Clamp()
	return cfg, f, -1
}

func runConsumer(args []string) int {
	cfg, flags, code := parseConsumerFlags(args)
	if code >= 0 {
		return code
	}

	level := logging.NewLevel(cfg.Logging)
	logger := logging.New(os.Stderr, role.Consumer, level)
	slog.SetDefault(logger)

	dev, err := gpu.NewDevice(gpu.DeviceOptions{})
	if err != nil {
		logger.Error("shareable buffers unavailable", "error", err)
		return 1
	}

	sess, err := supervisor.NewSession(dev, shm.Params{
		BufferCount:   cfg.Buffers,
		Width:         cfg.Size,
		Height:        cfg.Size,
		FrameInterval: cfg.FrameInterval(),
		SRGB:          cfg.SRGB,
		Mipmap:        cfg.Mipmap,
		VSync:         cfg.VSync,
		Logging:       cfg.Logging,
	})
	if err != nil {
		logger.Error("allocate shared state", "error", err)
		return 1
	}
	defer sess.Close()
	cb := sess.Control
	level.Follow(cb.Logging)
	// Stop reading the mapping before it goes away.
	defer func() { level.Set(cb.Logging()) }()

	// Background readers of cb finish before the session closes.
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var collector metrics.Collector = metrics.NewNoop()
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus("", role.Consumer.String())
		prom.WatchCounters(cb)
		collector = prom
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := prom.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	ctrl := &controller{cb: cb, quit: cancel, logger: logger, started: time.Now()}

	pres, err := present.Select(present.Options{
		Kind:       cfg.Presenter,
		Width:      cfg.Size,
		Height:     cfg.Size,
		Display:    cfg.Display,
		XAuthority: cfg.XAuthority,
		Title:      "interop",
		Handlers: present.Handlers{
			Key:   ctrl.handleKey,
			Close: cancel,
			Expose: func() {
				if ctrl.consumer != nil {
					ctrl.consumer.RequestRedraw()
				}
			},
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("open presenter", "presenter", cfg.Presenter, "error", err)
		return 1
	}
	defer pres.Close()
	ctrl.presenter = pres.Name()

	consumer := pipeline.NewConsumer(pipeline.ConsumerConfig{
		Control:      cb,
		Ring:         sess.Ring,
		Display:      pres.Display,
		Waiting:      pres.Waiting,
		VSync:        cfg.VSync,
		IdleInterval: cfg.IdlePoll(),
		Logger:       logger,
		Metrics:      collector,
	})
	ctrl.consumer = consumer

	self, err := os.Executable()
	if err != nil {
		logger.Error("locate executable", "error", err)
		return 1
	}
	group, err := sess.SpawnPeer(self, supervisor.SpawnOptions{
		Args:   rendererArgs(flags),
		Logger: logger,
	})
	if err != nil {
		logger.Error("spawn renderer", "error", err)
		return 1
	}

	term := pipeline.NewTerminator()
	defer term.Run()
	term.OnExit(func() {
		if !group.Wait(peerExitGrace) {
			logger.Debug("renderer still running, killing process group")
		}
		if err := group.Kill(); err != nil {
			logger.Warn("kill renderer group", "error", err)
		}
	})
	term.AnnounceOnExit(cb, role.Consumer)

	if cfg.ControlSocket {
		if srv := startControlSocket(ctrl, logger); srv != nil {
			term.OnExit(srv.Stop)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-group.Exited():
		case <-ctx.Done():
			return
		}
		if cb.ExitRequested(role.Producer) {
			logger.Debug("renderer exited")
		} else {
			logger.Warn("renderer exited without announcing", "error", group.Err())
		}
		cancel()
	}()

	sched := pipeline.NewScheduler(logger)
	consumer.Register(sched)
	if poller, ok := pres.(present.Poller); ok {
		sched.Every("events", func() time.Duration { return eventPollInterval }, func() error {
			poller.Poll()
			return nil
		}, false)
	}

	logger.Info("consumer started",
		"buffers", cb.BufferCount(),
		"size", cb.Width(),
		"srgb", cb.SRGB(),
		"mipmap", cb.Mipmap(),
		"vsync", cb.VSync(),
		"presenter", pres.Name(),
		"renderer_pid", group.Pid())

	err = sched.Run(ctx)
	switch {
	case err == nil:
		logger.Debug("consumer stopping")
	case errors.Is(err, pipeline.ErrPeerExited):
		logger.Info("renderer asked consumer to exit")
	default:
		logger.Error("consumer loop failed", "error", err)
		return 1
	}
	return 0
}

func rendererArgs(f consumerFlags) []string {
	var args []string
	if f.rendererMetrics != "" {
		args = append(args, "-metrics", f.rendererMetrics)
	}
	return args
}

func startControlSocket(ctrl ipc.Controller, logger *slog.Logger) *ipc.Server {
	path, err := runtimepath.SocketPath(os.Getpid())
	if err != nil {
		logger.Warn("control socket disabled", "error", err)
		return nil
	}
	srv := ipc.NewServer(path, ctrl, logger)
	if err := srv.Start(); err != nil {
		logger.Warn("control socket disabled", "path", path, "error", err)
		return nil
	}
	logger.Debug("control socket listening", "path", path)
	return srv
}
