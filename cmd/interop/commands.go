package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/interop/internal/config"
	"github.com/1broseidon/interop/internal/ipc"
)

// controlFlags parses the options shared by every control command. A
// non-negative code means the command should exit with it.
func controlFlags(name, usage string, args []string) (*ipc.Client, []string, int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	pid := fs.Int("pid", 0, "Consumer pid (default: the first running consumer)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: interop %s\n", usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, nil, 0
		}
		return nil, nil, 2
	}
	client, err := ipc.NewClient(*pid)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, 1
	}
	return client, fs.Args(), -1
}

func noArgs(name string, rest []string) bool {
	if len(rest) != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", name)
		return false
	}
	return true
}

func runStatus(args []string) int {
	client, rest, code := controlFlags("status", "status [--pid PID]", args)
	if code >= 0 {
		return code
	}
	if !noArgs("status", rest) {
		return 2
	}

	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("consumer_pid:      %d\n", status.ConsumerPID)
	fmt.Printf("producer_pid:      %d\n", status.ProducerPID)
	fmt.Printf("buffers:           %d\n", status.Buffers)
	fmt.Printf("size:              %dx%d\n", status.Width, status.Height)
	fmt.Printf("srgb:              %v\n", status.SRGB)
	fmt.Printf("mipmap:            %v\n", status.Mipmap)
	fmt.Printf("vsync:             %v\n", status.VSync)
	fmt.Printf("produce_count:     %d\n", status.ProduceCount)
	fmt.Printf("consume_count:     %d\n", status.ConsumeCount)
	fmt.Printf("in_flight:         %d\n", status.InFlight)
	fmt.Printf("frame_interval_ms: %d\n", status.FrameIntervalMS)
	fmt.Printf("logging:           %v\n", status.Logging)
	fmt.Printf("timer_redraw:      %v\n", status.TimerRedraw)
	fmt.Printf("object:            %d\n", status.Object)
	fmt.Printf("presenter:         %s\n", status.Presenter)
	fmt.Printf("holding_locks:     %v\n", status.HoldingLocks)
	fmt.Printf("displayed:         %d\n", status.Displayed)
	fmt.Printf("skipped:           %d\n", status.Skipped)
	fmt.Printf("repeated:          %d\n", status.Repeated)
	fmt.Printf("waiting:           %d\n", status.Waiting)
	fmt.Printf("lock_failures:     %d\n", status.LockFailures)
	fmt.Printf("uptime_seconds:    %d\n", status.UptimeSeconds)
	return 0
}

func runAdjust(name string, slower bool, args []string) int {
	client, rest, code := controlFlags(name, name+" [--pid PID]", args)
	if code >= 0 {
		return code
	}
	if !noArgs(name, rest) {
		return 2
	}
	d, err := client.AdjustInterval(slower)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("frame_interval_ms: %d\n", d.Milliseconds())
	return 0
}

func runInterval(args []string) int {
	client, rest, code := controlFlags("interval", "interval [--pid PID] <ms>", args)
	if code >= 0 {
		return code
	}
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "interval requires <ms>")
		return 2
	}
	ms, err := strconv.Atoi(rest[0])
	if err != nil || ms <= 0 {
		fmt.Fprintf(os.Stderr, "invalid interval %q\n", rest[0])
		return 2
	}
	d, err := client.SetInterval(time.Duration(ms) * time.Millisecond)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("frame_interval_ms: %d\n", d.Milliseconds())
	return 0
}

func runToggleLogging(args []string) int {
	client, rest, code := controlFlags("log", "log [--pid PID]", args)
	if code >= 0 {
		return code
	}
	if !noArgs("log", rest) {
		return 2
	}
	on, err := client.ToggleLogging()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("logging: %v\n", on)
	return 0
}

func runCycleObject(args []string) int {
	client, rest, code := controlFlags("object", "object [--pid PID]", args)
	if code >= 0 {
		return code
	}
	if !noArgs("object", rest) {
		return 2
	}
	obj, err := client.CycleObject()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("object: %d\n", obj)
	return 0
}

func runToggleTimer(args []string) int {
	client, rest, code := controlFlags("timer", "timer [--pid PID]", args)
	if code >= 0 {
		return code
	}
	if !noArgs("timer", rest) {
		return 2
	}
	on, err := client.ToggleTimerRedraw()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("timer_redraw: %v\n", on)
	return 0
}

func runToggleVSync(args []string) int {
	client, rest, code := controlFlags("vsync", "vsync [--pid PID]", args)
	if code >= 0 {
		return code
	}
	if !noArgs("vsync", rest) {
		return 2
	}
	on, err := client.ToggleVSync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("vsync: %v\n", on)
	return 0
}

func runHoldLocks(args []string) int {
	client, rest, code := controlFlags("hold", "hold [--pid PID] [ms]", args)
	if code >= 0 {
		return code
	}
	d := lockHoldDuration
	switch len(rest) {
	case 0:
	case 1:
		ms, err := strconv.Atoi(rest[0])
		if err != nil || ms <= 0 {
			fmt.Fprintf(os.Stderr, "invalid duration %q\n", rest[0])
			return 2
		}
		d = time.Duration(ms) * time.Millisecond
	default:
		fmt.Fprintln(os.Stderr, "hold takes at most one argument")
		return 2
	}
	if err := client.HoldLocks(d); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("holding_ms: %d\n", d.Milliseconds())
	return 0
}

func runStep(args []string) int {
	client, rest, code := controlFlags("step", "step [--pid PID]", args)
	if code >= 0 {
		return code
	}
	if !noArgs("step", rest) {
		return 2
	}
	n, err := client.Step()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("step_requests: %d\n", n)
	return 0
}

func runRedraw(args []string) int {
	client, rest, code := controlFlags("redraw", "redraw [--pid PID]", args)
	if code >= 0 {
		return code
	}
	if !noArgs("redraw", rest) {
		return 2
	}
	if err := client.Redraw(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runQuit(args []string) int {
	client, rest, code := controlFlags("quit", "quit [--pid PID]", args)
	if code >= 0 {
		return code
	}
	if !noArgs("quit", rest) {
		return 2
	}
	if err := client.Quit(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  interop config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  interop config print [--path PATH] [--defaults]")
		fmt.Fprintln(os.Stderr, "  interop config explain [--path PATH] <key>")
		return 2
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/interop/config.yaml)")
	printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	switch args[0] {
	case "validate":
		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <key>")
			fmt.Fprintf(os.Stderr, "keys: %v\n", config.Keys())
			return 2
		}
		key := fs.Arg(0)
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, key)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("key: %s\n", key)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value: %s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		if src.Name != "" {
			return "default:" + src.Name
		}
		return "default"
	default:
		return string(src.Kind)
	}
}
