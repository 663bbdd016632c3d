package main

import (
	"fmt"
	"io"
	"os"

	"github.com/1broseidon/interop/internal/role"
)

func main() {
	r, id, rest, err := role.FromArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if r == role.Producer {
		os.Exit(runProducer(id, rest))
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "status":
			os.Exit(runStatus(os.Args[2:]))
		case "faster":
			os.Exit(runAdjust("faster", false, os.Args[2:]))
		case "slower":
			os.Exit(runAdjust("slower", true, os.Args[2:]))
		case "interval":
			os.Exit(runInterval(os.Args[2:]))
		case "log":
			os.Exit(runToggleLogging(os.Args[2:]))
		case "object":
			os.Exit(runCycleObject(os.Args[2:]))
		case "timer":
			os.Exit(runToggleTimer(os.Args[2:]))
		case "vsync":
			os.Exit(runToggleVSync(os.Args[2:]))
		case "hold":
			os.Exit(runHoldLocks(os.Args[2:]))
		case "step":
			os.Exit(runStep(os.Args[2:]))
		case "redraw":
			os.Exit(runRedraw(os.Args[2:]))
		case "quit":
			os.Exit(runQuit(os.Args[2:]))
		case "config":
			os.Exit(runConfig(os.Args[2:]))
		case "help", "-h", "--help":
			printMainUsage(os.Stdout)
			os.Exit(0)
		}
	}

	os.Exit(runConsumer(os.Args[1:]))
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: interop [options]")
	fmt.Fprintln(w, "       interop <command> [--pid PID]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Without a command, starts the consumer and spawns the renderer.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -buffers N          Shared buffers, 2 to 4")
	fmt.Fprintln(w, "  -size N             Frame width and height, 32 to 4096")
	fmt.Fprintln(w, "  -interval MS        Initial render interval in milliseconds")
	fmt.Fprintln(w, "  -sRGB               Use sRGB surfaces")
	fmt.Fprintln(w, "  -nomipmap           Do not generate mipmaps")
	fmt.Fprintln(w, "  -novsync            Do not pace redraws to 60Hz")
	fmt.Fprintln(w, "  -log                Verbose logging")
	fmt.Fprintln(w, "  -presenter KIND     auto, x11, terminal or none")
	fmt.Fprintln(w, "  -metrics ADDR       Serve consumer metrics on ADDR")
	fmt.Fprintln(w, "  -renderer-metrics ADDR")
	fmt.Fprintln(w, "                      Serve renderer metrics on ADDR")
	fmt.Fprintln(w, "  -nosocket           Do not open the control socket")
	fmt.Fprintln(w, "  -config PATH        Config file (default: ~/.config/interop/config.yaml)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands (talk to a running consumer):")
	fmt.Fprintln(w, "  status              Show counters and settings")
	fmt.Fprintln(w, "  slower              Increase the render interval")
	fmt.Fprintln(w, "  faster              Decrease the render interval")
	fmt.Fprintln(w, "  interval MS         Set the render interval")
	fmt.Fprintln(w, "  log                 Toggle verbose logging in both processes")
	fmt.Fprintln(w, "  object              Cycle the drawn object")
	fmt.Fprintln(w, "  timer               Toggle renderer preview on each tick")
	fmt.Fprintln(w, "  vsync               Toggle redraw pacing")
	fmt.Fprintln(w, "  hold [MS]           Hold every slot lock (default 10000ms)")
	fmt.Fprintln(w, "  step                Ask the renderer for one extra frame")
	fmt.Fprintln(w, "  redraw              Force a redraw")
	fmt.Fprintln(w, "  quit                Stop the consumer and renderer")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
}
