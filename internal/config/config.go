package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Presenter names accepted by the presenter key.
const (
	PresenterAuto     = "auto"
	PresenterX11      = "x11"
	PresenterTerminal = "terminal"
	PresenterNone     = "none"
)

const (
	MinBuffers = 2
	MaxBuffers = 4
	MinSize    = 32
	MaxSize    = 4096

	DefaultBuffers         = 2
	DefaultSize            = 500
	DefaultFrameIntervalMS = 1000
	DefaultIdlePollMS      = 5
)

// Config is the effective startup configuration. Command-line flags override
// individual fields after loading.
type Config struct {
	Buffers         int    `yaml:"buffers"`
	Size            int    `yaml:"size"`
	FrameIntervalMS int    `yaml:"frame_interval_ms"`
	SRGB            bool   `yaml:"srgb"`
	Mipmap          bool   `yaml:"mipmap"`
	Logging         bool   `yaml:"logging"`
	VSync           bool   `yaml:"vsync"`
	IdlePollMS      int    `yaml:"idle_poll_ms"`
	MetricsAddr     string `yaml:"metrics_addr,omitempty"`
	ControlSocket   bool   `yaml:"control_socket"`
	Presenter       string `yaml:"presenter"`
	Display         string `yaml:"display,omitempty"`
	XAuthority      string `yaml:"xauthority,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Buffers:         DefaultBuffers,
		Size:            DefaultSize,
		FrameIntervalMS: DefaultFrameIntervalMS,
		Mipmap:          true,
		VSync:           true,
		IdlePollMS:      DefaultIdlePollMS,
		ControlSocket:   true,
		Presenter:       PresenterAuto,
	}
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "interop", "config.yaml"), nil
}

// Clamp forces the buffer count into [2,4] and the size into [32,4096].
func (c *Config) Clamp() {
	c.Buffers = min(max(c.Buffers, MinBuffers), MaxBuffers)
	c.Size = min(max(c.Size, MinSize), MaxSize)
	if c.FrameIntervalMS < 10 {
		c.FrameIntervalMS = 10
	}
	if c.IdlePollMS < 1 {
		c.IdlePollMS = 1
	}
}

func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMS) * time.Millisecond
}

func (c *Config) IdlePoll() time.Duration {
	return time.Duration(c.IdlePollMS) * time.Millisecond
}

// Validate rejects values that clamping must not silently repair. Call it
// before Clamp.
func (c *Config) Validate() error {
	switch c.Presenter {
	case PresenterAuto, PresenterX11, PresenterTerminal, PresenterNone:
	default:
		return &ValidationError{
			Path: "presenter",
			Err:  fmt.Errorf("must be one of %s, %s, %s, %s", PresenterAuto, PresenterX11, PresenterTerminal, PresenterNone),
		}
	}
	if c.FrameIntervalMS <= 0 {
		return &ValidationError{Path: "frame_interval_ms", Err: fmt.Errorf("must be positive")}
	}
	if c.IdlePollMS <= 0 {
		return &ValidationError{Path: "idle_poll_ms", Err: fmt.Errorf("must be positive")}
	}
	return nil
}
