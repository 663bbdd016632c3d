package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BuildEffectiveConfig applies raw on top of the defaults, clamps and validates.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Buffers != nil {
		cfg.Buffers = *raw.Buffers
	}
	if raw.Size != nil {
		cfg.Size = *raw.Size
	}
	if raw.FrameIntervalMS != nil {
		cfg.FrameIntervalMS = *raw.FrameIntervalMS
	}
	if raw.SRGB != nil {
		cfg.SRGB = *raw.SRGB
	}
	if raw.Mipmap != nil {
		cfg.Mipmap = *raw.Mipmap
	}
	if raw.Logging != nil {
		cfg.Logging = *raw.Logging
	}
	if raw.VSync != nil {
		cfg.VSync = *raw.VSync
	}
	if raw.IdlePollMS != nil {
		cfg.IdlePollMS = *raw.IdlePollMS
	}
	if raw.MetricsAddr != nil {
		cfg.MetricsAddr = strings.TrimSpace(*raw.MetricsAddr)
	}
	if raw.ControlSocket != nil {
		cfg.ControlSocket = *raw.ControlSocket
	}
	if raw.Presenter != nil {
		cfg.Presenter = strings.ToLower(strings.TrimSpace(*raw.Presenter))
	}
	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.XAuthority != nil {
		cfg.XAuthority = *raw.XAuthority
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Clamp()
	return cfg, nil
}
