package config

import (
	"fmt"
	"sort"
)

// Keys lists every configuration key in a stable order.
func Keys() []string {
	keys := make([]string, 0, len(lookups))
	for k := range lookups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var lookups = map[string]func(*Config) any{
	"buffers":           func(c *Config) any { return c.Buffers },
	"size":              func(c *Config) any { return c.Size },
	"frame_interval_ms": func(c *Config) any { return c.FrameIntervalMS },
	"srgb":              func(c *Config) any { return c.SRGB },
	"mipmap":            func(c *Config) any { return c.Mipmap },
	"logging":           func(c *Config) any { return c.Logging },
	"vsync":             func(c *Config) any { return c.VSync },
	"idle_poll_ms":      func(c *Config) any { return c.IdlePollMS },
	"metrics_addr":      func(c *Config) any { return c.MetricsAddr },
	"control_socket":    func(c *Config) any { return c.ControlSocket },
	"presenter":         func(c *Config) any { return c.Presenter },
	"display":           func(c *Config) any { return c.Display },
	"xauthority":        func(c *Config) any { return c.XAuthority },
}

// Explain returns the effective value of key and where it came from.
func Explain(res *LoadResult, key string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	lookup, ok := lookups[key]
	if !ok {
		return nil, Source{}, fmt.Errorf("unknown key: %s", key)
	}
	if src, ok := res.Sources[key]; ok {
		return lookup(res.Config), src, nil
	}
	return lookup(res.Config), Source{Kind: SourceDefault, Name: "defaults"}, nil
}
