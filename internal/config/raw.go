package config

// RawConfig mirrors Config with pointer fields so that an absent key can be
// told apart from a zero value when files are merged.
type RawConfig struct {
	// Base names a file whose keys this one overrides.
	Base *string `yaml:"base"`

	Buffers         *int    `yaml:"buffers"`
	Size            *int    `yaml:"size"`
	FrameIntervalMS *int    `yaml:"frame_interval_ms"`
	SRGB            *bool   `yaml:"srgb"`
	Mipmap          *bool   `yaml:"mipmap"`
	Logging         *bool   `yaml:"logging"`
	VSync           *bool   `yaml:"vsync"`
	IdlePollMS      *int    `yaml:"idle_poll_ms"`
	MetricsAddr     *string `yaml:"metrics_addr"`
	ControlSocket   *bool   `yaml:"control_socket"`
	Presenter       *string `yaml:"presenter"`
	Display         *string `yaml:"display"`
	XAuthority      *string `yaml:"xauthority"`
}

// merge overlays every key set in other.
func (r RawConfig) merge(other RawConfig) RawConfig {
	out := r
	if other.Buffers != nil {
		out.Buffers = other.Buffers
	}
	if other.Size != nil {
		out.Size = other.Size
	}
	if other.FrameIntervalMS != nil {
		out.FrameIntervalMS = other.FrameIntervalMS
	}
	if other.SRGB != nil {
		out.SRGB = other.SRGB
	}
	if other.Mipmap != nil {
		out.Mipmap = other.Mipmap
	}
	if other.Logging != nil {
		out.Logging = other.Logging
	}
	if other.VSync != nil {
		out.VSync = other.VSync
	}
	if other.IdlePollMS != nil {
		out.IdlePollMS = other.IdlePollMS
	}
	if other.MetricsAddr != nil {
		out.MetricsAddr = other.MetricsAddr
	}
	if other.ControlSocket != nil {
		out.ControlSocket = other.ControlSocket
	}
	if other.Presenter != nil {
		out.Presenter = other.Presenter
	}
	if other.Display != nil {
		out.Display = other.Display
	}
	if other.XAuthority != nil {
		out.XAuthority = other.XAuthority
	}
	return out
}
