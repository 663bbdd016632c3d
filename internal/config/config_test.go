package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Buffers != 2 || cfg.Size != 500 || cfg.FrameIntervalMS != 1000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Mipmap || !cfg.VSync || cfg.SRGB || cfg.Logging {
		t.Fatalf("unexpected default flags: %+v", cfg)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Presenter != PresenterAuto {
		t.Fatalf("expected presenter %q, got %q", PresenterAuto, res.Config.Presenter)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files, got %v", res.Files)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Buffers != DefaultBuffers {
		t.Fatalf("expected buffers %d, got %d", DefaultBuffers, res.Config.Buffers)
	}
}

func TestLoadFromPath_ExplicitFalseOverridesDefaultTrue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "mipmap: false\nvsync: false\nsrgb: true\nmetrics_addr: \" 127.0.0.1:9100 \"\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Mipmap || cfg.VSync || !cfg.SRGB {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.MetricsAddr != "127.0.0.1:9100" {
		t.Fatalf("expected trimmed metrics_addr, got %q", cfg.MetricsAddr)
	}
}

func TestLoadFromPath_ClampsBuffersAndSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "buffers: 9\nsize: 8\nframe_interval_ms: 3\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Buffers != MaxBuffers {
		t.Fatalf("expected buffers clamped to %d, got %d", MaxBuffers, res.Config.Buffers)
	}
	if res.Config.Size != MinSize {
		t.Fatalf("expected size clamped to %d, got %d", MinSize, res.Config.Size)
	}
	if res.Config.FrameIntervalMS != 10 {
		t.Fatalf("expected frame interval floor of 10, got %d", res.Config.FrameIntervalMS)
	}

	cfg := &Config{Buffers: 1, Size: 10000, FrameIntervalMS: 100, IdlePollMS: 0}
	cfg.Clamp()
	if cfg.Buffers != MinBuffers || cfg.Size != MaxSize || cfg.IdlePollMS != 1 {
		t.Fatalf("Clamp() = %+v", cfg)
	}
}

func TestLoadFromPath_InvalidPresenterHasSourceContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "buffers: 3\npresenter: opengl\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected presenter error")
	}
	if !strings.Contains(err.Error(), path+":2:") || !strings.Contains(err.Error(), "presenter") {
		t.Fatalf("expected file:line context, got %v", err)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_BaseChainAndMainOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "common.yaml"), "size: 100\nbuffers: 3\nsrgb: true\n")
	writeFile(t, filepath.Join(dir, "profile.yaml"), "base: common.yaml\nsize: 200\n")

	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "base: profile.yaml\nsize: 300\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Size != 300 || res.Config.Buffers != 3 || !res.Config.SRGB {
		t.Fatalf("unexpected merge: %+v", res.Config)
	}
	want := []string{"common.yaml", "profile.yaml", "config.yaml"}
	if len(res.Files) != len(want) {
		t.Fatalf("expected files %v, got %v", want, res.Files)
	}
	for i, f := range res.Files {
		if filepath.Base(f) != want[i] {
			t.Fatalf("expected files %v, got %v", want, res.Files)
		}
	}
	if src := res.Sources["buffers"]; filepath.Base(src.File) != "common.yaml" || src.Line != 2 {
		t.Fatalf("expected buffers from common.yaml:2, got %+v", src)
	}
	if _, ok := res.Sources["base"]; ok {
		t.Fatalf("base must not be reported as a config key")
	}
}

func TestLoadFromPath_MissingBaseHasContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "buffers: 3\nbase: missing.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), path+":2:") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected base error with position, got %v", err)
	}
}

func TestLoadFromPath_BaseDirectoryRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "base: .\n")

	if _, err := LoadFromPath(path); err == nil {
		t.Fatalf("expected error for directory base")
	}
}

func TestLoadFromPath_BaseCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	writeFile(t, a, "base: b.yaml\n")
	writeFile(t, b, "base: a.yaml\n")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "base cycle: a.yaml -> b.yaml -> a.yaml") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadWithSources_EnvOverridesPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "elsewhere.yaml")
	writeFile(t, path, "buffers: 4\n")
	t.Setenv(EnvConfigPath, path)

	res, err := LoadWithSources()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Buffers != 4 {
		t.Fatalf("expected buffers from %s, got %d", EnvConfigPath, res.Config.Buffers)
	}
}

func TestLoadFromPath_NonPositiveIntervalsRejected(t *testing.T) {
	for _, body := range []string{"frame_interval_ms: 0\n", "idle_poll_ms: -1\n"} {
		path := filepath.Join(t.TempDir(), "config.yaml")
		writeFile(t, path, body)

		_, err := LoadFromPath(path)
		if err == nil {
			t.Fatalf("expected error for %q", body)
		}
		if !strings.Contains(err.Error(), path+":1:") || !strings.Contains(err.Error(), "must be positive") {
			t.Fatalf("expected positioned validation error, got %v", err)
		}
	}
}

func TestExplain_FileAndDefaultSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "logging: true\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	val, src, err := Explain(res, "logging")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != true || src.Kind != SourceFile || src.Line != 1 {
		t.Fatalf("unexpected explain result %#v %#v", val, src)
	}

	val, src, err = Explain(res, "size")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != DefaultSize || src.Kind != SourceDefault {
		t.Fatalf("unexpected explain result %#v %#v", val, src)
	}

	if _, _, err := Explain(res, "nonsense"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if len(Keys()) != 13 {
		t.Fatalf("expected 13 keys, got %d", len(Keys()))
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join(".config", "interop", "config.yaml")) {
		t.Fatalf("unexpected path %q", path)
	}
}
