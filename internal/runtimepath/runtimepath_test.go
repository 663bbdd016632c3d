package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir_UsesXDGRuntimeDirWhenSet(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != td {
		t.Fatalf("Dir() = %q, want %q", got, td)
	}
}

func TestDir_FallbacksWhenXDGRuntimeDirMissing(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got == "" {
		t.Fatal("Dir() returned empty path")
	}

	wantRun := fmt.Sprintf("/run/user/%d", os.Getuid())
	wantTmp := fmt.Sprintf("/tmp/interop-runtime-%d", os.Getuid())
	if got != wantRun && got != wantTmp {
		t.Fatalf("Dir() = %q, want %q or %q", got, wantRun, wantTmp)
	}
}

func TestSocketPathCarriesPid(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	socket, err := SocketPath(4242)
	if err != nil {
		t.Fatalf("SocketPath() error: %v", err)
	}
	if !strings.HasSuffix(socket, "/interop-4242.sock") {
		t.Fatalf("SocketPath() = %q, missing suffix", socket)
	}
	pid, ok := PidFromSocket(socket)
	if !ok || pid != 4242 {
		t.Fatalf("PidFromSocket(%q) = %d, %v", socket, pid, ok)
	}
}

func TestFindSocketsSortedByPid(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	for _, name := range []string{"interop-900.sock", "interop-12.sock", "interop-x.sock", "other.sock"} {
		if err := os.WriteFile(filepath.Join(td, name), nil, 0600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	got, err := FindSockets()
	if err != nil {
		t.Fatalf("FindSockets() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FindSockets() = %v, want 2 entries", got)
	}
	if filepath.Base(got[0]) != "interop-12.sock" || filepath.Base(got[1]) != "interop-900.sock" {
		t.Fatalf("FindSockets() = %v, wrong order", got)
	}
}
