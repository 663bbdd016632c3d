package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	socketPrefix = "interop-"
	socketSuffix = ".sock"
)

// Dir returns the runtime directory used for control sockets. Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
// 3) /tmp/interop-runtime-<uid> (created)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	uid := os.Getuid()
	runUserDir := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}

	tmpDir := fmt.Sprintf("/tmp/interop-runtime-%d", uid)
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// SocketPath returns the control socket path of the consumer with the given pid.
func SocketPath(pid int) (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, socketPrefix+strconv.Itoa(pid)+socketSuffix), nil
}

// FindSockets lists control sockets in the runtime directory, lowest pid first.
func FindSockets() ([]string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(runtimeDir, socketPrefix+"*"+socketSuffix))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		if _, ok := PidFromSocket(m); ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := PidFromSocket(out[i])
		b, _ := PidFromSocket(out[j])
		return a < b
	})
	return out, nil
}

// PidFromSocket extracts the pid from a control socket path.
func PidFromSocket(path string) (int, bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, socketPrefix) || !strings.HasSuffix(name, socketSuffix) {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, socketPrefix), socketSuffix))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
