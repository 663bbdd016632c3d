package x11

import "testing"

func TestMonitorCenter(t *testing.T) {
	m := Monitor{X: 1920, Y: 0, Width: 2560, Height: 1440}
	x, y := m.Center(500, 500)
	if x != 1920+1030 || y != 470 {
		t.Fatalf("Center() = (%d, %d), want (2950, 470)", x, y)
	}

	// Larger than the monitor pins to the corner.
	x, y = m.Center(4000, 2000)
	if x != 1920 || y != 0 {
		t.Fatalf("Center() oversized = (%d, %d), want (1920, 0)", x, y)
	}
}

func TestClipToWorkArea(t *testing.T) {
	m := Monitor{X: 0, Y: 0, Width: 1920, Height: 1080}
	clipToWorkArea(&m, 0, 32, 3840, 1048)
	if m.Y != 32 || m.Height != 1048 || m.Width != 1920 {
		t.Fatalf("clipped monitor = %+v", m)
	}

	// Disjoint work area leaves the monitor unchanged.
	m = Monitor{X: 1920, Y: 0, Width: 1920, Height: 1080}
	clipToWorkArea(&m, 0, 0, 1920, 1080)
	if m.X != 1920 || m.Width != 1920 {
		t.Fatalf("disjoint work area changed monitor: %+v", m)
	}
}
