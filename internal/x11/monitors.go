package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Monitor represents a physical display
type Monitor struct {
	ID     int
	Name   string
	X      int
	Y      int
	Width  int
	Height int
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		monitors = append(monitors, Monitor{
			ID:     i,
			Name:   outputName,
			X:      int(crtcInfo.X),
			Y:      int(crtcInfo.Y),
			Width:  int(crtcInfo.Width),
			Height: int(crtcInfo.Height),
		})
	}

	return monitors, nil
}

// ActiveMonitor returns the monitor under the pointer, clipped to the EWMH
// work area when the window manager publishes one. It falls back to the
// first monitor, and to the root window geometry when RandR reports nothing.
func (c *Connection) ActiveMonitor() (*Monitor, error) {
	monitors, err := c.GetMonitors()
	if err != nil || len(monitors) == 0 {
		geom, gerr := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
		if gerr != nil {
			if err == nil {
				err = gerr
			}
			return nil, err
		}
		return &Monitor{Name: "root", Width: int(geom.Width), Height: int(geom.Height)}, nil
	}

	active := &monitors[0]
	if mon := findMonitorForPointer(c, monitors); mon != nil {
		active = mon
	}

	if workArea, err := ewmh.WorkareaGet(c.XUtil); err == nil && len(workArea) > 0 {
		desktop := 0
		if cur, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil && int(cur) < len(workArea) {
			desktop = int(cur)
		}
		wa := workArea[desktop]
		clipToWorkArea(active, int(wa.X), int(wa.Y), int(wa.Width), int(wa.Height))
	}

	return active, nil
}

// Center returns the origin that centers a w x h window on m. The origin
// never leaves the monitor's top-left corner.
func (m Monitor) Center(w, h int) (x, y int) {
	x = m.X + max(0, (m.Width-w)/2)
	y = m.Y + max(0, (m.Height-h)/2)
	return x, y
}

func clipToWorkArea(m *Monitor, waX, waY, waW, waH int) {
	x1 := max(m.X, waX)
	y1 := max(m.Y, waY)
	x2 := min(m.X+m.Width, waX+waW)
	y2 := min(m.Y+m.Height, waY+waH)
	if x2 > x1 && y2 > y1 {
		m.X, m.Y = x1, y1
		m.Width, m.Height = x2-x1, y2-y1
	}
}

func findMonitorForPointer(c *Connection, monitors []Monitor) *Monitor {
	reply, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil
	}
	px, py := int(reply.RootX), int(reply.RootY)
	for i := range monitors {
		m := &monitors[i]
		if px >= m.X && px < m.X+m.Width && py >= m.Y && py < m.Y+m.Height {
			return m
		}
	}
	return nil
}
