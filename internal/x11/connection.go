package x11

import (
	"fmt"
	"os"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xprop"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	deleteAtom xproto.Atom
}

// NewConnection connects to display, or $DISPLAY when display is empty.
// A non-empty xauthority overrides $XAUTHORITY for the handshake.
func NewConnection(display, xauthority string) (*Connection, error) {
	if xauthority != "" {
		if err := os.Setenv("XAUTHORITY", xauthority); err != nil {
			return nil, fmt.Errorf("set XAUTHORITY: %w", err)
		}
	}

	var (
		xu  *xgbutil.XUtil
		err error
	)
	if display != "" {
		xu, err = xgbutil.NewConnDisplay(display)
	} else {
		xu, err = xgbutil.NewConn()
	}
	if err != nil {
		return nil, err
	}

	// Needed to translate key press codes into key names.
	keybind.Initialize(xu)

	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// KeyName returns the key symbol name for a key press, e.g. "plus" or "Escape".
func (c *Connection) KeyName(ev xproto.KeyPressEvent) string {
	return keybind.LookupString(c.XUtil, ev.State, ev.Detail)
}

// Events receives the window events DrainEvents dispatches. Nil fields are
// skipped.
type Events struct {
	Key    func(name string)
	Expose func()
	Close  func()
}

// WatchClose asks the window manager to send WM_DELETE_WINDOW to win instead
// of killing the connection when the user closes it.
func (c *Connection) WatchClose(win xproto.Window) error {
	atom, err := xprop.Atm(c.XUtil, "WM_DELETE_WINDOW")
	if err != nil {
		return err
	}
	c.deleteAtom = atom
	return icccm.WmProtocolsSet(c.XUtil, win, []string{"WM_DELETE_WINDOW"})
}

// DrainEvents processes every queued event without blocking. Events must be
// drained regularly or the connection stalls once its queue fills.
func (c *Connection) DrainEvents(h Events) {
	conn := c.XUtil.Conn()
	for {
		ev, xerr := conn.PollForEvent()
		if ev == nil && xerr == nil {
			return
		}
		switch e := ev.(type) {
		case xproto.KeyPressEvent:
			if h.Key != nil {
				if name := c.KeyName(e); name != "" {
					h.Key(name)
				}
			}
		case xproto.ExposeEvent:
			if h.Expose != nil && e.Count == 0 {
				h.Expose()
			}
		case xproto.ClientMessageEvent:
			if h.Close != nil && c.deleteAtom != 0 && xproto.Atom(e.Data.Data32[0]) == c.deleteAtom {
				h.Close()
			}
		case xproto.DestroyNotifyEvent:
			if h.Close != nil {
				h.Close()
			}
		}
	}
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
