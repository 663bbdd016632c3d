package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// Controller is what the control socket acts on. Implementations must be safe
// to call from connection goroutines.
type Controller interface {
	Status() StatusData
	AdjustInterval(slower bool) time.Duration
	SetInterval(d time.Duration) time.Duration
	ToggleLogging() bool
	CycleObject() uint32
	ToggleTimerRedraw() bool
	ToggleVSync() bool
	HoldLocks(d time.Duration)
	Step() uint32
	Redraw()
	Quit()
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	ctrl         Controller
	logger       *slog.Logger
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
	conns        sync.WaitGroup
}

// NewServer creates a control socket server at socketPath.
func NewServer(socketPath string, ctrl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	// Remove a stale socket left by a crashed process.
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		ctrl:       ctrl,
		logger:     logger,
		startTime:  time.Now(),
	}
}

func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("control socket listening", "path", s.socketPath)

	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("control socket accept error", "error", err)
			continue
		}

		s.shutdownMu.Lock()
		if s.shuttingDown {
			s.shutdownMu.Unlock()
			conn.Close()
			return
		}
		s.conns.Add(1)
		s.shutdownMu.Unlock()

		go func() {
			defer s.conns.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	reader := bufio.NewReader(conn)

	// One JSON request per line.
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Debug("control socket read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.send(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	s.send(conn, s.handleCommand(req))
}

func (s *Server) send(conn net.Conn, resp *Response) {
	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Warn("failed to marshal response", "error", err)
		return
	}
	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Debug("failed to send response", "error", err)
	}
}

func (s *Server) handleCommand(req *Request) *Response {
	s.logger.Debug("control command", "command", req.Command)
	switch req.Command {
	case CommandGetStatus:
		status := s.ctrl.Status()
		status.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
		return ok(status)
	case CommandAdjustInterval:
		var p AdjustIntervalPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(err.Error())
		}
		d := s.ctrl.AdjustInterval(p.Slower)
		s.logger.Info("frame interval changed", "interval", d)
		return ok(IntervalData{FrameIntervalMS: d.Milliseconds()})
	case CommandSetInterval:
		var p SetIntervalPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(err.Error())
		}
		if p.FrameIntervalMS <= 0 {
			return NewErrorResponse("frame_interval_ms must be positive")
		}
		d := s.ctrl.SetInterval(time.Duration(p.FrameIntervalMS) * time.Millisecond)
		s.logger.Info("frame interval changed", "interval", d)
		return ok(IntervalData{FrameIntervalMS: d.Milliseconds()})
	case CommandToggleLogging:
		return ok(ToggleData{Enabled: s.ctrl.ToggleLogging()})
	case CommandCycleObject:
		return ok(ObjectData{Object: s.ctrl.CycleObject()})
	case CommandToggleTimerRedraw:
		return ok(ToggleData{Enabled: s.ctrl.ToggleTimerRedraw()})
	case CommandToggleVSync:
		return ok(ToggleData{Enabled: s.ctrl.ToggleVSync()})
	case CommandHoldLocks:
		var p HoldLocksPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(err.Error())
		}
		if p.DurationMS <= 0 {
			return NewErrorResponse("duration_ms must be positive")
		}
		s.ctrl.HoldLocks(time.Duration(p.DurationMS) * time.Millisecond)
		return ok(nil)
	case CommandStep:
		return ok(StepData{Requests: s.ctrl.Step()})
	case CommandRedraw:
		s.ctrl.Redraw()
		return ok(nil)
	case CommandQuit:
		s.logger.Info("quit requested over control socket")
		s.ctrl.Quit()
		return ok(nil)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func ok(data interface{}) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func decodePayload(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// Stop stops the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
	// Handlers call into the controller; the caller may tear it down next.
	s.conns.Wait()
}
