package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/interop/internal/runtimepath"
)

// ErrNoConsumer means no control socket was found.
var ErrNoConsumer = errors.New("no running consumer found")

// Client handles IPC communication with a consumer
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the consumer with the given pid. A pid of 0
// selects the only running consumer, or the oldest if there are several.
func NewClient(pid int) (*Client, error) {
	var socketPath string
	if pid > 0 {
		p, err := runtimepath.SocketPath(pid)
		if err != nil {
			return nil, err
		}
		socketPath = p
	} else {
		sockets, err := runtimepath.FindSockets()
		if err != nil {
			return nil, err
		}
		if len(sockets) == 0 {
			return nil, ErrNoConsumer
		}
		socketPath = sockets[0]
	}
	return NewClientForSocket(socketPath), nil
}

func NewClientForSocket(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

func (c *Client) SocketPath() string { return c.socketPath }

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to consumer: %w (is it running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("consumer error: %s", resp.Error)
	}

	return &resp, nil
}

func (c *Client) call(cmd CommandType, payload interface{}, out interface{}) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		req.Payload = data
	}
	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// GetStatus retrieves consumer status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// AdjustInterval steps the frame interval like the +/- keys.
func (c *Client) AdjustInterval(slower bool) (time.Duration, error) {
	var data IntervalData
	if err := c.call(CommandAdjustInterval, AdjustIntervalPayload{Slower: slower}, &data); err != nil {
		return 0, err
	}
	return time.Duration(data.FrameIntervalMS) * time.Millisecond, nil
}

func (c *Client) SetInterval(d time.Duration) (time.Duration, error) {
	var data IntervalData
	if err := c.call(CommandSetInterval, SetIntervalPayload{FrameIntervalMS: d.Milliseconds()}, &data); err != nil {
		return 0, err
	}
	return time.Duration(data.FrameIntervalMS) * time.Millisecond, nil
}

func (c *Client) ToggleLogging() (bool, error) {
	var data ToggleData
	err := c.call(CommandToggleLogging, nil, &data)
	return data.Enabled, err
}

func (c *Client) CycleObject() (uint32, error) {
	var data ObjectData
	err := c.call(CommandCycleObject, nil, &data)
	return data.Object, err
}

func (c *Client) ToggleTimerRedraw() (bool, error) {
	var data ToggleData
	err := c.call(CommandToggleTimerRedraw, nil, &data)
	return data.Enabled, err
}

func (c *Client) ToggleVSync() (bool, error) {
	var data ToggleData
	err := c.call(CommandToggleVSync, nil, &data)
	return data.Enabled, err
}

// HoldLocks makes the consumer keep every slot locked for d.
func (c *Client) HoldLocks(d time.Duration) error {
	return c.call(CommandHoldLocks, HoldLocksPayload{DurationMS: d.Milliseconds()}, nil)
}

// Step asks the renderer for one extra frame.
func (c *Client) Step() (uint32, error) {
	var data StepData
	err := c.call(CommandStep, nil, &data)
	return data.Requests, err
}

func (c *Client) Redraw() error {
	return c.call(CommandRedraw, nil, nil)
}

func (c *Client) Quit() error {
	return c.call(CommandQuit, nil, nil)
}
