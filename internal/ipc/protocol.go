package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandGetStatus         CommandType = "GET_STATUS"
	CommandAdjustInterval    CommandType = "ADJUST_INTERVAL"
	CommandSetInterval       CommandType = "SET_INTERVAL"
	CommandToggleLogging     CommandType = "TOGGLE_LOGGING"
	CommandCycleObject       CommandType = "CYCLE_OBJECT"
	CommandToggleTimerRedraw CommandType = "TOGGLE_TIMER_REDRAW"
	CommandToggleVSync       CommandType = "TOGGLE_VSYNC"
	CommandHoldLocks         CommandType = "HOLD_LOCKS"
	CommandStep              CommandType = "STEP"
	CommandRedraw            CommandType = "REDRAW"
	CommandQuit              CommandType = "QUIT"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	ConsumerPID     int    `json:"consumer_pid"`
	ProducerPID     int    `json:"producer_pid"`
	Buffers         int    `json:"buffers"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	SRGB            bool   `json:"srgb"`
	Mipmap          bool   `json:"mipmap"`
	VSync           bool   `json:"vsync"`
	ProduceCount    uint32 `json:"produce_count"`
	ConsumeCount    uint32 `json:"consume_count"`
	InFlight        uint32 `json:"in_flight"`
	FrameIntervalMS int64  `json:"frame_interval_ms"`
	Logging         bool   `json:"logging"`
	TimerRedraw     bool   `json:"timer_redraw"`
	Object          uint32 `json:"object"`
	Presenter       string `json:"presenter"`
	HoldingLocks    bool   `json:"holding_locks"`

	Displayed    uint64 `json:"displayed"`
	Skipped      uint64 `json:"skipped"`
	Repeated     uint64 `json:"repeated"`
	Waiting      uint64 `json:"waiting"`
	LockFailures uint64 `json:"lock_failures"`

	UptimeSeconds int64 `json:"uptime_seconds"`
}

type AdjustIntervalPayload struct {
	Slower bool `json:"slower"`
}

type SetIntervalPayload struct {
	FrameIntervalMS int64 `json:"frame_interval_ms"`
}

// IntervalData is returned by ADJUST_INTERVAL and SET_INTERVAL.
type IntervalData struct {
	FrameIntervalMS int64 `json:"frame_interval_ms"`
}

// ToggleData is returned by the TOGGLE_* commands.
type ToggleData struct {
	Enabled bool `json:"enabled"`
}

type ObjectData struct {
	Object uint32 `json:"object"`
}

type HoldLocksPayload struct {
	DurationMS int64 `json:"duration_ms"`
}

// StepData is returned by STEP.
type StepData struct {
	Requests uint32 `json:"requests"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
