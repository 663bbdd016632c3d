package supervisor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/1broseidon/interop/internal/gpu"
	"github.com/1broseidon/interop/internal/role"
	"github.com/1broseidon/interop/internal/shm"
)

// firstExtraFD is the descriptor number of ExtraFiles[0] in the child.
const firstExtraFD = 3

// Descriptor derives the surface descriptor from the control block.
func Descriptor(cb *shm.ControlBlock) gpu.Descriptor {
	return gpu.Descriptor{
		Width:  cb.Width(),
		Height: cb.Height(),
		Format: gpu.FormatFor(cb.SRGB()),
		Mipmap: cb.Mipmap(),
	}
}

// Session holds the resources one side of the handoff works with.
type Session struct {
	Role    role.Role
	Control *shm.ControlBlock
	Ring    *gpu.Ring
}

// NewSession allocates the control block and ring on the consumer side and
// publishes the ring's handle values in the control block.
func NewSession(dev gpu.Device, p shm.Params) (*Session, error) {
	if p.ConsumerPID == 0 {
		p.ConsumerPID = os.Getpid()
	}
	cb, err := shm.Create(p)
	if err != nil {
		return nil, err
	}
	ring, err := gpu.Allocate(dev, cb.BufferCount(), Descriptor(cb), role.Consumer)
	if err != nil {
		cb.Close()
		return nil, fmt.Errorf("allocate ring: %w", err)
	}
	for i, v := range ring.Values() {
		cb.SetHandle(i, v)
	}
	return &Session{Role: role.Consumer, Control: cb, Ring: ring}, nil
}

// SpawnOptions configure the producer launch.
type SpawnOptions struct {
	// Args are appended after the role marker.
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// SpawnPeer launches selfPath as the producer, passing the control region as
// an inherited descriptor, and grants it access to duplicate the ring handles.
func (s *Session) SpawnPeer(selfPath string, opts SpawnOptions) (*Group, error) {
	if s.Role != role.Consumer {
		return nil, fmt.Errorf("only the consumer spawns a peer")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	f, err := s.Control.File()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cmd := exec.Command(selfPath, PeerArgs(firstExtraFD, opts.Args)...)
	cmd.ExtraFiles = []*os.File{f}
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	g, err := Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("spawn producer: %w", err)
	}
	if err := AllowPeerAccess(g.Pid()); err != nil {
		g.Kill()
		return nil, err
	}
	opts.Logger.Debug("spawned producer", "pid", g.Pid(), "pgid", g.pgid)
	return g, nil
}

// PeerArgs builds the producer's argument list.
func PeerArgs(id int, extra []string) []string {
	args := []string{role.Marker, strconv.Itoa(id)}
	return append(args, extra...)
}

// AttachAsPeer maps the inherited control region, checks that the consumer
// is still the parent and duplicates every ring handle from it.
func AttachAsPeer(dev gpu.Device, id int) (*Session, error) {
	cb, err := shm.Attach(id)
	if err != nil {
		return nil, err
	}
	if err := DieWithParent(cb.ConsumerPID()); err != nil {
		cb.Close()
		return nil, err
	}
	ring, err := gpu.Establish(dev, cb.ConsumerPID(), cb.Handles(), Descriptor(cb), role.Producer)
	if err != nil {
		cb.Close()
		return nil, fmt.Errorf("establish ring: %w", err)
	}
	cb.SetProducerPID(os.Getpid())
	return &Session{Role: role.Producer, Control: cb, Ring: ring}, nil
}

func (s *Session) Close() error {
	var firstErr error
	if s.Ring != nil {
		firstErr = s.Ring.Close()
	}
	if err := s.Control.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
