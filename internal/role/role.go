// Package role identifies which side of the frame handoff a process plays.
package role

import (
	"errors"
	"fmt"
	"strconv"
)

// Marker is the launch argument that turns a process into the producer. It is
// followed by the inherited descriptor number of the control region.
const Marker = "-renderer"

// Role is decided once at startup and never changes.
type Role uint8

const (
	Consumer Role = iota
	Producer
)

var ErrMissingID = errors.New("missing id after " + Marker)

func (r Role) String() string {
	switch r {
	case Consumer:
		return "consumer"
	case Producer:
		return "producer"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Opposite returns the peer role.
func (r Role) Opposite() Role {
	if r == Producer {
		return Consumer
	}
	return Producer
}

// Owner is the non-zero token written into a surface lock word while this role
// holds it. Zero means unlocked.
func (r Role) Owner() uint32 {
	return uint32(r) + 1
}

// FromArgs inspects the process arguments (without argv[0]). When the marker is
// present the role is Producer, id is the value that follows it and rest holds
// the remaining arguments. Otherwise the role is Consumer and rest is args.
func FromArgs(args []string) (Role, int, []string, error) {
	for i, arg := range args {
		if arg != Marker && arg != "-"+Marker {
			continue
		}
		if i+1 >= len(args) {
			return Producer, 0, nil, ErrMissingID
		}
		id, err := strconv.Atoi(args[i+1])
		if err != nil || id < 0 {
			return Producer, 0, nil, fmt.Errorf("invalid id %q after %s", args[i+1], Marker)
		}
		rest := make([]string, 0, len(args)-2)
		rest = append(rest, args[:i]...)
		rest = append(rest, args[i+2:]...)
		return Producer, id, rest, nil
	}
	return Consumer, 0, args, nil
}
