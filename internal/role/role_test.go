package role

import (
	"errors"
	"reflect"
	"testing"
)

func TestFromArgs_NoMarkerIsConsumer(t *testing.T) {
	r, id, rest, err := FromArgs([]string{"-buffers", "3"})
	if err != nil {
		t.Fatalf("FromArgs() error: %v", err)
	}
	if r != Consumer || id != 0 {
		t.Fatalf("FromArgs() = %v,%d, want consumer,0", r, id)
	}
	if !reflect.DeepEqual(rest, []string{"-buffers", "3"}) {
		t.Fatalf("rest = %v", rest)
	}
}

func TestFromArgs_MarkerIsProducer(t *testing.T) {
	r, id, rest, err := FromArgs([]string{"-log", "-renderer", "3", "-size", "64"})
	if err != nil {
		t.Fatalf("FromArgs() error: %v", err)
	}
	if r != Producer || id != 3 {
		t.Fatalf("FromArgs() = %v,%d, want producer,3", r, id)
	}
	if !reflect.DeepEqual(rest, []string{"-log", "-size", "64"}) {
		t.Fatalf("rest = %v", rest)
	}
}

func TestFromArgs_MarkerWithoutID(t *testing.T) {
	_, _, _, err := FromArgs([]string{"-renderer"})
	if !errors.Is(err, ErrMissingID) {
		t.Fatalf("FromArgs() error = %v, want ErrMissingID", err)
	}
	if _, _, _, err := FromArgs([]string{"-renderer", "x"}); err == nil {
		t.Fatal("FromArgs() accepted non-numeric id")
	}
}

func TestOppositeAndOwner(t *testing.T) {
	if Consumer.Opposite() != Producer || Producer.Opposite() != Consumer {
		t.Fatal("Opposite() is not an involution")
	}
	if Consumer.Owner() == 0 || Producer.Owner() == 0 || Consumer.Owner() == Producer.Owner() {
		t.Fatalf("owners must be distinct and non-zero: %d %d", Consumer.Owner(), Producer.Owner())
	}
	if Producer.String() != "producer" || Consumer.String() != "consumer" {
		t.Fatal("unexpected String()")
	}
}
