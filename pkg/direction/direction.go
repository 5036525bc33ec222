// Package direction defines the four movement directions and the shared,
// concurrency-safe direction cell that connects the voice recogniser (the
// writer) to a consumer such as a game loop (the reader).
//
// The cell enforces the anti-reversal rule: a proposed direction that is the
// exact opposite of the current one is rejected, because a moving entity
// reversing into itself would collide with its own body.
package direction

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Direction is one of the four cardinal movement directions. The numeric
// values follow a clockwise cycle, so the opposite of d is (d+2) mod 4.
type Direction int32

const (
	Up Direction = iota
	Right
	Down
	Left
)

// All lists every valid direction in cycle order.
var All = []Direction{Up, Right, Down, Left}

// IsValid reports whether d is one of the four defined directions.
func (d Direction) IsValid() bool {
	return d >= Up && d <= Left
}

// Opposite returns the direction pointing the other way (Up↔Down,
// Left↔Right). The result is undefined for invalid directions.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// String returns the lowercase command word for d.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("direction(%d)", int32(d))
	}
}

// Delta returns the grid step for d in screen coordinates (y grows
// downwards).
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Right:
		return 1, 0
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	}
	return 0, 0
}

// Parse converts a command word ("up", "Down", " left ") into a Direction.
func Parse(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "right":
		return Right, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	}
	return 0, fmt.Errorf("direction: unknown direction %q", s)
}

// MarshalText implements [encoding.TextMarshaler].
func (d Direction) MarshalText() ([]byte, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("direction: cannot marshal invalid direction %d", int32(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Direction) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// State is the single shared direction cell. The zero value is not usable;
// create one with [NewState] and hand the same pointer to the writer and to
// every reader.
//
// All methods are safe for concurrent use. Reads never block.
type State struct {
	v       atomic.Int32
	changes atomic.Uint64
}

// NewState returns a State holding initial. An invalid initial direction is
// replaced with [Right].
func NewState(initial Direction) *State {
	if !initial.IsValid() {
		initial = Right
	}
	s := &State{}
	s.v.Store(int32(initial))
	return s
}

// Read returns the currently accepted direction.
func (s *State) Read() Direction {
	return Direction(s.v.Load())
}

// Propose atomically replaces the current direction with candidate unless
// candidate is the opposite of the current direction. It reports whether the
// candidate was accepted. Proposing the current direction again is accepted
// and leaves the state unchanged.
func (s *State) Propose(candidate Direction) bool {
	if !candidate.IsValid() {
		return false
	}
	for {
		cur := Direction(s.v.Load())
		if candidate == cur.Opposite() {
			return false
		}
		if candidate == cur {
			return true
		}
		if s.v.CompareAndSwap(int32(cur), int32(candidate)) {
			s.changes.Add(1)
			return true
		}
	}
}

// Changes returns how many times Propose actually changed the direction.
func (s *State) Changes() uint64 {
	return s.changes.Load()
}
