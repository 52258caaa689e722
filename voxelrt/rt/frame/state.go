package frame

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gekko3d/voxmesh/voxelrt/rt/core"
)

var (
	ErrInvalidTransition = errors.New("invalid frame state transition")
	ErrInFlightTimeout   = errors.New("timed out waiting for a frame slot")
	ErrFenceMismatch     = errors.New("geometry fence belongs to another frame")
)

type State uint8

const (
	Idle State = iota
	UniformsUpdated
	GeometryDispatched
	SynchronizationSignaled
	Rendered
	Presented
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case UniformsUpdated:
		return "uniforms-updated"
	case GeometryDispatched:
		return "geometry-dispatched"
	case SynchronizationSignaled:
		return "synchronization-signaled"
	case Rendered:
		return "rendered"
	case Presented:
		return "presented"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Next is the only state s may move to.
func (s State) Next() State {
	if s == Presented {
		return Idle
	}
	return s + 1
}

// Frame is one trip through the pipeline.
type Frame struct {
	ID       uint64
	Slot     int
	Uniforms core.Uniforms
	Started  time.Time

	mu      sync.Mutex
	state   State
	history []State
}

func newFrame(id uint64, slot int) *Frame {
	return &Frame{ID: id, Slot: slot, Started: time.Now(), history: []State{Idle}}
}

func (f *Frame) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// History lists every state the frame has been in, starting with Idle.
func (f *Frame) History() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]State(nil), f.history...)
}

// Advance moves the frame to `to`, which must be the successor of the
// current state.
func (f *Frame) Advance(to State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Next() != to {
		return fmt.Errorf("%w: frame %d %s -> %s", ErrInvalidTransition, f.ID, f.state, to)
	}
	f.state = to
	f.history = append(f.history, to)
	return nil
}

// advanceFrom moves to the successor of from if the frame is still in from.
func (f *Frame) advanceFrom(from State) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != from {
		return false
	}
	f.state = from.Next()
	f.history = append(f.history, f.state)
	return true
}
