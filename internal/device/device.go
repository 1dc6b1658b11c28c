// Package device controls the on/off devices listed on the Switches screen.
package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// State is the last known state of a toggle device.
type State int

const (
	StateUnknown State = iota
	StateOn
	StateOff
	StateUnreachable
)

func (s State) String() string {
	switch s {
	case StateOn:
		return "ON"
	case StateOff:
		return "OFF"
	case StateUnreachable:
		return "UNREACHABLE"
	}
	return "UNKNOWN"
}

// Label is the four-column label shown on the display.
func (s State) Label() string {
	switch s {
	case StateOn:
		return "  ON"
	case StateOff:
		return " OFF"
	case StateUnreachable:
		return "DISC"
	}
	return "????"
}

var (
	// ErrUnknownState is returned when a device answers with something
	// other than on or off.
	ErrUnknownState = errors.New("device state unknown")
	// ErrUnreachable is returned when a device does not answer in time.
	ErrUnreachable = errors.New("device unreachable")
	// ErrRateLimited is returned when toggles arrive faster than allowed.
	ErrRateLimited = errors.New("device toggle rate limited")
)

// Toggle is an on/off device.
type Toggle interface {
	Name() string
	// State queries the device. The returned State is meaningful even
	// when err is non-nil (Unknown or Unreachable).
	State(ctx context.Context) (State, error)
	// Toggle flips the device.
	Toggle(ctx context.Context) error
}

// DefaultToggleInterval is the minimum spacing between toggles of one device.
const DefaultToggleInterval = 500 * time.Millisecond

// newLimiter allows one toggle per interval; 0 selects the default and a
// negative interval disables limiting.
func newLimiter(interval time.Duration) *rate.Limiter {
	if interval < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if interval == 0 {
		interval = DefaultToggleInterval
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Fake is an in-memory Toggle.
type Fake struct {
	name string

	mu      sync.Mutex
	state   State
	err     error
	toggles int
}

// NewFake returns a Fake in the given state.
func NewFake(name string, initial State) *Fake {
	return &Fake{name: name, state: initial}
}

func (f *Fake) Name() string { return f.name }

func (f *Fake) State(context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return StateUnreachable, f.err
	}
	return f.state, nil
}

func (f *Fake) Toggle(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.toggles++
	switch f.state {
	case StateOn:
		f.state = StateOff
	case StateOff:
		f.state = StateOn
	default:
		return ErrUnknownState
	}
	return nil
}

// SetError makes the device fail (nil restores it).
func (f *Fake) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Toggles returns the number of successful toggles.
func (f *Fake) Toggles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toggles
}
