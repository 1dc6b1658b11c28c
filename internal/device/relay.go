package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/arrival-display/internal/gpio"
)

// Relay is a device switched by a GPIO output line.
type Relay struct {
	name    string
	mu      sync.Mutex
	out     gpio.Writer
	limiter *rate.Limiter
}

// NewRelay wraps out. interval bounds the toggle rate (0 = default).
func NewRelay(name string, out gpio.Writer, interval time.Duration) *Relay {
	return &Relay{name: name, out: out, limiter: newLimiter(interval)}
}

func (r *Relay) Name() string { return r.name }

// State reads back the output level.
func (r *Relay) State(context.Context) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.out.Value()
	if err != nil {
		return StateUnknown, fmt.Errorf("relay %s: read: %w", r.name, err)
	}
	if v != 0 {
		return StateOn, nil
	}
	return StateOff, nil
}

// Toggle inverts the output level.
func (r *Relay) Toggle(context.Context) error {
	if !r.limiter.Allow() {
		return fmt.Errorf("relay %s: %w", r.name, ErrRateLimited)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.out.Value()
	if err != nil {
		return fmt.Errorf("relay %s: read: %w", r.name, err)
	}
	next := 1
	if v != 0 {
		next = 0
	}
	if err := r.out.Set(next); err != nil {
		return fmt.Errorf("relay %s: write: %w", r.name, err)
	}
	return nil
}
