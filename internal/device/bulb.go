package device

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/arrival-display/internal/mqtt"
)

// DefaultQueryTimeout bounds how long State waits for a reply.
const DefaultQueryTimeout = 2 * time.Second

// Bulb is a smart bulb or plug speaking the Tasmota MQTT convention:
// commands on cmnd/<topic>/POWER, state reports on stat/<topic>/POWER.
type Bulb struct {
	name    string
	client  mqtt.Client
	cmnd    string
	stat    string
	timeout time.Duration
	limiter *rate.Limiter
	log     *slog.Logger

	mu      sync.Mutex
	state   State
	updated chan struct{} // closed and replaced on every report
}

// NewBulb subscribes to the device's state topic.
func NewBulb(name, topic string, client mqtt.Client, timeout, interval time.Duration, log *slog.Logger) (*Bulb, error) {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	b := &Bulb{
		name:    name,
		client:  client,
		cmnd:    "cmnd/" + topic + "/POWER",
		stat:    "stat/" + topic + "/POWER",
		timeout: timeout,
		limiter: newLimiter(interval),
		log:     log.With("device", name),
		state:   StateUnknown,
		updated: make(chan struct{}),
	}
	if err := client.Subscribe(b.stat, 0, b.onReport); err != nil {
		return nil, fmt.Errorf("bulb %s: subscribe: %w", name, err)
	}
	return b, nil
}

func (b *Bulb) Name() string { return b.name }

func parsePower(payload []byte) State {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "1":
		return StateOn
	case "OFF", "0":
		return StateOff
	}
	return StateUnknown
}

func (b *Bulb) onReport(_ string, payload []byte) {
	s := parsePower(payload)
	b.mu.Lock()
	b.state = s
	close(b.updated)
	b.updated = make(chan struct{})
	b.mu.Unlock()
	b.log.Debug("state report", "state", s)
}

// State sends an empty POWER command (a query) and waits for the report,
// bounded by ctx and the query timeout.
func (b *Bulb) State(ctx context.Context) (State, error) {
	if !b.client.IsConnected() {
		return StateUnreachable, fmt.Errorf("bulb %s: broker: %w", b.name, ErrUnreachable)
	}

	b.mu.Lock()
	wait := b.updated
	b.mu.Unlock()

	if err := b.client.Publish(b.cmnd, 0, false, nil); err != nil {
		return StateUnreachable, fmt.Errorf("bulb %s: query: %w", b.name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	select {
	case <-wait:
	case <-ctx.Done():
		return StateUnreachable, fmt.Errorf("bulb %s: %w", b.name, ErrUnreachable)
	}

	b.mu.Lock()
	s := b.state
	b.mu.Unlock()
	if s == StateUnknown {
		return s, fmt.Errorf("bulb %s: %w", b.name, ErrUnknownState)
	}
	return s, nil
}

// Last returns the most recently reported state without querying.
func (b *Bulb) Last() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Toggle publishes POWER TOGGLE.
func (b *Bulb) Toggle(context.Context) error {
	if !b.limiter.Allow() {
		return fmt.Errorf("bulb %s: %w", b.name, ErrRateLimited)
	}
	if err := b.client.Publish(b.cmnd, 0, false, []byte("TOGGLE")); err != nil {
		return fmt.Errorf("bulb %s: toggle: %w", b.name, err)
	}
	return nil
}
