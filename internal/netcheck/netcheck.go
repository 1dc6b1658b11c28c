// Package netcheck probes internet reachability.
package netcheck

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Default probe target and timeout.
const (
	DefaultAddr    = "8.8.8.8:53"
	DefaultTimeout = time.Second
)

// Prober reports whether the internet is reachable.
type Prober interface {
	Check(ctx context.Context) error
}

// TCP dials a well-known address and reports success if the handshake
// completes within the timeout.
type TCP struct {
	Addr    string
	Timeout time.Duration

	dialer net.Dialer
}

// NewTCP returns a TCP prober; empty addr and zero timeout use the defaults.
func NewTCP(addr string, timeout time.Duration) *TCP {
	if addr == "" {
		addr = DefaultAddr
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TCP{Addr: addr, Timeout: timeout}
}

// Check dials Addr once.
func (p *TCP) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.Addr, err)
	}
	return conn.Close()
}

// Fake is a Prober whose result is set by the test.
type Fake struct {
	mu     sync.Mutex
	err    error
	checks int
}

// SetError sets the result of subsequent checks (nil = reachable).
func (f *Fake) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *Fake) Check(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.err
}

// Checks returns the number of probes made.
func (f *Fake) Checks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}
