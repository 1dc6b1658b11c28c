// Package feed fetches and caches the arrival and weather snapshots shown on
// the display. Reads never block on the network.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/sweeney/arrival-display/internal/metrics"
)

// ErrEmptySnapshot is returned by fetchers when the upstream answered with
// no usable data.
var ErrEmptySnapshot = errors.New("empty snapshot")

// Fetcher retrieves one snapshot from upstream.
type Fetcher[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// BreakerConfig configures the circuit breaker in front of a fetcher.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

const (
	defaultMaxFailures = 3
	defaultOpenTimeout = 2 * time.Minute
)

// Status is a point-in-time view of a feed for the status page.
type Status struct {
	Name      string
	Updated   time.Time
	LastError string
	Breaker   string
}

// Feed caches the latest successful snapshot of a Fetcher.
type Feed[T any] struct {
	name    string
	fetcher Fetcher[T]
	breaker *gobreaker.CircuitBreaker[T]
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	value   T
	have    bool
	updated time.Time
	lastErr error
}

// New wraps fetcher with a cache and circuit breaker.
func New[T any](name string, fetcher Fetcher[T], cfg BreakerConfig, log *slog.Logger, m *metrics.Metrics) *Feed[T] {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOpenTimeout
	}
	log = log.With("feed", name)

	f := &Feed[T]{
		name:    name,
		fetcher: fetcher,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
	f.breaker = gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        "feed:" + name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return f
}

// Name returns the feed name.
func (f *Feed[T]) Name() string { return f.name }

// Refresh fetches a new snapshot. On failure the previous snapshot is kept.
func (f *Feed[T]) Refresh(ctx context.Context) error {
	v, err := f.breaker.Execute(func() (T, error) {
		return f.fetcher.Fetch(ctx)
	})
	f.metrics.FeedRefresh(f.name, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastErr = err
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			f.log.Debug("refresh skipped, breaker open")
		} else {
			f.log.Warn("refresh failed", "err", err)
		}
		return fmt.Errorf("refresh %s: %w", f.name, err)
	}
	f.value = v
	f.have = true
	f.updated = f.now()
	f.log.Debug("refreshed")
	return nil
}

// Read returns the cached snapshot and whether one has ever been fetched.
func (f *Feed[T]) Read() (T, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value, f.have
}

// Status reports the feed health.
func (f *Feed[T]) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := Status{Name: f.name, Updated: f.updated, Breaker: f.breaker.State().String()}
	if f.lastErr != nil {
		s.LastError = f.lastErr.Error()
	}
	return s
}

// Static is a fixed snapshot source for tests and offline runs.
type Static[T any] struct {
	mu    sync.RWMutex
	value T
	have  bool
}

// NewStatic returns a Static holding v.
func NewStatic[T any](v T) *Static[T] {
	return &Static[T]{value: v, have: true}
}

// Set replaces the snapshot.
func (s *Static[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	s.have = true
	s.mu.Unlock()
}

// Clear forgets the snapshot.
func (s *Static[T]) Clear() {
	var zero T
	s.mu.Lock()
	s.value = zero
	s.have = false
	s.mu.Unlock()
}

func (s *Static[T]) Read() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.have
}
