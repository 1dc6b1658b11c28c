// Package input turns polled button lines into an ordered queue of button events.
package input

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/temoto/alive/v2"

	"github.com/sweeney/arrival-display/internal/gpio"
	"github.com/sweeney/arrival-display/internal/logic"
)

// ErrStopped is returned by Poll after Stop.
var ErrStopped = errors.New("input: source stopped")

// ErrIdle is returned by Inject for an all-idle sample.
var ErrIdle = errors.New("input: idle sample is not an event")

// Source polls the button lines, debounces them and queues accepted events.
// One producer (the poll loop or Inject) and one consumer (Read).
type Source struct {
	reader gpio.Reader
	log    *slog.Logger
	alive  *alive.Alive

	mu       sync.Mutex
	stopped  bool
	debounce logic.Debouncer
	queue    []logic.Sample
	accepted int

	observer func(logic.Sample)
}

// New creates a Source reading from reader.
func New(reader gpio.Reader, log *slog.Logger) *Source {
	return &Source{
		reader: reader,
		log:    log,
		alive:  alive.NewAlive(),
	}
}

// SetObserver registers fn to be called (outside the queue lock) for every
// accepted event. Must be called before Run.
func (s *Source) SetObserver(fn func(logic.Sample)) {
	s.observer = fn
}

// Prime reads the lines once and uses that sample as the debounce reference,
// so buttons held at startup are not reported.
func (s *Source) Prime() error {
	sample, err := s.reader.Read()
	if err != nil {
		return fmt.Errorf("prime buttons: %w", err)
	}
	s.mu.Lock()
	s.debounce.Prime(sample)
	s.mu.Unlock()
	return nil
}

// Poll reads the five lines once and queues the sample if it is an event.
// A read fault is returned to the caller; the sample is discarded.
func (s *Source) Poll() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	sample, err := s.reader.Read()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("poll buttons: %w", err)
	}
	if !s.debounce.Process(sample) {
		s.mu.Unlock()
		return nil
	}
	s.enqueueLocked(sample)
	s.mu.Unlock()

	s.notify(sample)
	return nil
}

// Inject queues sample as if it had been polled. Debug use only.
func (s *Source) Inject(sample logic.Sample) error {
	if sample.Idle() {
		return ErrIdle
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.enqueueLocked(sample)
	s.mu.Unlock()

	s.notify(sample)
	return nil
}

func (s *Source) enqueueLocked(sample logic.Sample) {
	s.queue = append(s.queue, sample)
	s.accepted++
}

func (s *Source) notify(sample logic.Sample) {
	s.log.Info("button pressed", "buttons", sample.String())
	if s.observer != nil {
		s.observer(sample)
	}
}

// Read pops the oldest queued event. ok is false when the queue is empty.
// Never blocks.
func (s *Source) Read() (sample logic.Sample, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return sample, false
	}
	sample = s.queue[0]
	s.queue[0] = logic.Sample{}
	s.queue = s.queue[1:]
	return sample, true
}

// Pending returns the number of queued events.
func (s *Source) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Accepted returns the number of events queued since start.
func (s *Source) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Run polls on every tick until Stop. A GPIO fault ends the loop and is
// returned so the caller can surface it.
func (s *Source) Run(tick <-chan time.Time) error {
	if !s.alive.Add(1) {
		return ErrStopped
	}
	defer s.alive.Done()

	s.log.Info("button poll loop started")
	stopch := s.alive.StopChan()
	for {
		select {
		case <-stopch:
			s.log.Info("button poll loop stopped")
			return nil
		case <-tick:
			err := s.Poll()
			if errors.Is(err, ErrStopped) {
				return nil
			}
			if err != nil {
				s.log.Error("button poll failed", "error", err)
				return err
			}
		}
	}
}

// Stop halts polling. Safe to call any number of times from any goroutine;
// no sample is queued by the poller after it returns.
func (s *Source) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.alive.Stop()
}

// Wait blocks until Stop was called and Run has returned.
func (s *Source) Wait() {
	s.alive.Wait()
}
