// Package indicator drives the status LED: steady level or blinking with a
// self-rescheduling timer.
package indicator

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/sweeney/arrival-display/internal/clock"
	"github.com/sweeney/arrival-display/internal/gpio"
	"github.com/sweeney/arrival-display/internal/logic"
)

// ErrBadOption is returned for options that make no sense for the mode.
var ErrBadOption = errors.New("indicator: invalid option")

// Scheduler owns one output line. All methods are safe for concurrent use.
type Scheduler struct {
	out   gpio.Writer
	clock clock.Clock
	log   *slog.Logger

	mu        sync.Mutex
	requested logic.IndicatorCommand
	effective logic.IndicatorCommand
	level     int // last persistent level
	phase     int
	timer     clock.Timer
	gen       uint64 // bumped on every cancel; stale callbacks compare against it
	restarts  int

	onRestart func()
}

// New creates a Scheduler and drives the line low.
func New(out gpio.Writer, clk clock.Clock, log *slog.Logger) (*Scheduler, error) {
	if err := out.Set(0); err != nil {
		return nil, fmt.Errorf("init indicator: %w", err)
	}
	return &Scheduler{
		out:       out,
		clock:     clk,
		log:       log,
		requested: logic.IndicatorOff,
		effective: logic.IndicatorOff,
	}, nil
}

// SetRestartHook registers fn to be called every time the blink timer is
// (re)started. Must be called before the first Set.
func (s *Scheduler) SetRestartHook(fn func()) {
	s.onRestart = fn
}

// Apply is Set with a command value.
func (s *Scheduler) Apply(cmd logic.IndicatorCommand) error {
	return s.Set(cmd.Mode, cmd.Option)
}

// Set requests a new mode. Re-issuing the last effective command is a no-op:
// the blink phase is kept and the line is not rewritten.
//
// Persistent: option is the level (0 or 1); any blink timer is cancelled.
// Blinking: option is the half period in seconds; 0 cancels blinking and
// restores the last persistent level.
func (s *Scheduler) Set(mode logic.IndicatorMode, option float64) error {
	cmd := logic.IndicatorCommand{Mode: mode, Option: option}
	if err := validate(cmd); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requested = cmd

	switch mode {
	case logic.Persistent:
		s.haltLocked()
		level := int(option)
		if cmd == s.effective {
			s.level = level
			return nil
		}
		if err := s.out.Set(level); err != nil {
			return fmt.Errorf("indicator set level %d: %w", level, err)
		}
		s.effective = cmd
		s.level = level
		s.log.Info("led switched", "mode", mode, "option", option)
		return nil

	case logic.Blinking:
		if option == 0 {
			return s.stopBlinkLocked()
		}
		if cmd == s.effective {
			return nil
		}
		s.cancelLocked()
		s.effective = cmd
		s.restarts++
		s.log.Info("led switched", "mode", mode, "option", option)
		if s.onRestart != nil {
			s.onRestart()
		}
		s.blinkLocked(s.gen)
		return nil
	}
	return nil
}

func validate(cmd logic.IndicatorCommand) error {
	switch cmd.Mode {
	case logic.Persistent:
		if cmd.Option != 0 && cmd.Option != 1 {
			return fmt.Errorf("%w: level %v (want 0 or 1)", ErrBadOption, cmd.Option)
		}
	case logic.Blinking:
		if cmd.Option < 0 || math.IsNaN(cmd.Option) || math.IsInf(cmd.Option, 0) {
			return fmt.Errorf("%w: period %v", ErrBadOption, cmd.Option)
		}
	default:
		return fmt.Errorf("%w: mode %d", ErrBadOption, cmd.Mode)
	}
	return nil
}

func (s *Scheduler) stopBlinkLocked() error {
	want := logic.IndicatorCommand{Mode: logic.Persistent, Option: float64(s.level)}
	if !s.haltLocked() && s.effective == want {
		return nil
	}
	if err := s.out.Set(s.level); err != nil {
		return fmt.Errorf("indicator restore level %d: %w", s.level, err)
	}
	s.effective = want
	return nil
}

// blinkLocked flips the phase, writes it and schedules the next flip.
func (s *Scheduler) blinkLocked(gen uint64) {
	s.phase ^= 1
	if err := s.out.Set(s.phase); err != nil {
		s.log.Error("led blink write failed", "error", err)
	}
	s.log.Debug("led state", "phase", s.phase)
	s.timer = s.clock.AfterFunc(s.effective.Period(), func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// cancelled after this callback was already due
		return
	}
	s.blinkLocked(gen)
}

func (s *Scheduler) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// haltLocked stops a running blink and records the phase left on the line
// as the effective level. It reports whether a blink was running.
func (s *Scheduler) haltLocked() bool {
	s.cancelLocked()
	if s.effective.Mode != logic.Blinking {
		return false
	}
	s.effective = logic.IndicatorCommand{Mode: logic.Persistent, Option: float64(s.phase)}
	return true
}

// Cancel stops any pending blink. Idempotent and safe from any goroutine;
// once it returns the timer performs no further writes and the line keeps
// its current level.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.haltLocked()
	s.mu.Unlock()
}

// Close cancels blinking and drives the line low.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.effective = logic.IndicatorOff
	s.level = 0
	return s.out.Set(0)
}

// Command returns the last effective command.
func (s *Scheduler) Command() logic.IndicatorCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effective
}

// Requested returns the last command passed to Set.
func (s *Scheduler) Requested() logic.IndicatorCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// Restarts returns how many times the blink timer was started.
func (s *Scheduler) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}
