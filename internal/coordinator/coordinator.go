// Package coordinator maps button events to display and device actions and
// keeps the indicator in line with the nearest arrival.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/arrival-display/internal/device"
	"github.com/sweeney/arrival-display/internal/logic"
	"github.com/sweeney/arrival-display/internal/metrics"
)

// Events is the consumer side of the button queue.
type Events interface {
	Read() (logic.Sample, bool)
}

// Display is the part of the display controller the coordinator drives.
type Display interface {
	Mode() logic.DisplayMode
	Set(mode logic.DisplayMode) error
	MoveSelection(delta int)
	ToggleNightMode() (bool, error)
	Activity() error
	SelectedDevice() (device.Toggle, bool)
}

// Indicator accepts indicator commands.
type Indicator interface {
	Apply(cmd logic.IndicatorCommand) error
}

// ArrivalSource provides the cached arrival snapshot.
type ArrivalSource interface {
	Read() ([]logic.Arrival, bool)
}

// DefaultDeviceTimeout bounds a device toggle.
const DefaultDeviceTimeout = 2 * time.Second

// Coordinator is driven by Tick from a single goroutine.
type Coordinator struct {
	events    Events
	display   Display
	indicator Indicator
	arrivals  ArrivalSource
	log       *slog.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration

	onEvent func(time.Time, logic.Sample, logic.DisplayMode)

	mu       sync.Mutex
	override logic.Override
	command  logic.IndicatorCommand
	handled  int
}

// Options configures a Coordinator.
type Options struct {
	Events        Events
	Display       Display
	Indicator     Indicator
	Arrivals      ArrivalSource
	Log           *slog.Logger
	Metrics       *metrics.Metrics
	DeviceTimeout time.Duration
	// OnEvent, if set, is called for every handled event with the mode
	// that was active when it arrived.
	OnEvent func(time.Time, logic.Sample, logic.DisplayMode)
}

// New returns a Coordinator.
func New(o Options) *Coordinator {
	if o.DeviceTimeout <= 0 {
		o.DeviceTimeout = DefaultDeviceTimeout
	}
	return &Coordinator{
		events:    o.Events,
		display:   o.Display,
		indicator: o.Indicator,
		arrivals:  o.Arrivals,
		log:       o.Log.With("component", "coordinator"),
		metrics:   o.Metrics,
		timeout:   o.DeviceTimeout,
		onEvent:   o.OnEvent,
		command:   logic.IndicatorOff,
	}
}

// Tick handles at most one queued event, then re-issues the indicator
// command for now.
func (c *Coordinator) Tick(ctx context.Context, now time.Time) {
	if s, ok := c.events.Read(); ok {
		c.Handle(ctx, now, s)
	}
	c.updateIndicator(now)
}

// Handle applies one button event. Each pressed button of a combined event
// triggers its own action, in the order OK, RIGHT, LEFT, UP, DOWN.
func (c *Coordinator) Handle(ctx context.Context, now time.Time, s logic.Sample) {
	mode := c.display.Mode()
	c.log.Debug("handling event", "buttons", s.String(), "mode", mode.String())
	c.metrics.ButtonEvent(s.String())

	if err := c.display.Activity(); err != nil {
		c.log.Warn("activity", "err", err)
	}

	if s.Pressed(logic.ButtonOK) {
		c.ok(ctx, mode)
	}
	if s.Pressed(logic.ButtonRight) {
		c.setMode(c.display.Mode().Next())
	}
	if s.Pressed(logic.ButtonLeft) {
		c.setMode(c.display.Mode().Prev())
	}
	if s.Pressed(logic.ButtonUp) {
		c.display.MoveSelection(-1)
	}
	if s.Pressed(logic.ButtonDown) {
		c.display.MoveSelection(1)
	}

	c.mu.Lock()
	c.handled++
	c.mu.Unlock()

	if c.onEvent != nil {
		c.onEvent(now, s, mode)
	}
}

func (c *Coordinator) setMode(m logic.DisplayMode) {
	if err := c.display.Set(m); err != nil {
		c.log.Warn("set mode", "mode", m.String(), "err", err)
	}
}

func (c *Coordinator) ok(ctx context.Context, mode logic.DisplayMode) {
	switch mode {
	case logic.ModeSwitches:
		d, ok := c.display.SelectedDevice()
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		err := d.Toggle(ctx)
		c.metrics.DeviceToggle(d.Name(), err)
		if err != nil {
			c.log.Warn("device toggle failed", "device", d.Name(), "err", err)
			return
		}
		c.log.Info("device toggled", "device", d.Name())

	case logic.ModeSettings:
		if _, err := c.display.ToggleNightMode(); err != nil {
			c.log.Warn("night mode toggle", "err", err)
		}

	default:
		c.mu.Lock()
		c.override = c.override.Next()
		o := c.override
		c.mu.Unlock()
		c.log.Info("indicator override", "override", o.String())
	}
}

func (c *Coordinator) updateIndicator(now time.Time) {
	var arrivals []logic.Arrival
	if c.arrivals != nil {
		arrivals, _ = c.arrivals.Read()
	}

	c.mu.Lock()
	cmd := c.override.Apply(logic.UrgencyAt(arrivals, now))
	c.command = cmd
	c.mu.Unlock()

	if err := c.indicator.Apply(cmd); err != nil {
		c.log.Warn("indicator update failed", "err", err)
	}
}

// Override returns the current indicator override.
func (c *Coordinator) Override() logic.Override {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.override
}

// Command returns the last indicator command issued.
func (c *Coordinator) Command() logic.IndicatorCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command
}

// Handled returns the number of events handled.
func (c *Coordinator) Handled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handled
}
