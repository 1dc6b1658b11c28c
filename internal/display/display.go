// Package display owns the character display: an autonomous render loop and
// user-driven mode, selection and backlight changes that never overlap.
package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/temoto/alive/v2"

	"github.com/sweeney/arrival-display/internal/clock"
	"github.com/sweeney/arrival-display/internal/device"
	"github.com/sweeney/arrival-display/internal/lcd"
	"github.com/sweeney/arrival-display/internal/logic"
	"github.com/sweeney/arrival-display/internal/metrics"
	"github.com/sweeney/arrival-display/internal/netcheck"
)

// ErrStopped is returned by Run after Stop.
var ErrStopped = errors.New("display: stopped")

// ArrivalSource provides the cached arrival snapshot.
type ArrivalSource interface {
	Read() ([]logic.Arrival, bool)
}

// WeatherSource provides the cached weather snapshot.
type WeatherSource interface {
	Read() (logic.Weather, bool)
}

// Config holds display behaviour settings.
type Config struct {
	LineLabel     string        `yaml:"line_label"`
	NightTimeout  time.Duration `yaml:"night_timeout"`
	DeviceTimeout time.Duration `yaml:"device_timeout"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
}

// Defaults.
const (
	DefaultNightTimeout  = 5 * time.Second
	DefaultDeviceTimeout = time.Second
	DefaultProbeTimeout  = time.Second

	spinInterval = time.Millisecond
)

// MaxDevices is the number of device rows below the header.
const MaxDevices = lcd.Rows - 1

// Deps are the collaborators of a Controller.
type Deps struct {
	LCD      lcd.Device
	Arrivals ArrivalSource
	Weather  WeatherSource
	Devices  []device.Toggle
	Probe    netcheck.Prober
	Clock    clock.Clock
	Log      *slog.Logger
	Metrics  *metrics.Metrics
}

// Controller renders the four screens.
//
// available is a cooperative flag: whoever flips it from true to false owns
// the screen and the mode/selection state until it sets it back. Set,
// SetBacklight, MoveSelection and ToggleNightMode wait for it; a render pass
// that finds it taken is skipped.
type Controller struct {
	dev      lcd.Device
	arrivals ArrivalSource
	weather  WeatherSource
	devices  []device.Toggle
	probe    netcheck.Prober
	clock    clock.Clock
	log      *slog.Logger
	metrics  *metrics.Metrics
	cfg      Config
	alive    *alive.Alive

	available atomic.Bool

	// owned by the holder of available
	offline    bool
	dirty      bool
	lastSecond time.Time

	// mirrors for lock-free readers
	mode      atomic.Int32
	selected  atomic.Int32
	connected atomic.Bool
	light     atomic.Bool

	nightMu    sync.Mutex
	night      bool
	nightTimer clock.Timer
	nightGen   uint64
	blackouts  int
}

// New shows the splash screen and returns a Controller on the Arrivals screen.
func New(d Deps, cfg Config) (*Controller, error) {
	if cfg.NightTimeout <= 0 {
		cfg.NightTimeout = DefaultNightTimeout
	}
	if cfg.DeviceTimeout <= 0 {
		cfg.DeviceTimeout = DefaultDeviceTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if len(d.Devices) > MaxDevices {
		return nil, fmt.Errorf("display: %d devices, at most %d fit", len(d.Devices), MaxDevices)
	}

	c := &Controller{
		dev:       d.LCD,
		arrivals:  d.Arrivals,
		weather:   d.Weather,
		devices:   d.Devices,
		probe:     d.Probe,
		clock:     d.Clock,
		log:       d.Log.With("component", "display"),
		metrics:   d.Metrics,
		cfg:       cfg,
		alive:     alive.NewAlive(),
		dirty:     true,
	}
	c.available.Store(true)
	c.connected.Store(true)
	c.light.Store(true)
	c.mode.Store(int32(logic.ModeArrivals))

	if err := c.dev.Clear(); err != nil {
		return nil, fmt.Errorf("init display: %w", err)
	}
	if err := c.writeScreen(splashScreen); err != nil {
		return nil, fmt.Errorf("init display: %w", err)
	}
	if err := c.dev.SetBacklight(true); err != nil {
		return nil, fmt.Errorf("init display: %w", err)
	}
	return c, nil
}

func (c *Controller) acquire() {
	for !c.available.CompareAndSwap(true, false) {
		time.Sleep(spinInterval)
	}
}

func (c *Controller) tryAcquire() bool {
	return c.available.CompareAndSwap(true, false)
}

func (c *Controller) release() {
	c.available.Store(true)
}

// Available reports whether nobody holds the screen.
func (c *Controller) Available() bool {
	return c.available.Load()
}

// rows is the number of selectable rows on mode.
func (c *Controller) rows(mode logic.DisplayMode) int {
	switch mode {
	case logic.ModeSwitches:
		return len(c.devices)
	case logic.ModeSettings:
		return 1
	}
	return 0
}

// Set switches to mode, clearing the screen. The selection is kept but
// clamped to the row count of the new screen.
func (c *Controller) Set(mode logic.DisplayMode) error {
	if !mode.Valid() {
		return fmt.Errorf("display: invalid mode %d", mode)
	}
	c.acquire()
	defer c.release()

	err := c.dev.Clear()
	c.dirty = true
	c.mode.Store(int32(mode))
	c.selected.Store(int32(logic.Clamp(int(c.selected.Load()), c.rows(mode))))
	c.log.Info("screen switched", "mode", mode.String())
	if err != nil {
		return fmt.Errorf("display: clear: %w", err)
	}
	return nil
}

// SetBacklight switches the backlight.
func (c *Controller) SetBacklight(on bool) error {
	c.acquire()
	defer c.release()
	return c.setBacklightLocked(on)
}

func (c *Controller) setBacklightLocked(on bool) error {
	if err := c.dev.SetBacklight(on); err != nil {
		return fmt.Errorf("display: backlight: %w", err)
	}
	c.light.Store(on)
	return nil
}

// MoveSelection moves the cursor by delta rows, wrapping. It does nothing
// on screens without selectable rows.
func (c *Controller) MoveSelection(delta int) {
	c.acquire()
	defer c.release()

	mode := logic.DisplayMode(c.mode.Load())
	c.selected.Store(int32(logic.Step(int(c.selected.Load()), delta, c.rows(mode))))
	c.dirty = true
}

// Mode returns the active screen.
func (c *Controller) Mode() logic.DisplayMode {
	return logic.DisplayMode(c.mode.Load())
}

// SelectedLine returns the cursor row index.
func (c *Controller) SelectedLine() int {
	return int(c.selected.Load())
}

// SelectedDevice returns the device under the cursor on the Switches screen.
func (c *Controller) SelectedDevice() (device.Toggle, bool) {
	if c.Mode() != logic.ModeSwitches {
		return nil, false
	}
	i := c.SelectedLine()
	if i < 0 || i >= len(c.devices) {
		return nil, false
	}
	return c.devices[i], true
}

// Backlight reports the last backlight state written.
func (c *Controller) Backlight() bool {
	return c.light.Load()
}

// Connected reports the result of the last connectivity probe.
func (c *Controller) Connected() bool {
	return c.connected.Load()
}

// Clear blanks the screen and forces a full redraw on the next pass.
func (c *Controller) Clear() error {
	c.acquire()
	defer c.release()
	c.dirty = true
	if err := c.dev.Clear(); err != nil {
		return fmt.Errorf("display: clear: %w", err)
	}
	return nil
}

// Run renders on every tick until Stop.
func (c *Controller) Run(tick <-chan time.Time) error {
	if !c.alive.Add(1) {
		return ErrStopped
	}
	defer c.alive.Done()

	c.log.Info("render loop started")
	stopch := c.alive.StopChan()
	for {
		select {
		case <-stopch:
			c.log.Info("render loop stopped")
			return nil
		case <-tick:
			c.RenderOnce(context.Background())
		}
	}
}

// Stop ends the render loop and cancels the night-mode countdown.
func (c *Controller) Stop() {
	c.alive.Stop()
	c.nightMu.Lock()
	c.cancelNightLocked()
	c.nightMu.Unlock()
}

// Wait blocks until Run has returned after Stop.
func (c *Controller) Wait() {
	c.alive.Wait()
}
