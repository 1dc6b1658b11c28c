package internal

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/arrival-display/internal/clock"
	"github.com/sweeney/arrival-display/internal/coordinator"
	"github.com/sweeney/arrival-display/internal/device"
	"github.com/sweeney/arrival-display/internal/display"
	"github.com/sweeney/arrival-display/internal/feed"
	"github.com/sweeney/arrival-display/internal/gpio"
	"github.com/sweeney/arrival-display/internal/indicator"
	"github.com/sweeney/arrival-display/internal/input"
	"github.com/sweeney/arrival-display/internal/lcd"
	"github.com/sweeney/arrival-display/internal/logging/logtest"
	"github.com/sweeney/arrival-display/internal/logic"
	"github.com/sweeney/arrival-display/internal/mqtt"
	"github.com/sweeney/arrival-display/internal/netcheck"
)

var (
	idle  = logic.Sample{}
	up    = logic.Sample{}.With(logic.ButtonUp)
	down  = logic.Sample{}.With(logic.ButtonDown)
	left  = logic.Sample{}.With(logic.ButtonLeft)
	right = logic.Sample{}.With(logic.ButtonRight)
	ok    = logic.Sample{}.With(logic.ButtonOK)
)

// appliance is the whole HMI wired to fakes, stepped by hand.
type appliance struct {
	clock    *clock.Fake
	buttons  *gpio.FakeReader
	source   *input.Source
	screen   *lcd.Fake
	ledLine  *gpio.FakeWriter
	led      *indicator.Scheduler
	disp     *display.Controller
	coord    *coordinator.Coordinator
	arrivals *feed.Static[[]logic.Arrival]
	client   *mqtt.FakeClient
	relay    *gpio.FakeWriter
	bulb     *device.Fake
}

func newAppliance(t *testing.T, samples []logic.Sample) *appliance {
	t.Helper()
	log := logtest.New(t)
	start := time.Date(2026, 10, 14, 7, 50, 0, 0, time.UTC)

	a := &appliance{
		clock:    clock.NewFake(start),
		buttons:  gpio.NewFakeReader(samples),
		screen:   lcd.NewFake(),
		ledLine:  gpio.NewFakeWriter(),
		arrivals: feed.NewStatic([]logic.Arrival{}),
		client:   mqtt.NewFakeClient(),
		relay:    gpio.NewFakeWriter(),
		bulb:     device.NewFake("Main bulb", device.StateOn),
	}
	a.source = input.New(a.buttons, log)

	disp, err := display.New(display.Deps{
		LCD:      a.screen,
		Arrivals: a.arrivals,
		Weather:  feed.NewStatic(logic.Weather{Temperature: 18, Humidity: 60}),
		Devices:  []device.Toggle{device.NewRelay("Printer", a.relay, -1), a.bulb},
		Probe:    &netcheck.Fake{},
		Clock:    a.clock,
		Log:      log,
	}, display.Config{LineLabel: "79-Ramon", NightTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("display.New: %v", err)
	}
	a.disp = disp

	led, err := indicator.New(a.ledLine, a.clock, log)
	if err != nil {
		t.Fatalf("indicator.New: %v", err)
	}
	a.led = led
	t.Cleanup(func() { led.Close() })

	events := mqtt.NewEvents(a.client, "", "")
	a.coord = coordinator.New(coordinator.Options{
		Events:    a.source,
		Display:   disp,
		Indicator: led,
		Arrivals:  a.arrivals,
		Log:       log,
		OnEvent: func(ts time.Time, s logic.Sample, mode logic.DisplayMode) {
			if err := events.PublishButton(ts, s, mode); err != nil {
				t.Errorf("publish button: %v", err)
			}
		},
	})
	return a
}

// step runs one poll, one coordinator tick and one render pass.
func (a *appliance) step(t *testing.T) {
	t.Helper()
	if err := a.source.Poll(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	a.coord.Tick(context.Background(), a.clock.Now())
	a.disp.RenderOnce(context.Background())
}

func (a *appliance) steps(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		a.step(t)
	}
}

// TestIntegrationNavigation walks every screen from the buttons and checks
// what ends up on the LCD and on MQTT.
func TestIntegrationNavigation(t *testing.T) {
	samples := []logic.Sample{
		idle,
		right, idle, // Weather
		right, idle, // Switches
		down, idle, // select Main bulb
		ok, idle, // toggle Main bulb
		up, idle, // back to Printer
		ok, idle, // toggle Printer relay
		right, idle, // Settings
		right, idle, // wraps to Arrivals
		left, idle, // Settings again
	}
	a := newAppliance(t, samples)

	a.steps(t, 3)
	if !strings.HasPrefix(a.screen.Line(0), " Weather") {
		t.Errorf("after RIGHT: header %q, want Weather", a.screen.Line(0))
	}
	if !strings.HasPrefix(a.screen.Line(1), "T: 18/") {
		t.Errorf("weather row: got %q", a.screen.Line(1))
	}

	a.steps(t, 2)
	if a.disp.Mode() != logic.ModeSwitches {
		t.Fatalf("mode: got %v, want SWITCHES", a.disp.Mode())
	}

	a.steps(t, 4)
	if a.disp.SelectedLine() != 1 {
		t.Errorf("selected line: got %d, want 1", a.disp.SelectedLine())
	}
	if a.bulb.Toggles() != 1 {
		t.Errorf("bulb toggles: got %d, want 1", a.bulb.Toggles())
	}

	a.steps(t, 4)
	if a.disp.SelectedLine() != 0 {
		t.Errorf("selected line: got %d, want 0", a.disp.SelectedLine())
	}
	if v, _ := a.relay.Value(); v != 1 {
		t.Errorf("relay level: got %d, want 1", v)
	}
	// device toggles show up on the next once-per-second redraw
	a.clock.Advance(time.Second)
	a.disp.RenderOnce(context.Background())
	if got := a.screen.Line(1); got != ">Printer          ON" {
		t.Errorf("printer row: got %q", got)
	}

	a.steps(t, 2)
	if !strings.HasPrefix(a.screen.Line(0), " Settings") {
		t.Errorf("header %q, want Settings", a.screen.Line(0))
	}
	if a.disp.SelectedLine() != 0 {
		t.Errorf("selection not clamped on settings: %d", a.disp.SelectedLine())
	}

	a.steps(t, 2)
	if a.disp.Mode() != logic.ModeArrivals {
		t.Errorf("mode: got %v, want ARRIVALS after wrap", a.disp.Mode())
	}
	a.steps(t, 2)
	if a.disp.Mode() != logic.ModeSettings {
		t.Errorf("mode: got %v, want SETTINGS after LEFT", a.disp.Mode())
	}

	msgs := a.client.PublishedTo(mqtt.TopicButtons)
	if len(msgs) != 9 {
		t.Fatalf("button events: got %d, want 9", len(msgs))
	}
	var first mqtt.ButtonPayload
	if err := json.Unmarshal(msgs[0].Payload, &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(first.Buttons) != 1 || first.Buttons[0] != "RIGHT" || first.Mode != "ARRIVALS" {
		t.Errorf("first button payload: %+v", first)
	}
}

// TestIntegrationHeldButtonIsOneEvent checks that a held button produces a
// single event however many polls see it.
func TestIntegrationHeldButtonIsOneEvent(t *testing.T) {
	a := newAppliance(t, []logic.Sample{idle, right, right, right, right, idle})
	a.steps(t, 6)
	if a.disp.Mode() != logic.ModeWeather {
		t.Errorf("mode: got %v, want WEATHER", a.disp.Mode())
	}
	if a.coord.Handled() != 1 {
		t.Errorf("handled: got %d, want 1", a.coord.Handled())
	}
}

// TestIntegrationUrgencyCountdown follows one bus from 12 minutes out to
// departure and checks the LED at each tier.
func TestIntegrationUrgencyCountdown(t *testing.T) {
	a := newAppliance(t, []logic.Sample{idle})
	bus := a.clock.Now().Add(12 * time.Minute)
	a.arrivals.Set([]logic.Arrival{{At: bus, RealTime: true}})

	check := func(minutesLeft float64, want logic.IndicatorCommand) {
		t.Helper()
		target := bus.Add(-time.Duration(minutesLeft * float64(time.Minute)))
		a.clock.Advance(target.Sub(a.clock.Now()))
		a.step(t)
		if got := a.led.Command(); got != want {
			t.Errorf("%.1f min left: got %+v, want %+v", minutesLeft, got, want)
		}
	}

	check(12, logic.IndicatorOff)
	check(9.5, logic.IndicatorOn)
	check(6.5, logic.Blink(logic.SlowBlink))
	check(6.2, logic.Blink(logic.SlowBlink))
	check(3.5, logic.Blink(logic.FastBlink))
	check(1.5, logic.IndicatorOff)

	if a.led.Restarts() != 2 {
		t.Errorf("blink restarts: got %d, want 2", a.led.Restarts())
	}
	if v, _ := a.ledLine.Value(); v != 0 {
		t.Errorf("LED level after departure: got %d, want 0", v)
	}

	if !strings.HasPrefix(a.screen.Line(1), "79-Ramon  00:01:30") {
		t.Errorf("arrival row: got %q", a.screen.Line(1))
	}
}

// TestIntegrationBlinkTogglesLine checks the LED line actually flips while
// blinking and stops when the bus is gone.
func TestIntegrationBlinkTogglesLine(t *testing.T) {
	a := newAppliance(t, []logic.Sample{idle})
	a.arrivals.Set([]logic.Arrival{{At: a.clock.Now().Add(3*time.Minute + 30*time.Second), RealTime: true}})
	a.step(t)

	before := len(a.ledLine.Writes())
	a.clock.Advance(time.Second)
	flips := len(a.ledLine.Writes()) - before
	if flips != 4 {
		t.Errorf("fast blink flips in 1s: got %d, want 4", flips)
	}

	a.arrivals.Set([]logic.Arrival{})
	a.step(t)
	after := len(a.ledLine.Writes())
	a.clock.Advance(time.Second)
	if len(a.ledLine.Writes()) != after {
		t.Error("LED kept blinking after the snapshot emptied")
	}
	if v, _ := a.ledLine.Value(); v != 0 {
		t.Errorf("LED level: got %d, want 0", v)
	}
}

// TestIntegrationOverride cycles the LED override from the Arrivals screen.
func TestIntegrationOverride(t *testing.T) {
	a := newAppliance(t, []logic.Sample{idle, ok, idle, ok, idle, ok, idle})
	a.arrivals.Set([]logic.Arrival{{At: a.clock.Now().Add(6 * time.Minute), RealTime: true}})

	want := []logic.IndicatorCommand{
		logic.Blink(logic.SlowBlink), // idle
		logic.IndicatorOff,           // Muted
		logic.IndicatorOff,
		logic.IndicatorOn, // Steady
		logic.IndicatorOn,
		logic.Blink(logic.SlowBlink), // Auto
	}
	for i, w := range want {
		a.step(t)
		if got := a.led.Command(); got != w {
			t.Errorf("step %d: got %+v, want %+v", i, got, w)
		}
	}
}

// TestIntegrationNightMode enables night mode from the Settings screen and
// checks that inactivity turns the backlight off once and a press wakes it.
func TestIntegrationNightMode(t *testing.T) {
	samples := []logic.Sample{
		idle,
		left, idle, // Settings
		ok, idle, // night mode on
	}
	a := newAppliance(t, samples)
	a.steps(t, len(samples))
	if !a.disp.NightMode() {
		t.Fatal("night mode not enabled")
	}
	if got := a.screen.Line(1); got != ">Night mode       ON" {
		t.Errorf("settings row: got %q", got)
	}

	a.clock.Advance(4 * time.Second)
	if !a.screen.Backlight() {
		t.Fatal("backlight off before the timeout")
	}
	a.clock.Advance(2 * time.Second)
	if a.screen.Backlight() {
		t.Fatal("backlight still on after the timeout")
	}
	a.clock.Advance(time.Minute)
	if a.disp.Blackouts() != 1 {
		t.Errorf("blackouts: got %d, want 1", a.disp.Blackouts())
	}

	if err := a.source.Inject(up); err != nil {
		t.Fatalf("inject: %v", err)
	}
	a.coord.Tick(context.Background(), a.clock.Now())
	if !a.screen.Backlight() {
		t.Error("button press did not wake the backlight")
	}
	a.clock.Advance(4 * time.Second)
	if !a.screen.Backlight() {
		t.Error("countdown was not restarted by the press")
	}
	a.clock.Advance(2 * time.Second)
	if a.screen.Backlight() || a.disp.Blackouts() != 2 {
		t.Errorf("second blackout: backlight=%v blackouts=%d", a.screen.Backlight(), a.disp.Blackouts())
	}
}
