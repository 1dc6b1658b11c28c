package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"syscall"
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
	"github.com/sweeney/arrival-display/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestFormatState(t *testing.T) {
	s := logic.Sample{}.With(logic.ButtonLeft).With(logic.ButtonOK)
	got := formatState(s)
	want := "UP: OFF, DOWN: OFF, LEFT: ON, RIGHT: OFF, OK: ON"
	if got != want {
		t.Errorf("formatState: got %q, want %q", got, want)
	}
}

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGINT); got != "SIGINT" {
		t.Errorf("SIGINT: got %q", got)
	}
	if got := signalName(syscall.SIGTERM); got != "SIGTERM" {
		t.Errorf("SIGTERM: got %q", got)
	}
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("SIGHUP: got %q", got)
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("http:\n  addr: \":8080\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(flags{config: path})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr: got %q, want :8080", cfg.HTTP.Addr)
	}

	cfg, err = loadConfig(flags{config: path, http: "off", logLevel: "debug"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("HTTP.Addr: got %q, want disabled", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q, want debug", cfg.Log.Level)
	}

	if _, err := loadConfig(flags{http: "nonsense"}); err == nil {
		t.Error("expected validation error for bad --http")
	}
}

// --- runLoop tests ---

type harness struct {
	loop    *loop
	source  *input.Source
	client  *mqtt.FakeClient
	screen  *lcd.Fake
	led     *gpio.FakeWriter
	printer *device.Fake
	feed    *feed.Static[[]logic.Arrival]
	probe   *netcheck.Fake
	disp    *display.Controller
}

var start = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logtest.New(t)
	clk := clock.NewFake(start)

	h := &harness{
		client:  mqtt.NewFakeClient(),
		screen:  lcd.NewFake(),
		led:     gpio.NewFakeWriter(),
		printer: device.NewFake("Printer", device.StateOff),
		feed:    feed.NewStatic([]logic.Arrival{{At: start.Add(6*time.Minute + 30*time.Second), RealTime: true}}),
		probe:   &netcheck.Fake{},
	}
	h.source = input.New(gpio.NewFakeReader([]logic.Sample{{}}), log)

	disp, err := display.New(display.Deps{
		LCD:      h.screen,
		Arrivals: h.feed,
		Weather:  &feed.Static[logic.Weather]{},
		Devices:  []device.Toggle{h.printer},
		Probe:    h.probe,
		Clock:    clk,
		Log:      log,
	}, display.Config{})
	if err != nil {
		t.Fatalf("display.New: %v", err)
	}
	h.disp = disp

	led, err := indicator.New(h.led, clk, log)
	if err != nil {
		t.Fatalf("indicator.New: %v", err)
	}
	t.Cleanup(func() { led.Close() })

	events := mqtt.NewEvents(h.client, "", "")
	coord := coordinator.New(coordinator.Options{
		Events:    h.source,
		Display:   disp,
		Indicator: led,
		Arrivals:  h.feed,
		Log:       log,
		OnEvent: func(ts time.Time, s logic.Sample, mode logic.DisplayMode) {
			events.PublishButton(ts, s, mode)
		},
	})

	h.loop = &loop{
		coord:     coord,
		hmi:       disp,
		indicator: led,
		arrivals:  h.feed,
		weather:   &feed.Static[logic.Weather]{},
		events:    events,
		tracker:   status.NewTracker(start, status.Config{Broker: "tcp://test:1883"}),
		log:       log,
		now:       clk.Now,
	}
	return h
}

// drive runs runLoop for nTicks ticks and stops it with sig (or ctx cancel
// when sig is nil).
func (h *harness) drive(t *testing.T, nTicks int, sig os.Signal, faults chan error) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tick := make(chan time.Time)
	sigCh := make(chan os.Signal, 1)
	if faults == nil {
		faults = make(chan error)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(ctx, h.loop, tick, sigCh, faults)
	}()
	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	if sig != nil {
		sigCh <- sig
	} else {
		cancel()
	}
	return <-errCh
}

func shutdownEvent(t *testing.T, h *harness) status.StatusInner {
	t.Helper()
	msgs := h.client.PublishedTo(mqtt.TopicSystem)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(msgs))
	}
	if !msgs[0].Retained {
		t.Error("expected retained system event")
	}
	var sj status.StatusJSON
	if err := json.Unmarshal(msgs[0].Payload, &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return sj.Status
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	h := newHarness(t)
	if err := h.drive(t, 1, syscall.SIGTERM, nil); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	ev := shutdownEvent(t, h)
	if ev.Event != "SHUTDOWN" || ev.Reason != "SIGTERM" {
		t.Errorf("got event=%q reason=%q, want SHUTDOWN/SIGTERM", ev.Event, ev.Reason)
	}
	if !ev.MQTT.Connected {
		t.Error("expected MQTT connected in shutdown snapshot")
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	h := newHarness(t)
	if err := h.drive(t, 0, syscall.SIGINT, nil); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if ev := shutdownEvent(t, h); ev.Reason != "SIGINT" {
		t.Errorf("Reason: got %q, want SIGINT", ev.Reason)
	}
}

func TestRunLoopShellExit(t *testing.T) {
	h := newHarness(t)
	if err := h.drive(t, 0, nil, nil); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if ev := shutdownEvent(t, h); ev.Reason != "SHELL" {
		t.Errorf("Reason: got %q, want SHELL", ev.Reason)
	}
}

func TestRunLoopHandlesButtonEvents(t *testing.T) {
	h := newHarness(t)
	h.source.Inject(logic.Sample{}.With(logic.ButtonRight))
	h.source.Inject(logic.Sample{}.With(logic.ButtonRight))

	if err := h.drive(t, 3, syscall.SIGTERM, nil); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if got := h.disp.Mode(); got != logic.ModeSwitches {
		t.Errorf("mode: got %v, want SWITCHES", got)
	}
	if got := len(h.client.PublishedTo(mqtt.TopicButtons)); got != 2 {
		t.Errorf("button events published: got %d, want 2", got)
	}
	ev := shutdownEvent(t, h)
	if ev.Mode != "SWITCHES" {
		t.Errorf("snapshot mode: got %q, want SWITCHES", ev.Mode)
	}
	if ev.Events != 2 {
		t.Errorf("snapshot events: got %d, want 2", ev.Events)
	}
}

func TestRunLoopDrivesIndicator(t *testing.T) {
	h := newHarness(t)
	if err := h.drive(t, 1, syscall.SIGTERM, nil); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	ev := shutdownEvent(t, h)
	if ev.Indicator.Mode != "BLINKING" || ev.Indicator.Option != 1 {
		t.Errorf("indicator: got %+v, want slow blink", ev.Indicator)
	}
	if len(ev.Arrivals) != 1 {
		t.Errorf("arrivals: got %d, want 1", len(ev.Arrivals))
	}
}

func TestRunLoopFaultDoesNotStopLoop(t *testing.T) {
	h := newHarness(t)
	faults := make(chan error, 1)
	faults <- errors.New("button loop: gpio fault")

	if err := h.drive(t, 2, syscall.SIGTERM, faults); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	shutdownEvent(t, h)
}

func TestRunLoopPublishError(t *testing.T) {
	h := newHarness(t)
	h.client.PublishError = errors.New("broker down")
	if err := h.drive(t, 1, syscall.SIGTERM, nil); err != nil {
		t.Fatalf("runLoop should not fail on publish error: %v", err)
	}
}

func TestDeviceStatusRefresh(t *testing.T) {
	tr := status.NewTracker(start, status.Config{})
	ds := &deviceStatus{
		devices: []device.Toggle{device.NewFake("Printer", device.StateOn), device.NewFake("Lamp", device.StateOff)},
		tracker: tr,
	}
	if err := ds.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	devs := tr.Snapshot().Devices
	if len(devs) != 2 || devs[0].State != "ON" || devs[1].Name != "Lamp" || devs[1].State != "OFF" {
		t.Errorf("devices: got %+v", devs)
	}
}

func TestWatchDevicesSchedule(t *testing.T) {
	sched := feed.NewScheduler(time.Second, logtest.New(t))
	defer sched.Stop()
	tr := status.NewTracker(start, status.Config{})
	devs := []device.Toggle{device.NewFake("Printer", device.StateOn)}

	if err := watchDevices(sched, deviceStatusSchedule, devs, tr); err != nil {
		t.Fatalf("default schedule: %v", err)
	}
	if err := watchDevices(sched, "every so often", devs, tr); err == nil {
		t.Fatal("bad schedule: expected error")
	}
}
