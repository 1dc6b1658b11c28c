// Command arrival-display drives the hallway bus arrival display: buttons,
// the 20x4 LCD, the status LED and the toggle devices.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/spf13/pflag"

	"github.com/sweeney/arrival-display/internal/clock"
	"github.com/sweeney/arrival-display/internal/config"
	"github.com/sweeney/arrival-display/internal/coordinator"
	"github.com/sweeney/arrival-display/internal/device"
	"github.com/sweeney/arrival-display/internal/display"
	"github.com/sweeney/arrival-display/internal/feed"
	"github.com/sweeney/arrival-display/internal/gpio"
	"github.com/sweeney/arrival-display/internal/indicator"
	"github.com/sweeney/arrival-display/internal/input"
	"github.com/sweeney/arrival-display/internal/lcd"
	"github.com/sweeney/arrival-display/internal/logging"
	"github.com/sweeney/arrival-display/internal/logic"
	"github.com/sweeney/arrival-display/internal/metrics"
	"github.com/sweeney/arrival-display/internal/mqtt"
	"github.com/sweeney/arrival-display/internal/netcheck"
	"github.com/sweeney/arrival-display/internal/shell"
	"github.com/sweeney/arrival-display/internal/status"
	"github.com/sweeney/arrival-display/internal/web"
)

type flags struct {
	config     string
	printState bool
	logLevel   string
	http       string
	shell      bool
}

func main() {
	var f flags
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	fs.StringVarP(&f.config, "config", "c", "", "YAML configuration file (defaults apply when empty)")
	fs.BoolVar(&f.printState, "print-state", false, "Print the button lines once and exit")
	fs.StringVar(&f.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
	fs.StringVar(&f.http, "http", "", `Override http.addr ("off" disables the status server)`)
	fs.BoolVar(&f.shell, "shell", false, "Run the operator debug shell on stdin")
	fs.Parse(os.Args[1:])

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	switch f.http {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = f.http
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	buttons, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.Buttons, cfg.GPIO.ActiveLow)
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer buttons.Close()

	if f.printState {
		sample, err := buttons.Read()
		if err != nil {
			return fmt.Errorf("read buttons: %w", err)
		}
		fmt.Println(formatState(sample))
		return nil
	}

	m := metrics.New()

	ledLine, err := gpio.NewRealWriter(cfg.GPIO.Chip, cfg.GPIO.LED, 0)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer ledLine.Close()

	screen, err := openLCD(cfg.LCD)
	if err != nil {
		return err
	}
	defer screen.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:         cfg.GPIO.Poll.Milliseconds(),
		RenderMs:       cfg.Display.Render.Milliseconds(),
		TickMs:         cfg.Display.Tick.Milliseconds(),
		NightTimeoutMs: cfg.Display.NightTimeout.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
		LineLabel:      cfg.Display.LineLabel,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	will, _ := mqtt.FormatSystemPayload(mqtt.SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN", Reason: "CONNECTION_LOST"})
	client := mqtt.NewRealClient(mqtt.Options{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		BufferSize:  cfg.MQTT.BufferSize,
		WillTopic:   cfg.MQTT.TopicSystem,
		WillPayload: will,
	}, log)
	defer client.Close()
	events := mqtt.NewEvents(client, cfg.MQTT.TopicButtons, cfg.MQTT.TopicSystem)

	toggles, closeDevices, err := openDevices(cfg, client, log)
	if err != nil {
		return err
	}
	defer closeDevices()

	httpClient := &http.Client{Timeout: cfg.Feeds.Timeout}
	sched := feed.NewScheduler(cfg.Feeds.Timeout, log)
	arrivals, weather, feeds, err := openFeeds(cfg.Feeds, httpClient, sched, log, m)
	if err != nil {
		return err
	}
	if err := watchDevices(sched, deviceStatusSchedule, toggles, tracker); err != nil {
		return err
	}

	disp, err := display.New(display.Deps{
		LCD:      screen,
		Arrivals: arrivals,
		Weather:  weather,
		Devices:  toggles,
		Probe:    netcheck.NewTCP(cfg.NetCheck.Addr, cfg.NetCheck.Timeout),
		Clock:    clock.Real{},
		Log:      log,
		Metrics:  m,
	}, cfg.Display.Config)
	if err != nil {
		return err
	}

	led, err := indicator.New(ledLine, clock.Real{}, log)
	if err != nil {
		return err
	}
	led.SetRestartHook(m.IndicatorRestart)
	defer led.Close()

	source := input.New(buttons, log)
	if err := source.Prime(); err != nil {
		return err
	}

	coord := coordinator.New(coordinator.Options{
		Events:        source,
		Display:       disp,
		Indicator:     led,
		Arrivals:      arrivals,
		Log:           log,
		Metrics:       m,
		DeviceTimeout: cfg.Display.DeviceTimeout,
		OnEvent: func(ts time.Time, s logic.Sample, mode logic.DisplayMode) {
			if err := events.PublishButton(ts, s, mode); err != nil {
				log.Warn("publish button event failed", "error", err)
			}
		},
	})

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := events.PublishSystem(startup); err != nil {
		log.Warn("publish startup event failed", "error", err)
	} else {
		log.Info("published startup event")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpDone := make(chan struct{})
	if cfg.HTTP.Addr != "" {
		srv := web.New(web.Options{Addr: cfg.HTTP.Addr, Tracker: tracker, Metrics: m.Handler(), Log: log})
		go func() {
			defer close(httpDone)
			if err := srv.Run(ctx); err != nil {
				log.Error("http server error", "error", err)
			}
		}()
	} else {
		close(httpDone)
	}

	faults := make(chan error, 1)
	pollTicker := time.NewTicker(cfg.GPIO.Poll)
	defer pollTicker.Stop()
	go func() {
		if err := source.Run(pollTicker.C); err != nil {
			faults <- fmt.Errorf("button loop: %w", err)
		}
	}()

	renderTicker := time.NewTicker(cfg.Display.Render)
	defer renderTicker.Stop()
	go func() {
		if err := disp.Run(renderTicker.C); err != nil && !errors.Is(err, display.ErrStopped) {
			faults <- fmt.Errorf("render loop: %w", err)
		}
	}()

	sched.Start()

	if f.shell {
		sh := shell.New(shell.Options{
			Buttons:  buttons,
			Injector: source,
			LED:      led,
			Screen:   disp,
			Exit:     cancel,
			Log:      log,
		})
		go func() {
			if err := sh.Run(os.Stdin); err != nil {
				log.Warn("shell stopped", "error", err)
			}
		}()
	}

	log.Info("started",
		"poll", cfg.GPIO.Poll, "render", cfg.Display.Render, "tick", cfg.Display.Tick,
		"broker", cfg.MQTT.Broker, "devices", len(toggles))
	daemon.SdNotify(false, daemon.SdNotifyReady)

	tickTicker := time.NewTicker(cfg.Display.Tick)
	defer tickTicker.Stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(ctx, &loop{
		coord:     coord,
		hmi:       disp,
		indicator: led,
		arrivals:  arrivals,
		weather:   weather,
		feeds:     feeds,
		events:    events,
		tracker:   tracker,
		log:       log,
		now:       time.Now,
	}, tickTicker.C, sigCh, faults)

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	<-httpDone
	source.Stop()
	disp.Stop()
	sched.Stop()
	source.Wait()
	disp.Wait()
	return err
}

func openLCD(cfg config.LCDConfig) (lcd.Device, error) {
	if cfg.Driver == "fake" {
		return lcd.NewFake(), nil
	}
	dev, err := lcd.Open(cfg.Bus, cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("init lcd: %w", err)
	}
	return dev, nil
}

func openDevices(cfg *config.Config, client mqtt.Client, log *slog.Logger) ([]device.Toggle, func(), error) {
	var (
		toggles []device.Toggle
		lines   []gpio.Writer
	)
	closeAll := func() {
		for _, l := range lines {
			l.Close()
		}
	}
	for _, d := range cfg.Devices {
		switch d.Kind {
		case config.KindRelay:
			line, err := gpio.NewRealWriter(cfg.GPIO.Chip, d.Pin, 0)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("init relay %s: %w", d.Name, err)
			}
			lines = append(lines, line)
			toggles = append(toggles, device.NewRelay(d.Name, line, d.Interval))
		case config.KindBulb:
			b, err := device.NewBulb(d.Name, d.Topic, client, d.Timeout, d.Interval, log)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("init bulb %s: %w", d.Name, err)
			}
			toggles = append(toggles, b)
		}
	}
	return toggles, closeAll, nil
}

func openFeeds(cfg config.FeedsConfig, client *http.Client, sched *feed.Scheduler, log *slog.Logger, m *metrics.Metrics) (coordinator.ArrivalSource, display.WeatherSource, []statusSource, error) {
	var (
		arrivals coordinator.ArrivalSource = &feed.Static[[]logic.Arrival]{}
		weather  display.WeatherSource     = &feed.Static[logic.Weather]{}
		feeds    []statusSource
	)

	if cfg.Arrivals.URL != "" {
		tisseo, err := feed.NewTisseo(cfg.Arrivals.TisseoConfig, client)
		if err != nil {
			return nil, nil, nil, err
		}
		f := feed.New[[]logic.Arrival]("arrivals", tisseo, cfg.Breaker, log, m)
		if err := sched.Add(cfg.Arrivals.Schedule, f); err != nil {
			return nil, nil, nil, err
		}
		arrivals = f
		feeds = append(feeds, f)
	} else {
		log.Warn("arrivals feed disabled: feeds.arrivals.url is empty")
	}

	if cfg.Weather.Enabled {
		meteo, err := feed.NewOpenMeteo(cfg.Weather.OpenMeteoConfig, client)
		if err != nil {
			return nil, nil, nil, err
		}
		f := feed.New[logic.Weather]("weather", meteo, cfg.Breaker, log, m)
		if err := sched.Add(cfg.Weather.Schedule, f); err != nil {
			return nil, nil, nil, err
		}
		weather = f
		feeds = append(feeds, f)
	}
	return arrivals, weather, feeds, nil
}

// deviceStatusSchedule is how often device states reach the status page.
const deviceStatusSchedule = "@every 10s"

func watchDevices(sched *feed.Scheduler, spec string, devices []device.Toggle, tracker *status.Tracker) error {
	return sched.Add(spec, &deviceStatus{devices: devices, tracker: tracker})
}

// deviceStatus publishes device states to the tracker on the feed schedule,
// keeping network round trips off the run loop.
type deviceStatus struct {
	devices []device.Toggle
	tracker *status.Tracker
}

func (d *deviceStatus) Name() string { return "devices" }

func (d *deviceStatus) Refresh(ctx context.Context) error {
	infos := make([]status.DeviceInfo, 0, len(d.devices))
	for _, dev := range d.devices {
		st, _ := dev.State(ctx)
		infos = append(infos, status.DeviceInfo{Name: dev.Name(), State: st.String()})
	}
	d.tracker.SetDevices(infos)
	return nil
}

func formatState(s logic.Sample) string {
	out := ""
	for b := logic.Button(0); b < logic.NumButtons; b++ {
		if out != "" {
			out += ", "
		}
		out += fmt.Sprintf("%s: %s", b, stateString(s.Pressed(b)))
	}
	return out
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
