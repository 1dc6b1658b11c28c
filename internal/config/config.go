// Package config loads the daemon configuration from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/arrival-display/internal/display"
	"github.com/sweeney/arrival-display/internal/feed"
	"github.com/sweeney/arrival-display/internal/gpio"
	"github.com/sweeney/arrival-display/internal/lcd"
	"github.com/sweeney/arrival-display/internal/logging"
	"github.com/sweeney/arrival-display/internal/mqtt"
	"github.com/sweeney/arrival-display/internal/netcheck"
)

// Config is the top-level daemon configuration.
type Config struct {
	GPIO     GPIOConfig     `yaml:"gpio"`
	LCD      LCDConfig      `yaml:"lcd"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Feeds    FeedsConfig    `yaml:"feeds"`
	Devices  []DeviceConfig `yaml:"devices"`
	Display  DisplayConfig  `yaml:"display"`
	Log      logging.Config `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	NetCheck NetCheckConfig `yaml:"netcheck"`
}

// GPIOConfig selects the chip and lines used by the front panel.
type GPIOConfig struct {
	Chip      string          `yaml:"chip"`
	ActiveLow bool            `yaml:"active_low"`
	Buttons   gpio.ButtonPins `yaml:"buttons"`
	LED       int             `yaml:"led"`
	// Poll is the button sampling period.
	Poll time.Duration `yaml:"poll"`
}

// LCDConfig selects the character display.
type LCDConfig struct {
	// Driver is "hd44780" (I2C backpack) or "fake" (in-memory, for benches).
	Driver string `yaml:"driver"`
	Bus    string `yaml:"bus"`
	Addr   uint16 `yaml:"addr"`
}

// MQTTConfig configures the broker connection and event topics.
type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	BufferSize   int    `yaml:"buffer_size"`
	TopicButtons string `yaml:"topic_buttons"`
	TopicSystem  string `yaml:"topic_system"`
}

// FeedsConfig configures the upstream data feeds.
type FeedsConfig struct {
	Arrivals ArrivalsConfig     `yaml:"arrivals"`
	Weather  WeatherConfig      `yaml:"weather"`
	Breaker  feed.BreakerConfig `yaml:"breaker"`
	// Timeout bounds a single refresh.
	Timeout time.Duration `yaml:"timeout"`
}

// ArrivalsConfig is the Tisseo departures feed. An empty URL disables it.
type ArrivalsConfig struct {
	feed.TisseoConfig `yaml:",inline"`
	Schedule          string `yaml:"schedule"`
}

// WeatherConfig is the Open-Meteo feed.
type WeatherConfig struct {
	feed.OpenMeteoConfig `yaml:",inline"`
	Enabled              bool   `yaml:"enabled"`
	Schedule             string `yaml:"schedule"`
}

// Device kinds.
const (
	KindRelay = "relay"
	KindBulb  = "bulb"
)

// DeviceConfig is one entry of the Switches screen.
type DeviceConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	// Pin is the output line of a relay.
	Pin int `yaml:"pin"`
	// Topic is the Tasmota topic of a bulb.
	Topic    string        `yaml:"topic"`
	Timeout  time.Duration `yaml:"timeout"`
	Interval time.Duration `yaml:"interval"`
}

// DisplayConfig configures the render loop and the coordinator.
type DisplayConfig struct {
	display.Config `yaml:",inline"`
	// Render is the render loop period.
	Render time.Duration `yaml:"render"`
	// Tick is the coordinator period.
	Tick time.Duration `yaml:"tick"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// NetCheckConfig configures the connectivity probe.
type NetCheckConfig struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		GPIO: GPIOConfig{
			Chip:      gpio.DefaultChip,
			ActiveLow: true,
			Buttons:   gpio.DefaultButtonPins,
			LED:       gpio.DefaultPinLED,
			Poll:      100 * time.Millisecond,
		},
		LCD: LCDConfig{
			Driver: "hd44780",
			Bus:    "1",
			Addr:   lcd.DefaultAddr,
		},
		MQTT: MQTTConfig{
			Broker:       "tcp://192.168.1.200:1883",
			ClientID:     "arrival-display",
			BufferSize:   100,
			TopicButtons: mqtt.TopicButtons,
			TopicSystem:  mqtt.TopicSystem,
		},
		Feeds: FeedsConfig{
			Arrivals: ArrivalsConfig{
				TisseoConfig: feed.TisseoConfig{Timezone: "Europe/Paris"},
				Schedule:     "@every 30s",
			},
			Weather: WeatherConfig{
				OpenMeteoConfig: feed.OpenMeteoConfig{
					URL:       feed.DefaultOpenMeteoURL,
					Latitude:  43.6045,
					Longitude: 1.4440,
				},
				Enabled:  true,
				Schedule: "@every 5m",
			},
			Breaker: feed.BreakerConfig{MaxFailures: 3, Timeout: 2 * time.Minute},
			Timeout: 15 * time.Second,
		},
		Display: DisplayConfig{
			Config: display.Config{
				LineLabel:     "79-Ramon",
				NightTimeout:  display.DefaultNightTimeout,
				DeviceTimeout: display.DefaultDeviceTimeout,
				ProbeTimeout:  display.DefaultProbeTimeout,
			},
			Render: 200 * time.Millisecond,
			Tick:   50 * time.Millisecond,
		},
		Log: logging.Config{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  logging.DefaultMaxSizeMB,
			MaxBackups: logging.DefaultMaxBackups,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		NetCheck: NetCheckConfig{
			Addr:    netcheck.DefaultAddr,
			Timeout: netcheck.DefaultTimeout,
		},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data over cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
