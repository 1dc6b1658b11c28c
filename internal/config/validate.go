package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/sweeney/arrival-display/internal/display"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg and returns a *ValidationError listing every problem.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateGPIO(cfg, ve)
	validateLCD(cfg, ve)
	validateMQTT(cfg, ve)
	validateFeeds(cfg, ve)
	validateDevices(cfg, ve)
	validateDisplay(cfg, ve)
	validateLog(cfg, ve)
	validateHTTP(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateGPIO(cfg *Config, ve *ValidationError) {
	if cfg.GPIO.Chip == "" {
		ve.Add("gpio.chip is required")
	}
	if cfg.GPIO.Poll <= 0 {
		ve.Add("gpio.poll must be positive")
	}
	seen := map[int]string{}
	pins := map[string]int{
		"up":    cfg.GPIO.Buttons.Up,
		"down":  cfg.GPIO.Buttons.Down,
		"left":  cfg.GPIO.Buttons.Left,
		"right": cfg.GPIO.Buttons.Right,
		"ok":    cfg.GPIO.Buttons.OK,
		"led":   cfg.GPIO.LED,
	}
	for _, d := range cfg.Devices {
		if d.Kind == KindRelay {
			pins["device "+d.Name] = d.Pin
		}
	}
	for _, name := range sortedKeys(pins) {
		pin := pins[name]
		if pin < 0 {
			ve.Add("gpio pin for %s must not be negative", name)
			continue
		}
		if other, ok := seen[pin]; ok {
			ve.Add("gpio pin %d used by both %s and %s", pin, other, name)
			continue
		}
		seen[pin] = name
	}
}

func validateLCD(cfg *Config, ve *ValidationError) {
	switch cfg.LCD.Driver {
	case "hd44780":
		if cfg.LCD.Addr == 0 || cfg.LCD.Addr > 0x7f {
			ve.Add("lcd.addr 0x%x is not a 7-bit I2C address", cfg.LCD.Addr)
		}
	case "fake":
	default:
		ve.Add("lcd.driver %q must be hd44780 or fake", cfg.LCD.Driver)
	}
}

func validateMQTT(cfg *Config, ve *ValidationError) {
	if cfg.MQTT.Broker == "" {
		ve.Add("mqtt.broker is required")
	} else if u, err := url.Parse(cfg.MQTT.Broker); err != nil || u.Host == "" {
		ve.Add("mqtt.broker %q is not a valid URL", cfg.MQTT.Broker)
	}
	if cfg.MQTT.ClientID == "" {
		ve.Add("mqtt.client_id is required")
	}
	if cfg.MQTT.BufferSize < 0 {
		ve.Add("mqtt.buffer_size must not be negative")
	}
	if cfg.MQTT.TopicButtons == "" || cfg.MQTT.TopicSystem == "" {
		ve.Add("mqtt.topic_buttons and mqtt.topic_system are required")
	}
}

func validateFeeds(cfg *Config, ve *ValidationError) {
	f := cfg.Feeds
	if f.Arrivals.URL != "" {
		if u, err := url.Parse(f.Arrivals.URL); err != nil || u.Host == "" {
			ve.Add("feeds.arrivals.url %q is not a valid URL", f.Arrivals.URL)
		}
		validateSchedule("feeds.arrivals.schedule", f.Arrivals.Schedule, ve)
	}
	if f.Weather.Enabled {
		if f.Weather.Latitude < -90 || f.Weather.Latitude > 90 {
			ve.Add("feeds.weather.latitude %v out of range", f.Weather.Latitude)
		}
		if f.Weather.Longitude < -180 || f.Weather.Longitude > 180 {
			ve.Add("feeds.weather.longitude %v out of range", f.Weather.Longitude)
		}
		validateSchedule("feeds.weather.schedule", f.Weather.Schedule, ve)
	}
	if f.Timeout <= 0 {
		ve.Add("feeds.timeout must be positive")
	}
	if f.Breaker.Timeout < 0 {
		ve.Add("feeds.breaker.timeout must not be negative")
	}
}

func validateSchedule(field, spec string, ve *ValidationError) {
	if spec == "" {
		ve.Add("%s is required", field)
		return
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		ve.Add("%s %q: %v", field, spec, err)
	}
}

func validateDevices(cfg *Config, ve *ValidationError) {
	if len(cfg.Devices) > display.MaxDevices {
		ve.Add("at most %d devices fit the switches screen, got %d", display.MaxDevices, len(cfg.Devices))
	}
	names := map[string]bool{}
	for i, d := range cfg.Devices {
		if d.Name == "" {
			ve.Add("devices[%d].name is required", i)
		} else if names[d.Name] {
			ve.Add("devices[%d].name %q is duplicated", i, d.Name)
		}
		names[d.Name] = true
		switch d.Kind {
		case KindRelay:
		case KindBulb:
			if d.Topic == "" {
				ve.Add("devices[%d].topic is required for a bulb", i)
			}
		default:
			ve.Add("devices[%d].kind %q must be relay or bulb", i, d.Kind)
		}
		if d.Timeout < 0 {
			ve.Add("devices[%d].timeout must not be negative", i)
		}
	}
}

func validateDisplay(cfg *Config, ve *ValidationError) {
	d := cfg.Display
	if d.Render <= 0 {
		ve.Add("display.render must be positive")
	}
	if d.Tick <= 0 {
		ve.Add("display.tick must be positive")
	}
	if d.NightTimeout < 0 || d.DeviceTimeout < 0 || d.ProbeTimeout < 0 {
		ve.Add("display timeouts must not be negative")
	}
}

func validateLog(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("log.level %q must be debug, info, warn or error", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		ve.Add("log.format %q must be text or json", cfg.Log.Format)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 {
		ve.Add("log.max_size_mb and log.max_backups must not be negative")
	}
}

func validateHTTP(cfg *Config, ve *ValidationError) {
	if cfg.HTTP.Addr == "" {
		return
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		ve.Add("http.addr %q is not a valid host:port", cfg.HTTP.Addr)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
