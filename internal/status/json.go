package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Mode          string        `json:"mode"`
	SelectedLine  int           `json:"selected_line"`
	NightMode     bool          `json:"night_mode"`
	Backlight     bool          `json:"backlight"`
	Internet      bool          `json:"internet"`
	Indicator     IndicatorJSON `json:"indicator"`
	Events        int           `json:"button_events"`
	NextMinutes   *int          `json:"next_arrival_minutes,omitempty"`
	Arrivals      []ArrivalJSON `json:"arrivals"`
	Weather       *WeatherJSON  `json:"weather,omitempty"`
	Feeds         []FeedJSON    `json:"feeds,omitempty"`
	Devices       []DeviceJSON  `json:"devices,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// IndicatorJSON is the LED command in effect.
type IndicatorJSON struct {
	Mode     string  `json:"mode"`
	Option   float64 `json:"option"`
	Override string  `json:"override"`
}

// ArrivalJSON is one upcoming arrival.
type ArrivalJSON struct {
	At       string `json:"at"`
	RealTime bool   `json:"real_time"`
}

// WeatherJSON is the cached weather snapshot.
type WeatherJSON struct {
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	WindHeading float64 `json:"wind_heading"`
	CloudCover  float64 `json:"cloud_cover"`
	Rainfall    float64 `json:"rainfall"`
}

// FeedJSON is the health of one feed.
type FeedJSON struct {
	Name      string `json:"name"`
	Updated   string `json:"updated,omitempty"`
	LastError string `json:"last_error,omitempty"`
	Breaker   string `json:"breaker"`
}

// DeviceJSON is one toggle device.
type DeviceJSON struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs         int64  `json:"poll_ms"`
	RenderMs       int64  `json:"render_ms"`
	TickMs         int64  `json:"tick_ms"`
	NightTimeoutMs int64  `json:"night_timeout_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
	LineLabel      string `json:"line_label"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Mode:         snap.Mode.String(),
		SelectedLine: snap.SelectedLine,
		NightMode:    snap.NightMode,
		Backlight:    snap.Backlight,
		Internet:     snap.Connected,
		Indicator: IndicatorJSON{
			Mode:     snap.Indicator.Mode.String(),
			Option:   snap.Indicator.Option,
			Override: snap.Override.String(),
		},
		Events:        snap.Events,
		Arrivals:      []ArrivalJSON{},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:         snap.Config.PollMs,
			RenderMs:       snap.Config.RenderMs,
			TickMs:         snap.Config.TickMs,
			NightTimeoutMs: snap.Config.NightTimeoutMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			LineLabel:      snap.Config.LineLabel,
		},
	}

	if m, ok := snap.NextArrival(); ok {
		inner.NextMinutes = &m
	}
	for _, a := range snap.Arrivals {
		inner.Arrivals = append(inner.Arrivals, ArrivalJSON{At: a.At.UTC().Format(time.RFC3339), RealTime: a.RealTime})
	}
	if w := snap.Weather; w != nil {
		inner.Weather = &WeatherJSON{
			Temperature: w.Temperature,
			FeelsLike:   w.FeelsLike,
			Humidity:    w.Humidity,
			WindSpeed:   w.WindSpeed,
			WindHeading: w.WindHeading,
			CloudCover:  w.CloudCover,
			Rainfall:    w.Rainfall,
		}
	}
	for _, f := range snap.Feeds {
		fj := FeedJSON{Name: f.Name, LastError: f.LastError, Breaker: f.Breaker}
		if !f.Updated.IsZero() {
			fj.Updated = f.Updated.UTC().Format(time.RFC3339)
		}
		inner.Feeds = append(inner.Feeds, fj)
	}
	for _, d := range snap.Devices {
		inner.Devices = append(inner.Devices, DeviceJSON{Name: d.Name, State: d.State})
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
