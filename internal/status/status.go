// Package status provides a thread-safe view of the appliance state for the
// HTTP status page and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/arrival-display/internal/logic"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs         int64
	RenderMs       int64
	TickMs         int64
	NightTimeoutMs int64
	Broker         string
	HTTPAddr       string
	LineLabel      string
}

// HMI is the interactive state sampled from the display, coordinator and
// indicator on every tick.
type HMI struct {
	Mode         logic.DisplayMode
	SelectedLine int
	NightMode    bool
	Backlight    bool
	Connected    bool
	Indicator    logic.IndicatorCommand
	Override     logic.Override
	Events       int
}

// FeedInfo is the health of one data feed.
type FeedInfo struct {
	Name      string
	Updated   time.Time
	LastError string
	Breaker   string
}

// DeviceInfo is the last known state of one toggle device.
type DeviceInfo struct {
	Name  string
	State string
}

// Snapshot is a point-in-time view of daemon state. It is a value type and
// safe to use after the lock is released.
type Snapshot struct {
	HMI
	Arrivals      []logic.Arrival
	Weather       *logic.Weather
	Feeds         []FeedInfo
	Devices       []DeviceInfo
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// NextArrival returns the whole minutes to the nearest upcoming arrival.
func (s Snapshot) NextArrival() (int, bool) {
	return logic.NextArrival(s.Arrivals, s.Now)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update replaces the interactive state. Called from the run loop on every tick.
func (t *Tracker) Update(h HMI) {
	t.mu.Lock()
	t.snap.HMI = h
	t.mu.Unlock()
}

// SetData records the latest cached snapshots and feed health.
func (t *Tracker) SetData(arrivals []logic.Arrival, weather *logic.Weather, feeds []FeedInfo) {
	a := append([]logic.Arrival(nil), arrivals...)
	f := append([]FeedInfo(nil), feeds...)
	var w *logic.Weather
	if weather != nil {
		c := *weather
		w = &c
	}
	t.mu.Lock()
	t.snap.Arrivals = a
	t.snap.Weather = w
	t.snap.Feeds = f
	t.mu.Unlock()
}

// SetDevices records the device list.
func (t *Tracker) SetDevices(devices []DeviceInfo) {
	d := append([]DeviceInfo(nil), devices...)
	t.mu.Lock()
	t.snap.Devices = d
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
