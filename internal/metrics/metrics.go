// Package metrics holds the Prometheus collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arrival_display"

// Metrics groups the appliance collectors.
type Metrics struct {
	registry *prometheus.Registry

	buttonEvents      *prometheus.CounterVec
	renderPasses      prometheus.Counter
	renderSkips       prometheus.Counter
	renderErrors      *prometheus.CounterVec
	indicatorRestarts prometheus.Counter
	connected         prometheus.Gauge
	feedRefreshes     *prometheus.CounterVec
	deviceToggles     *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry
// together with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		buttonEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "button_events_total",
			Help:      "Accepted button events by combined button set.",
		}, []string{"buttons"}),
		renderPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_passes_total",
			Help:      "Completed render passes.",
		}),
		renderSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_skips_total",
			Help:      "Render passes skipped because the display was busy.",
		}),
		renderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Render section failures by section.",
		}, []string{"section"}),
		indicatorRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicator_blink_restarts_total",
			Help:      "Blink timer (re)starts.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "internet_connected",
			Help:      "1 when the last connectivity probe succeeded.",
		}),
		feedRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_refreshes_total",
			Help:      "Feed refresh attempts by feed and result.",
		}, []string{"feed", "result"}),
		deviceToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_toggles_total",
			Help:      "Device toggle attempts by device and result.",
		}, []string{"device", "result"}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.buttonEvents,
		m.renderPasses,
		m.renderSkips,
		m.renderErrors,
		m.indicatorRestarts,
		m.connected,
		m.feedRefreshes,
		m.deviceToggles,
	)
	return m
}

// Registry exposes the underlying registry (for tests and gathering).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ButtonEvent(buttons string) {
	if m == nil {
		return
	}
	m.buttonEvents.WithLabelValues(buttons).Inc()
}

func (m *Metrics) RenderPass() {
	if m == nil {
		return
	}
	m.renderPasses.Inc()
}

func (m *Metrics) RenderSkip() {
	if m == nil {
		return
	}
	m.renderSkips.Inc()
}

func (m *Metrics) RenderError(section string) {
	if m == nil {
		return
	}
	m.renderErrors.WithLabelValues(section).Inc()
}

func (m *Metrics) IndicatorRestart() {
	if m == nil {
		return
	}
	m.indicatorRestarts.Inc()
}

func (m *Metrics) SetConnected(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// FeedRefresh records one refresh of feed; err == nil counts as "ok".
func (m *Metrics) FeedRefresh(feed string, err error) {
	if m == nil {
		return
	}
	m.feedRefreshes.WithLabelValues(feed, result(err)).Inc()
}

// DeviceToggle records one toggle attempt of device.
func (m *Metrics) DeviceToggle(device string, err error) {
	if m == nil {
		return
	}
	m.deviceToggles.WithLabelValues(device, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
