package main

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/arrival-display/internal/feed"
	"github.com/sweeney/arrival-display/internal/logic"
	"github.com/sweeney/arrival-display/internal/mqtt"
	"github.com/sweeney/arrival-display/internal/status"
)

// ticker is the coordinator side of the run loop.
type ticker interface {
	Tick(ctx context.Context, now time.Time)
	Override() logic.Override
	Handled() int
}

// hmiSource is the display state shown on the status page.
type hmiSource interface {
	Mode() logic.DisplayMode
	SelectedLine() int
	NightMode() bool
	Backlight() bool
	Connected() bool
}

type commandSource interface {
	Command() logic.IndicatorCommand
}

type statusSource interface {
	Status() feed.Status
}

type systemPublisher interface {
	PublishSystem(event mqtt.SystemEvent) error
	IsConnected() bool
}

type loop struct {
	coord     ticker
	hmi       hmiSource
	indicator commandSource
	arrivals  interface {
		Read() ([]logic.Arrival, bool)
	}
	weather interface {
		Read() (logic.Weather, bool)
	}
	feeds   []statusSource
	events  systemPublisher
	tracker *status.Tracker
	log     *slog.Logger
	now     func() time.Time
}

// runLoop ticks the coordinator until a signal arrives or ctx is cancelled,
// then publishes a SHUTDOWN event. Loop faults are logged and the remaining
// loops keep running.
func runLoop(ctx context.Context, l *loop, tick <-chan time.Time, sig <-chan os.Signal, faults <-chan error) error {
	for {
		select {
		case s := <-sig:
			l.log.Info("shutting down", "signal", s.String())
			l.shutdown(signalName(s))
			return nil

		case <-ctx.Done():
			l.log.Info("shutting down", "reason", "shell exit")
			l.shutdown("SHELL")
			return nil

		case err := <-faults:
			l.log.Error("loop stopped", "error", err)

		case <-tick:
			l.coord.Tick(ctx, l.now())
			l.updateTracker()
		}
	}
}

func (l *loop) updateTracker() {
	l.tracker.Update(status.HMI{
		Mode:         l.hmi.Mode(),
		SelectedLine: l.hmi.SelectedLine(),
		NightMode:    l.hmi.NightMode(),
		Backlight:    l.hmi.Backlight(),
		Connected:    l.hmi.Connected(),
		Indicator:    l.indicator.Command(),
		Override:     l.coord.Override(),
		Events:       l.coord.Handled(),
	})

	arrivals, _ := l.arrivals.Read()
	var weather *logic.Weather
	if w, ok := l.weather.Read(); ok {
		weather = &w
	}
	feeds := make([]status.FeedInfo, 0, len(l.feeds))
	for _, f := range l.feeds {
		s := f.Status()
		feeds = append(feeds, status.FeedInfo{Name: s.Name, Updated: s.Updated, LastError: s.LastError, Breaker: s.Breaker})
	}
	l.tracker.SetData(arrivals, weather, feeds)
	l.tracker.SetMQTTConnected(l.events.IsConnected())
}

func (l *loop) shutdown(reason string) {
	l.updateTracker()
	snap := l.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	}
	if err := l.events.PublishSystem(event); err != nil {
		l.log.Warn("publish shutdown event failed", "error", err)
	} else {
		l.log.Info("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
