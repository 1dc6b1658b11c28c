package display

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/arrival-display/internal/feed"
	"github.com/sweeney/arrival-display/internal/lcd"
	"github.com/sweeney/arrival-display/internal/logic"
)

var sections = [logic.NumModes]string{
	logic.ModeArrivals: "arrivals",
	logic.ModeWeather:  "weather",
	logic.ModeSwitches: "switches",
	logic.ModeSettings: "settings",
}

// RenderOnce runs one render pass. It returns false when the pass was
// skipped because the screen was held by a Set-style call.
func (c *Controller) RenderOnce(ctx context.Context) bool {
	probeErr := c.checkConnectivity(ctx)

	if !c.tryAcquire() {
		c.metrics.RenderSkip()
		return false
	}
	defer c.release()
	defer c.metrics.RenderPass()

	if probeErr != nil {
		if !c.offline {
			c.log.Warn("internet unreachable", "err", probeErr)
			c.offline = true
		}
		if err := c.writeScreen(offlineScreen); err != nil {
			c.sectionError("lcd", err)
		}
		return true
	}
	if c.offline {
		c.log.Info("internet reachable again")
		c.offline = false
		if err := c.dev.Clear(); err != nil {
			c.sectionError("lcd", err)
		}
		c.dirty = true
	}

	now := c.clock.Now()
	sec := now.Truncate(time.Second)
	if !c.dirty && sec.Equal(c.lastSecond) {
		return true
	}

	mode := c.Mode()
	var err error
	switch mode {
	case logic.ModeArrivals:
		err = c.renderArrivals(now)
	case logic.ModeWeather:
		err = c.renderWeather(now)
	case logic.ModeSwitches:
		err = c.renderSwitches(ctx, now)
	case logic.ModeSettings:
		err = c.renderSettings(now)
	}
	if err != nil {
		c.sectionError(sections[mode], err)
		return true
	}
	c.dirty = false
	c.lastSecond = sec
	return true
}

func (c *Controller) checkConnectivity(ctx context.Context) error {
	if c.probe == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	err := c.probe.Check(ctx)
	c.connected.Store(err == nil)
	c.metrics.SetConnected(err == nil)
	return err
}

func (c *Controller) sectionError(section string, err error) {
	c.metrics.RenderError(section)
	if errors.Is(err, feed.ErrEmptySnapshot) {
		c.log.Debug("nothing to render", "section", section)
		return
	}
	c.log.Warn("render failed", "section", section, "err", err)
}

func (c *Controller) writeRow(row int, s string) error {
	return c.dev.WriteString(row, 0, lcd.Fit(s))
}

func (c *Controller) writeScreen(lines [lcd.Rows]string) error {
	for r, s := range lines {
		if err := c.writeRow(r, s); err != nil {
			return err
		}
	}
	return nil
}

// renderArrivals draws one countdown row per upcoming arrival. An empty
// snapshot draws nothing, leaving the previous content on screen.
func (c *Controller) renderArrivals(now time.Time) error {
	if c.arrivals == nil {
		return feed.ErrEmptySnapshot
	}
	arrivals, ok := c.arrivals.Read()
	if !ok || len(arrivals) == 0 {
		return feed.ErrEmptySnapshot
	}

	lines := [lcd.Rows]string{headerRow(logic.ModeArrivals, now), blankRow, blankRow, blankRow}
	for i, a := range arrivals {
		if i == lcd.Rows-1 {
			break
		}
		lines[i+1] = arrivalRow(c.cfg.LineLabel, a, now)
	}
	return c.writeScreen(lines)
}

func (c *Controller) renderWeather(now time.Time) error {
	if c.weather == nil {
		return feed.ErrEmptySnapshot
	}
	w, ok := c.weather.Read()
	if !ok {
		return feed.ErrEmptySnapshot
	}
	rows := weatherRows(w)
	return c.writeScreen([lcd.Rows]string{headerRow(logic.ModeWeather, now), rows[0], rows[1], rows[2]})
}

// renderSwitches queries every device, each bounded by the device timeout.
// A failing device is shown with its fallback label and reported, the
// other rows are still drawn.
func (c *Controller) renderSwitches(ctx context.Context, now time.Time) error {
	lines := [lcd.Rows]string{headerRow(logic.ModeSwitches, now), blankRow, blankRow, blankRow}
	selected := c.SelectedLine()

	var firstErr error
	for i, d := range c.devices {
		dctx, cancel := context.WithTimeout(ctx, c.cfg.DeviceTimeout)
		state, err := d.State(dctx)
		cancel()
		if err != nil {
			c.log.Debug("device query failed", "device", d.Name(), "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		lines[i+1] = switchRow(d.Name(), state, i == selected)
	}
	if err := c.writeScreen(lines); err != nil {
		return err
	}
	if firstErr != nil {
		// rows are drawn, only count the failure
		c.metrics.RenderError(sections[logic.ModeSwitches])
	}
	return nil
}

func (c *Controller) renderSettings(now time.Time) error {
	return c.writeScreen([lcd.Rows]string{
		headerRow(logic.ModeSettings, now),
		itemRow("Night mode", onOff(c.NightMode()), c.SelectedLine() == 0),
		blankRow,
		blankRow,
	})
}
