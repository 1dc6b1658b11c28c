package display

// NightMode reports whether the inactivity blackout is enabled.
func (c *Controller) NightMode() bool {
	c.nightMu.Lock()
	defer c.nightMu.Unlock()
	return c.night
}

// Blackouts returns how many times the countdown expired and switched the
// backlight off.
func (c *Controller) Blackouts() int {
	c.nightMu.Lock()
	defer c.nightMu.Unlock()
	return c.blackouts
}

// ToggleNightMode enables or disables night mode and returns the new state.
// Enabling starts the inactivity countdown; disabling cancels it and turns
// the backlight back on.
func (c *Controller) ToggleNightMode() (bool, error) {
	c.acquire()
	defer c.release()

	c.nightMu.Lock()
	c.night = !c.night
	on := c.night
	c.cancelNightLocked()
	if on {
		c.startNightLocked()
	}
	c.nightMu.Unlock()

	c.dirty = true
	c.log.Info("night mode toggled", "active", on)
	if on {
		return on, nil
	}
	return on, c.setBacklightLocked(true)
}

// Activity restarts the inactivity countdown and lights the screen. It does
// nothing unless night mode is active.
func (c *Controller) Activity() error {
	c.nightMu.Lock()
	if !c.night {
		c.nightMu.Unlock()
		return nil
	}
	c.cancelNightLocked()
	c.startNightLocked()
	c.nightMu.Unlock()

	return c.SetBacklight(true)
}

func (c *Controller) startNightLocked() {
	gen := c.nightGen
	c.nightTimer = c.clock.AfterFunc(c.cfg.NightTimeout, func() {
		c.nightExpired(gen)
	})
}

// cancelNightLocked invalidates any pending countdown, including one whose
// callback is already running.
func (c *Controller) cancelNightLocked() {
	c.nightGen++
	if c.nightTimer != nil {
		c.nightTimer.Stop()
		c.nightTimer = nil
	}
}

func (c *Controller) nightExpired(gen uint64) {
	c.acquire()
	defer c.release()

	c.nightMu.Lock()
	live := c.night && gen == c.nightGen
	if live {
		c.nightTimer = nil
		c.blackouts++
	}
	c.nightMu.Unlock()
	if !live {
		return
	}

	if err := c.setBacklightLocked(false); err != nil {
		c.log.Warn("night mode blackout failed", "err", err)
	}
}
