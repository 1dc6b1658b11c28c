package logic

// DisplayMode is the screen shown on the display.
type DisplayMode int

const (
	ModeArrivals DisplayMode = iota
	ModeWeather
	ModeSwitches
	ModeSettings

	NumModes = 4
)

var modeNames = [NumModes]string{"ARRIVALS", "WEATHER", "SWITCHES", "SETTINGS"}

func (m DisplayMode) String() string {
	if m < 0 || int(m) >= NumModes {
		return "INVALID"
	}
	return modeNames[m]
}

// Valid reports whether m is one of the known modes.
func (m DisplayMode) Valid() bool {
	return m >= 0 && int(m) < NumModes
}

// Next returns the following mode, wrapping after Settings.
func (m DisplayMode) Next() DisplayMode {
	return DisplayMode(wrap(int(m)+1, NumModes))
}

// Prev returns the preceding mode, wrapping before Arrivals.
func (m DisplayMode) Prev() DisplayMode {
	return DisplayMode(wrap(int(m)-1, NumModes))
}

// Step moves the selection by delta within rows, wrapping both ways.
// With no selectable rows the selection is returned unchanged.
func Step(selected, delta, rows int) int {
	if rows <= 0 {
		return selected
	}
	return wrap(selected+delta, rows)
}

// Clamp bounds selected to [0, rows-1]. With no selectable rows the
// selection is returned unchanged.
func Clamp(selected, rows int) int {
	if rows <= 0 {
		return selected
	}
	if selected >= rows {
		return rows - 1
	}
	if selected < 0 {
		return 0
	}
	return selected
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
