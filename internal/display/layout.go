package display

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sweeney/arrival-display/internal/device"
	"github.com/sweeney/arrival-display/internal/lcd"
	"github.com/sweeney/arrival-display/internal/logic"
)

const titleWidth = lcd.Cols - len("15:04")

var titles = [logic.NumModes]string{
	logic.ModeArrivals: " Next Arrivals",
	logic.ModeWeather:  " Weather",
	logic.ModeSwitches: " Switches",
	logic.ModeSettings: " Settings",
}

var splashScreen = [lcd.Rows]string{
	"*------------------*",
	"|  Tisseo Display  |",
	"|       V1.0       |",
	"*------------------*",
}

var offlineScreen = [lcd.Rows]string{
	"*------------------*",
	"|     Internet     |",
	"|   Disconnected   |",
	"*------------------*",
}

var blankRow = strings.Repeat(" ", lcd.Cols)

// headerRow is the screen title followed by the wall clock.
func headerRow(mode logic.DisplayMode, now time.Time) string {
	return fmt.Sprintf("%-*.*s%s", titleWidth, titleWidth, titles[mode], now.Format("15:04"))
}

// countdown formats d as HH:MM:SS, clamping negative durations to zero.
func countdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// arrivalRow is "<label> HH:MM:SS" with a trailing '~' when the time comes
// from the timetable rather than real-time tracking.
func arrivalRow(label string, a logic.Arrival, now time.Time) string {
	marker := " "
	if !a.RealTime {
		marker = "~"
	}
	return lcd.Fit(fmt.Sprintf("%-9.9s %s%s", label, countdown(a.At.Sub(now)), marker))
}

func round(v float64) int {
	return int(math.Round(v))
}

// weatherRows are the three data rows of the weather screen.
func weatherRows(w logic.Weather) [3]string {
	return [3]string{
		lcd.Fit(fmt.Sprintf("T: %02d/%02dC - H: %02d%%", round(w.Temperature), round(w.FeelsLike), round(w.Humidity))),
		lcd.Fit(fmt.Sprintf("Wind: %02dkm/h - %03d", round(w.WindSpeed), round(w.WindHeading))),
		lcd.Fit(fmt.Sprintf("Clouds: %02d%% Rn:%.1f", round(w.CloudCover), w.Rainfall)),
	}
}

func cursor(selected bool) string {
	if selected {
		return ">"
	}
	return " "
}

// itemRow is a selectable row: cursor, name, four-column value.
func itemRow(name, value string, selected bool) string {
	return fmt.Sprintf("%s%-15.15s%4.4s", cursor(selected), name, value)
}

func switchRow(name string, s device.State, selected bool) string {
	return itemRow(name, s.Label(), selected)
}

func onOff(on bool) string {
	if on {
		return "  ON"
	}
	return " OFF"
}
