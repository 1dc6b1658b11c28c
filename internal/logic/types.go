// Package logic contains pure HMI logic for the arrival display.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time / time.Duration parameters.
package logic

import (
	"strings"
	"time"
)

// Button identifies one of the five front-panel buttons.
type Button int

const (
	ButtonUp Button = iota
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonOK

	NumButtons = 5
)

var buttonNames = [NumButtons]string{"UP", "DOWN", "LEFT", "RIGHT", "OK"}

func (b Button) String() string {
	if b < 0 || int(b) >= NumButtons {
		return "INVALID"
	}
	return buttonNames[b]
}

// ParseButton returns the button named s (case-insensitive).
func ParseButton(s string) (Button, bool) {
	for i, name := range buttonNames {
		if strings.EqualFold(s, name) {
			return Button(i), true
		}
	}
	return 0, false
}

// Sample is one atomic read of the five button lines, indexed by Button.
// true = pressed.
type Sample [NumButtons]bool

// Idle reports whether no button is pressed.
func (s Sample) Idle() bool {
	return s == Sample{}
}

// Pressed reports whether b is pressed in the sample.
func (s Sample) Pressed(b Button) bool {
	return s[b]
}

// With returns a copy of s with b pressed.
func (s Sample) With(b Button) Sample {
	s[b] = true
	return s
}

func (s Sample) String() string {
	if s.Idle() {
		return "IDLE"
	}
	var parts []string
	for i, on := range s {
		if on {
			parts = append(parts, buttonNames[i])
		}
	}
	return strings.Join(parts, "+")
}

// IndicatorMode selects how the status LED is driven.
type IndicatorMode int

const (
	Persistent IndicatorMode = iota
	Blinking
)

func (m IndicatorMode) String() string {
	switch m {
	case Persistent:
		return "PERSISTENT"
	case Blinking:
		return "BLINKING"
	}
	return "INVALID"
}

// IndicatorCommand is a request to the indicator scheduler.
// For Persistent, Option is the output level (0 or 1).
// For Blinking, Option is the half period in seconds.
type IndicatorCommand struct {
	Mode   IndicatorMode
	Option float64
}

var (
	IndicatorOff = IndicatorCommand{Mode: Persistent, Option: 0}
	IndicatorOn  = IndicatorCommand{Mode: Persistent, Option: 1}
)

// Blink returns a blinking command with the given half period.
func Blink(period time.Duration) IndicatorCommand {
	return IndicatorCommand{Mode: Blinking, Option: period.Seconds()}
}

// Period returns Option as a duration (meaningful for Blinking only).
func (c IndicatorCommand) Period() time.Duration {
	return time.Duration(c.Option * float64(time.Second))
}

// Arrival is one upcoming departure from the arrival feed.
type Arrival struct {
	At       time.Time
	RealTime bool
}

// Weather is the latest weather observation.
type Weather struct {
	Temperature float64 // °C
	FeelsLike   float64 // °C
	Humidity    float64 // %
	WindSpeed   float64 // km/h
	WindHeading float64 // degrees
	CloudCover  float64 // %
	Rainfall    float64 // mm over the last hour
	UpdatedAt   time.Time
}
