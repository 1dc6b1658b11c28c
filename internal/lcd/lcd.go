// Package lcd drives a 20x4 HD44780 character display.
package lcd

import "strings"

// Display geometry.
const (
	Rows = 4
	Cols = 20
)

// Device is a character display surface.
type Device interface {
	// Clear blanks the screen and homes the cursor.
	Clear() error
	// WriteString writes s at (row, col), truncated at the right edge.
	WriteString(row, col int, s string) error
	// SetBacklight switches the backlight.
	SetBacklight(on bool) error
	// Close releases the bus.
	Close() error
}

// Fit pads or truncates s to exactly Cols characters.
func Fit(s string) string {
	if len(s) >= Cols {
		return s[:Cols]
	}
	return s + strings.Repeat(" ", Cols-len(s))
}
