// Package gpio provides button input and output line access with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/arrival-display/internal/logic"

// Reader reads the five button lines.
type Reader interface {
	// Read returns one atomic sample of all buttons (true = pressed).
	Read() (logic.Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// Writer drives a single binary output line (LED, relay).
type Writer interface {
	// Set drives the line to level (0 or 1).
	Set(level int) error

	// Value returns the level currently driven.
	Value() (int, error)

	// Close releases GPIO resources.
	Close() error
}

// ButtonPins maps each button to a BCM line offset.
type ButtonPins struct {
	Up    int `yaml:"up"`
	Down  int `yaml:"down"`
	Left  int `yaml:"left"`
	Right int `yaml:"right"`
	OK    int `yaml:"ok"`
}

// Offsets returns the pins in logic.Button order.
func (p ButtonPins) Offsets() []int {
	return []int{p.Up, p.Down, p.Left, p.Right, p.OK}
}

// Default pin definitions (BCM numbering, front panel rev 1).
var DefaultButtonPins = ButtonPins{Up: 20, Down: 6, Left: 26, Right: 16, OK: 13}

const (
	DefaultPinLED   = 17
	DefaultPinRelay = 27
	DefaultChip     = "gpiochip0"
)
