//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/arrival-display/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chip string, pins ButtonPins, activeLow bool) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (logic.Sample, error) {
	return logic.Sample{}, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RealWriter is not available on non-Linux platforms.
type RealWriter struct{}

// NewRealWriter returns an error on non-Linux platforms.
func NewRealWriter(chip string, pin, initial int) (*RealWriter, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (w *RealWriter) Set(level int) error {
	return errUnsupported
}

// Value is not implemented on non-Linux platforms.
func (w *RealWriter) Value() (int, error) {
	return 0, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *RealWriter) Close() error {
	return nil
}
