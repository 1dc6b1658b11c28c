//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/arrival-display/internal/logic"
)

const consumer = "arrival-display"

// RealReader reads the buttons from actual hardware using Linux GPIO character device.
type RealReader struct {
	lines *gpiocdev.Lines
	pins  []int
}

// NewRealReader requests the five button lines as inputs.
// With activeLow the buttons pull the line to ground and use the internal pull-up;
// otherwise they pull it high against the internal pull-down.
func NewRealReader(chip string, pins ButtonPins, activeLow bool) (*RealReader, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer(consumer)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithPullDown)
	}

	offsets := pins.Offsets()
	lines, err := gpiocdev.RequestLines(chip, offsets, opts...)
	if err != nil {
		return nil, fmt.Errorf("request button lines %v: %w", offsets, err)
	}

	return &RealReader{lines: lines, pins: offsets}, nil
}

// Read samples all five lines in one request so the sample is atomic.
func (r *RealReader) Read() (logic.Sample, error) {
	var s logic.Sample
	values := make([]int, len(r.pins))
	if err := r.lines.Values(values); err != nil {
		return s, fmt.Errorf("read button lines: %w", err)
	}
	for i, v := range values {
		s[i] = v != 0
	}
	return s, nil
}

// Close releases GPIO resources.
// Lines are left as inputs with pull-down, matching Pi boot defaults.
func (r *RealReader) Close() error {
	if r.lines == nil {
		return nil
	}
	var errs []error
	if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure button lines: %w", err))
	}
	if err := r.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close button lines: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealWriter drives one output line.
type RealWriter struct {
	line *gpiocdev.Line
	pin  int
}

// NewRealWriter requests pin as an output driven to initial.
func NewRealWriter(chip string, pin, initial int) (*RealWriter, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(initial), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealWriter{line: line, pin: pin}, nil
}

// Set drives the line.
func (w *RealWriter) Set(level int) error {
	if err := w.line.SetValue(level); err != nil {
		return fmt.Errorf("set pin %d: %w", w.pin, err)
	}
	return nil
}

// Value reads back the line level.
func (w *RealWriter) Value() (int, error) {
	v, err := w.line.Value()
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", w.pin, err)
	}
	return v, nil
}

// Close drives the line low and releases it as an input with pull-down.
func (w *RealWriter) Close() error {
	var errs []error
	if err := w.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear pin %d: %w", w.pin, err))
	}
	if err := w.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", w.pin, err))
	}
	if err := w.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", w.pin, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
