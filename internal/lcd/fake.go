package lcd

import (
	"fmt"
	"strings"
	"sync"
)

// Fake is an in-memory Device for tests and headless runs.
type Fake struct {
	mu        sync.Mutex
	cells     [Rows][Cols]byte
	backlight bool
	clears    int
	writes    int

	// WriteError, if set, is returned by WriteString.
	WriteError error
	Closed     bool
}

// NewFake returns a blank Fake with the backlight on.
func NewFake() *Fake {
	f := &Fake{backlight: true}
	f.blank()
	return f
}

func (f *Fake) blank() {
	for r := range f.cells {
		for c := range f.cells[r] {
			f.cells[r][c] = ' '
		}
	}
}

func (f *Fake) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blank()
	f.clears++
	return nil
}

func (f *Fake) WriteString(row, col int, s string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	if row < 0 || row >= Rows || col < 0 || col >= Cols {
		return fmt.Errorf("lcd position %d,%d out of range", row, col)
	}
	for i := 0; i < len(s) && col+i < Cols; i++ {
		f.cells[row][col+i] = s[i]
	}
	f.writes++
	return nil
}

func (f *Fake) SetBacklight(on bool) error {
	f.mu.Lock()
	f.backlight = on
	f.mu.Unlock()
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// SetWriteError makes subsequent writes fail (nil clears it).
func (f *Fake) SetWriteError(err error) {
	f.mu.Lock()
	f.WriteError = err
	f.mu.Unlock()
}

// Line returns row as a string of Cols characters.
func (f *Fake) Line(row int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.cells[row][:])
}

// Lines returns all rows.
func (f *Fake) Lines() []string {
	out := make([]string, Rows)
	for r := range out {
		out[r] = f.Line(r)
	}
	return out
}

// Text returns the screen as newline-joined rows.
func (f *Fake) Text() string {
	return strings.Join(f.Lines(), "\n")
}

// Backlight reports the backlight state.
func (f *Fake) Backlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backlight
}

// Clears returns the number of Clear calls.
func (f *Fake) Clears() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

// Writes returns the number of successful WriteString calls.
func (f *Fake) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}
