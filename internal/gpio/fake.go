package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/arrival-display/internal/logic"
)

// FakeReader is a test double that returns scripted button samples.
type FakeReader struct {
	mu sync.Mutex

	// Samples contains scripted samples to return.
	// Each call to Read() consumes the next sample.
	Samples []logic.Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	// Reads counts calls to Read.
	Reads int
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []logic.Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (logic.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads++
	if f.ReadError != nil {
		return logic.Sample{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return logic.Sample{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// SetError makes subsequent reads fail (nil clears it).
func (f *FakeReader) SetError(err error) {
	f.mu.Lock()
	f.ReadError = err
	f.mu.Unlock()
}

// ReadCount returns the number of Read calls so far.
func (f *FakeReader) ReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reads
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.mu.Lock()
	f.index = 0
	f.Closed = false
	f.mu.Unlock()
}

// FakeWriter records every level written to it.
type FakeWriter struct {
	mu     sync.Mutex
	level  int
	writes []int

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWriter creates a FakeWriter at level 0.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

// Set records level.
func (f *FakeWriter) Set(level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.level = level
	f.writes = append(f.writes, level)
	return nil
}

// Value returns the last level written.
func (f *FakeWriter) Value() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level, nil
}

// Writes returns a copy of all levels written so far.
func (f *FakeWriter) Writes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.writes...)
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
