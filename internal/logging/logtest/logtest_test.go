package logtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	testing.TB
	lines    []string
	cleanups []func()
}

func (r *recorder) Logf(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recorder) Cleanup(f func()) { r.cleanups = append(r.cleanups, f) }

func TestNewWritesThroughLogf(t *testing.T) {
	r := &recorder{TB: t}
	log := New(r)

	log.Debug("button pressed", "buttons", "UP")
	if assert.Len(t, r.lines, 1) {
		assert.True(t, strings.Contains(r.lines[0], "msg=\"button pressed\""), r.lines[0])
		assert.False(t, strings.HasSuffix(r.lines[0], "\n"))
	}
}

func TestNewDropsAfterCleanup(t *testing.T) {
	r := &recorder{TB: t}
	log := New(r)
	for _, f := range r.cleanups {
		f()
	}

	log.Info("late")
	assert.Empty(t, r.lines)
}
