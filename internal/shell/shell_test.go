package shell

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/arrival-display/internal/clock"
	"github.com/sweeney/arrival-display/internal/gpio"
	"github.com/sweeney/arrival-display/internal/indicator"
	"github.com/sweeney/arrival-display/internal/input"
	"github.com/sweeney/arrival-display/internal/logging/logtest"
	"github.com/sweeney/arrival-display/internal/logic"
)

type fakeScreen struct {
	clears int
	err    error
}

func (f *fakeScreen) Clear() error {
	f.clears++
	return f.err
}

type harness struct {
	sh      *Shell
	out     *bytes.Buffer
	buttons *gpio.FakeReader
	source  *input.Source
	led     *indicator.Scheduler
	pin     *gpio.FakeWriter
	screen  *fakeScreen
	exits   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logtest.New(t)
	h := &harness{
		out:     &bytes.Buffer{},
		buttons: gpio.NewFakeReader([]logic.Sample{logic.Sample{}.With(logic.ButtonUp).With(logic.ButtonOK)}),
		pin:     gpio.NewFakeWriter(),
		screen:  &fakeScreen{},
	}
	h.source = input.New(gpio.NewFakeReader([]logic.Sample{{}}), log)
	led, err := indicator.New(h.pin, clock.NewFake(time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)), log)
	require.NoError(t, err)
	h.led = led
	h.sh = New(Options{
		Buttons:  h.buttons,
		Injector: h.source,
		LED:      h.led,
		Screen:   h.screen,
		Exit:     func() { h.exits++ },
		Out:      h.out,
		Log:      log,
	})
	return h
}

func TestRead(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sh.Execute("read"))
	assert.Equal(t, "UP+OK\n", h.out.String())
	assert.Equal(t, 0, h.source.Pending(), "read must not consume queued events")
}

func TestReadFault(t *testing.T) {
	h := newHarness(t)
	h.buttons.SetError(errors.New("line busy"))
	err := h.sh.Execute("read")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadCommand)
}

func TestLED(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sh.Execute("led 0 1"))
	assert.Equal(t, logic.IndicatorOn, h.led.Command())

	require.NoError(t, h.sh.Execute("led 1 0.25"))
	assert.Equal(t, logic.Blink(logic.FastBlink), h.led.Command())
	assert.Equal(t, 1, h.led.Restarts())
}

func TestLEDBadArgumentsLeaveStateAlone(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sh.Execute("led 0 1"))
	writes := len(h.pin.Writes())

	for _, line := range []string{"led", "led 1", "led x 1", "led 2 1", "led 1 fast", "led 0 1 2"} {
		err := h.sh.Execute(line)
		assert.ErrorIs(t, err, ErrBadCommand, line)
	}
	assert.Equal(t, logic.IndicatorOn, h.led.Command())
	assert.Len(t, h.pin.Writes(), writes)
}

func TestLEDRejectedLevel(t *testing.T) {
	h := newHarness(t)
	err := h.sh.Execute("led 0 0.5")
	assert.ErrorIs(t, err, indicator.ErrBadOption)
	assert.Equal(t, logic.IndicatorOff, h.led.Command())
}

func TestClear(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sh.Execute("clear"))
	assert.Equal(t, 1, h.screen.clears)
}

func TestButtonInjection(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.sh.Execute("button"))
	require.NoError(t, h.sh.Execute("button ok"))
	require.NoError(t, h.sh.Execute("button up+left"))

	want := []logic.Sample{
		logic.Sample{}.With(logic.ButtonRight),
		logic.Sample{}.With(logic.ButtonOK),
		logic.Sample{}.With(logic.ButtonUp).With(logic.ButtonLeft),
	}
	for _, w := range want {
		got, ok := h.source.Read()
		require.True(t, ok)
		assert.Equal(t, w, got)
	}
	_, ok := h.source.Read()
	assert.False(t, ok)
}

func TestButtonBadName(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.sh.Execute("button jump"), ErrBadCommand)
	assert.ErrorIs(t, h.sh.Execute("button ok+jump"), ErrBadCommand)
	assert.ErrorIs(t, h.sh.Execute("button ok up"), ErrBadCommand)
	assert.Equal(t, 0, h.source.Pending())
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.sh.Execute("dance"), ErrBadCommand)
	assert.NoError(t, h.sh.Execute("   "))
}

func TestHelp(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sh.Execute("help"))
	assert.Contains(t, h.out.String(), "led <mode> <option>")
}

func TestExitOnce(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sh.Execute("exit"))
	require.NoError(t, h.sh.Execute("exit"))
	assert.Equal(t, 1, h.exits)
	assert.True(t, h.sh.Done())
}

func TestRunLines(t *testing.T) {
	h := newHarness(t)
	script := "button ok\nled 9 9\n\nclear\nexit\nbutton\n"

	require.NoError(t, h.sh.RunLines(strings.NewReader(script)))

	assert.Equal(t, 1, h.source.Pending(), "commands after exit are not run")
	assert.Equal(t, 1, h.screen.clears)
	assert.Equal(t, 1, h.exits)
	assert.Contains(t, h.out.String(), "Error:")
}
