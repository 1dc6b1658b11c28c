package lcd

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

type command byte

const (
	commandClear    command = 0x01
	commandReturn   command = 0x02
	commandEntry    command = 0x04
	commandControl  command = 0x08
	commandFunction command = 0x20
	commandAddress  command = 0x80
)

const (
	controlOn    = 0x04
	entryRight   = 0x02
	function2Row = 0x08 // 4-bit bus, 2 logical lines, 5x8 font
)

// PCF8574 backpack pin mapping.
const (
	bitRS        = 0x01
	bitEnable    = 0x04
	bitBacklight = 0x08
)

// DDRAM start address of each row on a 20x4 module.
var rowOffsets = [Rows]byte{0x00, 0x40, 0x14, 0x54}

// DefaultAddr is the usual address of a PCF8574 backpack.
const DefaultAddr = 0x27

// HD44780 is an HD44780 module behind a PCF8574 I2C expander, driven in
// 4-bit mode.
type HD44780 struct {
	mu        sync.Mutex
	bus       i2c.BusCloser
	dev       *i2c.Dev
	backlight byte
}

// Open initialises the periph host, opens the I2C bus (empty name = first
// bus) and initialises the display.
func Open(busName string, addr uint16) (*HD44780, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	d := &HD44780{
		bus:       bus,
		dev:       &i2c.Dev{Bus: bus, Addr: addr},
		backlight: bitBacklight,
	}
	if err := d.init(); err != nil {
		bus.Close()
		return nil, fmt.Errorf("init lcd at 0x%02x: %w", addr, err)
	}
	return d, nil
}

func (d *HD44780) init() error {
	time.Sleep(20 * time.Millisecond)

	// special sequence: force 8-bit mode three times, then switch to 4-bit
	for _, nibble := range []byte{0x30, 0x30, 0x30, 0x20} {
		if err := d.pulse(nibble); err != nil {
			return err
		}
		time.Sleep(5 * time.Millisecond)
	}

	for _, c := range []command{
		commandFunction | function2Row,
		commandControl | controlOn,
		commandClear,
		commandEntry | entryRight,
	} {
		if err := d.command(c); err != nil {
			return err
		}
	}
	time.Sleep(2 * time.Millisecond)
	return nil
}

// write sends one raw byte to the expander with the backlight bit applied.
func (d *HD44780) write(b byte) error {
	_, err := d.dev.Write([]byte{b | d.backlight})
	return err
}

// pulse latches the high nibble of b by toggling Enable.
func (d *HD44780) pulse(b byte) error {
	if err := d.write(b | bitEnable); err != nil {
		return err
	}
	time.Sleep(time.Microsecond)
	if err := d.write(b &^ bitEnable); err != nil {
		return err
	}
	time.Sleep(50 * time.Microsecond)
	return nil
}

func (d *HD44780) send(b, mode byte) error {
	if err := d.pulse(mode | (b & 0xf0)); err != nil {
		return err
	}
	return d.pulse(mode | (b<<4)&0xf0)
}

func (d *HD44780) command(c command) error {
	return d.send(byte(c), 0)
}

// Clear blanks the screen.
func (d *HD44780) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.command(commandClear); err != nil {
		return fmt.Errorf("lcd clear: %w", err)
	}
	// TODO poll busy flag instead of sleeping
	time.Sleep(2 * time.Millisecond)
	return d.command(commandReturn)
}

// WriteString writes s at (row, col).
func (d *HD44780) WriteString(row, col int, s string) error {
	if row < 0 || row >= Rows || col < 0 || col >= Cols {
		return fmt.Errorf("lcd position %d,%d out of range", row, col)
	}
	if max := Cols - col; len(s) > max {
		s = s[:max]
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.command(commandAddress | command(rowOffsets[row]+byte(col))); err != nil {
		return fmt.Errorf("lcd address: %w", err)
	}
	for i := 0; i < len(s); i++ {
		if err := d.send(s[i], bitRS); err != nil {
			return fmt.Errorf("lcd data: %w", err)
		}
	}
	return nil
}

// SetBacklight switches the backlight bit on the expander.
func (d *HD44780) SetBacklight(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if on {
		d.backlight = bitBacklight
	} else {
		d.backlight = 0
	}
	if err := d.write(0); err != nil {
		return fmt.Errorf("lcd backlight: %w", err)
	}
	return nil
}

// Close releases the I2C bus.
func (d *HD44780) Close() error {
	return d.bus.Close()
}
