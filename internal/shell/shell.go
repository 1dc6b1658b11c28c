// Package shell is the operator debug console: it reads the buttons, drives
// the LED, clears the display and injects button events.
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"

	"github.com/sweeney/arrival-display/internal/logic"
)

// ErrBadCommand is returned for unknown commands and malformed arguments.
// Nothing is changed when it is returned.
var ErrBadCommand = errors.New("shell: bad command")

const usage = `commands:
  read                  sample the five button lines once
  led <mode> <option>   mode 0=persistent (option 0|1), 1=blinking (option = half period in seconds)
  clear                 clear the display
  button [name[+name]]  inject a button event (default RIGHT)
  exit                  stop the daemon
  help                  show this text
`

// Buttons samples the button lines.
type Buttons interface {
	Read() (logic.Sample, error)
}

// Injector queues a button event.
type Injector interface {
	Inject(sample logic.Sample) error
}

// LED is the indicator scheduler.
type LED interface {
	Set(mode logic.IndicatorMode, option float64) error
}

// Screen is the display controller.
type Screen interface {
	Clear() error
}

// Options wires the shell to the appliance.
type Options struct {
	Buttons  Buttons
	Injector Injector
	LED      LED
	Screen   Screen
	// Exit is called once by the exit command.
	Exit func()
	Out  io.Writer
	Log  *slog.Logger
}

// Shell executes debug commands.
type Shell struct {
	opts Options
	done bool
}

// New creates a Shell. Out defaults to stdout.
func New(opts Options) *Shell {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Exit == nil {
		opts.Exit = func() {}
	}
	return &Shell{opts: opts}
}

// Done reports whether exit was executed.
func (s *Shell) Done() bool {
	return s.done
}

// Execute runs one command line. Blank lines are ignored.
func (s *Shell) Execute(line string) error {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(words[0]), words[1:]

	switch cmd {
	case "read":
		if len(args) != 0 {
			return fmt.Errorf("%w: read takes no arguments", ErrBadCommand)
		}
		sample, err := s.opts.Buttons.Read()
		if err != nil {
			return fmt.Errorf("read buttons: %w", err)
		}
		fmt.Fprintln(s.opts.Out, sample.String())
		return nil

	case "led":
		mode, option, err := parseLED(args)
		if err != nil {
			return err
		}
		if err := s.opts.LED.Set(mode, option); err != nil {
			return fmt.Errorf("led: %w", err)
		}
		return nil

	case "clear":
		return s.opts.Screen.Clear()

	case "button":
		sample, err := parseButtons(args)
		if err != nil {
			return err
		}
		return s.opts.Injector.Inject(sample)

	case "exit", "quit":
		if !s.done {
			s.done = true
			fmt.Fprintln(s.opts.Out, "Bye Bye !!")
			s.opts.Exit()
		}
		return nil

	case "help", "?":
		fmt.Fprint(s.opts.Out, usage)
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", ErrBadCommand, cmd)
}

func parseLED(args []string) (logic.IndicatorMode, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("%w: usage: led <mode> <option>", ErrBadCommand)
	}
	m, err := strconv.Atoi(args[0])
	if err != nil || (m != int(logic.Persistent) && m != int(logic.Blinking)) {
		return 0, 0, fmt.Errorf("%w: mode %q (want 0 or 1)", ErrBadCommand, args[0])
	}
	option, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: option %q is not a number", ErrBadCommand, args[1])
	}
	return logic.IndicatorMode(m), option, nil
}

func parseButtons(args []string) (logic.Sample, error) {
	var sample logic.Sample
	if len(args) == 0 {
		return sample.With(logic.ButtonRight), nil
	}
	if len(args) > 1 {
		return sample, fmt.Errorf("%w: usage: button [name[+name]]", ErrBadCommand)
	}
	for _, name := range strings.Split(args[0], "+") {
		b, ok := logic.ParseButton(name)
		if !ok {
			return logic.Sample{}, fmt.Errorf("%w: unknown button %q", ErrBadCommand, name)
		}
		sample = sample.With(b)
	}
	return sample, nil
}

func (s *Shell) exec(line string) {
	if err := s.Execute(line); err != nil {
		fmt.Fprintln(s.opts.Out, "Error:", err)
		if s.opts.Log != nil && !errors.Is(err, ErrBadCommand) {
			s.opts.Log.Warn("shell command failed", "line", line, "error", err)
		}
	}
}

var suggestions = []prompt.Suggest{
	{Text: "read", Description: "sample the buttons"},
	{Text: "led", Description: "led <mode> <option>"},
	{Text: "clear", Description: "clear the display"},
	{Text: "button", Description: "inject a button event"},
	{Text: "exit", Description: "stop the daemon"},
	{Text: "help", Description: "list commands"},
}

func complete(d prompt.Document) []prompt.Suggest {
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}

// Run reads commands until exit or end of input. An interactive prompt is
// used when in is a terminal, plain lines otherwise.
func (s *Shell) Run(in *os.File) error {
	if isatty.IsTerminal(in.Fd()) {
		// go-prompt only returns on Ctrl-D; exit stops the daemon instead.
		prompt.New(s.exec, complete, prompt.OptionPrefix("> ")).Run()
		return nil
	}
	return s.RunLines(in)
}

// RunLines executes newline separated commands from r until exit or EOF.
func (s *Shell) RunLines(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for !s.done && scanner.Scan() {
		s.exec(strings.TrimSpace(scanner.Text()))
	}
	return scanner.Err()
}
