// Package prompt asks the operator for the values a command was not given.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// ErrCancelled is returned when the operator aborts a prompt.
var ErrCancelled = errors.New("cancelled")

// Prompter reads answers from a terminal with an inline text field, or line
// by line from anything else.
type Prompter struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	lines       *bufio.Reader
}

// New prompts on in, interactively when it is a terminal.
func New(in *os.File, out io.Writer) *Prompter {
	fd := in.Fd()
	p := NewLineReader(in, out)
	p.interactive = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return p
}

// NewLineReader prompts by writing the label to out and reading a line from in.
func NewLineReader(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, lines: bufio.NewReader(in)}
}

// Prompt asks for label. Secret answers are not echoed on a terminal.
func (p *Prompter) Prompt(label string, secret bool) (string, error) {
	if p.interactive {
		return p.field(label, secret)
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.lines.ReadString('\n')
	switch {
	case errors.Is(err, io.EOF) && line == "":
		return "", ErrCancelled
	case err != nil && !errors.Is(err, io.EOF):
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Prompter) field(label string, secret bool) (string, error) {
	m := newModel(label, secret)
	final, err := tea.NewProgram(m, tea.WithInput(p.in), tea.WithOutput(p.out)).Run()
	if err != nil {
		return "", err
	}
	result := final.(model)
	if result.cancelled {
		return "", ErrCancelled
	}
	return result.input.Value(), nil
}

type model struct {
	input     textinput.Model
	done      bool
	cancelled bool
}

func newModel(label string, secret bool) model {
	ti := textinput.New()
	ti.Prompt = label + ": "
	ti.CharLimit = 64
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	ti.Focus()
	return model{input: ti}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return m.input.View() + "\n"
}
