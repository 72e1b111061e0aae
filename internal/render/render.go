// Package render prints command results as coloured tables or as JSON/YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"

	"github.com/shazow/nmctl/nm"
)

// Format is an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates an -output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// Renderer writes styled output to a single writer.
type Renderer struct {
	w      io.Writer
	lip    *lipgloss.Renderer
	theme  Theme
	format Format
}

// New creates a renderer on w. With noColor set every style is plain text.
func New(w io.Writer, theme Theme, format Format, noColor bool) *Renderer {
	lip := lipgloss.NewRenderer(w)
	if noColor {
		lip.SetColorProfile(termenv.Ascii)
	}
	if format == "" {
		format = FormatTable
	}
	return &Renderer{w: w, lip: lip, theme: theme, format: format}
}

// Format is the selected output format.
func (r *Renderer) Format() Format { return r.format }

// Structured reports whether results are encoded rather than drawn.
func (r *Renderer) Structured() bool { return r.format != FormatTable }

func (r *Renderer) style(c Color) lipgloss.Style {
	return r.lip.NewStyle().Foreground(c.TerminalColor)
}

// Encode writes v as JSON or YAML.
func (r *Renderer) Encode(v interface{}) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("cannot encode as %s", r.format)
}

// Table draws rows under headers.
func (r *Renderer) Table(headers []string, rows [][]string) error {
	header := r.lip.NewStyle().Bold(true).Foreground(r.theme.Primary.TerminalColor).Padding(0, 1)
	cell := r.lip.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.style(r.theme.Border)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	_, err := fmt.Fprintln(r.w, t.Render())
	return err
}

// KeyValues draws a two column table.
func (r *Renderer) KeyValues(pairs [][2]string) error {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	key := r.lip.NewStyle().Bold(true).Padding(0, 1)
	cell := r.lip.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.style(r.theme.Border)).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return key
			}
			return cell
		})
	_, err := fmt.Fprintln(r.w, t.Render())
	return err
}

// Status colours a translated status by its level.
func (r *Renderer) Status(s nm.Status) string {
	switch s.Level {
	case nm.LevelGood:
		return r.style(r.theme.Success).Render(s.Label)
	case nm.LevelWarn:
		return r.style(r.theme.Warn).Render(s.Label)
	case nm.LevelBad:
		return r.style(r.theme.Error).Render(s.Label)
	}
	return s.Label
}

// Signal renders the bars of a strength, coloured along the signal gradient.
func (r *Renderer) Signal(strength int) string {
	bars := nm.Bars(strength)
	if bars == nm.NoValue {
		return r.style(r.theme.Subtle).Render(bars)
	}
	return r.lip.NewStyle().Foreground(r.signalColor(strength)).Render(bars)
}

func (r *Renderer) signalColor(strength int) lipgloss.TerminalColor {
	dark := r.lip.HasDarkBackground()
	start, err := colorful.Hex(r.theme.SignalLow.Hex(dark))
	if err != nil {
		return lipgloss.NoColor{}
	}
	end, err := colorful.Hex(r.theme.SignalHigh.Hex(dark))
	if err != nil {
		return lipgloss.NoColor{}
	}
	p := float64(strength) / 100.0
	return lipgloss.Color(start.BlendRgb(end, p).Hex())
}

// Printf writes a plain line. Nothing is written in structured mode, where
// the output must stay a single document.
func (r *Renderer) Printf(format string, a ...interface{}) {
	if r.Structured() {
		return
	}
	fmt.Fprintf(r.w, format+"\n", a...)
}

// Successf writes a line in the success colour. Like Printf it is silent in
// structured mode.
func (r *Renderer) Successf(format string, a ...interface{}) {
	if r.Structured() {
		return
	}
	fmt.Fprintln(r.w, r.style(r.theme.Success).Render(fmt.Sprintf(format, a...)))
}

// Error writes "[Error]: msg" in the error colour.
func (r *Renderer) Error(err error) {
	fmt.Fprintln(r.w, r.style(r.theme.Error).Render("[Error]: "+err.Error()))
}
