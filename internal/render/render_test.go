package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/nmctl/nm"
)

func plain(buf *bytes.Buffer, format Format) *Renderer {
	return New(buf, NewDefaultTheme(), format, true)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	r := plain(&buf, FormatTable)
	require.NoError(t, r.Table([]string{"SSID", "BARS"}, [][]string{
		{"TacoBoutAGoodSignal", "****"},
		{"Dunder MiffLAN", "**"},
	}))

	out := buf.String()
	assert.Contains(t, out, "SSID")
	assert.Contains(t, out, "TacoBoutAGoodSignal")
	assert.NotContains(t, out, "\x1b[", "no colour was requested")
	assert.True(t, strings.Index(out, "TacoBoutAGoodSignal") < strings.Index(out, "Dunder MiffLAN"))
}

func TestEncode(t *testing.T) {
	ap := nm.AccessPoint{SSID: "Dunder MiffLAN", Mode: "Infra", MaxBitrateKbps: 130000, Strength: 41, Path: "/ap/1"}

	var buf bytes.Buffer
	require.NoError(t, plain(&buf, FormatJSON).Encode(ap))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Dunder MiffLAN", decoded["ssid"])
	assert.NotContains(t, decoded, "Path")

	buf.Reset()
	require.NoError(t, plain(&buf, FormatYAML).Encode(ap))
	assert.Contains(t, buf.String(), "ssid: Dunder MiffLAN")
	assert.Contains(t, buf.String(), "strength: 41")

	assert.Error(t, plain(&buf, FormatTable).Encode(ap))
}

func TestStatusAndSignalPlain(t *testing.T) {
	r := plain(&bytes.Buffer{}, FormatTable)
	assert.Equal(t, "full", r.Status(nm.TranslateStatus("CONNECTIVITY", 4)))
	assert.Equal(t, "***", r.Signal(72))
	assert.Equal(t, "--", r.Signal(-3))
}

func TestProgressSilentWhenStructured(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		var buf bytes.Buffer
		r := plain(&buf, format)
		r.Printf("Disabling WiFi ...")
		r.Successf("Done !")
		assert.Empty(t, buf.String(), format)
	}

	var buf bytes.Buffer
	r := plain(&buf, FormatTable)
	r.Printf("Disabling WiFi ...")
	r.Successf("Done !")
	assert.Equal(t, "Disabling WiFi ...\nDone !\n", buf.String())
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	plain(&buf, FormatTable).Error(errors.New("No wireless device found"))
	assert.Equal(t, "[Error]: No wireless device found\n", buf.String())
}

func TestLoadTheme(t *testing.T) {
	tomlData := `
		Primary = "#FF0000"
		Subtle = ["#00FF00", "#00EE00"]
		SignalLow = "#FFA500"
	`
	theme, err := LoadTheme(strings.NewReader(tomlData))
	require.NoError(t, err)

	assert.Equal(t, Color{lipgloss.Color("#FF0000")}, theme.Primary)
	assert.Equal(t, "#00FF00", theme.Subtle.Hex(false))
	assert.Equal(t, "#00EE00", theme.Subtle.Hex(true))
	assert.Equal(t, "#FFA500", theme.SignalLow.Hex(true))
	// Untouched colours keep their defaults.
	assert.Equal(t, NewDefaultTheme().Error, theme.Error)
}

func TestLoadThemeErrors(t *testing.T) {
	_, err := LoadTheme(nil)
	assert.Error(t, err)

	_, err = LoadTheme(strings.NewReader(`Primary = `))
	assert.Error(t, err)

	_, err = LoadTheme(strings.NewReader(`Primary = ["#000000"]`))
	assert.Error(t, err)
}
