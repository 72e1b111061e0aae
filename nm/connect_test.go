package nm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/nmctl/nm"
	"github.com/shazow/nmctl/nm/mock"
)

const newUUID = "8d3b7c51-5b2e-4a31-b8a4-0c9e2f6d7a10"

func newClient(t *testing.T) (*nm.Client, *mock.Bus) {
	t.Helper()
	bus := mock.New()
	c := nm.NewClient(bus, nil)
	c.ScanDelay = 0
	c.NewUUID = func() string { return newUUID }
	return c, bus
}

type prompter struct {
	answers map[string]string
	asked   []string
}

func (p *prompter) Prompt(label string, secret bool) (string, error) {
	p.asked = append(p.asked, label)
	return p.answers[label], nil
}

func TestConnectSavedProfile(t *testing.T) {
	c, bus := newClient(t)

	result, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Password is password"})
	require.NoError(t, err)
	assert.Equal(t, "Password is password", result.ID)
	assert.Equal(t, "3f0fbb0c-2a64-4f5f-8c7b-5f1b8a0d2d01", result.UUID)
	assert.False(t, result.Created)
	assert.NotEmpty(t, result.ActiveConnection)

	assert.Equal(t, 1, bus.CallCount(nm.MethodActivateConnection))
	assert.Zero(t, bus.CallCount(nm.MethodAddAndActivateConnection))
	assert.Zero(t, bus.CallCount(nm.MethodRequestScan))
	assert.Zero(t, bus.Subscribers())
}

func TestConnectSavedProfileDoesNotPromptForPassword(t *testing.T) {
	c, _ := newClient(t)
	p := &prompter{answers: map[string]string{"SSID": "HideYoKidsHideYoWiFi"}}

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{Prompter: p})
	require.NoError(t, err)
	assert.Equal(t, []string{"SSID"}, p.asked)
}

func TestConnectNewNetwork(t *testing.T) {
	c, bus := newClient(t)
	bus.JoinStates = []nm.DeviceStateChange{
		{New: 40, Old: 30},
		{New: 50, Old: 40},
		{New: 60, Old: 50},
		{New: 70, Old: 60},
		{New: nm.DeviceStateActivated, Old: 70},
	}

	result, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "TacoBoutAGoodSignal", Password: "al pastor"})
	require.NoError(t, err)
	assert.Equal(t, "TacoBoutAGoodSignal", result.ID)
	assert.Equal(t, newUUID, result.UUID)
	assert.True(t, result.Created)

	assert.True(t, bus.HasProfile(newUUID))
	settings, _ := bus.ProfileSettings(newUUID)
	assert.Equal(t, "al pastor", settings.Value(nm.WirelessType+"-security", "psk"))
	assert.Zero(t, bus.CallCount(nm.MethodGetConnectionByUUID))
	assert.Zero(t, bus.CallCount(nm.MethodDeleteConnection))
	assert.Zero(t, bus.Subscribers(), "subscription must be released")
}

func lastCall(t *testing.T, bus *mock.Bus, method string) mock.Call {
	t.Helper()
	calls := bus.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method {
			return calls[i]
		}
	}
	t.Fatalf("%s was never called", method)
	return mock.Call{}
}

func TestConnectNewNetworkUsesMatchedAccessPoint(t *testing.T) {
	c, bus := newClient(t)
	aps, err := c.WiFi().ScanAccessPoints(context.Background())
	require.NoError(t, err)
	var taco dbus.ObjectPath
	for _, ap := range aps {
		if ap.SSID == "TacoBoutAGoodSignal" {
			taco = ap.Path
		}
	}
	require.NotEmpty(t, taco)

	_, err = c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "TacoBoutAGoodSignal", Password: "al pastor"})
	require.NoError(t, err)

	call := lastCall(t, bus, nm.MethodAddAndActivateConnection)
	require.Len(t, call.Args, 3)
	assert.Equal(t, mock.WirelessDevice, call.Args[1])
	assert.Equal(t, taco, call.Args[2])
}

func TestConnectNewNetworkPicksStrongestAccessPoint(t *testing.T) {
	c, bus := newClient(t)
	weak := bus.AddAccessPoint("Pretty Fly for a WiFi", 12, 2, 54000)
	strong := bus.AddAccessPoint("Pretty Fly for a WiFi", 91, 2, 866000)
	bus.AddAccessPoint("Pretty Fly for a WiFi", 55, 2, 130000)

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Pretty Fly for a WiFi", Password: "fly"})
	require.NoError(t, err)

	call := lastCall(t, bus, nm.MethodAddAndActivateConnection)
	assert.Equal(t, strong, call.Args[2])
	assert.NotEqual(t, weak, call.Args[2])
}

func TestConnectNonUTF8SSIDKeepsRawBytes(t *testing.T) {
	raw := []byte("caf\xc3\xa9")
	tests := []struct {
		name  string
		typed string
	}{
		{"typed name", "café"},
		{"listed name", nm.DecodeSSID(raw)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, bus := newClient(t)
			bus.AddAccessPoint(string(raw), 80, 2, 300000)

			result, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: tt.typed, Password: "croissant"})
			require.NoError(t, err)
			assert.Equal(t, tt.typed, result.ID)

			settings, ok := bus.ProfileSettings(newUUID)
			require.True(t, ok)
			assert.Equal(t, raw, settings[nm.WirelessType]["ssid"])
		})
	}
}

func TestConnectNewNetworkPrompts(t *testing.T) {
	c, bus := newClient(t)
	p := &prompter{answers: map[string]string{"SSID": "Dunder MiffLAN", "Password": "bears beets"}}

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{Prompter: p})
	require.NoError(t, err)
	assert.Equal(t, []string{"SSID", "Password"}, p.asked)
	settings, ok := bus.ProfileSettings(newUUID)
	require.True(t, ok)
	assert.Equal(t, "bears beets", settings.Value(nm.WirelessType+"-security", "psk"))
}

func TestConnectOpenNetwork(t *testing.T) {
	c, bus := newClient(t)

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Unencrypted_Honeypot"})
	require.NoError(t, err)
	settings, ok := bus.ProfileSettings(newUUID)
	require.True(t, ok)
	assert.NotContains(t, settings, nm.WirelessType+"-security")
}

func TestConnectInvalidPassword(t *testing.T) {
	c, bus := newClient(t)
	bus.JoinStates = []nm.DeviceStateChange{
		{New: 40, Old: 30},
		{New: 60, Old: 40},
		{New: nm.DeviceStateFailed, Old: 60, Reason: nm.DeviceStateReasonNoSecrets},
	}

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Dunder MiffLAN", Password: "wrong"})
	require.Error(t, err)
	assert.ErrorIs(t, err, nm.ErrInvalidPassword)
	assert.Equal(t, "Invalid Password", err.Error())

	// The profile created for the attempt is looked up by uuid and deleted.
	assert.False(t, bus.HasProfile(newUUID))
	calls := bus.Calls()
	var lookup *mock.Call
	for i := range calls {
		if calls[i].Method == nm.MethodGetConnectionByUUID {
			lookup = &calls[i]
		}
	}
	require.NotNil(t, lookup)
	assert.Equal(t, []interface{}{newUUID}, lookup.Args)
	methods := bus.Methods()
	assert.Equal(t, []string{"AddAndActivateConnection", "GetConnectionByUuid", "Delete"}, methods[len(methods)-3:])
}

func TestConnectFailedReason(t *testing.T) {
	c, bus := newClient(t)
	bus.JoinStates = []nm.DeviceStateChange{
		{New: nm.DeviceStateFailed, Old: 40, Reason: 53},
	}

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Dunder MiffLAN", Password: "bears"})
	var connectErr *nm.ConnectError
	require.True(t, errors.As(err, &connectErr))
	assert.EqualValues(t, 53, connectErr.Reason)
	assert.Equal(t, "Could not connect. Reason number: 53", err.Error())
	assert.False(t, bus.HasProfile(newUUID))
}

func TestConnectFailedDeleteErrorIsIgnored(t *testing.T) {
	c, bus := newClient(t)
	bus.JoinStates = []nm.DeviceStateChange{{New: nm.DeviceStateFailed, Reason: nm.DeviceStateReasonNoSecrets}}
	bus.DeleteError = errors.New("permission denied")

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Dunder MiffLAN", Password: "x"})
	assert.ErrorIs(t, err, nm.ErrInvalidPassword)
}

func TestConnectNoAccessPoint(t *testing.T) {
	c, bus := newClient(t)

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Pretty Fly for a WiFi", Password: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, nm.ErrNoAccessPoint)
	assert.Equal(t, "Connection to Pretty Fly for a WiFi impossible. No such access point.", err.Error())

	assert.Zero(t, bus.CallCount(nm.MethodAddAndActivateConnection))
	assert.Zero(t, bus.CallCount(nm.MethodActivateConnection))
	assert.Zero(t, bus.CallCount(nm.MethodDeleteConnection))
}

func TestConnectSSIDIsCaseSensitive(t *testing.T) {
	c, bus := newClient(t)

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "tacoboutagoodsignal", Password: "x"})
	assert.ErrorIs(t, err, nm.ErrNoAccessPoint)
	assert.Zero(t, bus.CallCount(nm.MethodAddAndActivateConnection))
}

func TestConnectScanTooSoon(t *testing.T) {
	c, bus := newClient(t)
	bus.ScanTooSoon = true

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "TacoBoutAGoodSignal", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, bus.CallCount(nm.MethodRequestScan), "a refused scan is not retried")
	assert.Equal(t, 1, bus.CallCount(nm.MethodGetAllAccessPoints))
}

func TestConnectScanError(t *testing.T) {
	c, bus := newClient(t)
	bus.ScanError = &nm.DaemonError{Message: "Scanning not allowed while unavailable"}

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "TacoBoutAGoodSignal", Password: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Scanning not allowed while unavailable")
	assert.Zero(t, bus.CallCount(nm.MethodAddAndActivateConnection))
}

func TestConnectTimeout(t *testing.T) {
	c, bus := newClient(t)
	c.ConnectTimeout = 20 * time.Millisecond
	bus.JoinStates = []nm.DeviceStateChange{{New: 40, Old: 30}, {New: 60, Old: 40}}

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Dunder MiffLAN", Password: "bears"})
	assert.ErrorIs(t, err, nm.ErrTimeout)
	// Timeouts leave the profile alone: the daemon may still finish.
	assert.True(t, bus.HasProfile(newUUID))
	assert.Zero(t, bus.Subscribers())
}

func TestConnectLateSignal(t *testing.T) {
	c, bus := newClient(t)
	c.ConnectTimeout = 0
	bus.JoinStates = []nm.DeviceStateChange{{New: 40, Old: 30}}

	go func() {
		for bus.CallCount(nm.MethodAddAndActivateConnection) == 0 {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(10 * time.Millisecond)
		bus.EmitStateChanged(mock.WirelessDevice, nm.DeviceStateChange{New: nm.DeviceStateActivated, Old: 40})
	}()

	result, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Dunder MiffLAN", Password: "bears"})
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestConnectCancelled(t *testing.T) {
	c, bus := newClient(t)
	bus.JoinStates = []nm.DeviceStateChange{{New: 40, Old: 30}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.WiFi().Connect(ctx, nm.ConnectRequest{SSID: "Dunder MiffLAN", Password: "bears"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnectAddAndActivateRejected(t *testing.T) {
	c, bus := newClient(t)
	bus.AddAndActivateError = &nm.DaemonError{Name: "org.freedesktop.NetworkManager.Settings.InvalidConnection", Message: "802-11-wireless-security.psk: property is invalid"}

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Dunder MiffLAN", Password: "short"})
	require.Error(t, err)
	assert.Equal(t, "802-11-wireless-security.psk: property is invalid", err.Error())
	assert.Zero(t, bus.Subscribers())
}

func TestConnectNoWirelessDevice(t *testing.T) {
	c, bus := newClient(t)
	require.NoError(t, bus.Set(context.Background(), mock.WirelessDevice, nm.DeviceInterface, "Real", false))

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{SSID: "Dunder MiffLAN"})
	assert.ErrorIs(t, err, nm.ErrNoWirelessDevice)
	assert.Equal(t, "No wireless device found", err.Error())
}

func TestConnectRequiresSSID(t *testing.T) {
	c, _ := newClient(t)

	_, err := c.WiFi().Connect(context.Background(), nm.ConnectRequest{Prompter: &prompter{}})
	assert.Error(t, err)
}
