// Package mock is an in-memory NetworkManager for tests and the mock build.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/shazow/nmctl/nm"
)

// DefaultActionSleep is a delay before every action, to better emulate a
// real daemon when the mock backs the whole CLI.
var DefaultActionSleep = 300 * time.Millisecond

// Object paths of the seeded devices.
const (
	PhantomWifiDevice dbus.ObjectPath = "/org/freedesktop/NetworkManager/Devices/1"
	LoopbackDevice    dbus.ObjectPath = "/org/freedesktop/NetworkManager/Devices/2"
	EthernetDevice    dbus.ObjectPath = "/org/freedesktop/NetworkManager/Devices/3"
	WirelessDevice    dbus.ObjectPath = "/org/freedesktop/NetworkManager/Devices/4"
)

const (
	scanNotAllowedError = "org.freedesktop.NetworkManager.Device.NotAllowed"
	unknownObjectError  = "org.freedesktop.DBus.Error.UnknownObject"
	unknownMethodError  = "org.freedesktop.DBus.Error.UnknownMethod"
	invalidArgsError    = "org.freedesktop.DBus.Error.InvalidArgs"
	settingsError       = "org.freedesktop.NetworkManager.Settings.InvalidConnection"
)

// Call is one recorded method invocation.
type Call struct {
	Path   dbus.ObjectPath
	Method string
	Args   []interface{}
}

type handler func(path dbus.ObjectPath, args []interface{}) ([]interface{}, error)

type subscriber struct {
	path   dbus.ObjectPath
	name   string
	ch     chan *dbus.Signal
	closed bool
}

type profile struct {
	settings nm.ConnectionSettings
	secret   string
}

// Bus is a fake NetworkManager implementing nm.Bus.
type Bus struct {
	mu       sync.Mutex
	objects  map[dbus.ObjectPath]map[string]nm.Properties
	profiles map[dbus.ObjectPath]*profile
	handlers map[string]handler
	subs     []*subscriber
	calls    []Call
	serial   int

	// ScanTooSoon makes RequestScan fail the way the daemon does right after
	// a previous scan.
	ScanTooSoon bool
	// ScanError, when set, is returned by RequestScan.
	ScanError error
	// AddAndActivateError, when set, is returned by AddAndActivateConnection.
	AddAndActivateError error
	// ActivateError, when set, is returned by ActivateConnection.
	ActivateError error
	// DeleteError, when set, is returned by Settings.Connection.Delete.
	DeleteError error
	// JoinStates are emitted as device StateChanged signals once
	// AddAndActivateConnection succeeds. Nil means a clean activation.
	JoinStates []nm.DeviceStateChange
	// ActionSleep is slept before every call.
	ActionSleep time.Duration
}

var _ nm.Bus = (*Bus)(nil)

type accessPoint struct {
	ssid     string
	strength byte
	mode     uint32
	bitrate  uint32
}

type savedNetwork struct {
	id, uuid, typ, ssid, secret string
}

// New creates a mock daemon with a wireless device that sees a few fun
// networks, some of which are already saved.
func New() *Bus {
	b := &Bus{
		objects:  make(map[dbus.ObjectPath]map[string]nm.Properties),
		profiles: make(map[dbus.ObjectPath]*profile),
	}
	b.registerHandlers()

	b.objects[nm.ObjectPath] = map[string]nm.Properties{
		nm.Interface: {
			"Version":                 "1.46.0",
			"State":                   uint32(70),
			"Connectivity":            uint32(4),
			"NetworkingEnabled":       true,
			"WirelessEnabled":         true,
			"WirelessHardwareEnabled": true,
			"WwanEnabled":             false,
			"WwanHardwareEnabled":     false,
			"ActiveConnections":       []dbus.ObjectPath{},
		},
	}
	b.objects[nm.SettingsObjectPath] = map[string]nm.Properties{
		nm.SettingsInterface: {"Hostname": "mock-host"},
	}

	b.addDevice(PhantomWifiDevice, "wlan9", nm.DeviceTypeWifi, 20, false)
	b.addDevice(LoopbackDevice, "lo", 32, 100, true)
	b.addDevice(EthernetDevice, "eth0", nm.DeviceTypeEthernet, 20, true)
	b.addDevice(WirelessDevice, "wlan0", nm.DeviceTypeWifi, 30, true)
	b.objects[WirelessDevice][nm.DeviceInterface]["Driver"] = "iwlwifi"
	b.objects[WirelessDevice][nm.DeviceInterface]["HwAddress"] = "AA:BB:CC:DD:EE:FF"

	for _, ap := range []accessPoint{
		{"HideYoKidsHideYoWiFi", 72, 2, 270000},
		{"Password is password", 87, 2, 540000},
		{"TacoBoutAGoodSignal", 99, 2, 1200000},
		{"Dunder MiffLAN", 41, 2, 130000},
		{"Unencrypted_Honeypot", 18, 2, 54000},
		{"Police Surveillance 2", 48, 2, 130000},
		{"NeverGonnaGiveYouIP", 63, 1, 54000},
		{"", 25, 2, 65000},
	} {
		b.AddAccessPoint(ap.ssid, ap.strength, ap.mode, ap.bitrate)
	}

	for _, n := range []savedNetwork{
		{"Wired connection 1", "0b5f1c2e-5c39-4d2a-9a36-a27c1f6f2e11", "802-3-ethernet", "", ""},
		{"HideYoKidsHideYoWiFi", "67a548de-8383-4330-abf8-ce60544c5366", nm.WirelessType, "HideYoKidsHideYoWiFi", "hidden"},
		{"Password is password", "3f0fbb0c-2a64-4f5f-8c7b-5f1b8a0d2d01", nm.WirelessType, "Password is password", "password"},
		{"GET off my LAN", "d8a0b7e4-6b2f-4d9e-9c1e-0a7d1e2f3b4c", nm.WirelessType, "GET off my LAN", ""},
	} {
		b.AddProfile(n.id, n.uuid, n.typ, n.ssid, n.secret)
	}

	b.activate(b.profilePathByID("Wired connection 1"), EthernetDevice)
	b.objects[EthernetDevice][nm.DeviceInterface]["State"] = uint32(100)
	b.objects[EthernetDevice][nm.DeviceInterface]["HwAddress"] = "11:22:33:44:55:66"
	b.objects[EthernetDevice][nm.DeviceInterface]["Driver"] = "e1000e"
	b.objects[EthernetDevice][nm.DeviceInterface]["Ip4Config"] = b.addIP4Config("192.168.1.23", 24, "192.168.1.1", "192.168.1.1")
	return b
}

func (b *Bus) nextPath(kind string) dbus.ObjectPath {
	b.serial++
	return dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/NetworkManager/%s/%d", kind, b.serial))
}

func (b *Bus) addDevice(path dbus.ObjectPath, name string, typ, state uint32, realized bool) {
	b.objects[path] = map[string]nm.Properties{
		nm.DeviceInterface: {
			"Interface":        name,
			"DeviceType":       typ,
			"State":            state,
			"Real":             realized,
			"Managed":          true,
			"Autoconnect":      true,
			"Mtu":              uint32(1500),
			"Driver":           "",
			"ActiveConnection": nm.NoObject,
			"Ip4Config":        nm.NoObject,
		},
	}
	if typ == nm.DeviceTypeWifi {
		b.objects[path][nm.WirelessDeviceInterface] = nm.Properties{
			"AccessPoints": []dbus.ObjectPath{},
		}
	}
}

func (b *Bus) addIP4Config(addr string, prefix uint32, gateway, dns string) dbus.ObjectPath {
	path := b.nextPath("IP4Config")
	b.objects[path] = map[string]nm.Properties{
		nm.IP4ConfigInterface: {
			"AddressData": []map[string]dbus.Variant{
				{"address": dbus.MakeVariant(addr), "prefix": dbus.MakeVariant(prefix)},
			},
			"Gateway": gateway,
			"NameserverData": []map[string]dbus.Variant{
				{"address": dbus.MakeVariant(dns)},
			},
		},
	}
	return path
}

// AddAccessPoint makes the wireless device see a new access point.
func (b *Bus) AddAccessPoint(ssid string, strength byte, mode, bitrateKbps uint32) dbus.ObjectPath {
	b.mu.Lock()
	defer b.mu.Unlock()
	path := b.nextPath("AccessPoint")
	b.objects[path] = map[string]nm.Properties{
		nm.AccessPointInterface: {
			"Ssid":       []byte(ssid),
			"Strength":   strength,
			"Mode":       mode,
			"MaxBitrate": bitrateKbps,
		},
	}
	wireless := b.objects[WirelessDevice][nm.WirelessDeviceInterface]
	wireless["AccessPoints"] = append(wireless["AccessPoints"].([]dbus.ObjectPath), path)
	return path
}

// ClearAccessPoints removes every access point.
func (b *Bus) ClearAccessPoints() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, path := range b.objects[WirelessDevice][nm.WirelessDeviceInterface]["AccessPoints"].([]dbus.ObjectPath) {
		delete(b.objects, path)
	}
	b.objects[WirelessDevice][nm.WirelessDeviceInterface]["AccessPoints"] = []dbus.ObjectPath{}
}

// AddProfile saves a connection profile.
func (b *Bus) AddProfile(id, uuid, typ, ssid, secret string) dbus.ObjectPath {
	b.mu.Lock()
	defer b.mu.Unlock()
	settings := nm.ConnectionSettings{
		"connection": {"id": id, "uuid": uuid, "type": typ},
	}
	if typ == nm.WirelessType {
		settings[nm.WirelessType] = map[string]interface{}{"ssid": []byte(ssid), "mode": "infrastructure"}
		if secret != "" {
			settings[nm.WirelessType+"-security"] = map[string]interface{}{"key-mgmt": "wpa-psk"}
		}
	}
	return b.saveProfile(settings, secret)
}

func (b *Bus) saveProfile(settings nm.ConnectionSettings, secret string) dbus.ObjectPath {
	path := b.nextPath("Settings")
	b.profiles[path] = &profile{settings: settings, secret: secret}
	return path
}

func (b *Bus) profilePathByID(id string) dbus.ObjectPath {
	for path, p := range b.profiles {
		if p.settings.Value("connection", "id") == id {
			return path
		}
	}
	return ""
}

// HasProfile reports whether a profile with the uuid is saved.
func (b *Bus) HasProfile(uuid string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.profiles {
		if p.settings.Value("connection", "uuid") == uuid {
			return true
		}
	}
	return false
}

// ProfileSettings returns the settings of the profile with the given uuid.
func (b *Bus) ProfileSettings(uuid string) (nm.ConnectionSettings, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.profiles {
		if p.settings.Value("connection", "uuid") == uuid {
			return p.settings, true
		}
	}
	return nil, false
}

// activate creates an active connection of profile on device.
func (b *Bus) activate(profilePath, device dbus.ObjectPath) dbus.ObjectPath {
	p := b.profiles[profilePath]
	path := b.nextPath("ActiveConnection")
	b.objects[path] = map[string]nm.Properties{
		nm.ActiveConnectionInterface: {
			"Id":         p.settings.Value("connection", "id"),
			"Uuid":       p.settings.Value("connection", "uuid"),
			"Type":       p.settings.Value("connection", "type"),
			"Devices":    []dbus.ObjectPath{device},
			"Connection": profilePath,
		},
	}
	nmProps := b.objects[nm.ObjectPath][nm.Interface]
	nmProps["ActiveConnections"] = append(nmProps["ActiveConnections"].([]dbus.ObjectPath), path)
	if dev, ok := b.objects[device]; ok {
		dev[nm.DeviceInterface]["ActiveConnection"] = path
	}
	return path
}

func (b *Bus) deactivate(active dbus.ObjectPath) error {
	nmProps := b.objects[nm.ObjectPath][nm.Interface]
	paths := nmProps["ActiveConnections"].([]dbus.ObjectPath)
	for i, p := range paths {
		if p != active {
			continue
		}
		nmProps["ActiveConnections"] = append(append([]dbus.ObjectPath{}, paths[:i]...), paths[i+1:]...)
		for _, dev := range b.objects[active][nm.ActiveConnectionInterface]["Devices"].([]dbus.ObjectPath) {
			if obj, ok := b.objects[dev]; ok {
				obj[nm.DeviceInterface]["ActiveConnection"] = nm.NoObject
				obj[nm.DeviceInterface]["State"] = uint32(30)
			}
		}
		delete(b.objects, active)
		return nil
	}
	return &nm.DaemonError{Name: "org.freedesktop.NetworkManager.ConnectionNotActive", Message: "The connection was not active."}
}

// Calls returns every recorded method call, oldest first.
func (b *Bus) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount counts the calls made to method.
func (b *Bus) CallCount(method string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Methods lists the called methods in order, without the interface prefix.
func (b *Bus) Methods() []string {
	var out []string
	for _, c := range b.Calls() {
		out = append(out, c.Method[strings.LastIndex(c.Method, ".")+1:])
	}
	return out
}

// GetAll implements nm.Bus.
func (b *Bus) GetAll(ctx context.Context, path dbus.ObjectPath, iface string) (nm.Properties, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	props, err := b.lookup(path, iface)
	if err != nil {
		return nil, err
	}
	out := make(nm.Properties, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, nil
}

// Get implements nm.Bus.
func (b *Bus) Get(ctx context.Context, path dbus.ObjectPath, iface, prop string) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	props, err := b.lookup(path, iface)
	if err != nil {
		return nil, err
	}
	v, ok := props[prop]
	if !ok {
		return nil, &nm.DaemonError{Name: invalidArgsError, Message: fmt.Sprintf("No such property %q", prop)}
	}
	return v, nil
}

// Set implements nm.Bus.
func (b *Bus) Set(ctx context.Context, path dbus.ObjectPath, iface, prop string, value interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Path: path, Method: "org.freedesktop.DBus.Properties.Set", Args: []interface{}{iface, prop, value}})
	props, err := b.lookup(path, iface)
	if err != nil {
		return err
	}
	if _, ok := props[prop]; !ok {
		return &nm.DaemonError{Name: invalidArgsError, Message: fmt.Sprintf("No such property %q", prop)}
	}
	props[prop] = value
	return nil
}

func (b *Bus) lookup(path dbus.ObjectPath, iface string) (nm.Properties, error) {
	obj, ok := b.objects[path]
	if !ok {
		return nil, &nm.DaemonError{Name: unknownObjectError, Message: fmt.Sprintf("Unknown object '%s'.", path)}
	}
	props, ok := obj[iface]
	if !ok {
		return nil, &nm.DaemonError{Name: invalidArgsError, Message: fmt.Sprintf("No such interface '%s'", iface)}
	}
	return props, nil
}

// Call implements nm.Bus.
func (b *Bus) Call(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) ([]interface{}, error) {
	if b.ActionSleep > 0 {
		time.Sleep(b.ActionSleep)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Path: path, Method: method, Args: args})
	h, ok := b.handlers[method]
	if !ok {
		return nil, &nm.DaemonError{Name: unknownMethodError, Message: fmt.Sprintf("No such method %q", method)}
	}
	return h(path, args)
}

// Subscribe implements nm.Bus.
func (b *Bus) Subscribe(path dbus.ObjectPath, iface, member string) (*nm.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &subscriber{path: path, name: iface + "." + member, ch: make(chan *dbus.Signal, 32)}
	b.subs = append(b.subs, s)
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, other := range b.subs {
			if other == s {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
	}
	return nm.NewSubscription(s.ch, cancel), nil
}

// Subscribers counts the live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// EmitStateChanged sends a device StateChanged signal.
func (b *Bus) EmitStateChanged(device dbus.ObjectPath, change nm.DeviceStateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitStateChangedLocked(device, change)
}

func (b *Bus) emitStateChangedLocked(device dbus.ObjectPath, change nm.DeviceStateChange) {
	if dev, ok := b.objects[device]; ok {
		dev[nm.DeviceInterface]["State"] = change.New
	}
	sig := &dbus.Signal{
		Sender: nm.BusName,
		Path:   device,
		Name:   nm.DeviceInterface + "." + nm.SignalStateChanged,
		Body:   []interface{}{change.New, change.Old, change.Reason},
	}
	for _, s := range b.subs {
		if s.path != sig.Path || s.name != sig.Name {
			continue
		}
		select {
		case s.ch <- sig:
		default:
		}
	}
}

// Close implements nm.Bus.
func (b *Bus) Close() error { return nil }

func (b *Bus) profilePaths() []dbus.ObjectPath {
	paths := make([]dbus.ObjectPath, 0, len(b.profiles))
	for path := range b.profiles {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		return pathSerial(paths[i]) < pathSerial(paths[j])
	})
	return paths
}

func pathSerial(p dbus.ObjectPath) int {
	var n int
	s := string(p)
	fmt.Sscanf(s[strings.LastIndex(s, "/")+1:], "%d", &n)
	return n
}
