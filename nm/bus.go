package nm

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Well-known NetworkManager bus names, paths and interfaces.
const (
	BusName = "org.freedesktop.NetworkManager"

	ObjectPath         dbus.ObjectPath = "/org/freedesktop/NetworkManager"
	SettingsObjectPath dbus.ObjectPath = "/org/freedesktop/NetworkManager/Settings"

	// NoObject is the "/" placeholder NetworkManager accepts wherever an
	// optional object argument is left unspecified.
	NoObject dbus.ObjectPath = "/"

	Interface                   = "org.freedesktop.NetworkManager"
	DeviceInterface             = Interface + ".Device"
	WirelessDeviceInterface     = DeviceInterface + ".Wireless"
	AccessPointInterface        = Interface + ".AccessPoint"
	ActiveConnectionInterface   = Interface + ".Connection.Active"
	IP4ConfigInterface          = Interface + ".IP4Config"
	SettingsInterface           = Interface + ".Settings"
	SettingsConnectionInterface = SettingsInterface + ".Connection"
)

// Methods invoked on the daemon.
const (
	MethodGetAllDevices            = Interface + ".GetAllDevices"
	MethodActivateConnection       = Interface + ".ActivateConnection"
	MethodAddAndActivateConnection = Interface + ".AddAndActivateConnection"
	MethodDeactivateConnection     = Interface + ".DeactivateConnection"
	MethodEnable                   = Interface + ".Enable"
	MethodCheckConnectivity        = Interface + ".CheckConnectivity"

	MethodDeviceReapply    = DeviceInterface + ".Reapply"
	MethodDeviceDisconnect = DeviceInterface + ".Disconnect"
	MethodDeviceDelete     = DeviceInterface + ".Delete"

	MethodRequestScan        = WirelessDeviceInterface + ".RequestScan"
	MethodGetAllAccessPoints = WirelessDeviceInterface + ".GetAllAccessPoints"

	MethodListConnections     = SettingsInterface + ".ListConnections"
	MethodGetConnectionByUUID = SettingsInterface + ".GetConnectionByUuid"

	MethodGetSettings      = SettingsConnectionInterface + ".GetSettings"
	MethodGetSecrets       = SettingsConnectionInterface + ".GetSecrets"
	MethodDeleteConnection = SettingsConnectionInterface + ".Delete"
)

// SignalStateChanged is emitted by a device with (new, old, reason).
const SignalStateChanged = "StateChanged"

// Bus is the capability set the daemon exposes over the system bus.
type Bus interface {
	// GetAll returns every property of iface on the object at path.
	GetAll(ctx context.Context, path dbus.ObjectPath, iface string) (Properties, error)
	// Get returns a single property.
	Get(ctx context.Context, path dbus.ObjectPath, iface, prop string) (interface{}, error)
	// Set writes a single property.
	Set(ctx context.Context, path dbus.ObjectPath, iface, prop string, value interface{}) error
	// Call invokes a fully qualified method and returns the reply body.
	Call(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) ([]interface{}, error)
	// Subscribe delivers signals matching path, iface and member until the
	// subscription is cancelled.
	Subscribe(path dbus.ObjectPath, iface, member string) (*Subscription, error)
	// Close releases the underlying connection.
	Close() error
}

// Subscription is a live signal match.
type Subscription struct {
	C      <-chan *dbus.Signal
	cancel func()
}

// NewSubscription wraps a signal channel and the func that tears down its match.
func NewSubscription(c <-chan *dbus.Signal, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Cancel stops delivery. It is safe to call more than once.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// callOne invokes method and returns the first reply value.
func callOne(ctx context.Context, bus Bus, path dbus.ObjectPath, method string, args ...interface{}) (interface{}, error) {
	body, err := bus.Call(ctx, path, method, args...)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%s returned no value: %w", method, ErrMalformedReply)
	}
	return body[0], nil
}

func callPaths(ctx context.Context, bus Bus, path dbus.ObjectPath, method string, args ...interface{}) ([]dbus.ObjectPath, error) {
	v, err := callOne(ctx, bus, path, method, args...)
	if err != nil {
		return nil, err
	}
	paths, ok := v.([]dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("%s returned %T: %w", method, v, ErrMalformedReply)
	}
	return paths, nil
}

func callPath(ctx context.Context, bus Bus, path dbus.ObjectPath, method string, args ...interface{}) (dbus.ObjectPath, error) {
	v, err := callOne(ctx, bus, path, method, args...)
	if err != nil {
		return "", err
	}
	p, ok := v.(dbus.ObjectPath)
	if !ok {
		return "", fmt.Errorf("%s returned %T: %w", method, v, ErrMalformedReply)
	}
	return p, nil
}
