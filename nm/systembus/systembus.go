//go:build linux

// Package systembus talks to NetworkManager over the D-Bus system bus.
package systembus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gonetworkmanager "github.com/Wifx/gonetworkmanager/v3"
	"github.com/godbus/dbus/v5"

	"github.com/shazow/nmctl/nm"
)

const propertiesInterface = "org.freedesktop.DBus.Properties"

// signalBuffer is how many signals a subscription holds before the reader
// catches up.
const signalBuffer = 32

// Bus implements nm.Bus on a private system bus connection.
type Bus struct {
	conn *dbus.Conn
	dest string
}

var _ nm.Bus = (*Bus)(nil)

// New connects to the system bus and checks that NetworkManager answers.
func New() (*Bus, error) {
	if _, err := Probe(); err != nil {
		return nil, err
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the system bus: %w", nm.ErrNotAvailable)
	}
	return &Bus{conn: conn, dest: nm.BusName}, nil
}

// Probe returns the daemon version, or nm.ErrNotAvailable when NetworkManager
// is not running.
func Probe() (string, error) {
	client, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return "", fmt.Errorf("failed to create network manager client: %w", nm.ErrNotAvailable)
	}
	version, err := client.GetPropertyVersion()
	if err != nil {
		return "", fmt.Errorf("network manager is not running: %w", nm.ErrNotAvailable)
	}
	return version, nil
}

func (b *Bus) object(path dbus.ObjectPath) dbus.BusObject {
	return b.conn.Object(b.dest, path)
}

// GetAll implements nm.Bus.
func (b *Bus) GetAll(ctx context.Context, path dbus.ObjectPath, iface string) (nm.Properties, error) {
	var raw map[string]dbus.Variant
	call := b.object(path).CallWithContext(ctx, propertiesInterface+".GetAll", 0, iface)
	if call.Err != nil {
		return nil, daemonError(call.Err)
	}
	if err := call.Store(&raw); err != nil {
		return nil, fmt.Errorf("%s.GetAll: %w", iface, err)
	}
	props := make(nm.Properties, len(raw))
	for k, v := range raw {
		props[k] = v.Value()
	}
	return props, nil
}

// Get implements nm.Bus.
func (b *Bus) Get(ctx context.Context, path dbus.ObjectPath, iface, prop string) (interface{}, error) {
	var v dbus.Variant
	call := b.object(path).CallWithContext(ctx, propertiesInterface+".Get", 0, iface, prop)
	if call.Err != nil {
		return nil, daemonError(call.Err)
	}
	if err := call.Store(&v); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", iface, prop, err)
	}
	return v.Value(), nil
}

// Set implements nm.Bus.
func (b *Bus) Set(ctx context.Context, path dbus.ObjectPath, iface, prop string, value interface{}) error {
	call := b.object(path).CallWithContext(ctx, propertiesInterface+".Set", 0, iface, prop, dbus.MakeVariant(value))
	return daemonError(call.Err)
}

// Call implements nm.Bus.
func (b *Bus) Call(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) ([]interface{}, error) {
	call := b.object(path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, daemonError(call.Err)
	}
	return call.Body, nil
}

// Subscribe implements nm.Bus. The connection delivers every matched signal
// to every channel, so signals are filtered again before being forwarded.
func (b *Bus) Subscribe(path dbus.ObjectPath, iface, member string) (*nm.Subscription, error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(member),
	}
	if err := b.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("could not add signal match: %w", daemonError(err))
	}

	in := make(chan *dbus.Signal, signalBuffer)
	out := make(chan *dbus.Signal, signalBuffer)
	b.conn.Signal(in)

	name := iface + "." + member
	go func() {
		defer close(out)
		for sig := range in {
			if sig.Path == path && sig.Name == name {
				out <- sig
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.conn.RemoveSignal(in)
			_ = b.conn.RemoveMatchSignal(opts...)
			close(in)
		})
	}
	return nm.NewSubscription(out, cancel), nil
}

// Close implements nm.Bus.
func (b *Bus) Close() error {
	return b.conn.Close()
}

// daemonError turns a D-Bus error reply into an *nm.DaemonError so callers
// see the daemon's message verbatim.
func daemonError(err error) error {
	if err == nil {
		return nil
	}
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return &nm.DaemonError{Name: dbusErr.Name, Message: errorMessage(dbusErr)}
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr != nil {
		return &nm.DaemonError{Name: dbusErrPtr.Name, Message: errorMessage(*dbusErrPtr)}
	}
	return err
}

func errorMessage(e dbus.Error) string {
	if len(e.Body) > 0 {
		if msg, ok := e.Body[0].(string); ok {
			return msg
		}
	}
	return ""
}
