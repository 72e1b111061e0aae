package nm

import (
	"context"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"
)

// DeviceService reads and mutates network devices.
type DeviceService struct {
	c *Client
}

// Paths lists every device object, realized or not, in daemon order.
func (s *DeviceService) Paths(ctx context.Context) ([]dbus.ObjectPath, error) {
	return callPaths(ctx, s.c.Bus, ObjectPath, MethodGetAllDevices)
}

// List returns every device. With detailed set it also loads driver, MTU and
// IPv4 configuration.
func (s *DeviceService) List(ctx context.Context, detailed bool) ([]Device, error) {
	paths, err := s.Paths(ctx)
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(paths))
	for _, path := range paths {
		d, err := s.load(ctx, path, detailed)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// Get returns the detailed device with the given interface name.
func (s *DeviceService) Get(ctx context.Context, name string) (Device, error) {
	paths, err := s.Paths(ctx)
	if err != nil {
		return Device{}, err
	}
	for _, path := range paths {
		iface, err := s.c.getString(ctx, path, DeviceInterface, "Interface")
		if err != nil {
			return Device{}, err
		}
		if iface == name {
			return s.load(ctx, path, true)
		}
	}
	return Device{}, fmt.Errorf("device %s: %w", name, ErrNotFound)
}

func (s *DeviceService) load(ctx context.Context, path dbus.ObjectPath, detailed bool) (Device, error) {
	props, err := s.c.Bus.GetAll(ctx, path, DeviceInterface)
	if err != nil {
		return Device{}, err
	}
	d := Device{Path: path}
	if d.Interface, err = props.String("Interface"); err != nil {
		return Device{}, err
	}
	if d.TypeCode, err = props.Uint32("DeviceType"); err != nil {
		return Device{}, err
	}
	if d.StateCode, err = props.Uint32("State"); err != nil {
		return Device{}, err
	}
	if d.Real, err = props.Bool("Real"); err != nil {
		return Device{}, err
	}
	d.Connection = NoValue
	if active, err := props.ObjectPath("ActiveConnection"); err == nil && isValidObject(active) {
		d.Connection = s.activeConnectionID(ctx, active)
	}

	if !detailed {
		return d, nil
	}
	// Older daemons do not expose every one of these, so they are optional.
	d.Driver, _ = props.String("Driver")
	d.HwAddress, _ = props.String("HwAddress")
	d.Mtu, _ = props.Uint32("Mtu")
	d.Managed, _ = props.Bool("Managed")
	d.Autoconnect, _ = props.Bool("Autoconnect")
	if cfg, err := props.ObjectPath("Ip4Config"); err == nil && isValidObject(cfg) {
		ipv4, err := s.ipv4Config(ctx, cfg)
		if err != nil {
			return Device{}, err
		}
		d.IPv4 = ipv4
	}
	return d, nil
}

// activeConnectionID resolves the display id of an active connection. The
// active connection may vanish between the two reads, which shows as "--".
func (s *DeviceService) activeConnectionID(ctx context.Context, path dbus.ObjectPath) string {
	id, err := s.c.getString(ctx, path, ActiveConnectionInterface, "Id")
	if err != nil {
		s.c.Logger.Debug("active connection lookup failed", "path", path, "error", err)
		return NoValue
	}
	return id
}

func (s *DeviceService) ipv4Config(ctx context.Context, path dbus.ObjectPath) (*IPv4Config, error) {
	props, err := s.c.Bus.GetAll(ctx, path, IP4ConfigInterface)
	if err != nil {
		return nil, err
	}
	cfg := &IPv4Config{}
	if addrs, err := props.Maps("AddressData"); err == nil {
		for _, a := range addrs {
			addr, _ := a["address"].(string)
			if prefix, ok := a["prefix"].(uint32); ok {
				addr = fmt.Sprintf("%s/%d", addr, prefix)
			}
			cfg.Addresses = append(cfg.Addresses, addr)
		}
	}
	cfg.Gateway, _ = props.String("Gateway")
	if servers, err := props.Maps("NameserverData"); err == nil {
		for _, ns := range servers {
			if addr, ok := ns["address"].(string); ok {
				cfg.Nameservers = append(cfg.Nameservers, addr)
			}
		}
	}
	return cfg, nil
}

// Reapply updates the device with the last changes made to its applied
// connection.
func (s *DeviceService) Reapply(ctx context.Context, name string) error {
	d, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	// An empty settings map asks the daemon to reapply the saved profile.
	_, err = s.c.Bus.Call(ctx, d.Path, MethodDeviceReapply, map[string]map[string]interface{}{}, uint64(0), uint32(0))
	return err
}

// Disconnect disconnects the device and blocks autoactivation.
func (s *DeviceService) Disconnect(ctx context.Context, name string) error {
	d, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	_, err = s.c.Bus.Call(ctx, d.Path, MethodDeviceDisconnect)
	return err
}

// Delete removes a software device.
func (s *DeviceService) Delete(ctx context.Context, name string) error {
	d, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	_, err = s.c.Bus.Call(ctx, d.Path, MethodDeviceDelete)
	return err
}

// SetManaged toggles whether the daemon manages the device.
func (s *DeviceService) SetManaged(ctx context.Context, name string, managed bool) error {
	d, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	return s.c.Bus.Set(ctx, d.Path, DeviceInterface, "Managed", managed)
}

// SetAutoconnect toggles autoconnect on the device.
func (s *DeviceService) SetAutoconnect(ctx context.Context, name string, autoconnect bool) error {
	d, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	return s.c.Bus.Set(ctx, d.Path, DeviceInterface, "Autoconnect", autoconnect)
}

// FindWireless returns the first realized Wi-Fi device in enumeration order.
// Only that device is ever used, even on multi-adapter systems.
func (s *DeviceService) FindWireless(ctx context.Context) (dbus.ObjectPath, error) {
	paths, err := s.Paths(ctx)
	if err != nil {
		return "", err
	}
	for _, path := range paths {
		props, err := s.c.Bus.GetAll(ctx, path, DeviceInterface)
		if err != nil {
			return "", err
		}
		isReal, err := props.Bool("Real")
		if err != nil {
			return "", err
		}
		typ, err := props.Uint32("DeviceType")
		if err != nil {
			return "", err
		}
		if isReal && typ == DeviceTypeWifi {
			return path, nil
		}
	}
	return "", ErrNoWirelessDevice
}

// SortDevices orders devices by connection name then type, descending, so
// connected devices come before the "--" ones.
func SortDevices(devices []Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		a, b := devices[i], devices[j]
		if a.Connection != b.Connection {
			return a.Connection > b.Connection
		}
		return a.Type() > b.Type()
	})
}
