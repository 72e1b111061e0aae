package mock

import (
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"

	"github.com/shazow/nmctl/nm"
)

func (b *Bus) registerHandlers() {
	b.handlers = map[string]handler{
		nm.MethodGetAllDevices:            b.getAllDevices,
		nm.MethodActivateConnection:       b.activateConnection,
		nm.MethodAddAndActivateConnection: b.addAndActivateConnection,
		nm.MethodDeactivateConnection:     b.deactivateConnection,
		nm.MethodEnable:                   b.enable,
		nm.MethodCheckConnectivity:        b.checkConnectivity,
		nm.MethodDeviceReapply:            b.deviceReapply,
		nm.MethodDeviceDisconnect:         b.deviceDisconnect,
		nm.MethodDeviceDelete:             b.deviceDelete,
		nm.MethodRequestScan:              b.requestScan,
		nm.MethodGetAllAccessPoints:       b.getAllAccessPoints,
		nm.MethodListConnections:          b.listConnections,
		nm.MethodGetConnectionByUUID:      b.getConnectionByUUID,
		nm.MethodGetSettings:              b.getSettings,
		nm.MethodGetSecrets:               b.getSecrets,
		nm.MethodDeleteConnection:         b.deleteConnection,
	}
}

func invalidArgs(format string, a ...interface{}) error {
	return &nm.DaemonError{Name: invalidArgsError, Message: fmt.Sprintf(format, a...)}
}

func (b *Bus) device(path dbus.ObjectPath) (nm.Properties, error) {
	return b.lookup(path, nm.DeviceInterface)
}

func (b *Bus) getAllDevices(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	var devices []dbus.ObjectPath
	for p, obj := range b.objects {
		if _, ok := obj[nm.DeviceInterface]; ok {
			devices = append(devices, p)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return pathSerial(devices[i]) < pathSerial(devices[j]) })
	return []interface{}{devices}, nil
}

func (b *Bus) activateConnection(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	if b.ActivateError != nil {
		return nil, b.ActivateError
	}
	if len(args) != 3 {
		return nil, invalidArgs("ActivateConnection takes 3 arguments, got %d", len(args))
	}
	profilePath, _ := args[0].(dbus.ObjectPath)
	device, _ := args[1].(dbus.ObjectPath)
	if _, ok := b.profiles[profilePath]; !ok {
		return nil, &nm.DaemonError{Name: "org.freedesktop.NetworkManager.UnknownConnection", Message: "Connection not found"}
	}
	if device == nm.NoObject || device == "" {
		device = b.deviceFor(b.profiles[profilePath].settings.Value("connection", "type"))
	}
	if device == "" {
		return nil, &nm.DaemonError{Name: "org.freedesktop.NetworkManager.UnknownDevice", Message: "No suitable device found for this connection"}
	}
	dev, err := b.device(device)
	if err != nil {
		return nil, err
	}
	active := b.activate(profilePath, device)
	dev["State"] = nm.DeviceStateActivated
	return []interface{}{active}, nil
}

// deviceFor picks the device the daemon would choose for a profile type.
func (b *Bus) deviceFor(typ string) dbus.ObjectPath {
	switch typ {
	case nm.WirelessType:
		return WirelessDevice
	case "802-3-ethernet":
		return EthernetDevice
	}
	return ""
}

func (b *Bus) addAndActivateConnection(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	if b.AddAndActivateError != nil {
		return nil, b.AddAndActivateError
	}
	if len(args) != 3 {
		return nil, invalidArgs("AddAndActivateConnection takes 3 arguments, got %d", len(args))
	}
	raw, ok := args[0].(map[string]map[string]interface{})
	if !ok {
		return nil, invalidArgs("settings are %T", args[0])
	}
	device, _ := args[1].(dbus.ObjectPath)
	if _, err := b.lookup(device, nm.WirelessDeviceInterface); err != nil {
		return nil, err
	}
	specific, _ := args[2].(dbus.ObjectPath)
	if _, err := b.lookup(specific, nm.AccessPointInterface); err != nil {
		return nil, err
	}
	settings := make(nm.ConnectionSettings, len(raw))
	for group, values := range raw {
		settings[group] = make(map[string]interface{}, len(values))
		for k, v := range values {
			settings[group][k] = v
		}
	}
	if settings.Value("connection", "uuid") == "" {
		return nil, &nm.DaemonError{Name: settingsError, Message: "connection.uuid: property is missing"}
	}
	secret := settings.Value(nm.WirelessType+"-security", "psk")
	profilePath := b.saveProfile(settings, secret)
	active := b.activate(profilePath, device)

	states := b.JoinStates
	if states == nil {
		states = []nm.DeviceStateChange{
			{New: 40, Old: 30, Reason: 0},
			{New: 50, Old: 40, Reason: 0},
			{New: 70, Old: 50, Reason: 0},
			{New: nm.DeviceStateActivated, Old: 70, Reason: 0},
		}
	}
	for _, change := range states {
		b.emitStateChangedLocked(device, change)
	}
	return []interface{}{profilePath, active}, nil
}

func (b *Bus) deactivateConnection(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	if len(args) != 1 {
		return nil, invalidArgs("DeactivateConnection takes 1 argument, got %d", len(args))
	}
	active, _ := args[0].(dbus.ObjectPath)
	return nil, b.deactivate(active)
}

func (b *Bus) enable(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	if len(args) != 1 {
		return nil, invalidArgs("Enable takes 1 argument, got %d", len(args))
	}
	enabled, ok := args[0].(bool)
	if !ok {
		return nil, invalidArgs("Enable takes a bool, got %T", args[0])
	}
	props := b.objects[nm.ObjectPath][nm.Interface]
	if props["NetworkingEnabled"] == enabled {
		msg := "Already enabled"
		if !enabled {
			msg = "Already disabled"
		}
		return nil, &nm.DaemonError{Name: "org.freedesktop.NetworkManager.AlreadyEnabledOrDisabled", Message: msg}
	}
	props["NetworkingEnabled"] = enabled
	if enabled {
		props["Connectivity"] = uint32(4)
		props["State"] = uint32(70)
	} else {
		props["Connectivity"] = uint32(1)
		props["State"] = uint32(10)
	}
	return nil, nil
}

func (b *Bus) checkConnectivity(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	return []interface{}{b.objects[nm.ObjectPath][nm.Interface]["Connectivity"]}, nil
}

func (b *Bus) deviceReapply(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	dev, err := b.device(path)
	if err != nil {
		return nil, err
	}
	if dev["ActiveConnection"] == nm.NoObject {
		return nil, &nm.DaemonError{Name: "org.freedesktop.NetworkManager.Device.NotActive", Message: "Device is not activated"}
	}
	return nil, nil
}

func (b *Bus) deviceDisconnect(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	dev, err := b.device(path)
	if err != nil {
		return nil, err
	}
	active, _ := dev["ActiveConnection"].(dbus.ObjectPath)
	if active == nm.NoObject {
		return nil, &nm.DaemonError{Name: "org.freedesktop.NetworkManager.Device.NotActive", Message: "This device is not active"}
	}
	return nil, b.deactivate(active)
}

func (b *Bus) deviceDelete(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	if _, err := b.device(path); err != nil {
		return nil, err
	}
	if path == EthernetDevice || path == WirelessDevice || path == LoopbackDevice {
		return nil, &nm.DaemonError{Name: "org.freedesktop.NetworkManager.Device.NotSoftware", Message: "This device is not a software device"}
	}
	delete(b.objects, path)
	return nil, nil
}

func (b *Bus) requestScan(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	if _, err := b.lookup(path, nm.WirelessDeviceInterface); err != nil {
		return nil, err
	}
	if b.ScanError != nil {
		return nil, b.ScanError
	}
	if b.ScanTooSoon {
		return nil, &nm.DaemonError{Name: scanNotAllowedError, Message: "Scanning not allowed immediately following previous scan"}
	}
	return nil, nil
}

func (b *Bus) getAllAccessPoints(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	props, err := b.lookup(path, nm.WirelessDeviceInterface)
	if err != nil {
		return nil, err
	}
	aps := append([]dbus.ObjectPath(nil), props["AccessPoints"].([]dbus.ObjectPath)...)
	return []interface{}{aps}, nil
}

func (b *Bus) listConnections(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	return []interface{}{b.profilePaths()}, nil
}

func (b *Bus) getConnectionByUUID(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	if len(args) != 1 {
		return nil, invalidArgs("GetConnectionByUuid takes 1 argument, got %d", len(args))
	}
	id, _ := args[0].(string)
	for p, prof := range b.profiles {
		if prof.settings.Value("connection", "uuid") == id {
			return []interface{}{p}, nil
		}
	}
	return nil, &nm.DaemonError{Name: invalidArgsError, Message: "No connection with the UUID was found."}
}

func (b *Bus) profile(path dbus.ObjectPath) (*profile, error) {
	p, ok := b.profiles[path]
	if !ok {
		return nil, &nm.DaemonError{Name: unknownObjectError, Message: fmt.Sprintf("Unknown object '%s'.", path)}
	}
	return p, nil
}

// getSettings answers with variants, the way godbus decodes a{sa{sv}}.
// Secrets are never part of the reply.
func (b *Bus) getSettings(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	p, err := b.profile(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]dbus.Variant, len(p.settings))
	for group, values := range p.settings {
		out[group] = make(map[string]dbus.Variant, len(values))
		for k, v := range values {
			if k == "psk" {
				continue
			}
			out[group][k] = dbus.MakeVariant(v)
		}
	}
	return []interface{}{out}, nil
}

func (b *Bus) getSecrets(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	p, err := b.profile(path)
	if err != nil {
		return nil, err
	}
	group, _ := args[0].(string)
	out := map[string]map[string]dbus.Variant{}
	if _, ok := p.settings[group]; ok {
		out[group] = map[string]dbus.Variant{"psk": dbus.MakeVariant(p.secret)}
	}
	return []interface{}{out}, nil
}

func (b *Bus) deleteConnection(path dbus.ObjectPath, args []interface{}) ([]interface{}, error) {
	if b.DeleteError != nil {
		return nil, b.DeleteError
	}
	if _, err := b.profile(path); err != nil {
		return nil, err
	}
	for active, obj := range b.objects {
		ac, ok := obj[nm.ActiveConnectionInterface]
		if ok && ac["Connection"] == path {
			_ = b.deactivate(active)
		}
	}
	delete(b.profiles, path)
	return nil, nil
}
