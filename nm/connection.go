package nm

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

func newUUID() string { return uuid.New().String() }

// IsValidUUID reports whether s parses as an RFC4122 uuid.
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ConnectionService manages saved connection profiles and active connections.
type ConnectionService struct {
	c *Client
}

// Profiles lists every saved profile.
func (s *ConnectionService) Profiles(ctx context.Context) ([]ConnectionProfile, error) {
	paths, err := callPaths(ctx, s.c.Bus, SettingsObjectPath, MethodListConnections)
	if err != nil {
		return nil, err
	}
	profiles := make([]ConnectionProfile, 0, len(paths))
	for _, path := range paths {
		settings, err := s.settings(ctx, path)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, ConnectionProfile{
			ID:   settings.Value("connection", "id"),
			UUID: settings.Value("connection", "uuid"),
			Type: settings.Value("connection", "type"),
			Path: path,
		})
	}
	return profiles, nil
}

func (s *ConnectionService) settings(ctx context.Context, path dbus.ObjectPath) (ConnectionSettings, error) {
	v, err := callOne(ctx, s.c.Bus, path, MethodGetSettings)
	if err != nil {
		return nil, err
	}
	return settingsFromReply(v)
}

// Find looks a profile up by uuid or display id. A uuid match wins.
func (s *ConnectionService) Find(ctx context.Context, idOrUUID string) (ConnectionProfile, error) {
	profiles, err := s.Profiles(ctx)
	if err != nil {
		return ConnectionProfile{}, err
	}
	if IsValidUUID(idOrUUID) {
		for _, p := range profiles {
			if p.UUID == idOrUUID {
				return p, nil
			}
		}
	}
	for _, p := range profiles {
		if p.ID == idOrUUID {
			return p, nil
		}
	}
	return ConnectionProfile{}, fmt.Errorf("connection %s: %w", idOrUUID, ErrNotFound)
}

// Active lists the active connections with the first device of each.
func (s *ConnectionService) Active(ctx context.Context) ([]ActiveConnection, error) {
	v, err := s.c.Bus.Get(ctx, ObjectPath, Interface, "ActiveConnections")
	if err != nil {
		return nil, err
	}
	paths, err := Properties{"ActiveConnections": v}.ObjectPaths("ActiveConnections")
	if err != nil {
		return nil, err
	}
	active := make([]ActiveConnection, 0, len(paths))
	for _, path := range paths {
		props, err := s.c.Bus.GetAll(ctx, path, ActiveConnectionInterface)
		if err != nil {
			return nil, err
		}
		ac := ActiveConnection{Path: path, Device: NoValue}
		if ac.ID, err = props.String("Id"); err != nil {
			return nil, err
		}
		if ac.UUID, err = props.String("Uuid"); err != nil {
			return nil, err
		}
		if ac.Type, err = props.String("Type"); err != nil {
			return nil, err
		}
		devices, err := props.ObjectPaths("Devices")
		if err != nil {
			return nil, err
		}
		if len(devices) > 0 {
			name, err := s.c.getString(ctx, devices[0], DeviceInterface, "Interface")
			if err != nil {
				return nil, err
			}
			ac.Device = name
		}
		active = append(active, ac)
	}
	return active, nil
}

// Up activates a saved profile and lets the daemon pick the device.
func (s *ConnectionService) Up(ctx context.Context, idOrUUID string) (dbus.ObjectPath, error) {
	p, err := s.Find(ctx, idOrUUID)
	if err != nil {
		return "", err
	}
	return callPath(ctx, s.c.Bus, ObjectPath, MethodActivateConnection, p.Path, NoObject, NoObject)
}

// Down deactivates an active connection by uuid or display id.
func (s *ConnectionService) Down(ctx context.Context, idOrUUID string) error {
	active, err := s.Active(ctx)
	if err != nil {
		return err
	}
	for _, ac := range active {
		if ac.UUID == idOrUUID || ac.ID == idOrUUID {
			_, err := s.c.Bus.Call(ctx, ObjectPath, MethodDeactivateConnection, ac.Path)
			return err
		}
	}
	return fmt.Errorf("active connection %s: %w", idOrUUID, ErrNotFound)
}

// Delete removes a saved profile.
func (s *ConnectionService) Delete(ctx context.Context, idOrUUID string) (ConnectionProfile, error) {
	p, err := s.Find(ctx, idOrUUID)
	if err != nil {
		return ConnectionProfile{}, err
	}
	_, err = s.c.Bus.Call(ctx, p.Path, MethodDeleteConnection)
	return p, err
}

// DeleteByUUID resolves the profile through the daemon's uuid index and
// deletes it.
func (s *ConnectionService) DeleteByUUID(ctx context.Context, id string) error {
	path, err := callPath(ctx, s.c.Bus, SettingsObjectPath, MethodGetConnectionByUUID, id)
	if err != nil {
		return err
	}
	_, err = s.c.Bus.Call(ctx, path, MethodDeleteConnection)
	return err
}

// WirelessSecrets returns the raw SSID and pre-shared key of a saved Wi-Fi
// profile. Open networks have an empty key.
func (s *ConnectionService) WirelessSecrets(ctx context.Context, idOrUUID string) (ssid string, psk string, err error) {
	p, err := s.Find(ctx, idOrUUID)
	if err != nil {
		return "", "", err
	}
	if p.Type != WirelessType {
		return "", "", fmt.Errorf("connection %s is %s, not %s: %w", p.ID, p.Type, WirelessType, ErrNotFound)
	}
	settings, err := s.settings(ctx, p.Path)
	if err != nil {
		return "", "", err
	}
	raw, _ := settings[WirelessType]["ssid"].([]byte)
	ssid = string(raw)
	if _, ok := settings[WirelessType+"-security"]; !ok {
		return ssid, "", nil
	}

	v, err := callOne(ctx, s.c.Bus, p.Path, MethodGetSecrets, WirelessType+"-security")
	if err != nil {
		return "", "", err
	}
	secrets, err := settingsFromReply(v)
	if err != nil {
		return "", "", err
	}
	return ssid, secrets.Value(WirelessType+"-security", "psk"), nil
}
