package nm

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/godbus/dbus/v5"
)

// WiFiService drives the wireless radio and the connect workflow.
type WiFiService struct {
	c *Client
}

// Enabled reports the WirelessEnabled flag.
func (s *WiFiService) Enabled(ctx context.Context) (bool, error) {
	return s.c.getBool(ctx, ObjectPath, Interface, "WirelessEnabled")
}

// Status is the WIFI category translation of WirelessEnabled.
func (s *WiFiService) Status(ctx context.Context) (Status, error) {
	enabled, err := s.Enabled(ctx)
	if err != nil {
		return Status{}, err
	}
	return EnabledStatus("WIFI", enabled), nil
}

// SetEnabled switches the radio. It returns ErrAlreadyEnabled or
// ErrAlreadyDisabled when the radio is already in the requested state.
func (s *WiFiService) SetEnabled(ctx context.Context, enabled bool) error {
	current, err := s.Enabled(ctx)
	if err != nil {
		return err
	}
	if current == enabled {
		if enabled {
			return ErrAlreadyEnabled
		}
		return ErrAlreadyDisabled
	}
	return s.c.Bus.Set(ctx, ObjectPath, Interface, "WirelessEnabled", enabled)
}

// Rescan asks the wireless device to scan.
func (s *WiFiService) Rescan(ctx context.Context) error {
	device, err := s.c.Devices().FindWireless(ctx)
	if err != nil {
		return err
	}
	return s.requestScan(ctx, device)
}

// requestScan issues a scan. A "too soon" refusal is not retried: it waits
// ScanDelay and returns nil so the caller reads whatever the daemon cached.
func (s *WiFiService) requestScan(ctx context.Context, device dbus.ObjectPath) error {
	_, err := s.c.Bus.Call(ctx, device, MethodRequestScan, map[string]dbus.Variant{})
	if err == nil {
		return nil
	}
	if !IsScanTooSoon(err) {
		return fmt.Errorf("scan failed: %w", err)
	}
	s.c.Logger.Debug("scan refused, using cached access points", "delay", s.c.ScanDelay)
	select {
	case <-time.After(s.c.ScanDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScanAccessPoints scans on the first wireless device and returns the access
// points it sees, in daemon order.
func (s *WiFiService) ScanAccessPoints(ctx context.Context) ([]AccessPoint, error) {
	device, err := s.c.Devices().FindWireless(ctx)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, device)
}

func (s *WiFiService) scan(ctx context.Context, device dbus.ObjectPath) ([]AccessPoint, error) {
	if err := s.requestScan(ctx, device); err != nil {
		return nil, err
	}
	paths, err := callPaths(ctx, s.c.Bus, device, MethodGetAllAccessPoints)
	if err != nil {
		return nil, err
	}
	aps := make([]AccessPoint, 0, len(paths))
	for _, path := range paths {
		ap, err := s.accessPoint(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("access point %s: %w", path, err)
		}
		aps = append(aps, ap)
	}
	return aps, nil
}

func (s *WiFiService) accessPoint(ctx context.Context, path dbus.ObjectPath) (AccessPoint, error) {
	props, err := s.c.Bus.GetAll(ctx, path, AccessPointInterface)
	if err != nil {
		return AccessPoint{}, err
	}
	ssid, err := props.Bytes("Ssid")
	if err != nil {
		return AccessPoint{}, err
	}
	mode, err := props.Uint32("Mode")
	if err != nil {
		return AccessPoint{}, err
	}
	bitrate, err := props.Uint32("MaxBitrate")
	if err != nil {
		return AccessPoint{}, err
	}
	strength, err := props.Uint32("Strength")
	if err != nil {
		return AccessPoint{}, err
	}
	return AccessPoint{
		SSID:           DecodeSSID(ssid),
		SSIDBytes:      ssid,
		Mode:           APMode(mode),
		MaxBitrateKbps: bitrate,
		Strength:       int(strength),
		Path:           path,
	}, nil
}

// SortAccessPoints orders access points by signal strength, strongest first,
// then by SSID.
func SortAccessPoints(aps []AccessPoint) {
	sort.SliceStable(aps, func(i, j int) bool {
		if aps[i].Strength != aps[j].Strength {
			return aps[i].Strength > aps[j].Strength
		}
		return aps[i].SSID < aps[j].SSID
	})
}
