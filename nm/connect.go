package nm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// Prompter asks the operator for a line of free-form input.
type Prompter interface {
	Prompt(label string, secret bool) (string, error)
}

// ConnectRequest is the input of WiFiService.Connect. Empty fields are asked
// for through Prompter, when there is one.
type ConnectRequest struct {
	SSID     string
	Password string
	Prompter Prompter
}

// ConnectResult describes a successful connect.
type ConnectResult struct {
	ID               string          `json:"id" yaml:"id"`
	UUID             string          `json:"uuid" yaml:"uuid"`
	ActiveConnection dbus.ObjectPath `json:"active_connection" yaml:"active_connection"`
	// Created is set when a new profile was made for a previously unknown network.
	Created bool `json:"created" yaml:"created"`
}

// DeviceStateChange is the payload of a device StateChanged signal.
type DeviceStateChange struct {
	New    uint32
	Old    uint32
	Reason uint32
}

// Connect joins a Wi-Fi network. A saved profile whose id equals the SSID is
// activated as is; otherwise a new profile is created and activated, and
// Connect waits for the device to either connect or fail.
func (s *WiFiService) Connect(ctx context.Context, req ConnectRequest) (ConnectResult, error) {
	profiles, err := s.c.Connections().Profiles(ctx)
	if err != nil {
		return ConnectResult{}, err
	}
	device, err := s.c.Devices().FindWireless(ctx)
	if err != nil {
		return ConnectResult{}, err
	}

	ssid := req.SSID
	if ssid == "" && req.Prompter != nil {
		if ssid, err = req.Prompter.Prompt("SSID", false); err != nil {
			return ConnectResult{}, err
		}
	}
	if ssid == "" {
		return ConnectResult{}, errors.New("an SSID is required")
	}

	for _, p := range profiles {
		if p.ID == ssid {
			return s.activateExisting(ctx, p, device)
		}
	}

	password := req.Password
	if password == "" && req.Prompter != nil {
		if password, err = req.Prompter.Prompt("Password", true); err != nil {
			return ConnectResult{}, err
		}
	}
	return s.establishNew(ctx, device, ssid, password)
}

// activateExisting only asks the daemon to activate the profile. Success means
// the request was accepted, not that the device is connected.
func (s *WiFiService) activateExisting(ctx context.Context, p ConnectionProfile, device dbus.ObjectPath) (ConnectResult, error) {
	s.c.Logger.Debug("activating saved profile", "id", p.ID, "uuid", p.UUID)
	active, err := callPath(ctx, s.c.Bus, ObjectPath, MethodActivateConnection, p.Path, device, NoObject)
	if err != nil {
		return ConnectResult{}, err
	}
	return ConnectResult{ID: p.ID, UUID: p.UUID, ActiveConnection: active}, nil
}

// pendingConnection is what the state handler knows about the profile being
// activated. It is captured by value when the wait starts.
type pendingConnection struct {
	ID   string
	UUID string
}

type activationOutcome struct {
	connected bool
	reason    uint32
}

// resolve maps a state change to an outcome. Only the activated and failed
// states are terminal; everything else keeps the wait going.
func (p pendingConnection) resolve(change DeviceStateChange) (activationOutcome, bool) {
	switch change.New {
	case DeviceStateActivated:
		return activationOutcome{connected: true}, true
	case DeviceStateFailed:
		return activationOutcome{reason: change.Reason}, true
	}
	return activationOutcome{}, false
}

func (s *WiFiService) establishNew(ctx context.Context, device dbus.ObjectPath, ssid, password string) (ConnectResult, error) {
	aps, err := s.scan(ctx, device)
	if err != nil {
		return ConnectResult{}, err
	}
	ap, ok := findAccessPoint(aps, ssid)
	if !ok {
		return ConnectResult{}, &AccessPointError{SSID: ssid}
	}

	pending := pendingConnection{ID: ssid, UUID: s.c.NewUUID()}
	spec := WirelessConnectionSpec{
		ID:       pending.ID,
		UUID:     pending.UUID,
		SSID:     ap.SSIDBytes,
		Password: password,
	}

	// Subscribe before the call so a fast transition cannot be missed; the
	// buffered signals are only consumed once the call succeeded.
	sub, err := s.c.Bus.Subscribe(device, DeviceInterface, SignalStateChanged)
	if err != nil {
		return ConnectResult{}, err
	}
	defer sub.Cancel()

	body, err := s.c.Bus.Call(ctx, ObjectPath, MethodAddAndActivateConnection, spec.Settings().wire(), device, ap.Path)
	if err != nil {
		return ConnectResult{}, err
	}
	result := ConnectResult{ID: pending.ID, UUID: pending.UUID, Created: true}
	if len(body) > 1 {
		result.ActiveConnection, _ = body[1].(dbus.ObjectPath)
	}
	s.c.Logger.Debug("waiting for device", "device", device, "id", pending.ID, "uuid", pending.UUID)

	outcome, err := s.awaitActivation(ctx, sub, device, pending)
	if err != nil {
		return ConnectResult{}, err
	}
	if outcome.connected {
		return result, nil
	}
	s.deleteFailedProfile(ctx, pending.UUID)
	return ConnectResult{}, &ConnectError{SSID: ssid, Reason: outcome.reason}
}

// awaitActivation blocks until the device reports a terminal state, the
// timeout fires or ctx is cancelled.
func (s *WiFiService) awaitActivation(ctx context.Context, sub *Subscription, device dbus.ObjectPath, pending pendingConnection) (activationOutcome, error) {
	done := make(chan activationOutcome, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			select {
			case sig, ok := <-sub.C:
				if !ok {
					return
				}
				change, err := parseStateChange(sig, device)
				if err != nil {
					s.c.Logger.Debug("ignoring signal", "error", err)
					continue
				}
				s.c.Logger.Debug("device state changed", "new", DeviceState(change.New).Label, "old", DeviceState(change.Old).Label, "reason", change.Reason)
				if outcome, terminal := pending.resolve(change); terminal {
					done <- outcome
					return
				}
			case <-stop:
				return
			}
		}
	}()

	var timeout <-chan time.Time
	if s.c.ConnectTimeout > 0 {
		t := time.NewTimer(s.c.ConnectTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case outcome := <-done:
		return outcome, nil
	case <-timeout:
		return activationOutcome{}, fmt.Errorf("connection to %s: %w after %s", pending.ID, ErrTimeout, s.c.ConnectTimeout)
	case <-ctx.Done():
		return activationOutcome{}, ctx.Err()
	}
}

// deleteFailedProfile removes the profile created for a failed attempt. A
// failure here is only logged; the connect error is what the operator sees.
func (s *WiFiService) deleteFailedProfile(ctx context.Context, uuid string) {
	if err := s.c.Connections().DeleteByUUID(ctx, uuid); err != nil {
		s.c.Logger.Warn("could not delete failed connection profile", "uuid", uuid, "error", err)
	}
}

func parseStateChange(sig *dbus.Signal, device dbus.ObjectPath) (DeviceStateChange, error) {
	if sig.Path != device || sig.Name != DeviceInterface+"."+SignalStateChanged {
		return DeviceStateChange{}, fmt.Errorf("unexpected signal %s from %s", sig.Name, sig.Path)
	}
	if len(sig.Body) != 3 {
		return DeviceStateChange{}, fmt.Errorf("%s has %d values: %w", sig.Name, len(sig.Body), ErrMalformedReply)
	}
	var vals [3]uint32
	for i, v := range sig.Body {
		n, ok := v.(uint32)
		if !ok {
			return DeviceStateChange{}, fmt.Errorf("%s value %d is %T: %w", sig.Name, i, v, ErrMalformedReply)
		}
		vals[i] = n
	}
	return DeviceStateChange{New: vals[0], Old: vals[1], Reason: vals[2]}, nil
}

// findAccessPoint returns the strongest access point broadcasting ssid. The
// name may be given either as listed or as the raw bytes of the SSID.
func findAccessPoint(aps []AccessPoint, ssid string) (AccessPoint, bool) {
	var (
		best  AccessPoint
		found bool
	)
	for _, ap := range aps {
		if ap.SSID != ssid && string(ap.SSIDBytes) != ssid {
			continue
		}
		if !found || ap.Strength > best.Strength {
			best = ap
			found = true
		}
	}
	return best, found
}
