package nm

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotAvailable     = errors.New("not available")
	ErrNoWirelessDevice = errors.New("No wireless device found")
	ErrNoAccessPoint    = errors.New("no such access point")
	ErrInvalidPassword  = errors.New("Invalid Password")
	ErrTimeout          = errors.New("timed out waiting for the device")
	ErrMalformedReply   = errors.New("malformed reply from daemon")
	ErrAlreadyEnabled   = errors.New("already enabled")
	ErrAlreadyDisabled  = errors.New("already disabled")
)

// scanTooSoonMessage is the exact fault NetworkManager raises when a scan is
// requested while the previous one is still fresh.
const scanTooSoonMessage = "Scanning not allowed immediately following previous scan"

// DaemonError is a method call rejected by NetworkManager. Error returns the
// daemon's own message so it can be shown to the operator verbatim.
type DaemonError struct {
	Name    string
	Message string
}

func (e *DaemonError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Message
}

// IsScanTooSoon reports whether err is the daemon refusing an immediate re-scan.
func IsScanTooSoon(err error) bool {
	var de *DaemonError
	return errors.As(err, &de) && de.Message == scanTooSoonMessage
}

// MissingPropertyError is returned when the daemon omits a property we rely on.
type MissingPropertyError struct {
	Property string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("missing property %q", e.Property)
}

// ConnectError is an asynchronous activation failure reported through the
// device StateChanged signal.
type ConnectError struct {
	SSID   string
	Reason uint32
}

func (e *ConnectError) Error() string {
	if e.Reason == DeviceStateReasonNoSecrets {
		return ErrInvalidPassword.Error()
	}
	return fmt.Sprintf("Could not connect. Reason number: %d", e.Reason)
}

// Is lets errors.Is(err, ErrInvalidPassword) match the secrets failure.
func (e *ConnectError) Is(target error) bool {
	return target == ErrInvalidPassword && e.Reason == DeviceStateReasonNoSecrets
}

// AccessPointError is returned when no access point broadcasts the SSID a new
// connection was requested for.
type AccessPointError struct {
	SSID string
}

func (e *AccessPointError) Error() string {
	return fmt.Sprintf("Connection to %s impossible. No such access point.", e.SSID)
}

func (e *AccessPointError) Unwrap() error { return ErrNoAccessPoint }
