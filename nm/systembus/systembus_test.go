//go:build linux

package systembus

import (
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/shazow/nmctl/nm"
)

const scanTooSoon = "Scanning not allowed immediately following previous scan"

func TestDaemonError(t *testing.T) {
	plain := errors.New("connection reset")
	tests := []struct {
		name     string
		err      error
		wantName string
		wantMsg  string
	}{
		{
			name:     "value",
			err:      dbus.Error{Name: "org.freedesktop.NetworkManager.Device.NotAllowed", Body: []interface{}{scanTooSoon}},
			wantName: "org.freedesktop.NetworkManager.Device.NotAllowed",
			wantMsg:  scanTooSoon,
		},
		{
			name:     "pointer",
			err:      &dbus.Error{Name: "org.freedesktop.NetworkManager.UnknownConnection", Body: []interface{}{"Connection not found"}},
			wantName: "org.freedesktop.NetworkManager.UnknownConnection",
			wantMsg:  "Connection not found",
		},
		{
			name:     "wrapped",
			err:      fmt.Errorf("call failed: %w", dbus.Error{Name: "org.freedesktop.NetworkManager.Device.NotAllowed", Body: []interface{}{scanTooSoon}}),
			wantName: "org.freedesktop.NetworkManager.Device.NotAllowed",
			wantMsg:  scanTooSoon,
		},
		{
			name:     "body without string",
			err:      dbus.Error{Name: "org.freedesktop.DBus.Error.Failed", Body: []interface{}{uint32(7)}},
			wantName: "org.freedesktop.DBus.Error.Failed",
		},
		{
			name:     "empty body",
			err:      dbus.Error{Name: "org.freedesktop.DBus.Error.NoReply"},
			wantName: "org.freedesktop.DBus.Error.NoReply",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := daemonError(tt.err)
			var de *nm.DaemonError
			if !errors.As(got, &de) {
				t.Fatalf("daemonError(%v) = %T, want *nm.DaemonError", tt.err, got)
			}
			if de.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", de.Name, tt.wantName)
			}
			if de.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", de.Message, tt.wantMsg)
			}
		})
	}

	if !nm.IsScanTooSoon(daemonError(dbus.Error{Name: "org.freedesktop.NetworkManager.Device.NotAllowed", Body: []interface{}{scanTooSoon}})) {
		t.Error("scan too soon reply was not recognized")
	}
	if got := daemonError(plain); got != plain {
		t.Errorf("daemonError(%v) = %v, want the error unchanged", plain, got)
	}
	if got := daemonError(nil); got != nil {
		t.Errorf("daemonError(nil) = %v, want nil", got)
	}
}
