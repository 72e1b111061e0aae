package nm

import (
	"github.com/godbus/dbus/v5"
)

// WirelessType is the connection type of Wi-Fi profiles.
const WirelessType = "802-11-wireless"

// AccessPoint is one entry of a scan. It is rebuilt on every scan.
type AccessPoint struct {
	SSID           string          `json:"ssid" yaml:"ssid"`
	SSIDBytes      []byte          `json:"-" yaml:"-"`
	Mode           string          `json:"mode" yaml:"mode"`
	MaxBitrateKbps uint32          `json:"max_bitrate_kbps" yaml:"max_bitrate_kbps"`
	Strength       int             `json:"strength" yaml:"strength"`
	Path           dbus.ObjectPath `json:"-" yaml:"-"`
}

// Rate is the human readable max bitrate.
func (ap AccessPoint) Rate() string { return FormatBitrate(ap.MaxBitrateKbps) }

// Bars is the 4-level signal indicator.
func (ap AccessPoint) Bars() string { return Bars(ap.Strength) }

// ConnectionProfile is a saved connection known to the daemon.
type ConnectionProfile struct {
	ID   string          `json:"id" yaml:"id"`
	UUID string          `json:"uuid" yaml:"uuid"`
	Type string          `json:"type" yaml:"type"`
	Path dbus.ObjectPath `json:"-" yaml:"-"`
}

// ActiveConnection is a live instantiation of a profile.
type ActiveConnection struct {
	ID     string          `json:"id" yaml:"id"`
	UUID   string          `json:"uuid" yaml:"uuid"`
	Type   string          `json:"type" yaml:"type"`
	Device string          `json:"device" yaml:"device"`
	Path   dbus.ObjectPath `json:"-" yaml:"-"`
}

// Device is a network device and the state the daemon reports for it.
type Device struct {
	Interface   string          `json:"interface" yaml:"interface"`
	TypeCode    uint32          `json:"type_code" yaml:"type_code"`
	StateCode   uint32          `json:"state_code" yaml:"state_code"`
	Connection  string          `json:"connection" yaml:"connection"`
	Driver      string          `json:"driver,omitempty" yaml:"driver,omitempty"`
	HwAddress   string          `json:"hw_address,omitempty" yaml:"hw_address,omitempty"`
	Mtu         uint32          `json:"mtu,omitempty" yaml:"mtu,omitempty"`
	Managed     bool            `json:"managed" yaml:"managed"`
	Autoconnect bool            `json:"autoconnect" yaml:"autoconnect"`
	Real        bool            `json:"real" yaml:"real"`
	IPv4        *IPv4Config     `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	Path        dbus.ObjectPath `json:"-" yaml:"-"`
}

// Type is the device type name.
func (d Device) Type() string { return DeviceType(d.TypeCode) }

// State is the translated device state.
func (d Device) State() Status { return DeviceState(d.StateCode) }

// IPv4Config is the applied IPv4 configuration of a device.
type IPv4Config struct {
	Addresses   []string `json:"addresses" yaml:"addresses"`
	Gateway     string   `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	Nameservers []string `json:"nameservers" yaml:"nameservers"`
}

// WirelessConnectionSpec describes a profile to create for a new network.
// It is built fresh for each attempt. SSID holds the raw bytes broadcast by
// the access point, which need not be UTF-8.
type WirelessConnectionSpec struct {
	ID       string
	UUID     string
	SSID     []byte
	Password string
}

// Settings renders the spec as the nested settings bundle the daemon takes.
// An empty password yields an open network profile.
func (s WirelessConnectionSpec) Settings() ConnectionSettings {
	settings := ConnectionSettings{
		"connection": {
			"type": WirelessType,
			"uuid": s.UUID,
			"id":   s.ID,
		},
		WirelessType: {
			"ssid": append([]byte(nil), s.SSID...),
			"mode": "infrastructure",
		},
		"ipv4": {"method": "auto"},
		"ipv6": {"method": "ignore"},
	}
	if s.Password != "" {
		settings[WirelessType]["security"] = WirelessType + "-security"
		settings[WirelessType+"-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"auth-alg": "open",
			"psk":      s.Password,
		}
	}
	return settings
}

// wire converts the settings to the map type godbus marshals as a{sa{sv}}.
func (s ConnectionSettings) wire() map[string]map[string]interface{} {
	return map[string]map[string]interface{}(s)
}
