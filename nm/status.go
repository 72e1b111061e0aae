package nm

import (
	"fmt"
	"strings"

	gonetworkmanager "github.com/Wifx/gonetworkmanager/v3"
)

// Device state and type codes the Wi-Fi workflow branches on.
const (
	DeviceTypeEthernet = uint32(gonetworkmanager.NmDeviceTypeEthernet)
	DeviceTypeWifi     = uint32(gonetworkmanager.NmDeviceTypeWifi)

	DeviceStateActivated = uint32(gonetworkmanager.NmDeviceStateActivated) // 100
	DeviceStateFailed    = uint32(gonetworkmanager.NmDeviceStateFailed)    // 120

	DeviceStateReasonNoSecrets = uint32(gonetworkmanager.NmDeviceStateReasonNoSecrets) // 7
)

// Level is how good a status is; the renderer picks a colour from it.
type Level int

const (
	LevelNeutral Level = iota
	LevelGood
	LevelWarn
	LevelBad
)

// Status is a translated status code.
type Status struct {
	Code  uint32 `json:"code" yaml:"code"`
	Label string `json:"label" yaml:"label"`
	Level Level  `json:"-" yaml:"-"`
}

func (s Status) String() string { return s.Label }

type label struct {
	text  string
	level Level
}

// Categories of general daemon properties, keyed by the property name.
var GeneralCategories = map[string]string{
	"Connectivity":            "CONNECTIVITY",
	"State":                   "STATE",
	"WirelessEnabled":         "WIFI",
	"WwanEnabled":             "WWAN",
	"WirelessHardwareEnabled": "WIFI-HW",
	"WwanHardwareEnabled":     "WWAN-HW",
}

var enabledLabels = map[uint32]label{
	0: {"disabled", LevelBad},
	1: {"enabled", LevelGood},
}

var categoryLabels = map[string]map[uint32]label{
	"CONNECTIVITY": {
		0: {"unknown", LevelBad},
		1: {"none", LevelBad},
		2: {"portal", LevelWarn},
		3: {"limited", LevelGood},
		4: {"full", LevelGood},
	},
	"STATE": {
		0:  {"unknown", LevelBad},
		10: {"asleep", LevelWarn},
		20: {"disconnected", LevelBad},
		30: {"disconnecting", LevelBad},
		40: {"connecting", LevelWarn},
		50: {"connected (local)", LevelGood},
		60: {"connected (site)", LevelGood},
		70: {"connected", LevelGood},
	},
	"WIFI":    enabledLabels,
	"WIFI-HW": enabledLabels,
	"WWAN":    enabledLabels,
	"WWAN-HW": enabledLabels,
}

// TranslateStatus maps a code of the given category (CONNECTIVITY, STATE,
// WIFI...) to a label. Unknown codes translate to "unknown".
func TranslateStatus(category string, code uint32) Status {
	if l, ok := categoryLabels[category][code]; ok {
		return Status{Code: code, Label: l.text, Level: l.level}
	}
	return Status{Code: code, Label: "unknown", Level: LevelNeutral}
}

// EnabledStatus translates a boolean flag the way the WIFI/WWAN categories do.
func EnabledStatus(category string, enabled bool) Status {
	var code uint32
	if enabled {
		code = 1
	}
	return TranslateStatus(category, code)
}

var deviceStateLabels = map[uint32]label{
	0:   {"unknown", LevelNeutral},
	10:  {"unmanaged", LevelWarn},
	20:  {"unavailable", LevelWarn},
	30:  {"disconnected", LevelBad},
	40:  {"preparing", LevelWarn},
	50:  {"configuring", LevelWarn},
	60:  {"need auth", LevelWarn},
	70:  {"ip config", LevelWarn},
	80:  {"ip check", LevelWarn},
	90:  {"secondaries", LevelWarn},
	100: {"connected", LevelGood},
	110: {"deactivating", LevelWarn},
	120: {"failed", LevelBad},
}

// DeviceState translates an NMDeviceState code.
func DeviceState(code uint32) Status {
	if l, ok := deviceStateLabels[code]; ok {
		return Status{Code: code, Label: l.text, Level: l.level}
	}
	return Status{Code: code, Label: "unknown", Level: LevelNeutral}
}

var deviceTypeNames = map[uint32]string{
	0:  "unknown",
	1:  "ethernet",
	2:  "wifi",
	5:  "bluetooth",
	6:  "olpc-mesh",
	7:  "wimax",
	8:  "modem",
	9:  "infiniband",
	10: "bond",
	11: "vlan",
	12: "adsl",
	13: "bridge",
	14: "generic",
	15: "team",
	16: "tun",
	17: "ip-tunnel",
	18: "macvlan",
	19: "vxlan",
	20: "veth",
	21: "macsec",
	22: "dummy",
	23: "ppp",
	24: "ovs-interface",
	25: "ovs-port",
	26: "ovs-bridge",
	27: "wpan",
	28: "6lowpan",
	29: "wireguard",
	30: "wifi-p2p",
	31: "vrf",
	32: "loopback",
}

// DeviceType names an NMDeviceType code; unrecognized codes are "unknown".
func DeviceType(code uint32) string {
	if name, ok := deviceTypeNames[code]; ok {
		return name
	}
	return "unknown"
}

var apModeNames = map[uint32]string{
	0: "Unknown",
	1: "AdHoc",
	2: "Infra",
	3: "Access Point",
	4: "Mesh",
}

// APMode names an NM80211Mode code; unrecognized codes are "Unknown".
func APMode(code uint32) string {
	if name, ok := apModeNames[code]; ok {
		return name
	}
	return "Unknown"
}

// NoValue is shown wherever a value is absent or out of range.
const NoValue = "--"

// DecodeSSID maps every byte to the character with the same code point.
// SSIDs are not guaranteed to be UTF-8 so no multi-byte decoding happens.
func DecodeSSID(ssid []byte) string {
	if len(ssid) == 0 {
		return NoValue
	}
	var b strings.Builder
	for _, c := range ssid {
		b.WriteRune(rune(c))
	}
	return b.String()
}

// FormatBitrate formats a bitrate in Kb/s as whole Mbit/s, truncating.
func FormatBitrate(kbps uint32) string {
	return fmt.Sprintf("%d Mbit/s", kbps/1000)
}

// SignalBars is the number of bars for a strength in [0,100], or 0 when the
// strength is out of range.
func SignalBars(strength int) int {
	switch {
	case strength < 0 || strength > 100:
		return 0
	case strength < 30:
		return 1
	case strength < 60:
		return 2
	case strength < 80:
		return 3
	default:
		return 4
	}
}

// Bars renders SignalBars as stars, "--" when out of range.
func Bars(strength int) string {
	n := SignalBars(strength)
	if n == 0 {
		return NoValue
	}
	return strings.Repeat("*", n)
}
