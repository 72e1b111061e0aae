package nm

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Properties is a property map fetched with GetAll. Values are plain Go
// values as decoded by godbus (variants already unwrapped).
type Properties map[string]interface{}

func (p Properties) lookup(key string) (interface{}, error) {
	v, ok := p[key]
	if !ok {
		return nil, &MissingPropertyError{Property: key}
	}
	if variant, ok := v.(dbus.Variant); ok {
		v = variant.Value()
	}
	return v, nil
}

func typeError(key string, want string, got interface{}) error {
	return fmt.Errorf("property %q: want %s, got %T: %w", key, want, got, ErrMalformedReply)
}

func (p Properties) String(key string) (string, error) {
	v, err := p.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(key, "string", v)
	}
	return s, nil
}

func (p Properties) Bool(key string) (bool, error) {
	v, err := p.lookup(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeError(key, "bool", v)
	}
	return b, nil
}

// Uint32 also accepts the narrower unsigned types the daemon uses for some
// properties (Strength is a byte).
func (p Properties) Uint32(key string) (uint32, error) {
	v, err := p.lookup(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case uint32:
		return n, nil
	case byte:
		return uint32(n), nil
	case uint16:
		return uint32(n), nil
	case int32:
		if n >= 0 {
			return uint32(n), nil
		}
	}
	return 0, typeError(key, "uint32", v)
}

func (p Properties) Bytes(key string) ([]byte, error) {
	v, err := p.lookup(key)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, typeError(key, "[]byte", v)
	}
	return b, nil
}

func (p Properties) ObjectPath(key string) (dbus.ObjectPath, error) {
	v, err := p.lookup(key)
	if err != nil {
		return "", err
	}
	o, ok := v.(dbus.ObjectPath)
	if !ok {
		return "", typeError(key, "object path", v)
	}
	return o, nil
}

func (p Properties) ObjectPaths(key string) ([]dbus.ObjectPath, error) {
	v, err := p.lookup(key)
	if err != nil {
		return nil, err
	}
	o, ok := v.([]dbus.ObjectPath)
	if !ok {
		return nil, typeError(key, "[]object path", v)
	}
	return o, nil
}

// Maps reads an aa{sv} property such as IP4Config.AddressData.
func (p Properties) Maps(key string) ([]map[string]interface{}, error) {
	v, err := p.lookup(key)
	if err != nil {
		return nil, err
	}
	switch list := v.(type) {
	case []map[string]interface{}:
		return list, nil
	case []map[string]dbus.Variant:
		out := make([]map[string]interface{}, 0, len(list))
		for _, m := range list {
			entry := make(map[string]interface{}, len(m))
			for k, variant := range m {
				entry[k] = variant.Value()
			}
			out = append(out, entry)
		}
		return out, nil
	}
	return nil, typeError(key, "[]map", v)
}

// isValidObject reports whether path points at an actual object rather than
// the "/" placeholder.
func isValidObject(path dbus.ObjectPath) bool {
	return path != "" && path != NoObject && path.IsValid()
}

// ConnectionSettings is the a{sa{sv}} settings bundle of a connection profile.
type ConnectionSettings map[string]map[string]interface{}

// settingsFromReply normalizes the reply of GetSettings/GetSecrets.
func settingsFromReply(v interface{}) (ConnectionSettings, error) {
	switch s := v.(type) {
	case map[string]map[string]dbus.Variant:
		out := make(ConnectionSettings, len(s))
		for group, values := range s {
			out[group] = make(map[string]interface{}, len(values))
			for k, variant := range values {
				out[group][k] = variant.Value()
			}
		}
		return out, nil
	case map[string]map[string]interface{}:
		return ConnectionSettings(s), nil
	case ConnectionSettings:
		return s, nil
	}
	return nil, fmt.Errorf("settings reply is %T: %w", v, ErrMalformedReply)
}

// Value returns group.key as a string, or "" when absent.
func (s ConnectionSettings) Value(group, key string) string {
	values, ok := s[group]
	if !ok {
		return ""
	}
	str, _ := values[key].(string)
	return str
}
