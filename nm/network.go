package nm

import (
	"context"
)

// NetworkingService toggles networking as a whole.
type NetworkingService struct {
	c *Client
}

// Enabled reports the NetworkingEnabled flag.
func (s *NetworkingService) Enabled(ctx context.Context) (bool, error) {
	return s.c.getBool(ctx, ObjectPath, Interface, "NetworkingEnabled")
}

// SetEnabled turns networking on or off. It returns ErrAlreadyEnabled or
// ErrAlreadyDisabled without touching the daemon when there is nothing to do.
func (s *NetworkingService) SetEnabled(ctx context.Context, enabled bool) error {
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
	_, err = s.c.Bus.Call(ctx, ObjectPath, MethodEnable, enabled)
	return err
}

// Connectivity returns the last known connectivity state, or asks the daemon
// to re-check it first when check is set.
func (s *NetworkingService) Connectivity(ctx context.Context, check bool) (Status, error) {
	var (
		code uint32
		err  error
	)
	if check {
		var v interface{}
		v, err = callOne(ctx, s.c.Bus, ObjectPath, MethodCheckConnectivity)
		if err == nil {
			code, err = Properties{"Connectivity": v}.Uint32("Connectivity")
		}
	} else {
		code, err = s.c.getUint32(ctx, ObjectPath, Interface, "Connectivity")
	}
	if err != nil {
		return Status{}, err
	}
	return TranslateStatus("CONNECTIVITY", code), nil
}
