package nm

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

// DefaultScanDelay is how long to wait when the daemon refuses a scan
// because the previous one is too recent.
var DefaultScanDelay = 4 * time.Second

// DefaultConnectTimeout bounds the wait for a new connection to settle.
const DefaultConnectTimeout = 2 * time.Minute

// Client is an explicit handle on the daemon. Every service borrows it; there
// is no package level connection.
type Client struct {
	Bus    Bus
	Logger *slog.Logger

	// ScanDelay is slept after a refused scan. Tests set it to 0.
	ScanDelay time.Duration
	// ConnectTimeout bounds the wait for a new connection. Zero waits forever.
	ConnectTimeout time.Duration
	// NewUUID generates profile uuids.
	NewUUID func() string
}

// NewClient wraps bus. A nil logger discards everything.
func NewClient(bus Bus, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		Bus:            bus,
		Logger:         logger,
		ScanDelay:      DefaultScanDelay,
		ConnectTimeout: DefaultConnectTimeout,
		NewUUID:        newUUID,
	}
}

// Devices returns the device service.
func (c *Client) Devices() *DeviceService { return &DeviceService{c: c} }

// Connections returns the connection profile service.
func (c *Client) Connections() *ConnectionService { return &ConnectionService{c: c} }

// Networking returns the global networking service.
func (c *Client) Networking() *NetworkingService { return &NetworkingService{c: c} }

// General returns the general status service.
func (c *Client) General() *GeneralService { return &GeneralService{c: c} }

// WiFi returns the Wi-Fi service.
func (c *Client) WiFi() *WiFiService { return &WiFiService{c: c} }

// Close releases the bus.
func (c *Client) Close() error { return c.Bus.Close() }

func (c *Client) getUint32(ctx context.Context, path dbus.ObjectPath, iface, prop string) (uint32, error) {
	v, err := c.Bus.Get(ctx, path, iface, prop)
	if err != nil {
		return 0, err
	}
	return Properties{prop: v}.Uint32(prop)
}

func (c *Client) getBool(ctx context.Context, path dbus.ObjectPath, iface, prop string) (bool, error) {
	v, err := c.Bus.Get(ctx, path, iface, prop)
	if err != nil {
		return false, err
	}
	return Properties{prop: v}.Bool(prop)
}

func (c *Client) getString(ctx context.Context, path dbus.ObjectPath, iface, prop string) (string, error) {
	v, err := c.Bus.Get(ctx, path, iface, prop)
	if err != nil {
		return "", err
	}
	return Properties{prop: v}.String(prop)
}
