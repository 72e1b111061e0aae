package nm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/nmctl/nm"
	"github.com/shazow/nmctl/nm/mock"
)

func TestDeviceList(t *testing.T) {
	c, _ := newClient(t)

	devices, err := c.Devices().List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, devices, 4)

	nm.SortDevices(devices)
	var names []string
	for _, d := range devices {
		names = append(names, d.Interface)
	}
	assert.Equal(t, []string{"eth0", "wlan9", "wlan0", "lo"}, names)

	eth := devices[0]
	assert.Equal(t, "Wired connection 1", eth.Connection)
	assert.Equal(t, "ethernet", eth.Type())
	assert.Equal(t, "connected", eth.State().Label)
	assert.Nil(t, eth.IPv4, "summary listing skips IPv4")
	assert.Equal(t, nm.NoValue, devices[2].Connection)
}

func TestDeviceGet(t *testing.T) {
	c, _ := newClient(t)

	d, err := c.Devices().Get(context.Background(), "eth0")
	require.NoError(t, err)
	assert.Equal(t, "e1000e", d.Driver)
	assert.Equal(t, "11:22:33:44:55:66", d.HwAddress)
	assert.EqualValues(t, 1500, d.Mtu)
	assert.True(t, d.Managed)
	require.NotNil(t, d.IPv4)
	assert.Equal(t, []string{"192.168.1.23/24"}, d.IPv4.Addresses)
	assert.Equal(t, "192.168.1.1", d.IPv4.Gateway)
	assert.Equal(t, []string{"192.168.1.1"}, d.IPv4.Nameservers)

	_, err = c.Devices().Get(context.Background(), "wlan7")
	assert.ErrorIs(t, err, nm.ErrNotFound)
}

func TestDeviceFindWirelessSkipsUnrealized(t *testing.T) {
	c, _ := newClient(t)

	path, err := c.Devices().FindWireless(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mock.WirelessDevice, path)
}

func TestDeviceDisconnect(t *testing.T) {
	c, bus := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Devices().Disconnect(ctx, "eth0"))
	d, err := c.Devices().Get(ctx, "eth0")
	require.NoError(t, err)
	assert.Equal(t, nm.NoValue, d.Connection)

	err = c.Devices().Disconnect(ctx, "wlan0")
	assert.EqualError(t, err, "This device is not active")
	assert.Equal(t, 2, bus.CallCount(nm.MethodDeviceDisconnect))
}

func TestDeviceReapplyAndDelete(t *testing.T) {
	c, bus := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Devices().Reapply(ctx, "eth0"))
	assert.Error(t, c.Devices().Reapply(ctx, "wlan0"))
	assert.Equal(t, 2, bus.CallCount(nm.MethodDeviceReapply))

	assert.EqualError(t, c.Devices().Delete(ctx, "eth0"), "This device is not a software device")
}

func TestDeviceSetManagedAndAutoconnect(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Devices().SetManaged(ctx, "wlan0", false))
	require.NoError(t, c.Devices().SetAutoconnect(ctx, "wlan0", false))
	d, err := c.Devices().Get(ctx, "wlan0")
	require.NoError(t, err)
	assert.False(t, d.Managed)
	assert.False(t, d.Autoconnect)
}
