package nm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/nmctl/nm"
)

func TestConnectionProfiles(t *testing.T) {
	c, _ := newClient(t)

	profiles, err := c.Connections().Profiles(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"Wired connection 1", "HideYoKidsHideYoWiFi", "Password is password", "GET off my LAN"}, ids)
	assert.Equal(t, "802-3-ethernet", profiles[0].Type)
	assert.Equal(t, nm.WirelessType, profiles[1].Type)
}

func TestConnectionFind(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	p, err := c.Connections().Find(ctx, "67a548de-8383-4330-abf8-ce60544c5366")
	require.NoError(t, err)
	assert.Equal(t, "HideYoKidsHideYoWiFi", p.ID)

	p, err = c.Connections().Find(ctx, "GET off my LAN")
	require.NoError(t, err)
	assert.Equal(t, "d8a0b7e4-6b2f-4d9e-9c1e-0a7d1e2f3b4c", p.UUID)

	_, err = c.Connections().Find(ctx, "get off my lan")
	assert.ErrorIs(t, err, nm.ErrNotFound)
}

func TestConnectionUpDown(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	active, err := c.Connections().Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Wired connection 1", active[0].ID)
	assert.Equal(t, "eth0", active[0].Device)

	_, err = c.Connections().Up(ctx, "HideYoKidsHideYoWiFi")
	require.NoError(t, err)
	active, err = c.Connections().Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "wlan0", active[1].Device)

	require.NoError(t, c.Connections().Down(ctx, "0b5f1c2e-5c39-4d2a-9a36-a27c1f6f2e11"))
	active, err = c.Connections().Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "HideYoKidsHideYoWiFi", active[0].ID)

	assert.ErrorIs(t, c.Connections().Down(ctx, "Wired connection 1"), nm.ErrNotFound)
	_, err = c.Connections().Up(ctx, "Pretty Fly for a WiFi")
	assert.ErrorIs(t, err, nm.ErrNotFound)
}

func TestConnectionDelete(t *testing.T) {
	c, bus := newClient(t)
	ctx := context.Background()

	p, err := c.Connections().Delete(ctx, "GET off my LAN")
	require.NoError(t, err)
	assert.Equal(t, "d8a0b7e4-6b2f-4d9e-9c1e-0a7d1e2f3b4c", p.UUID)
	assert.False(t, bus.HasProfile(p.UUID))

	profiles, err := c.Connections().Profiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)

	assert.Error(t, c.Connections().DeleteByUUID(ctx, "00000000-0000-0000-0000-000000000000"))
}

func TestConnectionWirelessSecrets(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	ssid, psk, err := c.Connections().WirelessSecrets(ctx, "Password is password")
	require.NoError(t, err)
	assert.Equal(t, "Password is password", ssid)
	assert.Equal(t, "password", psk)

	ssid, psk, err = c.Connections().WirelessSecrets(ctx, "GET off my LAN")
	require.NoError(t, err)
	assert.Equal(t, "GET off my LAN", ssid)
	assert.Empty(t, psk)

	_, _, err = c.Connections().WirelessSecrets(ctx, "Wired connection 1")
	assert.Error(t, err)
}

func TestConnectionWirelessSecretsRawSSID(t *testing.T) {
	c, bus := newClient(t)
	bus.AddProfile("café", "5e0c8a1d-2f4b-4c6e-9a7d-3b1f0e2d4c6a", nm.WirelessType, "caf\xc3\xa9", "croissant")

	ssid, psk, err := c.Connections().WirelessSecrets(context.Background(), "café")
	require.NoError(t, err)
	assert.Equal(t, "café", ssid)
	assert.Equal(t, []byte{0x63, 0x61, 0x66, 0xc3, 0xa9}, []byte(ssid))
	assert.Equal(t, "croissant", psk)
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, nm.IsValidUUID("67a548de-8383-4330-abf8-ce60544c5366"))
	assert.False(t, nm.IsValidUUID("HideYoKidsHideYoWiFi"))
}
