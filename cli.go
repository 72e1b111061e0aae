package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shazow/nmctl/internal/render"
	"github.com/shazow/nmctl/nm"
)

// Device commands

func runDeviceStatus(ctx context.Context, out *render.Renderer, c *nm.Client) error {
	devices, err := c.Devices().List(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	nm.SortDevices(devices)
	if out.Structured() {
		return out.Encode(devices)
	}

	out.Printf("Showing status ...")
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{d.Interface, d.Type(), out.Status(d.State()), d.Connection})
	}
	return out.Table([]string{"DEVICE", "TYPE", "STATE", "CONNECTION"}, rows)
}

func runDeviceList(ctx context.Context, out *render.Renderer, c *nm.Client) error {
	devices, err := c.Devices().List(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	nm.SortDevices(devices)
	if out.Structured() {
		return out.Encode(devices)
	}

	out.Printf("Listing all devices ...")
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		var addrs []string
		if d.IPv4 != nil {
			addrs = d.IPv4.Addresses
		}
		rows = append(rows, []string{
			d.Interface,
			d.Type(),
			out.Status(d.State()),
			d.Connection,
			formatValue(d.Driver),
			formatValue(d.HwAddress),
			formatList(addrs),
		})
	}
	return out.Table([]string{"DEVICE", "TYPE", "STATE", "CONNECTION", "DRIVER", "HW ADDRESS", "IP4"}, rows)
}

func runDeviceGet(ctx context.Context, out *render.Renderer, c *nm.Client, name string) error {
	d, err := c.Devices().Get(ctx, name)
	if err != nil {
		return err
	}
	if out.Structured() {
		return out.Encode(d)
	}

	out.Printf("Showing device details for %s ...", name)
	pairs := [][2]string{
		{formatTableKey("interface"), d.Interface},
		{formatTableKey("type"), d.Type()},
		{formatTableKey("state"), out.Status(d.State())},
		{formatTableKey("connection"), d.Connection},
		{formatTableKey("driver"), formatValue(d.Driver)},
		{formatTableKey("hw_address"), formatValue(d.HwAddress)},
		{formatTableKey("mtu"), strconv.FormatUint(uint64(d.Mtu), 10)},
		{formatTableKey("managed"), formatBool(d.Managed)},
		{formatTableKey("autoconnect"), formatBool(d.Autoconnect)},
	}
	if d.IPv4 != nil {
		pairs = append(pairs,
			[2]string{formatTableKey("ip4_address"), formatList(d.IPv4.Addresses)},
			[2]string{formatTableKey("ip4_gateway"), formatValue(d.IPv4.Gateway)},
			[2]string{formatTableKey("ip4_dns"), formatList(d.IPv4.Nameservers)},
		)
	}
	return out.KeyValues(pairs)
}

func runDeviceUpdate(ctx context.Context, out *render.Renderer, c *nm.Client, name string) error {
	out.Printf("Updating device %s ...", name)
	if err := c.Devices().Reapply(ctx, name); err != nil {
		return err
	}
	out.Successf("Done !")
	return nil
}

func runDeviceDisconnect(ctx context.Context, out *render.Renderer, c *nm.Client, name string) error {
	out.Printf("Disconnecting device %s ...", name)
	if err := c.Devices().Disconnect(ctx, name); err != nil {
		return err
	}
	out.Successf("Done !")
	return nil
}

func runDeviceDelete(ctx context.Context, out *render.Renderer, c *nm.Client, name string) error {
	out.Printf("Deleting device %s ...", name)
	if err := c.Devices().Delete(ctx, name); err != nil {
		return err
	}
	out.Successf("Done !")
	return nil
}

func runDeviceManage(ctx context.Context, out *render.Renderer, c *nm.Client, name string, managed bool) error {
	if managed {
		out.Printf("Setting device %s to managed ...", name)
	} else {
		out.Printf("Setting device %s to unmanaged ...", name)
	}
	if err := c.Devices().SetManaged(ctx, name, managed); err != nil {
		return err
	}
	out.Successf("Done !")
	return nil
}

func runDeviceAutoconnect(ctx context.Context, out *render.Renderer, c *nm.Client, name string, enabled bool) error {
	if enabled {
		out.Printf("Enabling autoconnect on %s ...", name)
	} else {
		out.Printf("Disabling autoconnect on %s ...", name)
	}
	if err := c.Devices().SetAutoconnect(ctx, name, enabled); err != nil {
		return err
	}
	out.Successf("Done !")
	return nil
}

// Connection commands

func runConnectionList(ctx context.Context, out *render.Renderer, c *nm.Client) error {
	profiles, err := c.Connections().Profiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list connections: %w", err)
	}
	if out.Structured() {
		return out.Encode(profiles)
	}

	out.Printf("Showing all connections ...")
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{p.ID, p.UUID, p.Type})
	}
	return out.Table([]string{"NAME", "UUID", "TYPE"}, rows)
}

func runConnectionActive(ctx context.Context, out *render.Renderer, c *nm.Client) error {
	active, err := c.Connections().Active(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active connections: %w", err)
	}
	if out.Structured() {
		return out.Encode(active)
	}

	out.Printf("Showing active connections ...")
	rows := make([][]string, 0, len(active))
	for _, ac := range active {
		rows = append(rows, []string{ac.ID, ac.UUID, ac.Type, ac.Device})
	}
	return out.Table([]string{"NAME", "UUID", "TYPE", "DEVICE"}, rows)
}

func runConnectionUp(ctx context.Context, out *render.Renderer, c *nm.Client, id string) error {
	out.Printf("Activating connection %s ...", id)
	path, err := c.Connections().Up(ctx, id)
	if err != nil {
		return err
	}
	if out.Structured() {
		return out.Encode(map[string]string{"active_connection": string(path)})
	}
	out.Successf("Connection successfully activated (active path %s)", path)
	return nil
}

func runConnectionDown(ctx context.Context, out *render.Renderer, c *nm.Client, id string) error {
	out.Printf("Deactivating connection %s ...", id)
	if err := c.Connections().Down(ctx, id); err != nil {
		return err
	}
	out.Successf("Connection %s successfully deactivated", id)
	return nil
}

func runConnectionDelete(ctx context.Context, out *render.Renderer, c *nm.Client, id string) error {
	p, err := c.Connections().Delete(ctx, id)
	if err != nil {
		return err
	}
	if out.Structured() {
		return out.Encode(p)
	}
	out.Successf("Connection %s (%s) successfully deleted", p.ID, p.UUID)
	return nil
}

// Network commands

func runNetworkingSet(ctx context.Context, out *render.Renderer, c *nm.Client, enabled bool) error {
	if enabled {
		out.Printf("Enabling networking ...")
	} else {
		out.Printf("Disabling networking ...")
	}
	err := c.Networking().SetEnabled(ctx, enabled)
	switch {
	case errors.Is(err, nm.ErrAlreadyEnabled):
		out.Printf("Networking is already enabled. Skipping.")
		return nil
	case errors.Is(err, nm.ErrAlreadyDisabled):
		out.Printf("Networking is already disabled. Skipping.")
		return nil
	case err != nil:
		return err
	}
	out.Successf("Done !")
	return nil
}

func runConnectivity(ctx context.Context, out *render.Renderer, c *nm.Client, check bool) error {
	if check {
		out.Printf("Checking connectivity again ...")
	}
	status, err := c.Networking().Connectivity(ctx, check)
	if err != nil {
		return err
	}
	if out.Structured() {
		return out.Encode(status)
	}
	out.Printf("Connectivity State: %s", out.Status(status))
	return nil
}

// General commands

func runGeneralStatus(ctx context.Context, out *render.Renderer, c *nm.Client) error {
	report, err := c.General().Status(ctx)
	if err != nil {
		return err
	}
	if out.Structured() {
		return out.Encode(report)
	}

	out.Printf("General status report")
	pairs := [][2]string{{"VERSION", formatValue(report.Version)}}
	for _, e := range report.Entries {
		pairs = append(pairs, [2]string{e.Name, out.Status(e.Status)})
	}
	return out.KeyValues(pairs)
}

func runHostname(ctx context.Context, out *render.Renderer, c *nm.Client) error {
	hostname, err := c.General().Hostname(ctx)
	if err != nil {
		return err
	}
	if out.Structured() {
		return out.Encode(map[string]string{"hostname": hostname})
	}
	out.Printf("Hostname: %s", hostname)
	return nil
}

// Wi-Fi commands

func runWifiSet(ctx context.Context, out *render.Renderer, c *nm.Client, enabled bool) error {
	if enabled {
		out.Printf("Enabling WiFi ...")
	} else {
		out.Printf("Disabling WiFi ...")
	}
	err := c.WiFi().SetEnabled(ctx, enabled)
	switch {
	case errors.Is(err, nm.ErrAlreadyEnabled):
		out.Printf("WiFi is already enabled. Skipping.")
		return nil
	case errors.Is(err, nm.ErrAlreadyDisabled):
		out.Printf("WiFi is already disabled. Skipping.")
		return nil
	case err != nil:
		return err
	}
	out.Successf("Done !")
	return nil
}

func runWifiStatus(ctx context.Context, out *render.Renderer, c *nm.Client) error {
	status, err := c.WiFi().Status(ctx)
	if err != nil {
		return err
	}
	if out.Structured() {
		return out.Encode(status)
	}
	out.Printf("WiFi is %s", out.Status(status))
	return nil
}

func runWifiList(ctx context.Context, out *render.Renderer, c *nm.Client) error {
	out.Printf("Scanning for available access points ...")
	aps, err := c.WiFi().ScanAccessPoints(ctx)
	if err != nil {
		return err
	}
	nm.SortAccessPoints(aps)
	if out.Structured() {
		return out.Encode(aps)
	}

	rows := make([][]string, 0, len(aps))
	for _, ap := range aps {
		rows = append(rows, []string{ap.SSID, ap.Mode, ap.Rate(), strconv.Itoa(ap.Strength), out.Signal(ap.Strength)})
	}
	return out.Table([]string{"SSID", "MODE", "RATE", "SIGNAL", "BARS"}, rows)
}

func runWifiRescan(ctx context.Context, out *render.Renderer, c *nm.Client) error {
	out.Printf("Performing rescan ...")
	if err := c.WiFi().Rescan(ctx); err != nil {
		return err
	}
	out.Successf("Done !")
	return nil
}

func runWifiConnect(ctx context.Context, out *render.Renderer, c *nm.Client, req nm.ConnectRequest) error {
	result, err := c.WiFi().Connect(ctx, req)
	if err != nil {
		return err
	}
	if out.Structured() {
		return out.Encode(result)
	}
	if result.Created {
		out.Successf("Connected to %q (uuid %s)", result.ID, result.UUID)
	} else {
		out.Successf("Activating %q (uuid %s), active path %s", result.ID, result.UUID, result.ActiveConnection)
	}
	return nil
}

func runWifiQR(ctx context.Context, out *render.Renderer, c *nm.Client, id string) error {
	ssid, psk, err := c.Connections().WirelessSecrets(ctx, id)
	if err != nil {
		return err
	}
	payload := WifiQRPayload(ssid, psk, false)
	if out.Structured() {
		return out.Encode(map[string]string{"ssid": ssid, "payload": payload})
	}
	qr, err := GenerateWifiQRCode(payload)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}
	out.Printf("%s", qr)
	out.Printf("SSID: %s", ssid)
	return nil
}
