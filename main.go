package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/shazow/nmctl/internal/log"
	"github.com/shazow/nmctl/internal/prompt"
	"github.com/shazow/nmctl/internal/render"
	"github.com/shazow/nmctl/nm"
)

var (
	// Version is the version of the application. It is set at build time.
	Version string = "dev"
)

// rootConfig holds the global flags.
type rootConfig struct {
	theme     string
	logLevel  string
	output    string
	timeout   time.Duration
	noColor   bool
	debugDump bool
	version   bool
}

// app is what every command needs once the global flags are parsed.
type app struct {
	client   *nm.Client
	out      *render.Renderer
	errOut   *render.Renderer
	prompter nm.Prompter

	logger  *slog.Logger
	timeout time.Duration
}

func main() {
	a := &app{}
	root, cfg := newRootCommand(a)

	if err := root.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if cfg.version {
		fmt.Println(Version)
		os.Exit(0)
	}

	if err := a.setup(cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "[Error]: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := root.Run(ctx)
	stop()
	if a.client != nil {
		a.client.Close()
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		a.errOut.Error(err)
		if cfg.debugDump {
			log.Dump(os.Stderr)
		}
		os.Exit(1)
	}
}

// setup builds the logger and renderers from the global flags. The daemon is
// only contacted once a command that needs it runs.
func (a *app) setup(cfg *rootConfig, stdout, stderr io.Writer) error {
	level, err := log.ParseLevel(cfg.logLevel)
	if err != nil {
		return err
	}
	a.logger = log.Init(stderr, level)
	a.timeout = cfg.timeout

	format, err := render.ParseFormat(cfg.output)
	if err != nil {
		return err
	}

	theme := render.NewDefaultTheme()
	if cfg.theme != "" {
		f, err := os.Open(cfg.theme)
		if err != nil {
			return fmt.Errorf("error loading theme: %w", err)
		}
		theme, err = render.LoadTheme(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("error loading theme: %w", err)
		}
	}
	a.out = render.New(stdout, theme, format, cfg.noColor)
	a.errOut = render.New(stderr, theme, render.FormatTable, cfg.noColor)
	a.prompter = prompt.New(os.Stdin, stderr)
	return nil
}

// connect opens the daemon client on first use.
func (a *app) connect() error {
	if a.client != nil {
		return nil
	}
	bus, err := newBus(a.logger)
	if err != nil {
		return err
	}
	a.client = nm.NewClient(bus, a.logger)
	a.client.ConnectTimeout = a.timeout
	return nil
}

func newRootCommand(a *app) (*ffcli.Command, *rootConfig) {
	cfg := &rootConfig{}
	rootFlagSet := flag.NewFlagSet("nmctl", flag.ExitOnError)
	rootFlagSet.String("config", "", "path to a config file of 'flag value' lines (env: NMCTL_CONFIG)")
	rootFlagSet.StringVar(&cfg.theme, "theme", "", "path to theme toml file (env: NMCTL_THEME)")
	rootFlagSet.StringVar(&cfg.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	rootFlagSet.StringVar(&cfg.output, "output", "table", "output format: table, json or yaml")
	rootFlagSet.DurationVar(&cfg.timeout, "timeout", nm.DefaultConnectTimeout, "how long wifi connect waits for the device, 0 waits forever")
	rootFlagSet.BoolVar(&cfg.noColor, "no-color", false, "disable colored output")
	rootFlagSet.BoolVar(&cfg.debugDump, "debug-dump", false, "print recent log records when a command fails")
	rootFlagSet.BoolVar(&cfg.version, "version", false, "display version")

	root := &ffcli.Command{
		ShortUsage: "nmctl [flags] <subcommand> [args...]",
		ShortHelp:  "Command line client for NetworkManager",
		FlagSet:    rootFlagSet,
		Options: []ff.Option{
			ff.WithEnvVarPrefix("NMCTL"),
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
			ff.WithAllowMissingConfigFile(true),
		},
		Subcommands: []*ffcli.Command{
			newDeviceCommand(a),
			newConnectionCommand(a),
			newNetworkCommand(a),
			newWifiCommand(a),
			newGeneralCommand(a),
		},
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
	}
	return root, cfg
}

// group is a command that only holds subcommands.
func group(name, help string, subcommands ...*ffcli.Command) *ffcli.Command {
	return &ffcli.Command{
		Name:        name,
		ShortUsage:  "nmctl " + name + " <subcommand>",
		ShortHelp:   help,
		FlagSet:     flag.NewFlagSet(name, flag.ExitOnError),
		Subcommands: subcommands,
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
	}
}

// leaf is a command without flags that takes exactly nargs arguments.
func (a *app) leaf(name, usage, help string, nargs int, exec func(ctx context.Context, args []string) error) *ffcli.Command {
	return &ffcli.Command{
		Name:       name,
		ShortUsage: usage,
		ShortHelp:  help,
		FlagSet:    flag.NewFlagSet(name, flag.ExitOnError),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != nargs {
				return fmt.Errorf("%s takes %d argument(s), got %d", name, nargs, len(args))
			}
			if err := a.connect(); err != nil {
				return err
			}
			return exec(ctx, args)
		},
	}
}

func newDeviceCommand(a *app) *ffcli.Command {
	manageFlagSet := flag.NewFlagSet("manage", flag.ExitOnError)
	manageOff := manageFlagSet.Bool("off", false, "disable device management by NetworkManager")
	manageCmd := &ffcli.Command{
		Name:       "manage",
		ShortUsage: "nmctl device manage [-off] <ifname>",
		ShortHelp:  "Manage / Unmanage the device",
		FlagSet:    manageFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("manage requires an interface name")
			}
			if err := a.connect(); err != nil {
				return err
			}
			return runDeviceManage(ctx, a.out, a.client, args[0], !*manageOff)
		},
	}

	autoconnectFlagSet := flag.NewFlagSet("autoconnect", flag.ExitOnError)
	autoconnectDisable := autoconnectFlagSet.Bool("disable", false, "disable autoconnect")
	autoconnectCmd := &ffcli.Command{
		Name:       "autoconnect",
		ShortUsage: "nmctl device autoconnect [-disable] <ifname>",
		ShortHelp:  "Enable / Disable autoconnect on the device",
		FlagSet:    autoconnectFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("autoconnect requires an interface name")
			}
			if err := a.connect(); err != nil {
				return err
			}
			return runDeviceAutoconnect(ctx, a.out, a.client, args[0], !*autoconnectDisable)
		},
	}

	return group("device", "Inspect and control network devices",
		a.leaf("status", "nmctl device status", "Print general device status information", 0, func(ctx context.Context, args []string) error {
			return runDeviceStatus(ctx, a.out, a.client)
		}),
		a.leaf("list", "nmctl device list", "List detailed device information", 0, func(ctx context.Context, args []string) error {
			return runDeviceList(ctx, a.out, a.client)
		}),
		a.leaf("get", "nmctl device get <ifname>", "List detailed device information for a given device", 1, func(ctx context.Context, args []string) error {
			return runDeviceGet(ctx, a.out, a.client, args[0])
		}),
		a.leaf("update", "nmctl device update <ifname>", "Reapply the last changes done to the active connection", 1, func(ctx context.Context, args []string) error {
			return runDeviceUpdate(ctx, a.out, a.client, args[0])
		}),
		a.leaf("disconnect", "nmctl device disconnect <ifname>", "Disconnect the device", 1, func(ctx context.Context, args []string) error {
			return runDeviceDisconnect(ctx, a.out, a.client, args[0])
		}),
		a.leaf("delete", "nmctl device delete <ifname>", "Delete the device", 1, func(ctx context.Context, args []string) error {
			return runDeviceDelete(ctx, a.out, a.client, args[0])
		}),
		manageCmd,
		autoconnectCmd,
	)
}

func newConnectionCommand(a *app) *ffcli.Command {
	return group("connection", "Manage connection profiles",
		a.leaf("up", "nmctl connection up <id|uuid>", "Activate a connection", 1, func(ctx context.Context, args []string) error {
			return runConnectionUp(ctx, a.out, a.client, args[0])
		}),
		a.leaf("down", "nmctl connection down <id|uuid>", "Deactivate a connection", 1, func(ctx context.Context, args []string) error {
			return runConnectionDown(ctx, a.out, a.client, args[0])
		}),
		a.leaf("list", "nmctl connection list", "List connections", 0, func(ctx context.Context, args []string) error {
			return runConnectionList(ctx, a.out, a.client)
		}),
		a.leaf("active", "nmctl connection active", "List active connections", 0, func(ctx context.Context, args []string) error {
			return runConnectionActive(ctx, a.out, a.client)
		}),
		a.leaf("delete", "nmctl connection delete <id|uuid>", "Delete a connection profile", 1, func(ctx context.Context, args []string) error {
			return runConnectionDelete(ctx, a.out, a.client, args[0])
		}),
	)
}

func newNetworkCommand(a *app) *ffcli.Command {
	connectivityFlagSet := flag.NewFlagSet("connectivity", flag.ExitOnError)
	connectivityCheck := connectivityFlagSet.Bool("check", false, "ask NetworkManager to check connectivity again")
	connectivityCmd := &ffcli.Command{
		Name:       "connectivity",
		ShortUsage: "nmctl network connectivity [-check]",
		ShortHelp:  "Get connectivity state",
		FlagSet:    connectivityFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			return runConnectivity(ctx, a.out, a.client, *connectivityCheck)
		},
	}

	return group("network", "Control networking as a whole",
		a.leaf("on", "nmctl network on", "Turn networking on", 0, func(ctx context.Context, args []string) error {
			return runNetworkingSet(ctx, a.out, a.client, true)
		}),
		a.leaf("off", "nmctl network off", "Turn networking off", 0, func(ctx context.Context, args []string) error {
			return runNetworkingSet(ctx, a.out, a.client, false)
		}),
		connectivityCmd,
	)
}

func newWifiCommand(a *app) *ffcli.Command {
	connectFlagSet := flag.NewFlagSet("connect", flag.ExitOnError)
	connectSSID := connectFlagSet.String("ssid", "", "network to join, prompted for when empty")
	connectPassword := connectFlagSet.String("password", "", "password for a new network, prompted for when empty")
	connectCmd := &ffcli.Command{
		Name:       "connect",
		ShortUsage: "nmctl wifi connect [-ssid ssid] [-password password]",
		ShortHelp:  "Connect to a wireless access point",
		FlagSet:    connectFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			return runWifiConnect(ctx, a.out, a.client, nm.ConnectRequest{
				SSID:     *connectSSID,
				Password: *connectPassword,
				Prompter: a.prompter,
			})
		},
	}

	return group("wifi", "Interact with the wireless device",
		a.leaf("on", "nmctl wifi on", "Enable WiFi", 0, func(ctx context.Context, args []string) error {
			return runWifiSet(ctx, a.out, a.client, true)
		}),
		a.leaf("off", "nmctl wifi off", "Disable WiFi", 0, func(ctx context.Context, args []string) error {
			return runWifiSet(ctx, a.out, a.client, false)
		}),
		a.leaf("status", "nmctl wifi status", "Print current WiFi status", 0, func(ctx context.Context, args []string) error {
			return runWifiStatus(ctx, a.out, a.client)
		}),
		a.leaf("list", "nmctl wifi list", "List currently available access points", 0, func(ctx context.Context, args []string) error {
			return runWifiList(ctx, a.out, a.client)
		}),
		a.leaf("rescan", "nmctl wifi rescan", "Scan for available access points", 0, func(ctx context.Context, args []string) error {
			return runWifiRescan(ctx, a.out, a.client)
		}),
		connectCmd,
		a.leaf("qr", "nmctl wifi qr <id|uuid>", "Show a QR code to join a saved network", 1, func(ctx context.Context, args []string) error {
			return runWifiQR(ctx, a.out, a.client, args[0])
		}),
	)
}

func newGeneralCommand(a *app) *ffcli.Command {
	return group("general", "Daemon wide status",
		a.leaf("status", "nmctl general status", "Print general NetworkManager status", 0, func(ctx context.Context, args []string) error {
			return runGeneralStatus(ctx, a.out, a.client)
		}),
		a.leaf("hostname", "nmctl general hostname", "Print hostname", 0, func(ctx context.Context, args []string) error {
			return runHostname(ctx, a.out, a.client)
		}),
	)
}
