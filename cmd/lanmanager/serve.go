package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/landevice/lanmanager/internal/access"
	"github.com/landevice/lanmanager/internal/auth"
	"github.com/landevice/lanmanager/internal/command"
	"github.com/landevice/lanmanager/internal/config"
	"github.com/landevice/lanmanager/internal/discovery"
	"github.com/landevice/lanmanager/internal/server"
	"github.com/landevice/lanmanager/internal/storage"
	"github.com/landevice/lanmanager/internal/sysinfo"
)

// rememberInterval is how often discovered peers are folded into the
// known-devices file.
const rememberInterval = 30 * time.Second

// staleAfter is how long a discovered record survives without a fresh
// announcement before the registry drops it. The known-devices file keeps
// its history regardless.
const staleAfter = 5 * time.Minute

// app bundles the daemon's long-lived handles so startup and shutdown share
// one explicit context instead of package globals.
type app struct {
	cfg        *config.Config
	gate       *auth.Gate
	executor   *command.Executor
	registry   *discovery.Registry
	browser    *discovery.Browser
	advertiser *discovery.Advertiser
	audit      *storage.AuditStore
	known      *storage.KnownDevices
	server     *server.Server
	uuid       string
}

func runServe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (default ~/.lanmanager/config.toml)")
	port := fs.Int("port", 0, "Override the configured API port")
	showQR := fs.Bool("qr", false, "Print a QR code with the service URL")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *port != 0 {
		cfg.APIPort = *port
	}

	a, err := buildApp(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := <-a.server.Start(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		a.close()
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MdnsEnabled {
		if err := a.advertiser.Start(); err != nil {
			log.Printf("serve: mdns advertise failed, continuing without: %v", err)
		}
		if err := a.browser.Start(ctx); err != nil {
			log.Printf("serve: mdns browse failed, continuing without: %v", err)
		}
	}

	printBanner(stdout, a, *showQR)

	go a.rememberLoop(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Fprintln(stdout, "Shutting down...")

	cancel()
	a.shutdown()
	return 0
}

// buildApp wires every component from the loaded config.
func buildApp(cfg *config.Config) (*app, error) {
	dataDir := filepath.Dir(cfg.Path())
	if cfg.Path() == "" {
		dataDir = "."
	}

	uuid := discovery.LoadOrCreateIdentity(dataDir)

	// Password changes made at runtime are written straight back to the
	// config file so a restart keeps the new credential.
	creds := auth.NewCredentialStore(cfg.PasswordHash, func(hash string) error {
		cfg.PasswordHash = hash
		return cfg.Save()
	})
	gate := auth.NewGate(creds, auth.NewChallengeLedger(), auth.NewSessionManager())

	audit, err := storage.OpenAuditStore(cfg.AuditDB)
	if err != nil {
		return nil, err
	}

	known, err := storage.OpenKnownDevices(cfg.KnownDevices)
	if err != nil {
		audit.Close()
		return nil, err
	}

	registry := discovery.NewRegistry()

	deviceName := cfg.DeviceName
	if deviceName == "" {
		if hostname, err := os.Hostname(); err == nil {
			deviceName = hostname
		}
	}

	a := &app{
		cfg:      cfg,
		gate:     gate,
		registry: registry,
		browser:  discovery.NewBrowser(registry),
		advertiser: discovery.NewAdvertiser(discovery.AdvertiseConfig{
			UUID:         uuid,
			Port:         cfg.APIPort,
			DeviceName:   deviceName,
			Version:      Version,
			AuthRequired: gate.RequiresAuth(),
		}),
		audit: audit,
		known: known,
		uuid:  uuid,
	}

	// The audit hook runs at command time, after buildApp has assigned
	// a.server, so it can mirror each entry into the ws log stream.
	a.executor = command.NewExecutor(
		func() command.Policy {
			return command.PolicyFromLists(cfg.CommandWhitelist, cfg.CustomCommands)
		},
		command.ShellRunner{},
		func(name string, args []string, res *command.Result, denied error) {
			entry := &storage.AuditEntry{
				Command: name,
				Args:    storage.JoinArgs(args),
				Allowed: denied == nil,
			}
			if denied != nil {
				entry.DenyReason = denied.Error()
			} else if res != nil {
				entry.Success = res.Success
				entry.ExitCode = res.ExitCode
				entry.DurationMS = res.ExecutionTimeMS
			}
			if err := audit.Record(entry); err != nil {
				log.Printf("serve: audit write failed: %v", err)
			}
			if a.server != nil {
				if denied != nil {
					a.server.BroadcastLog("warn", fmt.Sprintf("command %q denied: %s", name, denied.Error()))
				} else if res != nil && !res.Success {
					a.server.BroadcastLog("warn", fmt.Sprintf("command %q exited with code %d", name, res.ExitCode))
				} else {
					a.server.BroadcastLog("info", fmt.Sprintf("command %q completed", name))
				}
			}
		},
	)

	a.server = server.New(server.Options{
		Addr:     fmt.Sprintf(":%d", cfg.APIPort),
		Gate:     gate,
		Executor: a.executor,
		SysInfo:  sysinfo.NewProvider(),
		AccessPolicy: func() access.Policy {
			return access.Policy{Enabled: cfg.EnableIPBlacklist, Entries: cfg.IPBlacklist}
		},
		Registry:   registry,
		Audit:      audit,
		DeviceUUID: uuid,
		DeviceName: deviceName,
		Version:    Version,
	})

	return a, nil
}

// rememberLoop periodically folds the live registry into the persistent
// known-devices file and drops records that stopped announcing.
func (a *app) rememberLoop(ctx context.Context) {
	ticker := time.NewTicker(rememberInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.syncKnownDevices()
		}
	}
}

// syncKnownDevices is one remember tick: persist every discovered peer
// except our own announcement, then prune registry records past staleAfter.
func (a *app) syncKnownDevices() {
	for _, d := range a.registry.List() {
		if d.UUID == "" || d.UUID == a.uuid {
			continue
		}
		a.known.Remember(storage.KnownDevice{
			UUID:         d.UUID,
			Name:         d.Name,
			Address:      d.Address,
			Port:         d.Port,
			Version:      d.Version,
			AuthRequired: d.AuthRequired,
		})
	}
	if err := a.known.Flush(); err != nil {
		log.Printf("serve: known devices flush failed: %v", err)
	}
	if n := a.registry.Prune(staleAfter); n > 0 {
		log.Printf("serve: pruned %d stale device records", n)
	}
}

// shutdown stops everything in dependency order with a bounded grace
// period.
func (a *app) shutdown() {
	a.advertiser.Stop()
	a.browser.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("serve: server shutdown: %v", err)
	}

	a.close()
}

// close releases storage handles; safe after a partial startup.
func (a *app) close() {
	if err := a.known.Flush(); err != nil {
		log.Printf("serve: known devices flush failed: %v", err)
	}
	if err := a.audit.Close(); err != nil {
		log.Printf("serve: audit close failed: %v", err)
	}
}

func printBanner(w io.Writer, a *app, showQR bool) {
	addr := GetPreferredOutboundIP()
	if addr == "" {
		addr = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d", addr, a.cfg.APIPort)

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "         LAN DEVICE MANAGER")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintf(w, "  URL:      %s\n", url)
	fmt.Fprintf(w, "  Device:   %s\n", a.uuid)
	fmt.Fprintf(w, "  Auth:     %s\n", authLabel(a.gate.RequiresAuth()))
	fmt.Fprintf(w, "  mDNS:     %s\n", mdnsLabel(a.cfg.MdnsEnabled))
	fmt.Fprintln(w, "===========================================")

	if showQR {
		qr, err := qrcode.New(url, qrcode.Medium)
		if err != nil {
			fmt.Fprintf(w, "Error generating QR code: %v\n", err)
			return
		}
		fmt.Fprint(w, qr.ToSmallString(false))
	}
	fmt.Fprintln(w, "")
}

func authLabel(required bool) string {
	if required {
		return "password required"
	}
	return "open (set a password with 'lanmanager password set')"
}

func mdnsLabel(enabled bool) string {
	if enabled {
		return "advertising + browsing"
	}
	return "disabled"
}
