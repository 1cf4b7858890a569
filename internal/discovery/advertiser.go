package discovery

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type for LAN manager devices.
const ServiceType = "_lanmanager._tcp"

// Domain is the mDNS domain.
const Domain = "local."

// DefaultVersion is advertised when no explicit version is configured.
const DefaultVersion = "1.0.0"

// AdvertiseConfig describes this device's announcement.
type AdvertiseConfig struct {
	// UUID is the stable device identity from LoadOrCreateIdentity.
	UUID string

	// Port is the API port peers should connect to.
	Port int

	// DeviceName is the human-readable name shown to peers. Defaults to
	// the system hostname.
	DeviceName string

	// Version is the advertised software version. Defaults to DefaultVersion.
	Version string

	// AuthRequired reports whether peers must log in before issuing
	// commands.
	AuthRequired bool
}

// Advertiser registers this device with mDNS and keeps the announcement
// alive until Stop. Start is idempotent while running.
type Advertiser struct {
	mu     sync.Mutex
	cfg    AdvertiseConfig
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser; nothing is announced until Start.
func NewAdvertiser(cfg AdvertiseConfig) *Advertiser {
	return &Advertiser{cfg: cfg}
}

// InstanceName derives the mDNS instance name from the device UUID. The
// short prefix keeps names readable while staying unique on a home network.
func InstanceName(uuid string) string {
	short := uuid
	if len(short) > 8 {
		short = short[:8]
	}
	return "LanDevice-" + short
}

// Start registers the service. Safe to call again while running.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	name := a.cfg.DeviceName
	if name == "" {
		if hostname, err := os.Hostname(); err == nil {
			name = hostname
		} else {
			name = "lan-device"
		}
	}

	version := a.cfg.Version
	if version == "" {
		version = DefaultVersion
	}

	auth := "none"
	if a.cfg.AuthRequired {
		auth = "required"
	}

	txt := []string{
		fmt.Sprintf("uuid=%s", a.cfg.UUID),
		fmt.Sprintf("version=%s", version),
		fmt.Sprintf("auth=%s", auth),
		fmt.Sprintf("device=%s", name),
		fmt.Sprintf("port=%d", a.cfg.Port),
	}

	server, err := zeroconf.Register(
		InstanceName(a.cfg.UUID),
		ServiceType,
		Domain,
		a.cfg.Port,
		txt,
		nil, // all interfaces
	)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	a.server = server
	log.Printf("discovery: advertising %q on port %d", name, a.cfg.Port)
	return nil
}

// Stop withdraws the announcement. Safe to call repeatedly.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		log.Printf("discovery: advertisement stopped")
	}
}

// IsRunning reports whether the announcement is live.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}
