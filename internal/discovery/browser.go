package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

// Browser watches the network for _lanmanager._tcp announcements and feeds
// them into a Registry. One long-lived goroutine consumes the resolver's
// entry channel for the browser's whole lifetime; it exits when the context
// given to Start is cancelled.
type Browser struct {
	registry *Registry

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewBrowser creates a browser feeding the given registry.
func NewBrowser(registry *Registry) *Browser {
	return &Browser{registry: registry}
}

// Start begins browsing. The browse runs until ctx is cancelled or Stop is
// called. Start fails if already running or the resolver cannot be created.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("browser already running")
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDiscoveryDaemonUnavailable, "mdns resolver unavailable", err)
	}

	browseCtx, cancel := context.WithCancel(ctx)
	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			b.registry.Upsert(entryToDevice(entry))
		}
	}()

	if err := resolver.Browse(browseCtx, ServiceType, Domain, entries); err != nil {
		cancel()
		return fmt.Errorf("mdns browse: %w", err)
	}

	b.cancel = cancel
	b.done = done
	b.running = true
	log.Printf("discovery: browsing for %s services", ServiceType)
	return nil
}

// Stop cancels the browse and waits for the consumer goroutine to drain.
func (b *Browser) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.running = false
	b.mu.Unlock()

	cancel()
	<-done
}

// entryToDevice converts a resolver entry into a registry record, parsing
// the TXT metadata and picking the preferred address.
func entryToDevice(entry *zeroconf.ServiceEntry) Device {
	d := Device{
		ServiceName: entry.Instance,
		Name:        entry.Instance,
		Port:        entry.Port,
		Version:     DefaultVersion,
	}

	addrs := append(append([]net.IP{}, entry.AddrIPv4...), entry.AddrIPv6...)
	d.Address = PreferredAddress(addrs)

	for _, txt := range entry.Text {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		// TXT keys are matched case-insensitively; some stacks uppercase them.
		switch strings.ToLower(key) {
		case "uuid":
			d.UUID = value
		case "version":
			if value != "" {
				d.Version = value
			}
		case "auth":
			d.AuthRequired = value == "required"
		case "device":
			if value != "" {
				d.Name = value
			}
		case "port":
			if p, err := strconv.Atoi(value); err == nil && p > 0 {
				d.Port = p
			}
		}
	}

	// Without a uuid record the service name has to serve as identity, which
	// breaks rename reconciliation for that peer.
	if d.UUID == "" {
		log.Printf("discovery: %s announced without a uuid record, using service name as identity", entry.Instance)
		d.UUID = entry.Instance
	}

	return d
}
