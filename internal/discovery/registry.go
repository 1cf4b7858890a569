package discovery

import (
	"log"
	"net"
	"sort"
	"sync"
	"time"
)

// Device is one peer seen on the network.
type Device struct {
	ServiceName  string    `json:"service_name"`
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Port         int       `json:"port"`
	Version      string    `json:"version"`
	AuthRequired bool      `json:"auth_required"`
	LastSeen     time.Time `json:"last_seen"`
}

// Registry is the in-memory view of discovered peers. It is dual-indexed:
// by mDNS service name (the key announcements arrive under) and by stable
// UUID. Both indexes are reconciled under one mutex, so a device that
// re-announces under a new service name (after a rename or address change)
// replaces its previous entry instead of appearing twice.
type Registry struct {
	mu        sync.Mutex
	byService map[string]*Device // service name -> record
	byUUID    map[string]string  // uuid -> service name

	timeNow func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byService: make(map[string]*Device),
		byUUID:    make(map[string]string),
		timeNow:   time.Now,
	}
}

// Upsert records a device announcement. When the device's UUID was
// previously known under a different service name, the stale record is
// dropped so the UUID maps to exactly one live entry.
func (r *Registry) Upsert(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d.LastSeen = r.timeNow()

	if d.UUID != "" {
		if prev, ok := r.byUUID[d.UUID]; ok && prev != d.ServiceName {
			delete(r.byService, prev)
			log.Printf("discovery: %s re-announced as %q (was %q)", d.UUID, d.ServiceName, prev)
		}
		r.byUUID[d.UUID] = d.ServiceName
	}
	r.byService[d.ServiceName] = &d
}

// Remove drops a device by its service name, clearing the UUID index when
// it still points at the removed entry.
func (r *Registry) Remove(serviceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byService[serviceName]
	if !ok {
		return
	}
	delete(r.byService, serviceName)
	if d.UUID != "" && r.byUUID[d.UUID] == serviceName {
		delete(r.byUUID, d.UUID)
	}
}

// ByUUID returns the live record for a stable UUID.
func (r *Registry) ByUUID(uuid string) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.byUUID[uuid]
	if !ok {
		return Device{}, false
	}
	d, ok := r.byService[name]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// List returns a snapshot of all known devices, ordered by name for stable
// display.
func (r *Registry) List() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Device, 0, len(r.byService))
	for _, d := range r.byService {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ServiceName < out[j].ServiceName
	})
	return out
}

// Prune removes devices not seen within maxAge and returns how many were
// dropped.
func (r *Registry) Prune(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.timeNow().Add(-maxAge)
	dropped := 0
	for name, d := range r.byService {
		if d.LastSeen.Before(cutoff) {
			delete(r.byService, name)
			if d.UUID != "" && r.byUUID[d.UUID] == name {
				delete(r.byUUID, d.UUID)
			}
			dropped++
		}
	}
	return dropped
}

// PreferredAddress picks the address to contact a peer on: a non-loopback
// IPv4 if one exists, then any non-loopback address, then whatever is left.
func PreferredAddress(addrs []net.IP) string {
	var nonLoopback net.IP
	var any net.IP
	for _, ip := range addrs {
		if any == nil {
			any = ip
		}
		if ip.IsLoopback() {
			continue
		}
		if ip.To4() != nil {
			return ip.String()
		}
		if nonLoopback == nil {
			nonLoopback = ip
		}
	}
	if nonLoopback != nil {
		return nonLoopback.String()
	}
	if any != nil {
		return any.String()
	}
	return ""
}
