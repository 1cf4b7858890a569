// Package discovery handles mDNS presence on the LAN: advertising this
// device under _lanmanager._tcp and browsing for peers into a registry
// keyed by their stable identity.
package discovery

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// IdentityFile is the file name holding this device's stable UUID, kept
// under the config directory.
const IdentityFile = "device.uuid"

// LoadOrCreateIdentity returns the device's stable UUID, generating and
// persisting one on first run. The UUID survives restarts so peers can
// recognize this device across address and name changes.
//
// If the identity cannot be persisted, a fresh ephemeral UUID is returned
// and the degradation is logged; advertising still works, but peers will
// see a new identity after every restart.
func LoadOrCreateIdentity(dir string) string {
	path := filepath.Join(dir, IdentityFile)

	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
		log.Printf("discovery: ignoring malformed identity file %s", path)
	}

	id := uuid.New().String()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Printf("discovery: degraded identity, cannot create %s: %v", dir, err)
		return id
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		log.Printf("discovery: degraded identity, cannot persist %s: %v", path, err)
		return id
	}

	log.Printf("discovery: generated device identity %s", id)
	return id
}
