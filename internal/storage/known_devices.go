package storage

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

// KnownDevice is a peer this device has seen before, keyed by its stable
// UUID so it stays recognizable across renames and address changes.
type KnownDevice struct {
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Port         int       `json:"port"`
	Version      string    `json:"version"`
	AuthRequired bool      `json:"auth_required"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

// KnownDevices persists the peer list as a single JSON file. The whole file
// is rewritten on save; updates merge in memory by UUID and are batched
// behind a dirty flag so a burst of announcements costs one write.
type KnownDevices struct {
	mu      sync.Mutex
	path    string
	devices map[string]*KnownDevice
	dirty   bool

	timeNow func() time.Time
}

// OpenKnownDevices loads the device file, tolerating a missing file as an
// empty list.
func OpenKnownDevices(path string) (*KnownDevices, error) {
	kd := &KnownDevices{
		path:    path,
		devices: make(map[string]*KnownDevice),
		timeNow: time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kd, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "read known devices", err)
	}

	var list []*KnownDevice
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "parse known devices", err)
	}
	for _, d := range list {
		if d.UUID != "" {
			kd.devices[d.UUID] = d
		}
	}

	log.Printf("storage: loaded %d known devices", len(kd.devices))
	return kd, nil
}

// Remember merges an observation into the list. FirstSeen is preserved for
// devices already on file; everything else is replaced by the newer sighting.
func (kd *KnownDevices) Remember(d KnownDevice) {
	if d.UUID == "" {
		return
	}

	kd.mu.Lock()
	defer kd.mu.Unlock()

	now := kd.timeNow()
	d.LastSeen = now

	if prev, ok := kd.devices[d.UUID]; ok {
		d.FirstSeen = prev.FirstSeen
	} else {
		d.FirstSeen = now
	}

	kd.devices[d.UUID] = &d
	kd.dirty = true
}

// Forget removes a device. Returns true if it was on file.
func (kd *KnownDevices) Forget(uuid string) bool {
	kd.mu.Lock()
	defer kd.mu.Unlock()

	if _, ok := kd.devices[uuid]; !ok {
		return false
	}
	delete(kd.devices, uuid)
	kd.dirty = true
	return true
}

// Get returns one device by UUID.
func (kd *KnownDevices) Get(uuid string) (KnownDevice, bool) {
	kd.mu.Lock()
	defer kd.mu.Unlock()

	d, ok := kd.devices[uuid]
	if !ok {
		return KnownDevice{}, false
	}
	return *d, true
}

// List returns a snapshot ordered by name.
func (kd *KnownDevices) List() []KnownDevice {
	kd.mu.Lock()
	defer kd.mu.Unlock()

	out := make([]KnownDevice, 0, len(kd.devices))
	for _, d := range kd.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

// Flush writes the file if anything changed since the last write. The file
// is replaced wholesale via a temp file rename so readers never see a
// partial list.
func (kd *KnownDevices) Flush() error {
	kd.mu.Lock()
	defer kd.mu.Unlock()

	if !kd.dirty {
		return nil
	}

	list := make([]*KnownDevice, 0, len(kd.devices))
	for _, d := range kd.devices {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UUID < list[j].UUID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "encode known devices", err)
	}

	if err := os.MkdirAll(filepath.Dir(kd.path), 0o700); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "create storage dir", err)
	}
	tmp := kd.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "write known devices", err)
	}
	if err := os.Rename(tmp, kd.path); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "replace known devices", err)
	}

	kd.dirty = false
	return nil
}
