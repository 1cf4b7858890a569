// Package config provides TOML configuration file loading and saving for the
// LAN manager. The configuration file lives at ~/.lanmanager/config.toml by
// default, but can be overridden with the --config flag. CLI flags always take
// precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration file structure.
// Field names use Go camelCase internally but map to snake_case in TOML files
// via struct tags.
type Config struct {
	// APIPort is the TCP port for the HTTP/WebSocket server.
	// Default: 8080
	APIPort int `toml:"api_port"`

	// PasswordHash is the Argon2id hash of the access password in PHC string
	// format. Empty means authentication is disabled.
	PasswordHash string `toml:"password_hash"`

	// CommandWhitelist lists the enabled built-in command names, plus the
	// "custom" master switch when user-defined commands are allowed.
	CommandWhitelist []string `toml:"command_whitelist"`

	// CustomCommands lists user-defined command names. A custom command is
	// executable only when "custom" is in CommandWhitelist AND the name is
	// also present in CommandWhitelist.
	CustomCommands []string `toml:"custom_commands"`

	// IPBlacklist lists denied source addresses. Entries are exact IP
	// literals or wildcard patterns like "192.168.1.*".
	IPBlacklist []string `toml:"ip_blacklist"`

	// EnableIPBlacklist toggles blacklist enforcement.
	// Default: false
	EnableIPBlacklist bool `toml:"enable_ip_blacklist"`

	// MdnsEnabled enables mDNS service advertisement. When true, the device
	// advertises itself on the local network so peers can discover it
	// without manual IP entry.
	// Default: true
	MdnsEnabled bool `toml:"mdns_enabled"`

	// DeviceName is the human-readable name advertised over mDNS.
	// Defaults to the system hostname if empty.
	DeviceName string `toml:"device_name"`

	// KnownDevices is the path to the persisted known-device list.
	// Default: ~/.lanmanager/devices.json
	KnownDevices string `toml:"known_devices"`

	// AuditDB is the path to the SQLite database for the command audit log.
	// Default: ~/.lanmanager/lanmanager.db
	AuditDB string `toml:"audit_db"`

	// path is where this config was loaded from, used by Save.
	path string

	// mu guards concurrent Save calls (the server mutates PasswordHash from
	// CLI and auth paths).
	mu sync.Mutex
}

// DefaultBuiltins is the initial command whitelist for a fresh install.
// Matches the built-in commands the executor knows how to dispatch.
var DefaultBuiltins = []string{
	"shutdown", "restart", "sleep", "lock", "systeminfo", "tasklist",
}

// DefaultDir returns the application data directory: ~/.lanmanager.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".lanmanager"), nil
}

// DefaultConfigPath returns the default config file location:
// ~/.lanmanager/config.toml.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads a TOML config file from the given path and returns a Config
// with defaults applied for unset fields.
//
// Behavior:
//   - If path is empty, attempts to load from the default location.
//     Returns a default Config without error if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	// Defaults that decode can override. Booleans defaulting to true must
	// be seeded here; applyDefaults cannot tell false from unset.
	cfg := &Config{MdnsEnabled: true}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			// Can't determine home dir; run with in-memory defaults.
			cfg.applyDefaults()
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			cfg.path = defaultPath
			cfg.applyDefaults()
			return cfg, nil
		}
		path = defaultPath
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.path = path
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero-valued fields with working defaults.
func (c *Config) applyDefaults() {
	if c.APIPort == 0 {
		c.APIPort = 8080
	}
	if c.CommandWhitelist == nil {
		c.CommandWhitelist = append([]string(nil), DefaultBuiltins...)
	}
	dir := filepath.Dir(c.path)
	if c.path == "" {
		dir = "."
	}
	if c.KnownDevices == "" {
		c.KnownDevices = filepath.Join(dir, "devices.json")
	}
	if c.AuditDB == "" {
		c.AuditDB = filepath.Join(dir, "lanmanager.db")
	}
}

// Path returns where this config was loaded from (or will be saved to).
func (c *Config) Path() string {
	return c.path
}

// Save writes the config back to its source path with restrictive
// permissions. The parent directory is created if missing. The password hash
// lives in this file, hence 0600.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		return fmt.Errorf("config has no file path to save to")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
