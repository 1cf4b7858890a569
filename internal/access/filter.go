// Package access implements the IP blacklist consulted before any request
// body is processed. Matching is string-based on the client address with the
// port stripped; entries are exact strings or wildcard patterns where '*'
// matches any run of characters.
package access

import (
	"net"
	"strings"
)

// Policy is an immutable snapshot of the blacklist. Disabled policies match
// nothing regardless of entries.
type Policy struct {
	Enabled bool
	Entries []string
}

// Blocked reports whether the client address is denied by the policy.
// addr may be a bare host or a host:port pair; the port is ignored.
func (p Policy) Blocked(addr string) bool {
	if !p.Enabled || len(p.Entries) == 0 {
		return false
	}

	host := stripPort(addr)
	for _, entry := range p.Entries {
		if match(entry, host) {
			return true
		}
	}
	return false
}

// stripPort removes a trailing port from host:port or [v6]:port forms,
// returning the input unchanged when no port is present.
func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// match compares an entry against the host. Entries without '*' must match
// exactly; entries with '*' are treated as anchored patterns where each '*'
// matches zero or more characters of any kind, dots included. So
// "192.168.1.*" also matches "192.168.1.5.1"; patterns are plain strings,
// not octet-aware.
func match(entry, host string) bool {
	if !strings.Contains(entry, "*") {
		return entry == host
	}

	parts := strings.Split(entry, "*")
	rest := host

	// Anchored at both ends; literal segments must appear in order.
	if !strings.HasPrefix(rest, parts[0]) {
		return false
	}
	rest = rest[len(parts[0]):]

	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(rest, parts[i])
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(parts[i]):]
	}

	last := parts[len(parts)-1]
	return strings.HasSuffix(rest, last)
}
