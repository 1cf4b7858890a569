// Package sysinfo collects a snapshot of host vitals for the system info
// endpoint and the realtime status broadcast.
package sysinfo

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one observation of the host.
type Snapshot struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform"`
	Arch          string  `json:"arch"`
	CPUUsage      float64 `json:"cpu_usage"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryPercent float64 `json:"memory_percent"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

// Collect gathers a fresh snapshot. Individual probe failures degrade the
// affected fields to zero values rather than failing the whole snapshot;
// only a total host info failure is an error.
func Collect() (*Snapshot, error) {
	info, err := host.Info()
	if err != nil {
		return nil, fmt.Errorf("host info: %w", err)
	}

	snap := &Snapshot{
		Hostname:      info.Hostname,
		OS:            info.OS,
		Platform:      info.Platform,
		Arch:          runtime.GOARCH,
		UptimeSeconds: info.Uptime,
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.CPUUsage = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryTotal = vm.Total
		snap.MemoryUsed = vm.Used
		snap.MemoryPercent = vm.UsedPercent
	}

	return snap, nil
}

// CacheTTL is how long a snapshot is served before recollecting.
const CacheTTL = 5 * time.Minute

// Provider serves snapshots with a time-based cache, keeping repeated info
// requests from hammering the probes.
type Provider struct {
	mu      sync.Mutex
	cached  *Snapshot
	takenAt time.Time

	ttl     time.Duration
	collect func() (*Snapshot, error)
	timeNow func() time.Time
}

// NewProvider creates a caching provider over Collect.
func NewProvider() *Provider {
	return NewProviderWithCollector(Collect)
}

// NewProviderWithCollector creates a caching provider over a custom probe.
func NewProviderWithCollector(collect func() (*Snapshot, error)) *Provider {
	return &Provider{
		ttl:     CacheTTL,
		collect: collect,
		timeNow: time.Now,
	}
}

// Get returns the cached snapshot, recollecting when it is older than the
// TTL or absent. A failed recollection falls back to the stale snapshot
// when one exists.
func (p *Provider) Get() (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.timeNow()
	if p.cached != nil && now.Sub(p.takenAt) < p.ttl {
		return p.cached, nil
	}

	snap, err := p.collect()
	if err != nil {
		if p.cached != nil {
			return p.cached, nil
		}
		return nil, err
	}

	p.cached = snap
	p.takenAt = now
	return snap, nil
}
