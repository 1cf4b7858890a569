package sysinfo

import (
	"errors"
	"testing"
	"time"
)

func newTestProvider(collect func() (*Snapshot, error), now *time.Time) *Provider {
	return &Provider{
		ttl:     CacheTTL,
		collect: collect,
		timeNow: func() time.Time { return *now },
	}
}

func TestProviderCachesWithinTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	p := newTestProvider(func() (*Snapshot, error) {
		calls++
		return &Snapshot{Hostname: "desk"}, nil
	}, &now)

	for i := 0; i < 3; i++ {
		if _, err := p.Get(); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("collect called %d times, want 1", calls)
	}

	now = now.Add(CacheTTL + time.Second)
	if _, err := p.Get(); err != nil {
		t.Fatalf("get after ttl: %v", err)
	}
	if calls != 2 {
		t.Fatalf("collect called %d times after ttl, want 2", calls)
	}
}

func TestProviderServesStaleOnFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fail := false
	p := newTestProvider(func() (*Snapshot, error) {
		if fail {
			return nil, errors.New("probe down")
		}
		return &Snapshot{Hostname: "desk"}, nil
	}, &now)

	if _, err := p.Get(); err != nil {
		t.Fatalf("get: %v", err)
	}

	fail = true
	now = now.Add(CacheTTL + time.Second)
	snap, err := p.Get()
	if err != nil {
		t.Fatalf("stale fallback should not error: %v", err)
	}
	if snap.Hostname != "desk" {
		t.Fatalf("got %+v, want the stale snapshot", snap)
	}
}

func TestProviderErrorsWithNothingCached(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProvider(func() (*Snapshot, error) {
		return nil, errors.New("probe down")
	}, &now)

	if _, err := p.Get(); err == nil {
		t.Fatal("want error when the first collection fails")
	}
}
