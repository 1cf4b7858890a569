package storage

import (
	"testing"
	"time"
)

func newTestAuditStore(t *testing.T) *AuditStore {
	t.Helper()
	store, err := OpenAuditStore(":memory:")
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAuditRecordAndRecent(t *testing.T) {
	store := newTestAuditStore(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.timeNow = func() time.Time { return now }

	entries := []*AuditEntry{
		{Command: "lock", Allowed: true, Success: true, ClientAddr: "192.168.1.5"},
		{Command: "restart", Allowed: false, DenyReason: "Command 'restart' is not in whitelist", ClientAddr: "192.168.1.5"},
		{Command: "ping", Args: "127.0.0.1", Allowed: true, Success: false, ExitCode: 1, DurationMS: 42, ClientAddr: "192.168.1.6"},
	}
	for _, e := range entries {
		now = now.Add(time.Second)
		if err := store.Record(e); err != nil {
			t.Fatalf("record %q: %v", e.Command, err)
		}
	}

	recent, err := store.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d entries, want 3", len(recent))
	}
	// Newest first.
	if recent[0].Command != "ping" || recent[2].Command != "lock" {
		t.Fatalf("unexpected order: %s .. %s", recent[0].Command, recent[2].Command)
	}

	ping := recent[0]
	if ping.Args != "127.0.0.1" || !ping.Allowed || ping.Success || ping.ExitCode != 1 || ping.DurationMS != 42 {
		t.Fatalf("fields not round-tripped: %+v", ping)
	}

	denied := recent[1]
	if denied.Allowed || denied.DenyReason == "" {
		t.Fatalf("denial not recorded: %+v", denied)
	}
}

func TestAuditRecentLimit(t *testing.T) {
	store := newTestAuditStore(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.timeNow = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		if err := store.Record(&AuditEntry{Command: "lock", Allowed: true, Success: true}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recent, err := store.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d entries, want 2", len(recent))
	}
}
