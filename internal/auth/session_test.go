package auth

import (
	"testing"
	"time"
)

func newTestSessions(now *time.Time) *SessionManager {
	sm := NewSessionManager()
	sm.timeNow = func() time.Time { return *now }
	return sm
}

func TestInsertAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sm := newTestSessions(&now)

	token := sm.Insert("")
	if token == "" {
		t.Fatal("empty token")
	}
	if !sm.Verify(token) {
		t.Fatal("fresh token should verify")
	}
	if sm.Verify("no-such-token") {
		t.Fatal("unknown token should not verify")
	}
}

func TestFixedExpiryWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sm := newTestSessions(&now)

	token := sm.Insert("")

	// Repeated verification near the end of the window does not extend it.
	now = now.Add(SessionTTL - time.Minute)
	for i := 0; i < 3; i++ {
		if !sm.Verify(token) {
			t.Fatal("token inside window should verify")
		}
	}

	// The window is anchored to creation, so one more minute kills it even
	// though the last access was seconds ago.
	now = now.Add(time.Minute)
	if sm.Verify(token) {
		t.Fatal("token must expire at created_at + ttl regardless of access")
	}

	// Expired tokens are evicted, not resurrected.
	if sm.Count() != 0 {
		t.Fatalf("count = %d, want 0 after expiry eviction", sm.Count())
	}
}

func TestCapEvictsOldestSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sm := newTestSessions(&now)

	var tokens []string
	for i := 0; i < DefaultMaxSessions; i++ {
		tokens = append(tokens, sm.Insert(""))
		now = now.Add(time.Second)
	}
	if sm.Count() != DefaultMaxSessions {
		t.Fatalf("count = %d, want %d", sm.Count(), DefaultMaxSessions)
	}

	// One more insert evicts the oldest token only.
	extra := sm.Insert("")
	if sm.Count() != DefaultMaxSessions {
		t.Fatalf("count = %d after eviction, want %d", sm.Count(), DefaultMaxSessions)
	}
	if sm.Verify(tokens[0]) {
		t.Fatal("oldest token should have been evicted")
	}
	for _, tok := range tokens[1:] {
		if !sm.Verify(tok) {
			t.Fatal("younger tokens should survive eviction")
		}
	}
	if !sm.Verify(extra) {
		t.Fatal("new token should verify")
	}
}

func TestRevoke(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sm := newTestSessions(&now)

	token := sm.Insert("")
	if !sm.Revoke(token) {
		t.Fatal("revoke should report the token existed")
	}
	if sm.Revoke(token) {
		t.Fatal("second revoke should report absence")
	}
	if sm.Verify(token) {
		t.Fatal("revoked token should not verify")
	}
}

func TestRevokeAll(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sm := newTestSessions(&now)

	for i := 0; i < 3; i++ {
		sm.Insert("")
	}
	sm.RevokeAll()
	if sm.Count() != 0 {
		t.Fatalf("count = %d, want 0", sm.Count())
	}
}
