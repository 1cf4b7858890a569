package auth

import (
	"testing"
	"time"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

func newTestLedger(now *time.Time) *ChallengeLedger {
	cl := NewChallengeLedger()
	cl.timeNow = func() time.Time { return *now }
	return cl
}

func TestChallengeLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cl := newTestLedger(&now)

	nonce := cl.Generate()
	if nonce == "" {
		t.Fatal("empty nonce")
	}
	if err := cl.Validate(nonce); err != nil {
		t.Fatalf("fresh nonce should validate: %v", err)
	}

	// Validation does not consume.
	if err := cl.Validate(nonce); err != nil {
		t.Fatalf("second validation should pass: %v", err)
	}

	if err := cl.Consume(nonce); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := cl.Validate(nonce); !apperrors.IsCode(err, apperrors.CodeAuthInvalidChallenge) {
		t.Fatalf("consumed nonce: err = %v, want invalid challenge", err)
	}
	if err := cl.Consume(nonce); !apperrors.IsCode(err, apperrors.CodeAuthInvalidChallenge) {
		t.Fatalf("second consume: err = %v, want invalid challenge", err)
	}
}

func TestUnknownChallengeIsInvalid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cl := newTestLedger(&now)

	if err := cl.Validate("never-issued"); !apperrors.IsCode(err, apperrors.CodeAuthInvalidChallenge) {
		t.Fatalf("err = %v, want invalid challenge", err)
	}
}

func TestChallengeExpiresAfterTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cl := newTestLedger(&now)

	nonce := cl.Generate()

	// One second before expiry: still valid.
	now = now.Add(ChallengeTTL - time.Second)
	if err := cl.Validate(nonce); err != nil {
		t.Fatalf("nonce inside ttl should validate: %v", err)
	}

	// At expiry: rejected as expired, not unknown.
	now = now.Add(time.Second)
	if err := cl.Validate(nonce); !apperrors.IsCode(err, apperrors.CodeAuthExpiredChallenge) {
		t.Fatalf("err = %v, want expired challenge", err)
	}
}

func TestGenerateSweepsExpiredEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cl := newTestLedger(&now)

	for i := 0; i < 5; i++ {
		cl.Generate()
	}
	if cl.Len() != 5 {
		t.Fatalf("len = %d, want 5", cl.Len())
	}

	now = now.Add(ChallengeTTL + time.Second)
	cl.Generate()

	// The sweep keeps only the fresh nonce.
	if cl.Len() != 1 {
		t.Fatalf("len = %d after sweep, want 1", cl.Len())
	}
}
