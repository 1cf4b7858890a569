package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

// ChallengeTTL is how long an issued challenge remains redeemable.
const ChallengeTTL = 5 * time.Minute

// Typed failures for challenge validation.
var (
	// ErrInvalidChallenge is returned when the nonce is unknown to the ledger.
	ErrInvalidChallenge = apperrors.New(apperrors.CodeAuthInvalidChallenge, "Invalid challenge")

	// ErrExpiredChallenge is returned when the nonce is known but past expiry.
	ErrExpiredChallenge = apperrors.New(apperrors.CodeAuthExpiredChallenge, "Challenge has expired")
)

// ChallengeLedger issues one-time random nonces with an expiry. A nonce is
// valid iff it is present in the ledger AND the current time is before its
// expiry. Expired entries are purged opportunistically on Generate.
type ChallengeLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time // nonce -> expires_at

	ttl     time.Duration
	timeNow func() time.Time
}

// NewChallengeLedger creates an empty ledger with the default TTL.
func NewChallengeLedger() *ChallengeLedger {
	return &ChallengeLedger{
		entries: make(map[string]time.Time),
		ttl:     ChallengeTTL,
		timeNow: time.Now,
	}
}

// Generate creates a cryptographically random nonce, stores it with
// expiry now+TTL, purges expired entries, and returns the nonce.
func (cl *ChallengeLedger) Generate() string {
	nonce := uuid.New().String()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.timeNow()
	cl.entries[nonce] = now.Add(cl.ttl)

	// Sweep entries whose expiry has passed. Challenges are naturally
	// bounded by TTL, so this keeps the map small without a timer.
	for n, exp := range cl.entries {
		if !now.Before(exp) {
			delete(cl.entries, n)
		}
	}

	return nonce
}

// Validate checks a nonce without consuming it. Returns ErrInvalidChallenge
// for unknown nonces and ErrExpiredChallenge for known-but-expired ones.
// An expired nonce is left in place for the next sweep; it is never revived.
func (cl *ChallengeLedger) Validate(nonce string) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	exp, ok := cl.entries[nonce]
	if !ok {
		return ErrInvalidChallenge
	}
	if !cl.timeNow().Before(exp) {
		return ErrExpiredChallenge
	}
	return nil
}

// Consume redeems a nonce after successful authentication (one-time use).
// The validity check and the delete happen under one lock, so concurrent
// logins sharing a nonce redeem it at most once; the loser sees
// ErrInvalidChallenge.
func (cl *ChallengeLedger) Consume(nonce string) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	exp, ok := cl.entries[nonce]
	if !ok {
		return ErrInvalidChallenge
	}
	if !cl.timeNow().Before(exp) {
		return ErrExpiredChallenge
	}
	delete(cl.entries, nonce)
	return nil
}

// Len returns the number of stored challenges, expired or not.
func (cl *ChallengeLedger) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.entries)
}
