package auth

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session lifetime constants.
const (
	// SessionTTL is the fixed validity window for a token, anchored to
	// creation time. LastAccess is refreshed on every verification but does
	// not extend the window.
	SessionTTL = time.Hour

	// DefaultMaxSessions caps the number of live sessions. Inserting past
	// the cap evicts the session with the smallest CreatedAt.
	DefaultMaxSessions = 10
)

// Session is one issued token and its timestamps.
type Session struct {
	Token      string
	CreatedAt  time.Time
	LastAccess time.Time
	DeviceID   string // optional; empty when the caller did not identify itself
}

// SessionManager issues, validates, and revokes opaque session tokens.
// All state is in-memory and bounded by the session cap.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	maxSessions int
	ttl         time.Duration
	timeNow     func() time.Time
}

// NewSessionManager creates a session store with the default cap and TTL.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
		ttl:         SessionTTL,
		timeNow:     time.Now,
	}
}

// Insert mints a new random opaque token and stores a session for it.
// If the store is at capacity, the oldest session by CreatedAt is evicted
// first. Returns the token.
func (sm *SessionManager) Insert(deviceID string) string {
	token := uuid.New().String()
	now := sm.timeNow()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.maxSessions {
		var oldest string
		var oldestAt time.Time
		for t, s := range sm.sessions {
			if oldest == "" || s.CreatedAt.Before(oldestAt) {
				oldest = t
				oldestAt = s.CreatedAt
			}
		}
		if oldest != "" {
			delete(sm.sessions, oldest)
			log.Printf("auth: session cap reached, evicted oldest session")
		}
	}

	sm.sessions[token] = &Session{
		Token:      token,
		CreatedAt:  now,
		LastAccess: now,
		DeviceID:   deviceID,
	}

	return token
}

// Verify reports whether the token maps to a live session. A session is
// valid iff now-CreatedAt < TTL; the window is fixed at creation, not
// sliding. Valid lookups refresh LastAccess; expired sessions are evicted.
func (sm *SessionManager) Verify(token string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[token]
	if !ok {
		return false
	}

	now := sm.timeNow()
	if now.Sub(s.CreatedAt) >= sm.ttl {
		delete(sm.sessions, token)
		return false
	}

	s.LastAccess = now
	return true
}

// Revoke removes one session. Returns true if the token existed.
func (sm *SessionManager) Revoke(token string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	_, ok := sm.sessions[token]
	delete(sm.sessions, token)
	return ok
}

// RevokeAll clears every session. Called on password change or clear so
// rotation never leaves old tokens valid.
func (sm *SessionManager) RevokeAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.sessions = make(map[string]*Session)
	log.Printf("auth: all sessions revoked")
}

// Count returns the number of stored sessions, including any not yet
// evicted expired ones.
func (sm *SessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}
