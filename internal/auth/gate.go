// Package auth implements the challenge/password login protocol: a
// credential store holding one Argon2id password hash, a ledger of one-time
// challenges, a capped session store of opaque tokens, and the Gate that
// orchestrates them.
//
// The protocol accepts the raw password and a computed challenge response in
// the same request and validates both. The response is cryptographically
// redundant given the password is sent anyway; the observed wire behavior is
// preserved for compatibility and flagged for a future protocol revision.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

// TokenExpirySeconds is the advertised token lifetime returned to clients.
const TokenExpirySeconds = 3600

// Typed failures for the login protocol.
var (
	// ErrInvalidPassword is returned when password verification fails.
	ErrInvalidPassword = apperrors.New(apperrors.CodeAuthInvalidPassword, "Invalid password")

	// ErrInvalidResponse is returned when the HMAC challenge response does
	// not match the expected value.
	ErrInvalidResponse = apperrors.New(apperrors.CodeAuthInvalidResponse, "Invalid response")
)

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Gate orchestrates CredentialStore, ChallengeLedger, and SessionManager
// into the login protocol. It owns no state of its own.
type Gate struct {
	creds      *CredentialStore
	challenges *ChallengeLedger
	sessions   *SessionManager
}

// NewGate wires the three auth components into a gate.
func NewGate(creds *CredentialStore, challenges *ChallengeLedger, sessions *SessionManager) *Gate {
	return &Gate{
		creds:      creds,
		challenges: challenges,
		sessions:   sessions,
	}
}

// Sessions exposes the session manager for protected handlers and the
// realtime channel, which re-derive authorization per request/socket.
func (g *Gate) Sessions() *SessionManager {
	return g.sessions
}

// RequiresAuth reports whether a password is configured.
func (g *Gate) RequiresAuth() bool {
	return g.creds.IsSet()
}

// GenerateChallenge issues a fresh one-time nonce.
func (g *Gate) GenerateChallenge() string {
	return g.challenges.Generate()
}

// Authenticate runs the login protocol for one attempt:
//
//	NoChallenge -> ChallengeIssued -> (Authenticated | Rejected)
//
// The challenge must be known and unexpired, the password must verify, and
// the response must equal hex(HMAC-SHA256(key=password, msg=challenge)).
// On success the challenge is consumed (one-time use) and a session token
// is minted, evicting the oldest session if the store is at capacity.
func (g *Gate) Authenticate(challenge, response, password string) (*LoginResult, error) {
	if err := g.challenges.Validate(challenge); err != nil {
		return nil, err
	}

	if !g.creds.Verify(password) {
		return nil, ErrInvalidPassword
	}

	expected := ComputeResponse(challenge, password)
	if !hmac.Equal([]byte(expected), []byte(response)) {
		return nil, ErrInvalidResponse
	}

	// Redemption is atomic: if a concurrent attempt with the same nonce got
	// here first, this one loses and no second session is minted.
	if err := g.challenges.Consume(challenge); err != nil {
		return nil, err
	}

	token := g.sessions.Insert("")
	log.Printf("auth: new session created (%d active)", g.sessions.Count())

	return &LoginResult{
		Token:     token,
		ExpiresIn: TokenExpirySeconds,
	}, nil
}

// VerifyToken validates a session token, refreshing its last-access time.
func (g *Gate) VerifyToken(token string) bool {
	return g.sessions.Verify(token)
}

// SetPassword sets a new access password and revokes all live sessions so
// rotation never leaves old tokens valid.
func (g *Gate) SetPassword(password string) error {
	if err := g.creds.Set(password); err != nil {
		return err
	}
	g.sessions.RevokeAll()
	return nil
}

// ChangePassword verifies the current password before setting the new one.
func (g *Gate) ChangePassword(oldPassword, newPassword string) error {
	if !g.creds.Verify(oldPassword) {
		return ErrInvalidPassword
	}
	return g.SetPassword(newPassword)
}

// ClearPassword disables authentication and revokes all live sessions.
func (g *Gate) ClearPassword() error {
	if err := g.creds.Clear(); err != nil {
		return err
	}
	g.sessions.RevokeAll()
	return nil
}

// ComputeResponse derives the expected challenge response:
// hex(HMAC-SHA256(key=password, message=challenge)). Shared with the peer
// client, which computes the same value when logging in to a remote device.
func ComputeResponse(challenge, password string) string {
	mac := hmac.New(sha256.New, []byte(password))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}
