package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ErrPasswordTooShort is returned when a password below the minimum length
// is supplied to Set or Change.
var ErrPasswordTooShort = apperrors.New(apperrors.CodeAuthPasswordTooShort,
	fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength))

// Argon2id parameters. These follow the library defaults for interactive
// login: 64 MiB memory, 1 pass, 4 lanes, 32-byte key, 16-byte salt.
const (
	argonMemory  = 64 * 1024
	argonTime    = 1
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// CredentialStore holds the single hashed access password.
// An empty hash means authentication is disabled. The store knows nothing
// about sessions or discovery; revoking sessions after a password change is
// the Gate's responsibility.
type CredentialStore struct {
	mu   sync.Mutex
	hash string

	// onChange is invoked with the new hash (empty on clear) after every
	// successful Set/Clear so the config collaborator can persist it.
	// May be nil.
	onChange func(hash string) error
}

// NewCredentialStore creates a credential store seeded with an existing PHC
// hash string (empty for no password). onChange is called after every
// mutation with the new hash so it can be persisted; it may be nil.
func NewCredentialStore(hash string, onChange func(hash string) error) *CredentialStore {
	return &CredentialStore{
		hash:     hash,
		onChange: onChange,
	}
}

// Set hashes the password with Argon2id under a fresh random salt and
// replaces any prior credential. Returns ErrPasswordTooShort for passwords
// under the minimum length.
func (cs *CredentialStore) Set(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	encoded := encodeArgon2id(password, salt)

	cs.mu.Lock()
	cs.hash = encoded
	cs.mu.Unlock()

	log.Printf("auth: password set")
	return cs.notify(encoded)
}

// Verify checks the password against the stored hash. Returns false when no
// credential is set or the stored hash fails to parse.
func (cs *CredentialStore) Verify(password string) bool {
	cs.mu.Lock()
	stored := cs.hash
	cs.mu.Unlock()

	if stored == "" {
		return false
	}
	return verifyArgon2id(password, stored)
}

// Clear removes the credential; authentication becomes disabled.
func (cs *CredentialStore) Clear() error {
	cs.mu.Lock()
	cs.hash = ""
	cs.mu.Unlock()

	log.Printf("auth: password cleared")
	return cs.notify("")
}

// IsSet reports whether a credential is configured.
func (cs *CredentialStore) IsSet() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.hash != ""
}

func (cs *CredentialStore) notify(hash string) error {
	if cs.onChange == nil {
		return nil
	}
	if err := cs.onChange(hash); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// encodeArgon2id produces a PHC-format hash string:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash> with unpadded base64.
func encodeArgon2id(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		b64.EncodeToString(salt), b64.EncodeToString(key))
}

// verifyArgon2id parses a PHC-format Argon2id hash and compares the derived
// key in constant time. Any parse failure counts as a verification failure.
func verifyArgon2id(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	// Expected: ["", "argon2id", "v=19", "m=...,t=...,p=...", salt, hash]
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := b64.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
