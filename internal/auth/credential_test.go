package auth

import (
	"strings"
	"testing"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

func TestSetAndVerify(t *testing.T) {
	cs := NewCredentialStore("", nil)

	if cs.IsSet() {
		t.Fatal("fresh store should have no credential")
	}
	if cs.Verify("anything") {
		t.Fatal("verify must fail with no credential")
	}

	if err := cs.Set("hunter2hunter2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !cs.IsSet() {
		t.Fatal("credential should be set")
	}
	if !cs.Verify("hunter2hunter2") {
		t.Fatal("correct password must verify")
	}
	if cs.Verify("hunter2hunter3") {
		t.Fatal("wrong password must not verify")
	}
}

func TestSetRejectsShortPassword(t *testing.T) {
	cs := NewCredentialStore("", nil)

	err := cs.Set("short")
	if !apperrors.IsCode(err, apperrors.CodeAuthPasswordTooShort) {
		t.Fatalf("err = %v, want password-too-short", err)
	}
	if cs.IsSet() {
		t.Fatal("rejected password must not be stored")
	}
}

func TestHashesAreSalted(t *testing.T) {
	var hashes []string
	onChange := func(hash string) error {
		hashes = append(hashes, hash)
		return nil
	}
	cs := NewCredentialStore("", onChange)

	if err := cs.Set("hunter2hunter2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cs.Set("hunter2hunter2"); err != nil {
		t.Fatalf("set again: %v", err)
	}

	if len(hashes) != 2 {
		t.Fatalf("onChange called %d times, want 2", len(hashes))
	}
	if hashes[0] == hashes[1] {
		t.Fatal("same password must hash differently under fresh salts")
	}
	for _, h := range hashes {
		if !strings.HasPrefix(h, "$argon2id$v=") {
			t.Fatalf("hash not in PHC format: %q", h)
		}
	}
}

func TestHashSurvivesReload(t *testing.T) {
	var persisted string
	cs := NewCredentialStore("", func(hash string) error {
		persisted = hash
		return nil
	})
	if err := cs.Set("hunter2hunter2"); err != nil {
		t.Fatalf("set: %v", err)
	}

	reloaded := NewCredentialStore(persisted, nil)
	if !reloaded.Verify("hunter2hunter2") {
		t.Fatal("persisted hash must verify after reload")
	}
	if reloaded.Verify("wrong password") {
		t.Fatal("wrong password must not verify after reload")
	}
}

func TestClear(t *testing.T) {
	var persisted string
	cs := NewCredentialStore("", func(hash string) error {
		persisted = hash
		return nil
	})
	if err := cs.Set("hunter2hunter2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cs.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if cs.IsSet() || cs.Verify("hunter2hunter2") {
		t.Fatal("cleared store must not verify anything")
	}
	if persisted != "" {
		t.Fatalf("clear should persist an empty hash, got %q", persisted)
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	cs := NewCredentialStore("not-a-phc-hash", nil)
	if cs.Verify("anything") {
		t.Fatal("malformed stored hash must fail verification")
	}
}
