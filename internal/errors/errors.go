// Package errors provides standardized error codes for the LAN manager.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (auth, access, command, discovery)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by peer clients for programmatic
// error handling. Human-readable messages are provided alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
// These are stable identifiers that clients can rely on for error handling.
const (
	// Auth domain - challenge/response login and session lifecycle
	CodeAuthInvalidChallenge = "auth.invalid_challenge" // Nonce is unknown to the ledger
	CodeAuthExpiredChallenge = "auth.expired_challenge" // Nonce known but past its expiry
	CodeAuthInvalidPassword  = "auth.invalid_password"  // Password verification failed
	CodeAuthInvalidResponse  = "auth.invalid_response"  // HMAC challenge response mismatch
	CodeAuthPasswordTooShort = "auth.password_too_short" // Password below the minimum length
	CodeAuthRequired         = "auth.required"           // Operation needs a token, none supplied
	CodeAuthInvalidToken     = "auth.invalid_token"      // Token unknown to the session store
	CodeAuthExpired          = "auth.expired"            // Session past its fixed expiry window

	// Access domain - address-level gating before any protocol logic
	CodeAccessBlacklisted = "access.blacklisted" // Source address matched the blacklist

	// Command domain - whitelist authorization and execution
	CodeCommandNotWhitelisted = "command.not_whitelisted" // Command absent from the whitelist
	CodeCommandCustomDisabled = "command.custom_disabled" // Custom master switch is off
	CodeCommandUnknown        = "command.unknown"         // Name is neither builtin nor custom
	CodeCommandExecFailed     = "command.exec_failed"     // OS action backend reported failure

	// Discovery domain - mDNS browse/advertise failures
	CodeDiscoveryDaemonUnavailable = "discovery.daemon_unavailable" // Resolver could not be created
	CodeDiscoveryDegradedIdentity  = "discovery.degraded_identity"  // No uuid TXT record, service name used

	// Storage domain - persistence errors
	CodeStorageOpenFailed  = "storage.open_failed"  // Database or file open failed
	CodeStorageSaveFailed  = "storage.save_failed"  // Failed to persist data
	CodeStorageQueryFailed = "storage.query_failed" // Query failed

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal server error
)

// Session failure messages shared between the HTTP handlers and the peer
// client. The envelope carries no error code, so the client maps these exact
// strings back to typed errors; keeping them in one place stops the two
// sides from drifting.
const (
	MsgAuthRequired = "Authentication required"
	MsgInvalidToken = "Invalid or expired token"
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "auth.invalid_challenge")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// If the error is a CodedError, returns its code.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// IsAuthExpired reports whether an error indicates an expired or invalid
// session token. Callers use this to drop a cached token and re-prompt for
// credentials instead of string-matching on error text.
func IsAuthExpired(err error) bool {
	code := GetCode(err)
	return code == CodeAuthExpired || code == CodeAuthInvalidToken
}
