package auth

import "errors"

// Engine outcomes form a closed set of sentinel errors. Handlers classify
// them with errors.Is and decide the response shape; anything not listed
// here is an infrastructure failure and surfaces as an opaque 500.
var (
	// ErrInvalidCode covers every reset-code failure: missing record,
	// expired record, exhausted attempts, wrong code. One message for all
	// of them so callers cannot probe which branch was taken.
	ErrInvalidCode = errors.New("invalid or expired code")

	// ErrRateLimited is surfaced internally when the per-email throttle
	// window is full; the reset-request boundary translates it into the
	// same generic success as the happy path.
	ErrRateLimited = errors.New("reset request rate limited")

	// ErrPasswordMatchesOld is the one reset failure that is safe to
	// distinguish: the code was valid and stays valid for a retry.
	ErrPasswordMatchesOld = errors.New("new password must be different from the previous one")

	// ErrPasswordPolicy wraps the specific policy violation message.
	ErrPasswordPolicy = errors.New("password policy violation")

	// ErrInvalidCredentials is returned identically for an unknown email
	// and a wrong password.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrEmailTaken is returned when registration hits an existing email.
	ErrEmailTaken = errors.New("email is already in use")

	// ErrInvalidToken means the refresh assertion failed signature or
	// expiry checks before any storage lookup.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrSessionNotFound covers absent, expired and cross-owner sessions.
	ErrSessionNotFound = errors.New("session not found or expired")

	// ErrSessionRevoked indicates a rotation replay: the token was valid
	// once and has already been consumed.
	ErrSessionRevoked = errors.New("session has been revoked")
)
