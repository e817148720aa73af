package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account holder
type User struct {
	ID                uuid.UUID
	Email             string
	Name              string
	PasswordHash      string
	PasswordVersion   int
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
}

// PasswordReset represents one recovery attempt for an email.
// Only the bcrypt hash of the one-time code is ever stored.
type PasswordReset struct {
	ID        uuid.UUID
	Email     string
	CodeHash  string
	Used      bool
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
	RequestIP *string
	UserAgent *string
}

// RefreshSession represents one logged-in device/client. The token_hash
// column holds SHA-256 of the opaque session value, never the value itself.
type RefreshSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}

// Revoked reports whether the session has been revoked.
func (s RefreshSession) Revoked() bool {
	return s.RevokedAt != nil
}
