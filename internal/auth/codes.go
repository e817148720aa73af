package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const resetCodeBytes = 4

// GenerateResetCode returns a random one-time recovery code rendered as hex.
// The raw code goes to the mailer; only its bcrypt hash is stored.
func GenerateResetCode() (string, error) {
	b := make([]byte, resetCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateSessionToken returns a random Base64URL token (32 bytes) and its
// SHA256 hash as hex. The raw token travels inside the refresh assertion;
// the store only ever holds the hash.
func GenerateSessionToken() (token string, hashHex string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	return token, HashSessionToken(token), nil
}

// HashSessionToken returns SHA256 hex of the token
func HashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
