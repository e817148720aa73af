package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestAccountService(t *testing.T) (*AccountService, *memStore, *captureMailer) {
	t.Helper()
	st := newMemStore()
	mailer := &captureMailer{}
	signer := NewTokenSigner("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	sessions := NewSessionManager(st, signer, zap.NewNop(), 7*24*time.Hour)
	sessions.now = func() time.Time { return st.clock }
	svc := NewAccountService(st, NewBcryptHasher(bcrypt.MinCost), sessions, mailer, zap.NewNop())
	return svc, st, mailer
}

func TestRegister(t *testing.T) {
	svc, st, mailer := newTestAccountService(t)
	ctx := context.Background()

	user, pair, err := svc.Register(ctx, "Alice", "Alice@Example.COM", testOldPassword, "test-agent", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, []string{"alice@example.com"}, mailer.welcomeTo)
	assert.Len(t, st.sessions, 1)

	// The stored hash is not the plaintext.
	stored, err := st.Repos().Users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, testOldPassword, stored.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAccountService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "Alice", "alice@example.com", testOldPassword, "", "")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "Other Alice", "ALICE@example.com", testOldPassword, "", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterWeakPassword(t *testing.T) {
	svc, st, _ := newTestAccountService(t)

	_, _, err := svc.Register(context.Background(), "Alice", "alice@example.com", "alllowercase1!", "", "")
	assert.ErrorIs(t, err, ErrPasswordPolicy)
	assert.Empty(t, st.users)
}

func TestLogin(t *testing.T) {
	svc, st, _ := newTestAccountService(t)
	ctx := context.Background()
	seedUser(t, st, "alice@example.com", testOldPassword)

	user, pair, err := svc.Login(ctx, " alice@example.com", testOldPassword, "", "")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestLoginUniformFailure(t *testing.T) {
	svc, st, _ := newTestAccountService(t)
	ctx := context.Background()
	seedUser(t, st, "alice@example.com", testOldPassword)

	// Wrong password and unknown account fail identically.
	_, _, err := svc.Login(ctx, "alice@example.com", "WrongPass1!", "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", testOldPassword, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCheckEmail(t *testing.T) {
	svc, st, _ := newTestAccountService(t)
	ctx := context.Background()
	seedUser(t, st, "alice@example.com", testOldPassword)

	taken, err := svc.CheckEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = svc.CheckEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, taken)
}
