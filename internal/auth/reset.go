package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/credstack/server/internal/mail"
	"github.com/credstack/server/internal/repo"
)

const throttleWindow = time.Hour

// Store is the unit-of-work dependency of the engines: pool-scoped repos
// for single statements, transaction-scoped repos for atomic sequences.
type Store interface {
	Repos() repo.Repos
	WithTx(ctx context.Context, fn func(ctx context.Context, r repo.Repos) error) error
}

// ResetEngine orchestrates one-time code issuance, throttling, verification
// and atomic password replacement.
type ResetEngine struct {
	store          Store
	codeHasher     Hasher
	passwordHasher Hasher
	mailer         mail.Mailer
	logger         *zap.Logger

	codeTTL     time.Duration
	maxPerHour  int
	maxAttempts int

	now func() time.Time
}

// NewResetEngine creates the reset engine. The code and password hashers
// may share an implementation or carry different costs.
func NewResetEngine(
	store Store,
	codeHasher, passwordHasher Hasher,
	mailer mail.Mailer,
	logger *zap.Logger,
	codeTTL time.Duration,
	maxPerHour, maxAttempts int,
) *ResetEngine {
	return &ResetEngine{
		store:          store,
		codeHasher:     codeHasher,
		passwordHasher: passwordHasher,
		mailer:         mailer,
		logger:         logger,
		codeTTL:        codeTTL,
		maxPerHour:     maxPerHour,
		maxAttempts:    maxAttempts,
		now:            time.Now,
	}
}

// NormalizeEmail lowercases and trims an email address. Applied at the API
// boundary and again inside the engines.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestReset issues a fresh one-time code for the email. A full throttle
// window returns ErrRateLimited, which the API boundary must translate into
// the same generic success as the happy path so account existence and
// throttling state stay unobservable.
func (e *ResetEngine) RequestReset(ctx context.Context, email, requestIP, userAgent string) error {
	email = NormalizeEmail(email)
	now := e.now()

	count, err := e.store.Repos().Resets.CountRecentByEmail(ctx, email, now.Add(-throttleWindow))
	if err != nil {
		return fmt.Errorf("throttle check: %w", err)
	}
	if count >= e.maxPerHour {
		return ErrRateLimited
	}

	code, err := GenerateResetCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	codeHash, err := e.codeHasher.Hash(code)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	expiresAt := now.Add(e.codeTTL)

	var ip, ua *string
	if requestIP != "" {
		ip = &requestIP
	}
	if userAgent != "" {
		ua = &userAgent
	}

	// Invalidate-old and insert-new must be one transaction so two
	// concurrent requests cannot both leave an active record behind.
	err = e.store.WithTx(ctx, func(ctx context.Context, r repo.Repos) error {
		if err := r.Resets.MarkAllUsedByEmail(ctx, email); err != nil {
			return err
		}
		_, err := r.Resets.Insert(ctx, email, codeHash, expiresAt, ip, ua)
		return err
	})
	if err != nil {
		return fmt.Errorf("create reset record: %w", err)
	}

	// Best-effort display name; the raw code is dispatched regardless so a
	// reset request cannot be used to probe which emails have accounts.
	name := "User"
	user, err := e.store.Repos().Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		name = user.Name
	case !errors.Is(err, repo.ErrNotFound):
		e.logger.Warn("reset greeting lookup failed", zap.Error(err))
	}

	e.mailer.SendResetCode(name, email, code)
	return nil
}

// VerifyCode is the side-effect-light probe used before a reset call. A
// match does not consume the record; every failing branch answers with the
// same ErrInvalidCode after charging the attempts counter.
func (e *ResetEngine) VerifyCode(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)
	r := e.store.Repos()

	rec, err := r.Resets.GetActiveByEmail(ctx, email, e.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidCode
		}
		return fmt.Errorf("lookup reset record: %w", err)
	}

	if rec.Attempts >= e.maxAttempts {
		if err := r.Resets.MarkUsed(ctx, rec.ID); err != nil {
			return fmt.Errorf("burn exhausted record: %w", err)
		}
		return ErrInvalidCode
	}

	if !e.codeHasher.Compare(code, rec.CodeHash) {
		if _, err := r.Resets.IncrementAttempts(ctx, rec.ID); err != nil {
			return fmt.Errorf("record failed attempt: %w", err)
		}
		return ErrInvalidCode
	}

	return nil
}

// ResetPassword consumes a valid code and replaces the password in one
// transaction. Attempt accounting commits even on failure branches, so a
// wrong guess is charged durably; only the same-password branch leaves the
// record untouched and retryable.
func (e *ResetEngine) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}

	email = NormalizeEmail(email)
	now := e.now()

	// Failure outcomes are carried out of the transaction instead of being
	// returned from it: returning an error would roll back the attempt
	// accounting the failure is supposed to persist.
	var outcome error

	err := e.store.WithTx(ctx, func(ctx context.Context, r repo.Repos) error {
		rec, err := r.Resets.GetActiveByEmail(ctx, email, now)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				outcome = ErrInvalidCode
				return nil
			}
			return fmt.Errorf("lookup reset record: %w", err)
		}

		if rec.Attempts >= e.maxAttempts {
			if err := r.Resets.MarkUsed(ctx, rec.ID); err != nil {
				return fmt.Errorf("burn exhausted record: %w", err)
			}
			outcome = ErrInvalidCode
			return nil
		}

		if !e.codeHasher.Compare(code, rec.CodeHash) {
			if _, err := r.Resets.IncrementAttempts(ctx, rec.ID); err != nil {
				return fmt.Errorf("record failed attempt: %w", err)
			}
			outcome = ErrInvalidCode
			return nil
		}

		user, err := r.Users.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				// Burn the record and report success: account
				// non-existence stays hidden even this late.
				return r.Resets.MarkUsed(ctx, rec.ID)
			}
			return fmt.Errorf("lookup user: %w", err)
		}

		if e.passwordHasher.Compare(newPassword, user.PasswordHash) {
			// The code stays live for a retry with a different password.
			outcome = ErrPasswordMatchesOld
			return nil
		}

		newHash, err := e.passwordHasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("hash new password: %w", err)
		}
		if err := r.Users.UpdatePassword(ctx, email, newHash, now); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		// Close every parallel in-flight reset, not just the consumed one.
		return r.Resets.MarkAllUsedByEmail(ctx, email)
	})
	if err != nil {
		return err
	}
	if outcome != nil {
		return outcome
	}

	e.logger.Info("password reset completed", zap.String("email", email))
	return nil
}
