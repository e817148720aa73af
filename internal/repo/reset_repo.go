package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/credstack/server/internal/db"
	"github.com/credstack/server/internal/model"
)

// ResetRepo defines the interface for password-reset record operations
type ResetRepo interface {
	// CountRecentByEmail counts records created for the email since the
	// given time; feeds the rolling throttle window.
	CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error)
	// MarkAllUsedByEmail marks every unused record for the email as used.
	MarkAllUsedByEmail(ctx context.Context, email string) error
	Insert(ctx context.Context, email, codeHash string, expiresAt time.Time, requestIP, userAgent *string) (uuid.UUID, error)
	// GetActiveByEmail returns the most recent unused, unexpired record.
	GetActiveByEmail(ctx context.Context, email string, now time.Time) (model.PasswordReset, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
}

type resetRepo struct {
	db db.DBTX
}

// NewResetRepo creates a new ResetRepo instance
func NewResetRepo(dbtx db.DBTX) ResetRepo {
	return &resetRepo{db: dbtx}
}

// CountRecentByEmail returns the number of records created for the email since the given time.
func (r *resetRepo) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM password_resets
		WHERE email = $1 AND created_at >= $2
	`, email, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent resets: %w", err)
	}
	return count, nil
}

// MarkAllUsedByEmail invalidates every unused record for the email, including
// expired ones, so no stale code remains guessable alongside a fresh one.
func (r *resetRepo) MarkAllUsedByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE password_resets SET used = TRUE
		WHERE email = $1 AND used = FALSE
	`, email)
	if err != nil {
		return fmt.Errorf("mark resets used: %w", err)
	}
	return nil
}

// Insert creates a new reset record with used=false, attempts=0.
func (r *resetRepo) Insert(ctx context.Context, email, codeHash string, expiresAt time.Time, requestIP, userAgent *string) (uuid.UUID, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO password_resets (email, code_hash, expires_at, request_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, email, codeHash, expiresAt, requestIP, userAgent).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert reset record: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse reset ID: %w", err)
	}
	return id, nil
}

// GetActiveByEmail returns the latest unused, unexpired record for the email.
func (r *resetRepo) GetActiveByEmail(ctx context.Context, email string, now time.Time) (model.PasswordReset, error) {
	var rec model.PasswordReset
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, code_hash, used, attempts, expires_at, created_at, request_ip, user_agent
		FROM password_resets
		WHERE email = $1 AND used = FALSE AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`, email, now).Scan(
		&idStr,
		&rec.Email,
		&rec.CodeHash,
		&rec.Used,
		&rec.Attempts,
		&rec.ExpiresAt,
		&rec.CreatedAt,
		&rec.RequestIP,
		&rec.UserAgent,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PasswordReset{}, ErrNotFound
		}
		return model.PasswordReset{}, fmt.Errorf("query reset record: %w", err)
	}
	rec.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.PasswordReset{}, fmt.Errorf("parse reset ID: %w", err)
	}
	return rec, nil
}

// IncrementAttempts adds one to the attempts counter and returns the new value.
func (r *resetRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var newCount int
	err := r.db.QueryRowContext(ctx, `
		UPDATE password_resets
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, id).Scan(&newCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return newCount, nil
}

// MarkUsed burns a single record.
func (r *resetRepo) MarkUsed(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE password_resets SET used = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
