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

// RefreshRepo defines the interface for refresh session repository operations
type RefreshRepo interface {
	Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, userAgent, ipAddress *string) (model.RefreshSession, error)
	// GetByTokenHash returns the session regardless of revocation or expiry,
	// so callers can distinguish "revoked" from "absent".
	GetByTokenHash(ctx context.Context, tokenHash string) (model.RefreshSession, error)
	// Revoke marks a session revoked. Returns ErrNotFound when the session
	// does not exist or is already revoked; the affected-rows check is what
	// serializes a double-rotation race down to one winner.
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	ListActiveForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.RefreshSession, error)
	// GetActiveByIDForUser returns a non-revoked session only when owned by
	// the given user.
	GetActiveByIDForUser(ctx context.Context, id, userID uuid.UUID) (model.RefreshSession, error)
	// DeleteExpiredOrRevoked purges rows no longer usable; returns the count.
	DeleteExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error)
}

type refreshRepo struct {
	db db.DBTX
}

// NewRefreshRepo creates a new RefreshRepo instance
func NewRefreshRepo(dbtx db.DBTX) RefreshRepo {
	return &refreshRepo{db: dbtx}
}

const sessionColumns = `id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address`

func scanSession(scan func(dest ...any) error) (model.RefreshSession, error) {
	var s model.RefreshSession
	var idStr, userIDStr string
	err := scan(
		&idStr,
		&userIDStr,
		&s.TokenHash,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.RevokedAt,
		&s.UserAgent,
		&s.IPAddress,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshSession{}, ErrNotFound
		}
		return model.RefreshSession{}, fmt.Errorf("scan refresh session: %w", err)
	}
	if s.ID, err = uuid.Parse(idStr); err != nil {
		return model.RefreshSession{}, fmt.Errorf("parse session ID: %w", err)
	}
	if s.UserID, err = uuid.Parse(userIDStr); err != nil {
		return model.RefreshSession{}, fmt.Errorf("parse user ID: %w", err)
	}
	return s, nil
}

// Create inserts a new refresh session
func (r *refreshRepo) Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, userAgent, ipAddress *string) (model.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO refresh_sessions (user_id, token_hash, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+sessionColumns+`
	`, userID, tokenHash, expiresAt, userAgent, ipAddress)
	s, err := scanSession(row.Scan)
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("insert refresh session: %w", err)
	}
	return s, nil
}

// GetByTokenHash returns the session for the hash in any state.
func (r *refreshRepo) GetByTokenHash(ctx context.Context, tokenHash string) (model.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM refresh_sessions WHERE token_hash = $1
	`, tokenHash)
	return scanSession(row.Scan)
}

// Revoke sets revoked_at for a not-yet-revoked session.
func (r *refreshRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAllForUser revokes every active session owned by the user.
func (r *refreshRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	if err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}
	return nil
}

// ListActiveForUser returns non-revoked, unexpired sessions, newest first.
func (r *refreshRepo) ListActiveForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.RefreshSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM refresh_sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.RefreshSession
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// GetActiveByIDForUser scopes the lookup to the owner so a cross-user id
// probe is indistinguishable from a missing session.
func (r *refreshRepo) GetActiveByIDForUser(ctx context.Context, id, userID uuid.UUID) (model.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM refresh_sessions
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`, id, userID)
	return scanSession(row.Scan)
}

// DeleteExpiredOrRevoked removes rows that can no longer authenticate.
func (r *refreshRepo) DeleteExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_sessions WHERE expires_at < $1 OR revoked_at IS NOT NULL
	`, now)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
