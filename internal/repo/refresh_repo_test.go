package repo

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionRows(id, userID uuid.UUID, tokenHash string, createdAt, expiresAt time.Time, revokedAt *time.Time) *sqlmock.Rows {
	var revoked any
	if revokedAt != nil {
		revoked = *revokedAt
	}
	return sqlmock.NewRows([]string{
		"id", "user_id", "token_hash", "created_at", "expires_at", "revoked_at", "user_agent", "ip_address",
	}).AddRow(id.String(), userID.String(), tokenHash, createdAt, expiresAt, revoked, nil, nil)
}

func TestRefreshRepoGetByTokenHash(t *testing.T) {
	mdb, mock := newMockDB(t)
	r := NewRefreshRepo(mdb)

	id, userID := uuid.New(), uuid.New()
	now := time.Now()
	revokedAt := now.Add(-time.Minute)
	mock.ExpectQuery(`SELECT .+ FROM refresh_sessions WHERE token_hash = \$1`).
		WithArgs("tokenhash").
		WillReturnRows(sessionRows(id, userID, "tokenhash", now.Add(-time.Hour), now.Add(time.Hour), &revokedAt))

	s, err := r.GetByTokenHash(context.Background(), "tokenhash")
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, userID, s.UserID)
	assert.True(t, s.Revoked())
}

func TestRefreshRepoGetByTokenHashNotFound(t *testing.T) {
	mdb, mock := newMockDB(t)
	r := NewRefreshRepo(mdb)

	mock.ExpectQuery(`SELECT .+ FROM refresh_sessions WHERE token_hash`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := r.GetByTokenHash(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshRepoRevoke(t *testing.T) {
	mdb, mock := newMockDB(t)
	r := NewRefreshRepo(mdb)

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE refresh_sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`,
	)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, r.Revoke(context.Background(), id))
}

func TestRefreshRepoRevokeAlreadyRevoked(t *testing.T) {
	mdb, mock := newMockDB(t)
	r := NewRefreshRepo(mdb)

	// Zero affected rows is how the rotation race loser shows up.
	id := uuid.New()
	mock.ExpectExec(`UPDATE refresh_sessions SET revoked_at`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, r.Revoke(context.Background(), id), ErrNotFound)
}

func TestRefreshRepoListActiveForUser(t *testing.T) {
	mdb, mock := newMockDB(t)
	r := NewRefreshRepo(mdb)

	userID := uuid.New()
	now := time.Now()
	first, second := uuid.New(), uuid.New()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "token_hash", "created_at", "expires_at", "revoked_at", "user_agent", "ip_address",
	}).
		AddRow(second.String(), userID.String(), "hash2", now, now.Add(time.Hour), nil, nil, nil).
		AddRow(first.String(), userID.String(), "hash1", now.Add(-time.Minute), now.Add(time.Hour), nil, nil, nil)

	mock.ExpectQuery(`SELECT .+ FROM refresh_sessions WHERE user_id = \$1 AND revoked_at IS NULL AND expires_at > \$2`).
		WithArgs(userID, now).
		WillReturnRows(rows)

	sessions, err := r.ListActiveForUser(context.Background(), userID, now)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second, sessions[0].ID)
	assert.Equal(t, first, sessions[1].ID)
}

func TestRefreshRepoGetActiveByIDForUserScopesOwner(t *testing.T) {
	mdb, mock := newMockDB(t)
	r := NewRefreshRepo(mdb)

	id, userID := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT .+ FROM refresh_sessions WHERE id = \$1 AND user_id = \$2 AND revoked_at IS NULL`).
		WithArgs(id, userID).
		WillReturnError(sql.ErrNoRows)

	_, err := r.GetActiveByIDForUser(context.Background(), id, userID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshRepoDeleteExpiredOrRevoked(t *testing.T) {
	mdb, mock := newMockDB(t)
	r := NewRefreshRepo(mdb)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta(
		`DELETE FROM refresh_sessions WHERE expires_at < $1 OR revoked_at IS NOT NULL`,
	)).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := r.DeleteExpiredOrRevoked(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
