package repo

import (
	"context"
	"database/sql"

	"github.com/credstack/server/internal/db"
)

// Repos bundles the repositories over one handle, pooled or transactional.
type Repos struct {
	Users    UserRepo
	Resets   ResetRepo
	Sessions RefreshRepo
}

// NewRepos constructs the repository set over the given handle.
func NewRepos(dbtx db.DBTX) Repos {
	return Repos{
		Users:    NewUserRepo(dbtx),
		Resets:   NewResetRepo(dbtx),
		Sessions: NewRefreshRepo(dbtx),
	}
}

// Store is the unit-of-work entry point: engines get pool-scoped repos for
// single-statement work and transaction-scoped repos via WithTx for the
// sequences that must be atomic.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over the connection pool.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// Repos returns repositories bound to the pool.
func (s *Store) Repos() Repos {
	return NewRepos(s.db)
}

// WithTx runs fn with transaction-scoped repositories; commit on a nil
// return, rollback otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return db.WithTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, NewRepos(tx))
	})
}
