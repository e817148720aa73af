package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/credstack/server/internal/model"
	"github.com/credstack/server/internal/repo"
)

// memStore is an in-memory Store used by the engine tests. Transactions are
// not simulated: every failure branch the engines take is expected to
// commit its mutations, so plain application is the right semantics here.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*model.User // keyed by email
	resets   []*model.PasswordReset
	sessions map[uuid.UUID]*model.RefreshSession

	clock time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*model.User),
		sessions: make(map[uuid.UUID]*model.RefreshSession),
		clock:    time.Now(),
	}
}

// tick advances the fake clock so created_at ordering is deterministic.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) Repos() repo.Repos {
	return repo.Repos{
		Users:    (*memUserRepo)(s),
		Resets:   (*memResetRepo)(s),
		Sessions: (*memRefreshRepo)(s),
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, r repo.Repos) error) error {
	return fn(ctx, s.Repos())
}

type memUserRepo memStore

func (r *memUserRepo) Create(_ context.Context, email, name, passwordHash string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[email]; ok {
		return model.User{}, repo.ErrDuplicateEmail
	}
	u := &model.User{
		ID:              uuid.New(),
		Email:           email,
		Name:            name,
		PasswordHash:    passwordHash,
		PasswordVersion: 1,
		CreatedAt:       (*memStore)(r).tick(),
	}
	r.users[email] = u
	return *u, nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return *u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[email]; ok {
		return *u, nil
	}
	return model.User{}, repo.ErrNotFound
}

func (r *memUserRepo) UpdatePassword(_ context.Context, email, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return repo.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordVersion++
	t := changedAt
	u.PasswordChangedAt = &t
	return nil
}

type memResetRepo memStore

func (r *memResetRepo) CountRecentByEmail(_ context.Context, email string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, rec := range r.resets {
		if rec.Email == email && !rec.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *memResetRepo) MarkAllUsedByEmail(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.resets {
		if rec.Email == email {
			rec.Used = true
		}
	}
	return nil
}

func (r *memResetRepo) Insert(_ context.Context, email, codeHash string, expiresAt time.Time, requestIP, userAgent *string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &model.PasswordReset{
		ID:        uuid.New(),
		Email:     email,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
		CreatedAt: (*memStore)(r).tick(),
		RequestIP: requestIP,
		UserAgent: userAgent,
	}
	r.resets = append(r.resets, rec)
	return rec.ID, nil
}

func (r *memResetRepo) GetActiveByEmail(_ context.Context, email string, now time.Time) (model.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []*model.PasswordReset
	for _, rec := range r.resets {
		if rec.Email == email && !rec.Used && rec.ExpiresAt.After(now) {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) == 0 {
		return model.PasswordReset{}, repo.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	return *candidates[0], nil
}

func (r *memResetRepo) IncrementAttempts(_ context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.resets {
		if rec.ID == id {
			rec.Attempts++
			return rec.Attempts, nil
		}
	}
	return 0, repo.ErrNotFound
}

func (r *memResetRepo) MarkUsed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.resets {
		if rec.ID == id {
			rec.Used = true
			return nil
		}
	}
	return repo.ErrNotFound
}

type memRefreshRepo memStore

func (r *memRefreshRepo) Create(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, userAgent, ipAddress *string) (model.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &model.RefreshSession{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: (*memStore)(r).tick(),
		ExpiresAt: expiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}
	r.sessions[s.ID] = s
	return *s, nil
}

func (r *memRefreshRepo) GetByTokenHash(_ context.Context, tokenHash string) (model.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			return *s, nil
		}
	}
	return model.RefreshSession{}, repo.ErrNotFound
}

func (r *memRefreshRepo) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil {
		return repo.ErrNotFound
	}
	t := (*memStore)(r).tick()
	s.RevokedAt = &t
	return nil
}

func (r *memRefreshRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			t := (*memStore)(r).tick()
			s.RevokedAt = &t
		}
	}
	return nil
}

func (r *memRefreshRepo) ListActiveForUser(_ context.Context, userID uuid.UUID, now time.Time) ([]model.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.RefreshSession
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil && s.ExpiresAt.After(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memRefreshRepo) GetActiveByIDForUser(_ context.Context, id, userID uuid.UUID) (model.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID || s.RevokedAt != nil {
		return model.RefreshSession{}, repo.ErrNotFound
	}
	return *s, nil
}

func (r *memRefreshRepo) DeleteExpiredOrRevoked(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.RevokedAt != nil || s.ExpiresAt.Before(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// captureMailer records dispatched mail for assertions.
type captureMailer struct {
	mu         sync.Mutex
	resetCodes []string
	resetTo    []string
	welcomeTo  []string
}

func (m *captureMailer) SendResetCode(name, email, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCodes = append(m.resetCodes, code)
	m.resetTo = append(m.resetTo, email)
}

func (m *captureMailer) SendWelcome(name, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomeTo = append(m.welcomeTo, email)
}

func (m *captureMailer) lastResetCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetCodes) == 0 {
		return ""
	}
	return m.resetCodes[len(m.resetCodes)-1]
}
