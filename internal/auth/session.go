package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/credstack/server/internal/model"
	"github.com/credstack/server/internal/repo"
)

// TokenPair is the signed assertion pair handed to clients.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// SessionManager orchestrates refresh-session creation, single-use
// rotation, revocation and enumeration.
type SessionManager struct {
	store  Store
	signer *TokenSigner
	logger *zap.Logger

	refreshTTL time.Duration
	now        func() time.Time
}

// NewSessionManager creates the session manager.
func NewSessionManager(store Store, signer *TokenSigner, logger *zap.Logger, refreshTTL time.Duration) *SessionManager {
	return &SessionManager{
		store:      store,
		signer:     signer,
		logger:     logger,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// CreateSession persists a new refresh session and returns the signed pair.
func (m *SessionManager) CreateSession(ctx context.Context, user model.User, userAgent, ipAddress string) (TokenPair, error) {
	r := m.store.Repos()
	pair, _, err := m.createSession(ctx, r, user, userAgent, ipAddress)
	return pair, err
}

func (m *SessionManager) createSession(ctx context.Context, r repo.Repos, user model.User, userAgent, ipAddress string) (TokenPair, model.RefreshSession, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return TokenPair{}, model.RefreshSession{}, fmt.Errorf("generate session token: %w", err)
	}

	var ua, ip *string
	if userAgent != "" {
		ua = &userAgent
	}
	if ipAddress != "" {
		ip = &ipAddress
	}

	session, err := r.Sessions.Create(ctx, user.ID, tokenHash, m.now().Add(m.refreshTTL), ua, ip)
	if err != nil {
		return TokenPair{}, model.RefreshSession{}, fmt.Errorf("persist session: %w", err)
	}

	accessToken, err := m.signer.SignAccessToken(user.ID, user.Email)
	if err != nil {
		return TokenPair{}, model.RefreshSession{}, err
	}
	refreshToken, err := m.signer.SignRefreshToken(user.ID, user.Email, token)
	if err != nil {
		return TokenPair{}, model.RefreshSession{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(m.signer.AccessTTL().Seconds()),
	}, session, nil
}

// Refresh rotates a session: the presented token is consumed exactly once
// and a successor session is issued in the same transaction. Reuse after
// rotation fails with ErrSessionRevoked, which doubles as a theft signal.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken, userAgent, ipAddress string) (model.User, TokenPair, error) {
	claims, err := m.signer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return model.User{}, TokenPair{}, ErrInvalidToken
	}

	tokenHash := HashSessionToken(claims.SessionToken)
	now := m.now()

	var user model.User
	var pair TokenPair
	err = m.store.WithTx(ctx, func(ctx context.Context, r repo.Repos) error {
		session, err := r.Sessions.GetByTokenHash(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("lookup session: %w", err)
		}
		if session.Revoked() {
			return ErrSessionRevoked
		}
		if !session.ExpiresAt.After(now) {
			return ErrSessionNotFound
		}

		user, err = r.Users.GetByID(ctx, session.UserID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("lookup user: %w", err)
		}

		// The guarded UPDATE decides a double-refresh race: the loser sees
		// zero affected rows and fails as revoked.
		if err := r.Sessions.Revoke(ctx, session.ID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSessionRevoked
			}
			return fmt.Errorf("revoke rotated session: %w", err)
		}

		pair, _, err = m.createSession(ctx, r, user, userAgent, ipAddress)
		return err
	})
	if err != nil {
		return model.User{}, TokenPair{}, err
	}

	return user, pair, nil
}

// Logout revokes the session named by the refresh token. An unknown or
// already-revoked session returns ErrSessionNotFound so the endpoint can
// stay idempotent while the manager still signals what happened.
func (m *SessionManager) Logout(ctx context.Context, refreshToken string) error {
	claims, err := m.signer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidToken
	}

	r := m.store.Repos()
	session, err := r.Sessions.GetByTokenHash(ctx, HashSessionToken(claims.SessionToken))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("lookup session: %w", err)
	}
	if err := r.Sessions.Revoke(ctx, session.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// LogoutAll revokes every active session owned by the user.
func (m *SessionManager) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := m.store.Repos().Sessions.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}
	m.logger.Info("all sessions revoked", zap.String("user_id", userID.String()))
	return nil
}

// ListSessions returns the user's active sessions for display. The raw
// token value is not stored, so it cannot leak here.
func (m *SessionManager) ListSessions(ctx context.Context, userID uuid.UUID) ([]model.RefreshSession, error) {
	sessions, err := m.store.Repos().Sessions.ListActiveForUser(ctx, userID, m.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// RevokeSession revokes one session by id, scoped to its owner. A session
// belonging to someone else is reported as not found, never as forbidden.
func (m *SessionManager) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	r := m.store.Repos()
	session, err := r.Sessions.GetActiveByIDForUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("lookup session: %w", err)
	}
	if err := r.Sessions.Revoke(ctx, session.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
