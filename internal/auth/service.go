package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/credstack/server/internal/mail"
	"github.com/credstack/server/internal/model"
	"github.com/credstack/server/internal/repo"
)

// AccountService handles registration and login on top of the session
// manager.
type AccountService struct {
	store          Store
	passwordHasher Hasher
	sessions       *SessionManager
	mailer         mail.Mailer
	logger         *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(store Store, passwordHasher Hasher, sessions *SessionManager, mailer mail.Mailer, logger *zap.Logger) *AccountService {
	return &AccountService{
		store:          store,
		passwordHasher: passwordHasher,
		sessions:       sessions,
		mailer:         mailer,
		logger:         logger,
	}
}

// Register creates an account and opens its first session. The welcome
// email is fire-and-forget.
func (s *AccountService) Register(ctx context.Context, name, email, password, userAgent, ipAddress string) (model.User, TokenPair, error) {
	if err := ValidatePasswordPolicy(password); err != nil {
		return model.User{}, TokenPair{}, err
	}
	email = NormalizeEmail(email)

	hash, err := s.passwordHasher.Hash(password)
	if err != nil {
		return model.User{}, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.Repos().Users.Create(ctx, email, name, hash)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return model.User{}, TokenPair{}, ErrEmailTaken
		}
		return model.User{}, TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	s.mailer.SendWelcome(user.Name, user.Email)

	pair, err := s.sessions.CreateSession(ctx, user, userAgent, ipAddress)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, pair, nil
}

// Login verifies credentials and opens a session. Unknown email and wrong
// password fail with the same ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, email, password, userAgent, ipAddress string) (model.User, TokenPair, error) {
	email = NormalizeEmail(email)

	user, err := s.store.Repos().Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return model.User{}, TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	if !s.passwordHasher.Compare(password, user.PasswordHash) {
		return model.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.sessions.CreateSession(ctx, user, userAgent, ipAddress)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// CheckEmail reports whether an email is already registered.
func (s *AccountService) CheckEmail(ctx context.Context, email string) (bool, error) {
	email = NormalizeEmail(email)
	_, err := s.store.Repos().Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return true, nil
}
