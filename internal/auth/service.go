package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CredentialStore is what the session manager needs from user storage.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, nu NewUser) (*User, error)
	ValidatePassword(ctx context.Context, email, password string) (*User, error)
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      PublicUser
}

// RegisterInput has no role: self-registered accounts are always RoleUser.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type Service struct {
	store    CredentialStore
	codec    *TokenCodec
	throttle LoginThrottle
	logger   *slog.Logger
}

func NewService(store CredentialStore, codec *TokenCodec, throttle LoginThrottle, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		codec:    codec,
		throttle: throttle,
		logger:   logger,
	}
}

// Login spends one attempt from the client's budget and one from the
// account+client budget before checking the password. A correct password
// clears the account+client budget, so failures from other addresses never
// lock the owner out.
func (s *Service) Login(ctx context.Context, email, password, client string) (*Session, error) {
	if err := s.attempt(ctx, s.throttle.Client, client); err != nil {
		return nil, err
	}
	key := accountKey(email, client)
	if err := s.attempt(ctx, s.throttle.Account, key); err != nil {
		return nil, err
	}

	user, err := s.store.ValidatePassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.Debug("login rejected", "email", email, "client", client)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("validate credentials: %w", err)
	}

	if s.throttle.Account != nil {
		if err := s.throttle.Account.Reset(ctx, key); err != nil {
			s.logger.Warn("reset login throttle", "err", err)
		}
	}
	return s.issue(user)
}

// attempt fails open: only a spent budget stops the login.
func (s *Service) attempt(ctx context.Context, t Throttle, key string) error {
	if t == nil {
		return nil
	}
	err := t.Attempt(ctx, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTooManyAttempts):
		s.logger.Debug("login throttled", "key", key)
		return err
	default:
		s.logger.Warn("login throttle skipped", "err", err)
		return nil
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if _, err := s.store.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	user, err := s.store.Create(ctx, NewUser{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      RoleUser,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return s.issue(user)
}

func (s *Service) issue(user *User) (*Session, error) {
	token, exp, err := s.codec.Sign(Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: exp, User: user.Public()}, nil
}
