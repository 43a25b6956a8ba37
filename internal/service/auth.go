// Package service — account business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler / UserHandler → AuthService → UserRepository (DB)
//	                                       ↘ TokenService (JWT)
//	                                       ↘ PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Register: validate, hash the password, insert, issue a token
//   - Authenticate / Login: check a password, record the login, issue a token
//   - Read users for the listing and self-view endpoints
//
// Authorization is not done here. Routes that expose a user's own data are
// guarded by auth.RequireSameUser before these methods are ever called.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/auth"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/repository"
)

// Field limits for registration.
const (
	MaxUsernameLength = 50
	MaxNameLength     = 100
	MaxPhoneLength    = 32
)

// validUsername reports whether name is usable as the {username} path segment.
func validUsername(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '.', r == '-':
		default:
			return false
		}
	}
	return name != "." && name != ".."
}

// AuthService handles registration, login and user lookups.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → issue JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput is everything a new account needs.
type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// AuthResult bundles the user record and the issued token so the handler
// can respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a user and logs them straight in.
//
// A duplicate username fails with apperror.ErrConflict and leaves the
// existing account as it was.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)

	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password",
				fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("registration rejected: username taken", slog.String("username", in.Username))
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: registering %s: %w", in.Username, err)
	}

	s.logger.Info("user registered", slog.String("username", user.Username))

	return s.startSession(ctx, user)
}

func validateRegistration(in RegisterInput) error {
	required := []struct {
		field, value string
	}{
		{"username", in.Username},
		{"password", in.Password},
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
		{"phone", in.Phone},
	}
	for _, r := range required {
		if r.value == "" {
			return apperror.ValidationFailed(r.field, r.field+" is required")
		}
	}

	switch {
	case !validUsername(in.Username):
		return apperror.ValidationFailed("username",
			"username may only contain letters, digits, '_', '.' and '-'")
	case utf8.RuneCountInString(in.Username) > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be at most %d characters", MaxUsernameLength))
	case utf8.RuneCountInString(in.FirstName) > MaxNameLength:
		return apperror.ValidationFailed("first_name",
			fmt.Sprintf("first_name must be at most %d characters", MaxNameLength))
	case utf8.RuneCountInString(in.LastName) > MaxNameLength:
		return apperror.ValidationFailed("last_name",
			fmt.Sprintf("last_name must be at most %d characters", MaxNameLength))
	case utf8.RuneCountInString(in.Phone) > MaxPhoneLength:
		return apperror.ValidationFailed("phone",
			fmt.Sprintf("phone must be at most %d characters", MaxPhoneLength))
	case len(in.Password) > auth.MaxPasswordBytes:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}
	return nil
}

// Authenticate reports whether password matches the stored hash for
// username. It never returns an error for a wrong password or an unknown
// user; only a storage failure is an error.
//
// An unknown username still costs one bcrypt comparison, so response time
// doesn't reveal which usernames exist.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (bool, error) {
	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.Burn(password)
			return false, nil
		}
		return false, fmt.Errorf("service/auth: looking up %s: %w", username, err)
	}

	return s.passwords.Compare(password, user.PasswordHash), nil
}

// Login checks the credentials, records the login and issues a token.
// Both an unknown user and a wrong password yield the same
// apperror.ErrBadCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	ok, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("login failed", slog.String("username", username))
		return nil, apperror.BadCredentials()
	}

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: reloading %s: %w", username, err)
	}

	s.logger.Info("user logged in", slog.String("username", username))

	return s.startSession(ctx, user)
}

// startSession stamps last_login_at and issues a token for user.
func (s *AuthService) startSession(ctx context.Context, user *model.User) (*AuthResult, error) {
	at := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.Username, at); err != nil {
		return nil, fmt.Errorf("service/auth: recording login for %s: %w", user.Username, err)
	}
	user.LastLoginAt = &at

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.Username, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// ListUsers returns the public summary of every user, ordered by username.
func (s *AuthService) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/auth: listing users: %w", err)
	}

	summaries := make([]model.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	return summaries, nil
}

// GetUser returns the self-view of username.
func (s *AuthService) GetUser(ctx context.Context, username string) (*model.UserDetail, error) {
	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", username, err)
	}

	detail := user.Detail()
	return &detail, nil
}
