package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	stdtime "time"

	"github.com/google/uuid"
	"github.com/kuitang/noteful/internal/db"
	"github.com/kuitang/noteful/internal/errs"
	"github.com/kuitang/noteful/internal/obs"
)

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errs.New(errs.Unauthenticated, "Unauthorized")
	// ErrMissingCredentials is returned by Authenticate when either field is empty.
	ErrMissingCredentials = errs.New(errs.InvalidArgument, "Bad Request")
	// ErrUsernameTaken is returned by Register when the username exists.
	ErrUsernameTaken = errs.Field(errs.DuplicateUsername, "username", "The username already exists")
)

// Clock abstracts time for testability.
type Clock interface {
	Now() stdtime.Time
}

// realClock implements Clock using the real system time.
type realClock struct{}

func (realClock) Now() stdtime.Time { return stdtime.Now() }

// User represents a user account. The password digest never leaves this package.
type User struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	FullName  string       `json:"fullname"`
	CreatedAt stdtime.Time `json:"-"`
}

// UserService handles registration and credential checks.
type UserService struct {
	db        *db.DB
	hasher    PasswordHasher
	validator *registrationValidator
	clock     Clock
}

// NewUserService creates a user service.
func NewUserService(d *db.DB, hasher PasswordHasher) *UserService {
	return &UserService{
		db:        d,
		hasher:    hasher,
		validator: newRegistrationValidator(),
		clock:     realClock{},
	}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *UserService) SetClock(c Clock) {
	s.clock = c
}

// Register validates a decoded JSON body and creates the account.
// Validation failures carry errs.ValidationFailed and the offending field;
// a taken username returns ErrUsernameTaken and leaves the existing account untouched.
func (s *UserService) Register(ctx context.Context, body map[string]any) (*User, error) {
	reg, fullName, err := s.validator.check(body)
	if err != nil {
		return nil, err
	}

	digest, err := s.hasher.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	row := db.User{
		ID:           uuid.New().String(),
		Username:     reg.Username,
		PasswordHash: digest,
		FullName:     fullName,
		CreatedAt:    now.UnixNano(),
	}
	if err := s.db.CreateUser(ctx, row); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	obs.From(ctx).Info("user registered", "pkg", "auth", "user_id", row.ID)
	return userFromRow(row), nil
}

// Authenticate returns the user when the password matches.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	row, err := s.db.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !s.hasher.VerifyPassword(password, row.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return userFromRow(row), nil
}

func userFromRow(row db.User) *User {
	return &User{
		ID:        row.ID,
		Username:  row.Username,
		FullName:  row.FullName,
		CreatedAt: stdtime.Unix(0, row.CreatedAt).UTC(),
	}
}
