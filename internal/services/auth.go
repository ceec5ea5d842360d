package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/types"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// sessionTTL is how long a fresh or renewed session lives.
	sessionTTL = 30 * 24 * time.Hour

	// sessionRenewWindow is the remaining lifetime under which a
	// resolve rewrites the expiry to now+sessionTTL.
	sessionRenewWindow = 24 * time.Hour

	minUsernameLen = 3
	defaultRole    = "user"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user types.User) (types.User, error)
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
}

// SessionRepository defines persistence operations for login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	GetByToken(ctx context.Context, token string) (types.Session, error)
	SetExpiry(ctx context.Context, id int64, expiresAt time.Time) error
	Delete(ctx context.Context, id int64) error
	DeleteByToken(ctx context.Context, token string) error
}

// AuthService owns accounts and sessions: registration, credential
// verification, and resolving opaque session tokens to identities.
type AuthService struct {
	store Store
	now   func() time.Time
}

func NewAuthService(store Store) *AuthService {
	return &AuthService{store: store, now: time.Now}
}

// Register creates an account with a bcrypt password hash. A colliding
// username surfaces as a DuplicateError naming the field.
func (s *AuthService) Register(ctx context.Context, username, password string) (types.User, error) {
	if len(username) < minUsernameLen {
		return types.User{}, fmt.Errorf("%w: username must be at least %d characters", ErrBadRequest, minUsernameLen)
	}
	if password == "" {
		return types.User{}, fmt.Errorf("%w: password is required", ErrBadRequest)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	return s.store.Users().Create(ctx, types.User{
		Username:     username,
		Role:         defaultRole,
		PasswordHash: string(hashed),
		CreatedAt:    s.now(),
	})
}

// Login verifies the credential pair and mints a fresh session token.
// Unknown usernames and wrong passwords are indistinguishable to the
// caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (types.User, string, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.User{}, "", fmt.Errorf("%w: username or password do not match", ErrBadRequest)
		}
		return types.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, "", fmt.Errorf("%w: username or password do not match", ErrBadRequest)
	}

	session, err := s.store.Sessions().Create(ctx, types.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(sessionTTL),
	})
	if err != nil {
		return types.User{}, "", err
	}
	return user, session.Token, nil
}

// Resolve looks up a presented session token. Absent and expired
// sessions resolve to no identity, never an error; an expired row is
// deleted on the way out. A session within a day of expiry has its
// expiry pushed out again, best effort.
func (s *AuthService) Resolve(ctx context.Context, token string) (types.User, bool, error) {
	if token == "" {
		return types.User{}, false, nil
	}

	session, err := s.store.Sessions().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.User{}, false, nil
		}
		return types.User{}, false, err
	}

	now := s.now()
	if session.ExpiresAt.Before(now) {
		_ = s.store.Sessions().Delete(ctx, session.ID)
		return types.User{}, false, nil
	}

	if session.ExpiresAt.Sub(now) < sessionRenewWindow {
		// Sliding expiration; losing the write only shortens the slide.
		_ = s.store.Sessions().SetExpiry(ctx, session.ID, now.Add(sessionTTL))
	}

	user, err := s.store.Users().GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.User{}, false, nil
		}
		return types.User{}, false, err
	}
	return user, true, nil
}

// Logout deletes the session for the presented token. Unknown tokens
// are a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	err := s.store.Sessions().DeleteByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
