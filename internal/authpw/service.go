// Package authpw provides email/password authentication.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/util"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ProfileStore defines the storage interface for auth
type ProfileStore interface {
	GetProfileByEmail(ctx context.Context, email string) (store.Profile, error)
	CreateProfile(ctx context.Context, p store.Profile) (store.Profile, error)
}

// Service provides email/password authentication
type Service struct {
	store ProfileStore
	cost  int
}

func NewService(st ProfileStore) *Service {
	return &Service{store: st, cost: bcrypt.DefaultCost}
}

// SignUpRequest carries already validated sign-up input.
type SignUpRequest struct {
	Email    string
	Password string
	FullName string
}

// SignUp creates a profile with a bcrypt password hash. Emails compare
// case-insensitively, so "Ana@X.com" collides with "ana@x.com".
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.Profile, error) {
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return store.Profile{}, errors.New("email, password, and full name are required")
	}

	if _, err := s.store.GetProfileByEmail(ctx, req.Email); err == nil {
		return store.Profile{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.Profile{}, fmt.Errorf("lookup profile: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	profile, err := s.store.CreateProfile(ctx, store.Profile{
		ID:           util.NewID(),
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(hash),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.Profile{}, ErrEmailTaken
	}
	if err != nil {
		return store.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return profile, nil
}

// SignIn authenticates a user. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.Profile, error) {
	if email == "" || password == "" {
		return store.Profile{}, ErrInvalidCredentials
	}

	profile, err := s.store.GetProfileByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Profile{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.Profile{}, fmt.Errorf("lookup profile: %w", err)
	}

	if profile.PasswordHash == "" {
		return store.Profile{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return store.Profile{}, ErrInvalidCredentials
	}
	return profile, nil
}
