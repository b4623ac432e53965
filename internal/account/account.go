// Package account registers users and verifies their credentials.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"rail-reservation/internal/apperror"
	"rail-reservation/internal/models"
	"rail-reservation/internal/validation"
)

// bcrypt rejects passwords longer than this many bytes.
const maxPasswordBytes = 72

var errInvalidCredentials = apperror.New(apperror.KindUnauthorized, "invalid username or password")

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type Service struct {
	users UserRepository
	cost  int
}

// NewService returns a Service hashing passwords with the given bcrypt
// cost. Out of range costs fall back to bcrypt.DefaultCost.
func NewService(users UserRepository, cost int) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, cost: cost}
}

func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, apperror.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, err, "hash password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if apperror.Is(err, apperror.KindConstraintViolation) {
			return nil, apperror.Wrap(apperror.KindConstraintViolation, err, "username or email already registered")
		}
		return nil, fmt.Errorf("signup: %w", err)
	}

	zerolog.Ctx(ctx).Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Login returns the user whose password matches. Unknown users and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if apperror.Is(err, apperror.KindNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("stored password hash unusable")
		}
		return nil, errInvalidCredentials
	}
	return user, nil
}
