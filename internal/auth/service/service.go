// Package service implements account signup, login, and refresh token
// rotation.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"yaadmarket_backend/internal/auth/repository"
	"yaadmarket_backend/internal/auth/token"
	"yaadmarket_backend/internal/auth/transport"
	"yaadmarket_backend/internal/events"
	"yaadmarket_backend/platform/apperr"
	"yaadmarket_backend/platform/logger"
)

// User roles. Admins are created by seed or promotion, never by signup.
const (
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// Store is the persistence surface for auth.
type Store interface {
	CreateUser(ctx context.Context, email string, passwordHash string, role string) (repository.User, error)
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error)
	StoreRefreshToken(ctx context.Context, id uuid.UUID, userID uuid.UUID, expiresAt time.Time) error
	ConsumeRefreshToken(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

var _ Store = (*repository.Repository)(nil)

// Service provides authentication business logic.
type Service struct {
	repo   Store
	issuer *token.Issuer
	bus    events.Bus
	log    *logger.Logger
}

// New creates a new auth service.
func New(repo Store, issuer *token.Issuer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, bus: bus, log: log}
}

// Signup registers a new account with the agent role and signs them in.
func (s *Service) Signup(ctx context.Context, req transport.SignupRequest) (transport.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return transport.AuthResponse{}, apperr.Wrap(apperr.KindInternal, "failed to hash password", err)
	}

	user, err := s.repo.CreateUser(ctx, email, string(hash), RoleAgent)
	if errors.Is(err, repository.ErrEmailTaken) {
		s.log.AuthEvent("signup", email, false, "email taken")
		return transport.AuthResponse{}, apperr.Conflict("email is already registered")
	}
	if err != nil {
		return transport.AuthResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create user", err)
	}

	s.log.AuthEvent("signup", email, true, "")

	s.bus.Publish(ctx, events.UserSignedUp{
		BaseEvent: events.NewBaseEvent(),
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
	})

	return s.issuePair(ctx, user)
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (transport.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		// Burn a comparison anyway so missing accounts cost the same as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(req.Password))
		s.log.AuthEvent("login", email, false, "unknown email")
		return transport.AuthResponse{}, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return transport.AuthResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.log.AuthEvent("login", email, false, "wrong password")
		return transport.AuthResponse{}, apperr.Unauthorized("invalid credentials")
	}

	s.log.AuthEvent("login", email, true, "")
	return s.issuePair(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. A replayed token fails because it was already consumed.
func (s *Service) Refresh(ctx context.Context, req transport.RefreshRequest) (transport.AuthResponse, error) {
	claims, err := s.issuer.ParseRefresh(req.RefreshToken)
	if err != nil {
		return transport.AuthResponse{}, apperr.Unauthorized("invalid refresh token")
	}

	if err := s.repo.ConsumeRefreshToken(ctx, claims.RefreshID, claims.UserID); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return transport.AuthResponse{}, apperr.Unauthorized("refresh token expired or revoked")
		}
		return transport.AuthResponse{}, apperr.Wrap(apperr.KindInternal, "failed to rotate token", err)
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return transport.AuthResponse{}, apperr.Unauthorized("invalid refresh token")
	}

	return s.issuePair(ctx, user)
}

// Logout revokes every live refresh token of the user.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to revoke tokens", err)
	}
	return nil
}

// Me returns the authenticated user's profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (transport.UserResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.UserResponse{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return transport.UserResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load user", err)
	}
	return toUserResponse(user), nil
}

// GetEmailByID resolves a user's email for notifications.
func (s *Service) GetEmailByID(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

func (s *Service) issuePair(ctx context.Context, user repository.User) (transport.AuthResponse, error) {
	pair, err := s.issuer.Issue(user.ID, []string{user.Role})
	if err != nil {
		return transport.AuthResponse{}, apperr.Wrap(apperr.KindInternal, "failed to issue tokens", err)
	}

	if err := s.repo.StoreRefreshToken(ctx, pair.RefreshID, user.ID, pair.RefreshExpiry); err != nil {
		return transport.AuthResponse{}, apperr.Wrap(apperr.KindInternal, "failed to store refresh token", err)
	}

	return transport.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiry,
		User:         toUserResponse(user),
	}, nil
}

func toUserResponse(user repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
