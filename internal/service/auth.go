package service

import (
	"context"
	"errors"
	"strings"

	"github.com/amiyamandal-dev/repoportal/internal/auth"
	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/validator"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

// Authenticator exchanges credentials for an access token
type Authenticator interface {
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
}

// AuthService signs readers in through the repository API
type AuthService struct {
	backend   Authenticator
	inspector *auth.TokenInspector
	validator *validator.Validator
	logger    *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	backend Authenticator,
	inspector *auth.TokenInspector,
	validator *validator.Validator,
	logger *logger.Logger,
) *AuthService {
	return &AuthService{
		backend:   backend,
		inspector: inspector,
		validator: validator,
		logger:    logger.WithComponent("auth-service"),
	}
}

// Login validates the form, calls the API and returns the token and user
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	resp, err := s.backend.Login(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.logger.Info("Login rejected", "username", req.Username)
		} else {
			s.logger.Error("Login failed", "username", req.Username, "error", err)
		}
		return nil, err
	}

	// Fill in the user from the token when the API only sent the token
	if resp.User == nil {
		claims, err := s.inspector.Inspect(resp.Token)
		if err != nil {
			return nil, err
		}
		resp.User = claims.User()
	}

	s.logger.Info("User logged in", "username", resp.User.Username, "role", resp.User.Role)
	return resp, nil
}

// CurrentUser returns the user a token belongs to
func (s *AuthService) CurrentUser(token string) (*domain.User, error) {
	claims, err := s.inspector.Inspect(token)
	if err != nil {
		return nil, err
	}
	return claims.User(), nil
}
