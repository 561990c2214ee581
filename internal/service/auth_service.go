// Package service provides business logic for the NutriFact console. Every
// service here is a thin orchestration over the remote backend; none of
// them own data.
package service

import (
	"context"

	"github.com/nutrifact/console/internal/backend"
	"github.com/nutrifact/console/internal/models"
	"github.com/nutrifact/console/internal/pkg/apierrors"
)

// AuthService drives the session lifecycle against the backend:
// anonymous -> authenticating -> authenticated, and back to anonymous on
// logout or verification failure.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	Register(ctx context.Context, req RegisterRequest) (*models.AuthResult, error)

	// CurrentUser verifies a stored access token against the backend's
	// whoami endpoint. An empty token returns ErrUnauthorized without a
	// backend call; a rejected token surfaces the backend error so the
	// caller can clear the session. No retry in either case.
	CurrentUser(ctx context.Context, accessToken string) (*models.User, error)

	// Refresh exchanges the refresh token for a new token pair. A failure
	// means the session is unrecoverable and the caller must force a full
	// logout.
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)

	UpdateProfile(ctx context.Context, accessToken string, req UpdateProfileRequest) (*models.User, error)
}

// RegisterRequest is the registration payload forwarded to the backend.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

// UpdateProfileRequest is the profile mutation payload.
type UpdateProfileRequest struct {
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type authService struct {
	api *backend.Client
}

// NewAuthService creates an auth service over the backend client.
func NewAuthService(api *backend.Client) AuthService {
	return &authService{api: api}
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	body := map[string]string{"email": email, "password": password}

	var result models.AuthResult
	if err := s.api.Post(ctx, backend.Anonymous, "auth/login", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*models.AuthResult, error) {
	var result models.AuthResult
	if err := s.api.Post(ctx, backend.Anonymous, "auth/register", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *authService) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		return nil, apierrors.ErrUnauthorized
	}

	creds := backend.Credentials{AccessToken: accessToken}
	var user models.User
	if err := s.api.Get(ctx, creds, "auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, apierrors.ErrUnauthorized
	}

	body := map[string]string{"refresh_token": refreshToken}
	var tokens models.TokenPair
	if err := s.api.Post(ctx, backend.Anonymous, "auth/refresh", body, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (s *authService) UpdateProfile(ctx context.Context, accessToken string, req UpdateProfileRequest) (*models.User, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	var user models.User
	if err := s.api.Put(ctx, creds, "users/profile", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
