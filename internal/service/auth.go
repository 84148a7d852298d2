// Package service contains the business logic layer of the application.
//
// Handlers parse HTTP and write responses; services validate, resolve
// identities, and orchestrate; repositories read and write the database.
// Services receive repository interfaces, never concrete sqlite types, so
// tests inject in-memory mocks.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/auth"
	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/repository"
)

// AuthService handles login and profile lookup.
type AuthService struct {
	users   repository.UserRepository
	tokens  *auth.TokenService
	baseURL string
	logger  *slog.Logger
}

// NewAuthService creates an AuthService. baseURL is the public address
// used to build absolute calendar feed URLs.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, baseURL string, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// AuthResult bundles everything the login handler returns in one step.
type AuthResult struct {
	User        *model.User
	AccessToken string
	CalendarURL string
}

// Login finds or creates the account for a platform identity and issues an
// access token. There is no password: the chat-platform ID is the identity,
// matching the bot's view of the same user.
func (s *AuthService) Login(ctx context.Context, username, platformID string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	platformID = strings.TrimSpace(platformID)

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if platformID == "" {
		return nil, apperror.ValidationFailed("platform_id", "platform_id is required")
	}

	user, err := s.users.EnsureUser(ctx, platformID, username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: ensuring user (platformID=%s): %w", platformID, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{
		User:        user,
		AccessToken: token,
		CalendarURL: s.CalendarURL(user),
	}, nil
}

// GetUserByID returns the user for the given internal ID. Used by the
// /api/auth/me handler after the middleware validated the bearer token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// CalendarURL builds the absolute feed URL for a user's calendar token.
func (s *AuthService) CalendarURL(user *model.User) string {
	return fmt.Sprintf("%s/api/calendar/%s.ics", s.baseURL, user.CalendarToken)
}
