package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/charmbracelet/log"
)

const userPath = "/api/user/"

// AuthService logs in against the token endpoints and tracks the current user.
type AuthService struct {
	api    Requester
	store  TokenStore
	logger *log.Logger

	mu   sync.RWMutex
	user *models.User
}

// NewAuthService creates a new [AuthService]. The store must be the one the [Requester] reads tokens from.
func NewAuthService(api Requester, store TokenStore, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &AuthService{api: api, store: store, logger: shared.WithLogger(logger, "component", "auth")}
}

// Login exchanges credentials for a token pair, stores it and loads the current user.
//
// Any failure leaves the service logged out. Backend "detail" messages are surfaced in the error.
func (s *AuthService) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, shared.ErrMissingCredentials
	}

	var pair models.TokenPair
	if err := s.api.PublicPost(ctx, tokenPath, creds, &pair); err != nil {
		s.Logout()
		return nil, fmt.Errorf("%w: %s", shared.ErrAuthFailed, DetailMessage(err))
	}
	if pair.Access == "" {
		s.Logout()
		return nil, fmt.Errorf("%w: token response carried no access token", shared.ErrAuthFailed)
	}

	if err := s.store.SetToken(TokenFromPair(pair.Access, pair.Refresh)); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}

	user, err := s.FetchUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrAuthFailed, DetailMessage(err))
	}

	s.logger.Info("logged in", "user", user.Username, "website", user.HasWebsiteGroup())
	return user, nil
}

// RefreshTokens exchanges the stored refresh token for a new pair.
//
// Returns false when no refresh token is stored. A rejected refresh logs out.
func (s *AuthService) RefreshTokens(ctx context.Context) (bool, error) {
	tok, err := s.store.Token()
	if err != nil {
		return false, err
	}
	if tok == nil || tok.RefreshToken == "" {
		return false, nil
	}

	var pair models.TokenPair
	if err := s.api.PublicPost(ctx, tokenRefreshPath, map[string]string{"refresh": tok.RefreshToken}, &pair); err != nil {
		s.logger.Warn("token refresh failed", "error", err)
		s.Logout()
		return false, &shared.AuthError{Kind: shared.RefreshFailed, Err: err}
	}

	refresh := pair.Refresh
	if refresh == "" {
		refresh = tok.RefreshToken
	}
	if err := s.store.SetToken(TokenFromPair(pair.Access, refresh)); err != nil {
		return false, fmt.Errorf("failed to store tokens: %w", err)
	}
	return true, nil
}

// Verify asks the backend whether token is still valid. An empty token verifies the stored access token.
func (s *AuthService) Verify(ctx context.Context, token string) error {
	if token == "" {
		tok, err := s.store.Token()
		if err != nil {
			return err
		}
		if tok == nil {
			return shared.ErrNotAuthenticated
		}
		token = tok.AccessToken
	}
	return s.api.PublicPost(ctx, tokenVerifyPath, map[string]string{"token": token}, nil)
}

// CurrentUser fetches the authenticated user without updating cached state.
func (s *AuthService) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := s.api.Get(ctx, userPath, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FetchUser loads and caches the current user. On failure the service logs out.
func (s *AuthService) FetchUser(ctx context.Context) (*models.User, error) {
	tok, err := s.store.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, shared.ErrNotAuthenticated
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch user", "error", err)
		s.Logout()
		return nil, err
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}

// Initialize loads the user when a token survived from a previous run. It is a no-op otherwise.
func (s *AuthService) Initialize(ctx context.Context) error {
	tok, err := s.store.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	_, err = s.FetchUser(ctx)
	return err
}

// Logout clears both tokens and the cached user.
func (s *AuthService) Logout() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()

	if err := s.store.Clear(); err != nil {
		s.logger.Warn("failed to clear tokens", "error", err)
	}
}

// User returns the cached user, if any.
func (s *AuthService) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAuthenticated reports whether an access token is stored and the user is loaded.
func (s *AuthService) IsAuthenticated() bool {
	tok, err := s.store.Token()
	return err == nil && tok != nil && tok.AccessToken != "" && s.User() != nil
}

// HasWebsiteGroup reports whether the cached user may manage content.
func (s *AuthService) HasWebsiteGroup() bool {
	return s.User().HasWebsiteGroup()
}

// CanManage reports whether the admin area is accessible.
func (s *AuthService) CanManage() bool {
	return s.IsAuthenticated() && s.HasWebsiteGroup()
}

// DetailMessage extracts the backend's "detail" field from an [shared.HTTPError], falling back to the error text.
func DetailMessage(err error) string {
	var httpErr *shared.HTTPError
	if errors.As(err, &httpErr) {
		var body struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(httpErr.Body, &body) == nil && body.Detail != "" {
			return body.Detail
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
