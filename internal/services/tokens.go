package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/autohaus-heidelberg/website/internal/shared"
	"golang.org/x/oauth2"
)

// TokenStore persists the access/refresh token pair between runs.
//
// Token returns (nil, nil) when nothing is stored. Both tokens are always set and cleared together.
type TokenStore interface {
	Token() (*oauth2.Token, error)
	SetToken(tok *oauth2.Token) error
	Clear() error
}

// TokenFromPair builds an [oauth2.Token] from the backend's access/refresh strings.
//
// Expiry is read from the access token's exp claim when it is a JWT; otherwise it stays zero (never expires).
func TokenFromPair(access, refresh string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       jwtExpiry(access),
	}
}

func jwtExpiry(token string) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}
	}

	var claims struct {
		Exp float64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(claims.Exp), 0)
}

// MemoryTokenStore keeps tokens for the lifetime of the process.
type MemoryTokenStore struct {
	mu  sync.RWMutex
	tok *oauth2.Token
}

// NewMemoryTokenStore creates a store seeded with tok, which may be nil.
func NewMemoryTokenStore(tok *oauth2.Token) *MemoryTokenStore {
	return &MemoryTokenStore{tok: tok}
}

func (m *MemoryTokenStore) Token() (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tok == nil {
		return nil, nil
	}
	cp := *m.tok
	return &cp, nil
}

func (m *MemoryTokenStore) SetToken(tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok == nil {
		m.tok = nil
		return nil
	}
	cp := *tok
	m.tok = &cp
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	return m.SetToken(nil)
}

// FileTokenStore keeps tokens in a JSON file readable only by the current user.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStore creates a store backed by path. A leading "~" is expanded.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: shared.ExpandHome(path)}
}

// Path returns the resolved file location.
func (f *FileTokenStore) Path() string { return f.path }

func (f *FileTokenStore) Token() (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, nil
	}
	return &tok, nil
}

func (f *FileTokenStore) SetToken(tok *oauth2.Token) error {
	if tok == nil {
		return f.Clear()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileTokenStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// storeTokenSource adapts a [TokenStore] to [oauth2.TokenSource].
type storeTokenSource struct {
	store TokenStore
}

// NewTokenSource returns an [oauth2.TokenSource] that reads the current token from store.
//
// It fails with [shared.ErrNotAuthenticated] when no access token is stored. Refreshing is left to [Client].
func NewTokenSource(store TokenStore) oauth2.TokenSource {
	return storeTokenSource{store: store}
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.store.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}
	return tok, nil
}
