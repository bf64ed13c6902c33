package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// DefaultProfile is the token row used when no profile is given.
const DefaultProfile = "default"

// TokenRepository stores the API token pair in the auth_tokens table, one row per profile.
//
// It satisfies services.TokenStore.
type TokenRepository struct {
	db      *sql.DB
	profile string
}

// NewTokenRepository creates a new TokenRepository for profile.
func NewTokenRepository(db *sql.DB, profile string) *TokenRepository {
	if profile == "" {
		profile = DefaultProfile
	}
	return &TokenRepository{db: db, profile: profile}
}

// Token returns the stored pair, or nil when the profile has none.
func (r *TokenRepository) Token() (*oauth2.Token, error) {
	query := `
		SELECT access_token, refresh_token, expiry
		FROM auth_tokens
		WHERE profile = ?
	`

	var (
		access  string
		refresh string
		expiry  sql.NullTime
	)
	err := r.db.QueryRow(query, r.profile).Scan(&access, &refresh, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tokens: %w", err)
	}

	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
	if expiry.Valid {
		tok.Expiry = expiry.Time
	}
	return tok, nil
}

// SetToken replaces the stored pair. A nil token clears it.
func (r *TokenRepository) SetToken(tok *oauth2.Token) error {
	if tok == nil {
		return r.Clear()
	}

	var expiry any
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry
	}

	query := `
		INSERT INTO auth_tokens (profile, access_token, refresh_token, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, r.profile, tok.AccessToken, tok.RefreshToken, expiry, time.Now()); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}

// Clear removes both tokens of the profile.
func (r *TokenRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM auth_tokens WHERE profile = ?", r.profile); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}
