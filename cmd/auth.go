package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/services"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin exchanges credentials for a token pair and stores it.
//
// Credentials come from flags, then the environment, then an interactive prompt.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	username, password := cmd.String("username"), cmd.String("password")
	if envUser, envPass, ok := shared.Credentials(); ok {
		if username == "" {
			username = envUser
		}
		if password == "" {
			password = envPass
		}
	}

	var err error
	if username == "" {
		if username, err = r.prompt("Username"); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = r.prompt("Password"); err != nil {
			return err
		}
	}

	r.logger.Info("logging in", "user", username, "backend", r.config.API.BaseURL)

	user, err := r.auth.Login(ctx, models.Credentials{Username: username, Password: password})
	if err != nil {
		return err
	}

	r.writePlain("✓ Logged in as %s\n", user.DisplayName())
	if !user.HasWebsiteGroup() {
		r.writePlain("⚠ %s is not in the website group; content changes will be rejected\n", user.Username)
	}
	return nil
}

// AuthLogout clears the stored tokens.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	r.auth.Logout()
	return r.writePlain("✓ Logged out\n")
}

// AuthStatus reports whether a session is stored and whether the backend accepts it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	tok, err := r.store.Token()
	if err != nil {
		return fmt.Errorf("failed to read tokens: %w", err)
	}

	r.writePlain("Backend: %s\n", r.config.API.BaseURL)
	r.writePlain("Token store: %s\n", r.config.Auth.Store)
	if tok == nil || tok.AccessToken == "" {
		r.writePlain("Authentication: ✗ Not logged in (run 'autohaus auth login', web login at %s%s)\n", r.client.BaseURL(), r.config.Auth.LoginPath)
		return nil
	}

	if !tok.Expiry.IsZero() {
		r.writePlain("Access token expires: %s\n", tok.Expiry.Local().Format("2006-01-02 15:04:05"))
	}

	if err := r.auth.Initialize(ctx); err != nil {
		var authErr *shared.AuthError
		if errors.As(err, &authErr) {
			r.writePlain("Authentication: ✗ Session expired (%s)\n", authErr.Kind)
			return nil
		}
		return err
	}

	user := r.auth.User()
	r.writePlain("Authentication: ✓ Logged in as %s\n", user.DisplayName())
	if r.auth.CanManage() {
		r.writePlain("Website group: ✓\n")
	} else {
		r.writePlain("Website group: ✗\n")
	}
	return nil
}

// AuthWhoami prints the current user.
func (r *Runner) AuthWhoami(ctx context.Context, cmd *cli.Command) error {
	user, err := r.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, cmd.Bool("pretty"))
	}

	r.writePlain("%s (%s)\n", user.DisplayName(), user.Username)
	if user.Email != "" {
		r.writePlain("Email: %s\n", user.Email)
	}
	if len(user.Groups) > 0 {
		r.writePlain("Groups: %v\n", user.Groups)
	}
	return nil
}

// AuthVerify checks a token, or the stored access token when none is given.
func (r *Runner) AuthVerify(ctx context.Context, cmd *cli.Command) error {
	if err := r.auth.Verify(ctx, cmd.StringArg("token")); err != nil {
		return fmt.Errorf("token rejected: %s: %w", services.DetailMessage(err), err)
	}
	return r.writePlain("✓ Token is valid\n")
}

// AuthRefresh exchanges the stored refresh token for a new pair.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	ok, err := r.auth.RefreshTokens(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: run 'autohaus auth login'", shared.ErrNoRefreshToken)
	}
	return r.writePlain("✓ Tokens refreshed\n")
}

// AuthImport stores a token pair read from a JSON file and checks it against the backend.
func (r *Runner) AuthImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data, err := shared.VerifyAndReadFile(path)
	if err != nil {
		return err
	}
	if err := shared.ValidateJSON(data); err != nil {
		return err
	}

	var pair models.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if pair.Access == "" {
		return fmt.Errorf("%w: %s has no access token", shared.ErrInvalidInput, path)
	}

	if err := r.store.SetToken(services.TokenFromPair(pair.Access, pair.Refresh)); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	r.logger.Info("tokens imported", "path", path)

	user, err := r.auth.FetchUser(ctx)
	if err != nil {
		return fmt.Errorf("imported tokens were rejected: %w", err)
	}
	return r.writePlain("✓ Imported tokens for %s\n", user.DisplayName())
}
