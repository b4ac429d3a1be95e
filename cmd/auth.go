package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/stitchr/internal/auth"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the browser authorization flow and records the signed-in user.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	r.logger.Info("starting authorization", "redirect_uri", r.config.Credentials.Spotify.RedirectURI)

	me, err := r.library.Login(ctx, r.session, auth.AuthorizeOpts{
		Timeout: cmd.Duration("timeout"),
		Prompt: func(authURL string) {
			r.writePlain("Open this URL in your browser to continue:\n\n  %s\n\n", authURL)
		},
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	if me.DisplayName != "" {
		r.writePlain("Signed in as %s (%s)\n", me.DisplayName, me.ID)
	} else {
		r.writePlain("Signed in as %s\n", me.ID)
	}
	return r.writePlain("\nYou can now use: stitchr playlists list\n")
}

// AuthStatus reports the session state and, when signed in, the current user.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	state := r.session.State()
	r.writePlain("Session: %s\n", state)
	if !r.session.IsAuthenticated() {
		return r.writePlain("Authentication: ✗ Not authenticated\n")
	}

	if creds := r.session.Credentials(); creds != nil && creds.ExpiresAt != nil {
		at := creds.ExpiresAt.Local().Format("2006-01-02 15:04:05")
		switch {
		case creds.IsExpired():
			r.writePlain("Token expired: %s (will refresh on next call)\n", at)
		case creds.Valid():
			r.writePlain("Token expires: %s\n", at)
		}
	}

	me, err := r.spotify.Me(ctx)
	if err != nil {
		r.logger.Warn("failed to fetch profile", "error", err)
		return r.writePlain("Authentication: ✗ %v\n", err)
	}
	if err := r.creds.SetUserID(me.ID); err != nil {
		r.logger.Warn("failed to cache user id", "error", err)
	}
	return r.writePlain("Authentication: ✓ Authenticated as %s\n", me.ID)
}

// AuthLogout clears stored credentials and the cached user id.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}
	if err := r.session.Logout(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return r.writePlain("✓ Signed out\n")
}
