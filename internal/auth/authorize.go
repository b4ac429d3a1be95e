package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/stitchr/internal/server"
	"github.com/desertthunder/stitchr/internal/shared"
)

// AuthorizeOpts tunes the interactive flow.
type AuthorizeOpts struct {
	// ListenAddr defaults to the host:port of the configured redirect URI.
	ListenAddr string
	// Timeout bounds the wait for the redirect. Zero waits for ctx only.
	Timeout time.Duration
	// Prompt is called with the authorization URL when the browser could not be opened.
	Prompt func(authURL string)
}

// Authorize runs the authorization code flow through the system browser and a
// loopback callback listener, then exchanges the code.
//
// If ctx ends or the user declines before the redirect arrives, nothing is written
// and an error wrapping [shared.ErrCancelled] or [shared.ErrTimeout] is returned.
func (s *Session) Authorize(ctx context.Context, opts AuthorizeOpts) error {
	addr := opts.ListenAddr
	if addr == "" {
		u, err := url.Parse(s.oauth.RedirectURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, s.oauth.RedirectURL)
		}
		addr = u.Host
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}
	authURL := s.AuthCodeURL(state)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	open := func(string) {
		if err := s.openBrowser(authURL); err != nil {
			s.logger.Warn("failed to open browser automatically", "error", err)
			if opts.Prompt != nil {
				opts.Prompt(authURL)
			}
		}
	}

	code, err := server.AwaitCallback(ctx, addr, server.NewCallbackHandler(state), s.logger, open)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrCancelled), errors.Is(err, shared.ErrTimeout):
			s.logger.Info("authorization abandoned", "reason", err)
		case errors.Is(err, shared.ErrAuthInvalid):
			s.logger.Error("authorization rejected", "error", err)
			s.clear()
		}
		return err
	}

	return s.Exchange(ctx, code)
}
