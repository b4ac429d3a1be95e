package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/stitchr/internal/auth"
	"github.com/desertthunder/stitchr/internal/cache"
	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/pagination"
)

// Library is the signed-in user's playlist collection.
type Library struct {
	spotify   Spotify
	cache     cache.CredentialCache
	playlists *pagination.Engine[models.Playlist]
	logger    *log.Logger
}

// NewLibrary creates a library whose playlists engine pages through /me/playlists.
func NewLibrary(sp Spotify, c cache.CredentialCache, opts Options) *Library {
	l := &Library{spotify: sp, cache: c, logger: opts.logger("library")}
	l.playlists = pagination.New(pagination.Options[models.Playlist]{
		Name:      "playlists",
		BatchSize: opts.BatchSize,
		Logger:    opts.Logger,
		Fetch: func(ctx context.Context, start, amount int) ([]models.Playlist, error) {
			page, err := sp.Playlists(ctx, start, amount)
			if err != nil {
				return nil, err
			}
			return page.Items, nil
		},
	})
	return l
}

// Playlists returns the engine backing the playlist list.
func (l *Library) Playlists() *pagination.Engine[models.Playlist] { return l.playlists }

// Login authorizes, then fetches the profile and caches the user id.
// The playlists engine is refreshed after a successful login.
func (l *Library) Login(ctx context.Context, a Authorizer, opts auth.AuthorizeOpts) (*models.UserProfile, error) {
	if err := a.Authorize(ctx, opts); err != nil {
		return nil, err
	}

	me, err := l.spotify.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if err := l.cache.SetUserID(me.ID); err != nil {
		l.logger.Warn("failed to cache user id", "error", err)
	}
	l.logger.Info("signed in", "user", me.ID)

	if err := l.playlists.Refresh(ctx); err != nil {
		l.logger.Warn("failed to load playlists after login", "error", err)
	}
	return me, nil
}

// UserID returns the cached user id, fetching and caching the profile on a miss.
func (l *Library) UserID(ctx context.Context) (string, error) {
	id, err := l.cache.UserID()
	if err != nil {
		l.logger.Warn("failed to read cached user id", "error", err)
	}
	if id != "" {
		return id, nil
	}

	me, err := l.spotify.Me(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user id: %w", err)
	}
	if err := l.cache.SetUserID(me.ID); err != nil {
		l.logger.Warn("failed to cache user id", "error", err)
	}
	return me.ID, nil
}
