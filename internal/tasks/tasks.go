package tasks

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/stitchr/internal/auth"
	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/services"
	"github.com/desertthunder/stitchr/internal/shared"
)

// DefaultPlaylistName is used when a track is added before any playlist exists.
const DefaultPlaylistName = "New Playlist"

// Spotify is the subset of [services.SpotifyService] the orchestrators use.
type Spotify interface {
	Me(ctx context.Context) (*models.UserProfile, error)
	Playlists(ctx context.Context, offset, limit int) (*models.Paging[models.Playlist], error)
	Playlist(ctx context.Context, id string, fields []string) (*models.Playlist, error)
	PlaylistTracks(ctx context.Context, id string, offset, limit int) (*models.Paging[models.TrackItem], error)
	SearchTracksAsync(ctx context.Context, term string, offset, limit int, done func(*models.Paging[models.Track], error)) *services.Handle
	CreatePlaylist(ctx context.Context, userID, name string) (*models.Playlist, error)
	AddTracks(ctx context.Context, id string, uris []string) (*models.SnapshotResponse, error)
	RemoveTracks(ctx context.Context, id string, uris []string) (*models.SnapshotResponse, error)
	RemoveTrackAt(ctx context.Context, id, uri string, position int) (*models.SnapshotResponse, error)
	ReorderTracks(ctx context.Context, id string, from, to int) (*models.SnapshotResponse, error)
	RenamePlaylist(ctx context.Context, id, name string) error
}

// Authorizer runs the interactive sign-in. [auth.Session] implements it.
type Authorizer interface {
	Authorize(ctx context.Context, opts auth.AuthorizeOpts) error
}

// UserResolver returns the signed-in user's id. [Library] implements it.
type UserResolver interface {
	UserID(ctx context.Context) (string, error)
}

// Options are shared by the orchestrators.
type Options struct {
	BatchSize int // Page size for every engine; 0 uses the engine default
	Logger    *log.Logger
}

func (o Options) logger(component string) *log.Logger {
	l := o.Logger
	if l == nil {
		l = log.New(io.Discard)
	}
	return shared.WithLogger(l, "component", component)
}

var _ Spotify = (*services.SpotifyService)(nil)
var _ Authorizer = (*auth.Session)(nil)

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
