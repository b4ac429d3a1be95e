package tasks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/pagination"
	"github.com/desertthunder/stitchr/internal/shared"
)

// Editor edits a single playlist. It may start without one; the playlist is
// created on the first write that needs it.
type Editor struct {
	spotify Spotify
	users   UserResolver
	tracks  *pagination.Engine[models.TrackItem]
	logger  *log.Logger

	mu       sync.Mutex
	playlist *models.Playlist
}

// NewEditor creates an editor for playlist, which may be nil.
func NewEditor(sp Spotify, users UserResolver, playlist *models.Playlist, opts Options) *Editor {
	e := &Editor{spotify: sp, users: users, logger: opts.logger("editor")}
	if playlist != nil {
		p := *playlist
		e.playlist = &p
	}
	e.tracks = pagination.New(pagination.Options[models.TrackItem]{
		Name:      "tracks",
		BatchSize: opts.BatchSize,
		Logger:    opts.Logger,
		Fetch:     e.fetch,
		Filter:    availableOnly,
	})
	return e
}

func (e *Editor) fetch(ctx context.Context, start, amount int) ([]models.TrackItem, error) {
	id := e.playlistID()
	if id == "" {
		return nil, nil
	}
	page, err := e.spotify.PlaylistTracks(ctx, id, start, amount)
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		page.Items[i].Position = start + i
	}
	return page.Items, nil
}

// availableOnly drops items whose track is no longer in the catalog.
func availableOnly(page []models.TrackItem) []models.TrackItem {
	out := make([]models.TrackItem, 0, len(page))
	for _, item := range page {
		if item.Track != nil && item.Track.URI != "" {
			out = append(out, item)
		}
	}
	return out
}

// Tracks returns the engine backing the track list.
func (e *Editor) Tracks() *pagination.Engine[models.TrackItem] { return e.tracks }

// Playlist returns a copy of the playlist being edited, or nil.
func (e *Editor) Playlist() *models.Playlist {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playlist == nil {
		return nil
	}
	p := *e.playlist
	return &p
}

func (e *Editor) playlistID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playlist == nil {
		return ""
	}
	return e.playlist.ID
}

// forget drops the playlist if it is still id.
func (e *Editor) forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playlist != nil && e.playlist.ID == id {
		e.playlist = nil
	}
}

// Contains reports whether a loaded item has uri.
func (e *Editor) Contains(uri string) bool {
	for _, item := range e.tracks.Items() {
		if item.URI() == uri {
			return true
		}
	}
	return false
}

// EnsurePlaylist returns the current playlist, creating one named name when there is none.
func (e *Editor) EnsurePlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	if p := e.Playlist(); p != nil {
		return p, nil
	}

	userID, err := e.users.UserID(ctx)
	if err != nil {
		return nil, err
	}
	created, err := e.spotify.CreatePlaylist(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	e.mu.Lock()
	if e.playlist == nil {
		e.playlist = created
	}
	p := *e.playlist
	e.mu.Unlock()

	e.logger.Info("created playlist", "id", created.ID, "name", name)
	return &p, nil
}

// AddTrack appends track, creating the playlist first when needed, then reloads the tracks.
//
// If the playlist has disappeared remotely, a new one is created and the add is retried once.
func (e *Editor) AddTrack(ctx context.Context, track models.Track) error {
	if track.URI == "" {
		return fmt.Errorf("%w: track uri", shared.ErrMissingArgument)
	}

	p, err := e.EnsurePlaylist(ctx, DefaultPlaylistName)
	if err != nil {
		return err
	}

	_, err = e.spotify.AddTracks(ctx, p.ID, []string{track.URI})
	if shared.StatusCode(err) == http.StatusNotFound {
		e.logger.Warn("playlist vanished, recreating", "id", p.ID)
		e.forget(p.ID)
		if p, err = e.EnsurePlaylist(ctx, p.Name); err != nil {
			return err
		}
		_, err = e.spotify.AddTracks(ctx, p.ID, []string{track.URI})
	}
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", track.URI, err)
	}

	return e.reload(ctx)
}

func (e *Editor) reload(ctx context.Context) error {
	err := e.tracks.Refresh(ctx)
	if err != nil && !isStale(err) {
		return fmt.Errorf("failed to reload tracks: %w", err)
	}
	return nil
}

// RemoveTrack deletes the item at index remotely, then locally. Only that
// occurrence is removed when the playlist holds the same track more than once.
func (e *Editor) RemoveTrack(ctx context.Context, index int) error {
	items := e.tracks.Items()
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: remove %d of %d", shared.ErrOutOfBounds, index, len(items))
	}
	id := e.playlistID()
	if id == "" {
		return shared.ErrPlaylistNotFound
	}

	item := items[index]
	if _, err := e.spotify.RemoveTrackAt(ctx, id, item.URI(), item.Position); err != nil {
		return fmt.Errorf("failed to remove %s: %w", item.URI(), err)
	}
	if err := e.tracks.RemoveItem(index); err != nil {
		return err
	}
	e.tracks.Update(func(it models.TrackItem) models.TrackItem {
		if it.Position > item.Position {
			it.Position--
		}
		return it
	})
	return nil
}

// MoveTrack reorders the item at from to index to, remotely then locally.
// Both indices refer to the visible list; hidden items keep their place
// relative to their neighbours on the server.
func (e *Editor) MoveTrack(ctx context.Context, from, to int) error {
	items := e.tracks.Items()
	n := len(items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d to %d of %d", shared.ErrOutOfBounds, from, to, n)
	}
	if from == to {
		return nil
	}
	id := e.playlistID()
	if id == "" {
		return shared.ErrPlaylistNotFound
	}

	src, dst := items[from].Position, items[to].Position
	if _, err := e.spotify.ReorderTracks(ctx, id, src, dst); err != nil {
		return fmt.Errorf("failed to move track: %w", err)
	}
	if err := e.tracks.MoveItem(from, to); err != nil {
		return err
	}
	e.tracks.Update(func(it models.TrackItem) models.TrackItem {
		it.Position = movedPosition(it.Position, src, dst)
		return it
	})
	return nil
}

// movedPosition returns where the item at p ends up after the item at src is
// moved to index dst.
func movedPosition(p, src, dst int) int {
	switch {
	case p == src:
		return dst
	case src < dst && p > src && p <= dst:
		return p - 1
	case dst < src && p >= dst && p < src:
		return p + 1
	}
	return p
}

// SaveTitle renames the playlist, or creates it with title when there is none.
// A blank title changes nothing.
func (e *Editor) SaveTitle(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	p := e.Playlist()
	if p == nil {
		_, err := e.EnsurePlaylist(ctx, title)
		return err
	}
	if p.Name == title {
		return nil
	}

	if err := e.spotify.RenamePlaylist(ctx, p.ID, title); err != nil {
		return fmt.Errorf("failed to rename playlist: %w", err)
	}

	e.mu.Lock()
	if e.playlist != nil && e.playlist.ID == p.ID {
		e.playlist.Name = title
	}
	e.mu.Unlock()
	return nil
}
