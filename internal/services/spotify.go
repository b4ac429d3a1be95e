package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/zmb3/spotify/v2"

	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/shared"
)

// SpotifyService wraps the Web API endpoints used by stitchr.
type SpotifyService struct {
	api Doer
}

// NewSpotifyService creates a new [SpotifyService] on top of api.
func NewSpotifyService(api Doer) *SpotifyService {
	return &SpotifyService{api: api}
}

func page(offset, limit int) map[string]any {
	return map[string]any{"offset": offset, "limit": limit}
}

func esc(id string) string { return url.PathEscape(id) }

// Me fetches the current user's profile.
func (s *SpotifyService) Me(ctx context.Context) (*models.UserProfile, error) {
	var me models.UserProfile
	if err := s.api.Do(ctx, Request{Method: http.MethodGet, Path: "me"}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// Playlists fetches one page of the current user's playlists.
func (s *SpotifyService) Playlists(ctx context.Context, offset, limit int) (*models.Paging[models.Playlist], error) {
	var p models.Paging[models.Playlist]
	req := Request{Method: http.MethodGet, Path: "me/playlists", Query: page(offset, limit)}
	if err := s.api.Do(ctx, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UserPlaylists fetches one page of another user's public playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, userID string, offset, limit int) (*models.Paging[models.Playlist], error) {
	var p models.Paging[models.Playlist]
	req := Request{Method: http.MethodGet, Path: "users/" + esc(userID) + "/playlists", Query: page(offset, limit)}
	if err := s.api.Do(ctx, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Playlist fetches a playlist. fields, when set, restricts the response.
//
// A 404 is reported as [shared.ErrPlaylistNotFound].
func (s *SpotifyService) Playlist(ctx context.Context, id string, fields []string) (*models.Playlist, error) {
	var q map[string]any
	if len(fields) > 0 {
		q = map[string]any{"fields": fields}
	}

	var p models.Playlist
	if err := s.api.Do(ctx, Request{Method: http.MethodGet, Path: "playlists/" + esc(id), Query: q}, &p); err != nil {
		if shared.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

// PlaylistTracks fetches one page of a playlist's items.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, id string, offset, limit int) (*models.Paging[models.TrackItem], error) {
	var p models.Paging[models.TrackItem]
	req := Request{Method: http.MethodGet, Path: "playlists/" + esc(id) + "/tracks", Query: page(offset, limit)}
	if err := s.api.Do(ctx, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func searchRequest(term string, offset, limit int) Request {
	q := page(offset, limit)
	q["q"] = term
	q["type"] = "track"
	return Request{Method: http.MethodGet, Path: "search", Query: q}
}

// SearchTracks fetches one page of track search results.
func (s *SpotifyService) SearchTracks(ctx context.Context, term string, offset, limit int) (*models.Paging[models.Track], error) {
	var resp models.SearchResponse
	if err := s.api.Do(ctx, searchRequest(term, offset, limit), &resp); err != nil {
		return nil, err
	}
	return &resp.Tracks, nil
}

// SearchTracksAsync starts a track search and returns its handle.
//
// done receives the page or an error, and is not called if the handle is cancelled first.
func (s *SpotifyService) SearchTracksAsync(ctx context.Context, term string, offset, limit int, done func(*models.Paging[models.Track], error)) *Handle {
	var resp models.SearchResponse
	return s.api.Go(ctx, searchRequest(term, offset, limit), &resp, func(err error) {
		if err != nil {
			done(nil, err)
			return
		}
		done(&resp.Tracks, nil)
	})
}

// CreatePlaylist creates a private playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name string) (*models.Playlist, error) {
	if userID == "" || name == "" {
		return nil, fmt.Errorf("%w: creating a playlist needs a user id and a name", shared.ErrMissingArgument)
	}

	var p models.Playlist
	body := map[string]any{"name": name, "public": false}
	if err := s.api.Do(ctx, Request{Method: http.MethodPost, Path: "users/" + esc(userID) + "/playlists", Body: body}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddTracks appends uris to the playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, id string, uris []string) (*models.SnapshotResponse, error) {
	var snap models.SnapshotResponse
	req := Request{Method: http.MethodPost, Path: "playlists/" + esc(id) + "/tracks", Body: map[string]any{"uris": uris}}
	if err := s.api.Do(ctx, req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// RemoveTracks removes every occurrence of uris from the playlist.
func (s *SpotifyService) RemoveTracks(ctx context.Context, id string, uris []string) (*models.SnapshotResponse, error) {
	tracks := make([]map[string]string, 0, len(uris))
	for _, u := range uris {
		tracks = append(tracks, map[string]string{"uri": u})
	}

	var snap models.SnapshotResponse
	req := Request{Method: http.MethodDelete, Path: "playlists/" + esc(id) + "/tracks", Body: map[string]any{"tracks": tracks}}
	if err := s.api.Do(ctx, req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// RemoveTrackAt removes the single occurrence of uri at position.
func (s *SpotifyService) RemoveTrackAt(ctx context.Context, id, uri string, position int) (*models.SnapshotResponse, error) {
	if position < 0 {
		return nil, fmt.Errorf("%w: negative position", shared.ErrInvalidArgument)
	}

	tracks := []spotify.TrackToRemove{{URI: uri, Positions: []int{position}}}
	var snap models.SnapshotResponse
	req := Request{Method: http.MethodDelete, Path: "playlists/" + esc(id) + "/tracks", Body: map[string]any{"tracks": tracks}}
	if err := s.api.Do(ctx, req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ReorderTracks moves the item at from so that it ends up at index to, matching
// the local remove-then-insert semantics of a list move.
func (s *SpotifyService) ReorderTracks(ctx context.Context, id string, from, to int) (*models.SnapshotResponse, error) {
	if from < 0 || to < 0 {
		return nil, fmt.Errorf("%w: negative position", shared.ErrInvalidArgument)
	}

	insertBefore := to
	if to > from {
		insertBefore = to + 1
	}

	var snap models.SnapshotResponse
	body := map[string]any{"range_start": from, "insert_before": insertBefore, "range_length": 1}
	if err := s.api.Do(ctx, Request{Method: http.MethodPut, Path: "playlists/" + esc(id) + "/tracks", Body: body}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// RenamePlaylist changes a playlist's name.
func (s *SpotifyService) RenamePlaylist(ctx context.Context, id, name string) error {
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}
	return s.api.Do(ctx, Request{Method: http.MethodPut, Path: "playlists/" + esc(id), Body: map[string]any{"name": name}}, nil)
}

// IsAuthError reports whether err means the user has to sign in again.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrAuthInvalid) || errors.Is(err, shared.ErrAuthExpired)
}
