package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/stitchr/internal/formatter"
	"github.com/desertthunder/stitchr/internal/pagination"
	"github.com/desertthunder/stitchr/internal/shared"
	"github.com/desertthunder/stitchr/internal/tasks"
	"github.com/urfave/cli/v3"
)

// maxSearchLimit is the largest page the search endpoint serves.
const maxSearchLimit = 50

// take loads pages from e until it holds at least limit items or is exhausted.
// A limit of zero loads everything.
func take[T any](ctx context.Context, e *pagination.Engine[T], limit int) ([]T, error) {
	if limit <= 0 {
		return pagination.Drain(ctx, e)
	}
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	for e.Len() < limit && !e.Exhausted() {
		if err := e.LoadMoreIfNeeded(ctx); err != nil {
			return nil, err
		}
	}
	items := e.Items()
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func requireArg(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return nil
}

// editor opens an editor on playlist id, fetching just enough to know its name.
func (r *Runner) editor(ctx context.Context, id string) (*tasks.Editor, error) {
	pl, err := r.spotify.Playlist(ctx, id, []string{"id", "name", "owner", "uri"})
	if err != nil {
		return nil, err
	}
	return tasks.NewEditor(r.spotify, r.library, pl, r.taskOpts), nil
}

// PlaylistsList lists the signed-in user's playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}
	limit := cmd.Int("limit")

	r.logger.Info("listing playlists", "limit", limit)
	playlists, err := take(ctx, r.library.Playlists(), limit)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Owner: %s\n", p.Owner.DisplayName)
		r.writePlain("   Tracks: %d\n", p.Tracks.Total)
		r.writePlain("   Visibility: %s\n", formatter.Visibility(p))
		r.writePlain("\n")
	}
	return nil
}

// PlaylistsTracks lists a playlist's playable tracks with their positions.
func (r *Runner) PlaylistsTracks(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg("playlist id", id); err != nil {
		return err
	}
	if err := r.requireAuth(); err != nil {
		return err
	}

	ed, err := r.editor(ctx, id)
	if err != nil {
		return err
	}
	items, err := take(ctx, ed.Tracks(), cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list tracks: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}

	r.writePlainHeader(ed.Playlist().Name)
	for i, it := range items {
		t := it.Track
		r.writePlain("%3d. %s - %s (%s)\n", i, t.Name, t.ArtistNames(), formatter.FormatDuration(t.Duration()))
	}
	return r.writePlain("\n%d tracks\n", len(items))
}

// PlaylistsCreate creates a private playlist for the signed-in user.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if err := requireArg("playlist name", name); err != nil {
		return err
	}
	if err := r.requireAuth(); err != nil {
		return err
	}

	pl, err := tasks.NewEditor(r.spotify, r.library, nil, r.taskOpts).EnsurePlaylist(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}
	return r.writePlain("✓ Created %q (%s)\n", pl.Name, pl.ID)
}

// PlaylistsRename renames a playlist. Renaming to the current name is a no-op.
func (r *Runner) PlaylistsRename(ctx context.Context, cmd *cli.Command) error {
	id, name := cmd.StringArg("id"), strings.TrimSpace(cmd.StringArg("name"))
	if err := requireArg("playlist id", id); err != nil {
		return err
	}
	if err := requireArg("playlist name", name); err != nil {
		return err
	}
	if err := r.requireAuth(); err != nil {
		return err
	}

	ed, err := r.editor(ctx, id)
	if err != nil {
		return err
	}
	if err := ed.SaveTitle(ctx, name); err != nil {
		return fmt.Errorf("failed to rename playlist: %w", err)
	}
	return r.writePlain("✓ Renamed to %q\n", name)
}

// playlistURIs splits "<playlist-id> <uri>..." positional arguments.
func playlistURIs(cmd *cli.Command) (string, []string, error) {
	args := cmd.Args()
	id := args.First()
	if err := requireArg("playlist id", id); err != nil {
		return "", nil, err
	}
	uris := args.Tail()
	if len(uris) == 0 {
		return "", nil, fmt.Errorf("%w: at least one track uri", shared.ErrMissingArgument)
	}
	for _, u := range uris {
		if !strings.HasPrefix(u, "spotify:") {
			return "", nil, fmt.Errorf("%w: %q is not a spotify uri", shared.ErrInvalidArgument, u)
		}
	}
	return id, uris, nil
}

// PlaylistsAdd appends track uris to a playlist.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	id, uris, err := playlistURIs(cmd)
	if err != nil {
		return err
	}
	if err := r.requireAuth(); err != nil {
		return err
	}

	snap, err := r.spotify.AddTracks(ctx, id, uris)
	if err != nil {
		return fmt.Errorf("failed to add tracks: %w", err)
	}
	r.logger.Debug("tracks added", "playlist", id, "snapshot", snap.SnapshotID)
	return r.writePlain("✓ Added %d tracks\n", len(uris))
}

// PlaylistsRemove removes every occurrence of the given uris.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	id, uris, err := playlistURIs(cmd)
	if err != nil {
		return err
	}
	if err := r.requireAuth(); err != nil {
		return err
	}

	snap, err := r.spotify.RemoveTracks(ctx, id, uris)
	if err != nil {
		return fmt.Errorf("failed to remove tracks: %w", err)
	}
	r.logger.Debug("tracks removed", "playlist", id, "snapshot", snap.SnapshotID)
	return r.writePlain("✓ Removed %d tracks\n", len(uris))
}

// PlaylistsMove moves one track, using the positions printed by `playlists tracks`.
func (r *Runner) PlaylistsMove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg("playlist id", id); err != nil {
		return err
	}
	from, to := cmd.Int("from"), cmd.Int("to")
	if err := r.requireAuth(); err != nil {
		return err
	}

	ed, err := r.editor(ctx, id)
	if err != nil {
		return err
	}
	if _, err := take(ctx, ed.Tracks(), max(from, to)+1); err != nil {
		return fmt.Errorf("failed to load tracks: %w", err)
	}
	if err := ed.MoveTrack(ctx, from, to); err != nil {
		return fmt.Errorf("failed to move track: %w", err)
	}
	return r.writePlain("✓ Moved track %d to %d\n", from, to)
}

// Search prints the first page of track results for a term.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	term := strings.TrimSpace(cmd.StringArg("term"))
	if err := requireArg("search term", term); err != nil {
		return err
	}
	if err := r.requireAuth(); err != nil {
		return err
	}
	limit := min(max(cmd.Int("limit"), 1), maxSearchLimit)

	page, err := r.spotify.SearchTracks(ctx, term, 0, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(page.Items, cmd.Bool("pretty"))
	}

	r.writePlain("Showing %d of %d results for %q:\n\n", len(page.Items), page.Total, term)
	for i, t := range page.Items {
		r.writePlain("%d. %s - %s\n", i+1, t.Name, t.ArtistNames())
		r.writePlain("   Album: %s\n", t.Album.Name)
		r.writePlain("   URI: %s\n", t.URI)
	}
	return nil
}
