package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/stitchr/internal/formatter"
	"github.com/desertthunder/stitchr/internal/models"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.Tracks.Total)
	if i.playlist.Owner.DisplayName != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Owner.DisplayName)
	}
	return desc
}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.Name }
func (i trackItem) Title() string       { return i.track.Name }
func (i trackItem) Description() string {
	desc := i.track.ArtistNames()
	if i.track.Album.Name != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album.Name)
	}
	return fmt.Sprintf("%s • %s", desc, formatter.FormatDuration(i.track.Duration()))
}

func playlistItems(pls []models.Playlist) []list.Item {
	out := make([]list.Item, len(pls))
	for i, pl := range pls {
		out[i] = playlistItem{playlist: pl}
	}
	return out
}

func trackItems(items []models.TrackItem) []list.Item {
	out := make([]list.Item, 0, len(items))
	for _, it := range items {
		if it.Track != nil {
			out = append(out, trackItem{track: *it.Track})
		}
	}
	return out
}

func searchItems(tracks []models.Track) []list.Item {
	out := make([]list.Item, len(tracks))
	for i, tr := range tracks {
		out[i] = trackItem{track: tr}
	}
	return out
}

func newList(title string) list.Model {
	l := list.New(nil, styles.delegate(), 0, 0)
	l.Title = title
	l.Styles.Title = styles.listHead
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}
