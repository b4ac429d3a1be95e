package models

import (
	"strings"
	"time"
)

// Image is a cover or avatar image. Dimensions are absent for user-uploaded images.
type Image struct {
	URL    string `json:"url"`
	Height *int   `json:"height,omitempty"`
	Width  *int   `json:"width,omitempty"`
}

// ExternalURLs maps a service name to a URL, e.g. "spotify".
type ExternalURLs map[string]string

// Artist is the simplified artist object. The same shape describes the user
// in a playlist item's added_by field.
type Artist struct {
	ExternalURLs ExternalURLs `json:"external_urls,omitempty"`
	Href         string       `json:"href,omitempty"`
	ID           string       `json:"id"`
	Name         string       `json:"name,omitempty"`
	Type         string       `json:"type,omitempty"`
	URI          string       `json:"uri,omitempty"`
}

// Owner is the user who owns a playlist.
type Owner struct {
	ExternalURLs ExternalURLs `json:"external_urls,omitempty"`
	Href         string       `json:"href,omitempty"`
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name,omitempty"`
	Type         string       `json:"type,omitempty"`
	URI          string       `json:"uri,omitempty"`
}

type Album struct {
	AlbumType        string       `json:"album_type,omitempty"`
	Artists          []Artist     `json:"artists,omitempty"`
	AvailableMarkets []string     `json:"available_markets,omitempty"`
	ExternalURLs     ExternalURLs `json:"external_urls,omitempty"`
	Href             string       `json:"href,omitempty"`
	ID               string       `json:"id"`
	Images           []Image      `json:"images,omitempty"`
	Name             string       `json:"name"`
	ReleaseDate      string       `json:"release_date,omitempty"`
	Type             string       `json:"type,omitempty"`
	URI              string       `json:"uri,omitempty"`
}

type Track struct {
	Album            Album             `json:"album"`
	Artists          []Artist          `json:"artists"`
	AvailableMarkets []string          `json:"available_markets,omitempty"`
	DiscNumber       int               `json:"disc_number,omitempty"`
	DurationMS       int               `json:"duration_ms"`
	Explicit         bool              `json:"explicit"`
	ExternalIDs      map[string]string `json:"external_ids,omitempty"`
	ExternalURLs     ExternalURLs      `json:"external_urls,omitempty"`
	Href             string            `json:"href,omitempty"`
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Popularity       int               `json:"popularity,omitempty"`
	PreviewURL       *string           `json:"preview_url,omitempty"`
	TrackNumber      int               `json:"track_number,omitempty"`
	Type             string            `json:"type,omitempty"`
	URI              string            `json:"uri"`
}

// ArtistNames joins the credited artists with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

// Duration converts DurationMS to a [time.Duration].
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// ISRC returns the International Standard Recording Code, if known.
func (t Track) ISRC() string {
	return t.ExternalIDs["isrc"]
}

// TrackItem is an entry in a playlist. Track is nil when the underlying track
// has been removed from the catalog.
type TrackItem struct {
	AddedAt time.Time `json:"added_at"`
	AddedBy *Artist   `json:"added_by,omitempty"`
	IsLocal bool      `json:"is_local"`
	Track   *Track    `json:"track"`

	// Position is the item's index in the playlist on the server, including
	// unavailable items.
	Position int `json:"-"`
}

// URI returns the track URI, or "" for unavailable items.
func (i TrackItem) URI() string {
	if i.Track == nil {
		return ""
	}
	return i.Track.URI
}

// TracksRef is the tracks summary embedded in a playlist object.
type TracksRef struct {
	Href  string `json:"href,omitempty"`
	Total int    `json:"total"`
}

type Playlist struct {
	Collaborative bool         `json:"collaborative"`
	Description   string       `json:"description,omitempty"`
	ExternalURLs  ExternalURLs `json:"external_urls,omitempty"`
	Href          string       `json:"href,omitempty"`
	ID            string       `json:"id"`
	Images        []Image      `json:"images,omitempty"`
	Name          string       `json:"name"`
	Owner         Owner        `json:"owner"`
	Public        *bool        `json:"public,omitempty"`
	SnapshotID    string       `json:"snapshot_id,omitempty"`
	Tracks        TracksRef    `json:"tracks"`
	Type          string       `json:"type,omitempty"`
	URI           string       `json:"uri,omitempty"`
}

// IsPublic treats an unknown visibility as private.
func (p Playlist) IsPublic() bool {
	return p.Public != nil && *p.Public
}

// CoverURL returns the first (largest) image URL, if any.
func (p Playlist) CoverURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

type UserProfile struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name,omitempty"`
	Email       string  `json:"email,omitempty"`
	Country     string  `json:"country,omitempty"`
	Product     string  `json:"product,omitempty"`
	Images      []Image `json:"images,omitempty"`
}

// Paging is the envelope shared by every collection endpoint.
type Paging[T any] struct {
	Href     string  `json:"href"`
	Items    []T     `json:"items"`
	Limit    int     `json:"limit"`
	Next     *string `json:"next"`
	Offset   int     `json:"offset"`
	Previous *string `json:"previous"`
	Total    int     `json:"total"`
}

// HasNext reports whether the server advertises another page.
func (p Paging[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// SearchResponse is the /search payload for type=track.
type SearchResponse struct {
	Tracks Paging[Track] `json:"tracks"`
}

// SnapshotResponse is returned by playlist item mutations.
type SnapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// PlaylistExport bundles a playlist with its fully drained item list.
type PlaylistExport struct {
	Playlist   Playlist    `json:"playlist"`
	Items      []TrackItem `json:"items"`
	ExportedAt time.Time   `json:"exported_at"`
}
