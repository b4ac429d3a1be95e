package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/stitchr/internal/auth"
	"github.com/desertthunder/stitchr/internal/cache"
	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/services"
	"github.com/desertthunder/stitchr/internal/shared"
	tu "github.com/desertthunder/stitchr/internal/testing"
)

type harness struct {
	fake  *tu.FakeSpotify
	sp    *services.SpotifyService
	cache *cache.MemoryCache
}

// newHarness wires a signed-in session, API client and service against a fake server.
func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := tu.NewFakeSpotify(t)
	c := cache.NewMemoryCache(&models.TokenStore{AccessToken: "tok", RefreshToken: "ref"})

	session, err := auth.NewSession(auth.SessionOpts{
		Credentials: shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://127.0.0.1:3000/callback"},
		AccountsURL: fake.AccountsURL(),
		Cache:       c,
	})
	require.NoError(t, err)

	api := services.NewAPIClient(services.APIClientOpts{BaseURL: fake.APIURL(), Auth: session})
	return &harness{fake: fake, sp: services.NewSpotifyService(api), cache: c}
}

func trackJSON(id string) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        "Song " + id,
		"uri":         "spotify:track:" + id,
		"duration_ms": 180000,
		"artists":     []map[string]any{{"id": "a", "name": "Artist"}},
		"album":       map[string]any{"id": "al", "name": "Album"},
	}
}

func itemJSON(id string) map[string]any {
	if id == "" {
		return map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": nil}
	}
	return map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": trackJSON(id)}
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

// pages serves a paging envelope over all, honouring offset and limit.
func pages[T any](all []T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := queryInt(r, "offset", 0), queryInt(r, "limit", 20)
		end := min(offset+limit, len(all))
		var items []T
		if offset < end {
			items = all[offset:end]
		}
		tu.WriteJSON(w, http.StatusOK, tu.Page(items, offset, limit, len(all)))
	}
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func items(idList ...string) []map[string]any {
	out := make([]map[string]any, len(idList))
	for i, id := range idList {
		out[i] = itemJSON(id)
	}
	return out
}

type fakeAuthorizer struct {
	err   error
	calls int
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, opts auth.AuthorizeOpts) error {
	f.calls++
	return f.err
}

func TestLibrary(t *testing.T) {
	ctx := context.Background()

	t.Run("Login caches the user id and loads playlists", func(t *testing.T) {
		h := newHarness(t)
		h.fake.Handle("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, map[string]any{"id": "u1", "display_name": "Una"})
		})
		h.fake.Handle("GET /v1/me/playlists", pages([]map[string]any{{"id": "p1", "name": "One"}, {"id": "p2", "name": "Two"}}))

		lib := NewLibrary(h.sp, h.cache, Options{BatchSize: 10})
		a := &fakeAuthorizer{}

		me, err := lib.Login(ctx, a, auth.AuthorizeOpts{})
		require.NoError(t, err)
		assert.Equal(t, "Una", me.DisplayName)
		assert.Equal(t, 1, a.calls)

		id, _ := h.cache.UserID()
		assert.Equal(t, "u1", id)

		got := lib.Playlists().Items()
		require.Len(t, got, 2)
		assert.Equal(t, "Two", got[1].Name)
		assert.True(t, lib.Playlists().Exhausted())
	})

	t.Run("Login stops when authorization fails", func(t *testing.T) {
		h := newHarness(t)
		lib := NewLibrary(h.sp, h.cache, Options{})

		_, err := lib.Login(ctx, &fakeAuthorizer{err: shared.ErrCancelled}, auth.AuthorizeOpts{})
		assert.ErrorIs(t, err, shared.ErrCancelled)
		assert.Empty(t, h.fake.Requests())
	})

	t.Run("UserID prefers the cache", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.cache.SetUserID("cached"))
		lib := NewLibrary(h.sp, h.cache, Options{})

		id, err := lib.UserID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "cached", id)
		assert.Empty(t, h.fake.Requests())
	})

	t.Run("UserID fetches on a miss", func(t *testing.T) {
		h := newHarness(t)
		h.fake.Handle("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, map[string]any{"id": "u9"})
		})
		lib := NewLibrary(h.sp, h.cache, Options{})

		id, err := lib.UserID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "u9", id)

		cached, _ := h.cache.UserID()
		assert.Equal(t, "u9", cached)
	})

	t.Run("playlists page through the library", func(t *testing.T) {
		h := newHarness(t)
		var all []map[string]any
		for _, id := range ids("p", 25) {
			all = append(all, map[string]any{"id": id, "name": id})
		}
		h.fake.Handle("GET /v1/me/playlists", pages(all))

		lib := NewLibrary(h.sp, h.cache, Options{BatchSize: 10})
		require.NoError(t, lib.Playlists().Refresh(ctx))
		require.NoError(t, lib.Playlists().LoadMoreIfNeeded(ctx))
		assert.Equal(t, 20, lib.Playlists().Len())
		assert.False(t, lib.Playlists().Exhausted())

		require.NoError(t, lib.Playlists().LoadMoreIfNeeded(ctx))
		assert.Equal(t, 25, lib.Playlists().Len())
		assert.True(t, lib.Playlists().Exhausted())
	})
}

func TestProgressUpdate_NonBlocking(t *testing.T) {
	t.Run("nil channel", func(t *testing.T) {
		sendProgress(nil, manifestUpdate("x"))
	})

	t.Run("full channel drops the update", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		sendProgress(ch, fetchingPlaylistsUpdate())

		done := make(chan struct{})
		go func() {
			sendProgress(ch, manifestUpdate("x"))
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("sendProgress blocked on a full channel")
		}
		assert.Equal(t, FetchPlaylists, (<-ch).Phase)
	})

	t.Run("phase names", func(t *testing.T) {
		assert.Equal(t, "fetch_tracks", FetchTracks.String())
		assert.Equal(t, "write_manifest", WriteManifest.String())
		assert.Equal(t, "", Phase(99).String())
	})
}

func TestIsStale(t *testing.T) {
	assert.True(t, isStale(fmt.Errorf("wrap: %w", shared.ErrStaleResult)))
	assert.False(t, isStale(errors.New("other")))
	assert.False(t, isStale(nil))
}
