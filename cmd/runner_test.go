package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/repositories"
	"github.com/desertthunder/stitchr/internal/shared"
	tu "github.com/desertthunder/stitchr/internal/testing"
)

func testConfig(fake *tu.FakeSpotify) *shared.Config {
	config := shared.DefaultConfig()
	config.Credentials.Spotify = shared.SpotifyConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURI:  "http://127.0.0.1:3000/callback",
	}
	config.Spotify.AccountsURL = fake.AccountsURL()
	config.Spotify.APIURL = fake.APIURL()
	config.Spotify.RateLimit = 0
	return config
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// signedIn returns a runner backed by an in-memory database holding a token pair.
func signedIn(t *testing.T, fake *tu.FakeSpotify) (*Runner, *bytes.Buffer) {
	t.Helper()
	db := testDB(t)
	if err := repositories.NewCredentialRepository(db).SetCredentials(&models.TokenStore{AccessToken: "tok", RefreshToken: "ref"}); err != nil {
		t.Fatalf("failed to seed credentials: %v", err)
	}

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: testConfig(fake),
		DB:     db,
		Logger: shared.NewLogger(io.Discard),
		Output: output,
	})
	return runner, output
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{
		Name:      "stitchr",
		Commands:  r.register(),
		Writer:    io.Discard,
		ErrWriter: io.Discard,
	}
	return app.Run(context.Background(), append([]string{"stitchr"}, args...))
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

func paged[T any](all []T) http.HandlerFunc {
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

func playlistJSON(id, name string) map[string]any {
	return map[string]any{
		"id":     id,
		"name":   name,
		"uri":    "spotify:playlist:" + id,
		"public": true,
		"owner":  map[string]any{"id": "u1", "display_name": "Owner"},
		"tracks": map[string]any{"total": 3},
	}
}

func trackJSON(id string) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        "Song " + id,
		"uri":         "spotify:track:" + id,
		"duration_ms": 200000,
		"artists":     []map[string]any{{"id": "a", "name": "Artist"}},
		"album":       map[string]any{"id": "al", "name": "Album"},
	}
}

func trackItems(ids ...string) []map[string]any {
	out := make([]map[string]any, len(ids))
	for i, id := range ids {
		out[i] = map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": trackJSON(id)}
	}
	return out
}

func snapshot(w http.ResponseWriter, r *http.Request) {
	tu.WriteJSON(w, http.StatusOK, map[string]string{"snapshot_id": "snap"})
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.creds == nil {
				t.Error("expected in-memory credential cache without a database")
			}
			if runner.runs != nil {
				t.Error("expected no export history without a database")
			}
		})

		t.Run("with a database wires repositories", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			runner, _ := signedIn(t, fake)

			if _, ok := runner.creds.(*repositories.CredentialRepository); !ok {
				t.Errorf("expected credential repository, got %T", runner.creds)
			}
			if runner.runs == nil {
				t.Error("expected export history repository")
			}
			if runner.session == nil || !runner.session.IsAuthenticated() {
				t.Error("expected session loaded from stored credentials")
			}
		})

		t.Run("without client credentials has no session", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify = shared.SpotifyConfig{}
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})

			if runner.session != nil {
				t.Error("expected nil session")
			}
			if err := runner.requireAuth(); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("SetLogger rewires components", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
			library := runner.library
			runner.SetLogger(shared.NewLogger(io.Discard))

			if runner.library == library {
				t.Error("expected a new library after SetLogger")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("returns error on marshal failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Error("expected error for unmarshalable data")
			}
		})

		t.Run("returns error when the trailing newline fails", func(t *testing.T) {
			w := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &w})
			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err == nil {
				t.Error("expected newline write error")
			}
		})

		t.Run("returns error on write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		runner.writePlainHeader("Title")
		runner.writePlainln("%d items", 3)

		result := output.String()
		if !strings.Contains(result, "Title\n") || !strings.Contains(result, "\n3 items\n") {
			t.Errorf("unexpected output %q", result)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("commands require a signed-in session", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		runner := NewRunner(RunnerOpts{
			Config: testConfig(fake),
			Logger: shared.NewLogger(io.Discard),
			Output: &bytes.Buffer{},
		})

		err := run(runner, "playlists", "list")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if n := len(fake.Requests()); n != 0 {
			t.Errorf("expected no API requests, got %d", n)
		}
	})

	t.Run("status reports the signed-in user", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.Handle("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, map[string]string{"id": "u1"})
		})
		runner, output := signedIn(t, fake)

		if err := run(runner, "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Authenticated as u1") {
			t.Errorf("unexpected output %q", output.String())
		}
		if id, _ := runner.creds.UserID(); id != "u1" {
			t.Errorf("expected cached user id u1, got %q", id)
		}
	})

	t.Run("status notes an expired token", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.Handle("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, map[string]string{"id": "u1"})
		})
		db := testDB(t)
		expired := time.Now().Add(-time.Hour)
		seed := &models.TokenStore{AccessToken: "tok", RefreshToken: "ref", ExpiresAt: &expired}
		if err := repositories.NewCredentialRepository(db).SetCredentials(seed); err != nil {
			t.Fatalf("failed to seed credentials: %v", err)
		}
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(fake), DB: db, Logger: shared.NewLogger(io.Discard), Output: output})

		if err := run(runner, "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "will refresh on next call") {
			t.Errorf("expected expiry note, got %q", output.String())
		}
		if strings.Contains(output.String(), "Token expires:") {
			t.Errorf("expired token reported as live: %q", output.String())
		}
	})

	t.Run("status when signed out", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		runner := NewRunner(RunnerOpts{Config: testConfig(fake), Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})
		output := runner.output.(*bytes.Buffer)

		if err := run(runner, "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Not authenticated") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("logout clears credentials", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		runner, _ := signedIn(t, fake)

		if err := run(runner, "auth", "logout"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		creds, err := runner.creds.Credentials()
		if err != nil {
			t.Fatalf("failed to read credentials: %v", err)
		}
		if creds != nil {
			t.Errorf("expected credentials cleared, got %+v", creds)
		}
	})
}

func TestPlaylistCommands(t *testing.T) {
	t.Run("list pages until the limit", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		all := make([]map[string]any, 30)
		for i := range all {
			all[i] = playlistJSON(fmt.Sprintf("p%d", i), fmt.Sprintf("Mix %d", i))
		}
		fake.Handle("GET /v1/me/playlists", paged(all))
		runner, output := signedIn(t, fake)

		if err := run(runner, "playlists", "list", "--limit", "25"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "Found 25 playlists") {
			t.Errorf("unexpected output %q", result)
		}
		if !strings.Contains(result, "Visibility: public") {
			t.Error("expected visibility line")
		}
		if n := len(fake.Requests()); n != 2 {
			t.Errorf("expected 2 page requests, got %d", n)
		}
	})

	t.Run("list as JSON", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.Handle("GET /v1/me/playlists", paged([]map[string]any{playlistJSON("p1", "Road Trip")}))
		runner, output := signedIn(t, fake)

		if err := run(runner, "playlists", "list", "--json", "--pretty=false"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var got []models.Playlist
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
		}
		if len(got) != 1 || got[0].Name != "Road Trip" {
			t.Errorf("unexpected playlists %+v", got)
		}
	})

	t.Run("tracks", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.Handle("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, playlistJSON("p1", "Road Trip"))
		})
		fake.Handle("GET /v1/playlists/p1/tracks", paged(trackItems("a", "b", "c")))
		runner, output := signedIn(t, fake)

		if err := run(runner, "playlists", "tracks", "p1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		for _, want := range []string{"Road Trip", "  0. Song a - Artist (3:20)", "3 tracks"} {
			if !strings.Contains(result, want) {
				t.Errorf("expected %q in %q", want, result)
			}
		}
	})

	t.Run("tracks of a missing playlist", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		runner, _ := signedIn(t, fake)

		err := run(runner, "playlists", "tracks", "nope")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("tracks without an id", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		runner, _ := signedIn(t, fake)

		if err := run(runner, "playlists", "tracks"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("create resolves the user", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.Handle("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, map[string]string{"id": "u1"})
		})
		fake.Handle("POST /v1/users/u1/playlists", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusCreated, playlistJSON("new", "Mix"))
		})
		runner, output := signedIn(t, fake)

		if err := run(runner, "playlists", "create", "Mix"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `Created "Mix" (new)`) {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("rename", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.Handle("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, playlistJSON("p1", "Old"))
		})
		fake.Handle("PUT /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		runner, _ := signedIn(t, fake)

		if err := run(runner, "playlists", "rename", "p1", "New"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var renamed bool
		for _, req := range fake.Requests() {
			if req.Method == http.MethodPut && strings.Contains(req.Body, `"name":"New"`) {
				renamed = true
			}
		}
		if !renamed {
			t.Error("expected rename request")
		}
	})

	t.Run("add validates uris", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		runner, _ := signedIn(t, fake)

		if err := run(runner, "playlists", "add", "p1", "not-a-uri"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := run(runner, "playlists", "add", "p1"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("add and remove", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.Handle("POST /v1/playlists/p1/tracks", snapshot)
		fake.Handle("DELETE /v1/playlists/p1/tracks", snapshot)
		runner, output := signedIn(t, fake)

		if err := run(runner, "playlists", "add", "p1", "spotify:track:a", "spotify:track:b"); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := run(runner, "playlists", "remove", "p1", "spotify:track:a"); err != nil {
			t.Fatalf("remove: %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "Added 2 tracks") || !strings.Contains(result, "Removed 1 tracks") {
			t.Errorf("unexpected output %q", result)
		}
	})

	t.Run("move", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.Handle("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, playlistJSON("p1", "Road Trip"))
		})
		fake.Handle("GET /v1/playlists/p1/tracks", paged(trackItems("a", "b", "c")))
		fake.Handle("PUT /v1/playlists/p1/tracks", snapshot)
		runner, _ := signedIn(t, fake)

		if err := run(runner, "playlists", "move", "--from", "0", "--to", "2", "p1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var body map[string]any
		for _, req := range fake.Requests() {
			if req.Method == http.MethodPut {
				if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
					t.Fatalf("bad body %q", req.Body)
				}
			}
		}
		if body["range_start"] != float64(0) || body["insert_before"] != float64(3) {
			t.Errorf("unexpected reorder body %v", body)
		}
	})

	t.Run("move out of bounds", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.Handle("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, playlistJSON("p1", "Road Trip"))
		})
		fake.Handle("GET /v1/playlists/p1/tracks", paged(trackItems("a")))
		runner, _ := signedIn(t, fake)

		err := run(runner, "playlists", "move", "--from", "0", "--to", "5", "p1")
		if !errors.Is(err, shared.ErrOutOfBounds) {
			t.Errorf("expected ErrOutOfBounds, got %v", err)
		}
	})
}

func TestSearchCommand(t *testing.T) {
	fake := tu.NewFakeSpotify(t)
	fake.Handle("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "track" {
			t.Errorf("expected type=track, got %q", r.URL.RawQuery)
		}
		limit := queryInt(r, "limit", 0)
		tu.WriteJSON(w, http.StatusOK, map[string]any{
			"tracks": tu.Page([]map[string]any{trackJSON("a"), trackJSON("b")}, 0, limit, 40),
		})
	})
	runner, output := signedIn(t, fake)

	if err := run(runner, "search", "--limit", "500", "song"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	result := output.String()
	if !strings.Contains(result, `Showing 2 of 40 results for "song"`) || !strings.Contains(result, "URI: spotify:track:b") {
		t.Errorf("unexpected output %q", result)
	}
	if q := fake.Requests()[0].RawQuery; !strings.Contains(q, "limit=50") {
		t.Errorf("expected limit clamped to 50, got %q", q)
	}

	if err := run(runner, "search"); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}

func TestExportCommand(t *testing.T) {
	fake := tu.NewFakeSpotify(t)
	fake.Handle("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
		tu.WriteJSON(w, http.StatusOK, playlistJSON("p1", "Road Trip"))
	})
	fake.Handle("GET /v1/playlists/p1/tracks", paged(trackItems("a", "b", "c")))
	runner, output := signedIn(t, fake)
	dir := filepath.Join(t.TempDir(), "out")

	if err := run(runner, "export", "--id", "p1", "--format", "csv", "--output", dir, "--rate", "100"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tu.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
	if !strings.Contains(output.String(), "Exported: 1/1 playlists") {
		t.Errorf("unexpected output %q", output.String())
	}

	output.Reset()
	if err := run(runner, "export", "history"); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(output.String(), "1/1 exported") || !strings.Contains(output.String(), dir) {
		t.Errorf("unexpected history %q", output.String())
	}

	t.Run("unknown format", func(t *testing.T) {
		err := run(runner, "export", "--format", "xml", "--output", t.TempDir())
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("history without a database", func(t *testing.T) {
		r := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})
		if err := run(r, "export", "history"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestSetupCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{ConfigPath: "config.toml", Logger: shared.NewLogger(io.Discard), Output: output})

	if err := run(runner, "setup"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() { runner.Close() })

	tu.AssertFileExists(t, "config.toml")
	tu.AssertFileExists(t, "stitchr.db")
	if runner.runs == nil {
		t.Error("expected export history after setup")
	}
	if !strings.Contains(output.String(), "Created config.toml") || !strings.Contains(output.String(), "Database ready") {
		t.Errorf("unexpected output %q", output.String())
	}

	if err := run(runner, "setup", "--rollback"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !strings.Contains(output.String(), "Rolled back") {
		t.Errorf("unexpected output %q", output.String())
	}
}
