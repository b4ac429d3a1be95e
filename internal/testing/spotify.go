package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/desertthunder/stitchr/internal/models"
)

// Recorded is a request seen by [FakeSpotify].
type Recorded struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	Body          string
}

// FakeSpotify serves both the accounts token endpoint and the Web API from one
// httptest server. Routes are keyed by "METHOD /path"; unknown routes get 404.
type FakeSpotify struct {
	*httptest.Server

	mu       sync.Mutex
	token    http.HandlerFunc
	routes   map[string]http.HandlerFunc
	requests []Recorded
	tokens   int
}

// NewFakeSpotify starts a server that is closed when the test ends.
//
// The default token handler issues "access-<n>" tokens, and a refresh token only
// for the authorization_code grant.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()
	f := &FakeSpotify{routes: map[string]http.HandlerFunc{}}
	f.token = f.defaultToken
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *FakeSpotify) AccountsURL() string { return f.URL }
func (f *FakeSpotify) APIURL() string      { return f.URL + "/v1" }

// OnToken replaces the token endpoint handler.
func (f *FakeSpotify) OnToken(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = h
}

// Handle registers h for pattern, e.g. "GET /v1/me".
func (f *FakeSpotify) Handle(pattern string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[pattern] = h
}

// TokenCalls returns how many times the token endpoint was hit.
func (f *FakeSpotify) TokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens
}

// Requests returns a copy of every API request seen, excluding the token endpoint.
func (f *FakeSpotify) Requests() []Recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Recorded(nil), f.requests...)
}

func (f *FakeSpotify) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && r.URL.Path == "/api/token" {
		_ = r.ParseForm()
		f.mu.Lock()
		f.tokens++
		h := f.token
		f.mu.Unlock()
		h(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, Recorded{
		Method:        r.Method,
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		Body:          string(body),
	})
	h, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Not found."}})
		return
	}
	h(w, r)
}

func (f *FakeSpotify) defaultToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	n := f.tokens
	f.mu.Unlock()

	resp := models.TokenResponse{
		AccessToken: fmt.Sprintf("access-%d", n),
		TokenType:   "Bearer",
		Scope:       "playlist-read-private",
		ExpiresIn:   3600,
	}
	if r.PostForm.Get("grant_type") == "authorization_code" {
		resp.RefreshToken = "refresh-1"
	}
	WriteJSON(w, http.StatusOK, resp)
}

// WriteJSON writes v as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// TokenError responds like the accounts service does for a rejected grant.
func TokenError(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid refresh token"})
}

// Page builds a paging envelope for items starting at offset.
func Page[T any](items []T, offset, limit, total int) map[string]any {
	var next any
	if offset+len(items) < total {
		next = fmt.Sprintf("?offset=%d&limit=%d", offset+limit, limit)
	}
	return map[string]any{
		"href":   "",
		"items":  items,
		"limit":  limit,
		"next":   next,
		"offset": offset,
		"total":  total,
	}
}
