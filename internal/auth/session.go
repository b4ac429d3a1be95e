package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/stitchr/internal/cache"
	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/shared"
)

// State is the session's position in the authentication state machine.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// DefaultScopes are requested when the configuration names none.
var DefaultScopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadPrivate,
}

// SessionOpts configures a [Session].
type SessionOpts struct {
	Credentials shared.SpotifyConfig
	// AccountsURL replaces https://accounts.spotify.com, mainly for tests.
	AccountsURL string
	Cache       cache.CredentialCache
	HTTPClient  *http.Client
	Logger      *log.Logger
	// OpenBrowser defaults to [shared.OpenBrowser].
	OpenBrowser func(url string) error
}

// Session is the OAuth session manager.
type Session struct {
	oauth       *oauth2.Config
	cache       cache.CredentialCache
	client      *http.Client
	logger      *log.Logger
	openBrowser func(string) error

	group   singleflight.Group
	writeMu sync.Mutex

	mu         sync.RWMutex
	creds      *models.TokenStore
	refreshing bool

	observers shared.Observers[bool]
}

// NewSession builds a session and loads any credentials already in the cache.
func NewSession(opts SessionOpts) (*Session, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("%w: session needs a credential cache", shared.ErrInvalidArgument)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	scopes := opts.Credentials.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	endpoint := oauth2.Endpoint{AuthURL: spotifyauth.AuthURL, TokenURL: spotifyauth.TokenURL}
	if base := strings.TrimRight(opts.AccountsURL, "/"); base != "" {
		endpoint = oauth2.Endpoint{AuthURL: base + "/authorize", TokenURL: base + "/api/token"}
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	creds, err := opts.Cache.Credentials()
	if err != nil {
		opts.Logger.Warn("ignoring unreadable cached credentials", "error", err)
		creds = nil
	}

	return &Session{
		oauth: &oauth2.Config{
			ClientID:     opts.Credentials.ClientID,
			ClientSecret: opts.Credentials.ClientSecret,
			RedirectURL:  opts.Credentials.RedirectURI,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		cache:       opts.Cache,
		client:      opts.HTTPClient,
		logger:      shared.WithLogger(opts.Logger, "component", "auth"),
		openBrowser: opts.OpenBrowser,
		creds:       creds,
	}, nil
}

// AuthCodeURL returns the authorization page URL for state.
func (s *Session) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens and stores them.
//
// Any failure clears the stored credentials.
func (s *Session) Exchange(ctx context.Context, code string) error {
	tok, err := s.oauth.Exchange(s.withClient(ctx), code)
	if err != nil {
		s.logger.Error("authorization code exchange failed", "error", err)
		s.clear()
		return fmt.Errorf("%w: %w", shared.ErrAuthInvalid, err)
	}

	if err := s.store(models.TokenStoreFromOAuth2(tok)); err != nil {
		return err
	}
	s.logger.Info("authorized")
	return nil
}

// Refresh exchanges the refresh token for a new access token.
//
// Concurrent callers share a single exchange. A missing refresh token or a failed
// exchange clears the credentials and returns an error wrapping [shared.ErrAuthInvalid].
// ctx only bounds the caller's wait; an exchange already on the wire runs to completion.
func (s *Session) Refresh(ctx context.Context) error {
	ch := s.group.DoChan("refresh", func() (any, error) {
		return nil, s.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("joined in-flight refresh")
		}
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
	}
}

func (s *Session) refresh(ctx context.Context) error {
	s.mu.RLock()
	current := s.creds.Clone()
	s.mu.RUnlock()

	if !current.HasRefreshToken() {
		s.logger.Warn("no refresh token; session invalidated")
		s.clear()
		return fmt.Errorf("%w: %w", shared.ErrAuthInvalid, shared.ErrNoRefreshToken)
	}

	s.setRefreshing(true)
	defer s.setRefreshing(false)

	src := s.oauth.TokenSource(s.withClient(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		s.logger.Error("token refresh failed", "error", err)
		s.clear()
		return fmt.Errorf("%w: %w", shared.ErrAuthInvalid, err)
	}

	next := models.TokenStoreFromOAuth2(tok)
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if err := s.store(next); err != nil {
		return err
	}
	s.logger.Debug("access token refreshed", "expires_at", next.ExpiresAt)
	return nil
}

// AuthorizedHeader returns a copy of base carrying the bearer token.
//
// When no access token is present the session is cleared and ok is false.
func (s *Session) AuthorizedHeader(base http.Header) (http.Header, bool) {
	s.mu.RLock()
	creds := s.creds
	s.mu.RUnlock()

	if !creds.HasAccessToken() {
		if creds != nil {
			s.clear()
		}
		return nil, false
	}

	h := base.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Authorization", "Bearer "+creds.AccessToken)
	return h, true
}

// State reports the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.refreshing:
		return Refreshing
	case s.creds.HasAccessToken():
		return Authenticated
	default:
		return Unauthenticated
	}
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.HasAccessToken()
}

// Credentials returns a copy of the current tokens, or nil.
func (s *Session) Credentials() *models.TokenStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Clone()
}

// OnAuthChange registers fn to be called with the new value whenever
// IsAuthenticated flips.
func (s *Session) OnAuthChange(fn func(authenticated bool)) func() {
	return s.observers.Add(fn)
}

// Logout clears the stored credentials and cached user id.
func (s *Session) Logout() error {
	if err := s.store(nil); err != nil {
		return err
	}
	if err := s.cache.SetUserID(""); err != nil {
		return fmt.Errorf("failed to clear user id: %w", err)
	}
	s.logger.Info("logged out")
	return nil
}

func (s *Session) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.client)
}

func (s *Session) setRefreshing(v bool) {
	s.mu.Lock()
	s.refreshing = v
	s.mu.Unlock()
}

// store writes ts to the cache and then to memory.
//
// A failed durable write of new tokens leaves memory untouched. Clearing always
// reaches memory.
func (s *Session) store(ts *models.TokenStore) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.cache.SetCredentials(ts)
	if err != nil && ts != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}

	s.mu.Lock()
	was := s.creds.HasAccessToken()
	s.creds = ts.Clone()
	is := s.creds.HasAccessToken()
	s.mu.Unlock()

	if was != is {
		s.observers.Notify(is)
	}
	if err != nil {
		return fmt.Errorf("failed to persist cleared credentials: %w", err)
	}
	return nil
}

func (s *Session) clear() {
	if err := s.store(nil); err != nil {
		s.logger.Error("failed to clear credentials", "error", err)
	}
}
