package models

import (
	"time"

	"golang.org/x/oauth2"
)

var now = time.Now

// TokenResponse is the token endpoint payload for both the authorization_code and
// refresh_token grants. RefreshToken is omitted by some refresh responses.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenStore holds the credentials of an authorized session.
type TokenStore struct {
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// TokenStoreFromOAuth2 converts an [oauth2.Token]. A zero Expiry means no expiry is known.
func TokenStoreFromOAuth2(tok *oauth2.Token) *TokenStore {
	if tok == nil {
		return nil
	}
	ts := &TokenStore{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		at := tok.Expiry.UTC()
		ts.ExpiresAt = &at
	}
	return ts
}

// IsExpired is true only when an expiry is recorded and it is not after now.
func (t *TokenStore) IsExpired() bool {
	if t == nil || t.ExpiresAt == nil {
		return false
	}
	return !t.ExpiresAt.After(now())
}

// Valid reports whether the access token may still be used: it is present and
// either carries no expiry or expires after now.
func (t *TokenStore) Valid() bool {
	return t != nil && t.AccessToken != "" && !t.IsExpired()
}

// HasAccessToken reports whether an access token is present, regardless of expiry.
func (t *TokenStore) HasAccessToken() bool {
	return t != nil && t.AccessToken != ""
}

// HasRefreshToken reports whether a refresh token is present.
func (t *TokenStore) HasRefreshToken() bool {
	return t != nil && t.RefreshToken != ""
}

// Clone returns a deep copy so callers never share the expiry pointer.
func (t *TokenStore) Clone() *TokenStore {
	if t == nil {
		return nil
	}
	c := *t
	if t.ExpiresAt != nil {
		at := *t.ExpiresAt
		c.ExpiresAt = &at
	}
	return &c
}
