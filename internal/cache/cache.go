// Package cache defines the durable credential store consumed by the OAuth session
// and an in-memory implementation used for ephemeral sessions and tests.
//
// The SQLite-backed implementation lives in internal/repositories.
package cache

import (
	"sync"

	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/shared"
)

// CredentialCache persists the session [models.TokenStore] and the signed-in user's id.
//
// SetCredentials(nil) clears the stored credentials. Observers registered with
// Subscribe are invoked synchronously by every successful SetCredentials.
type CredentialCache interface {
	Credentials() (*models.TokenStore, error)
	SetCredentials(*models.TokenStore) error
	UserID() (string, error)
	SetUserID(string) error
	Subscribe(func(*models.TokenStore)) (unsubscribe func())
}

// MemoryCache is a [CredentialCache] that keeps everything in process memory.
type MemoryCache struct {
	mu        sync.RWMutex
	creds     *models.TokenStore
	userID    string
	observers shared.Observers[*models.TokenStore]
}

// NewMemoryCache returns a cache seeded with creds, which may be nil.
func NewMemoryCache(creds *models.TokenStore) *MemoryCache {
	return &MemoryCache{creds: creds.Clone()}
}

func (c *MemoryCache) Credentials() (*models.TokenStore, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.Clone(), nil
}

func (c *MemoryCache) SetCredentials(ts *models.TokenStore) error {
	c.mu.Lock()
	c.creds = ts.Clone()
	c.mu.Unlock()

	c.observers.Notify(ts.Clone())
	return nil
}

func (c *MemoryCache) UserID() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, nil
}

func (c *MemoryCache) SetUserID(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = id
	return nil
}

func (c *MemoryCache) Subscribe(fn func(*models.TokenStore)) func() {
	return c.observers.Add(fn)
}

var _ CredentialCache = (*MemoryCache)(nil)
