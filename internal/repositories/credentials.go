package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/desertthunder/stitchr/internal/cache"
	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/shared"
)

const (
	keyCredentials = "spotify.credentials"
	keyUserID      = "spotify.user_id"
)

// CredentialRepository implements [cache.CredentialCache] on the credentials table.
//
// Writes are synchronous; SetCredentials returns only after the row is committed
// and observers have run.
type CredentialRepository struct {
	db        *sql.DB
	mu        sync.Mutex
	observers shared.Observers[*models.TokenStore]
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Credentials returns the stored session, or nil when none is stored.
func (r *CredentialRepository) Credentials() (*models.TokenStore, error) {
	raw, ok, err := getValue(context.Background(), r.db, keyCredentials)
	if err != nil || !ok {
		return nil, err
	}

	var ts models.TokenStore
	if err := json.Unmarshal([]byte(raw), &ts); err != nil {
		return nil, fmt.Errorf("%w: stored credentials: %v", shared.ErrDecode, err)
	}
	return &ts, nil
}

// SetCredentials stores ts, or deletes the stored session when ts is nil.
func (r *CredentialRepository) SetCredentials(ts *models.TokenStore) error {
	r.mu.Lock()
	err := r.write(ts)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.observers.Notify(ts.Clone())
	return nil
}

func (r *CredentialRepository) write(ts *models.TokenStore) error {
	ctx := context.Background()
	if ts == nil {
		return deleteValue(ctx, r.db, keyCredentials)
	}

	data, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return putValue(ctx, r.db, keyCredentials, string(data))
}

// UserID returns the cached Spotify user id, or "".
func (r *CredentialRepository) UserID() (string, error) {
	id, _, err := getValue(context.Background(), r.db, keyUserID)
	return id, err
}

// SetUserID caches the Spotify user id; "" removes it.
func (r *CredentialRepository) SetUserID(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		return deleteValue(context.Background(), r.db, keyUserID)
	}
	return putValue(context.Background(), r.db, keyUserID, id)
}

// Subscribe registers fn for credential changes.
func (r *CredentialRepository) Subscribe(fn func(*models.TokenStore)) func() {
	return r.observers.Add(fn)
}

var _ cache.CredentialCache = (*CredentialRepository)(nil)
