// Package repositories implements SQLite persistence for the OAuth session and export history.
//
// Tables are created by the embedded migrations in internal/shared.
//
// Key Implementations:
//   - [CredentialRepository] : durable [cache.CredentialCache] backed by a key/value table
//   - [ExportRunRepository] : history of bulk export runs with per-run counts
package repositories
