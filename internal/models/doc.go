// Package models defines the Spotify Web API entities consumed by stitchr and the
// session credential value persisted between runs.
//
// Wire types mirror the API's snake_case JSON and decode timestamps as ISO-8601.
// Collection endpoints share the generic [Paging] envelope.
//
// [TokenStore] is the in-memory and durable representation of an OAuth session.
// It is written through to a credential cache on every change.
package models
