// Package tasks orchestrates playlist operations on top of the pagination engines.
//
// # Components
//
//  1. [Library] : the signed-in user's playlists
//     - [Library.Login] authorizes, fetches the profile and caches the user id
//     - [Library.Playlists] is the engine backing the playlist list
//
//  2. [Editor] : one playlist's tracks
//     - unavailable tracks are filtered out of every page
//     - writes go to the API first and are mirrored locally on success
//     - a missing playlist is created on the first write that needs it
//
//  3. [Searcher] : track search
//     - each [Searcher.Search] cancels the previous request; late results are dropped
//     - a blank term clears the results
//
//  4. [Exporter] : bulk export
//     - drains playlists and tracks through a shared rate limiter
//     - writes each playlist with a worker pool through package formatter
//     - records the run through a [RunStore] and writes export_manifest.json
//
// # Progress Reporting
//
// [Exporter.Export] sends [ProgressUpdate] values on an optional channel.
// Updates use select with default to prevent blocking.
package tasks
