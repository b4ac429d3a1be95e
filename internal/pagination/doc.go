// Package pagination implements a generic cursor pager over remote collections.
//
// An [Engine] asks its fetch function for windows of BatchSize items, starting at
// offset 0 on [Engine.Refresh] and at the cursor on [Engine.LoadMoreIfNeeded].
// Exhaustion and cursor movement are decided from the raw page; the optional
// filter runs afterwards, so filtering never affects pagination progress.
//
// Engines are safe for concurrent use. A Refresh supersedes any fetch still in
// flight: results that arrive for an older generation are discarded and reported
// as [shared.ErrStaleResult]. Observers receive a copy of the full item list after
// every mutation, in mutation order.
package pagination
