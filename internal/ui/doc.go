// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI is a playlist editor with five views:
//  1. [PlaylistListView] : Browse the user's playlists, paged in as the cursor nears the end
//  2. [TrackListView] : Edit a playlist's tracks (remove, reorder)
//  3. [SearchView] : Search the catalog and add results to the open playlist
//  4. [RenameView] : Save a new playlist title
//  5. [ExportView] : Monitor a library export and show its summary
//
// Lists never hold state of their own. Each is a projection of a pagination engine from [tasks];
// engines publish snapshots that arrive as messages on a buffered channel, and the model copies the
// engine's latest items into the list on each one.
//
// Remote calls run as tea.Cmds. Results from superseded searches or cancelled requests are dropped
// without touching the view.
//
// Keyboard navigation uses vim-style bindings (j/k, K/J, enter, esc, /, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
