package ui

import (
	"github.com/desertthunder/stitchr/internal/tasks"
)

// listKind names the engine-backed lists.
type listKind int

const (
	playlistsList listKind = iota
	tracksList
	resultsList
)

// itemsChangedMsg is sent when an engine publishes a new snapshot.
type itemsChangedMsg struct {
	kind listKind
}

// opDoneMsg reports the end of a background operation.
type opDoneMsg struct {
	op  string
	err error
}

type progressUpdateMsg tasks.ProgressUpdate

type exportCompleteMsg struct {
	result *tasks.ExportResult
	err    error
}
