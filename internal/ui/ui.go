package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/shared"
	"github.com/desertthunder/stitchr/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	SearchView
	RenameView
	ExportView
)

// loadAhead is how close to the end of a list the cursor gets before the next page is requested.
const loadAhead = 5

// Deps are the collaborators the TUI drives.
type Deps struct {
	Library  *tasks.Library
	Spotify  tasks.Spotify
	Exporter *tasks.Exporter
	Options  tasks.Options
	Export   tasks.ExportOpts
}

// Model represents the TUI application state.
type Model struct {
	ctx  context.Context
	deps Deps
	view ViewState

	width  int
	height int

	playlistList list.Model
	trackList    list.Model
	resultList   list.Model
	input        textinput.Model

	editor   *tasks.Editor
	searcher *tasks.Searcher
	unwatch  []func()
	changes  chan tea.Msg

	progressChan chan tasks.ProgressUpdate
	exportDone   chan exportCompleteMsg
	progress     tasks.ProgressUpdate
	exportResult *tasks.ExportResult
	exportErr    error

	status string
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, deps Deps) *Model {
	input := textinput.New()
	input.CharLimit = 100

	m := &Model{
		ctx:          ctx,
		deps:         deps,
		view:         PlaylistListView,
		playlistList: newList("Spotify Playlists"),
		trackList:    newList("Tracks"),
		resultList:   newList("Results"),
		input:        input,
		changes:      make(chan tea.Msg, 16),
		help:         help.New(),
		keys:         newKeyMap(),
	}
	deps.Library.Playlists().Subscribe(notify[models.Playlist](m.changes, playlistsList))
	return m
}

// notify forwards engine snapshots as [itemsChangedMsg]. Dropped sends are fine
// because the handler always reads the latest items from the engine.
func notify[T any](ch chan<- tea.Msg, kind listKind) func([]T) {
	return func([]T) {
		select {
		case ch <- itemsChangedMsg{kind: kind}:
		default:
		}
	}
}

// Init initializes the TUI by fetching playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.run("load", m.deps.Library.Playlists().Refresh))
}

// run executes fn in the background and reports the result as an [opDoneMsg].
func (m *Model) run(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(m.ctx)}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.changes:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, l := range []*list.Model{&m.playlistList, &m.trackList, &m.resultList} {
			l.SetSize(msg.Width-4, msg.Height-8)
		}
		m.input.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case SearchView:
			return m.handleSearchKeys(msg)
		case RenameView:
			return m.handleRenameKeys(msg)
		case ExportView:
			return m.handleExportKeys(msg)
		}

	case itemsChangedMsg:
		return m, tea.Batch(m.sync(msg.kind), m.waitForChange())

	case opDoneMsg:
		m.handleOpDone(msg)
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case exportCompleteMsg:
		m.exportResult = msg.result
		m.exportErr = msg.err
		m.progressChan = nil
		m.exportDone = nil
		return m, nil
	}

	return m.updateActive(msg)
}

func (m *Model) handleOpDone(msg opDoneMsg) {
	switch {
	case msg.err == nil:
		m.err = nil
		switch msg.op {
		case "add":
			m.status = "Track added"
		case "remove":
			m.status = "Track removed"
		case "rename":
			m.status = "Title saved"
			m.syncTitle()
		}
	case errors.Is(msg.err, shared.ErrStaleResult), errors.Is(msg.err, shared.ErrCancelled):
		// Superseded or abandoned.
	default:
		m.err = fmt.Errorf("%s: %w", msg.op, msg.err)
	}
}

// sync copies the engine's current items into the matching list.
func (m *Model) sync(kind listKind) tea.Cmd {
	switch kind {
	case playlistsList:
		return m.playlistList.SetItems(playlistItems(m.deps.Library.Playlists().Items()))
	case tracksList:
		if m.editor == nil {
			return nil
		}
		return m.trackList.SetItems(trackItems(m.editor.Tracks().Items()))
	case resultsList:
		if m.searcher == nil {
			return nil
		}
		return m.resultList.SetItems(searchItems(m.searcher.Results().Items()))
	}
	return nil
}

func (m *Model) syncTitle() {
	if m.editor == nil {
		return
	}
	if p := m.editor.Playlist(); p != nil {
		m.trackList.Title = p.Name
	}
}

// loadMore requests the next page when the selection is within loadAhead of the end.
func (m *Model) loadMore(kind listKind) tea.Cmd {
	switch kind {
	case playlistsList:
		if m.playlistList.Index() >= len(m.playlistList.Items())-loadAhead {
			return m.run("load", m.deps.Library.Playlists().LoadMoreIfNeeded)
		}
	case tracksList:
		if m.editor != nil && m.trackList.Index() >= len(m.trackList.Items())-loadAhead {
			return m.run("load", m.editor.Tracks().LoadMoreIfNeeded)
		}
	case resultsList:
		if m.searcher != nil && m.resultList.Index() >= len(m.resultList.Items())-loadAhead {
			return m.run("load", m.searcher.LoadMore)
		}
	}
	return nil
}

// openEditor switches to the track view for playlist, which may be nil for a new one.
func (m *Model) openEditor(playlist *models.Playlist) tea.Cmd {
	m.closeEditor()

	m.editor = tasks.NewEditor(m.deps.Spotify, m.deps.Library, playlist, m.deps.Options)
	m.searcher = tasks.NewSearcher(m.deps.Spotify, m.editor.Contains, m.deps.Options)
	m.unwatch = []func(){
		m.editor.Tracks().Subscribe(notify[models.TrackItem](m.changes, tracksList)),
		m.searcher.Results().Subscribe(notify[models.Track](m.changes, resultsList)),
	}

	m.trackList.Title = tasks.DefaultPlaylistName
	m.syncTitle()
	m.trackList.SetItems(nil)
	m.resultList.SetItems(nil)
	m.status = ""
	m.view = TrackListView
	return m.run("load", m.editor.Tracks().Refresh)
}

func (m *Model) closeEditor() {
	for _, fn := range m.unwatch {
		fn()
	}
	m.unwatch = nil
	if m.searcher != nil {
		m.searcher.Close()
	}
	m.editor = nil
	m.searcher = nil
}

func (m *Model) quit() tea.Cmd {
	m.closeEditor()
	return tea.Quit
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			p := pl.playlist
			return m, m.openEditor(&p)
		}
		return m, nil
	case key.Matches(msg, m.keys.create):
		return m, m.openEditor(nil)
	case key.Matches(msg, m.keys.refresh):
		return m, m.run("load", m.deps.Library.Playlists().Refresh)
	case key.Matches(msg, m.keys.export):
		return m, m.startExport()
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, tea.Batch(cmd, m.loadMore(playlistsList))
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	idx := m.trackList.Index()
	editor := m.editor
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.back):
		m.closeEditor()
		m.view = PlaylistListView
		return m, m.run("load", m.deps.Library.Playlists().Refresh)
	case key.Matches(msg, m.keys.search):
		m.view = SearchView
		m.input.Placeholder = "Search tracks"
		m.input.SetValue(m.searcher.Term())
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.rename):
		m.view = RenameView
		m.input.Placeholder = "Playlist title"
		m.input.SetValue("")
		if p := editor.Playlist(); p != nil {
			m.input.SetValue(p.Name)
		}
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.remove):
		if len(m.trackList.Items()) == 0 {
			return m, nil
		}
		return m, m.run("remove", func(ctx context.Context) error { return editor.RemoveTrack(ctx, idx) })
	case key.Matches(msg, m.keys.moveUp):
		if idx == 0 {
			return m, nil
		}
		m.trackList.Select(idx - 1)
		return m, m.run("move", func(ctx context.Context) error { return editor.MoveTrack(ctx, idx, idx-1) })
	case key.Matches(msg, m.keys.moveDown):
		if idx >= len(m.trackList.Items())-1 {
			return m, nil
		}
		m.trackList.Select(idx + 1)
		return m, m.run("move", func(ctx context.Context) error { return editor.MoveTrack(ctx, idx, idx+1) })
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, tea.Batch(cmd, m.loadMore(tracksList))
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.input.Blur()
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.focus):
		if m.input.Focused() {
			m.input.Blur()
			return m, nil
		}
		return m, m.input.Focus()
	case !m.input.Focused() && key.Matches(msg, m.keys.enter):
		tr, ok := m.resultList.SelectedItem().(trackItem)
		if !ok {
			return m, nil
		}
		editor, searcher := m.editor, m.searcher
		return m, m.run("add", func(ctx context.Context) error {
			if err := editor.AddTrack(ctx, tr.track); err != nil {
				return err
			}
			// Search again so the added track is filtered out.
			return searcher.Search(ctx, searcher.Term())
		})
	}

	if !m.input.Focused() {
		var cmd tea.Cmd
		m.resultList, cmd = m.resultList.Update(msg)
		return m, tea.Batch(cmd, m.loadMore(resultsList))
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if term := m.input.Value(); term != before {
		searcher := m.searcher
		return m, tea.Batch(cmd, m.run("search", func(ctx context.Context) error { return searcher.Search(ctx, term) }))
	}
	return m, cmd
}

func (m *Model) handleRenameKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.input.Blur()
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		title := m.input.Value()
		editor := m.editor
		m.input.Blur()
		m.view = TrackListView
		return m, m.run("rename", func(ctx context.Context) error { return editor.SaveTitle(ctx, title) })
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleExportKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.progressChan != nil {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = PlaylistListView
		m.exportResult = nil
		m.exportErr = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	case SearchView:
		if m.input.Focused() {
			m.input, cmd = m.input.Update(msg)
		} else {
			m.resultList, cmd = m.resultList.Update(msg)
		}
	case RenameView:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) startExport() tea.Cmd {
	if m.deps.Exporter == nil {
		m.err = fmt.Errorf("%w: export is not configured", shared.ErrServiceUnavailable)
		return nil
	}
	m.view = ExportView
	m.progress = tasks.ProgressUpdate{Message: "Starting export..."}
	m.exportResult = nil
	m.exportErr = nil
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.exportDone = make(chan exportCompleteMsg, 1)

	prog, done := m.progressChan, m.exportDone
	go func() {
		result, err := m.deps.Exporter.Export(m.ctx, prog, m.deps.Export)
		done <- exportCompleteMsg{result: result, err: err}
		close(prog)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	prog, done := m.progressChan, m.exportDone
	return func() tea.Msg {
		if update, ok := <-prog; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	var keys []key.Binding

	switch m.view {
	case PlaylistListView:
		body = m.playlistList.View()
		keys = []key.Binding{m.keys.enter, m.keys.create, m.keys.refresh, m.keys.export, m.keys.quit}
	case TrackListView:
		body = m.trackList.View()
		keys = []key.Binding{m.keys.search, m.keys.remove, m.keys.moveUp, m.keys.moveDown, m.keys.rename, m.keys.back}
	case SearchView:
		body = fmt.Sprintf("%s\n\n%s", m.input.View(), m.resultList.View())
		keys = []key.Binding{m.keys.focus, m.keys.enter, m.keys.back}
	case RenameView:
		body = fmt.Sprintf("%s\n\n%s", styles.title.Render("Rename playlist"), m.input.View())
		keys = []key.Binding{m.keys.enter, m.keys.back}
	case ExportView:
		body = m.renderExport()
		keys = []key.Binding{m.keys.back, m.keys.quit}
	}

	var footer strings.Builder
	if m.err != nil {
		footer.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		footer.WriteString("\n")
	} else if m.status != "" {
		footer.WriteString(styles.ok.Render(m.status))
		footer.WriteString("\n")
	}
	footer.WriteString(m.help.ShortHelpView(keys))

	return fmt.Sprintf("%s\n\n%s", body, footer.String())
}

func (m *Model) renderExport() string {
	title := styles.title.Render("Exporting Playlists")

	if m.progressChan != nil {
		var phase string
		switch m.progress.Phase {
		case tasks.FetchPlaylists:
			phase = "Listing playlists..."
		case tasks.FetchTracks, tasks.ExportPlaylist:
			phase = fmt.Sprintf("Exporting (%d/%d)", m.progress.Step, m.progress.Total)
		case tasks.WriteManifest:
			phase = "Writing manifest..."
		}
		return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
	}

	if m.exportErr != nil && m.exportResult == nil {
		return styles.err.Render(fmt.Sprintf("Export failed: %v", m.exportErr))
	}
	if m.exportResult == nil {
		return title
	}

	r := m.exportResult
	out := fmt.Sprintf("%s\n\n%s\nOutput: %s\nManifest: %s",
		title,
		styles.ok.Render(fmt.Sprintf("✓ %d/%d playlists exported", r.SuccessfulExports, r.TotalPlaylists)),
		r.OutputDirectory,
		r.ManifestPath,
	)
	if r.FailedExports > 0 {
		out += "\n\n" + styles.warn.Render(fmt.Sprintf("%d failed:", r.FailedExports))
		for _, res := range r.Results {
			if !res.Success {
				out += fmt.Sprintf("\n  • %s: %v", res.PlaylistName, res.Error)
			}
		}
	}
	if m.exportErr != nil {
		out += "\n\n" + styles.err.Render(m.exportErr.Error())
	}
	return out
}
