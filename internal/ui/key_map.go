package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	back     key.Binding
	search   key.Binding
	remove   key.Binding
	moveUp   key.Binding
	moveDown key.Binding
	rename   key.Binding
	create   key.Binding
	export   key.Binding
	refresh  key.Binding
	focus    key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		remove:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
		moveUp:   key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
		moveDown: key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
		rename:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "title")),
		create:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		export:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		focus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "results")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.search, k.remove, k.moveUp, k.moveDown},
		{k.rename, k.create, k.export, k.refresh, k.quit},
	}
}
