package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

const (
	green  = lipgloss.Color("#1DB954")
	bright = lipgloss.Color("#1ED760")
	red    = lipgloss.Color("#E22134")
	amber  = lipgloss.Color("#FFA42B")
	muted  = lipgloss.Color("#727272")
	ink    = lipgloss.Color("#121212")
)

var styles = newPalette()

// palette holds the named styles used by every view.
type palette struct {
	title    lipgloss.Style
	listHead lipgloss.Style
	ok       lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	help     lipgloss.Style
}

func newPalette() *palette {
	return &palette{
		title:    lipgloss.NewStyle().Foreground(green).Bold(true).MarginBottom(1),
		listHead: lipgloss.NewStyle().Foreground(ink).Background(green).Bold(true).Padding(0, 1),
		ok:       lipgloss.NewStyle().Foreground(bright).Bold(true),
		err:      lipgloss.NewStyle().Foreground(red).Bold(true),
		warn:     lipgloss.NewStyle().Foreground(amber),
		help:     lipgloss.NewStyle().Foreground(muted).Italic(true),
	}
}

// delegate renders list rows with the selection marked in green.
func (p *palette) delegate() list.DefaultDelegate {
	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.Foreground(green).BorderLeftForeground(green)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.Foreground(bright).BorderLeftForeground(green)
	d.Styles.DimmedDesc = d.Styles.DimmedDesc.Foreground(muted)
	return d
}
