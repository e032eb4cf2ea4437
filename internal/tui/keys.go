package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextSegment key.Binding
	PrevSegment key.Binding
	ZoomIn      key.Binding
	ZoomOut     key.Binding
	PanLeft     key.Binding
	PanRight    key.Binding
	Reset       key.Binding
	ChartType   key.Binding
	Highlight   key.Binding
	Toggle      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help, k.ZoomIn, k.ZoomOut, k.NextSegment}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Help},
		{k.ZoomIn, k.ZoomOut, k.PanLeft, k.PanRight, k.Reset},
		{k.NextSegment, k.PrevSegment, k.ChartType},
		{k.Highlight, k.Toggle},
	}
}

var keys = keyMap{
	NextSegment: key.NewBinding(
		key.WithKeys("n", "]"),
		key.WithHelp("n", "next segment"),
	),
	PrevSegment: key.NewBinding(
		key.WithKeys("p", "["),
		key.WithHelp("p", "prev segment"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "zoom out"),
	),
	PanLeft: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "pan left"),
	),
	PanRight: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "pan right"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r", "0"),
		key.WithHelp("r", "reset zoom"),
	),
	ChartType: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "line/bar"),
	),
	Highlight: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "highlight"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("v", " "),
		key.WithHelp("v/space", "show/hide"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q/ctrl+c", "quit"),
	),
}
