// Package tui is an interactive terminal viewer over a view.Controller.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/preview"
	"github.com/logvision/backend/internal/view"
)

// Fraction of the visible span moved by one pan step.
const panStep = 0.25

const progressInterval = 100 * time.Millisecond

var errStyle = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "1", Dark: "9"})

type loadedMsg struct{ err error }

type progressTickMsg time.Time

// Model renders the controller's snapshots and maps keys to its operations.
type Model struct {
	ctl      *view.Controller
	snap     *view.Snapshot
	help     help.Model
	opts     preview.Options
	selected int
	err      error

	ctx      context.Context
	text     string
	patterns []models.Pattern
}

// New creates a model that loads text with patterns when started. With an
// empty text the controller is shown as is.
func New(ctx context.Context, ctl *view.Controller, text string, patterns []models.Pattern) *Model {
	return &Model{
		ctl:      ctl,
		snap:     ctl.Snapshot(),
		help:     help.New(),
		opts:     preview.DefaultOptions(),
		ctx:      ctx,
		text:     text,
		patterns: patterns,
	}
}

// Run starts the viewer in the alternate screen and blocks until it quits.
func Run(ctx context.Context, ctl *view.Controller, text string, patterns []models.Pattern) error {
	_, err := tea.NewProgram(New(ctx, ctl, text, patterns), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	if m.text == "" {
		return nil
	}
	return tea.Batch(m.load(), doProgressTick())
}

func (m *Model) load() tea.Cmd {
	ctl, ctx, text, patterns := m.ctl, m.ctx, m.text, m.patterns
	return func() tea.Msg {
		return loadedMsg{err: ctl.Load(ctx, text, patterns)}
	}
}

func doProgressTick() tea.Cmd {
	return tea.Tick(progressInterval, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case loadedMsg:
		if msg.err != nil && !errors.Is(msg.err, view.ErrSuperseded) {
			m.err = msg.err
		}
		m.snap = m.ctl.Snapshot()
		return m, nil
	case progressTickMsg:
		m.snap = m.ctl.Snapshot()
		if m.snap.State == view.StateLoading {
			return m, doProgressTick()
		}
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) resize(w, h int) {
	// Border, labels, legend, header and help.
	m.opts.Width = max(10, w-2)
	panels := max(1, len(m.snap.Panels))
	m.opts.Height = max(3, (h-6)/panels-4)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	var err error
	switch {
	case key.Matches(msg, keys.Quit):
		m.ctl.Cancel()
		return tea.Quit
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	case key.Matches(msg, keys.NextSegment):
		err = m.ctl.NextSegment()
	case key.Matches(msg, keys.PrevSegment):
		err = m.ctl.PrevSegment()
	case key.Matches(msg, keys.ZoomIn):
		err = m.ctl.ZoomIn()
	case key.Matches(msg, keys.ZoomOut):
		err = m.ctl.ZoomOut()
	case key.Matches(msg, keys.PanLeft):
		err = m.ctl.Pan(-panStep)
	case key.Matches(msg, keys.PanRight):
		err = m.ctl.Pan(panStep)
	case key.Matches(msg, keys.Reset):
		err = m.ctl.ResetZoom()
	case key.Matches(msg, keys.ChartType):
		next := models.ChartTypeBar
		if m.snap.ChartType == models.ChartTypeBar {
			next = models.ChartTypeLine
		}
		err = m.ctl.SetChartType(next)
	case key.Matches(msg, keys.Highlight):
		if n := len(m.snap.Signals); n > 0 {
			m.selected = (m.selected + 1) % n
		}
	case key.Matches(msg, keys.Toggle):
		if sig, ok := m.selectedSignal(); ok {
			_, err = m.ctl.ToggleSignalVisibility(sig.ID)
		}
	default:
		return nil
	}
	m.err = err
	m.snap = m.ctl.Snapshot()
	return nil
}

func (m *Model) selectedSignal() (models.Signal, bool) {
	if m.selected < 0 || m.selected >= len(m.snap.Signals) {
		return models.Signal{}, false
	}
	return m.snap.Signals[m.selected], true
}

func (m *Model) View() string {
	opts := m.opts
	if sig, ok := m.selectedSignal(); ok {
		opts.Highlight = sig.ID
	}
	blocks := []string{preview.Render(m.snap, opts)}
	if m.err != nil {
		blocks = append(blocks, errStyle.Render("ERROR: "+m.err.Error()))
	}
	blocks = append(blocks, m.help.View(keys))
	return styles.JoinVertical(styles.Left, blocks...)
}
