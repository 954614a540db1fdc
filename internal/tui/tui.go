// Package tui provides a Bubble Tea viewer for termlog log files.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	followOnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	followOffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// refreshInterval is how often the file is re-read in follow mode.
const refreshInterval = 500 * time.Millisecond

type tickMsg time.Time

type loadedMsg struct {
	lines []string
	size  int64
	err   error
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the log viewer.
type Model struct {
	path     string
	maxLines int
	viewport viewport.Model
	lines    []string
	size     int64
	err      error
	follow   bool
	width    int
	height   int
	ready    bool
	loaded   bool
}

// New creates a viewer for the log at path showing at most maxLines lines.
func New(path string, maxLines int) Model {
	return Model{
		path:     path,
		maxLines: maxLines,
		follow:   true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), tick())
}

func (m Model) load() tea.Cmd {
	path, n := m.path, m.maxLines
	return func() tea.Msg {
		lines, size, err := Tail(path, n)
		return loadedMsg{lines: lines, size: size, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "f":
			m.follow = !m.follow
			if m.follow {
				m.viewport.GotoBottom()
			}
			return m, nil
		case "g", "home":
			m.follow = false
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		case "up", "k", "pgup":
			m.follow = false
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.initViewport()
		m.ready = true
		return m, nil

	case tickMsg:
		if m.follow {
			return m, tea.Batch(m.load(), tick())
		}
		return m, tick()

	case loadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.lines, m.size = msg.lines, msg.size
			m.loaded = true
			m.refresh()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  termlog  " + filepath.Base(m.path))

	var content string
	switch {
	case m.err != nil:
		content = errorStyle.Render(m.err.Error())
	case m.loaded && len(m.lines) == 0:
		content = dimStyle.Render("(log is empty)")
	default:
		content = m.viewport.View()
	}

	follow := followOffStyle.Render("follow off")
	if m.follow {
		follow = followOnStyle.Render("following")
	}
	hint := "  ↑/↓ scroll  g/G top/bottom  f follow  q quit  " + follow
	info := fmt.Sprintf("%d lines  %s  %3.0f%%", len(m.lines), humanSize(m.size), m.viewport.ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - lipgloss.Width(info) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + info)

	return lipgloss.JoinVertical(lipgloss.Left, title, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewport() {
	// title(1) + statusBar(1) = 2 fixed rows
	vpHeight := m.height - 2
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport = viewport.New(m.width, vpHeight)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Run starts the viewer for the log at path.
func Run(path string, maxLines int) error {
	p := tea.NewProgram(New(path, maxLines), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
