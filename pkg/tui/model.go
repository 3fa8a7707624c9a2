package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/core-tools/hsu-micromanage/pkg/logging"
	"github.com/core-tools/hsu-micromanage/pkg/workers"
)

const (
	// TickInterval is how often the screen polls the supervisor.
	TickInterval = 100 * time.Millisecond

	listWidthPercent = 20
	minListWidth     = 14
)

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// Controller is the part of the supervisor the screen reads and drives.
type Controller interface {
	Names() []string
	States() []workers.ProcessState
	Selected() (int, bool)
	SelectedSnapshot() ([]string, bool)

	Next()
	Previous()
	Unselect()
	Run(index int) error
	Kill(index int) error
	Restart(index int) error
	KillAll() error
}

// Model is the supervisor screen: a process list on the left and the
// selected process's output on the right.
type Model struct {
	controller Controller
	logger     logging.Logger

	keys   keyMap
	help   help.Model
	output viewport.Model

	width  int
	height int
	ready  bool

	// follow keeps the output pane pinned to the newest line.
	follow       bool
	lastSelected int
	hadSelection bool

	status   string
	lastErr  error
	quitting bool
}

// New creates the screen model.
func New(controller Controller, logger logging.Logger) Model {
	return Model{
		controller: controller,
		logger:     logger,
		keys:       defaultKeyMap(),
		help:       help.New(),
		output:     viewport.New(0, 0),
		width:      80,
		height:     24,
		follow:     true,
	}
}

// Run shows the screen until the user quits or ctx ends. Every process is
// interrupted before it returns.
func Run(ctx context.Context, controller Controller, logger logging.Logger) error {
	program := tea.NewProgram(
		New(controller, logger),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := program.Run()
	if killErr := controller.KillAll(); killErr != nil {
		logger.Errorf("Failed to interrupt some processes on exit: %v", killErr)
	}
	if err != nil && ctx.Err() != nil {
		// Cancellation is a normal way out.
		return nil
	}
	return err
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.refresh()
		return m, nil

	case TickMsg:
		m.refresh()
		return m, tickCmd()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if err := m.controller.KillAll(); err != nil {
			m.logger.Errorf("Failed to interrupt some processes: %v", err)
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Next):
		m.controller.Next()
	case key.Matches(msg, m.keys.Previous):
		m.controller.Previous()
	case key.Matches(msg, m.keys.Unselect):
		m.controller.Unselect()

	case key.Matches(msg, m.keys.Run):
		m.act("started", m.controller.Run)
	case key.Matches(msg, m.keys.Kill):
		m.act("interrupted", m.controller.Kill)
	case key.Matches(msg, m.keys.Restart):
		m.act("restarted", m.controller.Restart)

	case key.Matches(msg, m.keys.ScrollUp):
		m.output.ViewUp()
		m.follow = false
		return m, nil
	case key.Matches(msg, m.keys.ScrollDown):
		m.output.ViewDown()
		m.follow = m.output.AtBottom()
		return m, nil
	case key.Matches(msg, m.keys.Follow):
		m.follow = true
		m.output.GotoBottom()
		return m, nil

	default:
		return m, nil
	}

	m.refresh()
	return m, nil
}

// act applies an indexed control operation to the selected process. It
// does nothing when no process is selected.
func (m *Model) act(verb string, op func(int) error) {
	index, ok := m.controller.Selected()
	if !ok {
		return
	}

	name := m.nameAt(index)
	if err := op(index); err != nil {
		m.lastErr = err
		m.status = ""
		m.logger.Warnf("Action on %s failed: %v", name, err)
		return
	}
	m.lastErr = nil
	m.status = name + " " + verb
	if verb != "interrupted" {
		m.follow = true
	}
}

func (m Model) nameAt(index int) string {
	names := m.controller.Names()
	if index < 0 || index >= len(names) {
		return ""
	}
	return names[index]
}

// layout sizes the output pane from the window size.
func (m *Model) layout() {
	_, outputWidth, panelHeight := m.dimensions()
	m.output.Width = max(outputWidth-2, 1)
	// Border plus the title row.
	m.output.Height = max(panelHeight-3, 1)
	m.help.Width = m.width
}

// dimensions returns the list width, output width and panel height.
func (m Model) dimensions() (int, int, int) {
	listWidth := m.width * listWidthPercent / 100
	if listWidth < minListWidth {
		listWidth = minListWidth
	}
	if listWidth > m.width {
		listWidth = m.width
	}
	// Status and help rows sit below the panels.
	panelHeight := max(m.height-2, 3)
	return listWidth, m.width - listWidth, panelHeight
}

// refresh reloads the output pane from the selected process's log.
func (m *Model) refresh() {
	index, selected := m.controller.Selected()
	if selected != m.hadSelection || index != m.lastSelected {
		m.follow = true
		m.lastSelected, m.hadSelection = index, selected
	}

	lines, ok := m.controller.SelectedSnapshot()
	if !ok {
		m.output.SetContent(placeholderStyle.Render(placeholderText))
		m.output.GotoTop()
		return
	}

	m.output.SetContent(wrapLines(lines, m.output.Width))
	if m.follow {
		m.output.GotoBottom()
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
