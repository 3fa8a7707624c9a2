package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/core-tools/hsu-micromanage/pkg/workers"
)

var (
	panelBorder     = lipgloss.Color("#2D6A80")
	accentPrimary   = lipgloss.Color("#50E3C2")
	accentSecondary = lipgloss.Color("#F6AE2D")
	mutedText       = lipgloss.Color("#8CA1AE")
	warningText     = lipgloss.Color("#FF6B6B")
	highlightBG     = lipgloss.Color("#1F5F3F")
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(panelBorder)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentPrimary)

	selectedItemStyle = lipgloss.NewStyle().
				Bold(true).
				Background(highlightBG).
				Foreground(lipgloss.Color("#FFFFFF"))

	itemStyle = lipgloss.NewStyle()

	stoppedItemStyle = lipgloss.NewStyle().
				Foreground(mutedText)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(mutedText).
				Italic(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(accentSecondary).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(warningText).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedText)
)

// stateMarker is the one-character state column of the process list.
func stateMarker(state workers.ProcessState) string {
	switch state {
	case workers.ProcessStateRunning:
		return lipgloss.NewStyle().Foreground(accentPrimary).Render("●")
	case workers.ProcessStateStopping:
		return lipgloss.NewStyle().Foreground(accentSecondary).Render("◐")
	case workers.ProcessStateFailedStart:
		return lipgloss.NewStyle().Foreground(warningText).Render("✗")
	case workers.ProcessStateExited:
		return lipgloss.NewStyle().Foreground(mutedText).Render("○")
	default:
		return lipgloss.NewStyle().Foreground(mutedText).Render("·")
	}
}
