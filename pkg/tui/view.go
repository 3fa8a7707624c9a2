package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/core-tools/hsu-micromanage/pkg/workers"
)

const (
	listTitle       = "Micro Manage"
	outputTitle     = "output"
	placeholderText = "Please select a process"
	highlightSymbol = ">>"
)

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	panels := lipgloss.JoinHorizontal(lipgloss.Top, m.renderList(), m.renderOutput())
	return lipgloss.JoinVertical(lipgloss.Left,
		panels,
		m.renderStatus(),
		helpStyle.Render(m.help.View(m.keys)),
	)
}

func (m Model) renderList() string {
	listWidth, _, panelHeight := m.dimensions()
	inner := max(listWidth-2, 1)

	names := m.controller.Names()
	states := m.controller.States()
	selected, hasSelection := m.controller.Selected()

	rows := []string{panelTitleStyle.Render(ansi.Truncate(listTitle, inner, ""))}
	for i, name := range names {
		isSelected := hasSelection && i == selected
		prefix := strings.Repeat(" ", len(highlightSymbol))
		if isSelected {
			prefix = highlightSymbol
		}

		state := workers.ProcessStateIdle
		if i < len(states) {
			state = states[i]
		}
		marker := stateMarker(state)
		style := listItemStyle(state, isSelected)
		// Prefix, space, marker, space.
		label := ansi.Truncate(name, max(inner-len(highlightSymbol)-3, 1), "…")
		rows = append(rows, prefix+" "+marker+" "+style.Render(label))
	}

	return panelStyle.
		Width(inner).
		Height(panelHeight - 2).
		MaxHeight(panelHeight).
		Render(strings.Join(rows, "\n"))
}

// listItemStyle mutes processes that are not running.
func listItemStyle(state workers.ProcessState, selected bool) lipgloss.Style {
	switch {
	case selected:
		return selectedItemStyle
	case !state.Live():
		return stoppedItemStyle
	default:
		return itemStyle
	}
}

func (m Model) renderOutput() string {
	_, outputWidth, panelHeight := m.dimensions()
	inner := max(outputWidth-2, 1)

	title := outputTitle
	if index, ok := m.controller.Selected(); ok {
		title = fmt.Sprintf("%s: %s", outputTitle, m.nameAt(index))
		if states := m.controller.States(); index < len(states) {
			title += fmt.Sprintf(" (%s)", states[index])
		}
		if !m.follow {
			title += fmt.Sprintf(" %3.f%%", m.output.ScrollPercent()*100)
		}
	}

	content := panelTitleStyle.Render(ansi.Truncate(title, inner, "…")) + "\n" + m.output.View()
	return panelStyle.
		Width(inner).
		Height(panelHeight - 2).
		MaxHeight(panelHeight).
		Render(content)
}

func (m Model) renderStatus() string {
	if m.lastErr != nil {
		return errorStyle.Render(ansi.Truncate("error: "+m.lastErr.Error(), max(m.width, 1), "…"))
	}
	if m.status != "" {
		return statusStyle.Render(ansi.Truncate(m.status, max(m.width, 1), "…"))
	}
	return ""
}

// wrapLines strips terminal escapes from process output and wraps it to
// width. Process output is untrusted and may move the cursor otherwise.
func wrapLines(lines []string, width int) string {
	if width < 1 {
		width = 1
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		line = strings.ReplaceAll(ansi.Strip(line), "\t", "    ")
		b.WriteString(ansi.Wrap(line, width, ""))
	}
	return b.String()
}
