package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the key bindings of the supervisor screen.
type keyMap struct {
	Previous   key.Binding
	Next       key.Binding
	Unselect   key.Binding
	Run        key.Binding
	Kill       key.Binding
	Restart    key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Follow     key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Previous: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "previous"),
		),
		Next: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next"),
		),
		Unselect: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "unselect"),
		),
		Run: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		Kill: key.NewBinding(
			key.WithKeys("k"),
			key.WithHelp("k", "kill"),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "restart"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup", "left"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown", "right"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Follow: key.NewBinding(
			key.WithKeys("end", "f"),
			key.WithHelp("f", "follow"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Previous, k.Next, k.Run, k.Kill, k.Restart, k.ScrollUp, k.ScrollDown, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Previous, k.Next, k.Unselect},
		{k.Run, k.Kill, k.Restart},
		{k.ScrollUp, k.ScrollDown, k.Follow, k.Quit},
	}
}
