package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines key bindings shared by the TUI views in this package.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
