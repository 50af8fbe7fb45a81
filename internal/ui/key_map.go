package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	next    key.Binding
	prev    key.Binding
	submit  key.Binding
	toggle  key.Binding
	refresh key.Binding
	export  key.Binding
	logout  key.Binding
	quit    key.Binding
	forceQ  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next")),
		prev:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous")),
		submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		toggle:  key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "login/sign up")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		export:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export pdf")),
		logout:  key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "logout")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		forceQ:  key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.next, k.prev},
		{k.submit, k.toggle, k.refresh, k.export},
		{k.logout, k.quit},
	}
}
