package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	UnfocusMessage key.Binding
	FocusMessage   key.Binding
	SubmitMessage  key.Binding
	ScrollUp       key.Binding
	ScrollDown     key.Binding

	NewConversation   key.Binding
	ListConversations key.Binding
	DismissError      key.Binding

	Help key.Binding
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	UnfocusMessage: key.NewBinding(
		key.WithKeys("esc", "ctrl+g"),
		key.WithHelp("esc", "scroll mode"),
	),
	FocusMessage: key.NewBinding(
		key.WithKeys("enter", "i"),
		key.WithHelp("enter", "write"),
	),
	SubmitMessage: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "send"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("shift+pgup", "pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("shift+pgdown", "pgdown"),
		key.WithHelp("pgdown", "scroll down"),
	),
	NewConversation: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "new conversation"),
	),
	ListConversations: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "conversations"),
	),
	DismissError: key.NewBinding(
		key.WithKeys("esc", "enter"),
		key.WithHelp("esc", "dismiss error"),
	),
	Help: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("f1", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SubmitMessage, k.UnfocusMessage, k.FocusMessage, k.DismissError, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SubmitMessage, k.UnfocusMessage, k.FocusMessage, k.DismissError},
		{k.ScrollUp, k.ScrollDown},
		{k.NewConversation, k.ListConversations},
		{k.Help, k.Quit},
	}
}
