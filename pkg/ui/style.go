package ui

import "github.com/charmbracelet/lipgloss"

type Style struct {
	UserMessage      lipgloss.Style
	AssistantMessage lipgloss.Style
	ErrorMessage     lipgloss.Style
	FocusedInput     lipgloss.Style
	UnfocusedInput   lipgloss.Style

	Header      lipgloss.Style
	Role        lipgloss.Style
	Tools       lipgloss.Style
	UploadInfo  lipgloss.Style
	UploadOK    lipgloss.Style
	UploadError lipgloss.Style
}

type BorderColors struct {
	Unselected string
	Selected   string
	Focused    string
	Error      string
}

func DefaultStyles() *Style {
	lightModeColors := BorderColors{
		Unselected: "#CCCCCC",
		Selected:   "#FFB6C1", // Light pink
		Focused:    "#FFFF99", // Light yellow
		Error:      "#E06C75",
	}

	darkModeColors := BorderColors{
		Unselected: "#444444",
		Selected:   "#DD7090",
		Focused:    "#DDDD77",
		Error:      "#BE5046",
	}

	color := func(pick func(BorderColors) string) lipgloss.AdaptiveColor {
		return lipgloss.AdaptiveColor{
			Light: pick(lightModeColors),
			Dark:  pick(darkModeColors),
		}
	}
	unselected := color(func(c BorderColors) string { return c.Unselected })
	selected := color(func(c BorderColors) string { return c.Selected })
	focused := color(func(c BorderColors) string { return c.Focused })
	errorColor := color(func(c BorderColors) string { return c.Error })

	return &Style{
		UserMessage: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			BorderForeground(selected),
		AssistantMessage: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			BorderForeground(unselected),
		ErrorMessage: lipgloss.NewStyle().Border(lipgloss.ThickBorder()).
			Padding(0, 1).
			BorderForeground(errorColor),
		FocusedInput: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			BorderForeground(focused),
		UnfocusedInput: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			BorderForeground(unselected),

		Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Role:   lipgloss.NewStyle().Bold(true),
		Tools:  lipgloss.NewStyle().Italic(true).Foreground(unselected),
		UploadInfo: lipgloss.NewStyle().Padding(0, 1).
			Foreground(focused),
		UploadOK: lipgloss.NewStyle().Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#98C379"}),
		UploadError: lipgloss.NewStyle().Padding(0, 1).
			Foreground(errorColor),
	}
}
