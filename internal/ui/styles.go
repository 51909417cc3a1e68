package ui

import "github.com/charmbracelet/lipgloss"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	TitleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	PaginationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	DocStyle = lipgloss.NewStyle().
			Margin(1, 2)

	InfoStyle = lipgloss.NewStyle().
			Foreground(subtle).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(highlight).
			Padding(0, 1)

	CheckMark = lipgloss.NewStyle().SetString("✓").
			Foreground(special).
			PaddingRight(1).
			String()

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("40"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)
