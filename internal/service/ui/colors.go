package ui

import "github.com/charmbracelet/lipgloss"

// ANSI colors only, so the palette follows the user's terminal theme.
var (
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)

	ReplyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))

	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)
