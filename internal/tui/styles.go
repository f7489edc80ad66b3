package tui

import "github.com/charmbracelet/lipgloss"

const (
	primaryColor   = "#7C3AED" // Purple
	secondaryColor = "#10B981" // Green
	warningColor   = "#F59E0B" // Amber
	errorColor     = "#EF4444" // Red
	dimColor       = "#6B7280" // Gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	sentNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor)).
			Bold(true)

	receivedNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(primaryColor)).
				Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2937")).
			Foreground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(0, 1)
)
