package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the capture UI.
var (
	ColorRed    = lipgloss.Color("#FF5555")
	ColorGreen  = lipgloss.Color("#50FA7B")
	ColorYellow = lipgloss.Color("#F1FA8C")
	ColorCyan   = lipgloss.Color("#8BE9FD")
	ColorGray   = lipgloss.Color("#666666")
	ColorWhite  = lipgloss.Color("#F8F8F2")
)

// Base styles reused by the screen renderers.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	InstructionStyle = lipgloss.NewStyle().
				Foreground(ColorWhite)

	HintStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	RecordingDotStyle = lipgloss.NewStyle().
				Foreground(ColorRed).
				Bold(true)

	AcceptedStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	WarnStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ProgressStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	ScreenStyle = lipgloss.NewStyle().
			Padding(1, 2)
)
