// Package tui provides a live terminal dashboard for the probed streams.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for
// styling. It shows one row per stream: reachability, codec, resolution,
// frame rate, bitrate and the failure streak.
package tui

import "github.com/charmbracelet/lipgloss"

// Colors based on a modern dark theme
var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red

	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

var (
	baseStyle = lipgloss.NewStyle().
			Foreground(colorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)

	statusUp = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusFlaky = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusDown = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)
