// Package tui renders the side chat panel, step controls and topic split
// banner as bubbletea components.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#7D56F4")
	muted  = lipgloss.Color("#888888")
	warn   = lipgloss.Color("#FFB000")
	danger = lipgloss.Color("#FF4444")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	stepQuoteStyle = lipgloss.NewStyle().
			Foreground(muted).
			Italic(true).
			BorderLeft(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(muted).
			PaddingLeft(1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0E0E0"))

	youLabelStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(muted)

	busyStyle = lipgloss.NewStyle().
			Foreground(warn)

	errorStyle = lipgloss.NewStyle().
			Foreground(danger)

	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(warn).
			Padding(0, 1)

	barFullStyle  = lipgloss.NewStyle().Foreground(warn)
	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
)
