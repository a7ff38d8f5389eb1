package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	modal       lipgloss.Style
	cursor      lipgloss.Style
	runActive   lipgloss.Style
	runIdle     lipgloss.Style
	stepActive  lipgloss.Style
	stepIdle    lipgloss.Style
	stepError   lipgloss.Style
	collapsed   lipgloss.Style
	label       lipgloss.Style
	value       lipgloss.Style
	tokens      lipgloss.Style
	stepCost    lipgloss.Style
	totalCost   lipgloss.Style
	result      lipgloss.Style
	errorBadge  lipgloss.Style
	code        lipgloss.Style
	output      lipgloss.Style
	muted       lipgloss.Style
	placeholder lipgloss.Style

	reasoningBorder lipgloss.Color
	finalBorder     lipgloss.Color
}

func newTheme() theme {
	blue := lipgloss.Color("#7aa2f7")
	border := lipgloss.Color("#555555")
	muted := lipgloss.Color("#888888")
	text := lipgloss.Color("#e2e2e2")

	return theme{
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border),
		panelTitle: lipgloss.NewStyle().Foreground(muted).Bold(true),
		modal: lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			Background(lipgloss.Color("#1a1a2e")).
			Padding(0, 1),
		cursor:      lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(blue),
		runActive:   lipgloss.NewStyle().Foreground(blue),
		runIdle:     lipgloss.NewStyle().Foreground(muted),
		stepActive:  lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b")),
		stepIdle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#cccccc")),
		stepError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")),
		collapsed:   lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		label:       lipgloss.NewStyle().Foreground(muted),
		value:       lipgloss.NewStyle().Foreground(text),
		tokens:      lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd")),
		stepCost:    lipgloss.NewStyle().Foreground(lipgloss.Color("#f1fa8c")),
		totalCost:   lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b")),
		result:      lipgloss.NewStyle().Foreground(lipgloss.Color("#bd93f9")),
		errorBadge:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")).Bold(true),
		code:        lipgloss.NewStyle().Foreground(text),
		output:      lipgloss.NewStyle().Foreground(lipgloss.Color("#a8e6a3")),
		muted:       lipgloss.NewStyle().Foreground(border),
		placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),

		reasoningBorder: lipgloss.Color("#bd93f9"),
		finalBorder:     lipgloss.Color("#50fa7b"),
	}
}

