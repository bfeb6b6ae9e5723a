package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	TaskCursor = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	TaskTitle  = lipgloss.NewStyle().Foreground(Primary)
	TaskDone   = lipgloss.NewStyle().Foreground(Secondary).Strikethrough(true)
	// soft-deleted tasks fade out until they are gone
	TaskDeleted = lipgloss.NewStyle().Foreground(Faded).Strikethrough(true).Italic(true)

	TaskDivider = lipgloss.NewStyle().Foreground(Faded).Padding(0, 1).Render("∙")
	TaskDue     = lipgloss.NewStyle().Foreground(Blue)
	TaskOverdue = lipgloss.NewStyle().Foreground(Red)

	Placeholder = lipgloss.NewStyle().Foreground(Faded).Padding(0, 3)
	Help        = lipgloss.NewStyle().Foreground(Faded).Padding(1, 1)
	Failure     = lipgloss.NewStyle().Foreground(Red).Padding(0, 1)
)

// Checkbox renders the completion mark in the theme color of the list
func Checkbox(done bool, theme lipgloss.Color) string {
	s := lipgloss.NewStyle().Foreground(theme)
	if done {
		return s.Render("[x]")
	}
	return s.Render("[ ]")
}
