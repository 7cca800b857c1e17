package report

import "github.com/charmbracelet/lipgloss"

// Styles degrade to plain text when the output is not a terminal.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
)

// Success styles a positive status line.
func Success(s string) string { return successStyle.Render(s) }

// Warning styles a warning line.
func Warning(s string) string { return warningStyle.Render(s) }

// Failure styles an error line.
func Failure(s string) string { return errorStyle.Render(s) }

// Note styles secondary information.
func Note(s string) string { return noteStyle.Render(s) }
