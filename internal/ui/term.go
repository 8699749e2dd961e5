package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/javiermolinar/cadence/internal/task"
)

// Color definitions for consistent styling across the UI.
var (
	// Headers: bold
	colorHeader = color.New(color.Bold)

	// IDs: cyan so they are easy to pick out and copy
	colorID = color.New(color.FgCyan)

	// Success messages
	colorOK = color.New(color.FgGreen)

	// Muted: for secondary information
	colorMuted = color.New(color.FgWhite, color.Faint)

	// Overdue tasks
	colorAlert = color.New(color.FgRed, color.Bold)
)

// Warning notices are rendered with lipgloss so they stand out as a block.
var (
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")).
			Bold(true)

	warningBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("3")).
			PaddingLeft(1)

	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// termWidth returns the terminal width, or a default if detection fails.
func termWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // sensible default
	}
	return width
}

// DisableColor disables all color output.
func DisableColor() {
	color.NoColor = true
}

// EnableColor enables color output (if terminal supports it).
func EnableColor() {
	color.NoColor = false
}

// formatHeader formats text as a header.
func formatHeader(s string) string {
	return colorHeader.Sprint(s)
}

// formatID formats a task or project ID.
func formatID(s string) string {
	return colorID.Sprint(s)
}

// formatOK formats a success message.
func formatOK(s string) string {
	return colorOK.Sprint(s)
}

// formatMuted formats text as secondary/muted.
func formatMuted(s string) string {
	return colorMuted.Sprint(s)
}

// formatAlert formats text that needs attention.
func formatAlert(s string) string {
	return colorAlert.Sprint(s)
}

func statusSymbol(s task.Status) string {
	switch s {
	case task.StatusPlanned:
		return "○"
	case task.StatusInProgress:
		return "◐"
	case task.StatusDone:
		return "●"
	case task.StatusBlocked:
		return "■"
	case task.StatusCancelled:
		return "✗"
	default:
		return "?"
	}
}
