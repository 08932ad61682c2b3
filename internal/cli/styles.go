package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#1E6FB8") // Voxdose blue
	accentColor  = lipgloss.Color("#FFA500") // Orange
	mutedColor   = lipgloss.Color("#888888") // Gray
	textColor    = lipgloss.Color("#FFFFFF") // White
	errorColor   = lipgloss.Color("#A40000") // Red
)

// Styles
var (
	// Title style - bold blue
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	FprintVersion(os.Stdout, version)
}

// FprintVersion writes version information to w
func FprintVersion(w io.Writer, version string) {
	fmt.Fprintln(w, TitleStyle.Render("Voxdose 🗣"))
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Fprintln(w)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a non-fatal problem with one input file
func PrintWarning(file, message string) {
	fmt.Fprintf(os.Stderr, "%s %s: %s\n", ErrorStyle.Render("Warning:"), file, message)
}
