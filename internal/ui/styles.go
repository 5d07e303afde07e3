package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette - restrained cyan accent over the terminal defaults
const (
	ColorCyan   = "51"  // Primary accent for headers and keys
	ColorWhite  = "255" // Important values
	ColorGray   = "245" // Secondary text, labels
	ColorDark   = "238" // Separators
	ColorRed    = "196" // Errors
	ColorYellow = "220" // Warnings
	ColorGreen  = "40"  // Success
)

// Styles holds the terminal output styles.
type Styles struct {
	Header  lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
}

// DefaultStyles returns styled components for interactive terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorCyan)),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan)),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Key:     lipgloss.NewStyle(),
		Value:   lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
	}
}

// ForTerminal picks styles based on whether stdout is a TTY and whether
// NO_COLOR is set.
func ForTerminal() Styles {
	if os.Getenv("NO_COLOR") != "" {
		return NoColorStyles()
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return DefaultStyles()
	}
	return NoColorStyles()
}
