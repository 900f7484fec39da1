package ui

import "github.com/charmbracelet/lipgloss"

// ANSI 256-color codes for the lime-green theme the TUI renderer uses,
// inspired by asitop's single-accent-color terminal dashboards.
const (
	colorLime     = "154" // primary accent (#AFFF00)
	colorLimeDim  = "106" // dimmed lime for inactive/borders
	colorWhite    = "255"
	colorGray     = "245"
	colorDarkGray = "238"
	colorRed      = "196"
	colorYellow   = "220"
)

// Styles holds every lipgloss style the TUI and status renderers use.
type Styles struct {
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Stage    lipgloss.Style
	Active   lipgloss.Style
	Progress lipgloss.Style

	Border    lipgloss.Style
	Panel     lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style
	Label     lipgloss.Style
}

// DefaultStyles returns the colored lime-green theme.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime)),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorLime)),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
		Stage:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorLimeDim)),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime)),
		Progress: lipgloss.NewStyle().Foreground(lipgloss.Color(colorLime)),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorDarkGray)).
			Padding(0, 1),
		Sparkline: lipgloss.NewStyle().Foreground(lipgloss.Color(colorLime)),
		Speed:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
	}
}

// NoColorStyles returns every style unstyled, for --no-color and non-TTY
// plain mode.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Success: plain, Warning: plain, Error: plain,
		Dim: plain, Stage: plain, Active: plain, Progress: plain,
		Border: plain, Panel: plain, Sparkline: plain, Speed: plain, Label: plain,
	}
}

// GetStyles picks DefaultStyles or NoColorStyles based on noColor.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
