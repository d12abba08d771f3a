// internal/report/theme.go

package report

import "github.com/charmbracelet/lipgloss"

const (
	colorText    lipgloss.Color = "#cdd6f4"
	colorSubtext lipgloss.Color = "#a6adc8"
	colorOverlay lipgloss.Color = "#7f849c"
	colorGreen   lipgloss.Color = "#a6e3a1"
	colorYellow  lipgloss.Color = "#f9e2af"
	colorPeach   lipgloss.Color = "#fab387"
	colorRed     lipgloss.Color = "#f38ba8"
	colorBlue    lipgloss.Color = "#89b4fa"
)

var (
	styleTitle   = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	styleLabel   = lipgloss.NewStyle().Foreground(colorOverlay)
	styleValue   = lipgloss.NewStyle().Foreground(colorText)
	styleDim     = lipgloss.NewStyle().Foreground(colorSubtext)
	styleOK      = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	styleJank    = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	styleTimeout = lipgloss.NewStyle().Foreground(colorPeach).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorOverlay).
			Padding(0, 1)
)
