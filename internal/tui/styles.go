package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/codepad/internal/shell"
)

var (
	// Header - bold black on cyan
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)
)

// styleFor picks the rendering for one result kind.
func styleFor(k shell.Kind) lipgloss.Style {
	switch k {
	case shell.KindError:
		return errorStyle
	case shell.KindInfo:
		return infoStyle
	case shell.KindSuccess:
		return successStyle
	default:
		return normalStyle
	}
}
