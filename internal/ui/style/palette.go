// internal/ui/style/palette.go
package style

import "github.com/charmbracelet/lipgloss"

// Цвета статусов и текста. AdaptiveColor, чтобы таблицы читались и на светлом терминале.
var (
	Teal   = lipgloss.AdaptiveColor{Light: "#00897B", Dark: "#00E5FF"}
	Violet = lipgloss.AdaptiveColor{Light: "#6A1B9A", Dark: "#B388FF"}
	Amber  = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFB500"}
	Green  = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#2AFFAA"}
	Red    = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5555"}

	Ink   = lipgloss.AdaptiveColor{Light: "#1B1D23", Dark: "#ECEFF4"}
	Slate = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#B4BCC8"}
	Ash   = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7280"}
)

// Palette - роли цветов в отчетах и watch
type Palette struct {
	Primary   lipgloss.TerminalColor
	Secondary lipgloss.TerminalColor
	Success   lipgloss.TerminalColor // confirmed, finalized
	Error     lipgloss.TerminalColor // failed, timeout
	Warning   lipgloss.TerminalColor // pending

	Text          lipgloss.TerminalColor
	TextMuted     lipgloss.TerminalColor
	TextSecondary lipgloss.TerminalColor
}

func DefaultPalette() Palette {
	return Palette{
		Primary:       Teal,
		Secondary:     Violet,
		Success:       Green,
		Error:         Red,
		Warning:       Amber,
		Text:          Ink,
		TextMuted:     Ash,
		TextSecondary: Slate,
	}
}
