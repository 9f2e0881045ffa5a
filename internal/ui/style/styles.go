// internal/ui/style/styles.go
package style

import (
	"github.com/charmbracelet/lipgloss"
)

// HeaderStyles - шапка с состоянием узла и кошелька
type HeaderStyles struct {
	Container lipgloss.Style
	Title     lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	RPCGood   lipgloss.Style
	RPCBad    lipgloss.Style
}

// NewHeaderStyles creates header styles with the given palette
func NewHeaderStyles(palette Palette) HeaderStyles {
	return HeaderStyles{
		Container: lipgloss.NewStyle().
			Foreground(palette.Text).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Primary).
			Padding(0, 2).
			MarginBottom(1),

		Title: lipgloss.NewStyle().
			Foreground(palette.Primary).
			Bold(true),

		Label: lipgloss.NewStyle().
			Foreground(palette.TextMuted),

		Value: lipgloss.NewStyle().
			Foreground(palette.TextSecondary),

		RPCGood: lipgloss.NewStyle().
			Foreground(palette.Success).
			Bold(true),

		RPCBad: lipgloss.NewStyle().
			Foreground(palette.Error).
			Bold(true),
	}
}

// TableStyles - таблицы отчетов
type TableStyles struct {
	Border  lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Section lipgloss.Style
	Muted   lipgloss.Style
}

func NewTableStyles(palette Palette) TableStyles {
	return TableStyles{
		Border: lipgloss.NewStyle().
			Foreground(palette.TextMuted),

		Header: lipgloss.NewStyle().
			Foreground(palette.Primary).
			Bold(true).
			Padding(0, 1),

		Cell: lipgloss.NewStyle().
			Foreground(palette.Text).
			Padding(0, 1),

		Section: lipgloss.NewStyle().
			Foreground(palette.Secondary).
			Bold(true).
			MarginTop(1),

		Muted: lipgloss.NewStyle().
			Foreground(palette.TextMuted).
			Italic(true),
	}
}

// Status возвращает стиль для статуса транзакции
func Status(palette Palette, status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch status {
	case "confirmed", "finalized", "success", "active":
		return base.Foreground(palette.Success)
	case "failed", "timeout":
		return base.Foreground(palette.Error)
	case "pending", "running", "cooldown":
		return base.Foreground(palette.Warning)
	default:
		return base.Foreground(palette.TextMuted)
	}
}
