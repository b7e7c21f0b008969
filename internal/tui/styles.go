package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/i474232898/weather-widget/internal/store"
	"github.com/i474232898/weather-widget/internal/weather"
)

// palette is the color set of one theme.
type palette struct {
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Accent     lipgloss.Color
	Border     lipgloss.Color
	Error      lipgloss.Color
	Sunny      lipgloss.Color
	Wet        lipgloss.Color
	Frost      lipgloss.Color
}

var (
	lightPalette = palette{
		Foreground: lipgloss.Color("#101F38"),
		Muted:      lipgloss.Color("#6b7280"),
		Accent:     lipgloss.Color("#2563eb"),
		Border:     lipgloss.Color("#d6dae0"),
		Error:      lipgloss.Color("#e53935"),
		Sunny:      lipgloss.Color("#f59e0b"),
		Wet:        lipgloss.Color("#0284c7"),
		Frost:      lipgloss.Color("#7c3aed"),
	}
	darkPalette = palette{
		Foreground: lipgloss.Color("#f2f2f2"),
		Muted:      lipgloss.Color("#9ca3af"),
		Accent:     lipgloss.Color("#8BC34A"),
		Border:     lipgloss.Color("#2a3850"),
		Error:      lipgloss.Color("#ff6f61"),
		Sunny:      lipgloss.Color("#fbbf24"),
		Wet:        lipgloss.Color("#38bdf8"),
		Frost:      lipgloss.Color("#c4b5fd"),
	}
)

type styles struct {
	palette palette

	Title    lipgloss.Style
	Text     lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
	Error    lipgloss.Style
	Selected lipgloss.Style
	Card     lipgloss.Style
	Temp     lipgloss.Style
}

func newStyles(theme string) styles {
	p := lightPalette
	if theme == store.ThemeDark {
		p = darkPalette
	}
	return styles{
		palette:  p,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Text:     lipgloss.NewStyle().Foreground(p.Foreground),
		Muted:    lipgloss.NewStyle().Foreground(p.Muted),
		Accent:   lipgloss.NewStyle().Foreground(p.Accent),
		Error:    lipgloss.NewStyle().Foreground(p.Error),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
		Temp: lipgloss.NewStyle().Bold(true).Foreground(p.Foreground),
	}
}

// card is the forecast card bordered in the color of the current condition.
func (s styles) card(cond weather.Condition) lipgloss.Style {
	switch cond {
	case weather.ConditionClear:
		return s.Card.BorderForeground(s.palette.Sunny)
	case weather.ConditionDrizzle, weather.ConditionRain, weather.ConditionStorm:
		return s.Card.BorderForeground(s.palette.Wet)
	case weather.ConditionSnow:
		return s.Card.BorderForeground(s.palette.Frost)
	}
	return s.Card
}
