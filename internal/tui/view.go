package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the widget.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	s := m.styles
	v := m.view

	b.WriteString(s.Title.Render("Weather") + s.Muted.Render("  "+v.UnitSymbol) + "\n\n")
	b.WriteString(m.input.View() + "\n")

	for i, sug := range v.Suggestions {
		if i == m.cursor {
			b.WriteString(s.Selected.Render("› " + sug.Title))
		} else {
			b.WriteString(s.Text.Render("  " + sug.Title))
		}
		if sug.Meta != "" {
			b.WriteString(s.Muted.Render("  " + sug.Meta))
		}
		b.WriteString("\n")
	}

	if v.Message != "" {
		msg := v.Message
		switch {
		case v.Error:
			msg = s.Error.Render(msg)
		case v.Busy:
			msg = m.spinner.View() + " " + s.Muted.Render(msg)
		default:
			msg = s.Muted.Render(msg)
		}
		b.WriteString("\n" + msg + "\n")
	}

	if v.Current != nil {
		b.WriteString("\n" + m.forecastCard() + "\n")
	}

	b.WriteString("\n" + s.Muted.Render("↑/↓ choose • enter select • ctrl+l locate • ctrl+u °C/°F • ctrl+r refresh • ctrl+t theme • esc quit") + "\n")
	return b.String()
}

func (m Model) forecastCard() string {
	s := m.styles
	v := m.view
	c := v.Current

	var lines []string
	if v.Place != nil {
		title := s.Title.Render(v.Place.Title)
		if v.Place.Meta != "" {
			title += s.Muted.Render("  " + v.Place.Meta)
		}
		lines = append(lines, title, s.Muted.Render(v.Place.Coordinates))
	}

	lines = append(lines,
		"",
		fmt.Sprintf("%s %s  %s", c.Emoji, s.Temp.Render(c.Temperature), s.Text.Render(c.Label)),
		s.Muted.Render(fmt.Sprintf("Feels like %s · Humidity %s · Wind %s · Precip %s · %s",
			c.FeelsLike, c.Humidity, c.Wind, c.Precip, c.Time)),
	)

	if len(v.Hourly) > 0 {
		hours := v.Hourly
		if len(hours) > hoursShown {
			hours = hours[:hoursShown]
		}
		cells := make([]string, 0, len(hours))
		for _, h := range hours {
			cells = append(cells, lipgloss.JoinVertical(lipgloss.Center,
				s.Muted.Render(h.Time), h.Emoji, s.Text.Render(h.Temperature)))
		}
		lines = append(lines, "", lipgloss.JoinHorizontal(lipgloss.Top, spaced(cells)...))
	}

	if len(v.Daily) > 0 {
		lines = append(lines, "")
		for _, d := range v.Daily {
			lines = append(lines, fmt.Sprintf("%-9s %s %s %s  %s",
				d.Date, d.Emoji, s.Text.Render(d.High), s.Muted.Render(d.Low), s.Muted.Render(d.Label)))
		}
	}

	return s.card(c.Condition).Render(strings.Join(lines, "\n"))
}

func spaced(cells []string) []string {
	out := make([]string, 0, 2*len(cells))
	for i, c := range cells {
		if i > 0 {
			out = append(out, "  ")
		}
		out = append(out, c)
	}
	return out
}
