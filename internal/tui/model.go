// Package tui is the terminal presentation of the weather widget. It forwards
// key presses to a controller as intents and renders the controller's events.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/i474232898/weather-widget/internal/controller"
	"github.com/i474232898/weather-widget/internal/render"
	"github.com/i474232898/weather-widget/internal/store"
	"github.com/i474232898/weather-widget/internal/weather"
)

// Profile is the preferences profile of the terminal widget.
const Profile = "tui"

// hoursShown is the number of hourly entries that fit on one row.
const hoursShown = 8

// eventMsg carries a controller event into the Bubble Tea loop.
type eventMsg controller.Event

// closedMsg reports that the controller stopped.
type closedMsg struct{}

// listen waits for the next controller event.
func listen(events <-chan controller.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

// Model is the Bubble Tea model of the widget.
type Model struct {
	ctrl   *controller.Controller
	events <-chan controller.Event
	prefs  *store.PrefsStore
	logger *zap.Logger

	input   textinput.Model
	spinner spinner.Model
	styles  styles
	theme   string
	view    render.View
	cursor  int
	now     func() time.Time

	quitting bool
}

// New subscribes to a started controller. prefs may be nil; theme is the
// initial theme.
func New(ctx context.Context, ctrl *controller.Controller, prefs *store.PrefsStore, theme string, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	if theme != store.ThemeDark {
		theme = store.ThemeLight
	}

	ti := textinput.New()
	ti.Placeholder = "Search a city"
	ti.CharLimit = 200
	ti.Width = 40
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctrl:    ctrl,
		events:  ctrl.Subscribe(ctx),
		prefs:   prefs,
		logger:  logger,
		input:   ti,
		spinner: sp,
		styles:  newStyles(theme),
		theme:   theme,
		now:     time.Now,
	}
	m.view = render.NewView(ctrl.Latest(), m.now())
	return m
}

// Init starts the cursor blink, the spinner and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, listen(m.events))
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.view = render.NewView(controller.Event(msg), m.now())
		if m.cursor >= len(m.view.Suggestions) {
			m.cursor = 0
		}
		return m, listen(m.events)

	case closedMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.input.Width = min(max(msg.Width-6, 10), 60)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down":
		if m.cursor < len(m.view.Suggestions)-1 {
			m.cursor++
		}
		return m, nil

	case "enter":
		if m.view.SuggestionsReady && m.cursor < len(m.view.Suggestions) {
			m.ctrl.SelectPlace(m.view.Suggestions[m.cursor].Place)
		} else {
			m.ctrl.SubmitSearch(m.input.Value())
		}
		return m, nil

	case "ctrl+l":
		m.ctrl.RequestDeviceLocation()
		return m, nil

	case "ctrl+r":
		m.ctrl.Refresh()
		return m, nil

	case "ctrl+u":
		unit := weather.Fahrenheit
		if m.view.Unit == weather.Fahrenheit {
			unit = weather.Celsius
		}
		m.ctrl.ToggleUnits(unit)
		if m.prefs != nil {
			if err := m.prefs.SaveUnit(context.Background(), Profile, unit); err != nil {
				m.logger.Warn("failed to save unit", zap.Error(err))
			}
		}
		return m, nil

	case "ctrl+t":
		if m.theme == store.ThemeDark {
			m.theme = store.ThemeLight
		} else {
			m.theme = store.ThemeDark
		}
		m.styles = newStyles(m.theme)
		if m.prefs != nil {
			if err := m.prefs.SaveTheme(context.Background(), Profile, m.theme); err != nil {
				m.logger.Warn("failed to save theme", zap.Error(err))
			}
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.cursor = 0
		m.ctrl.SubmitSearchText(after)
	}
	return m, cmd
}
