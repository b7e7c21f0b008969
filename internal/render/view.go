package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/i474232898/weather-widget/internal/controller"
	"github.com/i474232898/weather-widget/internal/weather"
)

// HourWindow is the number of hourly entries shown.
const HourWindow = 24

// View is the presentation model of one controller state.
type View struct {
	Seq              uint64       `json:"seq"`
	Status           string       `json:"status"`
	Unit             weather.Unit `json:"unit"`
	UnitSymbol       string       `json:"unitSymbol"`
	Query            string       `json:"query,omitempty"`
	Suggestions      []Suggestion `json:"suggestions"`
	SuggestionsReady bool         `json:"suggestionsReady"`
	Place            *PlaceView   `json:"place,omitempty"`
	Current          *CurrentView `json:"current,omitempty"`
	Hourly           []HourView   `json:"hourly,omitempty"`
	Daily            []DayView    `json:"daily,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	Message          string       `json:"message,omitempty"`
	Error            bool         `json:"error"`
	Busy             bool         `json:"busy"`
}

type Suggestion struct {
	Title string        `json:"title"`
	Meta  string        `json:"meta,omitempty"`
	Place weather.Place `json:"place"`
}

type PlaceView struct {
	Title       string        `json:"title"`
	Meta        string        `json:"meta,omitempty"`
	Coordinates string        `json:"coordinates"`
	Place       weather.Place `json:"place"`
}

type CurrentView struct {
	Temperature string            `json:"temperature"`
	FeelsLike   string            `json:"feelsLike"`
	Humidity    string            `json:"humidity"`
	Wind        string            `json:"wind"`
	Precip      string            `json:"precip"`
	Time        string            `json:"time"`
	Condition   weather.Condition `json:"condition"`
	Description
}

type HourView struct {
	Time        string `json:"time"`
	Temperature string `json:"temperature"`
	Description
}

type DayView struct {
	Date string `json:"date"`
	High string `json:"high"`
	Low  string `json:"low"`
	Description
}

// NewView builds the view of ev. now picks the start of the hourly window.
func NewView(ev controller.Event, now time.Time) View {
	st := ev.State
	busy := st.Status == controller.StatusLoadingWeather ||
		st.Status == controller.StatusResolvingLocation ||
		(st.Status == controller.StatusSearching && !st.SuggestionsReady)

	v := View{
		Seq:              ev.Seq,
		Status:           st.Status.String(),
		Unit:             st.Unit,
		UnitSymbol:       UnitSymbol(st.Unit),
		Query:            st.Query,
		Suggestions:      []Suggestion{},
		SuggestionsReady: st.SuggestionsReady,
		Reason:           string(st.Reason),
		Message:          Message(st),
		Error:            st.Status == controller.StatusFailed,
		Busy:             busy,
	}

	for _, p := range st.Suggestions {
		v.Suggestions = append(v.Suggestions, Suggestion{Title: PlaceTitle(p), Meta: PlaceMeta(p), Place: p})
	}
	if st.Place != nil {
		v.Place = &PlaceView{
			Title:       PlaceTitle(*st.Place),
			Meta:        PlaceMeta(*st.Place),
			Coordinates: Coordinates(*st.Place),
			Place:       *st.Place,
		}
	}
	if st.Status == controller.StatusReady && st.Snapshot != nil {
		v.Current, v.Hourly, v.Daily = snapshotViews(*st.Snapshot, st.Unit, now)
	}
	return v
}

func snapshotViews(s weather.Snapshot, unit weather.Unit, now time.Time) (*CurrentView, []HourView, []DayView) {
	c := s.Current
	current := &CurrentView{
		Temperature: FormatTemp(c.TemperatureC, unit),
		FeelsLike:   FormatTemp(c.ApparentTemperature, unit),
		Humidity:    FormatHumidity(c.HumidityPct),
		Wind:        FormatWind(c.WindSpeedMS),
		Precip:      FormatPrecip(c.PrecipMm),
		Time:        c.Time.Format("15:04"),
		Condition:   s.Condition(),
		Description: Describe(c.WeatherCode),
	}

	hours := NextHours(s.Hourly, now, HourWindow)
	hourly := make([]HourView, 0, len(hours))
	for _, h := range hours {
		hourly = append(hourly, HourView{
			Time:        h.Time.Format("15"),
			Temperature: FormatTemp(h.TemperatureC, unit),
			Description: describeForecast(h.WeatherCode),
		})
	}

	daily := make([]DayView, 0, len(s.Daily))
	for _, d := range s.Daily {
		daily = append(daily, DayView{
			Date:        d.Date.Format("Mon 1/2"),
			High:        FormatTemp(d.MaxC, unit),
			Low:         FormatTemp(d.MinC, unit),
			Description: describeForecast(d.WeatherCode),
		})
	}
	return current, hourly, daily
}

// Message is the user-facing status line for st.
func Message(st controller.State) string {
	switch st.Status {
	case controller.StatusSearching:
		if st.SuggestionsReady && len(st.Suggestions) == 0 {
			return "No results"
		}
	case controller.StatusResolvingLocation:
		return "Checking your location…"
	case controller.StatusLoadingWeather:
		if st.Place != nil {
			return fmt.Sprintf("Loading weather for %s…", st.Place.Name)
		}
		return "Loading weather…"
	case controller.StatusFailed:
		return failureMessage(st.Reason, st.Err)
	}
	return ""
}

func failureMessage(reason controller.Reason, err error) string {
	switch reason {
	case controller.ReasonGeocode:
		return "Place search failed. Please try again."
	case controller.ReasonWeather:
		return "Could not load the data. Please try again shortly."
	case controller.ReasonGeolocation:
		switch {
		case errors.Is(err, weather.ErrTimeout):
			return "Locating timed out. Please try again."
		case errors.Is(err, weather.ErrUnsupported):
			return "Location is not available here."
		}
		return "Location permission is required."
	}
	return "Something went wrong."
}
