package controller

import (
	"fmt"

	"github.com/i474232898/weather-widget/internal/weather"
)

// Status is the controller's coarse state.
type Status int

const (
	StatusIdle Status = iota
	StatusSearching
	StatusResolvingLocation
	StatusLoadingWeather
	StatusReady
	StatusFailed
)

var statusNames = [...]string{
	StatusIdle:              "idle",
	StatusSearching:         "searching",
	StatusResolvingLocation: "resolving-location",
	StatusLoadingWeather:    "loading-weather",
	StatusReady:             "ready",
	StatusFailed:            "failed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reason tags a Failed state.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonGeocode     Reason = "geocode-error"
	ReasonWeather     Reason = "weather-error"
	ReasonGeolocation Reason = "geolocation-error"
)

// State is one immutable controller state. Which fields are set depends on Status:
//
//	Searching          Query, Suggestions once SuggestionsReady
//	LoadingWeather     Place
//	Ready              Place, Snapshot
//	Failed             Reason, Err; Place for weather-error
//
// Unit is always set.
type State struct {
	Status           Status
	Query            string
	Suggestions      []weather.Place
	SuggestionsReady bool
	Place            *weather.Place
	Snapshot         *weather.Snapshot
	Reason           Reason
	Err              error
	Unit             weather.Unit
}

// Event reports a state transition. Seq increases by one per transition.
type Event struct {
	Seq   uint64
	State State
}
