package render

// Description is the display label and emoji of a WMO weather code.
type Description struct {
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}

var (
	unknownCurrent  = Description{Label: "Weather info", Emoji: "ℹ️"}
	unknownForecast = Description{Label: "-", Emoji: "·"}
)

var wmoCodes = map[int]Description{
	0:  {"Clear sky", "☀️"},
	1:  {"Mainly clear", "🌤️"},
	2:  {"Partly cloudy", "⛅"},
	3:  {"Overcast", "☁️"},
	45: {"Fog", "🌫️"},
	48: {"Depositing rime fog", "🌫️"},
	51: {"Light drizzle", "🌦️"},
	53: {"Moderate drizzle", "🌧️"},
	55: {"Dense drizzle", "🌧️"},
	56: {"Light freezing drizzle", "🌧️"},
	57: {"Dense freezing drizzle", "🌧️"},
	61: {"Slight rain", "🌦️"},
	63: {"Moderate rain", "🌧️"},
	65: {"Heavy rain", "🌧️"},
	66: {"Light freezing rain", "🌧️"},
	67: {"Heavy freezing rain", "🌧️"},
	71: {"Slight snow", "🌨️"},
	73: {"Moderate snow", "❄️"},
	75: {"Heavy snow", "❄️"},
	77: {"Snow grains", "❄️"},
	80: {"Slight rain showers", "🌦️"},
	81: {"Moderate rain showers", "🌧️"},
	82: {"Violent rain showers", "⛈️"},
	85: {"Slight snow showers", "🌨️"},
	86: {"Heavy snow showers", "❄️"},
	95: {"Thunderstorm", "⛈️"},
	96: {"Thunderstorm with hail", "⛈️"},
	99: {"Thunderstorm with heavy hail", "⛈️"},
}

// Describe returns the description of a current-conditions code.
func Describe(code int) Description {
	if d, ok := wmoCodes[code]; ok {
		return d
	}
	return unknownCurrent
}

// describeForecast is Describe with the terser fallback used in forecast rows.
func describeForecast(code int) Description {
	if d, ok := wmoCodes[code]; ok {
		return d
	}
	return unknownForecast
}
