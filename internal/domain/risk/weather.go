package risk

// WeatherConditions describes the ambient exposure applied to every vehicle
// scored in a batch window. Precipitation is the share of recent days with
// measurable precipitation, in [0,1]. TempSwingF is the mean daily
// temperature variance.
type WeatherConditions struct {
	TemperatureF  float64 `json:"temperature_f"`
	HumidityPct   float64 `json:"humidity_pct"`
	Precipitation float64 `json:"precipitation"`
	TempSwingF    float64 `json:"temp_swing_f"`
}

// DefaultWeather returns the mild reference climate assumed when no
// conditions have been supplied: 70F, 50% humidity, no precipitation, 15F
// daily swing. Scoring under the defaults leaves the weather likelihood
// exactly neutral.
func DefaultWeather() WeatherConditions {
	return WeatherConditions{
		TemperatureF:  70,
		HumidityPct:   50,
		Precipitation: 0,
		TempSwingF:    15,
	}
}

// Weather likelihood bounds. Weather is a weak signal on its own; the clamp
// stops stacked extremes from dominating the stronger diagnostic factors.
const (
	MinWeatherLikelihood = 0.5
	MaxWeatherLikelihood = 2.0
)

// WeatherLikelihood maps conditions onto a bounded likelihood ratio via
// stepped multipliers. Each axis contributes at most one step; the product
// is clamped to [MinWeatherLikelihood, MaxWeatherLikelihood].
func WeatherLikelihood(w WeatherConditions) float64 {
	lr := 1.0

	switch {
	case w.TemperatureF > 95:
		lr *= 1.30
	case w.TemperatureF > 85:
		lr *= 1.15
	case w.TemperatureF < 10:
		lr *= 1.30
	case w.TemperatureF < 32:
		lr *= 1.15
	}

	switch {
	case w.Precipitation > 0.7:
		lr *= 1.20
	case w.Precipitation > 0.3:
		lr *= 1.10
	}

	if w.HumidityPct > 80 {
		lr *= 1.15
	}

	switch {
	case w.TempSwingF > 25:
		lr *= 1.20
	case w.TempSwingF > 18:
		lr *= 1.10
	}

	return clamp(lr, MinWeatherLikelihood, MaxWeatherLikelihood)
}
