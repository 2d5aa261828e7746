package weather

import (
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionFog     Condition = "fog"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
)

// Observation is one hour of weather at a point. Nil fields were not reported.
type Observation struct {
	Time time.Time `json:"time"` // start of the hour, always UTC

	TemperatureC     *float64 `json:"temperatureC,omitempty"`
	DewPointC        *float64 `json:"dewPointC,omitempty"`
	HumidityPct      *float64 `json:"humidityPercent,omitempty"`
	PrecipitationMm  *float64 `json:"precipitationMm,omitempty"`
	WindDirectionDeg *float64 `json:"windDirectionDeg,omitempty"`
	WindSpeedKmh     *float64 `json:"windSpeedKmh,omitempty"`
	PressureHpa      *float64 `json:"pressureHpa,omitempty"`

	// ConditionCode is the WMO weather interpretation code, when known.
	ConditionCode *int      `json:"conditionCode,omitempty"`
	Condition     Condition `json:"condition"`
}

// ConditionFromCode maps a WMO weather code to a Condition.
func ConditionFromCode(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionFog
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95 && code <= 99:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}

// Hour truncates t to the start of its UTC hour.
func Hour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
