package airquality

import (
	"sort"

	"github.com/i474232898/airquality-idw/internal/geo"
)

// HourlyAverage is the mean of a parameter at one location for one hour of
// the day, across all days in the input.
type HourlyAverage struct {
	LocationID   int64          `json:"locationId"`
	LocationName string         `json:"locationName"`
	Coordinate   geo.Coordinate `json:"coordinate"`
	Parameter    string         `json:"parameter"`
	Unit         string         `json:"unit"`
	Hour         int            `json:"hour"` // 0-23, UTC
	Value        float64        `json:"value"`
	Count        int            `json:"count"`
}

// HourOfDayAverages averages measurements per location, parameter, unit and
// UTC hour of day. Results are ordered by location key, parameter, unit, hour.
func HourOfDayAverages(ms []Measurement) []HourlyAverage {
	type groupKey struct {
		location  string
		parameter string
		unit      string
		hour      int
	}
	type acc struct {
		first Measurement
		sum   float64
		n     int
	}

	groups := make(map[groupKey]*acc)
	for _, m := range ms {
		k := groupKey{
			location:  m.LocationKey(),
			parameter: m.Parameter,
			unit:      m.Unit,
			hour:      m.Time.UTC().Hour(),
		}
		a, ok := groups[k]
		if !ok {
			a = &acc{first: m}
			groups[k] = a
		}
		a.sum += m.Value
		a.n++
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.location != b.location {
			return a.location < b.location
		}
		if a.parameter != b.parameter {
			return a.parameter < b.parameter
		}
		if a.unit != b.unit {
			return a.unit < b.unit
		}
		return a.hour < b.hour
	})

	out := make([]HourlyAverage, 0, len(keys))
	for _, k := range keys {
		a := groups[k]
		out = append(out, HourlyAverage{
			LocationID:   a.first.LocationID,
			LocationName: a.first.LocationName,
			Coordinate:   a.first.Coordinate,
			Parameter:    k.parameter,
			Unit:         k.unit,
			Hour:         k.hour,
			Value:        a.sum / float64(a.n),
			Count:        a.n,
		})
	}
	return out
}
