// Package aggregate groups vehicle registration rows into per-key vehicle
// totals and derives the rollups the map and chart pages render.
//
// Rows arrive pre-aggregated upstream: each Record carries a Vehicles count
// for one ZIP/make/model-year/fuel/duty bucket. Aggregate sums those counts
// for whatever combination of dimensions a view needs and keeps one
// representative location per group.
package aggregate

import (
	"math"
	"strconv"
	"strings"
)

// Record is one raw CSV row. Fields stay strings until aggregation so that
// validation and drop accounting happen in one place.
type Record struct {
	ZipCode   string `json:"zip_code"`
	Make      string `json:"make"`
	ModelYear string `json:"model_year"`
	Fuel      string `json:"fuel"`
	Duty      string `json:"duty"`
	Date      string `json:"date,omitempty"`
	Lat       string `json:"lat"`
	Lon       string `json:"lon"`
	Vehicles  string `json:"vehicles"`
}

// Count parses Vehicles as a base-10 non-negative integer.
func (r Record) Count() (int64, bool) {
	return ParseCount(r.Vehicles)
}

// Location parses Lat/Lon. Missing, malformed, non-finite or out of range
// coordinates report false.
func (r Record) Location() (lat, lon float64, ok bool) {
	lat, ok = parseCoord(r.Lat, 90)
	if !ok {
		return 0, 0, false
	}
	lon, ok = parseCoord(r.Lon, 180)
	if !ok {
		return 0, 0, false
	}
	return lat, lon, true
}

// ParseCount parses a vehicle count. Blank or whitespace-only input is
// invalid.
func ParseCount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseCoord(s string, limit float64) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < -limit || f > limit {
		return 0, false
	}
	return f, true
}

// Bounds is an inclusive lat/lon box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// California roughly boxes the state; points outside it are geocoding noise
// in the registration extract.
var California = Bounds{MinLat: 32.5, MaxLat: 42.0, MinLon: -124.5, MaxLon: -114.0}

func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
