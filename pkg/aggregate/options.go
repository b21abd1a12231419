package aggregate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument marks caller errors such as an empty dimension list.
var ErrInvalidArgument = errors.New("invalid argument")

// GeoPolicy picks the representative location of a group.
type GeoPolicy uint8

const (
	// FirstSeen keeps the location of the first member, in input order,
	// that has a valid location.
	FirstSeen GeoPolicy = iota
	// Mean averages the locations of all members as latSum/n, lonSum/n.
	Mean
)

func (p GeoPolicy) String() string {
	switch p {
	case FirstSeen:
		return "first"
	case Mean:
		return "mean"
	}
	return fmt.Sprintf("geo(%d)", uint8(p))
}

func ParseGeoPolicy(s string) (GeoPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first", "first_seen", "firstseen":
		return FirstSeen, nil
	case "mean", "avg", "average":
		return Mean, nil
	}
	return 0, fmt.Errorf("%w: unknown geo policy %q", ErrInvalidArgument, s)
}

// Normalizer rewrites a record before validation and key construction.
type Normalizer func(Record) Record

// UpperMake makes make grouping case-insensitive.
func UpperMake(r Record) Record {
	r.Make = strings.ToUpper(strings.TrimSpace(r.Make))
	return r
}

func TrimFields(r Record) Record {
	r.ZipCode = strings.TrimSpace(r.ZipCode)
	r.Make = strings.TrimSpace(r.Make)
	r.ModelYear = strings.TrimSpace(r.ModelYear)
	r.Fuel = strings.TrimSpace(r.Fuel)
	r.Duty = strings.TrimSpace(r.Duty)
	r.Lat = strings.TrimSpace(r.Lat)
	r.Lon = strings.TrimSpace(r.Lon)
	r.Vehicles = strings.TrimSpace(r.Vehicles)
	return r
}

// Chain applies normalizers left to right. Nil entries are skipped.
func Chain(ns ...Normalizer) Normalizer {
	return func(r Record) Record {
		for _, n := range ns {
			if n != nil {
				r = n(r)
			}
		}
		return r
	}
}

// Predicate selects records for a view. Records it rejects are counted as
// filtered, not dropped.
type Predicate func(Record) bool

func YearIs(year string) Predicate {
	year = strings.TrimSpace(year)
	return func(r Record) bool { return strings.TrimSpace(r.ModelYear) == year }
}

func ZipIs(zip string) Predicate {
	zip = strings.TrimSpace(zip)
	return func(r Record) bool { return strings.TrimSpace(r.ZipCode) == zip }
}

// MakeIn matches makes case-insensitively.
func MakeIn(makes ...string) Predicate {
	set := make(map[string]struct{}, len(makes))
	for _, m := range makes {
		set[strings.ToUpper(strings.TrimSpace(m))] = struct{}{}
	}
	return func(r Record) bool {
		_, ok := set[strings.ToUpper(strings.TrimSpace(r.Make))]
		return ok
	}
}

// LuxuryMakes is the brand list the luxury overlay highlights.
var LuxuryMakes = []string{
	"BMW", "MERCEDES-BENZ", "AUDI", "TESLA", "PORSCHE", "LEXUS", "JAGUAR",
	"LAND ROVER", "CADILLAC", "INFINITI", "ACURA", "VOLVO", "MASERATI",
	"BENTLEY", "ROLLS-ROYCE", "FERRARI", "LAMBORGHINI", "BUGATTI",
	"MCLAREN", "ASTON MARTIN", "ALFA ROMEO",
}

func LuxuryOnly() Predicate { return MakeIn(LuxuryMakes...) }

// All matches when every non-nil predicate matches.
func All(ps ...Predicate) Predicate {
	return func(r Record) bool {
		for _, p := range ps {
			if p != nil && !p(r) {
				return false
			}
		}
		return true
	}
}

// Options configures one Aggregate call.
type Options struct {
	Dimensions []Dimension
	Geo        GeoPolicy
	Normalize  Normalizer
	Filter     Predicate
	// RequireGeo drops rows without a valid location instead of counting
	// them without one.
	RequireGeo bool
	// Bounds, when set, drops rows whose location falls outside it.
	Bounds *Bounds
}
