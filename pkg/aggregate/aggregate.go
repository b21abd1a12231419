package aggregate

import (
	"fmt"
	"sort"
)

// Group is the running total for one key.
type Group struct {
	Key    Key     `json:"-"`
	Total  int64   `json:"total"`
	Rows   int     `json:"rows"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	HasGeo bool    `json:"has_geo"`

	latSum  float64
	lonSum  float64
	geoRows int
}

func (g *Group) add(n int64, lat, lon float64, hasGeo bool, policy GeoPolicy) {
	g.Total += n
	g.Rows++
	if !hasGeo {
		return
	}
	switch policy {
	case Mean:
		g.latSum += lat
		g.lonSum += lon
		g.geoRows++
		g.Lat = g.latSum / float64(g.geoRows)
		g.Lon = g.lonSum / float64(g.geoRows)
		g.HasGeo = true
	default:
		if !g.HasGeo {
			g.Lat, g.Lon, g.HasGeo = lat, lon, true
		}
	}
}

// DropStats counts rows excluded from a Result.
type DropStats struct {
	Missing     int `json:"missing"`
	BadCount    int `json:"bad_count"`
	BadGeo      int `json:"bad_geo"`
	OutOfBounds int `json:"out_of_bounds"`
	// Filtered rows were rejected by Options.Filter; they are not invalid.
	Filtered int `json:"filtered"`
}

// Dropped is the number of invalid rows.
func (d DropStats) Dropped() int {
	return d.Missing + d.BadCount + d.BadGeo + d.OutOfBounds
}

// Result maps keys to groups for one set of dimensions.
type Result struct {
	Dimensions []Dimension
	Groups     map[Key]*Group
	Drops      DropStats
	Accepted   int
}

// Aggregate groups records by opts.Dimensions and sums their vehicle
// counts. Every row needs a ZIP code, a make and a count whatever the
// dimensions are, so all views of the same records agree on totals. Invalid
// rows are dropped and counted in Result.Drops; only an unusable
// configuration is an error.
func Aggregate(records []Record, opts Options) (*Result, error) {
	if err := validateDimensions(opts.Dimensions); err != nil {
		return nil, err
	}
	if opts.Geo != FirstSeen && opts.Geo != Mean {
		return nil, fmt.Errorf("%w: unknown geo policy %d", ErrInvalidArgument, uint8(opts.Geo))
	}
	res := &Result{
		Dimensions: append([]Dimension(nil), opts.Dimensions...),
		Groups:     make(map[Key]*Group),
	}
	for _, r := range records {
		if opts.Normalize != nil {
			r = opts.Normalize(r)
		}
		if opts.Filter != nil && !opts.Filter(r) {
			res.Drops.Filtered++
			continue
		}
		if Zip.Value(r) == "" || Make.Value(r) == "" {
			res.Drops.Missing++
			continue
		}
		key, ok := keyFor(r, opts.Dimensions)
		if !ok {
			res.Drops.Missing++
			continue
		}
		n, ok := r.Count()
		if !ok {
			res.Drops.BadCount++
			continue
		}
		lat, lon, hasGeo := r.Location()
		if !hasGeo && opts.RequireGeo {
			res.Drops.BadGeo++
			continue
		}
		if hasGeo && opts.Bounds != nil && !opts.Bounds.Contains(lat, lon) {
			res.Drops.OutOfBounds++
			continue
		}
		g, ok := res.Groups[key]
		if !ok {
			g = &Group{Key: key}
			res.Groups[key] = g
		}
		g.add(n, lat, lon, hasGeo, opts.Geo)
		res.Accepted++
	}
	return res, nil
}

// Total sums every group.
func (r *Result) Total() int64 {
	var t int64
	for _, g := range r.Groups {
		t += g.Total
	}
	return t
}

// Sorted returns the groups ordered by key.
func (r *Result) Sorted() []Group {
	out := make([]Group, 0, len(r.Groups))
	for _, g := range r.Groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// Location is a plain point for marker and heatmap layers.
type Location struct {
	Key   Key     `json:"-"`
	Total int64   `json:"total"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Locations lists groups that have a representative location, ordered by key.
func (r *Result) Locations() []Location {
	out := make([]Location, 0, len(r.Groups))
	for _, g := range r.Sorted() {
		if !g.HasGeo {
			continue
		}
		out = append(out, Location{Key: g.Key, Total: g.Total, Lat: g.Lat, Lon: g.Lon})
	}
	return out
}

// FilterByZip returns the groups whose ZIP component equals zip exactly,
// ordered by key. ZIPs compare as strings so leading zeros matter.
func FilterByZip(r *Result, zip string) ([]Group, error) {
	idx := IndexOf(r.Dimensions, Zip)
	if idx < 0 {
		return nil, fmt.Errorf("%w: result is not grouped by zip", ErrInvalidArgument)
	}
	var out []Group
	for _, g := range r.Sorted() {
		if g.Key.At(idx) == zip {
			out = append(out, g)
		}
	}
	return out, nil
}
