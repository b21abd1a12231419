package aggregate

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func rec(zip, mk, vehicles string) Record {
	return Record{ZipCode: zip, Make: mk, Vehicles: vehicles}
}

func geoRec(zip, mk, year, lat, lon, vehicles string) Record {
	return Record{ZipCode: zip, Make: mk, ModelYear: year, Lat: lat, Lon: lon, Vehicles: vehicles}
}

func TestAggregateCaseInsensitiveMake(t *testing.T) {
	t.Parallel()

	records := []Record{rec("90210", "BMW", "5"), rec("90210", "bmw", "3")}
	res, err := Aggregate(records, Options{Dimensions: []Dimension{Zip, Make}, Normalize: UpperMake})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(res.Groups) != 1 {
		t.Fatalf("groups=%d want 1", len(res.Groups))
	}
	g, ok := res.Groups[NewKey("90210", "BMW")]
	if !ok {
		t.Fatalf("missing group 90210/BMW, have %v", res.Sorted())
	}
	if g.Total != 8 {
		t.Fatalf("total=%d want 8", g.Total)
	}
}

func TestAggregateWithoutNormalizationKeepsCase(t *testing.T) {
	t.Parallel()

	records := []Record{rec("90210", "BMW", "5"), rec("90210", "bmw", "3")}
	res, err := Aggregate(records, Options{Dimensions: []Dimension{Zip, Make}})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("groups=%d want 2", len(res.Groups))
	}
}

func TestAggregateDropsInvalidRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		records []Record
		opts    Options
		total   int64
		drops   DropStats
	}{
		{
			name:    "blank vehicles",
			records: []Record{rec("1", "A", "10"), rec("1", "A", "")},
			opts:    Options{Dimensions: []Dimension{Zip, Make}},
			total:   10,
			drops:   DropStats{BadCount: 1},
		},
		{
			name:    "whitespace vehicles",
			records: []Record{rec("1", "A", "10"), rec("1", "A", "   ")},
			opts:    Options{Dimensions: []Dimension{Zip, Make}},
			total:   10,
			drops:   DropStats{BadCount: 1},
		},
		{
			name:    "negative and garbage counts",
			records: []Record{rec("1", "A", "-4"), rec("1", "A", "12abc"), rec("1", "A", "1.5"), rec("1", "A", " 7 ")},
			opts:    Options{Dimensions: []Dimension{Zip, Make}},
			total:   7,
			drops:   DropStats{BadCount: 3},
		},
		{
			name:    "missing dimension field",
			records: []Record{rec("", "A", "10"), rec("1", "", "10"), rec("1", "A", "2")},
			opts:    Options{Dimensions: []Dimension{Zip, Make}},
			total:   2,
			drops:   DropStats{Missing: 2},
		},
		{
			name:    "zip and make required outside the dimensions",
			records: []Record{rec("1", "", "10"), rec("", "A", "4"), rec("1", "A", "3")},
			opts:    Options{Dimensions: []Dimension{Zip}},
			total:   3,
			drops:   DropStats{Missing: 2},
		},
		{
			name:    "blank model year with year dimension",
			records: []Record{geoRec("1", "A", "", "", "", "10"), geoRec("1", "A", "2020", "", "", "3")},
			opts:    Options{Dimensions: []Dimension{ModelYear}},
			total:   3,
			drops:   DropStats{Missing: 1},
		},
		{
			name: "require geo",
			records: []Record{
				geoRec("1", "A", "2020", "34.1", "-118.2", "3"),
				geoRec("1", "A", "2020", "", "-118.2", "4"),
				geoRec("1", "A", "2020", "abc", "-118.2", "5"),
			},
			opts:  Options{Dimensions: []Dimension{Zip}, RequireGeo: true},
			total: 3,
			drops: DropStats{BadGeo: 2},
		},
		{
			name: "outside california",
			records: []Record{
				geoRec("1", "A", "2020", "34.1", "-118.2", "3"),
				geoRec("1", "A", "2020", "40.7", "-74.0", "9"),
			},
			opts:  Options{Dimensions: []Dimension{Zip}, Bounds: &California},
			total: 3,
			drops: DropStats{OutOfBounds: 1},
		},
		{
			name: "filtered rows are not dropped",
			records: []Record{
				geoRec("1", "A", "2009", "", "", "3"),
				geoRec("1", "A", "2010", "", "", "9"),
			},
			opts:  Options{Dimensions: []Dimension{Zip}, Filter: YearIs("2009")},
			total: 3,
			drops: DropStats{Filtered: 1},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := Aggregate(tc.records, tc.opts)
			if err != nil {
				t.Fatalf("Aggregate: %v", err)
			}
			if got := res.Total(); got != tc.total {
				t.Fatalf("total=%d want %d", got, tc.total)
			}
			if res.Drops != tc.drops {
				t.Fatalf("drops=%+v want %+v", res.Drops, tc.drops)
			}
		})
	}
}

func TestAggregateDroppedCount(t *testing.T) {
	t.Parallel()

	res, err := Aggregate([]Record{rec("1", "A", "10"), rec("1", "A", "")}, Options{Dimensions: []Dimension{Zip, Make}})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got := res.Groups[NewKey("1", "A")].Total; got != 10 {
		t.Fatalf("total=%d want 10", got)
	}
	if got := res.Drops.Dropped(); got != 1 {
		t.Fatalf("dropped=%d want 1", got)
	}
}

func TestAggregateInvalidArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
	}{
		{name: "no dimensions", opts: Options{}},
		{name: "duplicate dimension", opts: Options{Dimensions: []Dimension{Zip, Zip}}},
		{name: "unknown dimension", opts: Options{Dimensions: []Dimension{Dimension(42)}}},
		{name: "unknown geo policy", opts: Options{Dimensions: []Dimension{Zip}, Geo: GeoPolicy(9)}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Aggregate([]Record{rec("1", "A", "1")}, tc.opts)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("err=%v want ErrInvalidArgument", err)
			}
		})
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	t.Parallel()

	for _, records := range [][]Record{nil, {rec("", "", ""), rec("1", "A", "x")}} {
		res, err := Aggregate(records, Options{Dimensions: []Dimension{Zip, Make}})
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		if len(res.Groups) != 0 {
			t.Fatalf("groups=%d want 0", len(res.Groups))
		}
	}
}

func TestAggregateDelimiterInValues(t *testing.T) {
	t.Parallel()

	// "1_A" + "B" and "1" + "A_B" collide under underscore-joined keys.
	records := []Record{rec("1_A", "B", "1"), rec("1", "A_B", "2")}
	res, err := Aggregate(records, Options{Dimensions: []Dimension{Zip, Make}})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("groups=%d want 2", len(res.Groups))
	}
}

func TestAggregateViewsAgreeOnValidRows(t *testing.T) {
	t.Parallel()

	records := []Record{
		geoRec("1", "A", "2020", "", "", "10"),
		geoRec("", "", "2020", "", "", "99"),
		geoRec("  ", "B", "2020", "", "", "7"),
	}
	for i := range records {
		records[i].Fuel = "Gasoline"
	}
	for _, dims := range [][]Dimension{{ModelYear}, {Fuel}, {Zip, Make}, {Make}} {
		res, err := Aggregate(records, Options{Dimensions: dims})
		if err != nil {
			t.Fatalf("Aggregate(%v): %v", dims, err)
		}
		if res.Total() != 10 || res.Drops.Dropped() != 2 || res.Drops.Missing != 2 {
			t.Fatalf("dims=%v total=%d drops=%+v want total=10 missing=2", dims, res.Total(), res.Drops)
		}
	}
}

func sampleRecords() []Record {
	return []Record{
		geoRec("90210", "BMW", "2019", "34.10", "-118.41", "5"),
		geoRec("90210", "TOYOTA", "2019", "34.11", "-118.40", "12"),
		geoRec("90210", "BMW", "2020", "34.09", "-118.42", "7"),
		geoRec("94105", "TESLA", "2021", "37.79", "-122.39", "20"),
		geoRec("94105", "BMW", "2019", "37.78", "-122.40", "1"),
		geoRec("94105", "TESLA", "2021", "37.80", "-122.38", "4"),
		geoRec("01234", "HONDA", "2018", "", "", "6"),
		geoRec("01234", "HONDA", "2018", "42.5", "-71.3", "2"),
		geoRec("94105", "FORD", "2017", "37.77", "-122.41", ""),
	}
}

func TestAggregateConservesTotal(t *testing.T) {
	t.Parallel()

	records := sampleRecords()
	var want int64
	for _, r := range records {
		if n, ok := r.Count(); ok {
			want += n
		}
	}
	dimSets := [][]Dimension{{Zip}, {Make}, {Zip, Make}, {Zip, Make, ModelYear}, {ModelYear, Make}}
	for _, dims := range dimSets {
		for _, geo := range []GeoPolicy{FirstSeen, Mean} {
			res, err := Aggregate(records, Options{Dimensions: dims, Geo: geo})
			if err != nil {
				t.Fatalf("Aggregate(%v): %v", dims, err)
			}
			if got := res.Total(); got != want {
				t.Fatalf("dims=%v geo=%s total=%d want %d", dims, geo, got, want)
			}
		}
	}
}

func TestAggregateIdempotent(t *testing.T) {
	t.Parallel()

	opts := Options{Dimensions: []Dimension{Zip, Make, ModelYear}, Geo: Mean, Normalize: UpperMake}
	a, err := Aggregate(sampleRecords(), opts)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	b, err := Aggregate(sampleRecords(), opts)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("results differ:\n%+v\n%+v", a.Sorted(), b.Sorted())
	}
}

func TestAggregateMeanIsOrderIndependent(t *testing.T) {
	t.Parallel()

	records := sampleRecords()
	opts := Options{Dimensions: []Dimension{Zip}, Geo: Mean}
	base, err := Aggregate(records, opts)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]Record(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, err := Aggregate(shuffled, opts)
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		for k, want := range base.Groups {
			g := got.Groups[k]
			if g == nil {
				t.Fatalf("missing group %s", k)
			}
			if g.Total != want.Total || g.HasGeo != want.HasGeo {
				t.Fatalf("group %s = %+v want %+v", k, g, want)
			}
			if math.Abs(g.Lat-want.Lat) > 1e-9 || math.Abs(g.Lon-want.Lon) > 1e-9 {
				t.Fatalf("group %s location (%f,%f) want (%f,%f)", k, g.Lat, g.Lon, want.Lat, want.Lon)
			}
		}
	}

	g := base.Groups[NewKey("94105")]
	if math.Abs(g.Lat-(37.79+37.78+37.80)/3) > 1e-9 {
		t.Fatalf("mean lat=%f", g.Lat)
	}
	// The row without a location still counts but does not pull the mean.
	h := base.Groups[NewKey("01234")]
	if h.Total != 8 || h.Lat != 42.5 || h.Lon != -71.3 {
		t.Fatalf("01234 group=%+v", h)
	}
}

func TestAggregateFirstSeenLocation(t *testing.T) {
	t.Parallel()

	records := sampleRecords()
	res, err := Aggregate(records, Options{Dimensions: []Dimension{Zip}, Geo: FirstSeen})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	for k, g := range res.Groups {
		for _, r := range records {
			if r.ZipCode != k.At(0) {
				continue
			}
			if _, ok := r.Count(); !ok {
				continue
			}
			lat, lon, ok := r.Location()
			if !ok {
				continue
			}
			if g.Lat != lat || g.Lon != lon {
				t.Fatalf("group %s location (%f,%f) want first (%f,%f)", k, g.Lat, g.Lon, lat, lon)
			}
			break
		}
	}
}

func TestAggregateNoLocation(t *testing.T) {
	t.Parallel()

	res, err := Aggregate([]Record{rec("1", "A", "3")}, Options{Dimensions: []Dimension{Zip}, Geo: Mean})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	g := res.Groups[NewKey("1")]
	if g.HasGeo || g.Lat != 0 || g.Lon != 0 {
		t.Fatalf("group=%+v want no location", g)
	}
	if len(res.Locations()) != 0 {
		t.Fatalf("locations=%v want none", res.Locations())
	}
}

func TestFilterByZip(t *testing.T) {
	t.Parallel()

	records := append(sampleRecords(), rec("1234", "HONDA", "9"))
	res, err := Aggregate(records, Options{Dimensions: []Dimension{Make, Zip}})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	got, err := FilterByZip(res, "01234")
	if err != nil {
		t.Fatalf("FilterByZip: %v", err)
	}
	if len(got) != 1 || got[0].Total != 8 || got[0].Key != NewKey("HONDA", "01234") {
		t.Fatalf("FilterByZip=%+v", got)
	}

	got, err = FilterByZip(res, "94105")
	if err != nil {
		t.Fatalf("FilterByZip: %v", err)
	}
	var labels []string
	for _, g := range got {
		labels = append(labels, g.Key.At(0))
	}
	// FORD's only row has no count.
	if !reflect.DeepEqual(labels, []string{"BMW", "TESLA"}) {
		t.Fatalf("makes=%v", labels)
	}

	byMake, err := Aggregate(records, Options{Dimensions: []Dimension{Make}})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if _, err := FilterByZip(byMake, "01234"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v want ErrInvalidArgument", err)
	}
}

func TestParseDimensions(t *testing.T) {
	t.Parallel()

	dims, err := ParseDimensions("zip_code, make,year")
	if err != nil {
		t.Fatalf("ParseDimensions: %v", err)
	}
	if !reflect.DeepEqual(dims, []Dimension{Zip, Make, ModelYear}) {
		t.Fatalf("dims=%v", dims)
	}
	for _, bad := range []string{"", " , ", "zip,zip", "colour"} {
		if _, err := ParseDimensions(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("ParseDimensions(%q) err=%v want ErrInvalidArgument", bad, err)
		}
	}
}

func TestKeyOrdering(t *testing.T) {
	t.Parallel()

	if !NewKey("1", "A").Less(NewKey("1", "B")) {
		t.Fatal("1/A should sort before 1/B")
	}
	if !NewKey("1").Less(NewKey("1", "A")) {
		t.Fatal("shorter key should sort first")
	}
	if NewKey("2").Less(NewKey("10")) {
		t.Fatal("keys compare as strings")
	}
	if got := NewKey("a", "b").At(5); got != "" {
		t.Fatalf("At out of range=%q", got)
	}
}
