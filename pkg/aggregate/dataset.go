package aggregate

// Dataset is an immutable record set with the normalization and geo policy
// every view over it shares. A reload builds a new Dataset instead of
// mutating the old one, so readers never need a lock.
type Dataset struct {
	records   []Record
	normalize Normalizer
	geo       GeoPolicy
	summary   Summary
}

// Summary describes a dataset as a whole.
type Summary struct {
	Records  int   `json:"records"`
	Valid    int   `json:"valid"`
	Dropped  int   `json:"dropped"`
	Vehicles int64 `json:"vehicles"`
	Zips     int   `json:"zips"`
	Makes    int   `json:"makes"`
}

type DatasetOption func(*Dataset)

// WithNormalizer sets the normalizer applied when a query sets none.
func WithNormalizer(n Normalizer) DatasetOption {
	return func(d *Dataset) { d.normalize = n }
}

// WithGeoPolicy sets the policy ByZip uses.
func WithGeoPolicy(p GeoPolicy) DatasetOption {
	return func(d *Dataset) { d.geo = p }
}

// NewDataset copies records. The default normalizer upper-cases makes so
// every view groups makes the same way.
func NewDataset(records []Record, opts ...DatasetOption) *Dataset {
	d := &Dataset{
		records:   append([]Record(nil), records...),
		normalize: Chain(TrimFields, UpperMake),
		geo:       FirstSeen,
	}
	for _, o := range opts {
		o(d)
	}
	d.summary = d.summarize()
	return d
}

func (d *Dataset) summarize() Summary {
	s := Summary{Records: len(d.records)}
	res, err := d.Aggregate(Options{Dimensions: []Dimension{Zip, Make}})
	if err != nil {
		return s
	}
	s.Valid = res.Accepted
	s.Dropped = res.Drops.Dropped()
	s.Vehicles = res.Total()
	zips := make(map[string]struct{})
	makes := make(map[string]struct{})
	for k := range res.Groups {
		zips[k.At(0)] = struct{}{}
		makes[k.At(1)] = struct{}{}
	}
	s.Zips, s.Makes = len(zips), len(makes)
	return s
}

func (d *Dataset) Len() int { return len(d.records) }

func (d *Dataset) Summary() Summary { return d.summary }

func (d *Dataset) GeoPolicy() GeoPolicy { return d.geo }

// Aggregate runs Aggregate over the dataset, using the dataset normalizer
// when opts has none.
func (d *Dataset) Aggregate(opts Options) (*Result, error) {
	if opts.Normalize == nil {
		opts.Normalize = d.normalize
	}
	return Aggregate(d.records, opts)
}

// Rollup aggregates by opts and collapses onto dimensionIndex.
func (d *Dataset) Rollup(opts Options, dimensionIndex int) (Totals, error) {
	res, err := d.Aggregate(opts)
	if err != nil {
		return nil, err
	}
	return Rollup(res, dimensionIndex)
}

// ByZip lists the (zip, make) groups for one ZIP code.
func (d *Dataset) ByZip(zip string) ([]Group, error) {
	res, err := d.Aggregate(Options{
		Dimensions: []Dimension{Zip, Make},
		Geo:        d.geo,
		Filter:     ZipIs(zip),
	})
	if err != nil {
		return nil, err
	}
	return FilterByZip(res, zip)
}
