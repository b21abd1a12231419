package aggregate

import (
	"fmt"
	"strings"
)

// Dimension names one record field usable in a grouping key.
type Dimension uint8

const (
	Zip Dimension = iota + 1
	Make
	ModelYear
	Fuel
	Duty
)

// maxDims is the number of distinct dimensions; keys never grow past it.
const maxDims = 5

var dimensionNames = map[Dimension]string{
	Zip:       "zip",
	Make:      "make",
	ModelYear: "model_year",
	Fuel:      "fuel",
	Duty:      "duty",
}

func (d Dimension) String() string {
	if s, ok := dimensionNames[d]; ok {
		return s
	}
	return fmt.Sprintf("dimension(%d)", uint8(d))
}

// Value extracts the dimension's field from r, trimmed.
func (d Dimension) Value(r Record) string {
	switch d {
	case Zip:
		return strings.TrimSpace(r.ZipCode)
	case Make:
		return strings.TrimSpace(r.Make)
	case ModelYear:
		return strings.TrimSpace(r.ModelYear)
	case Fuel:
		return strings.TrimSpace(r.Fuel)
	case Duty:
		return strings.TrimSpace(r.Duty)
	}
	return ""
}

// ParseDimension accepts the canonical names plus the CSV column spellings.
func ParseDimension(s string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zip", "zip_code", "zipcode":
		return Zip, nil
	case "make":
		return Make, nil
	case "model_year", "year", "modelyear":
		return ModelYear, nil
	case "fuel", "fuel_type":
		return Fuel, nil
	case "duty", "duty_class":
		return Duty, nil
	}
	return 0, fmt.Errorf("%w: unknown dimension %q", ErrInvalidArgument, s)
}

// ParseDimensions parses a comma separated list such as "zip,make".
func ParseDimensions(s string) ([]Dimension, error) {
	var dims []Dimension
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := ParseDimension(part)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	if err := validateDimensions(dims); err != nil {
		return nil, err
	}
	return dims, nil
}

func validateDimensions(dims []Dimension) error {
	if len(dims) == 0 {
		return fmt.Errorf("%w: no grouping dimensions", ErrInvalidArgument)
	}
	var seen [maxDims + 1]bool
	for _, d := range dims {
		if _, ok := dimensionNames[d]; !ok {
			return fmt.Errorf("%w: unknown dimension %d", ErrInvalidArgument, uint8(d))
		}
		if seen[d] {
			return fmt.Errorf("%w: duplicate dimension %s", ErrInvalidArgument, d)
		}
		seen[d] = true
	}
	return nil
}

// IndexOf returns the position of d in dims, or -1.
func IndexOf(dims []Dimension, d Dimension) int {
	for i, x := range dims {
		if x == d {
			return i
		}
	}
	return -1
}
