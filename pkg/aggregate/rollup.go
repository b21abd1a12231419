package aggregate

import (
	"fmt"
	"sort"
	"strings"
)

// Totals maps one dimension's values to vehicle totals.
type Totals map[string]int64

// Rollup collapses r onto the dimension at dimensionIndex, summing the
// totals of every group sharing that value.
func Rollup(r *Result, dimensionIndex int) (Totals, error) {
	if dimensionIndex < 0 || dimensionIndex >= len(r.Dimensions) {
		return nil, fmt.Errorf("%w: dimension index %d out of range [0,%d)", ErrInvalidArgument, dimensionIndex, len(r.Dimensions))
	}
	out := make(Totals)
	for k, g := range r.Groups {
		out[k.At(dimensionIndex)] += g.Total
	}
	return out, nil
}

// RollupBy is Rollup addressed by dimension instead of key position.
func RollupBy(r *Result, d Dimension) (Totals, error) {
	idx := IndexOf(r.Dimensions, d)
	if idx < 0 {
		return nil, fmt.Errorf("%w: result is not grouped by %s", ErrInvalidArgument, d)
	}
	return Rollup(r, idx)
}

// Matrix is a two-level rollup: row value -> column value -> total. The
// stacked bar chart uses ZIP rows and make columns.
type Matrix map[string]Totals

func MatrixOf(r *Result, rowIndex, colIndex int) (Matrix, error) {
	n := len(r.Dimensions)
	if rowIndex < 0 || rowIndex >= n || colIndex < 0 || colIndex >= n || rowIndex == colIndex {
		return nil, fmt.Errorf("%w: matrix indexes %d,%d invalid for %d dimensions", ErrInvalidArgument, rowIndex, colIndex, n)
	}
	out := make(Matrix)
	for k, g := range r.Groups {
		row := k.At(rowIndex)
		t, ok := out[row]
		if !ok {
			t = make(Totals)
			out[row] = t
		}
		t[k.At(colIndex)] += g.Total
	}
	return out, nil
}

// Order is the primary sort direction of TopN.
type Order uint8

const (
	Desc Order = iota
	Asc
)

func (o Order) String() string {
	if o == Asc {
		return "asc"
	}
	return "desc"
}

func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "top":
		return Desc, nil
	case "asc", "bottom":
		return Asc, nil
	}
	return 0, fmt.Errorf("%w: unknown order %q", ErrInvalidArgument, s)
}

// Entry is one labelled total in a ranking.
type Entry struct {
	Label string `json:"label"`
	Total int64  `json:"total"`
}

// Ranked returns every entry of t sorted by total in the given order. Equal
// totals are always ordered by label ascending, whatever the order.
func Ranked(t Totals, order Order) []Entry {
	out := make([]Entry, 0, len(t))
	for label, total := range t {
		out = append(out, Entry{Label: label, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Total != b.Total {
			if order == Asc {
				return a.Total < b.Total
			}
			return a.Total > b.Total
		}
		return a.Label < b.Label
	})
	return out
}

// TopN returns the first n entries of Ranked. n beyond the available
// entries returns all of them; n <= 0 returns none.
func TopN(t Totals, n int, order Order) []Entry {
	if n <= 0 {
		return []Entry{}
	}
	out := Ranked(t, order)
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Sum totals every entry of t.
func (t Totals) Sum() int64 {
	var s int64
	for _, v := range t {
		s += v
	}
	return s
}
