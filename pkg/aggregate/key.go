package aggregate

import "strings"

// Key is an ordered tuple of dimension values. It is comparable, so it can be
// used directly as a map key, and field values may contain any character.
type Key struct {
	n    uint8
	vals [maxDims]string
}

// NewKey builds a key from values. Values past the dimension limit are
// ignored.
func NewKey(values ...string) Key {
	var k Key
	for i, v := range values {
		if i == maxDims {
			break
		}
		k.vals[i] = v
		k.n++
	}
	return k
}

func (k Key) Len() int { return int(k.n) }

// At returns the i'th value, or "" when i is out of range.
func (k Key) At(i int) string {
	if i < 0 || i >= int(k.n) {
		return ""
	}
	return k.vals[i]
}

func (k Key) Values() []string {
	out := make([]string, k.n)
	copy(out, k.vals[:k.n])
	return out
}

// String is for display and logs only.
func (k Key) String() string {
	return strings.Join(k.vals[:k.n], " / ")
}

// Less orders keys value by value, shorter keys first on a shared prefix.
func (k Key) Less(o Key) bool {
	n := k.n
	if o.n < n {
		n = o.n
	}
	for i := uint8(0); i < n; i++ {
		if k.vals[i] != o.vals[i] {
			return k.vals[i] < o.vals[i]
		}
	}
	return k.n < o.n
}

func keyFor(r Record, dims []Dimension) (Key, bool) {
	var k Key
	for _, d := range dims {
		v := d.Value(r)
		if v == "" {
			return Key{}, false
		}
		k.vals[k.n] = v
		k.n++
	}
	return k, true
}
