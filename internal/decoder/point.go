package decoder

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// DataPoint is one decoded value tagged with the label chosen on every
// cross-product dimension. The tag map is never exposed for mutation.
type DataPoint struct {
	tags  map[string]string
	Value int64
}

// NewDataPoint creates a data point from a copy of tags
func NewDataPoint(tags map[string]string, value int64) DataPoint {
	return DataPoint{tags: maps.Clone(tags), Value: value}
}

// Tag returns the label for a dimension id
func (p DataPoint) Tag(id string) (string, bool) {
	v, ok := p.tags[id]
	return v, ok
}

// Tags returns a copy of the dimension id to label mapping
func (p DataPoint) Tags() map[string]string {
	return maps.Clone(p.tags)
}

// Without returns the labels of every dimension except id, in dimension id
// order.
func (p DataPoint) Without(id string) []string {
	keys := slices.Sorted(maps.Keys(p.tags))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != id {
			out = append(out, p.tags[k])
		}
	}
	return out
}

// String formats the point as "dim=label,... => value" for logs and test
// failures.
func (p DataPoint) String() string {
	keys := slices.Sorted(maps.Keys(p.tags))
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p.tags[k])
	}
	b.WriteString(" => ")
	b.WriteString(strconv.FormatInt(p.Value, 10))
	return b.String()
}
