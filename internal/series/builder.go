package series

import (
	"fmt"
	"slices"
	"time"

	"github.com/soltixdb/statseries/internal/decoder"
)

// Build groups decoded points into one series per residual tag set, the
// labels left after removing the time dimension. Values of points sharing a
// tag set and date are summed. Members are ordered by tag set.
func Build(points []decoder.DataPoint, timeID string, updated time.Time) (Group, error) {
	type bucket struct {
		tags   TagSet
		points []Point
	}
	buckets := make(map[string]*bucket)

	for _, p := range points {
		label, ok := p.Tag(timeID)
		if !ok {
			return Group{}, fmt.Errorf("%w: point %s has no %q label", ErrDateFormat, p, timeID)
		}
		date, err := ParseTime(label)
		if err != nil {
			return Group{}, err
		}

		tags := NewTagSet(p.Without(timeID)...)
		b, ok := buckets[tags.Key()]
		if !ok {
			b = &bucket{tags: tags}
			buckets[tags.Key()] = b
		}
		b.points = append(b.points, Point{Date: date, Value: p.Value})
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	members := make([]TimeSeries, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		members = append(members, New(b.tags, b.points...))
	}
	return NewGroup(updated, members...), nil
}
