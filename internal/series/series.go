// Package series implements labeled, calendar-indexed integer series and the
// transforms used to build comparative reports.
//
// TimeSeries and Group are values: every operator returns a new value and
// never modifies its receiver, so one group can feed several independent
// pipelines.
package series

import (
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/google/btree"
)

const btreeDegree = 8

// Point is one dated value
type Point struct {
	Date  time.Time
	Value int64
}

func lessPoint(a, b Point) bool {
	return a.Date.Before(b.Date)
}

// TimeSeries is a tag set plus a date-ordered mapping of values. No two
// entries share a date. The zero value is an empty, untagged series.
type TimeSeries struct {
	tags TagSet
	data *btree.BTreeG[Point]
}

// New builds a series from points. Points sharing a date are summed.
func New(tags TagSet, points ...Point) TimeSeries {
	data := btree.NewG(btreeDegree, lessPoint)
	for _, p := range points {
		add(data, Day(p.Date), p.Value)
	}
	return TimeSeries{tags: tags, data: data}
}

// Unit builds a single-entry series
func Unit(tags TagSet, date time.Time, value int64) TimeSeries {
	return New(tags, Point{Date: date, Value: value})
}

// add inserts value at date, summing with an existing entry. Only used on
// trees that have not been published yet.
func add(data *btree.BTreeG[Point], date time.Time, value int64) {
	if old, ok := data.Get(Point{Date: date}); ok {
		value += old.Value
	}
	data.ReplaceOrInsert(Point{Date: date, Value: value})
}

// derive returns an empty series carrying s's tags, and its backing tree
func (s TimeSeries) derive() (TimeSeries, *btree.BTreeG[Point]) {
	data := btree.NewG(btreeDegree, lessPoint)
	return TimeSeries{tags: s.tags, data: data}, data
}

func (s TimeSeries) ascend(fn func(Point) bool) {
	if s.data != nil {
		s.data.Ascend(fn)
	}
}

// Tags returns the series' tag set
func (s TimeSeries) Tags() TagSet { return s.tags }

// Len returns the number of dated entries
func (s TimeSeries) Len() int {
	if s.data == nil {
		return 0
	}
	return s.data.Len()
}

// Get returns the value at date
func (s TimeSeries) Get(date time.Time) (int64, bool) {
	if s.data == nil {
		return 0, false
	}
	p, ok := s.data.Get(Point{Date: Day(date)})
	return p.Value, ok
}

// First returns the earliest entry
func (s TimeSeries) First() (Point, error) {
	if s.Len() == 0 {
		return Point{}, ErrEmptySeries
	}
	p, _ := s.data.Min()
	return p, nil
}

// Last returns the latest entry
func (s TimeSeries) Last() (Point, error) {
	if s.Len() == 0 {
		return Point{}, ErrEmptySeries
	}
	p, _ := s.data.Max()
	return p, nil
}

// All iterates entries in ascending date order
func (s TimeSeries) All() iter.Seq2[time.Time, int64] {
	return func(yield func(time.Time, int64) bool) {
		s.ascend(func(p Point) bool { return yield(p.Date, p.Value) })
	}
}

// Points returns entries in ascending date order
func (s TimeSeries) Points() []Point {
	out := make([]Point, 0, s.Len())
	s.ascend(func(p Point) bool {
		out = append(out, p)
		return true
	})
	return out
}

// Dates returns entry dates in ascending order
func (s TimeSeries) Dates() []time.Time {
	out := make([]time.Time, 0, s.Len())
	s.ascend(func(p Point) bool {
		out = append(out, p.Date)
		return true
	})
	return out
}

// WithTags returns the same entries under a different tag set
func (s TimeSeries) WithTags(tags TagSet) TimeSeries {
	return TimeSeries{tags: tags, data: s.data}
}

// Accumulate replaces every value with the running sum up to and including
// its date.
func (s TimeSeries) Accumulate() TimeSeries {
	out, _ := s.accumulate(time.Time{}, false)
	return out
}

// AccumulateTo accumulates like Accumulate and, when final has no entry,
// adds one at final holding the grand total.
func (s TimeSeries) AccumulateTo(final time.Time) TimeSeries {
	out, _ := s.accumulate(Day(final), true)
	return out
}

func (s TimeSeries) accumulate(final time.Time, pad bool) (TimeSeries, int64) {
	out, data := s.derive()
	var sum int64
	s.ascend(func(p Point) bool {
		sum += p.Value
		data.ReplaceOrInsert(Point{Date: p.Date, Value: sum})
		return true
	})
	if pad {
		if _, ok := data.Get(Point{Date: final}); !ok {
			data.ReplaceOrInsert(Point{Date: final, Value: sum})
		}
	}
	return out, sum
}

// SliceFrom keeps only entries strictly after date
func (s TimeSeries) SliceFrom(date time.Time) TimeSeries {
	out, data := s.derive()
	date = Day(date)
	s.ascend(func(p Point) bool {
		if p.Date.After(date) {
			data.ReplaceOrInsert(p)
		}
		return true
	})
	return out
}

// BucketReduce down-samples the series to the dates matching isBoundary.
// combine is applied to every adjacent pair of entries; the results are
// summed since the previous boundary and emitted at the next one. A boundary
// on the very first entry emits 0.
func (s TimeSeries) BucketReduce(isBoundary func(time.Time) bool, combine func(prev, cur int64) int64) TimeSeries {
	out, data := s.derive()
	var (
		acc     int64
		prev    int64
		started bool
	)
	s.ascend(func(p Point) bool {
		if started {
			acc += combine(prev, p.Value)
		}
		if isBoundary(p.Date) {
			data.ReplaceOrInsert(Point{Date: p.Date, Value: acc})
			acc = 0
		}
		prev, started = p.Value, true
		return true
	})
	return out
}

// Map transforms every value, keeping dates and tags
func (s TimeSeries) Map(fn func(int64) int64) TimeSeries {
	out, data := s.derive()
	s.ascend(func(p Point) bool {
		data.ReplaceOrInsert(Point{Date: p.Date, Value: fn(p.Value)})
		return true
	})
	return out
}

// Scale multiplies every value by factor
func (s TimeSeries) Scale(factor int64) TimeSeries {
	return s.Map(func(v int64) int64 { return v * factor })
}

// Merge adds two series: tags are united and values at shared dates summed.
func (s TimeSeries) Merge(other TimeSeries) TimeSeries {
	out := TimeSeries{tags: s.tags.Union(other.tags), data: btree.NewG(btreeDegree, lessPoint)}
	s.ascend(func(p Point) bool {
		out.data.ReplaceOrInsert(p)
		return true
	})
	other.ascend(func(p Point) bool {
		add(out.data, p.Date, p.Value)
		return true
	})
	return out
}

// RatioTo expresses s as a percentage of other at every date present in
// either series. Dates where other is zero or absent yield 0.
func (s TimeSeries) RatioTo(other TimeSeries) TimeSeries {
	out, data := s.derive()
	visit := func(p Point) bool {
		if _, done := data.Get(p); done {
			return true
		}
		num, _ := s.Get(p.Date)
		den, _ := other.Get(p.Date)
		var v int64
		if den != 0 {
			v = 100 * num / den
		}
		data.ReplaceOrInsert(Point{Date: p.Date, Value: v})
		return true
	}
	s.ascend(visit)
	other.ascend(visit)
	return out
}

// String formats the series as "{tags} [2020-01-01:1 ...]"
func (s TimeSeries) String() string {
	var b strings.Builder
	b.WriteString(s.tags.String())
	b.WriteString(" [")
	first := true
	s.ascend(func(p Point) bool {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(p.Date.Format(time.DateOnly))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(p.Value, 10))
		return true
	})
	b.WriteByte(']')
	return b.String()
}
