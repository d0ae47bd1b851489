// Package decoder reconstructs tagged data points from a dense,
// dimension-described value array.
//
// The flat array is laid out as a mixed-radix cartesian product of the
// non-metric dimensions: the first dimension in id order varies slowest,
// the last one fastest.
package decoder

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrShapeMismatch is returned when the value array length differs from
	// the product of all cross-product dimension sizes.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnknownDimension is returned when an id listed in Metadata.IDs has
	// no category table.
	ErrUnknownDimension = errors.New("unknown dimension")

	// ErrMissingValue is returned in Strict mode for a null array entry.
	ErrMissingValue = errors.New("missing value")
)

// MissingPolicy controls how null array entries are decoded
type MissingPolicy int

const (
	// ZeroFill decodes a null entry as 0. A zero therefore means either a
	// reported zero or no data.
	ZeroFill MissingPolicy = iota
	// Strict rejects null entries with ErrMissingValue
	Strict
)

// Category is one labeled value of a dimension
type Category struct {
	ID    string
	Index int // position in the array layout
	Label string
}

// Dimension is a named axis with its categories
type Dimension struct {
	ID         string
	Categories []Category
}

// Metadata describes the layout of a flat value array
type Metadata struct {
	// IDs lists dimension ids in array layout order, slowest first.
	IDs        []string
	Dimensions map[string]Dimension
	Metric     []string
	Time       []string
}

// IsMetric reports whether id is classified as a metric dimension
func (m Metadata) IsMetric(id string) bool {
	return slices.Contains(m.Metric, id)
}

// Options configures a Decoder
type Options struct {
	Missing MissingPolicy
}

// Decoder turns flat value arrays into data points
type Decoder struct {
	opts Options
}

// New creates a decoder with the given options
func New(opts Options) *Decoder {
	return &Decoder{opts: opts}
}

// Decode decodes values with the zero-fill policy
func Decode(meta Metadata, values []*int64) ([]DataPoint, error) {
	return New(Options{}).Decode(meta, values)
}

// axis is one cross-product dimension prepared for the walk
type axis struct {
	id     string
	labels []string
	stride int
}

// Decode walks the cartesian product of all non-metric dimensions and pairs
// every label combination with its flat array entry.
func (d *Decoder) Decode(meta Metadata, values []*int64) ([]DataPoint, error) {
	axes, total, err := layout(meta)
	if err != nil {
		return nil, err
	}
	if len(values) != total {
		return nil, fmt.Errorf("%w: expected %d values for dimension sizes %v, got %d",
			ErrShapeMismatch, total, sizes(axes), len(values))
	}

	points := make([]DataPoint, 0, total)
	for flat := 0; flat < total; flat++ {
		tags := make(map[string]string, len(axes))
		for _, a := range axes {
			tags[a.id] = a.labels[(flat/a.stride)%len(a.labels)]
		}

		var value int64
		if v := values[flat]; v != nil {
			value = *v
		} else if d.opts.Missing == Strict {
			return nil, fmt.Errorf("%w at flat index %d", ErrMissingValue, flat)
		}

		points = append(points, DataPoint{tags: tags, Value: value})
	}
	return points, nil
}

// layout computes the axes with their strides and the expected array length.
func layout(meta Metadata) ([]axis, int, error) {
	axes := make([]axis, 0, len(meta.IDs))
	for _, id := range meta.IDs {
		if meta.IsMetric(id) {
			continue
		}
		dim, ok := meta.Dimensions[id]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrUnknownDimension, id)
		}
		axes = append(axes, axis{id: id, labels: LabelsByIndex(dim)})
	}

	// Stride of an axis is the product of the sizes of all axes after it.
	total := 1
	for i := len(axes) - 1; i >= 0; i-- {
		axes[i].stride = total
		total *= len(axes[i].labels)
	}
	return axes, total, nil
}

// LabelsByIndex returns the dimension's display labels ordered by category
// position. Ties are broken by category id so the order is reproducible.
func LabelsByIndex(dim Dimension) []string {
	cats := slices.Clone(dim.Categories)
	slices.SortStableFunc(cats, func(a, b Category) int {
		if a.Index != b.Index {
			return a.Index - b.Index
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	labels := make([]string, len(cats))
	for i, c := range cats {
		labels[i] = c.Label
	}
	return labels
}

func sizes(axes []axis) []int {
	out := make([]int, len(axes))
	for i, a := range axes {
		out[i] = len(a.labels)
	}
	return out
}
