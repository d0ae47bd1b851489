// Package jsonstat maps the statistics bank's JSON-stat dataset and
// table-info documents to Go types.
package jsonstat

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	json "github.com/goccy/go-json"
	"github.com/soltixdb/statseries/internal/decoder"
)

// ErrMalformed is returned for response bodies that are not valid documents
var ErrMalformed = errors.New("malformed statbank document")

// DatasetContainer is the top-level data response
type DatasetContainer struct {
	Dataset Dataset `json:"dataset"`
}

// Dataset holds the flat value array and the dimensions describing it
type Dataset struct {
	Dimension Dimensions `json:"dimension"`
	Label     string     `json:"label"`
	Source    string     `json:"source"`
	Updated   string     `json:"updated"`
	Value     []*int64   `json:"value"`
}

// Unit describes the unit of a metric category
type Unit struct {
	Base     string `json:"base"`
	Decimals int    `json:"decimals"`
}

// Category maps category ids to array positions and display labels
type Category struct {
	Index map[string]int    `json:"index"`
	Label map[string]string `json:"label"`
	Unit  map[string]Unit   `json:"unit,omitempty"`
}

// Dimension is one entry of the dimension object
type Dimension struct {
	Label    string   `json:"label"`
	Category Category `json:"category"`
}

// Role classifies dimensions
type Role struct {
	Metric []string `json:"metric"`
	Time   []string `json:"time"`
}

// Dimensions is the "dimension" object. Its fixed keys id, size and role sit
// next to one object per dimension keyed by dimension id.
type Dimensions struct {
	ID        []string
	Size      []int
	Role      Role
	Dimension map[string]Dimension
}

type dimensionsStaticKeys struct {
	ID   []string `json:"id"`
	Size []int    `json:"size"`
	Role Role     `json:"role"`
}

var staticKeys = []string{"id", "size", "role"}

// UnmarshalJSON splits the fixed keys from the per-dimension entries
func (d *Dimensions) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var static dimensionsStaticKeys
	for _, key := range staticKeys {
		v, ok := raw[key]
		if !ok {
			return fmt.Errorf("dimension object is missing %q", key)
		}
		delete(raw, key)
		var err error
		switch key {
		case "id":
			err = json.Unmarshal(v, &static.ID)
		case "size":
			err = json.Unmarshal(v, &static.Size)
		case "role":
			err = json.Unmarshal(v, &static.Role)
		}
		if err != nil {
			return fmt.Errorf("dimension %s: %w", key, err)
		}
	}

	dims := make(map[string]Dimension, len(raw))
	for id, v := range raw {
		var dim Dimension
		if err := json.Unmarshal(v, &dim); err != nil {
			return fmt.Errorf("dimension %s: %w", id, err)
		}
		dims[id] = dim
	}

	*d = Dimensions{ID: static.ID, Size: static.Size, Role: static.Role, Dimension: dims}
	return nil
}

// MarshalJSON writes the dimension object back in its wire shape
func (d Dimensions) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Dimension)+len(staticKeys))
	for id, dim := range d.Dimension {
		out[id] = dim
	}
	out["id"] = d.ID
	out["size"] = d.Size
	out["role"] = d.Role
	return json.Marshal(out)
}

// TimeID returns the id of the time dimension
func (d Dimensions) TimeID() (string, error) {
	if len(d.Role.Time) != 1 {
		return "", fmt.Errorf("expected exactly one time dimension, got %v", d.Role.Time)
	}
	return d.Role.Time[0], nil
}

// Metadata converts the dimension object to decoder metadata
func (d Dimensions) Metadata() decoder.Metadata {
	dims := make(map[string]decoder.Dimension, len(d.Dimension))
	for id, dim := range d.Dimension {
		cats := make([]decoder.Category, 0, len(dim.Category.Index))
		for _, catID := range slices.Sorted(maps.Keys(dim.Category.Index)) {
			label, ok := dim.Category.Label[catID]
			if !ok {
				label = catID
			}
			cats = append(cats, decoder.Category{ID: catID, Index: dim.Category.Index[catID], Label: label})
		}
		dims[id] = decoder.Dimension{ID: id, Categories: cats}
	}

	return decoder.Metadata{
		IDs:        slices.Clone(d.ID),
		Dimensions: dims,
		Metric:     slices.Clone(d.Role.Metric),
		Time:       slices.Clone(d.Role.Time),
	}
}

// ParseDataset decodes a data response body
func ParseDataset(body []byte) (*Dataset, error) {
	var c DatasetContainer
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("%w: dataset: %v", ErrMalformed, err)
	}
	return &c.Dataset, nil
}
