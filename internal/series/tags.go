package series

import (
	"slices"
	"strings"
)

// keySep separates tags in a TagSet key. Labels never contain it.
const keySep = "\x1f"

// TagSet is an immutable, sorted set of labels identifying a series
type TagSet struct {
	tags []string
}

// NewTagSet builds a set from tags, dropping duplicates
func NewTagSet(tags ...string) TagSet {
	sorted := slices.Clone(tags)
	slices.Sort(sorted)
	return TagSet{tags: slices.Compact(sorted)}
}

// Len returns the number of tags
func (t TagSet) Len() int { return len(t.tags) }

// Contains reports whether tag is in the set
func (t TagSet) Contains(tag string) bool {
	_, found := slices.BinarySearch(t.tags, tag)
	return found
}

// Union returns the set of tags present in either set
func (t TagSet) Union(other TagSet) TagSet {
	if len(other.tags) == 0 {
		return t
	}
	if len(t.tags) == 0 {
		return other
	}
	merged := make([]string, 0, len(t.tags)+len(other.tags))
	merged = append(merged, t.tags...)
	merged = append(merged, other.tags...)
	slices.Sort(merged)
	return TagSet{tags: slices.Compact(merged)}
}

// Equal reports whether both sets hold the same tags
func (t TagSet) Equal(other TagSet) bool {
	return slices.Equal(t.tags, other.tags)
}

// Strings returns the tags in ascending order
func (t TagSet) Strings() []string {
	return slices.Clone(t.tags)
}

// Join concatenates the tags in ascending order
func (t TagSet) Join(sep string) string {
	return strings.Join(t.tags, sep)
}

// Key returns a string usable as a map key for set identity
func (t TagSet) Key() string {
	return strings.Join(t.tags, keySep)
}

func (t TagSet) String() string {
	return "{" + t.Join(",") + "}"
}
