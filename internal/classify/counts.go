// Package classify tallies variant positions per region category, one
// chromosome at a time.
package classify

import (
	"fmt"

	"github.com/inodb/regionmap/internal/region"
)

// ErrUnknownCategory is returned when a located category has no counter.
var ErrUnknownCategory = region.ErrUnknownCategory

// Counts maps every region category, including unmapped, to a variant count.
type Counts map[region.Category]int

// NewCounts returns counts with all categories registered at zero.
func NewCounts() Counts {
	c := make(Counts, len(region.Categories))
	for _, cat := range region.Categories {
		c[cat] = 0
	}
	return c
}

// Add increments the count of cat, failing for unregistered categories.
func (c Counts) Add(cat region.Category) error {
	n, ok := c[cat]
	if !ok {
		return fmt.Errorf("%q: %w", cat, ErrUnknownCategory)
	}
	c[cat] = n + 1
	return nil
}

// Total returns the sum of all category counts.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Merge adds other into c.
func (c Counts) Merge(other Counts) {
	for cat, n := range other {
		c[cat] += n
	}
}

// Aggregate locates every position against the tiling and returns the
// per-category counts. Positions are not reordered or deduplicated.
func Aggregate(positions []int64, tiling region.Tiling) (Counts, error) {
	counts, _, err := Classify(positions, tiling)
	return counts, err
}

// Classify is Aggregate that also returns the category of each position.
func Classify(positions []int64, tiling region.Tiling) (Counts, []region.Category, error) {
	counts := NewCounts()
	cats := make([]region.Category, len(positions))
	for i, pos := range positions {
		cat := region.Locate(pos, tiling)
		if err := counts.Add(cat); err != nil {
			return nil, nil, fmt.Errorf("position %d: %w", pos, err)
		}
		cats[i] = cat
	}
	return counts, cats, nil
}
