package region

import (
	"fmt"
	"sort"

	"github.com/biogo/store/interval"
)

// Overlap is a pair of tiling intervals sharing at least one coordinate.
type Overlap struct {
	A, B Interval
}

// node adapts an Interval to the interval tree. The tree works on
// half-open ranges, so End is shifted by one.
type node struct {
	iv  Interval
	uid uintptr
}

func (n node) Overlap(b interval.IntRange) bool {
	return int(n.iv.End)+1 > b.Start && int(n.iv.Start) < b.End
}
func (n node) ID() uintptr { return n.uid }
func (n node) Range() interval.IntRange {
	return interval.IntRange{Start: int(n.iv.Start), End: int(n.iv.End) + 1}
}

// eachOverlap calls fn(i, j) with i < j for every pair of intervals in t
// that share a coordinate.
func eachOverlap(t Tiling, fn func(i, j int)) error {
	tree := &interval.IntTree{}
	for i, iv := range t {
		if err := tree.Insert(node{iv: iv, uid: uintptr(i)}, true); err != nil {
			return fmt.Errorf("insert %v: %w", iv, err)
		}
	}
	tree.AdjustRanges()

	for i, iv := range t {
		tree.DoMatching(func(e interval.IntInterface) bool {
			if j := int(e.ID()); j > i {
				fn(i, j)
			}
			return false
		}, node{iv: iv, uid: uintptr(i)})
	}
	return nil
}

// CountOverlaps returns the number of overlapping pairs FindOverlaps would
// report, without collecting them.
func CountOverlaps(t Tiling) (int, error) {
	n := 0
	err := eachOverlap(t, func(int, int) { n++ })
	return n, err
}

// FindOverlaps returns every pair of intervals in t that share a coordinate,
// ordered by the position of the first interval in t. A flattened tiling
// yields none; a stacked tiling reports its nested layers.
func FindOverlaps(t Tiling) ([]Overlap, error) {
	type pair struct{ a, b int }
	var pairs []pair
	if err := eachOverlap(t, func(i, j int) { pairs = append(pairs, pair{i, j}) }); err != nil {
		return nil, err
	}

	sort.Slice(pairs, func(x, y int) bool {
		if pairs[x].a != pairs[y].a {
			return pairs[x].a < pairs[y].a
		}
		return pairs[x].b < pairs[y].b
	})

	out := make([]Overlap, len(pairs))
	for k, p := range pairs {
		out[k] = Overlap{A: t[p.a], B: t[p.b]}
	}
	return out, nil
}
