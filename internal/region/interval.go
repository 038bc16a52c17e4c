// Package region partitions a chromosome into non-overlapping genomic regions
// and classifies positions against the resulting tiling.
package region

import (
	"errors"
	"fmt"
	"strings"
)

// Category labels a genomic region.
type Category string

// Region categories. The first five label intervals; Unmapped is only ever
// a locate result.
const (
	CDS        Category = "CDS"
	Exon       Category = "exon"
	Gene       Category = "gene"
	Intron     Category = "intron"
	Intergenic Category = "intergenic"
	Unmapped   Category = "unmapped"
)

// Categories lists every classification result in report order.
var Categories = []Category{CDS, Exon, Gene, Intron, Intergenic, Unmapped}

// Sentinel errors returned at the tiling builder boundary.
var (
	ErrMalformedInterval = errors.New("malformed interval")
	ErrMixedChromosomes  = errors.New("intervals from more than one chromosome")
	ErrDerivedInput      = errors.New("derived category in annotation input")
	ErrUnsortedTiling    = errors.New("tiling is not sorted")
	ErrNotTileable       = errors.New("not a tiling category")
)

// ParseCategory converts an annotation feature type to a Category.
// Only the annotated categories (gene, exon, CDS) are accepted.
func ParseCategory(feature string) (Category, error) {
	switch feature {
	case "gene":
		return Gene, nil
	case "exon":
		return Exon, nil
	case "CDS":
		return CDS, nil
	}
	return "", fmt.Errorf("%q: %w", feature, ErrNotTileable)
}

// ErrUnknownCategory is returned for names that are not a classification
// result.
var ErrUnknownCategory = errors.New("unknown category")

// ParseReportCategory converts a report column name to a Category. Matching
// is case-insensitive so "cds" and "Intron" are accepted.
func ParseReportCategory(name string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(name, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, ErrUnknownCategory)
}

// IsCoding reports whether c belongs to the coding set (gene, exon, CDS).
func (c Category) IsCoding() bool {
	return c == Gene || c == Exon || c == CDS
}

// IsDerived reports whether c is synthesized by the tiling builder.
func (c Category) IsDerived() bool {
	return c == Intron || c == Intergenic
}

// Interval is a 1-based, inclusive genomic span with a category label.
type Interval struct {
	Chrom    string   // Sequence identifier (e.g., NC_000021.9)
	Category Category // Region category
	Start    int64    // Start position (1-based)
	End      int64    // End position (1-based, inclusive)
}

// NewInterval returns an interval after checking start <= end.
func NewInterval(chrom string, c Category, start, end int64) (Interval, error) {
	if start > end {
		return Interval{}, fmt.Errorf("%s %s:%d-%d: %w", c, chrom, start, end, ErrMalformedInterval)
	}
	return Interval{Chrom: chrom, Category: c, Start: start, End: end}, nil
}

// Contains returns true if pos lies within the interval boundaries.
func (iv Interval) Contains(pos int64) bool {
	return pos >= iv.Start && pos <= iv.End
}

// Len returns the number of positions covered by the interval.
func (iv Interval) Len() int64 {
	return iv.End - iv.Start + 1
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s:%d-%d(%s)", iv.Chrom, iv.Start, iv.End, iv.Category)
}

// gap returns the interval strictly between a and b, or false when a and b
// abut or overlap.
func gap(a, b Interval, c Category) (Interval, bool) {
	start, end := a.End+1, b.Start-1
	if end < start {
		return Interval{}, false
	}
	return Interval{Chrom: a.Chrom, Category: c, Start: start, End: end}, true
}
