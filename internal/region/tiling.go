package region

import (
	"fmt"
	"sort"
	"strings"
)

// Tiling is an ordered sequence of intervals on a single chromosome, sorted
// by (Start, End).
type Tiling []Interval

// Chrom returns the chromosome of the tiling, or "" when empty.
func (t Tiling) Chrom() string {
	if len(t) == 0 {
		return ""
	}
	return t[0].Chrom
}

// Validate checks that the tiling is sorted by (Start, End) and restricted
// to one chromosome.
func (t Tiling) Validate() error {
	for i := 1; i < len(t); i++ {
		if t[i].Chrom != t[0].Chrom {
			return fmt.Errorf("%s and %s: %w", t[0].Chrom, t[i].Chrom, ErrMixedChromosomes)
		}
		if lessStartEnd(t[i], t[i-1]) {
			return fmt.Errorf("%v before %v: %w", t[i-1], t[i], ErrUnsortedTiling)
		}
	}
	return nil
}

// Precedence selects how overlapping layers of the stacked tiling are
// resolved before locating.
type Precedence int

const (
	// PrecedenceFeature flattens the stacked tiling so each coordinate takes
	// the highest-ranked covering category: CDS > exon > intron > gene > intergenic.
	PrecedenceFeature Precedence = iota
	// PrecedenceProbe keeps the stacked tiling; whichever interval the
	// binary search probes first wins.
	PrecedenceProbe
)

// featureRank orders categories from highest to lowest precedence.
var featureRank = []Category{CDS, Exon, Intron, Gene, Intergenic}

// ParsePrecedence converts a policy name ("feature" or "probe").
func ParsePrecedence(s string) (Precedence, error) {
	switch strings.ToLower(s) {
	case "", "feature":
		return PrecedenceFeature, nil
	case "probe":
		return PrecedenceProbe, nil
	}
	return 0, fmt.Errorf("unknown precedence %q (want feature or probe)", s)
}

func (p Precedence) String() string {
	if p == PrecedenceProbe {
		return "probe"
	}
	return "feature"
}

// BuildTiling derives the intergenic and intronic intervals for the
// annotation records of one chromosome and returns the tiling handed to
// Locate. Records may arrive in any order but must share one chromosome,
// satisfy Start <= End and carry an annotated category.
func BuildTiling(records []Interval, p Precedence) (Tiling, error) {
	if err := checkRecords(records); err != nil {
		return nil, err
	}

	genes := geneSet(records)
	coding := codingSet(records)

	merged := Merge(coding, DeriveIntergenic(genes))
	stacked := Stack(DeriveIntrons(merged), merged)

	if p == PrecedenceProbe {
		return stacked, nil
	}
	return Flatten(stacked), nil
}

func checkRecords(records []Interval) error {
	for i, r := range records {
		if r.Chrom != records[0].Chrom {
			return fmt.Errorf("record %d on %s, expected %s: %w", i, r.Chrom, records[0].Chrom, ErrMixedChromosomes)
		}
		if r.Start > r.End {
			return fmt.Errorf("record %d %v: %w", i, r, ErrMalformedInterval)
		}
		if r.Category.IsDerived() {
			return fmt.Errorf("record %d %v: %w", i, r, ErrDerivedInput)
		}
		if !r.Category.IsCoding() {
			return fmt.Errorf("record %d %v: %w", i, r, ErrNotTileable)
		}
	}
	return nil
}

// geneSet returns the gene records sorted by (Start, End).
func geneSet(records []Interval) []Interval {
	var genes []Interval
	for _, r := range records {
		if r.Category == Gene {
			genes = append(genes, r)
		}
	}
	sortStartEnd(genes)
	return genes
}

// codingSet returns the gene, exon and CDS records in input order.
func codingSet(records []Interval) []Interval {
	coding := make([]Interval, 0, len(records))
	for _, r := range records {
		if r.Category.IsCoding() {
			coding = append(coding, r)
		}
	}
	return coding
}

// DeriveIntergenic returns the spans between consecutive genes. Genes must
// be sorted by (Start, End). No span is emitted between genes on different
// chromosomes or when consecutive genes abut or overlap.
func DeriveIntergenic(genes []Interval) []Interval {
	var out []Interval
	for i := 1; i < len(genes); i++ {
		if genes[i].Chrom != genes[i-1].Chrom {
			continue
		}
		if iv, ok := gap(genes[i-1], genes[i], Intergenic); ok {
			out = append(out, iv)
		}
	}
	return out
}

// Merge concatenates the coding set with the intergenic spans and stable
// sorts the result by Start.
func Merge(coding, intergenic []Interval) []Interval {
	merged := make([]Interval, 0, len(coding)+len(intergenic))
	merged = append(merged, coding...)
	merged = append(merged, intergenic...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start < merged[j].Start
	})
	return merged
}

// DeriveIntrons scans adjacent pairs of the merged sequence and returns the
// gap after a gene, exon or CDS when the next entry is an exon, CDS or
// intergenic span starting beyond it.
func DeriveIntrons(merged []Interval) []Interval {
	var out []Interval
	for i := 0; i+1 < len(merged); i++ {
		cur, next := merged[i], merged[i+1]
		if !cur.Category.IsCoding() {
			continue
		}
		if next.Category != Exon && next.Category != CDS && next.Category != Intergenic {
			continue
		}
		if next.Start <= cur.End {
			continue
		}
		if iv, ok := gap(cur, next, Intron); ok {
			out = append(out, iv)
		}
	}
	return out
}

// Stack concatenates the intronic intervals with the merged sequence and
// stable sorts by (Start, End). Overlapping layers are kept.
func Stack(introns, merged []Interval) Tiling {
	t := make(Tiling, 0, len(introns)+len(merged))
	t = append(t, introns...)
	t = append(t, merged...)
	sortStartEnd(t)
	return t
}

type edge struct {
	pos   int64
	rank  int
	delta int
}

// Flatten resolves the overlapping layers of a stacked tiling. Every covered
// coordinate takes its highest-ranked covering category and adjacent
// segments of one category are coalesced, so the result is strictly
// non-overlapping: for adjacent A, B, A.End < B.Start.
func Flatten(stacked Tiling) Tiling {
	if len(stacked) == 0 {
		return Tiling{}
	}

	edges := make([]edge, 0, 2*len(stacked))
	for _, iv := range stacked {
		r := rankOf(iv.Category)
		if r < 0 {
			continue
		}
		edges = append(edges, edge{pos: iv.Start, rank: r, delta: 1}, edge{pos: iv.End + 1, rank: r, delta: -1})
	}
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].pos < edges[j].pos
	})

	chrom := stacked.Chrom()
	active := make([]int, len(featureRank))
	var out Tiling

	for i := 0; i < len(edges); {
		pos := edges[i].pos
		for i < len(edges) && edges[i].pos == pos {
			active[edges[i].rank] += edges[i].delta
			i++
		}
		if i == len(edges) {
			break
		}

		top := -1
		for r, n := range active {
			if n > 0 {
				top = r
				break
			}
		}
		if top < 0 {
			continue
		}

		c, end := featureRank[top], edges[i].pos-1
		if n := len(out); n > 0 && out[n-1].Category == c && out[n-1].End == pos-1 {
			out[n-1].End = end
			continue
		}
		out = append(out, Interval{Chrom: chrom, Category: c, Start: pos, End: end})
	}

	return out
}

func rankOf(c Category) int {
	for r, fc := range featureRank {
		if fc == c {
			return r
		}
	}
	return -1
}

func lessStartEnd(a, b Interval) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End < b.End
}

func sortStartEnd(ivs []Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		return lessStartEnd(ivs[i], ivs[j])
	})
}
