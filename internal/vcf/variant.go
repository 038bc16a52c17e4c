package vcf

import "github.com/inodb/regionmap/internal/refseq"

// Variant is one record of a variant file. Only the fields needed to place
// and select the variant are kept.
type Variant struct {
	Chrom  string // Chromosome as written in the file (e.g., "21", "chr21", "NC_000021.9")
	Pos    int64  // 1-based genomic position
	Filter string // FILTER column, empty if absent
}

// Label returns the short chromosome label: "chr" removed, "M" as "MT".
func (v *Variant) Label() string {
	return refseq.NormalizeLabel(v.Chrom)
}

// Passed reports whether the variant passed all filters. Records without a
// FILTER value ("." or no column) count as passed.
func (v *Variant) Passed() bool {
	switch v.Filter {
	case "", ".", "PASS":
		return true
	}
	return false
}
