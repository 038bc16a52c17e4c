package gff

import "github.com/inodb/regionmap/internal/region"

// Annotation holds gene, exon and CDS records grouped by sequence, in file
// order within each sequence.
type Annotation struct {
	records map[string][]region.Interval
	order   []string // sequences in order of first appearance
}

func newAnnotation() *Annotation {
	return &Annotation{records: make(map[string][]region.Interval)}
}

func (a *Annotation) add(iv region.Interval) {
	if _, ok := a.records[iv.Chrom]; !ok {
		a.order = append(a.order, iv.Chrom)
	}
	a.records[iv.Chrom] = append(a.records[iv.Chrom], iv)
}

// Records returns the records of one sequence.
func (a *Annotation) Records(seqid string) []region.Interval {
	return a.records[seqid]
}

// SeqIDs returns the sequence identifiers in order of first appearance.
func (a *Annotation) SeqIDs() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Count returns the total number of records.
func (a *Annotation) Count() int {
	n := 0
	for _, recs := range a.records {
		n += len(recs)
	}
	return n
}
