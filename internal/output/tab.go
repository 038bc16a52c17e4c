// Package output provides classification report formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/regionmap/internal/classify"
	"github.com/inodb/regionmap/internal/region"
)

// CountsWriter writes per-chromosome category counts in tab-delimited format.
type CountsWriter struct {
	w       *bufio.Writer
	columns []string
	totals  classify.Counts
	rows    int
}

// NewCountsWriter creates a new counts table writer.
func NewCountsWriter(w io.Writer) *CountsWriter {
	columns := []string{"#Chromosome", "Accession"}
	for _, c := range region.Categories {
		columns = append(columns, string(c))
	}
	columns = append(columns, "Total")

	return &CountsWriter{
		w:       bufio.NewWriter(w),
		columns: columns,
		totals:  classify.NewCounts(),
	}
}

// WriteHeader writes the header line.
func (cw *CountsWriter) WriteHeader() error {
	_, err := cw.w.WriteString(strings.Join(cw.columns, "\t") + "\n")
	return err
}

// Write writes the counts of one chromosome.
func (cw *CountsWriter) Write(label, accession string, counts classify.Counts) error {
	if accession == "" {
		accession = "-"
	}

	values := []string{label, accession}
	for _, c := range region.Categories {
		values = append(values, strconv.Itoa(counts[c]))
	}
	values = append(values, strconv.Itoa(counts.Total()))

	cw.totals.Merge(counts)
	cw.rows++

	_, err := cw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteTotals writes a summary row across all chromosomes written so far.
// Nothing is written for fewer than two chromosomes.
func (cw *CountsWriter) WriteTotals() error {
	if cw.rows < 2 {
		return nil
	}
	values := []string{"all", "-"}
	for _, c := range region.Categories {
		values = append(values, strconv.Itoa(cw.totals[c]))
	}
	values = append(values, strconv.Itoa(cw.totals.Total()))

	_, err := cw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (cw *CountsWriter) Flush() error {
	return cw.w.Flush()
}

// ClassificationWriter writes one row per classified variant position.
type ClassificationWriter struct {
	w *bufio.Writer
}

// NewClassificationWriter creates a new per-variant writer.
func NewClassificationWriter(w io.Writer) *ClassificationWriter {
	return &ClassificationWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (cw *ClassificationWriter) WriteHeader() error {
	_, err := cw.w.WriteString("#Chromosome\tPosition\tCategory\n")
	return err
}

// Write writes the categories of one chromosome's positions.
func (cw *ClassificationWriter) Write(label string, positions []int64, cats []region.Category) error {
	for i, pos := range positions {
		line := label + "\t" + strconv.FormatInt(pos, 10) + "\t" + string(cats[i]) + "\n"
		if _, err := cw.w.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (cw *ClassificationWriter) Flush() error {
	return cw.w.Flush()
}

// TilingWriter writes the intervals of a tiling in BED-like 1-based form.
type TilingWriter struct {
	w *bufio.Writer
}

// NewTilingWriter creates a new tiling writer.
func NewTilingWriter(w io.Writer) *TilingWriter {
	return &TilingWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (tw *TilingWriter) WriteHeader() error {
	_, err := tw.w.WriteString("#Chromosome\tStart\tEnd\tCategory\n")
	return err
}

// Write writes every interval of the tiling under the given label.
func (tw *TilingWriter) Write(label string, t region.Tiling) error {
	for _, iv := range t {
		values := []string{label, strconv.FormatInt(iv.Start, 10), strconv.FormatInt(iv.End, 10), string(iv.Category)}
		if _, err := tw.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TilingWriter) Flush() error {
	return tw.w.Flush()
}
