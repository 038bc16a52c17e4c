package vcf

import "fmt"

// VariantParser is the interface for parsers that read variants.
type VariantParser interface {
	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*Variant, error)

	// Close closes the parser and releases resources.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}

// ReadPositions drains the parser and groups variant positions by
// chromosome label, in file order. label maps the file's chromosome name to
// a label; nil uses Variant.Label. Variants for which keep returns false are
// dropped; nil keeps all.
func ReadPositions(p VariantParser, label func(chrom string) string, keep func(*Variant) bool) (map[string][]int64, error) {
	positions := make(map[string][]int64)
	for {
		v, err := p.Next()
		if err != nil {
			return nil, fmt.Errorf("read variant: %w", err)
		}
		if v == nil {
			return positions, nil
		}
		if keep != nil && !keep(v) {
			continue
		}

		key := v.Label()
		if label != nil {
			key = label(v.Chrom)
		}
		positions[key] = append(positions[key], v.Pos)
	}
}
