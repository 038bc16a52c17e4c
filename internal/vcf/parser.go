// Package vcf reads variant positions from VCF files.
package vcf

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// minColumns is CHROM, POS, ID, REF, ALT. QUAL, FILTER and INFO are optional
// so trimmed position files load as well.
const minColumns = 5

// Parser reads variants from a VCF file, plain or gzipped.
type Parser struct {
	src        *Source
	lineNumber int
	header     []string
	pending    string // first data line of a file without a #CHROM line
}

// NewParser opens the VCF file at path; "-" reads stdin.
func NewParser(path string) (*Parser, error) {
	src, err := OpenSource(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p := &Parser{src: src}
	if err := p.readHeader(); err != nil {
		src.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	src, err := NewSource(r)
	if err != nil {
		return nil, err
	}

	p := &Parser{src: src}
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// readHeader collects the '#' lines up to and including #CHROM. When a data
// line comes first the file is read as headerless and the line is kept for
// Next.
func (p *Parser) readHeader() error {
	for {
		line, err := p.src.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			p.header = append(p.header, line)
			if strings.HasPrefix(line, "#CHROM") {
				return nil
			}
		default:
			p.pending = line
			return nil
		}
	}
}

// Next reads the next variant.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*Variant, error) {
	if p.pending != "" {
		line := p.pending
		p.pending = ""
		return p.parseLine(line)
	}

	for {
		line, err := p.src.ReadLine()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		p.lineNumber++

		if line != "" && !strings.HasPrefix(line, "#") {
			return p.parseLine(line)
		}
	}
}

func (p *Parser) parseLine(line string) (*Variant, error) {
	fields := strings.SplitN(line, "\t", 8)
	if len(fields) < minColumns {
		return nil, p.errorf("expected at least %d columns, found %d", minColumns, len(fields))
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || pos < 1 {
		return nil, p.errorf("invalid position: %s", fields[1])
	}

	v := &Variant{Chrom: fields[0], Pos: pos}
	if len(fields) > 6 {
		v.Filter = fields[6]
	}
	return v, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.lineNumber, Message: fmt.Sprintf(format, args...)}
}

// Build returns the value of the ##reference header line, or "" when the
// file has none.
func (p *Parser) Build() string {
	for _, line := range p.header {
		if ref, ok := strings.CutPrefix(line, "##reference="); ok {
			return ref
		}
	}
	return ""
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	return p.src.Close()
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
