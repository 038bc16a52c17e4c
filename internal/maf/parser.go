// Package maf reads variant positions from MAF (Mutation Annotation Format)
// files.
package maf

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/regionmap/internal/vcf"
)

// Columns read by the parser. NCBI_Build is optional.
const (
	colChromosome    = "Chromosome"
	colStartPosition = "Start_Position"
	colNCBIBuild     = "NCBI_Build"
)

// columns holds header indices; build is -1 when the column is absent.
type columns struct {
	chrom, start, build int
}

// Parser reads variants from a MAF file, plain or gzipped. Only Chromosome
// and Start_Position are required.
type Parser struct {
	src        *vcf.Source
	lineNumber int
	cols       columns
	width      int // fields needed to reach every required column
	build      string
}

// NewParser opens the MAF file at path; "-" reads stdin.
func NewParser(path string) (*Parser, error) {
	src, err := vcf.OpenSource(path)
	if err != nil {
		return nil, fmt.Errorf("open maf file: %w", err)
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
	src, err := vcf.NewSource(r)
	if err != nil {
		return nil, err
	}

	p := &Parser{src: src}
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// readHeader skips '#' comment lines and indexes the column header.
func (p *Parser) readHeader() error {
	for {
		line, err := p.src.ReadLine()
		if err == io.EOF {
			return p.errorf("no header line found")
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		if line != "" && !strings.HasPrefix(line, "#") {
			return p.indexColumns(strings.Split(line, "\t"))
		}
	}
}

func (p *Parser) indexColumns(names []string) error {
	p.cols = columns{chrom: -1, start: -1, build: -1}
	for i, name := range names {
		switch name {
		case colChromosome:
			p.cols.chrom = i
		case colStartPosition:
			p.cols.start = i
		case colNCBIBuild:
			p.cols.build = i
		}
	}

	if p.cols.chrom < 0 {
		return p.errorf("required column '%s' not found in header", colChromosome)
	}
	if p.cols.start < 0 {
		return p.errorf("required column '%s' not found in header", colStartPosition)
	}
	p.width = max(p.cols.chrom, p.cols.start) + 1
	return nil
}

// Next reads the next variant.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*vcf.Variant, error) {
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
			return p.parseLine(strings.Split(line, "\t"))
		}
	}
}

func (p *Parser) parseLine(fields []string) (*vcf.Variant, error) {
	if len(fields) < p.width {
		return nil, p.errorf("expected at least %d columns, found %d", p.width, len(fields))
	}

	raw := fields[p.cols.start]
	pos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || pos < 1 {
		return nil, p.errorf("invalid position: %s", raw)
	}

	if p.build == "" && p.cols.build >= 0 && p.cols.build < len(fields) {
		p.build = fields[p.cols.build]
	}

	return &vcf.Variant{Chrom: fields[p.cols.chrom], Pos: pos}, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.lineNumber, Message: fmt.Sprintf(format, args...)}
}

// Build returns the NCBI_Build of the first variant read, or "" when the
// column is absent or nothing has been read.
func (p *Parser) Build() string {
	return p.build
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	return p.src.Close()
}

// ParseError represents an error during MAF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("maf parse error at line %d: %s", e.Line, e.Message)
}
