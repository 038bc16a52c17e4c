// Package gff reads gene, exon and CDS records from genome annotation files.
//
// Three layouts are accepted, detected per line:
//
//	GFF3 / GTF   seqid  source  type  start  end  score  strand  phase  attributes
//	trimmed TSV  seqid  type  start  end
//
// Lines starting with '#' are comments. Gzipped files are recognized by
// their content, whatever their name.
package gff

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/regionmap/internal/region"
	"github.com/inodb/regionmap/internal/vcf"
)

// Loader reads annotation records from a file.
type Loader struct {
	path   string
	strict bool
	filter func(seqid string) bool
	logger *zap.Logger

	skipped int
}

// NewLoader creates a loader for the annotation file at path.
func NewLoader(path string) *Loader {
	return &Loader{
		path:   path,
		logger: zap.NewNop(),
	}
}

// SetStrict makes malformed lines fail the load instead of being skipped.
func (l *Loader) SetStrict(strict bool) {
	l.strict = strict
}

// SetFilter restricts loading to sequences for which keep returns true.
func (l *Loader) SetFilter(keep func(seqid string) bool) {
	l.filter = keep
}

// SetLogger sets the logger for warning and info messages.
func (l *Loader) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// Skipped returns the number of malformed lines skipped by the last load.
func (l *Loader) Skipped() int {
	return l.skipped
}

// Load reads the annotation file.
func (l *Loader) Load() (*Annotation, error) {
	src, err := vcf.OpenSource(l.path)
	if err != nil {
		return nil, fmt.Errorf("open annotation file: %w", err)
	}
	defer src.Close()

	a, err := l.Parse(src)
	if err != nil {
		return nil, err
	}

	l.logger.Info("loaded annotation",
		zap.String("path", l.path),
		zap.Int("records", a.Count()),
		zap.Int("sequences", len(a.order)),
		zap.Int("skipped", l.skipped))
	return a, nil
}

// Parse reads annotation records from r.
func (l *Loader) Parse(r io.Reader) (*Annotation, error) {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long attribute columns
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	a := newAnnotation()
	l.skipped = 0

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		seqid, feature, start, end, err := parseLine(line)
		if err != nil {
			if l.strict {
				return nil, &ParseError{Line: lineNum, Message: err.Error()}
			}
			l.skipped++
			l.logger.Debug("skipping malformed line", zap.Int("line", lineNum), zap.Error(err))
			continue
		}

		c, err := region.ParseCategory(feature)
		if err != nil {
			continue // mRNA, UTRs, regions and other feature types
		}

		if l.filter != nil && !l.filter(seqid) {
			continue
		}

		iv, err := region.NewInterval(seqid, c, start, end)
		if err != nil {
			if l.strict {
				return nil, &ParseError{Line: lineNum, Message: err.Error()}
			}
			l.skipped++
			l.logger.Debug("skipping inverted record", zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		a.add(iv)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan annotation: %w", err)
	}

	return a, nil
}

// parseLine extracts seqid, feature type and coordinates from one line.
func parseLine(line string) (seqid, feature string, start, end int64, err error) {
	fields := strings.Split(line, "\t")

	var startField, endField string
	switch {
	case len(fields) >= 9:
		seqid, feature, startField, endField = fields[0], fields[2], fields[3], fields[4]
	case len(fields) == 4:
		seqid, feature, startField, endField = fields[0], fields[1], fields[2], fields[3]
	default:
		return "", "", 0, 0, fmt.Errorf("expected 4 or at least 9 fields, got %d", len(fields))
	}

	start, err = strconv.ParseInt(strings.TrimSpace(startField), 10, 64)
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("parse start: %w", err)
	}
	end, err = strconv.ParseInt(strings.TrimSpace(endField), 10, 64)
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("parse end: %w", err)
	}

	return seqid, feature, start, end, nil
}

// ParseError represents an error during annotation parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("annotation parse error at line %d: %s", e.Line, e.Message)
}
