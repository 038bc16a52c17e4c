package classify

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/regionmap/internal/region"
)

// Job holds the inputs for classifying one chromosome.
type Job struct {
	Seq       int
	Label     string            // Short chromosome label (e.g., "21")
	Accession string            // Annotation sequence identifier (e.g., NC_000021.9)
	Records   []region.Interval // Annotated gene, exon and CDS records
	Tiling    region.Tiling     // Prebuilt tiling; Records are ignored when set
	Positions []int64           // Variant positions on the chromosome
}

// Result holds the outcome for one chromosome.
type Result struct {
	Seq        int
	Label      string
	Accession  string
	Counts     Counts
	Tiling     region.Tiling
	Positions  []int64           // Classified positions, ascending
	Categories []region.Category // Category per entry of Positions
	Intervals  int               // Size of the tiling
	Overlaps   int               // Overlapping interval pairs left in the tiling
	Elapsed    time.Duration     // Set by ParallelClassify
	Err        error
}

// Classifier runs the tiling build, locate and aggregate steps for a
// chromosome.
type Classifier struct {
	precedence  region.Precedence
	maxVariants int
	logger      *zap.Logger
}

// NewClassifier creates a classifier using the given overlap precedence.
func NewClassifier(p region.Precedence) *Classifier {
	return &Classifier{
		precedence: p,
		logger:     zap.NewNop(),
	}
}

// SetMaxVariants caps the number of positions classified per chromosome.
// Zero means no cap.
func (c *Classifier) SetMaxVariants(n int) {
	c.maxVariants = n
}

// SetLogger sets the logger for progress and warning messages.
func (c *Classifier) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Classify processes a single chromosome. Inputs are not modified.
func (c *Classifier) Classify(job Job) Result {
	res := Result{Seq: job.Seq, Label: job.Label, Accession: job.Accession}
	log := c.logger.With(zap.String("chrom", job.Label), zap.String("accession", job.Accession))

	tiling, err := c.tiling(job, log)
	if err != nil {
		res.Err = fmt.Errorf("chromosome %s: %w", job.Label, err)
		return res
	}
	res.Tiling = tiling
	res.Intervals = len(tiling)

	res.Overlaps, err = region.CountOverlaps(tiling)
	if err != nil {
		res.Err = fmt.Errorf("chromosome %s: audit tiling: %w", job.Label, err)
		return res
	}
	if res.Overlaps > 0 {
		log.Debug("tiling has stacked layers", zap.Int("overlaps", res.Overlaps))
	}

	positions := make([]int64, len(job.Positions))
	copy(positions, job.Positions)
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	if c.maxVariants > 0 && len(positions) > c.maxVariants {
		log.Info("capping variants", zap.Int("total", len(positions)), zap.Int("max", c.maxVariants))
		positions = positions[:c.maxVariants]
	}

	log.Debug("mapping variants", zap.Int("variants", len(positions)), zap.Int("intervals", len(tiling)))
	counts, cats, err := Classify(positions, tiling)
	if err != nil {
		res.Err = fmt.Errorf("chromosome %s: %w", job.Label, err)
		return res
	}

	res.Counts = counts
	res.Positions = positions
	res.Categories = cats
	return res
}

func (c *Classifier) tiling(job Job, log *zap.Logger) (region.Tiling, error) {
	if job.Tiling != nil {
		log.Debug("using prebuilt tiling", zap.Int("intervals", len(job.Tiling)))
		return job.Tiling, job.Tiling.Validate()
	}
	log.Debug("building tiling", zap.Int("records", len(job.Records)), zap.Stringer("precedence", c.precedence))
	return region.BuildTiling(job.Records, c.precedence)
}
