package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/regionmap/internal/classify"
	"github.com/inodb/regionmap/internal/duckdb"
	"github.com/inodb/regionmap/internal/gff"
	"github.com/inodb/regionmap/internal/maf"
	"github.com/inodb/regionmap/internal/output"
	"github.com/inodb/regionmap/internal/refseq"
	"github.com/inodb/regionmap/internal/region"
	"github.com/inodb/regionmap/internal/vcf"
)

type classifyOptions struct {
	annotation  string
	variants    string
	format      string
	assembly    string
	precedence  string
	workers     int
	maxVariants int
	chroms      []string
	output      string
	perVariant  string
	dbPath      string
	cacheDir    string
	rebuild     bool
	strict      bool
	passOnly    bool
}

func newClassifyCmd() *cobra.Command {
	var opts classifyOptions

	cmd := &cobra.Command{
		Use:   "classify [flags] <variants.vcf|variants.maf>",
		Short: "Count variants per genomic region category",
		Long: `Classify every variant position as CDS, exon, gene, intron, intergenic or
unmapped against the tiling built from the annotation, and write one row of
category counts per chromosome.`,
		Example: `  regionmap classify -a GCF_000001405.40_GRCh38.p14_genomic.gff.gz clinvar.vcf.gz
  regionmap classify --chrom 21 --chrom 22 variants.vcf
  regionmap classify --per-variant regions.tsv --db results.duckdb variants.vcf`,
		Args:    exactArgs(1),
		PreRunE: bindPreRun("annotation", "assembly", "precedence", "workers", "max-variants", "db", "cache-dir"),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.variants = args[0]
			opts.annotation = viper.GetString("annotation")
			opts.assembly = viper.GetString("assembly")
			opts.precedence = viper.GetString("precedence")
			opts.workers = viper.GetInt("workers")
			opts.maxVariants = viper.GetInt("max-variants")
			opts.dbPath = viper.GetString("db")
			opts.cacheDir = viper.GetString("cache-dir")
			return runClassify(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringP("annotation", "a", "", "Annotation file (GFF3, GTF or trimmed TSV, optionally gzipped)")
	f.String("assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	f.String("precedence", region.PrecedenceFeature.String(), "Overlap precedence: feature or probe")
	f.Int("workers", 0, "Number of chromosomes classified in parallel (0 = all CPUs)")
	f.Int("max-variants", 0, "Classify at most this many variants per chromosome (0 = all)")
	f.String("db", "", "DuckDB file to record the run in")
	f.String("cache-dir", "", "Directory for cached tilings")
	f.BoolVar(&opts.rebuild, "rebuild-cache", false, "Discard cached tilings and rebuild them")
	f.StringSliceVar(&opts.chroms, "chrom", nil, "Restrict to these chromosomes (repeatable, e.g. 21 or chr21)")
	f.StringVarP(&opts.output, "output", "o", "", "Counts output file (default: stdout)")
	f.StringVar(&opts.format, "format", "auto", "Variant file format: auto, vcf or maf")
	f.StringVar(&opts.perVariant, "per-variant", "", "Write the category of every variant to this file")
	f.BoolVar(&opts.strict, "strict", false, "Fail on malformed annotation lines instead of skipping them")
	f.BoolVar(&opts.passOnly, "pass-only", false, "Skip VCF records whose FILTER is not PASS or '.'")

	return cmd
}

func runClassify(stdout io.Writer, opts classifyOptions) error {
	table, err := refseq.ForAssembly(opts.assembly)
	if err != nil {
		return &usageError{err: err}
	}
	opts.annotation, err = resolveAnnotation(opts.annotation, opts.assembly)
	if err != nil {
		return err
	}
	policy, err := region.ParsePrecedence(opts.precedence)
	if err != nil {
		return &usageError{err: err}
	}
	wanted, err := selectChroms(table, opts.chroms)
	if err != nil {
		return &usageError{err: err}
	}

	fp, err := duckdb.StatFile(opts.annotation)
	if err != nil {
		return fmt.Errorf("annotation file: %w", err)
	}

	positions, err := readPositions(opts.variants, opts.format, table, opts.passOnly)
	if err != nil {
		return err
	}

	key := duckdb.TilingKey{Annotation: fp, Precedence: policy, Assembly: table.Assembly(), Strict: opts.strict}
	var (
		cache   *duckdb.TilingCache
		tilings map[string]region.Tiling
		records map[string][]region.Interval
	)
	if opts.cacheDir != "" {
		cache = duckdb.NewTilingCache(opts.cacheDir)
		if opts.rebuild {
			cache.Clear()
		}
		if cache.Valid(key) {
			tilings, err = cache.Load()
			if err != nil {
				logger.Warn("ignoring unreadable tiling cache", zap.Error(err))
				tilings = nil
			} else {
				logger.Info("using cached tilings", zap.String("dir", opts.cacheDir), zap.Int("chromosomes", len(tilings)))
			}
		}
	}
	if tilings == nil {
		records, err = loadRecords(opts.annotation, table, wanted, opts.strict)
		if err != nil {
			return err
		}
	}

	labels := jobLabels(table, wanted, records, tilings, positions)
	reportUnknownChroms(table, positions)

	jobs := make(chan classify.Job, len(labels))
	for i, label := range labels {
		acc, _ := table.Lookup(label)
		job := classify.Job{Seq: i, Label: label, Accession: acc, Positions: positions[label]}
		if tilings != nil {
			job.Tiling = tilings[label]
			if job.Tiling == nil {
				job.Tiling = region.Tiling{}
			}
		} else {
			job.Records = records[label]
		}
		jobs <- job
	}
	close(jobs)

	c := classify.NewClassifier(policy)
	c.SetMaxVariants(opts.maxVariants)
	c.SetLogger(logger)

	var results []classify.Result
	err = classify.OrderedCollect(c.ParallelClassify(jobs, opts.workers), func(r classify.Result) error {
		if r.Err != nil {
			return r.Err
		}
		logger.Debug("classified chromosome",
			zap.String("chrom", r.Label),
			zap.Int("variants", r.Counts.Total()),
			zap.Int("intervals", r.Intervals),
			zap.Int("overlaps", r.Overlaps),
			zap.Duration("elapsed", r.Elapsed))
		results = append(results, r)
		return nil
	})
	if err != nil {
		return err
	}

	if err := writeCounts(stdout, opts.output, results); err != nil {
		return err
	}
	if opts.perVariant != "" {
		if err := writeClassifications(opts.perVariant, results); err != nil {
			return err
		}
	}
	if opts.dbPath != "" {
		run := duckdb.Run{
			Annotation: opts.annotation,
			Variants:   opts.variants,
			Assembly:   table.Assembly(),
			Precedence: policy.String(),
		}
		if err := recordRun(opts.dbPath, run, results); err != nil {
			return err
		}
	}

	// A restricted run would leave chromosomes out of the cache.
	if cache != nil && tilings == nil && wanted == nil {
		built := make(map[string]region.Tiling, len(results))
		for _, r := range results {
			built[r.Label] = r.Tiling
		}
		if err := cache.Write(built, key); err != nil {
			logger.Warn("could not write tiling cache", zap.Error(err))
		} else {
			logger.Info("wrote tiling cache", zap.String("dir", opts.cacheDir))
		}
	}

	total := 0
	for _, r := range results {
		total += r.Counts.Total()
	}
	logger.Info("classification complete",
		zap.Int("chromosomes", len(results)),
		zap.Int("variants", total),
		zap.Stringer("precedence", policy))
	return nil
}

// selectChroms resolves the requested chromosomes, given as labels or
// accessions. A nil map means no restriction.
func selectChroms(table *refseq.Table, chroms []string) (map[string]bool, error) {
	if len(chroms) == 0 {
		return nil, nil
	}
	wanted := make(map[string]bool, len(chroms))
	for _, c := range chroms {
		label := table.Resolve(c)
		if _, err := table.Lookup(label); err != nil {
			return nil, err
		}
		wanted[label] = true
	}
	return wanted, nil
}

// readPositions reads the variant file and groups positions by chromosome
// label. Both accessions and chromosome names are accepted.
func readPositions(path, format string, table *refseq.Table, passOnly bool) (map[string][]int64, error) {
	p, err := openVariants(path, format)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	var keep func(*vcf.Variant) bool
	if passOnly {
		keep = (*vcf.Variant).Passed
	}
	positions, err := vcf.ReadPositions(p, table.Resolve, keep)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if b, ok := p.(interface{ Build() string }); ok && !table.Matches(b.Build()) {
		logger.Warn("variant file build does not match assembly",
			zap.String("build", b.Build()),
			zap.String("assembly", table.Assembly()))
	}

	n := 0
	for _, pos := range positions {
		n += len(pos)
	}
	logger.Info("loaded variants", zap.String("path", path), zap.Int("variants", n), zap.Int("chromosomes", len(positions)))
	return positions, nil
}

// openVariants opens a VCF or MAF file. With format "auto" the file name
// decides: .maf and .maf.gz are MAF, anything else is VCF.
func openVariants(path, format string) (vcf.VariantParser, error) {
	if format == "auto" || format == "" {
		format = "vcf"
		if lower := strings.ToLower(path); strings.HasSuffix(lower, ".maf") || strings.HasSuffix(lower, ".maf.gz") {
			format = "maf"
		}
	}

	switch format {
	case "vcf":
		p, err := vcf.NewParser(path)
		if err != nil {
			return nil, fmt.Errorf("open variants: %w", err)
		}
		return p, nil
	case "maf":
		p, err := maf.NewParser(path)
		if err != nil {
			return nil, fmt.Errorf("open variants: %w", err)
		}
		return p, nil
	}
	return nil, usageErrorf("unknown variant format %q (want auto, vcf or maf)", format)
}

// loadRecords loads annotation records of the assembly's chromosomes,
// grouped by chromosome label.
func loadRecords(path string, table *refseq.Table, wanted map[string]bool, strict bool) (map[string][]region.Interval, error) {
	l := gff.NewLoader(path)
	l.SetStrict(strict)
	l.SetLogger(logger)
	l.SetFilter(func(seqid string) bool {
		label := table.Resolve(seqid)
		if wanted != nil {
			return wanted[label]
		}
		_, err := table.Lookup(label)
		return err == nil
	})

	a, err := l.Load()
	if err != nil {
		return nil, err
	}
	if n := l.Skipped(); n > 0 {
		logger.Warn("skipped malformed annotation lines", zap.Int("lines", n))
	}

	// Records of two sequences resolving to one label fail the tiling build
	// with a mixed-chromosome error.
	records := make(map[string][]region.Interval)
	for _, seqid := range a.SeqIDs() {
		label := table.Resolve(seqid)
		records[label] = append(records[label], a.Records(seqid)...)
	}
	return records, nil
}

// jobLabels returns the chromosomes to classify in canonical order: the
// requested ones, or every chromosome with annotation or variants.
func jobLabels(table *refseq.Table, wanted map[string]bool, records map[string][]region.Interval,
	tilings map[string]region.Tiling, positions map[string][]int64) []string {
	var labels []string
	for _, label := range table.Labels() {
		if wanted != nil {
			if wanted[label] {
				labels = append(labels, label)
			}
			continue
		}
		if len(records[label]) > 0 || len(tilings[label]) > 0 || len(positions[label]) > 0 {
			labels = append(labels, label)
		}
	}
	return labels
}

func reportUnknownChroms(table *refseq.Table, positions map[string][]int64) {
	for label, pos := range positions {
		if _, err := table.Lookup(label); err != nil {
			logger.Warn("skipping variants on unknown chromosome",
				zap.String("chrom", label),
				zap.Int("variants", len(pos)),
				zap.String("assembly", table.Assembly()))
		}
	}
}

func writeCounts(stdout io.Writer, path string, results []classify.Result) error {
	w, closeFn, err := createOutput(stdout, path)
	if err != nil {
		return err
	}
	defer closeFn()

	cw := output.NewCountsWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		if err := cw.Write(r.Label, r.Accession, r.Counts); err != nil {
			return fmt.Errorf("write counts: %w", err)
		}
	}
	if err := cw.WriteTotals(); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("flush counts: %w", err)
	}
	return closeFn()
}

func writeClassifications(path string, results []classify.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create per-variant output: %w", err)
	}
	defer f.Close()

	vw := output.NewClassificationWriter(f)
	if err := vw.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		if err := vw.Write(r.Label, r.Positions, r.Categories); err != nil {
			return fmt.Errorf("write classifications: %w", err)
		}
	}
	if err := vw.Flush(); err != nil {
		return fmt.Errorf("flush classifications: %w", err)
	}
	return f.Close()
}

func recordRun(path string, run duckdb.Run, results []classify.Result) error {
	store, err := duckdb.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	counts := make([]duckdb.ChromosomeCounts, 0, len(results))
	cls := make([]duckdb.Classifications, 0, len(results))
	for _, r := range results {
		counts = append(counts, duckdb.ChromosomeCounts{Label: r.Label, Accession: r.Accession, Counts: r.Counts})
		cls = append(cls, duckdb.Classifications{Label: r.Label, Positions: r.Positions, Categories: r.Categories})
	}

	run, err = store.RecordRun(run, counts, cls)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	logger.Info("recorded run", zap.String("db", path), zap.String("run_id", run.ID))
	return nil
}

// createOutput opens path for writing, or returns stdout when path is empty.
// The returned close function is safe to call more than once.
func createOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	closed := false
	return f, func() error {
		if closed {
			return nil
		}
		closed = true
		return f.Close()
	}, nil
}

// exactArgs wraps cobra.ExactArgs so that argument count errors map to the
// usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}
