package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/regionmap/internal/output"
	"github.com/inodb/regionmap/internal/refseq"
	"github.com/inodb/regionmap/internal/region"
)

type tilingOptions struct {
	annotation string
	assembly   string
	precedence string
	chroms     []string
	output     string
	strict     bool
	overlaps   bool
}

func newTilingCmd() *cobra.Command {
	var opts tilingOptions

	cmd := &cobra.Command{
		Use:   "tiling [flags]",
		Short: "Write the region tiling built from an annotation",
		Long: `Build the tiling of CDS, exon, gene, intron and intergenic intervals for each
chromosome and write it as Chromosome, Start, End, Category rows.`,
		Example: `  regionmap tiling -a annotation.gff.gz --chrom 21
  regionmap tiling -a annotation.gff.gz --precedence probe --overlaps`,
		Args:    cobra.NoArgs,
		PreRunE: bindPreRun("annotation", "assembly", "precedence"),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.annotation = viper.GetString("annotation")
			opts.assembly = viper.GetString("assembly")
			opts.precedence = viper.GetString("precedence")
			return runTiling(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringP("annotation", "a", "", "Annotation file (GFF3, GTF or trimmed TSV, optionally gzipped)")
	f.String("assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	f.String("precedence", region.PrecedenceFeature.String(), "Overlap precedence: feature or probe")
	f.StringSliceVar(&opts.chroms, "chrom", nil, "Restrict to these chromosomes (repeatable)")
	f.StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")
	f.BoolVar(&opts.strict, "strict", false, "Fail on malformed annotation lines instead of skipping them")
	f.BoolVar(&opts.overlaps, "overlaps", false, "Log every pair of overlapping intervals")

	return cmd
}

func runTiling(stdout io.Writer, opts tilingOptions) error {
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

	records, err := loadRecords(opts.annotation, table, wanted, opts.strict)
	if err != nil {
		return err
	}

	w, closeFn, err := createOutput(stdout, opts.output)
	if err != nil {
		return err
	}
	defer closeFn()

	tw := output.NewTilingWriter(w)
	if err := tw.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, label := range jobLabels(table, wanted, records, nil, nil) {
		t, err := region.BuildTiling(records[label], policy)
		if err != nil {
			return fmt.Errorf("chromosome %s: %w", label, err)
		}

		pairs, err := region.FindOverlaps(t)
		if err != nil {
			return fmt.Errorf("chromosome %s: audit tiling: %w", label, err)
		}
		logger.Debug("built tiling",
			zap.String("chrom", label),
			zap.Int("records", len(records[label])),
			zap.Int("intervals", len(t)),
			zap.Int("overlaps", len(pairs)))
		if opts.overlaps {
			for _, p := range pairs {
				logger.Info("overlapping intervals", zap.String("chrom", label), zap.Stringer("a", p.A), zap.Stringer("b", p.B))
			}
		}

		if err := tw.Write(label, t); err != nil {
			return fmt.Errorf("write tiling: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush tiling: %w", err)
	}
	return closeFn()
}
