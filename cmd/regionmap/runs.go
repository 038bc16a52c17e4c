package main

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/regionmap/internal/duckdb"
	"github.com/inodb/regionmap/internal/output"
	"github.com/inodb/regionmap/internal/refseq"
	"github.com/inodb/regionmap/internal/region"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List classification runs recorded in a DuckDB file",
		Example: `  regionmap runs --db results.duckdb
  regionmap runs show --db results.duckdb <run-id>
  regionmap runs positions --db results.duckdb <run-id> 21 CDS
  regionmap runs delete --db results.duckdb <run-id>`,
		Args:    cobra.NoArgs,
		PreRunE: bindPreRun("db"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *duckdb.Store) error {
				return runRunsList(cmd.OutOrStdout(), s)
			})
		},
	}
	cmd.PersistentFlags().String("db", "", "DuckDB file holding recorded runs")

	cmd.AddCommand(newRunsShowCmd())
	cmd.AddCommand(newRunsPositionsCmd())
	cmd.AddCommand(newRunsDeleteCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show <run-id>",
		Short:   "Write the per-chromosome counts of a recorded run",
		Args:    exactArgs(1),
		PreRunE: bindPreRun("db"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *duckdb.Store) error {
				return runRunsShow(cmd.OutOrStdout(), s, args[0])
			})
		},
	}
}

func newRunsPositionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "positions <run-id> <chrom> <category>",
		Short:   "List the variant positions of a run that fell in one category",
		Args:    exactArgs(3),
		PreRunE: bindPreRun("db"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := region.ParseReportCategory(args[2])
			if err != nil {
				return &usageError{err: err}
			}
			return withStore(func(s *duckdb.Store) error {
				return runRunsPositions(cmd.OutOrStdout(), s, args[0], refseq.NormalizeLabel(args[1]), cat)
			})
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <run-id>",
		Short:   "Remove a recorded run",
		Args:    exactArgs(1),
		PreRunE: bindPreRun("db"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *duckdb.Store) error {
				if err := s.DeleteRun(args[0]); err != nil {
					return err
				}
				logger.Info("deleted run", zap.String("run_id", args[0]))
				return nil
			})
		},
	}
}

// withStore opens the DuckDB file named by the db key for the duration of fn.
func withStore(fn func(*duckdb.Store) error) error {
	path := viper.GetString("db")
	if path == "" {
		return usageErrorf("no database: pass --db or run 'regionmap config set db <path>'")
	}
	s, err := duckdb.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func runRunsList(stdout io.Writer, s *duckdb.Store) error {
	runs, err := s.Runs()
	if err != nil {
		return err
	}

	w := bufio.NewWriter(stdout)
	fmt.Fprintf(w, "#RunID\tCreated\tAssembly\tPrecedence\tAnnotation\tVariants\tTotal\n")
	for _, r := range runs {
		totals, err := s.CategoryTotals(r.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Assembly, r.Precedence, r.Annotation, r.Variants, totals.Total())
	}
	return w.Flush()
}

func runRunsShow(stdout io.Writer, s *duckdb.Store, runID string) error {
	rows, err := s.LookupCounts(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("run %s: no counts recorded", runID)
	}

	cw := output.NewCountsWriter(stdout)
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Label, r.Accession, r.Counts); err != nil {
			return err
		}
	}
	if err := cw.WriteTotals(); err != nil {
		return err
	}
	return cw.Flush()
}

func runRunsPositions(stdout io.Writer, s *duckdb.Store, runID, label string, cat region.Category) error {
	positions, err := s.PositionsIn(runID, label, cat)
	if err != nil {
		return err
	}

	cats := make([]region.Category, len(positions))
	for i := range cats {
		cats[i] = cat
	}

	vw := output.NewClassificationWriter(stdout)
	if err := vw.WriteHeader(); err != nil {
		return err
	}
	if err := vw.Write(label, positions, cats); err != nil {
		return err
	}
	return vw.Flush()
}
