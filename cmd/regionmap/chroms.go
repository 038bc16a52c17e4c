package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/regionmap/internal/refseq"
)

func newChromsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chroms",
		Short:   "List chromosome labels and their RefSeq accessions",
		Example: "  regionmap chroms --assembly GRCh37",
		Args:    cobra.NoArgs,
		PreRunE: bindPreRun("assembly"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChroms(cmd.OutOrStdout(), viper.GetString("assembly"))
		},
	}
	cmd.Flags().String("assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	return cmd
}

func runChroms(stdout io.Writer, assembly string) error {
	table, err := refseq.ForAssembly(assembly)
	if err != nil {
		return &usageError{err: err}
	}

	w := bufio.NewWriter(stdout)
	fmt.Fprintf(w, "#Chromosome\tAccession\n")
	for _, label := range table.Labels() {
		acc, err := table.Lookup(label)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", label, acc)
	}
	return w.Flush()
}
