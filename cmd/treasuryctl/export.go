package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"treasury/internal/report"
)

var flagOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export budgets as CSV",
	Long:  "Write the filtered budget list as CSV to a file, or to stdout with --output -.",
	RunE:  runExport,
}

func init() {
	addFilterFlags(exportCmd)
	exportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file (default budgets-YYYY-MM-DD.csv, - for stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	filter, err := filterFromFlags()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	all, err := s.budgets(ctx)
	if err != nil {
		return err
	}
	budgets := filter.Apply(all)

	var w io.Writer = os.Stdout
	path := flagOutput
	if path == "" {
		path = report.Filename(time.Now())
	}
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	if err := report.WriteCSV(w, budgets); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if path != "-" {
		fmt.Fprintf(os.Stderr, "  Exported %d budget(s) to %s\n", len(budgets), path)
	}
	return nil
}
