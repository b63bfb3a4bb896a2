package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"treasury/internal/budget"
	"treasury/internal/core"
	"treasury/internal/identity"
)

var flagSeedYear int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo budgets covering every status",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&flagSeedYear, "year", time.Now().Year(), "Fiscal year of the demo budgets")
	rootCmd.AddCommand(seedCmd)
}

// demoBudgets covers every status the form accepts.
var demoBudgets = []budget.Values{
	{core.FieldEventName: "Welcome Week", core.FieldCategory: "Events", core.FieldCommittee: "Executive", core.FieldAllocated: "2500", core.FieldSpent: "0", core.FieldResolution: "RES-001"},
	{core.FieldEventName: "Study Supplies Drive", core.FieldCategory: "Supplies", core.FieldCommittee: "Academic", core.FieldAllocated: "800", core.FieldSpent: "120.50"},
	{core.FieldEventName: "Intramural League", core.FieldCategory: "Equipment", core.FieldCommittee: "Sports", core.FieldAllocated: "1500", core.FieldSpent: "980"},
	{core.FieldEventName: "Cultural Night", core.FieldCategory: "Food & Beverages", core.FieldCommittee: "Arts & Culture", core.FieldAllocated: "3000", core.FieldSpent: "2850.75"},
	{core.FieldEventName: "Campus Clean-up", core.FieldCategory: "Transportation", core.FieldCommittee: "Community Service", core.FieldAllocated: "400", core.FieldSpent: "400"},
	{core.FieldEventName: "Poster Campaign", core.FieldCategory: "Marketing", core.FieldCommittee: "Publicity", core.FieldAllocated: "600", core.FieldSpent: "250", core.FieldDescription: "Print run for the election posters"},
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	repo := budget.NewRepository(s.backend.Store, budget.Options{
		Collection: s.cfg.Collection(),
		Identity:   identity.NewProvider(s.cfg.DefaultUserName, s.cfg.DefaultUserRole),
		Logger:     s.logger.Slog(),
	})
	defer repo.Close()
	form := budget.NewForm(repo, nil)

	year := strconv.Itoa(flagSeedYear)
	for _, demo := range demoBudgets {
		values := budget.Values{core.FieldFiscalYear: year}
		for k, v := range demo {
			values[k] = v
		}
		b, err := form.Submit(ctx, "", "", values)
		if err != nil {
			if verr, ok := budget.IsValidation(err); ok {
				return fmt.Errorf("seed %s: %v", demo.Get(core.FieldEventName), verr.Messages())
			}
			return fmt.Errorf("seed %s: %w", demo.Get(core.FieldEventName), err)
		}
		fmt.Printf("  %-24s %-12s %s\n", b.EventName, b.Allocated.Display(), b.Status.Label())
	}
	fmt.Printf("\n  Seeded %d budget(s) into %s\n", len(demoBudgets), s.cfg.Collection())
	return nil
}
