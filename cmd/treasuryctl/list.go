package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"treasury/internal/cli"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List budgets, newest first",
	RunE:  runList,
}

func init() {
	addFilterFlags(listCmd)
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	filter, err := filterFromFlags()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
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

	rows := make([][]string, 0, len(budgets))
	for _, b := range budgets {
		rows = append(rows, []string{
			b.ID,
			b.EventName,
			b.Category,
			b.Committee,
			b.Allocated.Display(),
			b.Spent.Display(),
			b.Remaining.Display(),
			cli.RenderBar(b.Utilization(), 10),
			cli.RenderStatus(b.Status),
			strconv.Itoa(b.FiscalYear),
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:      fmt.Sprintf("BUDGETS  %d of %d", len(budgets), len(all)),
		Headers:    []string{"ID", "Event", "Category", "Committee", "Allocated", "Spent", "Remaining", "Used", "Status", "Year"},
		Rows:       rows,
		RightAlign: map[int]bool{4: true, 5: true, 6: true, 9: true},
	}))
	return nil
}
