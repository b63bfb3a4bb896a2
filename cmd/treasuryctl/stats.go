package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"treasury/internal/cli"
	"treasury/internal/core"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Totals and counts per category, committee and status",
	RunE:  runStats,
}

func init() {
	addFilterFlags(statsCmd)
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
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
	stats := core.Aggregate(filter.Apply(all))

	fmt.Println()
	fmt.Println(cli.RenderTitle("TREASURY STATISTICS"))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Budgets", "Allocated", "Spent", "Remaining", "Used"},
		Rows: [][]string{{
			strconv.Itoa(stats.Count),
			stats.TotalAllocated.Display(),
			stats.TotalSpent.Display(),
			stats.TotalRemaining.Display(),
			fmt.Sprintf("%.1f%% %s", stats.Utilization(), cli.RenderBar(stats.Utilization(), 20)),
		}},
		RightAlign: map[int]bool{0: true, 1: true, 2: true, 3: true},
	}))

	statusRows := make([][]string, 0, len(core.Statuses))
	for _, st := range core.Statuses {
		statusRows = append(statusRows, []string{cli.RenderStatus(st), strconv.Itoa(stats.ByStatus[st])})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{Title: "By status", Headers: []string{"Status", "Count"}, Rows: statusRows, RightAlign: map[int]bool{1: true}}))

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{Title: "By category", Headers: []string{"Category", "Count"}, Rows: countRows(stats.ByCategory), RightAlign: map[int]bool{1: true}}))

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{Title: "By committee", Headers: []string{"Committee", "Count"}, Rows: countRows(stats.ByCommittee), RightAlign: map[int]bool{1: true}}))

	if stats.StaleStatus > 0 {
		fmt.Printf("\n  %d budget(s) carry a stored status that no longer matches their amounts.\n", stats.StaleStatus)
	}
	return nil
}

// countRows sorts counts descending, then by label.
func countRows(counts map[string]int) [][]string {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	rows := make([][]string, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, []string{label, strconv.Itoa(counts[label])})
	}
	return rows
}
