package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"treasury/internal/cli"
	"treasury/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the document store and show the active configuration",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	storeState := "ok"
	started := time.Now()
	if err := s.backend.Store.Ping(ctx); err != nil {
		storeState = "unreachable: " + err.Error()
	}
	latency := time.Since(started).Round(time.Millisecond)

	count := "-"
	stale := "-"
	if budgets, err := s.budgets(ctx); err == nil {
		stats := core.Aggregate(budgets)
		count = strconv.Itoa(stats.Count)
		stale = strconv.Itoa(stats.StaleStatus)
	}

	cfg := s.cfg
	mirror := "not configured"
	if cfg.ValidateMirror() == nil {
		mirror = cfg.GoogleSpreadsheetID + " / " + cfg.GoogleSheetName
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("TREASURY STATUS"))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Setting", "Value"},
		Rows: [][]string{
			{"Backend", cfg.DataBackend},
			{"Collection", cfg.Collection()},
			{"Store", fmt.Sprintf("%s (%s)", storeState, latency)},
			{"Budgets", count},
			{"Stale statuses", stale},
			{"AMQP", enabled(cfg.AMQPURL != "", cfg.AMQPExchange)},
			{"Ledger mirror", mirror},
			{"Receipts", cfg.ReceiptsDriver},
			{"API key", enabled(cfg.StoreAPIKey != "", "required on /api writes")},
			{"Default user", cfg.DefaultUserName + " (" + cfg.DefaultUserRole + ")"},
		},
	}))
	return nil
}

func enabled(on bool, detail string) string {
	if !on {
		return "disabled"
	}
	return "enabled: " + detail
}
