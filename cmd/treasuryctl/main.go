// Command treasuryctl is the administration CLI for the treasury console:
// reporting over the document store, schema migrations, demo data and the
// Google OAuth bootstrap for the ledger mirror.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"treasury/internal/backend"
	"treasury/internal/budget"
	"treasury/internal/cli"
	"treasury/internal/config"
	"treasury/internal/core"
	"treasury/internal/log"
	"treasury/internal/report"
)

var (
	flagConfigFile string
	flagBackend    string
	flagVerbose    bool

	flagCategory  string
	flagCommittee string
	flagStatus    string
	flagYear      int
	flagQuery     string
	flagActive    bool
)

var rootCmd = &cobra.Command{
	Use:           "treasuryctl",
	Short:         "Treasury administration CLI",
	Long:          "Inspect, export and maintain the treasury budget collection.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "  error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", "", "TOML configuration file (overrides TREASURY_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVarP(&flagBackend, "backend", "b", "", "Document store backend: "+fmt.Sprint(backend.GetBackendTypeStrings()))
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log store activity to stderr")
}

// addFilterFlags registers the list filters on cmd.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagCategory, "category", "", "Filter by category")
	cmd.Flags().StringVar(&flagCommittee, "committee", "", "Filter by committee")
	cmd.Flags().StringVar(&flagStatus, "status", "", "Filter by status (e.g. OnTrack, OverBudget)")
	cmd.Flags().IntVar(&flagYear, "year", 0, "Filter by fiscal year")
	cmd.Flags().StringVarP(&flagQuery, "query", "q", "", "Search name, description and resolution")
	cmd.Flags().BoolVar(&flagActive, "active", false, "Only active budgets")
}

func filterFromFlags() (report.Filter, error) {
	f := report.Filter{
		Category:   flagCategory,
		Committee:  flagCommittee,
		FiscalYear: flagYear,
		Query:      flagQuery,
		ActiveOnly: flagActive,
	}
	if flagStatus != "" {
		s, ok := core.ParseStatus(flagStatus)
		if !ok {
			return f, fmt.Errorf("unknown status %q", flagStatus)
		}
		f.Status = s
	}
	return f, nil
}

// loadConfig applies the CLI overrides before reading configuration.
func loadConfig() (*config.Config, error) {
	cli.LoadEnvFile()
	if flagConfigFile != "" {
		if err := os.Setenv("TREASURY_CONFIG_FILE", flagConfigFile); err != nil {
			return nil, fmt.Errorf("set config file: %w", err)
		}
	}
	cfg := config.Load()
	if flagBackend != "" {
		cfg.DataBackend = flagBackend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() *log.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, Component: "treasuryctl", Output: os.Stderr})
	log.SetDefault(logger)
	return logger
}

// session is an open store plus the configuration it came from.
type session struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.BackendResult
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger()
	result, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, backend: result}, nil
}

func (s *session) Close() {
	if err := s.backend.Cleanup(); err != nil {
		s.logger.Error("Failed to close document store", "error", err)
	}
}

// budgets reads the whole collection, newest first.
func (s *session) budgets(ctx context.Context) ([]core.Budget, error) {
	return budget.ListAll(ctx, s.backend.Store, s.cfg.Collection())
}
