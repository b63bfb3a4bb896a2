package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"treasury/internal/backend"
	"treasury/internal/storage/postgres"
	"treasury/internal/storage/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the document table schema to the configured database",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	newLogger()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	switch backend.BackendType(cfg.DataBackend) {
	case backend.SQLiteBackend:
		if err := sqlite.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return fmt.Errorf("migrate sqlite %s: %w", cfg.SQLiteDBPath, err)
		}
		fmt.Printf("  SQLite schema up to date (%s)\n", cfg.SQLiteDBPath)
	case backend.PostgresBackend:
		// Open migrates before returning.
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		_ = store.Close()
		fmt.Println("  Postgres schema up to date")
	case backend.MemoryBackend:
		fmt.Println("  Memory backend has no schema")
	default:
		return fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
	return nil
}
