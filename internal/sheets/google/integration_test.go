//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"treasury/internal/core"
)

// Integration tests require a scratch spreadsheet and OAuth credentials.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_LedgerMirror(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	creds := Credentials{
		ClientJSON: os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"),
		ClientFile: os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"),
		TokenJSON:  os.Getenv("GOOGLE_OAUTH_TOKEN_JSON"),
		TokenFile:  os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"),
	}
	if (creds.ClientJSON == "" && creds.ClientFile == "") || (creds.TokenJSON == "" && creds.TokenFile == "") {
		t.Skip("OAuth credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sheet := os.Getenv("GOOGLE_SHEET_NAME")
	if sheet == "" {
		sheet = "Budgets Test"
	}
	client, err := New(ctx, Config{SpreadsheetID: spreadsheetID, SheetName: sheet, Credentials: creds})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	b := core.Budget{
		ID:         "integration-" + time.Now().Format("20060102150405"),
		EventName:  "Integration Test",
		Category:   core.DefaultCategory,
		Committee:  core.DefaultCommittee,
		Allocated:  core.Money{Cents: 10000},
		Spent:      core.Money{Cents: 2500},
		Remaining:  core.Money{Cents: 7500},
		Status:     core.StatusOnTrack,
		FiscalYear: time.Now().Year(),
		CreatedAt:  time.Now(),
	}

	if err := client.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	b.Spent = core.Money{Cents: 9500}
	if err := client.Upsert(ctx, b); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	ids, err := client.readIDs(ctx)
	if err != nil {
		t.Fatalf("readIDs: %v", err)
	}
	count := 0
	for _, id := range ids {
		if id == b.ID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("budget %s appears %d times, want 1", b.ID, count)
	}

	if err := client.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
