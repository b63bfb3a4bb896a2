package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"treasury/internal/storage"
)

func openTemp(t *testing.T) storage.Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "treasury.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoundTripAndOrdering(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	older, err := s.AddRecord(ctx, "budgets", storage.Document{"eventName": "Gala", "allocatedAmount": 500.0, "createdAt": base})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	newer, err := s.AddRecord(ctx, "budgets", storage.Document{"eventName": "Fair", "allocatedAmount": 100.0, "createdAt": base.Add(90 * time.Millisecond)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.AddRecord(ctx, "members", storage.Document{"name": "x"}); err != nil {
		t.Fatalf("add other collection: %v", err)
	}

	records, err := s.QueryOrdered(ctx, "budgets", "createdAt", storage.Desc)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 2 || records[0].ID != newer || records[1].ID != older {
		t.Fatalf("unexpected order: %+v", records)
	}
	if records[0].Data["eventName"] != "Fair" || records[0].Data["allocatedAmount"] != 100.0 {
		t.Fatalf("unexpected data: %+v", records[0].Data)
	}

	byAmount, err := s.QueryOrdered(ctx, "budgets", "allocatedAmount", storage.Asc)
	if err != nil {
		t.Fatalf("query amount: %v", err)
	}
	if byAmount[0].ID != newer {
		t.Fatalf("numeric ordering broken: %+v", byAmount)
	}
}

func TestUpdateVersioningAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	var events []storage.ChangeEvent
	unsub := s.Subscribe("budgets", func(ev storage.ChangeEvent) { events = append(events, ev) })
	defer unsub()

	id, err := s.AddRecord(ctx, "budgets", storage.Document{"eventName": "Gala", "spentAmount": 0.0})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.UpdateRecord(ctx, "budgets", id, storage.Document{"spentAmount": 40.0, storage.KeyExpectedVersion: int64(1)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	err = s.UpdateRecord(ctx, "budgets", id, storage.Document{"spentAmount": 50.0, storage.KeyExpectedVersion: int64(1)})
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	rec, err := s.GetRecord(ctx, "budgets", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Data["spentAmount"] != 40.0 || rec.Data["eventName"] != "Gala" {
		t.Fatalf("unexpected data: %+v", rec.Data)
	}
	if storage.Int64(rec.Data[storage.KeyVersion]) != 2 {
		t.Fatalf("version = %v", rec.Data[storage.KeyVersion])
	}

	if err := s.DeleteRecord(ctx, "budgets", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetRecord(ctx, "budgets", id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.UpdateRecord(ctx, "budgets", id, storage.Document{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}

	if len(events) != 3 || events[0].Kind != storage.Created || events[1].Kind != storage.Updated || events[2].Kind != storage.Deleted {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treasury.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
